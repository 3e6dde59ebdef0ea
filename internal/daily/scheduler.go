// Package daily owns the once-a-day reset timer and the counter delta it
// applies.
package daily

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sandeepkv93/dailyd/internal/clock"
	"github.com/sandeepkv93/dailyd/internal/model"
	"github.com/sandeepkv93/dailyd/internal/storage"
)

var ErrInvalidPolicy = errors.New("daily: invalid missed reset policy")

// MaxMissedResets bounds the per-day catch-up after a long gap.
const MaxMissedResets = 366

// Policy decides how many deltas a late reset applies.
type Policy string

const (
	// PolicyOnce applies a single delta however many boundaries were missed.
	PolicyOnce Policy = "once"
	// PolicyPerDay applies one delta per boundary passed since the reset was due.
	PolicyPerDay Policy = "per_day"
)

func (p Policy) IsValid() bool {
	switch p {
	case PolicyOnce, PolicyPerDay:
		return true
	default:
		return false
	}
}

func ParsePolicy(raw string) (Policy, error) {
	v := Policy(strings.ToLower(strings.TrimSpace(raw)))
	if v == "" {
		return PolicyOnce, nil
	}
	if !v.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, raw)
	}
	return v, nil
}

type Scheduler struct {
	clock     clock.Clock
	resetHour int
	delta     int
	policy    Policy
	logger    *slog.Logger
}

type Option func(*Scheduler)

func WithResetHour(hour int) Option {
	return func(s *Scheduler) { s.resetHour = hour }
}

// WithDelta sets the signed change applied to days_remaining per reset.
func WithDelta(delta int) Option {
	return func(s *Scheduler) { s.delta = delta }
}

func WithPolicy(p Policy) Option {
	return func(s *Scheduler) {
		if p.IsValid() {
			s.policy = p
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(c clock.Clock, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:     c,
		resetHour: clock.DefaultResetHour,
		delta:     -1,
		policy:    PolicyOnce,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (d *Scheduler) Delta() int     { return d.delta }
func (d *Scheduler) Policy() Policy { return d.policy }
func (d *Scheduler) ResetHour() int { return d.resetHour }

// Reschedule upserts the reset at the boundary following from, or now.
func (d *Scheduler) Reschedule(ctx context.Context, s storage.Store, from *time.Time) (model.Notification, error) {
	now := d.clock.Now()
	base := now
	if from != nil {
		base = *from
	}
	n, err := s.ScheduleAt(ctx, model.Notification{
		Key:       model.DailyResetKey,
		FireAt:    clock.NextDailyReset(base, d.resetHour),
		Payload:   model.DailyResetPayload(),
		CreatedAt: now,
	})
	if err != nil {
		return model.Notification{}, fmt.Errorf("schedule daily reset: %w", err)
	}
	return n, nil
}

// Ensure schedules the reset if none is pending. It reports whether it did.
func (d *Scheduler) Ensure(ctx context.Context, s storage.Store) (bool, error) {
	ok, err := storage.Exists(ctx, s, model.DailyResetKey)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	n, err := d.Reschedule(ctx, s, nil)
	if err != nil {
		return false, err
	}
	d.logger.Info("daily reset armed", "key", n.Key, "fire_at", n.FireAt)
	return true, nil
}

// Handle applies a fired reset and arms the next one relative to now, so a
// late firing never schedules into the past. It returns the total delta.
func (d *Scheduler) Handle(ctx context.Context, s storage.Store, fired model.Notification) (int, error) {
	now := d.clock.Now()
	times := 1
	if d.policy == PolicyPerDay && !fired.FireAt.IsZero() {
		times += clock.ResetsBetween(fired.FireAt.In(now.Location()), now, d.resetHour, MaxMissedResets-1)
	}
	total := d.delta * times
	if total != 0 {
		if _, err := s.AddCounter(ctx, model.CounterDaysRemaining, total); err != nil {
			return 0, err
		}
	}
	next, err := d.Reschedule(ctx, s, nil)
	if err != nil {
		return 0, err
	}
	if err := storage.RequestRender(ctx, s, now); err != nil {
		return 0, err
	}
	d.logger.Info("daily reset applied",
		"delta", total,
		"boundaries", times,
		"policy", string(d.policy),
		"next", next.FireAt,
	)
	return total, nil
}
