// Package dispatch delivers due notifications to their handlers exactly once.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sandeepkv93/dailyd/internal/clock"
	"github.com/sandeepkv93/dailyd/internal/daily"
	"github.com/sandeepkv93/dailyd/internal/lifecycle"
	"github.com/sandeepkv93/dailyd/internal/model"
	"github.com/sandeepkv93/dailyd/internal/roll"
	"github.com/sandeepkv93/dailyd/internal/storage"
)

const (
	DefaultMaxRounds = 16
	DefaultBatchSize = 256
)

// Presenter is the redraw hook of whatever shows the state.
type Presenter interface {
	RequestRedraw()
}

type PresenterFunc func()

func (f PresenterFunc) RequestRedraw() { f() }

type nopPresenter struct{}

func (nopPresenter) RequestRedraw() {}

// Outcome is what happened to one listed notification.
type Outcome int

const (
	// OutcomeStale means the entry was replaced or cancelled after listing.
	OutcomeStale Outcome = iota
	OutcomeHandled
	OutcomeRedraw
	// OutcomeDropped means the payload was unreadable and the entry was discarded.
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHandled:
		return "handled"
	case OutcomeRedraw:
		return "redraw"
	case OutcomeDropped:
		return "dropped"
	default:
		return "stale"
	}
}

type Report struct {
	Delivered int                  `json:"delivered"`
	Skipped   int                  `json:"skipped"`
	Dropped   int                  `json:"dropped"`
	Redraws   int                  `json:"redraws"`
	Rounds    int                  `json:"rounds"`
	Fired     []model.Notification `json:"-"`
}

type Router struct {
	repo      storage.Repository
	clock     clock.Clock
	lifecycle *lifecycle.Engine
	daily     *daily.Scheduler
	rolls     *roll.Chain
	presenter Presenter
	logger    *slog.Logger
	maxRounds int
	batchSize int
}

type Option func(*Router)

func WithPresenter(p Presenter) Option {
	return func(r *Router) {
		if p != nil {
			r.presenter = p
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMaxRounds(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.maxRounds = n
		}
	}
}

func New(repo storage.Repository, c clock.Clock, le *lifecycle.Engine, ds *daily.Scheduler, rc *roll.Chain, opts ...Option) *Router {
	r := &Router{
		repo:      repo,
		clock:     c,
		lifecycle: le,
		daily:     ds,
		rolls:     rc,
		presenter: nopPresenter{},
		logger:    slog.Default(),
		maxRounds: DefaultMaxRounds,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetPresenter swaps the redraw hook; nil restores the no-op.
func (r *Router) SetPresenter(p Presenter) {
	if p == nil {
		p = nopPresenter{}
	}
	r.presenter = p
}

// Deliver consumes n and runs its handler in one transaction. The presenter
// is called only after the commit.
func (r *Router) Deliver(ctx context.Context, n model.Notification) (Outcome, error) {
	outcome := OutcomeStale
	err := r.repo.InTx(ctx, func(s storage.Store) error {
		ok, err := s.Consume(ctx, n.Key, n.Revision)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		outcome, err = r.handle(ctx, s, n)
		return err
	})
	if err != nil {
		return OutcomeStale, fmt.Errorf("deliver %s: %w", n.Key, err)
	}
	if outcome == OutcomeRedraw {
		r.presenter.RequestRedraw()
	}
	return outcome, nil
}

func (r *Router) handle(ctx context.Context, s storage.Store, n model.Notification) (Outcome, error) {
	if err := n.Payload.Validate(); err != nil {
		r.logger.Warn("dropped unreadable notification", "key", n.Key, "err", err)
		// The row is gone; whatever it reserved must go with it.
		if _, err := r.lifecycle.ReconcileReserved(ctx, s); err != nil {
			return OutcomeStale, err
		}
		return OutcomeDropped, nil
	}

	switch n.Payload.Kind {
	case model.KindDailyTaskReset:
		if _, err := r.daily.Handle(ctx, s, n); err != nil {
			return OutcomeStale, err
		}
	case model.KindTaskCompletion:
		if err := r.lifecycle.HandleCompletion(ctx, s, *n.Payload.Task); err != nil {
			return OutcomeStale, err
		}
	case model.KindTaskCooldown:
		if err := r.lifecycle.HandleCooldown(ctx, s, *n.Payload.Task); err != nil {
			return OutcomeStale, err
		}
	case model.KindRollAnimation:
		if _, err := r.rolls.Handle(ctx, s, *n.Payload.Roll); err != nil {
			return OutcomeStale, err
		}
	case model.KindRender:
		return OutcomeRedraw, nil
	default:
		r.logger.Warn("dropped notification of unknown kind", "key", n.Key, "kind", string(n.Payload.Kind))
		return OutcomeDropped, nil
	}
	r.logger.Debug("notification delivered", "key", n.Key, "kind", string(n.Payload.Kind), "fire_at", n.FireAt)
	return OutcomeHandled, nil
}

// DispatchDue drains everything due now, including the follow-up renders
// the handlers request. Rounds are bounded so a misbehaving handler cannot
// spin forever.
func (r *Router) DispatchDue(ctx context.Context) (Report, error) {
	var report Report
	for report.Rounds < r.maxRounds {
		due, err := r.repo.ListDue(ctx, r.clock.Now(), r.batchSize)
		if err != nil {
			return report, fmt.Errorf("list due: %w", err)
		}
		if len(due) == 0 {
			break
		}
		report.Rounds++
		for _, n := range due {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			outcome, err := r.Deliver(ctx, n)
			if err != nil {
				return report, err
			}
			switch outcome {
			case OutcomeHandled:
				report.Delivered++
				report.Fired = append(report.Fired, n)
			case OutcomeRedraw:
				report.Delivered++
				report.Redraws++
			case OutcomeDropped:
				report.Dropped++
			default:
				report.Skipped++
			}
		}
	}
	return report, nil
}
