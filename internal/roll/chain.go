// Package roll animates a six-sided die as a chain of self-rescheduling
// notifications that slow down toward the final face.
package roll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/sandeepkv93/dailyd/internal/clock"
	"github.com/sandeepkv93/dailyd/internal/model"
	"github.com/sandeepkv93/dailyd/internal/storage"
)

var ErrInvalidRoll = errors.New("roll: invalid roll")

const (
	DefaultMinCycles = 2
	DefaultMaxCycles = 4

	baseDelayMillis = 1000.0
	slowdown        = 1.2
)

// StepDelay is the wait before the firing that has r firings left,
// itself included. The last firing waits the full second.
func StepDelay(r int) time.Duration {
	if r < 1 {
		r = 1
	}
	ms := baseDelayMillis * math.Pow(1/slowdown, float64(r-1))
	return time.Duration(math.Round(ms)) * time.Millisecond
}

type Chain struct {
	clock     clock.Clock
	minCycles int
	maxCycles int
	logger    *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Chain)

// WithSeed makes the cycle count and random faces reproducible.
func WithSeed(seed uint64) Option {
	return func(c *Chain) {
		c.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

func WithCycles(minCycles, maxCycles int) Option {
	return func(c *Chain) {
		if minCycles >= 0 && maxCycles >= minCycles {
			c.minCycles = minCycles
			c.maxCycles = maxCycles
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(c clock.Clock, opts ...Option) *Chain {
	chain := &Chain{
		clock:     c,
		minCycles: DefaultMinCycles,
		maxCycles: DefaultMaxCycles,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(chain)
	}
	if chain.rng == nil {
		seed := rand.Uint64()
		chain.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	return chain
}

func (c *Chain) intN(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.IntN(n)
}

// Begin starts (or restarts) the roll id so that it lands on final.
func (c *Chain) Begin(ctx context.Context, s storage.Store, id string, final int) (model.Roll, error) {
	if strings.TrimSpace(id) == "" {
		return model.Roll{}, fmt.Errorf("%w: id is required", ErrInvalidRoll)
	}
	if final < 1 || final > model.RollFaces {
		return model.Roll{}, fmt.Errorf("%w: final face %d out of range", ErrInvalidRoll, final)
	}

	cycles := c.minCycles + c.intN(c.maxCycles-c.minCycles+1)
	total := final + model.RollFaces*cycles
	now := c.clock.Now()

	state := model.Roll{ID: id, Final: final, Remaining: total, UpdatedAt: now}
	if err := s.PutRoll(ctx, state); err != nil {
		return model.Roll{}, err
	}
	step := model.RollStep{ID: id, Remaining: total, Position: 1}
	if err := c.scheduleStep(ctx, s, now, step); err != nil {
		return model.Roll{}, err
	}
	if err := storage.RequestRender(ctx, s, now); err != nil {
		return model.Roll{}, err
	}
	c.logger.Info("roll started", "roll_id", id, "final", final, "firings", total)
	return state, nil
}

func (c *Chain) BeginRandom(ctx context.Context, s storage.Store, id string) (model.Roll, error) {
	return c.Begin(ctx, s, id, 1+c.intN(model.RollFaces))
}

// Handle highlights the step's face and schedules the next step, or marks
// the roll finished when this was the last firing.
func (c *Chain) Handle(ctx context.Context, s storage.Store, step model.RollStep) (model.Roll, error) {
	if err := step.Validate(); err != nil {
		return model.Roll{}, err
	}
	state, err := s.GetRoll(ctx, step.ID)
	if errors.Is(err, storage.ErrNotFound) {
		state = model.Roll{ID: step.ID, Final: landingFace(step)}
	} else if err != nil {
		return model.Roll{}, err
	}

	now := c.clock.Now()
	left := step.Remaining - 1
	state.Position = step.Position
	state.Remaining = left
	state.Finished = left == 0
	state.UpdatedAt = now
	if err := s.PutRoll(ctx, state); err != nil {
		return model.Roll{}, err
	}

	if left > 0 {
		next := model.RollStep{ID: step.ID, Remaining: left, Position: model.NextPosition(step.Position)}
		if err := c.scheduleStep(ctx, s, now, next); err != nil {
			return model.Roll{}, err
		}
	} else {
		c.logger.Info("roll finished", "roll_id", state.ID, "face", state.Position)
	}
	if err := storage.RequestRender(ctx, s, now); err != nil {
		return model.Roll{}, err
	}
	return state, nil
}

func (c *Chain) scheduleStep(ctx context.Context, s storage.Store, now time.Time, step model.RollStep) error {
	_, err := s.ScheduleAt(ctx, model.Notification{
		Key:       model.RollKey(step.ID),
		FireAt:    clock.Shift(now, clock.FromDuration(StepDelay(step.Remaining))),
		Payload:   model.RollPayload(step),
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("schedule roll step: %w", err)
	}
	return nil
}

// landingFace is the face the chain stops on, derived from a pending step.
func landingFace(step model.RollStep) int {
	return (step.Position+step.Remaining-2)%model.RollFaces + 1
}
