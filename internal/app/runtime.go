// Package app owns the engine state. Every operation runs under one mutex,
// so the store, the engines and the alarm set are never touched
// concurrently.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/dailyd/internal/clock"
	"github.com/sandeepkv93/dailyd/internal/config"
	"github.com/sandeepkv93/dailyd/internal/daily"
	"github.com/sandeepkv93/dailyd/internal/dispatch"
	"github.com/sandeepkv93/dailyd/internal/lifecycle"
	"github.com/sandeepkv93/dailyd/internal/model"
	"github.com/sandeepkv93/dailyd/internal/roll"
	"github.com/sandeepkv93/dailyd/internal/scheduler"
	"github.com/sandeepkv93/dailyd/internal/storage"
)

var (
	ErrUnknownTask = errors.New("app: unknown task")
	ErrClosed      = errors.New("app: runtime closed")
)

type Runtime struct {
	mu sync.Mutex

	cfg       config.RuntimeConfig
	clock     clock.Clock
	repo      storage.Repository
	catalog   *config.Catalog
	lifecycle *lifecycle.Engine
	daily     *daily.Scheduler
	rolls     *roll.Chain
	router    *dispatch.Router
	alarms    *scheduler.Engine
	notifier  DesktopNotifier
	logger    *slog.Logger
	booted    bool
	closed    bool
}

type Option func(*Runtime)

func WithClock(c clock.Clock) Option {
	return func(r *Runtime) { r.clock = c }
}

// WithRepository injects a store instead of opening cfg.DBPath.
func WithRepository(repo storage.Repository) Option {
	return func(r *Runtime) { r.repo = repo }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithNotifier(n DesktopNotifier) Option {
	return func(r *Runtime) {
		if n != nil {
			r.notifier = n
		}
	}
}

func New(cfg config.RuntimeConfig, catalog *config.Catalog, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}
	r := &Runtime{
		cfg:      cfg,
		clock:    clock.Real{},
		catalog:  catalog,
		notifier: NoopDesktopNotifier{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.repo == nil {
		repo, err := storage.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		r.repo = repo
	}
	if cfg.DesktopNotifications {
		if _, noop := r.notifier.(NoopDesktopNotifier); noop {
			r.notifier = ExecDesktopNotifier{}
		}
	} else {
		r.notifier = NoopDesktopNotifier{}
	}

	r.lifecycle = lifecycle.New(r.clock,
		lifecycle.WithResetHour(cfg.ResetHour),
		lifecycle.WithLogger(r.logger),
	)
	r.daily = daily.New(r.clock,
		daily.WithResetHour(cfg.ResetHour),
		daily.WithDelta(cfg.DailyDelta),
		daily.WithPolicy(cfg.Policy()),
		daily.WithLogger(r.logger),
	)
	rollOpts := []roll.Option{
		roll.WithCycles(cfg.RollMinCycles, cfg.RollMaxCycles),
		roll.WithLogger(r.logger),
	}
	if cfg.RollSeed != 0 {
		rollOpts = append(rollOpts, roll.WithSeed(cfg.RollSeed))
	}
	r.rolls = roll.New(r.clock, rollOpts...)
	r.router = dispatch.New(r.repo, r.clock, r.lifecycle, r.daily, r.rolls, dispatch.WithLogger(r.logger))
	r.alarms = scheduler.NewEngine(cfg.SchedulerBuffer)
	return r, nil
}

func (r *Runtime) Config() config.RuntimeConfig { return r.cfg }
func (r *Runtime) Catalog() *config.Catalog     { return r.catalog }

// Alarms wakes the owner when a pending notification is due; the owner
// answers with Tick.
func (r *Runtime) Alarms() <-chan scheduler.Alarm {
	return r.alarms.C()
}

// SetPresenter installs the redraw hook. It must not call back into the
// runtime synchronously.
func (r *Runtime) SetPresenter(p dispatch.Presenter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.router.SetPresenter(p)
}

// Boot seeds the counter, arms the daily reset, catches up on everything
// missed while the process was down and arms the alarms.
func (r *Runtime) Boot(ctx context.Context) (dispatch.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return dispatch.Report{}, ErrClosed
	}

	err := r.repo.InTx(ctx, func(s storage.Store) error {
		if _, err := s.EnsureCounter(ctx, model.CounterDaysRemaining, r.cfg.InitialDays); err != nil {
			return err
		}
		if _, err := s.EnsureCounter(ctx, model.CounterDaysReserved, 0); err != nil {
			return err
		}
		if _, err := r.lifecycle.ReconcileReserved(ctx, s); err != nil {
			return err
		}
		_, err := r.daily.Ensure(ctx, s)
		return err
	})
	if err != nil {
		return dispatch.Report{}, fmt.Errorf("boot: %w", err)
	}
	if !r.booted {
		r.alarms.Start()
		r.booted = true
	}
	return r.dispatchLocked(ctx)
}

func (r *Runtime) StartTask(ctx context.Context, taskID string) (model.TaskSnapshot, error) {
	def, ok := r.catalog.Lookup(taskID)
	if !ok {
		return model.TaskSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return model.TaskSnapshot{}, ErrClosed
	}
	// Phase is only trustworthy once everything already due is delivered.
	if _, err := r.dispatchLocked(ctx); err != nil {
		return model.TaskSnapshot{}, err
	}

	var snap model.TaskSnapshot
	err := r.repo.InTx(ctx, func(s storage.Store) error {
		var err error
		snap, err = r.lifecycle.Start(ctx, s, lifecycle.RequestFor(def))
		return err
	})
	if err != nil {
		return model.TaskSnapshot{}, err
	}
	if _, err := r.dispatchLocked(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

func (r *Runtime) CancelTask(ctx context.Context, taskID string) (bool, error) {
	if _, ok := r.catalog.Lookup(taskID); !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, ErrClosed
	}
	// A completion whose instant has passed is final even if no alarm
	// delivered it yet.
	if _, err := r.dispatchLocked(ctx); err != nil {
		return false, err
	}

	var cancelled bool
	err := r.repo.InTx(ctx, func(s storage.Store) error {
		var err error
		cancelled, err = r.lifecycle.CancelIfPossible(ctx, s, taskID)
		return err
	})
	if err != nil {
		return false, err
	}
	if _, err := r.dispatchLocked(ctx); err != nil {
		return cancelled, err
	}
	return cancelled, nil
}

// Roll starts the die animation rollID; final 0 picks a random face.
func (r *Runtime) Roll(ctx context.Context, rollID string, final int) (model.Roll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return model.Roll{}, ErrClosed
	}

	var state model.Roll
	err := r.repo.InTx(ctx, func(s storage.Store) error {
		var err error
		if final == 0 {
			state, err = r.rolls.BeginRandom(ctx, s, rollID)
		} else {
			state, err = r.rolls.Begin(ctx, s, rollID, final)
		}
		return err
	})
	if err != nil {
		return model.Roll{}, err
	}
	if _, err := r.dispatchLocked(ctx); err != nil {
		return state, err
	}
	return state, nil
}

// Tick delivers everything due now and re-arms the alarms.
func (r *Runtime) Tick(ctx context.Context) (dispatch.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return dispatch.Report{}, ErrClosed
	}
	return r.dispatchLocked(ctx)
}

// Run answers alarms with ticks until ctx is done.
func (r *Runtime) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-r.Alarms():
			if !ok {
				return nil
			}
			if _, err := r.Tick(ctx); err != nil {
				r.logger.Error("tick failed", "err", err)
			}
		}
	}
}

func (r *Runtime) dispatchLocked(ctx context.Context) (dispatch.Report, error) {
	report, err := r.router.DispatchDue(ctx)
	if err != nil {
		return report, err
	}
	for _, n := range report.Fired {
		alert, ok := alertFor(n, r.taskTitle)
		if !ok {
			continue
		}
		if err := r.notifier.Send(alert); err != nil {
			r.logger.Warn("desktop notification failed", "key", n.Key, "err", err)
		}
	}
	if err := r.rearmLocked(ctx); err != nil {
		return report, err
	}
	if report.Delivered > 0 || report.Dropped > 0 {
		r.logger.Debug("dispatched",
			"delivered", report.Delivered,
			"skipped", report.Skipped,
			"dropped", report.Dropped,
			"rounds", report.Rounds,
		)
	}
	return report, nil
}

func (r *Runtime) rearmLocked(ctx context.Context) error {
	if !r.booted {
		return nil
	}
	pending, err := r.repo.ListNotifications(ctx, storage.NotificationListFilter{})
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	alarms := make([]scheduler.Alarm, 0, len(pending))
	for _, n := range pending {
		alarms = append(alarms, scheduler.Alarm{Key: n.Key, At: n.FireAt})
	}
	if err := r.alarms.Sync(alarms); err != nil && !errors.Is(err, scheduler.ErrStopped) {
		return err
	}
	return nil
}

func (r *Runtime) taskTitle(id string) string {
	if def, ok := r.catalog.Lookup(id); ok {
		return def.Title
	}
	return id
}

// NextAlarm returns the earliest pending fire instant.
func (r *Runtime) NextAlarm(ctx context.Context) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending, err := r.repo.ListNotifications(ctx, storage.NotificationListFilter{Limit: 1})
	if err != nil || len(pending) == 0 {
		return time.Time{}, false, err
	}
	return pending[0].FireAt, true, nil
}

func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.alarms.Stop()
	return r.repo.Close()
}
