// Package lifecycle implements the start / complete / cool down / cancel rules
// of a task. A task has no record of its own: its phase is derived from
// which of its two notifications are pending in the store.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sandeepkv93/dailyd/internal/clock"
	"github.com/sandeepkv93/dailyd/internal/model"
	"github.com/sandeepkv93/dailyd/internal/storage"
)

var (
	ErrTaskNotIdle    = errors.New("lifecycle: task is not idle")
	ErrInvalidRequest = errors.New("lifecycle: invalid start request")
)

type StartRequest struct {
	TaskID         string
	SubtractedDays int
	Completion     model.Completion
	OncePerDay     bool
}

func (r StartRequest) Validate() error {
	if strings.TrimSpace(r.TaskID) == "" {
		return fmt.Errorf("%w: task id is required", ErrInvalidRequest)
	}
	if r.SubtractedDays < 0 {
		return fmt.Errorf("%w: subtracted days must not be negative", ErrInvalidRequest)
	}
	if err := r.Completion.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// RequestFor builds the start request for a catalog entry.
func RequestFor(def model.TaskDefinition) StartRequest {
	return StartRequest{
		TaskID:         def.ID,
		SubtractedDays: def.SubtractedDays,
		Completion:     def.Completion,
		OncePerDay:     def.OncePerDay,
	}
}

type Engine struct {
	clock     clock.Clock
	resetHour int
	logger    *slog.Logger
}

type Option func(*Engine)

func WithResetHour(hour int) Option {
	return func(e *Engine) { e.resetHour = hour }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func New(c clock.Clock, opts ...Option) *Engine {
	e := &Engine{
		clock:     c,
		resetHour: clock.DefaultResetHour,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start moves an idle task to Completing. The completion notification is
// always scheduled; the cooldown one only for once-per-day tasks.
func (e *Engine) Start(ctx context.Context, s storage.Store, req StartRequest) (model.TaskSnapshot, error) {
	if err := req.Validate(); err != nil {
		return model.TaskSnapshot{}, err
	}
	phase, err := e.Phase(ctx, s, req.TaskID)
	if err != nil {
		return model.TaskSnapshot{}, err
	}
	if phase != model.PhaseIdle {
		return model.TaskSnapshot{}, fmt.Errorf("%w: %s is %s", ErrTaskNotIdle, req.TaskID, phase)
	}

	now := e.clock.Now()
	completionAt, oncePerDay := req.Completion.Resolve(now, e.resetHour, req.OncePerDay)
	snap := model.TaskSnapshot{
		ID:             req.TaskID,
		StartAt:        now,
		SubtractedDays: req.SubtractedDays,
		CompletionAt:   completionAt,
	}
	if oncePerDay {
		resetAt := clock.NextDailyReset(now, e.resetHour)
		snap.CooldownResetAt = &resetAt
	}

	if _, err := s.ScheduleAt(ctx, model.Notification{
		Key:       model.CompletionKey(snap.ID),
		FireAt:    snap.CompletionAt,
		Payload:   model.CompletionPayload(snap),
		CreatedAt: now,
	}); err != nil {
		return model.TaskSnapshot{}, fmt.Errorf("schedule completion: %w", err)
	}
	if snap.CooldownResetAt != nil {
		if _, err := s.ScheduleAt(ctx, model.Notification{
			Key:       model.CooldownKey(snap.ID),
			FireAt:    *snap.CooldownResetAt,
			Payload:   model.CooldownPayload(snap),
			CreatedAt: now,
		}); err != nil {
			return model.TaskSnapshot{}, fmt.Errorf("schedule cooldown: %w", err)
		}
	}
	if snap.SubtractedDays != 0 {
		if _, err := s.AddCounter(ctx, model.CounterDaysReserved, snap.SubtractedDays); err != nil {
			return model.TaskSnapshot{}, err
		}
	}
	if err := storage.RequestRender(ctx, s, now); err != nil {
		return model.TaskSnapshot{}, err
	}

	e.logger.Info("task started",
		"task_id", snap.ID,
		"completion_at", snap.CompletionAt,
		"once_per_day", oncePerDay,
		"subtracted_days", snap.SubtractedDays,
	)
	return snap, nil
}

func (e *Engine) Phase(ctx context.Context, s storage.Store, taskID string) (model.Phase, error) {
	completing, err := storage.Exists(ctx, s, model.CompletionKey(taskID))
	if err != nil {
		return "", err
	}
	coolingDown, err := storage.Exists(ctx, s, model.CooldownKey(taskID))
	if err != nil {
		return "", err
	}
	return model.DerivePhase(completing, coolingDown), nil
}

func (e *Engine) IsCompleting(ctx context.Context, s storage.Store, taskID string) (bool, error) {
	return storage.Exists(ctx, s, model.CompletionKey(taskID))
}

func (e *Engine) IsOnCooldown(ctx context.Context, s storage.Store, taskID string) (bool, error) {
	return storage.Exists(ctx, s, model.CooldownKey(taskID))
}

// HasBeenCompleted is true while a finished task waits out its cooldown.
func (e *Engine) HasBeenCompleted(ctx context.Context, s storage.Store, taskID string) (bool, error) {
	phase, err := e.Phase(ctx, s, taskID)
	if err != nil {
		return false, err
	}
	return phase == model.PhaseCooldown, nil
}

// Status returns the phase and, when not idle, the snapshot of the pending run.
func (e *Engine) Status(ctx context.Context, s storage.Store, taskID string) (model.TaskStatus, error) {
	out := model.TaskStatus{ID: taskID, Phase: model.PhaseIdle}
	for _, key := range []string{model.CompletionKey(taskID), model.CooldownKey(taskID)} {
		n, err := s.GetNotification(ctx, key)
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrCorruptPayload) {
			continue
		}
		if err != nil {
			return model.TaskStatus{}, err
		}
		if out.Snapshot == nil {
			snap := *n.Payload.Task
			out.Snapshot = &snap
		}
		if key == model.CompletionKey(taskID) {
			out.Phase = model.PhaseCompleting
		} else if out.Phase == model.PhaseIdle {
			out.Phase = model.PhaseCooldown
		}
	}
	return out, nil
}

// CancelIfPossible removes a pending run. The reservation is released only
// if the completion had not fired yet; a task in cooldown keeps its effect.
func (e *Engine) CancelIfPossible(ctx context.Context, s storage.Store, taskID string) (bool, error) {
	phase, err := e.Phase(ctx, s, taskID)
	if err != nil {
		return false, err
	}
	if phase == model.PhaseIdle {
		return false, nil
	}

	released := 0
	corrupt := false
	prev, err := s.CancelNotification(ctx, model.CompletionKey(taskID))
	switch {
	case err == nil:
		released = prev.Payload.Task.SubtractedDays
	case errors.Is(err, storage.ErrNotFound):
	case errors.Is(err, storage.ErrCorruptPayload):
		e.logger.Warn("dropped corrupt completion on cancel", "task_id", taskID, "err", err)
		corrupt = true
	default:
		return false, err
	}
	if _, err := s.CancelNotification(ctx, model.CooldownKey(taskID)); err != nil &&
		!errors.Is(err, storage.ErrNotFound) && !errors.Is(err, storage.ErrCorruptPayload) {
		return false, err
	}
	if corrupt {
		if _, err := e.ReconcileReserved(ctx, s); err != nil {
			return false, err
		}
	} else if released != 0 {
		if _, err := s.AddCounter(ctx, model.CounterDaysReserved, -released); err != nil {
			return false, err
		}
	}
	if err := storage.RequestRender(ctx, s, e.clock.Now()); err != nil {
		return false, err
	}

	e.logger.Info("task cancelled", "task_id", taskID, "phase", phase, "released_days", released)
	return true, nil
}

// ReconcileReserved rewrites days_reserved as the sum of the readable
// pending completions. An unreadable completion reserves nothing, so the
// projected counter reads as if that run never started.
func (e *Engine) ReconcileReserved(ctx context.Context, s storage.Store) (int, error) {
	pending, err := s.ListNotifications(ctx, storage.NotificationListFilter{Kind: model.KindTaskCompletion})
	if err != nil {
		return 0, fmt.Errorf("list completions: %w", err)
	}
	want := 0
	for _, n := range pending {
		if n.Payload.Task != nil {
			want += n.Payload.Task.SubtractedDays
		}
	}
	have, err := s.Counter(ctx, model.CounterDaysReserved)
	if err != nil {
		return 0, err
	}
	if have != want {
		if err := s.SetCounter(ctx, model.CounterDaysReserved, want); err != nil {
			return 0, err
		}
		e.logger.Warn("reservation corrected", "from", have, "to", want)
	}
	return want, nil
}

// HandleCompletion applies a fired completion: the reserved days become
// spent days.
func (e *Engine) HandleCompletion(ctx context.Context, s storage.Store, snap model.TaskSnapshot) error {
	if snap.SubtractedDays != 0 {
		if _, err := s.AddCounter(ctx, model.CounterDaysRemaining, -snap.SubtractedDays); err != nil {
			return err
		}
		if _, err := s.AddCounter(ctx, model.CounterDaysReserved, -snap.SubtractedDays); err != nil {
			return err
		}
	}
	e.logger.Info("task completed", "task_id", snap.ID, "delta", -snap.SubtractedDays)
	return storage.RequestRender(ctx, s, e.clock.Now())
}

func (e *Engine) HandleCooldown(ctx context.Context, s storage.Store, snap model.TaskSnapshot) error {
	e.logger.Info("task cooldown over", "task_id", snap.ID)
	return storage.RequestRender(ctx, s, e.clock.Now())
}
