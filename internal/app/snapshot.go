package app

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/dailyd/internal/model"
	"github.com/sandeepkv93/dailyd/internal/storage"
)

// TaskView is one catalog task with its derived phase.
type TaskView struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	Completion      string      `json:"completion"`
	SubtractedDays  int         `json:"subtracted_days"`
	OncePerDay      bool        `json:"once_per_day"`
	Phase           model.Phase `json:"phase"`
	StartAt         *time.Time  `json:"start_at,omitempty"`
	CompletionAt    *time.Time  `json:"completion_at,omitempty"`
	CooldownResetAt *time.Time  `json:"cooldown_reset_at,omitempty"`
}

// Progress is how far a completing task is toward its completion instant.
func (v TaskView) Progress(now time.Time) float64 {
	if v.Phase != model.PhaseCompleting || v.StartAt == nil || v.CompletionAt == nil {
		if v.Phase == model.PhaseCooldown {
			return 1
		}
		return 0
	}
	total := v.CompletionAt.Sub(*v.StartAt)
	if total <= 0 {
		return 1
	}
	p := float64(now.Sub(*v.StartAt)) / float64(total)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

type RollView struct {
	ID        string `json:"id"`
	Final     int    `json:"final"`
	Position  int    `json:"position"`
	Remaining int    `json:"remaining"`
	Finished  bool   `json:"finished"`
}

type PendingView struct {
	Key    string     `json:"key"`
	Kind   model.Kind `json:"kind"`
	FireAt time.Time  `json:"fire_at"`
}

type Snapshot struct {
	Now           time.Time     `json:"now"`
	DaysRemaining int           `json:"days_remaining"`
	DaysReserved  int           `json:"days_reserved"`
	Projected     int           `json:"projected"`
	NextReset     *time.Time    `json:"next_reset,omitempty"`
	Tasks         []TaskView    `json:"tasks"`
	Rolls         []RollView    `json:"rolls"`
	Pending       []PendingView `json:"pending"`
}

func (s Snapshot) Task(id string) (TaskView, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskView{}, false
}

// Snapshot delivers whatever is already due, then reads the whole
// presentable state in one pass.
func (r *Runtime) Snapshot(ctx context.Context) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Snapshot{}, ErrClosed
	}
	if _, err := r.dispatchLocked(ctx); err != nil {
		return Snapshot{}, err
	}

	out := Snapshot{Now: r.clock.Now()}
	var err error
	if out.DaysRemaining, err = r.repo.Counter(ctx, model.CounterDaysRemaining); err != nil {
		return Snapshot{}, err
	}
	if out.DaysReserved, err = r.repo.Counter(ctx, model.CounterDaysReserved); err != nil {
		return Snapshot{}, err
	}
	out.Projected = out.DaysRemaining - out.DaysReserved

	reset, err := r.repo.GetNotification(ctx, model.DailyResetKey)
	switch {
	case err == nil:
		at := reset.FireAt
		out.NextReset = &at
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrCorruptPayload):
	default:
		return Snapshot{}, err
	}

	for _, def := range r.catalog.Tasks() {
		status, err := r.lifecycle.Status(ctx, r.repo, def.ID)
		if err != nil {
			return Snapshot{}, err
		}
		view := TaskView{
			ID:             def.ID,
			Title:          def.Title,
			Description:    def.Description,
			Completion:     def.Completion.String(),
			SubtractedDays: def.SubtractedDays,
			OncePerDay:     def.OncePerDay,
			Phase:          status.Phase,
		}
		if snap := status.Snapshot; snap != nil {
			start, completion := snap.StartAt, snap.CompletionAt
			view.StartAt = &start
			view.CompletionAt = &completion
			view.CooldownResetAt = snap.CooldownResetAt
		}
		out.Tasks = append(out.Tasks, view)
	}

	rolls, err := r.repo.ListRolls(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	out.Rolls = make([]RollView, 0, len(rolls))
	for _, roll := range rolls {
		out.Rolls = append(out.Rolls, RollView{
			ID:        roll.ID,
			Final:     roll.Final,
			Position:  roll.Position,
			Remaining: roll.Remaining,
			Finished:  roll.Finished,
		})
	}

	pending, err := r.repo.ListNotifications(ctx, storage.NotificationListFilter{})
	if err != nil {
		return Snapshot{}, err
	}
	out.Pending = make([]PendingView, 0, len(pending))
	for _, n := range pending {
		if n.Payload.Kind == model.KindRender {
			continue
		}
		out.Pending = append(out.Pending, PendingView{Key: n.Key, Kind: n.Payload.Kind, FireAt: n.FireAt})
	}
	return out, nil
}
