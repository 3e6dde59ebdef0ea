package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sandeepkv93/dailyd/internal/model"
)

// MemoryRepository is a non-durable Repository for tests and dry runs.
type MemoryRepository struct {
	mu    sync.Mutex
	state *memoryState
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{state: newMemoryState()}
}

type memoryState struct {
	notifications map[string]model.Notification
	counters      map[string]int
	rolls         map[string]model.Roll
}

func newMemoryState() *memoryState {
	return &memoryState{
		notifications: make(map[string]model.Notification),
		counters:      make(map[string]int),
		rolls:         make(map[string]model.Roll),
	}
}

func (s *memoryState) clone() *memoryState {
	out := newMemoryState()
	for k, v := range s.notifications {
		out.notifications[k] = cloneNotification(v)
	}
	for k, v := range s.counters {
		out.counters[k] = v
	}
	for k, v := range s.rolls {
		out.rolls[k] = v
	}
	return out
}

func (r *MemoryRepository) InTx(ctx context.Context, fn func(Store) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	working := r.state.clone()
	if err := fn(&memoryTx{state: working}); err != nil {
		return err
	}
	r.state = working
	return nil
}

func (r *MemoryRepository) Close() error { return nil }

func (r *MemoryRepository) with(fn func(*memoryTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(&memoryTx{state: r.state})
}

func (r *MemoryRepository) ScheduleAt(ctx context.Context, n model.Notification) (out model.Notification, err error) {
	err = r.with(func(tx *memoryTx) error {
		out, err = tx.ScheduleAt(ctx, n)
		return err
	})
	return out, err
}

func (r *MemoryRepository) GetNotification(ctx context.Context, key string) (out model.Notification, err error) {
	err = r.with(func(tx *memoryTx) error {
		out, err = tx.GetNotification(ctx, key)
		return err
	})
	return out, err
}

func (r *MemoryRepository) CancelNotification(ctx context.Context, key string) (out model.Notification, err error) {
	err = r.with(func(tx *memoryTx) error {
		out, err = tx.CancelNotification(ctx, key)
		return err
	})
	return out, err
}

func (r *MemoryRepository) ListNotifications(ctx context.Context, filter NotificationListFilter) (out []model.Notification, err error) {
	err = r.with(func(tx *memoryTx) error {
		out, err = tx.ListNotifications(ctx, filter)
		return err
	})
	return out, err
}

func (r *MemoryRepository) ListDue(ctx context.Context, now time.Time, limit int) (out []model.Notification, err error) {
	err = r.with(func(tx *memoryTx) error {
		out, err = tx.ListDue(ctx, now, limit)
		return err
	})
	return out, err
}

func (r *MemoryRepository) Consume(ctx context.Context, key, revision string) (ok bool, err error) {
	err = r.with(func(tx *memoryTx) error {
		ok, err = tx.Consume(ctx, key, revision)
		return err
	})
	return ok, err
}

func (r *MemoryRepository) Counter(ctx context.Context, name string) (v int, err error) {
	err = r.with(func(tx *memoryTx) error {
		v, err = tx.Counter(ctx, name)
		return err
	})
	return v, err
}

func (r *MemoryRepository) AddCounter(ctx context.Context, name string, delta int) (v int, err error) {
	err = r.with(func(tx *memoryTx) error {
		v, err = tx.AddCounter(ctx, name, delta)
		return err
	})
	return v, err
}

func (r *MemoryRepository) SetCounter(ctx context.Context, name string, value int) error {
	return r.with(func(tx *memoryTx) error {
		return tx.SetCounter(ctx, name, value)
	})
}

func (r *MemoryRepository) EnsureCounter(ctx context.Context, name string, initial int) (v int, err error) {
	err = r.with(func(tx *memoryTx) error {
		v, err = tx.EnsureCounter(ctx, name, initial)
		return err
	})
	return v, err
}

func (r *MemoryRepository) GetRoll(ctx context.Context, id string) (out model.Roll, err error) {
	err = r.with(func(tx *memoryTx) error {
		out, err = tx.GetRoll(ctx, id)
		return err
	})
	return out, err
}

func (r *MemoryRepository) PutRoll(ctx context.Context, in model.Roll) error {
	return r.with(func(tx *memoryTx) error {
		return tx.PutRoll(ctx, in)
	})
}

func (r *MemoryRepository) ListRolls(ctx context.Context) (out []model.Roll, err error) {
	err = r.with(func(tx *memoryTx) error {
		out, err = tx.ListRolls(ctx)
		return err
	})
	return out, err
}

// memoryTx operates on a state the caller already holds the lock for.
type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) ScheduleAt(_ context.Context, n model.Notification) (model.Notification, error) {
	if err := n.Validate(); err != nil {
		return model.Notification{}, err
	}
	n.FireAt = n.FireAt.Truncate(time.Millisecond)
	n.Revision = newRevision()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n = cloneNotification(n)
	t.state.notifications[n.Key] = n
	return cloneNotification(n), nil
}

func (t *memoryTx) GetNotification(_ context.Context, key string) (model.Notification, error) {
	n, ok := t.state.notifications[key]
	if !ok {
		return model.Notification{}, ErrNotFound
	}
	return cloneNotification(n), nil
}

func (t *memoryTx) CancelNotification(_ context.Context, key string) (model.Notification, error) {
	n, ok := t.state.notifications[key]
	if !ok {
		return model.Notification{}, ErrNotFound
	}
	delete(t.state.notifications, key)
	return n, nil
}

func (t *memoryTx) ListNotifications(_ context.Context, filter NotificationListFilter) ([]model.Notification, error) {
	out := make([]model.Notification, 0, len(t.state.notifications))
	for _, n := range t.sorted() {
		if filter.matches(n) {
			out = append(out, n)
		}
	}
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (t *memoryTx) ListDue(_ context.Context, now time.Time, limit int) ([]model.Notification, error) {
	out := make([]model.Notification, 0)
	for _, n := range t.sorted() {
		if n.IsDue(now) {
			out = append(out, n)
		}
	}
	return paginate(out, limit, 0), nil
}

func (t *memoryTx) Consume(_ context.Context, key, revision string) (bool, error) {
	n, ok := t.state.notifications[key]
	if !ok || n.Revision != revision {
		return false, nil
	}
	delete(t.state.notifications, key)
	return true, nil
}

func (t *memoryTx) Counter(_ context.Context, name string) (int, error) {
	return t.state.counters[name], nil
}

func (t *memoryTx) AddCounter(_ context.Context, name string, delta int) (int, error) {
	t.state.counters[name] += delta
	return t.state.counters[name], nil
}

func (t *memoryTx) SetCounter(_ context.Context, name string, value int) error {
	t.state.counters[name] = value
	return nil
}

func (t *memoryTx) EnsureCounter(_ context.Context, name string, initial int) (int, error) {
	if v, ok := t.state.counters[name]; ok {
		return v, nil
	}
	t.state.counters[name] = initial
	return initial, nil
}

func (t *memoryTx) GetRoll(_ context.Context, id string) (model.Roll, error) {
	roll, ok := t.state.rolls[id]
	if !ok {
		return model.Roll{}, ErrNotFound
	}
	return roll, nil
}

func (t *memoryTx) PutRoll(_ context.Context, in model.Roll) error {
	if in.UpdatedAt.IsZero() {
		in.UpdatedAt = time.Now()
	}
	t.state.rolls[in.ID] = in
	return nil
}

func (t *memoryTx) ListRolls(_ context.Context) ([]model.Roll, error) {
	out := make([]model.Roll, 0, len(t.state.rolls))
	for _, roll := range t.state.rolls {
		out = append(out, roll)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memoryTx) sorted() []model.Notification {
	out := make([]model.Notification, 0, len(t.state.notifications))
	for _, n := range t.state.notifications {
		out = append(out, cloneNotification(n))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].FireAt.Before(out[j].FireAt)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneNotification(n model.Notification) model.Notification {
	if n.Payload.Task != nil {
		task := *n.Payload.Task
		if task.CooldownResetAt != nil {
			at := *task.CooldownResetAt
			task.CooldownResetAt = &at
		}
		n.Payload.Task = &task
	}
	if n.Payload.Roll != nil {
		step := *n.Payload.Roll
		n.Payload.Roll = &step
	}
	return n
}
