package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/dailyd/internal/model"
)

var (
	ErrNotFound       = errors.New("storage: not found")
	ErrCorruptPayload = errors.New("storage: corrupt payload")
)

// Store is the notification store plus the scalar state persisted with it.
// Every method is durable when it returns.
type Store interface {
	ScheduleAt(ctx context.Context, n model.Notification) (model.Notification, error)
	GetNotification(ctx context.Context, key string) (model.Notification, error)
	CancelNotification(ctx context.Context, key string) (model.Notification, error)
	ListNotifications(ctx context.Context, filter NotificationListFilter) ([]model.Notification, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.Notification, error)
	Consume(ctx context.Context, key, revision string) (bool, error)

	Counter(ctx context.Context, name string) (int, error)
	AddCounter(ctx context.Context, name string, delta int) (int, error)
	SetCounter(ctx context.Context, name string, value int) error
	EnsureCounter(ctx context.Context, name string, initial int) (int, error)

	GetRoll(ctx context.Context, id string) (model.Roll, error)
	PutRoll(ctx context.Context, in model.Roll) error
	ListRolls(ctx context.Context) ([]model.Roll, error)
}

// Repository is a Store that can group calls into one atomic commit.
// Inside fn, the passed Store sees and writes the transaction; nested InTx
// calls join the outer transaction.
type Repository interface {
	Store
	InTx(ctx context.Context, fn func(Store) error) error
	Close() error
}
