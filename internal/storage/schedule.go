package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/dailyd/internal/clock"
	"github.com/sandeepkv93/dailyd/internal/model"
)

// ScheduleAfter upserts key to fire span after now.
func ScheduleAfter(ctx context.Context, s Store, now time.Time, key string, span clock.Span, payload model.Payload) (model.Notification, error) {
	return s.ScheduleAt(ctx, model.Notification{
		Key:       key,
		FireAt:    clock.Shift(now, span),
		Payload:   payload,
		CreatedAt: now,
	})
}

// RequestRender schedules an immediate redraw unless one is already pending,
// so bursts of state changes coalesce into a single render.
func RequestRender(ctx context.Context, s Store, now time.Time) error {
	_, err := s.GetNotification(ctx, model.RenderKey)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrCorruptPayload) {
		return err
	}
	_, err = s.ScheduleAt(ctx, model.Notification{
		Key:       model.RenderKey,
		FireAt:    now,
		Payload:   model.RenderPayload(),
		CreatedAt: now,
	})
	return err
}

// Exists reports whether key is pending with a decodable payload.
func Exists(ctx context.Context, s Store, key string) (bool, error) {
	_, err := s.GetNotification(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCorruptPayload):
		return false, nil
	default:
		return false, err
	}
}
