package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandeepkv93/dailyd/internal/clock"
	"github.com/sandeepkv93/dailyd/internal/model"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "dailyd-test.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := MigrateUp(db); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	repo, err := NewSQLiteRepository(db)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return repo
}

func parseRFC3339(t *testing.T, value string) time.Time {
	t.Helper()
	out, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return out
}

func eachRepository(t *testing.T, fn func(t *testing.T, repo Repository)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, setupRepo(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryRepository()) })
}

func completionNotification(t *testing.T, id string, at time.Time) model.Notification {
	t.Helper()
	return model.Notification{
		Key:     model.CompletionKey(id),
		FireAt:  at,
		Payload: model.CompletionPayload(model.TaskSnapshot{ID: id, StartAt: at, SubtractedDays: 2, CompletionAt: at}),
	}
}

func TestScheduleUpsertAndGet(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		at := parseRFC3339(t, "2026-02-09T12:00:00Z")

		first, err := repo.ScheduleAt(ctx, completionNotification(t, "water", at))
		if err != nil {
			t.Fatalf("schedule: %v", err)
		}
		second, err := repo.ScheduleAt(ctx, completionNotification(t, "water", at.Add(time.Hour)))
		if err != nil {
			t.Fatalf("reschedule: %v", err)
		}
		if first.Revision == second.Revision {
			t.Fatal("expected a new revision on upsert")
		}

		got, err := repo.GetNotification(ctx, model.CompletionKey("water"))
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !got.FireAt.Equal(at.Add(time.Hour)) || got.Revision != second.Revision {
			t.Fatalf("unexpected notification after upsert: %#v", got)
		}
		if got.Payload.Task == nil || got.Payload.Task.SubtractedDays != 2 {
			t.Fatalf("payload did not round trip: %#v", got.Payload)
		}

		all, err := repo.ListNotifications(ctx, NotificationListFilter{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("expected a single entry per key, got %d", len(all))
		}
	})
}

func TestScheduleTruncatesToMillis(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo Repository) {
		at := time.Date(2026, 2, 9, 12, 0, 0, 1_500_000, time.UTC)
		out, err := repo.ScheduleAt(context.Background(), model.Notification{
			Key:     model.RenderKey,
			FireAt:  at,
			Payload: model.RenderPayload(),
		})
		if err != nil {
			t.Fatalf("schedule: %v", err)
		}
		if out.FireAt.Nanosecond() != 1_000_000 {
			t.Fatalf("expected millisecond precision, got %v", out.FireAt)
		}
	})
}

func TestScheduleRejectsInvalidPayload(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo Repository) {
		_, err := repo.ScheduleAt(context.Background(), model.Notification{
			Key:     "x",
			FireAt:  time.Now(),
			Payload: model.Payload{Kind: model.KindTaskCooldown},
		})
		if !errors.Is(err, model.ErrMissingVariant) {
			t.Fatalf("expected ErrMissingVariant, got %v", err)
		}
	})
}

func TestCancelReturnsPreviousEntry(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		at := parseRFC3339(t, "2026-02-09T12:00:00Z")
		if _, err := repo.ScheduleAt(ctx, completionNotification(t, "walk", at)); err != nil {
			t.Fatalf("schedule: %v", err)
		}

		prev, err := repo.CancelNotification(ctx, model.CompletionKey("walk"))
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if prev.Payload.Task == nil || prev.Payload.Task.ID != "walk" {
			t.Fatalf("unexpected cancelled payload: %#v", prev.Payload)
		}

		if _, err := repo.CancelNotification(ctx, model.CompletionKey("walk")); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second cancel, got %v", err)
		}
		if _, err := repo.GetNotification(ctx, model.CompletionKey("walk")); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after cancel, got %v", err)
		}
	})
}

func TestListDueOrderingAndConsume(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		base := parseRFC3339(t, "2026-02-09T12:00:00Z")

		if _, err := repo.ScheduleAt(ctx, completionNotification(t, "b", base.Add(time.Minute))); err != nil {
			t.Fatalf("schedule b: %v", err)
		}
		if _, err := repo.ScheduleAt(ctx, completionNotification(t, "a", base)); err != nil {
			t.Fatalf("schedule a: %v", err)
		}
		if _, err := repo.ScheduleAt(ctx, completionNotification(t, "c", base.Add(time.Hour))); err != nil {
			t.Fatalf("schedule c: %v", err)
		}

		due, err := repo.ListDue(ctx, base.Add(time.Minute), 0)
		if err != nil {
			t.Fatalf("list due: %v", err)
		}
		if len(due) != 2 || due[0].Key != model.CompletionKey("a") || due[1].Key != model.CompletionKey("b") {
			t.Fatalf("unexpected due list: %#v", due)
		}

		limited, err := repo.ListDue(ctx, base.Add(time.Hour), 1)
		if err != nil {
			t.Fatalf("list due limited: %v", err)
		}
		if len(limited) != 1 {
			t.Fatalf("expected limit to apply, got %d", len(limited))
		}

		ok, err := repo.Consume(ctx, due[0].Key, due[0].Revision)
		if err != nil || !ok {
			t.Fatalf("consume a: ok=%v err=%v", ok, err)
		}
		ok, err = repo.Consume(ctx, due[0].Key, due[0].Revision)
		if err != nil || ok {
			t.Fatalf("second consume should be a no-op: ok=%v err=%v", ok, err)
		}

		if _, err := repo.ScheduleAt(ctx, completionNotification(t, "b", base.Add(2*time.Hour))); err != nil {
			t.Fatalf("reschedule b: %v", err)
		}
		ok, err = repo.Consume(ctx, due[1].Key, due[1].Revision)
		if err != nil || ok {
			t.Fatalf("stale revision must not consume: ok=%v err=%v", ok, err)
		}
		if _, err := repo.GetNotification(ctx, model.CompletionKey("b")); err != nil {
			t.Fatalf("rescheduled entry should survive stale consume: %v", err)
		}
	})
}

func TestListNotificationsFilterByKind(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		at := parseRFC3339(t, "2026-02-09T12:00:00Z")
		if _, err := repo.ScheduleAt(ctx, completionNotification(t, "a", at)); err != nil {
			t.Fatalf("schedule: %v", err)
		}
		if _, err := ScheduleAfter(ctx, repo, at, model.DailyResetKey, clock.Hours(15), model.DailyResetPayload()); err != nil {
			t.Fatalf("schedule after: %v", err)
		}

		daily, err := repo.ListNotifications(ctx, NotificationListFilter{Kind: model.KindDailyTaskReset})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(daily) != 1 || !daily[0].FireAt.Equal(at.Add(15*time.Hour)) {
			t.Fatalf("unexpected daily list: %#v", daily)
		}
	})
}

func TestCountersAndRolls(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		v, err := repo.EnsureCounter(ctx, model.CounterDaysRemaining, 30)
		if err != nil || v != 30 {
			t.Fatalf("ensure: v=%d err=%v", v, err)
		}
		v, err = repo.EnsureCounter(ctx, model.CounterDaysRemaining, 99)
		if err != nil || v != 30 {
			t.Fatalf("ensure must not overwrite: v=%d err=%v", v, err)
		}
		v, err = repo.AddCounter(ctx, model.CounterDaysRemaining, -3)
		if err != nil || v != 27 {
			t.Fatalf("add: v=%d err=%v", v, err)
		}
		v, err = repo.AddCounter(ctx, model.CounterDaysReserved, 2)
		if err != nil || v != 2 {
			t.Fatalf("add to missing counter: v=%d err=%v", v, err)
		}
		if err := repo.SetCounter(ctx, model.CounterDaysReserved, 0); err != nil {
			t.Fatalf("set: %v", err)
		}
		if v, _ := repo.Counter(ctx, model.CounterDaysReserved); v != 0 {
			t.Fatalf("expected reset counter, got %d", v)
		}

		if _, err := repo.GetRoll(ctx, "d1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		roll := model.Roll{ID: "d1", Final: 4, Position: 2, Remaining: 5}
		if err := repo.PutRoll(ctx, roll); err != nil {
			t.Fatalf("put roll: %v", err)
		}
		roll.Finished = true
		if err := repo.PutRoll(ctx, roll); err != nil {
			t.Fatalf("update roll: %v", err)
		}
		rolls, err := repo.ListRolls(ctx)
		if err != nil {
			t.Fatalf("list rolls: %v", err)
		}
		if len(rolls) != 1 || !rolls[0].Finished || rolls[0].Final != 4 {
			t.Fatalf("unexpected rolls: %#v", rolls)
		}
	})
}

func TestInTxRollsBackOnError(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		at := parseRFC3339(t, "2026-02-09T12:00:00Z")
		boom := errors.New("boom")

		err := repo.InTx(ctx, func(s Store) error {
			if _, err := s.ScheduleAt(ctx, completionNotification(t, "a", at)); err != nil {
				return err
			}
			if _, err := s.AddCounter(ctx, model.CounterDaysRemaining, 5); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if _, err := repo.GetNotification(ctx, model.CompletionKey("a")); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected rollback of schedule, got %v", err)
		}
		if v, _ := repo.Counter(ctx, model.CounterDaysRemaining); v != 0 {
			t.Fatalf("expected rollback of counter, got %d", v)
		}

		err = repo.InTx(ctx, func(s Store) error {
			_, err := s.ScheduleAt(ctx, completionNotification(t, "a", at))
			return err
		})
		if err != nil {
			t.Fatalf("commit tx: %v", err)
		}
		if _, err := repo.GetNotification(ctx, model.CompletionKey("a")); err != nil {
			t.Fatalf("expected committed entry: %v", err)
		}
	})
}

func TestRequestRenderCoalesces(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		at := parseRFC3339(t, "2026-02-09T12:00:00Z")

		if err := RequestRender(ctx, repo, at); err != nil {
			t.Fatalf("first render: %v", err)
		}
		if err := RequestRender(ctx, repo, at.Add(time.Second)); err != nil {
			t.Fatalf("second render: %v", err)
		}
		got, err := repo.GetNotification(ctx, model.RenderKey)
		if err != nil {
			t.Fatalf("get render: %v", err)
		}
		if !got.FireAt.Equal(at) {
			t.Fatalf("expected first render request to win, got %v", got.FireAt)
		}
	})
}

func TestCorruptPayloadIsTreatedAsAbsent(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	at := parseRFC3339(t, "2026-02-09T12:00:00Z")

	_, err := repo.db.Exec(`
		INSERT INTO notifications (key, fire_at_ms, kind, payload, revision, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		model.CompletionKey("bad"), at.UnixMilli(), string(model.KindTaskCompletion), "{not json", "rev-1", mustTime(at),
	)
	if err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}

	if _, err := repo.GetNotification(ctx, model.CompletionKey("bad")); !errors.Is(err, ErrCorruptPayload) {
		t.Fatalf("expected ErrCorruptPayload, got %v", err)
	}
	ok, err := Exists(ctx, repo, model.CompletionKey("bad"))
	if err != nil || ok {
		t.Fatalf("corrupt entry should read as absent: ok=%v err=%v", ok, err)
	}

	due, err := repo.ListDue(ctx, at, 0)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || due[0].Payload.Kind != "" || due[0].Revision != "rev-1" {
		t.Fatalf("expected corrupt entry with empty payload, got %#v", due)
	}
	ok, err = repo.Consume(ctx, due[0].Key, due[0].Revision)
	if err != nil || !ok {
		t.Fatalf("corrupt entry must be consumable: ok=%v err=%v", ok, err)
	}
}

func TestOpenSQLiteInMemory(t *testing.T) {
	repo, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	err = repo.InTx(ctx, func(s Store) error {
		return RequestRender(ctx, s, time.Now())
	})
	if err != nil {
		t.Fatalf("tx on memory db: %v", err)
	}
	if ok, _ := Exists(ctx, repo, model.RenderKey); !ok {
		t.Fatal("expected render to persist on the single connection")
	}
}
