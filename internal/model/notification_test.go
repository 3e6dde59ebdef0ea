package model

import (
	"errors"
	"testing"
	"time"
)

func TestKindIsValid(t *testing.T) {
	valid := []Kind{
		KindDailyTaskReset,
		KindTaskCompletion,
		KindTaskCooldown,
		KindRollAnimation,
		KindRender,
	}
	for _, item := range valid {
		if !item.IsValid() {
			t.Fatalf("expected valid kind: %q", item)
		}
	}
	if Kind("other").IsValid() {
		t.Fatal("expected invalid kind")
	}
}

func TestKeys(t *testing.T) {
	if CompletionKey("water") != "waterTaskCompletion" {
		t.Fatalf("unexpected completion key: %s", CompletionKey("water"))
	}
	if CooldownKey("water") != "waterTaskCooldown" {
		t.Fatalf("unexpected cooldown key: %s", CooldownKey("water"))
	}
	if RollKey("d1") != "d1RollAnimation" {
		t.Fatalf("unexpected roll key: %s", RollKey("d1"))
	}
}

func TestPayloadValidate(t *testing.T) {
	start := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	snap := TaskSnapshot{ID: "t1", StartAt: start, CompletionAt: start}

	if err := CompletionPayload(snap).Validate(); err != nil {
		t.Fatalf("completion payload: %v", err)
	}
	if err := DailyResetPayload().Validate(); err != nil {
		t.Fatalf("daily payload: %v", err)
	}
	if err := (Payload{Kind: KindTaskCooldown}).Validate(); !errors.Is(err, ErrMissingVariant) {
		t.Fatalf("expected ErrMissingVariant, got %v", err)
	}
	if err := (Payload{Kind: "bogus"}).Validate(); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
	if err := RollPayload(RollStep{ID: "d", Remaining: 0, Position: 1}).Validate(); !errors.Is(err, ErrInvalidRollStep) {
		t.Fatalf("expected ErrInvalidRollStep, got %v", err)
	}
	if err := RollPayload(RollStep{ID: "d", Remaining: 1, Position: 7}).Validate(); !errors.Is(err, ErrInvalidRollStep) {
		t.Fatalf("expected ErrInvalidRollStep for position, got %v", err)
	}
}

func TestNotificationIsDue(t *testing.T) {
	at := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	n := Notification{Key: RenderKey, FireAt: at, Payload: RenderPayload()}
	if err := n.Validate(); err != nil {
		t.Fatalf("expected valid notification: %v", err)
	}
	if !n.IsDue(at) || n.IsDue(at.Add(-time.Millisecond)) {
		t.Fatal("unexpected due evaluation")
	}
}

func TestNextPositionCycles(t *testing.T) {
	want := []int{2, 3, 4, 5, 6, 1}
	p := 1
	for i, w := range want {
		p = NextPosition(p)
		if p != w {
			t.Fatalf("step %d: got %d want %d", i, p, w)
		}
	}
}
