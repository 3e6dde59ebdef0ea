package scheduler

import (
	"testing"
	"time"
)

func TestEngineEmitsInTriggerOrder(t *testing.T) {
	engine := NewEngine(8)
	engine.Start()
	defer engine.Stop()

	now := time.Now()
	if err := engine.Schedule(Alarm{Key: "later", At: now.Add(80 * time.Millisecond)}); err != nil {
		t.Fatalf("schedule later: %v", err)
	}
	if err := engine.Schedule(Alarm{Key: "sooner", At: now.Add(20 * time.Millisecond)}); err != nil {
		t.Fatalf("schedule sooner: %v", err)
	}

	first := waitAlarm(t, engine.C(), time.Second)
	second := waitAlarm(t, engine.C(), time.Second)
	if first.Key != "sooner" || second.Key != "later" {
		t.Fatalf("unexpected order: first=%s second=%s", first.Key, second.Key)
	}
}

func TestEngineNonBlockingDropsWhenConsumerIsSlow(t *testing.T) {
	engine := NewEngine(1)
	engine.Start()
	defer engine.Stop()

	at := time.Now().Add(20 * time.Millisecond)
	for i := 0; i < 25; i++ {
		if err := engine.Schedule(Alarm{
			Key: string(rune('a' + i)),
			At:  at,
		}); err != nil {
			t.Fatalf("schedule alarm: %v", err)
		}
	}

	time.Sleep(120 * time.Millisecond)
	if engine.Dropped() == 0 {
		t.Fatalf("expected dropped alarms > 0, got %d", engine.Dropped())
	}
}

func TestRescheduleSupersedesPreviousAlarm(t *testing.T) {
	engine := NewEngine(8)
	engine.Start()
	defer engine.Stop()

	now := time.Now()
	if err := engine.Schedule(Alarm{Key: "water", At: now.Add(20 * time.Millisecond)}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := engine.Schedule(Alarm{Key: "water", At: now.Add(60 * time.Millisecond)}); err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	got := waitAlarm(t, engine.C(), time.Second)
	if !got.At.Equal(now.Add(60 * time.Millisecond)) {
		t.Fatalf("expected the later alarm only, got %v", got.At)
	}
	select {
	case extra := <-engine.C():
		t.Fatalf("unexpected extra alarm: %#v", extra)
	case <-time.After(50 * time.Millisecond):
	}
	if engine.Stale() != 1 {
		t.Fatalf("expected one stale alarm, got %d", engine.Stale())
	}
}

func TestCancelSuppressesAlarm(t *testing.T) {
	engine := NewEngine(8)
	engine.Start()
	defer engine.Stop()

	if err := engine.Schedule(Alarm{Key: "walk", At: time.Now().Add(20 * time.Millisecond)}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !engine.Cancel("walk") {
		t.Fatal("expected cancel to find the alarm")
	}
	if engine.Cancel("walk") {
		t.Fatal("second cancel should report nothing pending")
	}
	select {
	case got := <-engine.C():
		t.Fatalf("cancelled alarm fired: %#v", got)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestSyncReplacesPendingSet(t *testing.T) {
	engine := NewEngine(8)
	engine.Start()
	defer engine.Stop()

	now := time.Now()
	if err := engine.Schedule(Alarm{Key: "old", At: now.Add(20 * time.Millisecond)}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := engine.Sync([]Alarm{{Key: "new", At: now.Add(30 * time.Millisecond)}}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if engine.Pending() != 1 {
		t.Fatalf("expected one pending alarm, got %d", engine.Pending())
	}
	got := waitAlarm(t, engine.C(), time.Second)
	if got.Key != "new" {
		t.Fatalf("expected synced alarm, got %#v", got)
	}
}

func TestScheduleValidatesTriggerTime(t *testing.T) {
	engine := NewEngine(1)
	if err := engine.Schedule(Alarm{Key: "bad"}); err != ErrInvalidTriggerTime {
		t.Fatalf("expected ErrInvalidTriggerTime, got %v", err)
	}
}

func TestScheduleAfterStopFails(t *testing.T) {
	engine := NewEngine(1)
	engine.Start()
	engine.Stop()
	if err := engine.Schedule(Alarm{Key: "late", At: time.Now()}); err != ErrStopped {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func waitAlarm(t *testing.T, ch <-chan Alarm, timeout time.Duration) Alarm {
	t.Helper()
	select {
	case alarm := <-ch:
		return alarm
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for alarm")
		return Alarm{}
	}
}
