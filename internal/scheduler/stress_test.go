package scheduler

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEngineStressConcurrentSchedule(t *testing.T) {
	engine := NewEngine(4096)
	engine.Start()
	defer engine.Stop()

	const workers = 8
	const perWorker = 200
	total := workers * perWorker

	now := time.Now()
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		w := w
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				delay := time.Duration((w+i)%50+10) * time.Millisecond
				alarm := Alarm{
					Key: fmt.Sprintf("w%d-%dTaskCompletion", w, i),
					At:  now.Add(delay),
				}
				if err := engine.Schedule(alarm); err != nil {
					t.Errorf("schedule failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	deadline := time.After(5 * time.Second)
	var received int64
	for atomic.LoadInt64(&received) < int64(total) {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting alarms: received=%d total=%d dropped=%d", received, total, engine.Dropped())
		case <-engine.C():
			atomic.AddInt64(&received, 1)
		}
	}

	if got := int(received); got != total {
		t.Fatalf("unexpected received count: got=%d want=%d", got, total)
	}
	if engine.Dropped() != 0 {
		t.Fatalf("expected zero drops with active consumer, got=%d", engine.Dropped())
	}
	if engine.Pending() != 0 {
		t.Fatalf("expected no pending alarms after delivery, got=%d", engine.Pending())
	}
}

func TestEngineStressRescheduleSameKeys(t *testing.T) {
	engine := NewEngine(64)
	engine.Start()
	defer engine.Stop()

	const keys = 16
	const rounds = 50
	now := time.Now()

	var wg sync.WaitGroup
	wg.Add(keys)
	for k := 0; k < keys; k++ {
		k := k
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				alarm := Alarm{
					Key: fmt.Sprintf("k%d", k),
					At:  now.Add(time.Duration(200+r) * time.Millisecond),
				}
				if err := engine.Schedule(alarm); err != nil {
					t.Errorf("schedule failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]int)
	deadline := time.After(3 * time.Second)
	for len(seen) < keys {
		select {
		case <-deadline:
			t.Fatalf("timeout: seen=%d keys", len(seen))
		case alarm := <-engine.C():
			seen[alarm.Key]++
		}
	}
	time.Sleep(50 * time.Millisecond)
	for key, n := range seen {
		if n != 1 {
			t.Fatalf("key %s delivered %d times", key, n)
		}
	}
	select {
	case extra := <-engine.C():
		t.Fatalf("unexpected extra alarm: %#v", extra)
	default:
	}
}
