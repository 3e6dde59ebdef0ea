package scheduler

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrInvalidTriggerTime = errors.New("scheduler: invalid trigger time")
	ErrStopped            = errors.New("scheduler: engine stopped")
)

// Alarm is a wake-up for one notification key. The engine keeps at most one
// live alarm per key; rescheduling a key supersedes its previous alarm.
type Alarm struct {
	Key string
	At  time.Time
}

type queueItem struct {
	alarm Alarm
}

type priorityQueue []queueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].alarm.At.Equal(pq[j].alarm.At) {
		return pq[i].alarm.Key < pq[j].alarm.Key
	}
	return pq[i].alarm.At.Before(pq[j].alarm.At)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *priorityQueue) Push(x any) {
	*pq = append(*pq, x.(queueItem))
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[0 : n-1]
	return item
}

// Engine turns alarms into channel sends at their instant. It only wakes the
// consumer; the consumer re-reads durable state to decide what fired.
type Engine struct {
	mu      sync.Mutex
	queue   priorityQueue
	pending map[string]time.Time
	out     chan Alarm
	wakeup  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	dropped uint64
	stale   uint64
}

func NewEngine(bufferSize int) *Engine {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Engine{
		queue:   make(priorityQueue, 0),
		pending: make(map[string]time.Time),
		out:     make(chan Alarm, bufferSize),
		wakeup:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func (e *Engine) C() <-chan Alarm {
	return e.out
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	heap.Init(&e.queue)
	go e.loop()
}

func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()
	<-e.doneCh
}

func (e *Engine) Schedule(alarm Alarm) error {
	if alarm.At.IsZero() {
		return ErrInvalidTriggerTime
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrStopped
	}

	e.pending[alarm.Key] = alarm.At
	heap.Push(&e.queue, queueItem{alarm: alarm})
	e.signalWakeup()
	return nil
}

// Cancel forgets the live alarm for key. It reports whether one existed.
func (e *Engine) Cancel(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pending[key]
	delete(e.pending, key)
	return ok
}

// Sync replaces every live alarm with alarms.
func (e *Engine) Sync(alarms []Alarm) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrStopped
	}

	e.pending = make(map[string]time.Time, len(alarms))
	e.queue = e.queue[:0]
	for _, alarm := range alarms {
		if alarm.At.IsZero() {
			return ErrInvalidTriggerTime
		}
		e.pending[alarm.Key] = alarm.At
	}
	for key, at := range e.pending {
		e.queue = append(e.queue, queueItem{alarm: Alarm{Key: key, At: at}})
	}
	heap.Init(&e.queue)
	e.signalWakeup()
	return nil
}

func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *Engine) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

// Stale counts superseded alarms discarded instead of delivered.
func (e *Engine) Stale() uint64 {
	return atomic.LoadUint64(&e.stale)
}

func (e *Engine) loop() {
	defer close(e.doneCh)
	defer close(e.out)

	var timer *time.Timer
	for {
		next, hasNext := e.peek()
		if !hasNext {
			select {
			case <-e.wakeup:
				continue
			case <-e.stopCh:
				return
			}
		}

		wait := time.Until(next.At)
		if wait < 0 {
			wait = 0
		}
		timer = resetTimer(timer, wait)

		select {
		case <-timer.C:
			due := e.popDue(time.Now())
			for _, alarm := range due {
				select {
				case e.out <- alarm:
				default:
					atomic.AddUint64(&e.dropped, 1)
				}
			}
		case <-e.wakeup:
			continue
		case <-e.stopCh:
			if timer != nil {
				stopTimer(timer)
			}
			return
		}
	}
}

func (e *Engine) signalWakeup() {
	select {
	case e.wakeup <- struct{}{}:
	default:
	}
}

func (e *Engine) peek() (Alarm, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return Alarm{}, false
	}
	return e.queue[0].alarm, true
}

func (e *Engine) popDue(now time.Time) []Alarm {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Alarm, 0)
	for len(e.queue) > 0 {
		next := e.queue[0].alarm
		if next.At.After(now) {
			break
		}
		item := heap.Pop(&e.queue).(queueItem)
		at, live := e.pending[item.alarm.Key]
		if !live || !at.Equal(item.alarm.At) {
			atomic.AddUint64(&e.stale, 1)
			continue
		}
		delete(e.pending, item.alarm.Key)
		out = append(out, item.alarm)
	}
	return out
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
