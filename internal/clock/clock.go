// Package clock holds the instant arithmetic shared by every timer in dailyd.
//
// Instants are plain time.Time values truncated to millisecond precision.
// The daily reset boundary is computed in one place, NextDailyReset, and is
// used for completion-at-reset, cooldown expiry and the daily reset timer.
package clock

import (
	"sync"
	"time"
)

const DefaultResetHour = 3

type Clock interface {
	Now() time.Time
}

type Real struct{}

func (Real) Now() time.Time { return time.Now().Truncate(time.Millisecond) }

// Fake is deterministic and test-friendly. It may be moved backward.
type Fake struct {
	mu sync.Mutex
	t  time.Time
}

func NewFake(start time.Time) *Fake {
	return &Fake{t: start.Truncate(time.Millisecond)}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Fake) Set(t time.Time) {
	c.mu.Lock()
	c.t = t.Truncate(time.Millisecond)
	c.mu.Unlock()
}

func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d).Truncate(time.Millisecond)
	c.mu.Unlock()
}

func (c *Fake) AdvanceSpan(s Span) {
	c.mu.Lock()
	c.t = Shift(c.t, s)
	c.mu.Unlock()
}

// Compare orders instants: -1 if a is before b, +1 if after, 0 if equal.
func Compare(a, b time.Time) int {
	return a.Compare(b)
}

// Shift adds s to t. Calendar days go first so that a day keeps its wall
// clock across DST changes; overflow of every field is normalized.
func Shift(t time.Time, s Span) time.Time {
	return t.AddDate(0, 0, s.Days).Add(s.Clock()).Truncate(time.Millisecond)
}

// NextDailyReset returns the next hour:00:00.000 boundary in t's location.
// A t strictly before today's boundary yields today's; otherwise tomorrow's.
func NextDailyReset(t time.Time, hour int) time.Time {
	y, m, d := t.Date()
	today := time.Date(y, m, d, hour, 0, 0, 0, t.Location())
	if t.Before(today) {
		return today
	}
	return time.Date(y, m, d+1, hour, 0, 0, 0, t.Location())
}

// ResetsBetween counts daily boundaries b with from < b <= to.
func ResetsBetween(from, to time.Time, hour, limit int) int {
	n := 0
	for b := NextDailyReset(from, hour); !b.After(to) && n < limit; b = NextDailyReset(b, hour) {
		n++
	}
	return n
}
