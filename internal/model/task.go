package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/dailyd/internal/clock"
)

var (
	ErrInvalidCompletion = errors.New("model: invalid completion mode")
	ErrInvalidPhase      = errors.New("model: invalid task phase")
)

const (
	CounterDaysRemaining = "days_remaining"
	CounterDaysReserved  = "days_reserved"
)

type Phase string

const (
	PhaseIdle       Phase = "Idle"
	PhaseCompleting Phase = "Completing"
	PhaseCooldown   Phase = "Cooldown"
)

func (p Phase) IsValid() bool {
	switch p {
	case PhaseIdle, PhaseCompleting, PhaseCooldown:
		return true
	default:
		return false
	}
}

// DerivePhase maps notification presence to a phase. A pending completion
// wins over a pending cooldown.
func DerivePhase(completing, coolingDown bool) Phase {
	switch {
	case completing:
		return PhaseCompleting
	case coolingDown:
		return PhaseCooldown
	default:
		return PhaseIdle
	}
}

type CompletionMode string

const (
	CompletionImmediate CompletionMode = "immediate"
	CompletionAtReset   CompletionMode = "reset"
	CompletionAfter     CompletionMode = "after"
)

func (m CompletionMode) IsValid() bool {
	switch m {
	case CompletionImmediate, CompletionAtReset, CompletionAfter:
		return true
	default:
		return false
	}
}

// Completion says when a started task completes.
type Completion struct {
	Mode  CompletionMode
	After clock.Span
}

func Immediate() Completion { return Completion{Mode: CompletionImmediate} }
func AtReset() Completion   { return Completion{Mode: CompletionAtReset} }

func After(span clock.Span) Completion {
	return Completion{Mode: CompletionAfter, After: span}
}

func (c Completion) IsConcrete() bool { return c.Mode == CompletionAfter }

func (c Completion) withDefaults() Completion {
	if c.Mode == "" {
		c.Mode = CompletionImmediate
	}
	return c
}

func (c Completion) Validate() error {
	c = c.withDefaults()
	if !c.Mode.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCompletion, c.Mode)
	}
	if c.Mode == CompletionAfter && c.After.IsZero() {
		return fmt.Errorf("%w: after requires a non-zero span", ErrInvalidCompletion)
	}
	if c.Mode == CompletionAfter && c.After.IsNegative() {
		return fmt.Errorf("%w: span %s is negative", ErrInvalidCompletion, c.After)
	}
	return nil
}

func (c Completion) String() string {
	c = c.withDefaults()
	if c.Mode == CompletionAfter {
		return c.After.String()
	}
	return string(c.Mode)
}

// ParseCompletion accepts "immediate" (or empty), "reset"/"midnight", or a span.
func ParseCompletion(raw string) (Completion, error) {
	switch v := strings.ToLower(strings.TrimSpace(raw)); v {
	case "", "immediate", "now":
		return Immediate(), nil
	case "reset", "midnight":
		return AtReset(), nil
	default:
		span, err := clock.ParseSpan(v)
		if err != nil {
			return Completion{}, fmt.Errorf("%w: %v", ErrInvalidCompletion, err)
		}
		if span.IsZero() {
			return Immediate(), nil
		}
		c := After(span)
		if err := c.Validate(); err != nil {
			return Completion{}, err
		}
		return c, nil
	}
}

// Resolve computes the completion instant and the effective once-per-day flag.
// Only a concrete span honours the caller's flag; the other modes always cool
// down until the next reset.
func (c Completion) Resolve(now time.Time, resetHour int, oncePerDay bool) (time.Time, bool) {
	switch c.withDefaults().Mode {
	case CompletionAtReset:
		return clock.NextDailyReset(now, resetHour), true
	case CompletionAfter:
		return clock.Shift(now, c.After), oncePerDay
	default:
		return now, true
	}
}

// TaskSnapshot is carried by both notifications of a started task.
type TaskSnapshot struct {
	ID              string     `json:"id"`
	StartAt         time.Time  `json:"startAt"`
	SubtractedDays  int        `json:"subtractedDays"`
	CompletionAt    time.Time  `json:"completionAt"`
	CooldownResetAt *time.Time `json:"cooldownResetAt,omitempty"`
}

func (s TaskSnapshot) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("model: task snapshot id is required")
	}
	if s.StartAt.IsZero() || s.CompletionAt.IsZero() {
		return errors.New("model: task snapshot instants are required")
	}
	if s.CompletionAt.Before(s.StartAt) {
		return errors.New("model: task snapshot completes before it starts")
	}
	return nil
}

func (s TaskSnapshot) OncePerDay() bool { return s.CooldownResetAt != nil }

// TaskDefinition is a catalog entry the user can start.
type TaskDefinition struct {
	ID             string
	Title          string
	Description    string
	SubtractedDays int
	Completion     Completion
	OncePerDay     bool
}

func (t TaskDefinition) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("model: task id is required")
	}
	if strings.ContainsAny(t.ID, " \t\n") {
		return fmt.Errorf("model: task id %q must not contain whitespace", t.ID)
	}
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("model: task title is required")
	}
	if t.SubtractedDays < 0 {
		return fmt.Errorf("model: subtracted_days must not be negative, got %d", t.SubtractedDays)
	}
	return t.Completion.Validate()
}

// TaskStatus is the derived view of one task for presentation.
type TaskStatus struct {
	ID       string
	Phase    Phase
	Snapshot *TaskSnapshot
}

func (s TaskStatus) HasBeenCompleted() bool { return s.Phase == PhaseCooldown }
