package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidKind     = errors.New("model: invalid notification kind")
	ErrMissingVariant  = errors.New("model: payload variant missing for kind")
	ErrInvalidRollStep = errors.New("model: invalid roll step")
)

// Kind is the payload discriminant of a notification.
type Kind string

const (
	KindDailyTaskReset Kind = "dailyTaskReset"
	KindTaskCompletion Kind = "taskCompletion"
	KindTaskCooldown   Kind = "taskCooldown"
	KindRollAnimation  Kind = "rollAnimation"
	KindRender         Kind = "render"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindDailyTaskReset, KindTaskCompletion, KindTaskCooldown, KindRollAnimation, KindRender:
		return true
	default:
		return false
	}
}

const (
	DailyResetKey = "dailyTaskReset"
	RenderKey     = "render"
)

func CompletionKey(taskID string) string { return taskID + "TaskCompletion" }
func CooldownKey(taskID string) string   { return taskID + "TaskCooldown" }
func RollKey(rollID string) string       { return rollID + "RollAnimation" }

// RollStep is the persisted state of one pending roll-animation firing.
// Remaining counts the firings still to come, this one included.
type RollStep struct {
	ID        string `json:"id"`
	Remaining int    `json:"remaining"`
	Position  int    `json:"position"`
}

func (s RollStep) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRollStep)
	}
	if s.Remaining <= 0 {
		return fmt.Errorf("%w: remaining must be positive, got %d", ErrInvalidRollStep, s.Remaining)
	}
	if s.Position < 1 || s.Position > RollFaces {
		return fmt.Errorf("%w: position %d out of range", ErrInvalidRollStep, s.Position)
	}
	return nil
}

// Payload is a closed tagged union over the notification kinds. Exactly the
// variant matching Kind is set; the daily reset and render kinds carry none.
type Payload struct {
	Kind Kind          `json:"kind"`
	Task *TaskSnapshot `json:"task,omitempty"`
	Roll *RollStep     `json:"roll,omitempty"`
}

func DailyResetPayload() Payload { return Payload{Kind: KindDailyTaskReset} }
func RenderPayload() Payload     { return Payload{Kind: KindRender} }

func CompletionPayload(s TaskSnapshot) Payload {
	return Payload{Kind: KindTaskCompletion, Task: &s}
}

func CooldownPayload(s TaskSnapshot) Payload {
	return Payload{Kind: KindTaskCooldown, Task: &s}
}

func RollPayload(step RollStep) Payload {
	return Payload{Kind: KindRollAnimation, Roll: &step}
}

func (p Payload) Validate() error {
	if !p.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, p.Kind)
	}
	switch p.Kind {
	case KindTaskCompletion, KindTaskCooldown:
		if p.Task == nil {
			return fmt.Errorf("%w: %s", ErrMissingVariant, p.Kind)
		}
		return p.Task.Validate()
	case KindRollAnimation:
		if p.Roll == nil {
			return fmt.Errorf("%w: %s", ErrMissingVariant, p.Kind)
		}
		return p.Roll.Validate()
	}
	return nil
}

// Notification is a durable, uniquely keyed trigger. Revision changes on
// every upsert so a listed entry can be consumed only if it is unchanged.
type Notification struct {
	Key       string
	FireAt    time.Time
	Payload   Payload
	Revision  string
	CreatedAt time.Time
}

func (n Notification) Validate() error {
	if strings.TrimSpace(n.Key) == "" {
		return errors.New("model: notification key is required")
	}
	if n.FireAt.IsZero() {
		return errors.New("model: notification fire_at is required")
	}
	return n.Payload.Validate()
}

// IsDue reports whether n should fire at now. An instant in the future never
// fires early, even if the wall clock was moved backward.
func (n Notification) IsDue(now time.Time) bool {
	return !n.FireAt.After(now)
}
