package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidSpan = errors.New("clock: invalid span")

// Span is a sparse additive offset. Days are calendar days; the remaining
// fields are elapsed time.
type Span struct {
	Days         int `json:"days,omitempty" yaml:"days,omitempty"`
	Hours        int `json:"hours,omitempty" yaml:"hours,omitempty"`
	Minutes      int `json:"minutes,omitempty" yaml:"minutes,omitempty"`
	Seconds      int `json:"seconds,omitempty" yaml:"seconds,omitempty"`
	Milliseconds int `json:"milliseconds,omitempty" yaml:"milliseconds,omitempty"`
}

func Days(n int) Span    { return Span{Days: n} }
func Hours(n int) Span   { return Span{Hours: n} }
func Minutes(n int) Span { return Span{Minutes: n} }
func Seconds(n int) Span { return Span{Seconds: n} }

func Millis(n int) Span { return Span{Milliseconds: n} }

func FromDuration(d time.Duration) Span {
	return Span{Milliseconds: int(d / time.Millisecond)}
}

func (s Span) IsZero() bool {
	return s == Span{}
}

// IsNegative reports whether any field is below zero.
func (s Span) IsNegative() bool {
	return s.Days < 0 || s.Hours < 0 || s.Minutes < 0 || s.Seconds < 0 || s.Milliseconds < 0
}

// Clock returns the non-calendar part of the span as a time.Duration.
func (s Span) Clock() time.Duration {
	return time.Duration(s.Hours)*time.Hour +
		time.Duration(s.Minutes)*time.Minute +
		time.Duration(s.Seconds)*time.Second +
		time.Duration(s.Milliseconds)*time.Millisecond
}

func (s Span) String() string {
	if s.IsZero() {
		return "0s"
	}
	var b strings.Builder
	write := func(v int, unit string) {
		if v != 0 {
			b.WriteString(strconv.Itoa(v))
			b.WriteString(unit)
		}
	}
	write(s.Days, "d")
	write(s.Hours, "h")
	write(s.Minutes, "m")
	write(s.Seconds, "s")
	write(s.Milliseconds, "ms")
	return b.String()
}

// ParseSpan reads the compact form produced by String, e.g. "1d2h15m30s500ms".
// Units may appear in any order; a repeated unit accumulates.
func ParseSpan(raw string) (Span, error) {
	in := strings.ToLower(strings.TrimSpace(raw))
	if in == "" {
		return Span{}, fmt.Errorf("%w: empty", ErrInvalidSpan)
	}
	var out Span
	for len(in) > 0 {
		i := 0
		for i < len(in) && (in[i] >= '0' && in[i] <= '9' || (i == 0 && in[i] == '-')) {
			i++
		}
		if i == 0 || (i == 1 && in[0] == '-') {
			return Span{}, fmt.Errorf("%w: %q", ErrInvalidSpan, raw)
		}
		n, err := strconv.Atoi(in[:i])
		if err != nil {
			return Span{}, fmt.Errorf("%w: %q", ErrInvalidSpan, raw)
		}
		in = in[i:]
		j := 0
		for j < len(in) && in[j] >= 'a' && in[j] <= 'z' {
			j++
		}
		switch in[:j] {
		case "d":
			out.Days += n
		case "h":
			out.Hours += n
		case "m":
			out.Minutes += n
		case "s":
			out.Seconds += n
		case "ms":
			out.Milliseconds += n
		default:
			return Span{}, fmt.Errorf("%w: unknown unit %q in %q", ErrInvalidSpan, in[:j], raw)
		}
		in = in[j:]
	}
	return out, nil
}
