package commands

import (
	"fmt"
	"strconv"
	"strings"
)

type Type string

const (
	TypeStart  Type = "start"
	TypeCancel Type = "cancel"
	TypeRoll   Type = "roll"
	TypeStatus Type = "status"
	TypeTick   Type = "tick"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type StartArgs struct {
	TaskID string
}

type CancelArgs struct {
	TaskID string
}

// RollArgs.Final is 0 when the face should be random.
type RollArgs struct {
	RollID string
	Final  int
}

// StatusArgs.TaskID is empty for the overall status.
type StatusArgs struct {
	TaskID string
}

type Command struct {
	Type   Type
	Raw    string
	Start  *StartArgs
	Cancel *CancelArgs
	Roll   *RollArgs
	Status *StatusArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeStart:
		id, err := singleTaskID(head, args)
		if err != nil {
			return Command{}, err
		}
		return Command{Type: TypeStart, Raw: input, Start: &StartArgs{TaskID: id}}, nil
	case TypeCancel:
		id, err := singleTaskID(head, args)
		if err != nil {
			return Command{}, err
		}
		return Command{Type: TypeCancel, Raw: input, Cancel: &CancelArgs{TaskID: id}}, nil
	case TypeRoll:
		return parseRoll(input, args)
	case TypeStatus:
		if len(args) > 1 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "status takes at most one task id"}
		}
		st := &StatusArgs{}
		if len(args) == 1 {
			st.TaskID = args[0]
		}
		return Command{Type: TypeStatus, Raw: input, Status: st}, nil
	case TypeTick:
		if len(args) != 0 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "tick takes no arguments"}
		}
		return Command{Type: TypeTick, Raw: input}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func singleTaskID(head string, args []string) (string, error) {
	if len(args) != 1 {
		return "", &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s requires exactly one task id", head)}
	}
	return args[0], nil
}

func parseRoll(raw string, args []string) (Command, error) {
	if len(args) == 0 || len(args) > 2 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "roll requires an id and an optional face 1-6"}
	}
	out := &RollArgs{RollID: args[0]}
	if len(args) == 2 {
		face, err := strconv.Atoi(args[1])
		if err != nil || face < 1 || face > 6 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid face: %s", args[1])}
		}
		out.Final = face
	}
	return Command{Type: TypeRoll, Raw: raw, Roll: out}, nil
}
