package commands

import "fmt"

type Result struct {
	Message string
}

type Handlers struct {
	Start  func(StartArgs) (Result, error)
	Cancel func(CancelArgs) (Result, error)
	Roll   func(RollArgs) (Result, error)
	Status func(StatusArgs) (Result, error)
	Tick   func() (Result, error)
}

func Execute(cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeStart:
		if handlers.Start == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "start handler not configured"}
		}
		return handlers.Start(*cmd.Start)
	case TypeCancel:
		if handlers.Cancel == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "cancel handler not configured"}
		}
		return handlers.Cancel(*cmd.Cancel)
	case TypeRoll:
		if handlers.Roll == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "roll handler not configured"}
		}
		return handlers.Roll(*cmd.Roll)
	case TypeStatus:
		if handlers.Status == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "status handler not configured"}
		}
		return handlers.Status(*cmd.Status)
	case TypeTick:
		if handlers.Tick == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "tick handler not configured"}
		}
		return handlers.Tick()
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}
