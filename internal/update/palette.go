package update

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/dailyd/internal/commands"
)

func (m Model) handlePaletteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closePalette()
		m.Status = StatusBar{Text: "command palette closed"}
		return m, nil
	case "enter":
		m.Palette.Input = m.commandInput.Value()
		return m.executePaletteCommand()
	case "ctrl+c":
		m.Quitting = true
		return m, tea.Quit
	}
	if msg.Type == tea.KeyRunes {
		m.commandInput.SetValue(m.commandInput.Value() + string(msg.Runes))
		m.commandInput.CursorEnd()
		m.Palette.Input = m.commandInput.Value()
		return m, nil
	}
	var cmd tea.Cmd
	m.commandInput, cmd = m.commandInput.Update(msg)
	m.Palette.Input = m.commandInput.Value()
	return m, cmd
}

func (m *Model) closePalette() {
	m.Palette = CommandPaletteState{}
	m.commandInput.SetValue("")
	m.commandInput.Blur()
}

func (m Model) executePaletteCommand() (tea.Model, tea.Cmd) {
	raw := strings.TrimSpace(m.Palette.Input)
	m.closePalette()

	cmd, err := commands.Parse(raw)
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}
	m.Status = StatusBar{Text: fmt.Sprintf("running %s", cmd.Type)}

	svc, ctx := m.svc, m.ctx
	handlers := commands.Handlers{
		Start: func(a commands.StartArgs) (commands.Result, error) {
			snap, err := svc.StartTask(ctx, a.TaskID)
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: fmt.Sprintf("started %s, completes %s", a.TaskID, snap.CompletionAt.Format("15:04:05"))}, nil
		},
		Cancel: func(a commands.CancelArgs) (commands.Result, error) {
			ok, err := svc.CancelTask(ctx, a.TaskID)
			if err != nil {
				return commands.Result{}, err
			}
			if !ok {
				return commands.Result{Message: fmt.Sprintf("%s is not in progress", a.TaskID)}, nil
			}
			return commands.Result{Message: fmt.Sprintf("cancelled %s", a.TaskID)}, nil
		},
		Roll: func(a commands.RollArgs) (commands.Result, error) {
			state, err := svc.Roll(ctx, a.RollID, a.Final)
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: fmt.Sprintf("rolling %s (%d steps)", state.ID, state.Remaining)}, nil
		},
		Status: func(a commands.StatusArgs) (commands.Result, error) {
			snap, err := svc.Snapshot(ctx)
			if err != nil {
				return commands.Result{}, err
			}
			if a.TaskID == "" {
				return commands.Result{Message: statusLine(
					fmt.Sprintf("days %d", snap.DaysRemaining),
					fmt.Sprintf("reserved %d", snap.DaysReserved),
					fmt.Sprintf("projected %d", snap.Projected),
					fmt.Sprintf("pending %d", len(snap.Pending)),
				)}, nil
			}
			task, ok := snap.Task(a.TaskID)
			if !ok {
				return commands.Result{}, &commands.CommandError{Code: commands.ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown task: %s", a.TaskID)}
			}
			return commands.Result{Message: statusLine(task.ID, string(task.Phase), task.Completion)}, nil
		},
		Tick: func() (commands.Result, error) {
			report, err := svc.Tick(ctx)
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: fmt.Sprintf("delivered %d, dropped %d", report.Delivered, report.Dropped)}, nil
		},
	}

	return m, func() tea.Msg {
		res, err := commands.Execute(cmd, handlers)
		if err != nil {
			return AppErrorMsg{Err: err}
		}
		return SetStatusMsg{Text: res.Message}
	}
}
