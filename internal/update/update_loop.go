package update

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/dailyd/internal/scheduler"
	"github.com/sandeepkv93/dailyd/internal/views"
)

func (m Model) Init() tea.Cmd {
	if m.svc == nil {
		return nil
	}
	return tea.Batch(m.refreshCmd(), waitForAlarmCmd(m.svc.Alarms()), m.scheduleRefresh())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		if m.Palette.Active {
			return m.handlePaletteKey(typed)
		}
		return m.handleKey(typed)
	case SnapshotMsg:
		m.Snapshot = typed.Snapshot
		m.Loaded = true
		if m.Cursor >= len(m.Snapshot.Tasks) {
			m.Cursor = len(m.Snapshot.Tasks) - 1
		}
		if m.Cursor < 0 {
			m.Cursor = 0
		}
		m.syncBubbleData()
		if m.anyRolling() {
			if !m.rolling {
				m.rolling = true
				return m, m.rollSpinner.Tick
			}
			return m, nil
		}
		m.rolling = false
		return m, nil
	case spinner.TickMsg:
		if m.rolling {
			var cmd tea.Cmd
			m.rollSpinner, cmd = m.rollSpinner.Update(typed)
			return m, cmd
		}
		return m, nil
	case AlarmMsg:
		cmds := []tea.Cmd{m.tickCmd()}
		if m.svc != nil {
			cmds = append(cmds, waitForAlarmCmd(m.svc.Alarms()))
		}
		return m, tea.Batch(cmds...)
	case TickedMsg:
		if len(typed.Report.Fired) > 0 {
			last := typed.Report.Fired[len(typed.Report.Fired)-1]
			m.LastAlert = fmt.Sprintf("%s @ %s", last.Key, last.FireAt.Format("15:04:05"))
		}
		return m, m.refreshCmd()
	case RedrawMsg:
		return m, m.refreshCmd()
	case RefreshTickMsg:
		return m, tea.Batch(m.refreshCmd(), m.scheduleRefresh())
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, m.refreshCmd()
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
		}
		return m, m.refreshCmd()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		m.Quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.Keys.Palette):
		m.Palette = CommandPaletteState{Active: true}
		m.commandInput.SetValue("")
		m.commandInput.Focus()
		m.Status = StatusBar{Text: "command palette active"}
		return m, nil
	case key.Matches(msg, m.Keys.Help):
		m.HelpVisible = !m.HelpVisible
		m.helpModel.ShowAll = m.HelpVisible
		return m, nil
	case key.Matches(msg, m.Keys.Up):
		if m.Cursor > 0 {
			m.Cursor--
			m.syncBubbleData()
		}
		return m, nil
	case key.Matches(msg, m.Keys.Down):
		if m.Cursor < len(m.Snapshot.Tasks)-1 {
			m.Cursor++
			m.syncBubbleData()
		}
		return m, nil
	case key.Matches(msg, m.Keys.Start):
		task, ok := m.SelectedTask()
		if !ok {
			return m, nil
		}
		return m, m.startCmd(task.ID)
	case key.Matches(msg, m.Keys.Cancel):
		task, ok := m.SelectedTask()
		if !ok {
			return m, nil
		}
		return m, m.cancelCmd(task.ID)
	case key.Matches(msg, m.Keys.Roll):
		id := fmt.Sprintf("d%d", m.nextRollID)
		m.nextRollID++
		return m, m.rollCmd(id, 0)
	case key.Matches(msg, m.Keys.Tick):
		return m, m.tickCmd()
	}
	return m, nil
}

func (m Model) View() string {
	if m.Quitting {
		return ""
	}
	status := ""
	if m.Status.Text != "" {
		if m.Status.IsError {
			status = fmt.Sprintf("status: error: %s", m.Status.Text)
		} else {
			status = fmt.Sprintf("status: %s", m.Status.Text)
		}
	}

	left := views.RenderTaskPanel(views.TaskPanelData{TableView: m.taskTable.View(), Count: len(m.Snapshot.Tasks)})
	if rolls := m.renderRolls(); rolls != "" {
		left += "\n\n" + rolls
	}

	right := m.renderDetail()
	if palette := views.RenderCommandPalette(m.Palette.Active, m.commandInput.View()); palette != "" {
		right += "\n\n" + palette
	}
	if m.HelpVisible {
		right += "\n\n" + m.renderHelpView()
	}

	notification := ""
	if m.LastAlert != "" {
		notification = views.RenderNotification("info", "last delivered: "+m.LastAlert)
	}

	counters := ""
	if m.Loaded {
		counters = m.renderCounters()
	}

	return views.RenderApp(views.AppData{
		Header:       fmt.Sprintf("dailyd | %s", m.Snapshot.Now.Format("Mon 15:04:05")),
		Counters:     counters,
		LeftPane:     left,
		RightPane:    right,
		StatusLine:   status,
		StatusError:  m.Status.IsError,
		Notification: notification,
		Footer:       m.helpModel.ShortHelpView(m.Keys.ShortHelp()),
	})
}

func (m Model) anyRolling() bool {
	for _, r := range m.Snapshot.Rolls {
		if !r.Finished {
			return true
		}
	}
	return false
}

func (m Model) refreshCmd() tea.Cmd {
	if m.svc == nil {
		return nil
	}
	svc, ctx := m.svc, m.ctx
	return func() tea.Msg {
		snap, err := svc.Snapshot(ctx)
		if err != nil {
			return AppErrorMsg{Err: err}
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

func (m Model) scheduleRefresh() tea.Cmd {
	if m.refreshEvery <= 0 {
		return nil
	}
	return tea.Tick(m.refreshEvery, func(time.Time) tea.Msg { return RefreshTickMsg{} })
}

func (m Model) tickCmd() tea.Cmd {
	if m.svc == nil {
		return nil
	}
	svc, ctx := m.svc, m.ctx
	return func() tea.Msg {
		report, err := svc.Tick(ctx)
		if err != nil {
			return AppErrorMsg{Err: err}
		}
		return TickedMsg{Report: report}
	}
}

func (m Model) startCmd(id string) tea.Cmd {
	svc, ctx := m.svc, m.ctx
	return func() tea.Msg {
		snap, err := svc.StartTask(ctx, id)
		if err != nil {
			return AppErrorMsg{Err: err}
		}
		return SetStatusMsg{Text: fmt.Sprintf("started %s, completes %s", id, snap.CompletionAt.Format("15:04:05"))}
	}
}

func (m Model) cancelCmd(id string) tea.Cmd {
	svc, ctx := m.svc, m.ctx
	return func() tea.Msg {
		ok, err := svc.CancelTask(ctx, id)
		if err != nil {
			return AppErrorMsg{Err: err}
		}
		if !ok {
			return SetStatusMsg{Text: fmt.Sprintf("%s is not in progress", id)}
		}
		return SetStatusMsg{Text: fmt.Sprintf("cancelled %s", id)}
	}
}

func (m Model) rollCmd(id string, final int) tea.Cmd {
	svc, ctx := m.svc, m.ctx
	return func() tea.Msg {
		state, err := svc.Roll(ctx, id, final)
		if err != nil {
			return AppErrorMsg{Err: err}
		}
		return SetStatusMsg{Text: fmt.Sprintf("rolling %s (%d steps)", state.ID, state.Remaining)}
	}
}

func waitForAlarmCmd(ch <-chan scheduler.Alarm) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		alarm, ok := <-ch
		if !ok {
			return nil
		}
		return AlarmMsg{Alarm: alarm}
	}
}

func statusLine(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " | ")
}
