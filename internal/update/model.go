package update

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/sandeepkv93/dailyd/internal/app"
	"github.com/sandeepkv93/dailyd/internal/dispatch"
	"github.com/sandeepkv93/dailyd/internal/model"
	"github.com/sandeepkv93/dailyd/internal/scheduler"
)

// Service is the slice of the runtime the TUI drives. *app.Runtime
// satisfies it.
type Service interface {
	Snapshot(ctx context.Context) (app.Snapshot, error)
	StartTask(ctx context.Context, taskID string) (model.TaskSnapshot, error)
	CancelTask(ctx context.Context, taskID string) (bool, error)
	Roll(ctx context.Context, rollID string, final int) (model.Roll, error)
	Tick(ctx context.Context) (dispatch.Report, error)
	Alarms() <-chan scheduler.Alarm
}

type StatusBar struct {
	Text    string
	IsError bool
}

type CommandPaletteState struct {
	Active bool
	Input  string
}

type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Start   key.Binding
	Cancel  key.Binding
	Roll    key.Binding
	Tick    key.Binding
	Palette key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "previous task")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "next task")),
		Start:   key.NewBinding(key.WithKeys("s", "enter"), key.WithHelp("s", "start task")),
		Cancel:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel task")),
		Roll:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "roll die")),
		Tick:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "deliver due")),
		Palette: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "command")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Cancel, k.Roll, k.Palette, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Start, k.Cancel},
		{k.Roll, k.Tick, k.Palette, k.Help, k.Quit},
	}
}

type Model struct {
	Snapshot    app.Snapshot
	Loaded      bool
	Cursor      int
	Palette     CommandPaletteState
	Status      StatusBar
	HelpVisible bool
	Quitting    bool
	LastError   error
	LastAlert   string
	Keys        KeyMap

	svc          Service
	ctx          context.Context
	nextRollID   int
	refreshEvery time.Duration

	taskTable    table.Model
	commandInput textinput.Model
	helpModel    help.Model
	progressBar  progress.Model
	rollSpinner  spinner.Model
	detailView   viewport.Model
	rolling      bool
}

// SnapshotMsg carries a freshly read runtime state.
type SnapshotMsg struct {
	Snapshot app.Snapshot
}

// AlarmMsg means a pending notification came due.
type AlarmMsg struct {
	Alarm scheduler.Alarm
}

// RedrawMsg is posted by the presenter when a render notification fires.
type RedrawMsg struct{}

type TickedMsg struct {
	Report dispatch.Report
}

type RefreshTickMsg struct{}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

type ModelOption func(*Model)

func WithContext(ctx context.Context) ModelOption {
	return func(m *Model) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

// WithRefreshInterval sets how often progress bars are re-read; 0 disables it.
func WithRefreshInterval(d time.Duration) ModelOption {
	return func(m *Model) {
		m.refreshEvery = d
	}
}

func NewModel(svc Service, opts ...ModelOption) Model {
	m := Model{
		Keys:         DefaultKeyMap(),
		svc:          svc,
		ctx:          context.Background(),
		nextRollID:   1,
		refreshEvery: time.Second,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.initBubbleComponents()
	return m
}

func (m *Model) initBubbleComponents() {
	cols := []table.Column{
		{Title: "Task", Width: 10},
		{Title: "Title", Width: 22},
		{Title: "Phase", Width: 11},
		{Title: "Done", Width: 7},
		{Title: "Days", Width: 4},
	}
	m.taskTable = table.New(table.WithColumns(cols), table.WithRows([]table.Row{}), table.WithFocused(true), table.WithHeight(8))

	m.commandInput = textinput.New()
	m.commandInput.Prompt = "/"
	m.commandInput.CharLimit = 128
	m.commandInput.Width = 40

	m.helpModel = help.New()
	m.progressBar = progress.New(progress.WithDefaultGradient(), progress.WithWidth(24))
	m.rollSpinner = spinner.New(spinner.WithSpinner(spinner.Dot))
	m.detailView = viewport.New(44, 8)
}

// SelectedTask is the task under the cursor.
func (m Model) SelectedTask() (app.TaskView, bool) {
	if m.Cursor < 0 || m.Cursor >= len(m.Snapshot.Tasks) {
		return app.TaskView{}, false
	}
	return m.Snapshot.Tasks[m.Cursor], true
}
