package update

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/dailyd/internal/app"
	"github.com/sandeepkv93/dailyd/internal/dispatch"
	"github.com/sandeepkv93/dailyd/internal/model"
	"github.com/sandeepkv93/dailyd/internal/scheduler"
)

type fakeService struct {
	mu        sync.Mutex
	snap      app.Snapshot
	started   []string
	cancelled []string
	rolled    []string
	ticks     int
	startErr  error
	report    dispatch.Report
}

func (f *fakeService) Snapshot(context.Context) (app.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, nil
}

func (f *fakeService) StartTask(_ context.Context, id string) (model.TaskSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return model.TaskSnapshot{}, f.startErr
	}
	f.started = append(f.started, id)
	return model.TaskSnapshot{ID: id, StartAt: f.snap.Now, CompletionAt: f.snap.Now.Add(15 * time.Minute)}, nil
}

func (f *fakeService) CancelTask(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return true, nil
}

func (f *fakeService) Roll(_ context.Context, id string, final int) (model.Roll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rolled = append(f.rolled, id)
	return model.Roll{ID: id, Final: final, Remaining: 13}, nil
}

func (f *fakeService) Tick(context.Context) (dispatch.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks++
	return f.report, nil
}

func (f *fakeService) Alarms() <-chan scheduler.Alarm { return nil }

func newFake() *fakeService {
	now := time.Date(2026, 2, 9, 12, 5, 0, 0, time.UTC)
	start := now.Add(-5 * time.Minute)
	done := start.Add(15 * time.Minute)
	reset := time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)
	return &fakeService{snap: app.Snapshot{
		Now:           now,
		DaysRemaining: 30,
		DaysReserved:  2,
		Projected:     28,
		NextReset:     &reset,
		Tasks: []app.TaskView{
			{ID: "water", Title: "Water", Completion: "immediate", Phase: model.PhaseIdle},
			{ID: "walk", Title: "Walk", Completion: "15m", SubtractedDays: 2, Phase: model.PhaseCompleting, StartAt: &start, CompletionAt: &done},
			{ID: "journal", Title: "Journal", Completion: "reset", SubtractedDays: 1, Phase: model.PhaseIdle},
		},
	}}
}

func loadedModel(t *testing.T, f *fakeService) Model {
	t.Helper()
	m := NewModel(f, WithRefreshInterval(0))
	msg := m.refreshCmd()()
	updated, _ := m.Update(msg)
	next := updated.(Model)
	if !next.Loaded {
		t.Fatal("expected snapshot to be loaded")
	}
	return next
}

func press(t *testing.T, m Model, keys string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, r := range keys {
		var updated tea.Model
		updated, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = updated.(Model)
	}
	return m, cmd
}

func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func TestNewModelDefaults(t *testing.T) {
	m := NewModel(newFake())
	if m.Cursor != 0 || m.Loaded {
		t.Fatalf("unexpected initial state: cursor=%d loaded=%v", m.Cursor, m.Loaded)
	}
	if m.Keys.Quit.Help().Key != "q" {
		t.Fatalf("expected quit key q, got %q", m.Keys.Quit.Help().Key)
	}
	if m.Init() == nil {
		t.Fatal("expected init command")
	}
}

func TestCursorMovementIsClamped(t *testing.T) {
	m := loadedModel(t, newFake())
	m, _ = press(t, m, "jjj")
	if m.Cursor != 2 {
		t.Fatalf("expected cursor 2, got %d", m.Cursor)
	}
	m, _ = press(t, m, "k")
	task, ok := m.SelectedTask()
	if !ok || task.ID != "walk" {
		t.Fatalf("expected walk selected, got %+v", task)
	}
	m, _ = press(t, m, "kkk")
	if m.Cursor != 0 {
		t.Fatalf("expected cursor 0, got %d", m.Cursor)
	}
}

func TestStartKeyStartsSelectedTask(t *testing.T) {
	f := newFake()
	m := loadedModel(t, f)
	m, cmd := press(t, m, "s")
	if cmd == nil {
		t.Fatal("expected start command")
	}
	msg := cmd()
	status, ok := msg.(SetStatusMsg)
	if !ok || !strings.Contains(status.Text, "started water") {
		t.Fatalf("unexpected message: %#v", msg)
	}
	updated, refresh := m.Update(msg)
	m = updated.(Model)
	if refresh == nil || m.Status.IsError {
		t.Fatalf("expected refresh after status, got status %+v", m.Status)
	}
	if len(f.started) != 1 || f.started[0] != "water" {
		t.Fatalf("unexpected starts: %v", f.started)
	}
}

func TestStartErrorShowsInStatus(t *testing.T) {
	f := newFake()
	f.startErr = errors.New("task is not idle")
	m := loadedModel(t, f)
	_, cmd := press(t, m, "s")
	updated, _ := m.Update(cmd())
	m = updated.(Model)
	if !m.Status.IsError || !strings.Contains(m.Status.Text, "not idle") {
		t.Fatalf("expected error status, got %+v", m.Status)
	}
	if m.LastError == nil {
		t.Fatal("expected last error to be recorded")
	}
}

func TestCancelKeyCancelsSelectedTask(t *testing.T) {
	f := newFake()
	m := loadedModel(t, f)
	m, _ = press(t, m, "j")
	_, cmd := press(t, m, "c")
	msg := cmd()
	if status, ok := msg.(SetStatusMsg); !ok || status.Text != "cancelled walk" {
		t.Fatalf("unexpected message: %#v", msg)
	}
}

func TestRollKeyAssignsFreshIDs(t *testing.T) {
	f := newFake()
	m := loadedModel(t, f)
	m, first := press(t, m, "r")
	_, second := press(t, m, "r")
	first()
	second()
	if len(f.rolled) != 2 || f.rolled[0] != "d1" || f.rolled[1] != "d2" {
		t.Fatalf("unexpected roll ids: %v", f.rolled)
	}
}

func TestPaletteRunsCommand(t *testing.T) {
	f := newFake()
	m := loadedModel(t, f)
	m, _ = press(t, m, "/")
	if !m.Palette.Active {
		t.Fatal("expected palette to open")
	}
	m, _ = press(t, m, "cancel walk")
	if m.Palette.Input != "cancel walk" {
		t.Fatalf("unexpected palette input %q", m.Palette.Input)
	}
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if m.Palette.Active {
		t.Fatal("expected palette to close after enter")
	}
	msg := cmd()
	if status, ok := msg.(SetStatusMsg); !ok || status.Text != "cancelled walk" {
		t.Fatalf("unexpected message: %#v", msg)
	}
}

func TestPaletteStatusSummary(t *testing.T) {
	m := loadedModel(t, newFake())
	m, _ = press(t, m, "/status")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	msg := cmd()
	status, ok := msg.(SetStatusMsg)
	if !ok || status.Text != "days 30 | reserved 2 | projected 28 | pending 0" {
		t.Fatalf("unexpected message: %#v", msg)
	}
}

func TestPaletteParseError(t *testing.T) {
	m := loadedModel(t, newFake())
	m, _ = press(t, m, "/bogus")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if cmd != nil {
		t.Fatal("expected no command for a parse error")
	}
	if !m.Status.IsError || !strings.Contains(m.Status.Text, "unknown_command") {
		t.Fatalf("expected unknown command status, got %+v", m.Status)
	}
}

func TestPaletteEscapeCloses(t *testing.T) {
	m := loadedModel(t, newFake())
	m, _ = press(t, m, "/tick")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = updated.(Model)
	if m.Palette.Active || m.Palette.Input != "" {
		t.Fatalf("expected closed palette, got %+v", m.Palette)
	}
}

func TestAlarmTicksService(t *testing.T) {
	f := newFake()
	f.report = dispatch.Report{Delivered: 1, Fired: []model.Notification{{Key: "taskCompletion:walk", FireAt: f.snap.Now}}}
	m := loadedModel(t, f)
	_, cmd := m.Update(AlarmMsg{Alarm: scheduler.Alarm{Key: "taskCompletion:walk", At: f.snap.Now}})
	msgs := drain(cmd)
	if f.ticks != 1 {
		t.Fatalf("expected one tick, got %d", f.ticks)
	}
	var ticked *TickedMsg
	for _, msg := range msgs {
		if tm, ok := msg.(TickedMsg); ok {
			ticked = &tm
		}
	}
	if ticked == nil {
		t.Fatalf("expected ticked message in %#v", msgs)
	}
	updated, refresh := m.Update(*ticked)
	m = updated.(Model)
	if refresh == nil || !strings.HasPrefix(m.LastAlert, "taskCompletion:walk") {
		t.Fatalf("unexpected last alert %q", m.LastAlert)
	}
}

func TestRedrawRefreshesSnapshot(t *testing.T) {
	f := newFake()
	m := loadedModel(t, f)
	f.snap.DaysRemaining = 12
	_, cmd := m.Update(RedrawMsg{})
	updated, _ := m.Update(cmd())
	m = updated.(Model)
	if m.Snapshot.DaysRemaining != 12 {
		t.Fatalf("expected refreshed counters, got %d", m.Snapshot.DaysRemaining)
	}
}

func TestSpinnerRunsOnlyWhileRolling(t *testing.T) {
	f := newFake()
	f.snap.Rolls = []app.RollView{{ID: "d1", Final: 4, Position: 2, Remaining: 5}}
	m := NewModel(f, WithRefreshInterval(0))
	updated, cmd := m.Update(m.refreshCmd()())
	m = updated.(Model)
	if cmd == nil || !m.rolling {
		t.Fatal("expected spinner to start while a roll is in flight")
	}
	f.snap.Rolls[0] = app.RollView{ID: "d1", Final: 4, Position: 4, Finished: true}
	updated, _ = m.Update(m.refreshCmd()())
	m = updated.(Model)
	if m.rolling {
		t.Fatal("expected spinner to stop after the roll landed")
	}
}

func TestViewShowsCountersAndDetail(t *testing.T) {
	m := loadedModel(t, newFake())
	m, _ = press(t, m, "j")
	out := m.View()
	for _, want := range []string{"days: 30", "projected: 28", "task: Walk (walk)", "phase: COMPLETING", "33%", "completes in: 10m0s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in view:\n%s", want, out)
		}
	}
}

func TestHelpToggleAndQuit(t *testing.T) {
	m := loadedModel(t, newFake())
	m, _ = press(t, m, "?")
	if !m.HelpVisible || !strings.Contains(m.View(), "help:") {
		t.Fatal("expected help panel")
	}
	m, cmd := press(t, m, "q")
	if !m.Quitting || cmd == nil {
		t.Fatal("expected quit")
	}
	if m.View() != "" {
		t.Fatal("expected empty view after quit")
	}
}
