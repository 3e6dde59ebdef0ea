package update

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"

	"github.com/sandeepkv93/dailyd/internal/model"
	"github.com/sandeepkv93/dailyd/internal/views"
)

func (m Model) renderCounters() string {
	s := m.Snapshot
	next := ""
	if s.NextReset != nil {
		next = s.NextReset.Format("Mon 15:04")
	}
	return views.RenderCounters(views.CountersData{
		Remaining: s.DaysRemaining,
		Reserved:  s.DaysReserved,
		Projected: s.Projected,
		NextReset: next,
	})
}

func (m Model) renderDetail() string {
	task, ok := m.SelectedTask()
	if !ok {
		return views.RenderTaskDetail(views.TaskDetailData{})
	}
	data := views.TaskDetailData{
		ID:              task.ID,
		Title:           task.Title,
		Phase:           string(task.Phase),
		Completion:      task.Completion,
		SubtractedDays:  task.SubtractedDays,
		OncePerDay:      task.OncePerDay,
		DescriptionView: m.detailView.View(),
	}
	if task.Phase == model.PhaseCompleting {
		pct := task.Progress(m.Snapshot.Now)
		data.ProgressView = m.progressBar.ViewAs(pct)
		data.ProgressPct = int(pct * 100)
		if task.CompletionAt != nil {
			data.Remaining = task.CompletionAt.Sub(m.Snapshot.Now).Round(time.Second).String()
		}
	}
	if task.Phase == model.PhaseCooldown && task.CooldownResetAt != nil {
		data.CooldownUntil = task.CooldownResetAt.Format("Mon 15:04")
	}
	return views.RenderTaskDetail(data)
}

func (m Model) renderRolls() string {
	rolls := make([]views.RollData, 0, len(m.Snapshot.Rolls))
	for _, r := range m.Snapshot.Rolls {
		rolls = append(rolls, views.RollData{
			ID:          r.ID,
			Position:    r.Position,
			Remaining:   r.Remaining,
			Finished:    r.Finished,
			SpinnerView: m.rollSpinner.View(),
		})
	}
	return views.RenderRolls(rolls)
}

func (m Model) renderPending() string {
	items := make([]views.PendingData, 0, len(m.Snapshot.Pending))
	for _, p := range m.Snapshot.Pending {
		items = append(items, views.PendingData{Key: p.Key, Kind: string(p.Kind), FireAt: p.FireAt.Format("Mon 15:04:05")})
	}
	return views.RenderPending(items)
}

func (m *Model) syncBubbleData() {
	rows := make([]table.Row, 0, len(m.Snapshot.Tasks))
	for _, task := range m.Snapshot.Tasks {
		rows = append(rows, table.Row{
			task.ID,
			task.Title,
			string(task.Phase),
			task.Completion,
			fmt.Sprint(task.SubtractedDays),
		})
	}
	m.taskTable.SetRows(rows)
	if len(rows) > 0 {
		m.taskTable.SetCursor(m.Cursor)
	}

	desc := ""
	if task, ok := m.SelectedTask(); ok {
		desc = views.RenderMarkdown(task.Description, m.detailView.Width)
	}
	m.detailView.SetContent(desc)
	m.detailView.GotoTop()
}
