package views

import (
	"fmt"
	"strings"
)

type CountersData struct {
	Remaining int
	Reserved  int
	Projected int
	NextReset string
}

type TaskPanelData struct {
	TableView string
	Count     int
}

type TaskDetailData struct {
	ID              string
	Title           string
	Phase           string
	Completion      string
	SubtractedDays  int
	OncePerDay      bool
	ProgressView    string
	ProgressPct     int
	Remaining       string
	CooldownUntil   string
	DescriptionView string
}

type RollData struct {
	ID          string
	Position    int
	Remaining   int
	Finished    bool
	SpinnerView string
}

type PendingData struct {
	Key    string
	Kind   string
	FireAt string
}

type HelpPanelData struct {
	Bindings []string
	HelpView string
}

func RenderCounters(data CountersData) string {
	line := fmt.Sprintf("days: %d | reserved: %d | projected: %d", data.Remaining, data.Reserved, data.Projected)
	if data.Reserved > 0 {
		line = fmt.Sprintf("days: %d | reserved: %s | projected: %d", data.Remaining, reservedStyle.Render(fmt.Sprint(data.Reserved)), data.Projected)
	}
	if data.NextReset != "" {
		line += " | next reset: " + data.NextReset
	}
	return line
}

func RenderTaskPanel(data TaskPanelData) string {
	var b strings.Builder
	b.WriteString("tasks:\n")
	b.WriteString("actions: [j/k]move [s]start [c]cancel [r]roll [t]tick\n")
	if data.Count == 0 {
		b.WriteString("(catalog empty)")
		return b.String()
	}
	b.WriteString(data.TableView)
	return strings.TrimSpace(b.String())
}

func RenderTaskDetail(data TaskDetailData) string {
	if strings.TrimSpace(data.ID) == "" {
		return "task:\n(no selection)"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("task: %s (%s)\n", data.Title, data.ID))
	b.WriteString(fmt.Sprintf("phase: %s\n", strings.ToUpper(data.Phase)))
	b.WriteString(fmt.Sprintf("completion: %s | days: %d", data.Completion, data.SubtractedDays))
	if data.OncePerDay {
		b.WriteString(" | once per day")
	}
	b.WriteString("\n")
	if data.ProgressView != "" {
		b.WriteString(fmt.Sprintf("progress: %s %d%%\n", data.ProgressView, data.ProgressPct))
	}
	if data.Remaining != "" {
		b.WriteString(fmt.Sprintf("completes in: %s\n", data.Remaining))
	}
	if data.CooldownUntil != "" {
		b.WriteString(fmt.Sprintf("cooldown until: %s\n", data.CooldownUntil))
	}
	if data.DescriptionView != "" {
		b.WriteString("\n" + data.DescriptionView)
	}
	return strings.TrimSpace(b.String())
}

func RenderRolls(rolls []RollData) string {
	if len(rolls) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("rolls:\n")
	for _, r := range rolls {
		state := fmt.Sprintf("%s rolling (%d left)", r.SpinnerView, r.Remaining)
		if r.Finished {
			state = "landed"
		}
		b.WriteString(fmt.Sprintf("%s: %s\n", r.ID, state))
		b.WriteString(DiceFace(r.Position) + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// DiceFace draws face n (1-6) as a boxed pip grid.
func DiceFace(n int) string {
	pips, ok := dicePips[n]
	if !ok {
		return diceStyle.Render("   ?   ")
	}
	rows := make([]string, 0, 3)
	for _, row := range pips {
		var cells []string
		for _, on := range row {
			if on {
				cells = append(cells, "●")
			} else {
				cells = append(cells, " ")
			}
		}
		rows = append(rows, strings.Join(cells, " "))
	}
	return diceStyle.Render(strings.Join(rows, "\n"))
}

var dicePips = map[int][3][3]bool{
	1: {{false, false, false}, {false, true, false}, {false, false, false}},
	2: {{true, false, false}, {false, false, false}, {false, false, true}},
	3: {{true, false, false}, {false, true, false}, {false, false, true}},
	4: {{true, false, true}, {false, false, false}, {true, false, true}},
	5: {{true, false, true}, {false, true, false}, {true, false, true}},
	6: {{true, false, true}, {true, false, true}, {true, false, true}},
}

func RenderPending(items []PendingData) string {
	if len(items) == 0 {
		return "pending:\n(nothing scheduled)"
	}
	var b strings.Builder
	b.WriteString("pending:\n")
	for _, it := range items {
		b.WriteString(fmt.Sprintf("- %s [%s] @ %s\n", it.Key, it.Kind, it.FireAt))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func RenderCommandPalette(active bool, input string) string {
	if !active {
		return ""
	}
	return fmt.Sprintf("command: %s", input)
}

func RenderNotification(level string, body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return fmt.Sprintf("notification: [%s] %s", strings.ToUpper(level), body)
}

func RenderHelpPanel(data HelpPanelData) string {
	return fmt.Sprintf("help:\n%s\n%s",
		strings.Join(data.Bindings, "\n"),
		data.HelpView,
	)
}
