package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/dailyd/internal/app"
	"github.com/sandeepkv93/dailyd/internal/dispatch"
	"github.com/sandeepkv93/dailyd/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [task-id]",
		Short: "Show counters, task phases, rolls and pending notifications",
		Long: `Show the current counters, each task's phase, in-flight die rolls and
pending notifications. With a task id, show only that task.

Example:
  dailyd status
  dailyd status walk --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *app.Runtime, _ dispatch.Report) error {
				snap, err := rt.Snapshot(ctx)
				if err != nil {
					return operationError("failed to read status", err)
				}
				out := opts.formatter(cmd)
				if len(args) == 1 {
					task, ok := snap.Task(args[0])
					if !ok {
						return WrapExitError(ExitFailure, "status failed", fmt.Errorf("%w: %s", app.ErrUnknownTask, args[0]))
					}
					return out.Success(task, func(w io.Writer) { writeTaskText(w, task, snap.Now.Location()) })
				}
				return out.Success(snap, func(w io.Writer) { writeStatusText(w, snap) })
			})
		},
	}
}

// Times are shown in the clock's zone; stored fire times come back in Local.
func writeStatusText(w io.Writer, snap app.Snapshot) {
	loc := snap.Now.Location()
	fmt.Fprintf(w, "days remaining: %d\n", snap.DaysRemaining)
	fmt.Fprintf(w, "days reserved:  %d\n", snap.DaysReserved)
	fmt.Fprintf(w, "projected:      %d\n", snap.Projected)
	if snap.NextReset != nil {
		fmt.Fprintf(w, "next reset:     %s\n", formatClock(snap.NextReset.In(loc)))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TASK", "TITLE", "PHASE", "COMPLETION", "DAYS", "DUE")
	for _, task := range snap.Tasks {
		t.Row(task.ID, task.Title, string(task.Phase), task.Completion, fmt.Sprint(task.SubtractedDays), dueLabel(task, loc))
	}
	fmt.Fprintln(w, t.String())

	for _, r := range snap.Rolls {
		state := fmt.Sprintf("rolling, %d steps left", r.Remaining)
		if r.Finished {
			state = "landed"
		}
		fmt.Fprintf(w, "roll %s: face %d (%s)\n", r.ID, r.Position, state)
	}
	for _, p := range snap.Pending {
		fmt.Fprintf(w, "pending %s at %s\n", p.Key, formatClock(p.FireAt.In(loc)))
	}
}

func writeTaskText(w io.Writer, task app.TaskView, loc *time.Location) {
	fmt.Fprintf(w, "%s (%s): %s\n", task.Title, task.ID, task.Phase)
	if due := dueLabel(task, loc); due != "" {
		fmt.Fprintf(w, "  %s\n", due)
	}
}

func dueLabel(task app.TaskView, loc *time.Location) string {
	switch {
	case task.CompletionAt != nil && task.Phase == model.PhaseCompleting:
		return "completes " + formatClock(task.CompletionAt.In(loc))
	case task.CooldownResetAt != nil && task.Phase == model.PhaseCooldown:
		return "resets " + formatClock(task.CooldownResetAt.In(loc))
	default:
		return ""
	}
}

func formatClock(t time.Time) string {
	return t.Format(timeLayout)
}
