package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/dailyd/internal/app"
	"github.com/sandeepkv93/dailyd/internal/config"
	"github.com/sandeepkv93/dailyd/internal/dispatch"
)

type StartResult struct {
	TaskID       string `json:"task_id"`
	StartAt      string `json:"start_at"`
	CompletionAt string `json:"completion_at"`
	OncePerDay   bool   `json:"once_per_day"`
}

type CancelResult struct {
	TaskID    string `json:"task_id"`
	Cancelled bool   `json:"cancelled"`
}

func NewStartCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start <task-id>",
		Short: "Start a task from the catalog",
		Long: `Start a task. Its days are reserved until the completion fires.

Example:
  dailyd start walk`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *app.Runtime, _ dispatch.Report) error {
				snap, err := rt.StartTask(ctx, args[0])
				if err != nil {
					return operationError("start failed", err)
				}
				res := StartResult{
					TaskID:       snap.ID,
					StartAt:      formatClock(snap.StartAt),
					CompletionAt: formatClock(snap.CompletionAt),
					OncePerDay:   snap.OncePerDay(),
				}
				return opts.formatter(cmd).Success(res, func(w io.Writer) {
					fmt.Fprintf(w, "started %s, completes %s\n", res.TaskID, res.CompletionAt)
				})
			})
		},
	}
}

func NewCancelCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel a task that has not completed yet",
		Long: `Cancel a task in progress and release its reserved days. A task that
already completed stays completed.

Example:
  dailyd cancel walk`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *app.Runtime, _ dispatch.Report) error {
				ok, err := rt.CancelTask(ctx, args[0])
				if err != nil {
					return operationError("cancel failed", err)
				}
				res := CancelResult{TaskID: args[0], Cancelled: ok}
				return opts.formatter(cmd).Success(res, func(w io.Writer) {
					if ok {
						fmt.Fprintf(w, "cancelled %s\n", res.TaskID)
					} else {
						fmt.Fprintf(w, "%s is not in progress\n", res.TaskID)
					}
				})
			})
		},
	}
}

// TasksOptions holds flags for the tasks command.
type TasksOptions struct {
	*RootOptions
	YAML bool
}

func NewTasksCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TasksOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the task catalog",
		Long: `List the configured task catalog. With --yaml, print it as a catalog
file that can be edited and passed back with --catalog.

Example:
  dailyd tasks --yaml > tasks.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			catalog, err := opts.loadCatalog(cfg)
			if err != nil {
				return err
			}
			if opts.YAML {
				data, err := config.MarshalCatalog(catalog)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to encode catalog", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			defs := catalog.Tasks()
			entries := make([]config.CatalogEntry, 0, len(defs))
			for _, def := range defs {
				entries = append(entries, config.EntryFor(def))
			}
			return opts.formatter(cmd).Success(entries, func(w io.Writer) {
				for _, e := range entries {
					fmt.Fprintf(w, "%-10s %-8s %d day(s)  %s\n", e.ID, e.Completion, e.SubtractedDays, e.Title)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&opts.YAML, "yaml", false, "print the catalog as YAML")

	return cmd
}
