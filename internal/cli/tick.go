package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/dailyd/internal/app"
	"github.com/sandeepkv93/dailyd/internal/dispatch"
)

type TickResult struct {
	Delivered int      `json:"delivered"`
	Skipped   int      `json:"skipped"`
	Dropped   int      `json:"dropped"`
	Rounds    int      `json:"rounds"`
	Fired     []string `json:"fired"`
}

func NewTickCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Deliver every due notification and exit",
		Long: `Deliver every notification whose fire time has passed, then exit.

Suitable for hosts that run dailyd from cron instead of keeping it resident.

Example:
  dailyd tick --db ~/.local/share/dailyd.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *app.Runtime, boot dispatch.Report) error {
				report, err := rt.Tick(ctx)
				if err != nil {
					return operationError("tick failed", err)
				}
				return writeTick(opts.formatter(cmd), mergeReports(boot, report))
			})
		},
	}
}

func writeTick(out *OutputFormatter, report dispatch.Report) error {
	res := TickResult{
		Delivered: report.Delivered,
		Skipped:   report.Skipped,
		Dropped:   report.Dropped,
		Rounds:    report.Rounds,
		Fired:     make([]string, 0, len(report.Fired)),
	}
	for _, n := range report.Fired {
		res.Fired = append(res.Fired, n.Key)
	}
	return out.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "delivered %d, skipped %d, dropped %d in %d rounds\n", res.Delivered, res.Skipped, res.Dropped, res.Rounds)
		for _, key := range res.Fired {
			fmt.Fprintf(w, "  fired %s\n", key)
		}
	})
}
