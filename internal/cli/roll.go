package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/dailyd/internal/app"
	"github.com/sandeepkv93/dailyd/internal/dispatch"
	"github.com/sandeepkv93/dailyd/internal/views"
)

// RollOptions holds flags for the roll command.
type RollOptions struct {
	*RootOptions
	Follow bool
}

type RollResult struct {
	RollID    string `json:"roll_id"`
	Final     int    `json:"final"`
	Position  int    `json:"position"`
	Remaining int    `json:"remaining"`
	Finished  bool   `json:"finished"`
}

func NewRollCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RollOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "roll <roll-id> [face]",
		Short: "Roll a die that cycles through faces before landing",
		Long: `Start a die-roll animation. The die steps through faces 1-6 with
shrinking delays and lands on face, or on a random face when omitted.

Example:
  dailyd roll d1 4 --follow`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			final := 0
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return NewExitError(ExitCommandError, fmt.Sprintf("invalid face %q", args[1]))
				}
				final = n
			}
			return opts.withRuntime(cmd, func(ctx context.Context, rt *app.Runtime, _ dispatch.Report) error {
				return runRoll(ctx, cmd, opts, rt, args[0], final)
			})
		},
	}

	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "keep running until the die lands")

	return cmd
}

func runRoll(ctx context.Context, cmd *cobra.Command, opts *RollOptions, rt *app.Runtime, id string, final int) error {
	out := opts.formatter(cmd)

	redraws := make(chan struct{}, 1)
	if opts.Follow {
		rt.SetPresenter(dispatch.PresenterFunc(func() {
			select {
			case redraws <- struct{}{}:
			default:
			}
		}))
	}

	state, err := rt.Roll(ctx, id, final)
	if err != nil {
		return operationError("roll failed", err)
	}
	res := RollResult{RollID: state.ID, Final: state.Final, Position: state.Position, Remaining: state.Remaining, Finished: state.Finished}
	if !opts.Follow {
		return out.Success(res, func(w io.Writer) {
			fmt.Fprintf(w, "rolling %s: %d steps\n", res.RollID, res.Remaining)
		})
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = rt.Run(runCtx) }()

	last := -1
	for {
		snap, err := rt.Snapshot(ctx)
		if err != nil {
			return operationError("roll failed", err)
		}
		for _, r := range snap.Rolls {
			if r.ID != id {
				continue
			}
			res = RollResult{RollID: r.ID, Final: r.Final, Position: r.Position, Remaining: r.Remaining, Finished: r.Finished}
		}
		if res.Position != last && opts.Format == "text" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", id, res.Position)
			last = res.Position
		}
		if res.Finished {
			break
		}
		select {
		case <-redraws:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return out.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "%s landed on %d\n%s\n", res.RollID, res.Position, views.DiceFace(res.Position))
	})
}
