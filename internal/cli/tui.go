package cli

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/dailyd/internal/dispatch"
	"github.com/sandeepkv93/dailyd/internal/update"
)

func NewTUICommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the interactive terminal UI",
		Long: `Run the interactive terminal UI. Logs go to log_file so they do not
corrupt the screen.

Keys: j/k move, s start, c cancel, r roll, t tick, / command, ? help, q quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open log file", err)
			}
			defer logFile.Close()
			logger := newLogger(logFile, cfg.LogLevel)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			rt, boot, err := opts.openRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := rt.Close(); closeErr != nil {
					logger.Error("error closing runtime", "error", closeErr)
				}
			}()
			logger.Info("tui starting", "db", cfg.DBPath, "delivered_on_boot", boot.Delivered)

			program := tea.NewProgram(update.NewModel(rt, update.WithContext(ctx)), tea.WithAltScreen(), tea.WithContext(ctx))
			// The presenter runs under the runtime lock, so Send must not block it.
			rt.SetPresenter(dispatch.PresenterFunc(func() {
				go program.Send(update.RedrawMsg{})
			}))
			if _, err := program.Run(); err != nil {
				return WrapExitError(ExitFailure, "tui failed", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "bye")
			return nil
		},
	}
}
