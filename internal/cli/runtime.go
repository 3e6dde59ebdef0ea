package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/dailyd/internal/app"
	"github.com/sandeepkv93/dailyd/internal/config"
	"github.com/sandeepkv93/dailyd/internal/dispatch"
	"github.com/sandeepkv93/dailyd/internal/lifecycle"
	"github.com/sandeepkv93/dailyd/internal/model"
	"github.com/sandeepkv93/dailyd/internal/roll"
)

type runtimeOpener func(cfg config.RuntimeConfig, catalog *config.Catalog, logger *slog.Logger) (*app.Runtime, error)

func defaultOpener(cfg config.RuntimeConfig, catalog *config.Catalog, logger *slog.Logger) (*app.Runtime, error) {
	return app.New(cfg, catalog, app.WithLogger(logger))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// loadConfig layers the global flags over the file, .env and env config.
func (o *RootOptions) loadConfig() (config.RuntimeConfig, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigPath: o.ConfigPath})
	if err != nil {
		return config.RuntimeConfig{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}
	if o.CatalogPath != "" {
		cfg.CatalogPath = o.CatalogPath
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func (o *RootOptions) loadCatalog(cfg config.RuntimeConfig) (*config.Catalog, error) {
	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load task catalog", err)
	}
	return catalog, nil
}

// openRuntime builds and boots the runtime. Boot already delivers whatever
// came due while nothing was running.
func (o *RootOptions) openRuntime(ctx context.Context, cfg config.RuntimeConfig, logger *slog.Logger) (*app.Runtime, dispatch.Report, error) {
	catalog, err := o.loadCatalog(cfg)
	if err != nil {
		return nil, dispatch.Report{}, err
	}
	open := o.opener
	if open == nil {
		open = defaultOpener
	}
	rt, err := open(cfg, catalog, logger)
	if err != nil {
		return nil, dispatch.Report{}, WrapExitError(ExitCommandError, "failed to open runtime", err)
	}
	report, err := rt.Boot(ctx)
	if err != nil {
		_ = rt.Close()
		return nil, dispatch.Report{}, WrapExitError(ExitCommandError, "failed to boot runtime", err)
	}
	return rt, report, nil
}

type runtimeFunc func(ctx context.Context, rt *app.Runtime, boot dispatch.Report) error

// withRuntime runs fn against a booted runtime that logs to stderr.
func (o *RootOptions) withRuntime(cmd *cobra.Command, fn runtimeFunc) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, boot, err := o.openRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			logger.Error("error closing runtime", "error", closeErr)
		}
	}()
	return fn(ctx, rt, boot)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// operationError maps rejected operations to ExitFailure and everything
// else to ExitCommandError.
func operationError(message string, err error) error {
	switch {
	case errors.Is(err, app.ErrUnknownTask),
		errors.Is(err, lifecycle.ErrTaskNotIdle),
		errors.Is(err, lifecycle.ErrInvalidRequest),
		errors.Is(err, roll.ErrInvalidRoll):
		return WrapExitError(ExitFailure, message, err)
	default:
		return WrapExitError(ExitCommandError, message, err)
	}
}

func mergeReports(a, b dispatch.Report) dispatch.Report {
	return dispatch.Report{
		Delivered: a.Delivered + b.Delivered,
		Skipped:   a.Skipped + b.Skipped,
		Dropped:   a.Dropped + b.Dropped,
		Redraws:   a.Redraws + b.Redraws,
		Rounds:    a.Rounds + b.Rounds,
		Fired:     append(append([]model.Notification(nil), a.Fired...), b.Fired...),
	}
}
