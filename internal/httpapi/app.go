package httpapi

import (
	"context"
	"log/slog"

	"github.com/sandeepkv93/dailyd/internal/app"
	"github.com/sandeepkv93/dailyd/internal/dispatch"
	"github.com/sandeepkv93/dailyd/internal/model"
)

// Service is the runtime surface the API exposes. *app.Runtime satisfies it.
type Service interface {
	Snapshot(ctx context.Context) (app.Snapshot, error)
	StartTask(ctx context.Context, taskID string) (model.TaskSnapshot, error)
	CancelTask(ctx context.Context, taskID string) (bool, error)
	Roll(ctx context.Context, rollID string, final int) (model.Roll, error)
	Tick(ctx context.Context) (dispatch.Report, error)
}

type App struct {
	Runtime Service
	Logger  *slog.Logger
}

func (a *App) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}
