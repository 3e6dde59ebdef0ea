package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/dailyd/internal/app"
	"github.com/sandeepkv93/dailyd/internal/lifecycle"
	"github.com/sandeepkv93/dailyd/internal/roll"
)

type StartTaskResponse struct {
	TaskID       string    `json:"task_id"`
	StartAt      time.Time `json:"start_at"`
	CompletionAt time.Time `json:"completion_at"`
	OncePerDay   bool      `json:"once_per_day"`
}

type CancelTaskResponse struct {
	TaskID    string `json:"task_id"`
	Cancelled bool   `json:"cancelled"`
}

type RollRequest struct {
	Final int `json:"final"`
}

type RollResponse struct {
	RollID    string `json:"roll_id"`
	Final     int    `json:"final"`
	Position  int    `json:"position"`
	Remaining int    `json:"remaining"`
}

type TickResponse struct {
	Delivered int      `json:"delivered"`
	Skipped   int      `json:"skipped"`
	Dropped   int      `json:"dropped"`
	Redraws   int      `json:"redraws"`
	Rounds    int      `json:"rounds"`
	Fired     []string `json:"fired"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.logger().Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrUnknownTask):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrTaskNotIdle):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrInvalidRequest), errors.Is(err, roll.ErrInvalidRoll):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Runtime.Snapshot(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *App) tickHandler(w http.ResponseWriter, r *http.Request) {
	report, err := a.Runtime.Tick(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	res := TickResponse{
		Delivered: report.Delivered,
		Skipped:   report.Skipped,
		Dropped:   report.Dropped,
		Redraws:   report.Redraws,
		Rounds:    report.Rounds,
		Fired:     make([]string, 0, len(report.Fired)),
	}
	for _, n := range report.Fired {
		res.Fired = append(res.Fired, n.Key)
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *App) startTaskHandler(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	if taskID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task_id required"})
		return
	}
	snap, err := a.Runtime.StartTask(r.Context(), taskID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StartTaskResponse{
		TaskID:       snap.ID,
		StartAt:      snap.StartAt,
		CompletionAt: snap.CompletionAt,
		OncePerDay:   snap.OncePerDay(),
	})
}

func (a *App) cancelTaskHandler(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	if taskID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task_id required"})
		return
	}
	ok, err := a.Runtime.CancelTask(r.Context(), taskID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CancelTaskResponse{TaskID: taskID, Cancelled: ok})
}

// rollHandler accepts an empty body for a random face.
func (a *App) rollHandler(w http.ResponseWriter, r *http.Request) {
	rollID := chi.URLParam(r, "roll_id")
	if rollID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "roll_id required"})
		return
	}
	var req RollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	state, err := a.Runtime.Roll(r.Context(), rollID, req.Final)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RollResponse{
		RollID:    state.ID,
		Final:     state.Final,
		Position:  state.Position,
		Remaining: state.Remaining,
	})
}
