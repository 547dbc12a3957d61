package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/statement-ledger/internal/api/middleware"
	infraBQ "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

const defaultRunsLimit = 50

// RunReader is the part of the run repository the API reads from.
type RunReader interface {
	ListRuns(ctx context.Context, limit int) ([]*infraBQ.AnalysisRunRow, error)
	QueryDailyRollup(ctx context.Context, runID string) ([]*infraBQ.DailyRollupRow, error)
	DeleteRun(ctx context.Context, runID string) error
}

// RunsHandler serves persisted analysis runs.
type RunsHandler struct {
	repo RunReader
}

func NewRunsHandler(repo RunReader) *RunsHandler {
	return &RunsHandler{repo: repo}
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := queryInt(r.URL.Query().Get("limit"))
	if limit == 0 {
		limit = defaultRunsLimit
	}

	rows, err := h.repo.ListRuns(ctx, limit)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	runs := make([]RunJSON, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, newRunJSON(row))
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetDailyRollup handles GET /api/runs/{id}/daily
func (h *RunsHandler) GetDailyRollup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := r.PathValue("id")

	rows, err := h.repo.QueryDailyRollup(ctx, runID)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("run_id", runID).Msg("Failed to query daily rollup")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query daily rollup")
		return
	}
	if len(rows) == 0 {
		middleware.WriteError(w, http.StatusNotFound, "No daily rollup for run")
		return
	}

	daily := make([]DailyJSON, 0, len(rows))
	for _, row := range rows {
		daily = append(daily, newStoredDailyJSON(row))
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"daily":  daily,
	})
}

// DeleteRun handles DELETE /api/runs/{id}
func (h *RunsHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := r.PathValue("id")

	if err := h.repo.DeleteRun(ctx, runID); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("run_id", runID).Msg("Failed to delete run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete run")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
