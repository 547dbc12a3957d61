package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-ledger/internal/api/middleware"
	"github.com/dvloznov/statement-ledger/internal/gcsuploader"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/observability"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

// Deps are the collaborators the HTTP surface needs. Runs and Storage are
// optional; their routes are not registered (or reject uploads) when nil.
type Deps struct {
	Log        zerolog.Logger
	Publisher  jobs.Publisher
	JobStore   jobs.JobStore
	Runs       RunReader
	Storage    gcsuploader.StorageService
	Bucket     string
	RunOptions []pipeline.Option
}

// NewRouter registers every route and wraps the mux in the middleware stack.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	analyze := NewAnalyzeHandler(d.RunOptions...)
	statements := NewStatementsHandler(d.Publisher, d.Storage, d.Bucket)
	jobsHandler := NewJobsHandler(d.JobStore)

	mux.HandleFunc("POST /api/analyze", analyze.Analyze)
	mux.HandleFunc("POST /api/statements", statements.EnqueueStatement)
	mux.HandleFunc("GET /api/jobs", jobsHandler.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", jobsHandler.GetJob)

	if d.Runs != nil {
		runs := NewRunsHandler(d.Runs)
		mux.HandleFunc("GET /api/runs", runs.ListRuns)
		mux.HandleFunc("GET /api/runs/{id}/daily", runs.GetDailyRollup)
		mux.HandleFunc("DELETE /api/runs/{id}", runs.DeleteRun)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Metrics sits directly on the mux so it sees the matched pattern.
	return middleware.Chain(mux,
		middleware.Recovery(d.Log),
		middleware.RequestID,
		middleware.Logger(d.Log),
		middleware.CORS,
		observability.Metrics,
	)
}
