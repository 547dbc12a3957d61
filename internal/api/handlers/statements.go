package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-ledger/internal/api/middleware"
	"github.com/dvloznov/statement-ledger/internal/gcsuploader"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// StatementsHandler enqueues asynchronous statement analyses.
type StatementsHandler struct {
	publisher jobs.Publisher
	storage   gcsuploader.StorageService
	bucket    string
}

// NewStatementsHandler creates a handler. storage and bucket may be empty,
// in which case only gs:// sources are accepted.
func NewStatementsHandler(publisher jobs.Publisher, storage gcsuploader.StorageService, bucket string) *StatementsHandler {
	return &StatementsHandler{
		publisher: publisher,
		storage:   storage,
		bucket:    bucket,
	}
}

// EnqueueStatement handles POST /api/statements. The body names either a
// gs:// prefix holding page texts, or the page texts themselves, which are
// first uploaded to the configured bucket.
func (h *StatementsHandler) EnqueueStatement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source  string      `json:"source"`
		Pages   []PageInput `json:"pages"`
		Publish bool        `json:"publish"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	log := logger.FromContext(ctx)

	switch {
	case req.Source != "" && len(req.Pages) > 0:
		middleware.WriteError(w, http.StatusBadRequest, "Provide either source or pages, not both")
		return
	case req.Source != "":
		if _, _, err := gcsuploader.ParseGCSURI(req.Source); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "source must be a gs:// URI")
			return
		}
		if !strings.HasSuffix(req.Source, "/") {
			req.Source += "/"
		}
	case len(req.Pages) > 0:
		if h.storage == nil || h.bucket == "" {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Page upload is not configured")
			return
		}
		texts := make([]string, 0, len(req.Pages))
		for _, p := range req.Pages {
			texts = append(texts, p.Text)
		}
		source, err := gcsuploader.UploadPageTexts(ctx, h.storage, h.bucket, "statements/"+uuid.NewString(), texts)
		if err != nil {
			log.Error().Err(err).Msg("Failed to upload page texts")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to store pages")
			return
		}
		req.Source = source
	default:
		middleware.WriteError(w, http.StatusBadRequest, "source or pages is required")
		return
	}

	job := &jobs.AnalyzeStatementJob{
		Source:  req.Source,
		Publish: req.Publish,
	}
	if err := h.publisher.PublishAnalyzeStatement(ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue statement job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue statement job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("source", job.Source).Msg("Statement job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"source": job.Source,
		"status": string(job.Status),
	})
}
