package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dvloznov/statement-ledger/internal/api/middleware"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

// MaxRequestBytes bounds request bodies carrying page texts.
const MaxRequestBytes = 10 << 20

// PageInput is one page of recognized text in a request body.
type PageInput struct {
	Name string `json:"name,omitempty"`
	Text string `json:"text"`
}

func pagesFromInput(in []PageInput) []pipeline.Page {
	pages := make([]pipeline.Page, 0, len(in))
	for i, p := range in {
		name := p.Name
		if name == "" {
			name = pipeline.PageFileName(i + 1)
		}
		pages = append(pages, pipeline.Page{Index: i + 1, Name: name, Text: p.Text})
	}
	return pages
}

// AnalyzeHandler runs the pipeline synchronously over posted page texts.
type AnalyzeHandler struct {
	opts []pipeline.Option
}

func NewAnalyzeHandler(opts ...pipeline.Option) *AnalyzeHandler {
	return &AnalyzeHandler{opts: opts}
}

// Analyze handles POST /api/analyze
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pages []PageInput `json:"pages"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	log := logger.FromContext(ctx)

	res, err := pipeline.Run(ctx, pagesFromInput(req.Pages), h.opts...)
	if err != nil {
		log.Error().Err(err).Msg("Analysis aborted")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Analysis aborted")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, NewAnalysisResponse(res))
}
