package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/askdocs/askdocs/internal/log"
	"github.com/askdocs/askdocs/internal/rag"
)

// searchHandler exposes retrieval without generation, mainly for debugging
// what the pipeline would cite for a given query.
type searchHandler struct {
	pipeline Pipeline
	logger   log.Logger
}

func newSearchHandler(pipeline Pipeline, logger log.Logger) *searchHandler {
	return &searchHandler{pipeline: pipeline, logger: logger}
}

func (h *searchHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/search", h.handleSearch)
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type searchResponse struct {
	Sources []rag.Source `json:"sources"`
}

func (h *searchHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	var opts []rag.AskOption
	if req.TopK > 0 {
		opts = append(opts, rag.WithTopK(req.TopK))
	}

	sources, err := h.pipeline.Search(r.Context(), query, opts...)
	if err != nil {
		h.logger.Error("search request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search_error", "failed to search the index")
		return
	}

	if sources == nil {
		sources = []rag.Source{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Sources: sources})
}
