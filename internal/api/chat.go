package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/askdocs/askdocs/internal/log"
	"github.com/askdocs/askdocs/internal/rag"
	"github.com/askdocs/askdocs/internal/session"
)

// chatHandler serves the question answering endpoints.
type chatHandler struct {
	pipeline        Pipeline
	sessions        *session.Manager
	maxHistoryTurns int
	logger          log.Logger
}

func newChatHandler(pipeline Pipeline, sessions *session.Manager, maxHistoryTurns int, logger log.Logger) *chatHandler {
	return &chatHandler{
		pipeline:        pipeline,
		sessions:        sessions,
		maxHistoryTurns: maxHistoryTurns,
		logger:          logger,
	}
}

func (h *chatHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("GET /api/chat/stream", h.handleChatStream)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.handleDeleteSession)
}

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// sourceRef is a citation in a chat response. The chunk text is omitted;
// clients link to the file instead.
type sourceRef struct {
	FilePath string  `json:"file_path"`
	Section  string  `json:"section"`
	Score    float64 `json:"score"`
}

// chatResponse is the POST /api/chat reply.
type chatResponse struct {
	Answer    string      `json:"answer"`
	Sources   []sourceRef `json:"sources"`
	SessionID string      `json:"session_id"`
}

func toSourceRefs(sources []rag.Source) []sourceRef {
	refs := make([]sourceRef, len(sources))
	for i, s := range sources {
		refs[i] = sourceRef{FilePath: s.FilePath, Section: s.Section, Score: s.Score}
	}
	return refs
}

// handleChat answers a question synchronously. The conversation is keyed by
// session_id; omitting it starts a new session whose id comes back in the
// response.
func (h *chatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}

	sessionID := h.sessions.GetOrCreate(req.SessionID)
	history := h.sessions.History(sessionID, h.maxHistoryTurns)

	answer, err := h.pipeline.Ask(r.Context(), question, history)
	if err != nil {
		h.logger.Error("chat request failed", "error", err, "session", sessionID)
		writeError(w, http.StatusInternalServerError, "pipeline_error", "failed to generate an answer")
		return
	}

	h.sessions.Append(sessionID, rag.RoleUser, question)
	h.sessions.Append(sessionID, rag.RoleAssistant, answer.Text)

	writeJSON(w, http.StatusOK, chatResponse{
		Answer:    answer.Text,
		Sources:   toSourceRefs(answer.Sources),
		SessionID: sessionID,
	})
}

// handleChatStream answers a question over SSE.
//
// Event order: one "sources" event (always first, even when empty), zero or
// more "text" events carrying answer deltas, then "done" with the session id.
// Failures after the stream has started are reported as an "error" event
// since the 200 status is already on the wire.
func (h *chatHandler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.URL.Query().Get("question"))
	if question == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported")
		return
	}

	sessionID := h.sessions.GetOrCreate(r.URL.Query().Get("session_id"))
	history := h.sessions.History(sessionID, h.maxHistoryTurns)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	answer, err := h.pipeline.AskStream(r.Context(), question, history, func(ev rag.Event) error {
		if ev.Sources != nil {
			return writeSSE(w, flusher, "sources", toSourceRefs(ev.Sources))
		}
		return writeSSE(w, flusher, "text", ev.Delta)
	})
	if err != nil {
		h.logger.Error("chat stream failed", "error", err, "session", sessionID)
		_ = writeSSE(w, flusher, "error", map[string]string{"error": "failed to generate an answer"})
		return
	}

	h.sessions.Append(sessionID, rag.RoleUser, question)
	h.sessions.Append(sessionID, rag.RoleAssistant, answer.Text)

	_ = writeSSE(w, flusher, "done", map[string]string{"session_id": sessionID})
}

// handleDeleteSession drops a conversation and its history.
func (h *chatHandler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.sessions.Delete(id) {
		writeError(w, http.StatusNotFound, "not_found", "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Session cleared",
		"session_id": id,
	})
}

// writeSSE writes one server-sent event and flushes it.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return fmt.Errorf("writing SSE event: %w", err)
	}
	flusher.Flush()
	return nil
}
