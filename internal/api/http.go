// Package api exposes the feedback store over HTTP (widget-facing
// adapter) and MCP (agent-facing tool boundary).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gosnap/gosnap/internal/feedback"
	"github.com/gosnap/gosnap/internal/schema"
	"github.com/gosnap/gosnap/internal/webhook"
)

// HTTPDeps holds dependencies for the HTTP adapter.
type HTTPDeps struct {
	Store            feedback.Store
	Dispatcher       *webhook.Dispatcher
	MaxBodyBytes     int64
	MaxCommentLength int
	AllowedOrigins   []string
}

// NewHTTPHandler builds the widget-facing HTTP API.
func NewHTTPHandler(deps HTTPDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(CORS(deps.AllowedOrigins))

	r.Get("/api/health", handleHealth)
	r.Get("/api/sessions", handleListSessions(deps))
	r.Get("/api/sessions/{id}", handleGetSession(deps))
	r.Post("/api/feedback", handleCreateFeedback(deps))
	r.Post("/api/webhook", handleWebhook(deps))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusNotFound, "Not found")
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleListSessions(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := deps.Store.ListSessions()
		if err != nil {
			internalError(w, "listing sessions", err)
			return
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

func handleGetSession(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		detail, err := deps.Store.GetSession(id)
		if errors.Is(err, feedback.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "Session not found")
			return
		}
		if err != nil {
			internalError(w, "getting session", err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func handleCreateFeedback(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req schema.CreateFeedbackRequest
		if !decodeBody(w, r, deps.MaxBodyBytes, &req) {
			return
		}

		if issues := req.Validate(deps.MaxCommentLength); issues != nil {
			validationError(w, issues)
			return
		}

		fb, err := deps.Store.CreateFeedback(req.ToInput())
		if err != nil {
			internalError(w, "creating feedback", err)
			return
		}
		writeJSON(w, http.StatusCreated, fb)
	}
}

func handleWebhook(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload webhook.SyncPayload
		if !decodeBody(w, r, deps.MaxBodyBytes, &payload) {
			return
		}

		if issues := payload.Validate(deps.MaxCommentLength); issues != nil {
			validationError(w, issues)
			return
		}

		result, err := deps.Dispatcher.Dispatch(&payload)
		if errors.Is(err, webhook.ErrBatchTooLarge) {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			internalError(w, "dispatching webhook", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// decodeBody decodes a size-capped JSON request body. On failure it
// writes the error response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, http.StatusBadRequest, fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit))
			return false
		}
		jsonError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func validationError(w http.ResponseWriter, issues []schema.Issue) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":   "Validation failed",
		"details": issues,
	})
}

func internalError(w http.ResponseWriter, op string, err error) {
	slog.Error("internal error", "op", op, "error", err)
	jsonError(w, http.StatusInternalServerError, "Internal server error")
}
