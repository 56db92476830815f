package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shaharia-lab/signup-notifier/internal/dispatch"
	"github.com/shaharia-lab/signup-notifier/internal/notification"
)

const (
	errInvalidJSONBody  = "invalid JSON body"
	errQueueUnavailable = "notification queue unavailable, retry later"
	errSchedulingFailed = "failed to schedule notification"
)

// Server holds all dependencies for the REST API handlers.
type Server struct {
	scheduler  dispatch.Scheduler
	addressing notification.Addressing
	logger     *slog.Logger
}

// New creates a new API Server. Every accepted notification is addressed
// with addressing and handed to scheduler.
func New(scheduler dispatch.Scheduler, addressing notification.Addressing, logger *slog.Logger) *Server {
	return &Server{
		scheduler:  scheduler,
		addressing: addressing,
		logger:     logger,
	}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	r.Post("/notify", s.handleNotify)
	r.Get("/version", s.handleVersion)
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
