package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coursefetch/coursefetch/internal/manager"
)

// NewRouter creates the status HTTP router: health check, Prometheus
// metrics, and a JSON snapshot of run progress.
func NewRouter(runID uuid.UUID, startedAt time.Time, snapshot func() manager.Progress) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/progress", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, progressResponse{
			RunID:     runID,
			StartedAt: startedAt,
			Uptime:    time.Since(startedAt).String(),
			Progress:  snapshot(),
		})
	})

	return r
}

type progressResponse struct {
	RunID     uuid.UUID        `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	Uptime    string           `json:"uptime"`
	Progress  manager.Progress `json:"progress"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
