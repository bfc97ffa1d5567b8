package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mitto/internal/models"
)

// Pinger is the slice of the metadata store the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ApiHandler serves liveness and health endpoints.
type ApiHandler struct {
	db     Pinger
	logger arbor.ILogger
}

// NewApiHandler creates the API handler.
func NewApiHandler(db Pinger, logger arbor.ILogger) *ApiHandler {
	return &ApiHandler{
		db:     db,
		logger: logger,
	}
}

// PingHandler answers liveness probes.
func (h *ApiHandler) PingHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, models.Ping{Message: "pong"})
}

// HealthHandler reports 200 while the metadata store answers, 503 otherwise.
func (h *ApiHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error().Err(err).Msg("Health check failed")
		WriteJSON(w, http.StatusServiceUnavailable, models.Health{
			Status:   "unhealthy",
			Database: "unreachable",
		})
		return
	}

	WriteJSON(w, http.StatusOK, models.Health{
		Status:   "healthy",
		Database: "connected",
	})
}
