package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/kybernus/license-api/internal/kv"
	"github.com/kybernus/license-api/internal/pkg/logger"
	"github.com/kybernus/license-api/internal/pkg/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db     *sql.DB
	store  kv.Store
	logger *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB, store kv.Store, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		store:  store,
		logger: log,
	}
}

// Healthz handles liveness probe
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string "Application is alive"
// @Router /healthz [get]
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz checks the database and the transient store
// @Summary Readiness probe
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string "Application is ready"
// @Failure 503 {object} utils.ErrorResponse "Service unavailable"
// @Router /readyz [get]
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.ErrorWithErr(err, "Database ping failed")
		utils.WriteErrorMessage(w, http.StatusServiceUnavailable, "service_unavailable", "Database connection failed")
		return
	}

	if err := h.store.Ping(ctx); err != nil {
		h.logger.ErrorWithErr(err, "Transient store ping failed")
		utils.WriteErrorMessage(w, http.StatusServiceUnavailable, "service_unavailable", "Transient store unavailable")
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "ok",
		"store":    "ok",
	})
}
