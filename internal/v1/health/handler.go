// Package health exposes liveness and readiness probe endpoints.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CatalogChecker reports whether the asset catalog has completed at least
// one load attempt. Satisfied by *catalog.Catalog.
type CatalogChecker interface {
	EverLoaded() bool
}

// Handler manages health check endpoints.
type Handler struct {
	catalog CatalogChecker
}

// NewHandler creates a new health check handler.
func NewHandler(catalog CatalogChecker) *Handler {
	return &Handler{catalog: catalog}
}

// LivenessResponse represents the liveness probe response.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles GET /healthz. Returns 200 if the process is alive, with
// no dependency checks.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness handles GET /readyz. Returns 200 only once the asset catalog has
// completed its first load attempt; 503 otherwise.
func (h *Handler) Readiness(c *gin.Context) {
	checks := make(map[string]string)
	allReady := true

	catalogStatus := "ready"
	if h.catalog == nil || !h.catalog.EverLoaded() {
		catalogStatus = "not_ready"
		allReady = false
	}
	checks["catalog"] = catalogStatus

	status := "ready"
	statusCode := http.StatusOK
	if !allReady {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
