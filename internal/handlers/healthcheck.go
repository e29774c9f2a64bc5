package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/darshan-hindocha/plexe-technical/internal/services"
	"github.com/darshan-hindocha/plexe-technical/internal/types"
)

func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

type StatusHandler struct {
	registry services.RegistryService
}

func NewStatusHandler(registry services.RegistryService) *StatusHandler {
	return &StatusHandler{registry: registry}
}

// GET /api/v1/status
func (h *StatusHandler) Status(c *gin.Context) {
	counts, err := h.registry.CountByStatus(c.Request.Context())
	if err != nil {
		RespondFromError(c, err)
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	latest, err := h.registry.List(c.Request.Context(), true)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"status":          "healthy",
		"total_models":    total,
		"deployed_models": counts[types.ModelStatusDeployed],
		"latest_models":   len(latest),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}
