package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/interfaces/http/dto"
)

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// SystemHandler serves health, readiness and build information
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	platforms []connection.PlatformCode
	checks    map[string]ReadinessCheck
	timeout   time.Duration
	startTime time.Time
}

// NewSystemHandler creates a SystemHandler. checks are run on every readiness probe.
func NewSystemHandler(name, version string, platforms []connection.PlatformCode, checks map[string]ReadinessCheck) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		platforms: platforms,
		checks:    checks,
		timeout:   2 * time.Second,
		startTime: time.Now(),
	}
}

// SystemInfoResponse describes the running service
type SystemInfoResponse struct {
	Name      string   `json:"name" example:"connhub"`
	Version   string   `json:"version" example:"1.0.0"`
	GoVersion string   `json:"go_version" example:"go1.25.5"`
	Uptime    string   `json:"uptime" example:"1h30m45s"`
	Platforms []string `json:"platforms"`
}

// Health godoc
// @ID           health
// @Summary      Liveness probe
// @Tags         system
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Ready godoc
// @ID           ready
// @Summary      Readiness probe
// @Description  Checks the database and the correlation store
// @Tags         system
// @Produce      json
// @Success      200 {object} map[string]any
// @Failure      503 {object} map[string]any
// @Router       /ready [get]
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}

// Info godoc
// @ID           systemInfo
// @Summary      Service information
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=SystemInfoResponse}
// @Router       /api/v1/system/info [get]
func (h *SystemHandler) Info(c *gin.Context) {
	platforms := make([]string, 0, len(h.platforms))
	for _, p := range h.platforms {
		platforms = append(platforms, p.String())
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Platforms: platforms,
	}))
}
