package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// ReadinessCheck is satisfied by database.HealthCheck bound to a pool.
type ReadinessCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]ReadinessCheck
}

// NewHealthHandler creates a health handler. Named checks gate readiness.
func NewHealthHandler(checks map[string]ReadinessCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	if len(h.checks) == 0 {
		return c.JSON(HealthResponse{Status: "ready"})
	}

	resp := HealthResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	status := fiber.StatusOK

	for name, check := range h.checks {
		if err := check(c.UserContext()); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = fiber.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	return c.Status(status).JSON(resp)
}
