package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sosdesk/intake/internal/pkg/mlclient"
)

// HealthChecker reports the health of one ML gateway.
type HealthChecker interface {
	Health(ctx context.Context) (*mlclient.HealthStatus, bool)
}

// PingFunc checks a backing service. A nil PingFunc is skipped.
type PingFunc func(ctx context.Context) error

// HealthController reports database, Redis and ML gateway health.
type HealthController struct {
	database PingFunc
	cache    PingFunc
	gateways map[string]HealthChecker
}

func NewHealthController(database, cache PingFunc, gateways map[string]HealthChecker) *HealthController {
	return &HealthController{database: database, cache: cache, gateways: gateways}
}

type gatewayHealth struct {
	Healthy      bool   `json:"healthy"`
	Status       string `json:"status,omitempty"`
	ModelVersion string `json:"model_version,omitempty"`
}

// HandleHealth answers 200 while the database is reachable. Gateway and
// Redis outages are reported without failing the check.
func (hc *HealthController) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	status := fiber.StatusOK
	body := fiber.Map{"status": "up", "timestamp": time.Now().UTC().Format(time.RFC3339)}

	if hc.database != nil {
		if err := hc.database(ctx); err != nil {
			status = fiber.StatusServiceUnavailable
			body["status"] = "down"
			body["database"] = "down"
		} else {
			body["database"] = "up"
		}
	}
	if hc.cache != nil {
		if err := hc.cache(ctx); err != nil {
			body["cache"] = "down"
		} else {
			body["cache"] = "up"
		}
	}

	gateways := make(map[string]gatewayHealth, len(hc.gateways))
	for name, g := range hc.gateways {
		report, ok := g.Health(ctx)
		h := gatewayHealth{Healthy: ok}
		if report != nil {
			h.Status = report.Status
			h.ModelVersion = report.ModelVersion
		}
		gateways[name] = h
	}
	body["gateways"] = gateways

	return c.Status(status).JSON(body)
}
