package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gaiypov/rabota360-billing/lib/service"
)

// HealthController : liveness/readiness probe.
type HealthController struct {
	svc *service.BillingService
}

func NewHealthController(svc *service.BillingService) *HealthController {
	return &HealthController{svc: svc}
}

// HealthCheck godoc
// @Summary      Health check
// @Description  Returns 200 when the database is reachable
// @Tags         Health
// @Success      200
// @Failure      503
// @Router       /health [get]
func (controller *HealthController) HealthCheck(c echo.Context) error {
	if err := controller.svc.DB.PingContext(c.Request().Context()); err != nil {
		c.Logger().Errorf("Health check failed: %v", err)
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.NoContent(http.StatusOK)
}
