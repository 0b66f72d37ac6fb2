package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gaiypov/rabota360-billing/db/models"
	"github.com/gaiypov/rabota360-billing/lib/responses"
	"github.com/gaiypov/rabota360-billing/lib/service"
)

// PricingController : serves the public pricing plan list.
type PricingController struct {
	svc *service.BillingService
}

func NewPricingController(svc *service.BillingService) *PricingController {
	return &PricingController{svc: svc}
}

// GetPricing godoc
// @Summary      List pricing plans
// @Description  Returns the active pricing plans, prices in kopecks
// @Accept       json
// @Produce      json
// @Tags         Pricing
// @Success      200  {object}  []models.PricingPlan
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /billing/pricing [get]
func (controller *PricingController) GetPricing(c echo.Context) error {
	plans := []models.PricingPlan{}
	err := controller.svc.DB.NewSelect().
		Model(&plans).
		Where("is_active = ?", true).
		Order("price ASC").
		Scan(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("Error fetching pricing plans: %v", err)
		return c.JSON(responses.GeneralServerError.HttpStatusCode, responses.GeneralServerError)
	}
	return c.JSON(http.StatusOK, plans)
}
