package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gaiypov/rabota360-billing/gateway"
	"github.com/gaiypov/rabota360-billing/lib/responses"
	"github.com/gaiypov/rabota360-billing/lib/service"
)

// WebhookController : handles asynchronous payment callbacks from the
// gateways. Unauthenticated, the signature inside the payload is the proof.
type WebhookController struct {
	svc *service.BillingService
}

func NewWebhookController(svc *service.BillingService) *WebhookController {
	return &WebhookController{svc: svc}
}

// HandleWebhook godoc
// @Summary      Payment gateway callback
// @Description  Verifies the provider signature and settles the referenced transaction exactly once
// @Accept       json
// @Produce      plain
// @Tags         Payment
// @Param        gateway  path  string  true  "Gateway name (tinkoff|alfabank)"
// @Success      200  {string}  string  "OK"
// @Failure      401  {object}  responses.ErrorResponse
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /billing/payment/webhook/{gateway} [post]
func (controller *WebhookController) HandleWebhook(c echo.Context) error {
	gatewayName := c.Param("gateway")
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(responses.BadArgumentsError.HttpStatusCode, responses.BadArgumentsError)
	}

	txn, err := controller.svc.ProcessGatewayWebhook(c.Request().Context(), gatewayName, payload)
	if err != nil {
		var mismatch *service.AmountMismatchError
		switch {
		case errors.As(err, &mismatch):
			// committed as FAILED and flagged for review; the gateway
			// still gets a 200 so it stops retrying
			c.Logger().Errorf("Flagged for review: %v", mismatch)
			return c.String(http.StatusOK, "OK")
		case errors.Is(err, gateway.ErrBadSignature):
			c.Logger().Errorf("Rejected %s webhook with bad signature from %s", gatewayName, c.RealIP())
			return c.JSON(responses.UnauthenticatedWebhookError.HttpStatusCode, responses.UnauthenticatedWebhookError)
		case errors.Is(err, service.ErrUnknownGateway):
			return c.JSON(responses.UnknownGatewayError.HttpStatusCode, responses.UnknownGatewayError)
		case errors.Is(err, service.ErrTransactionNotFound):
			return c.JSON(responses.TransactionNotFoundError.HttpStatusCode, responses.TransactionNotFoundError)
		}
		c.Logger().Errorf("Failed to process %s webhook: %v", gatewayName, err)
		return c.JSON(responses.GeneralServerError.HttpStatusCode, responses.GeneralServerError)
	}

	c.Logger().Infof("Processed %s webhook for transaction %s, status %s", gatewayName, txn.ID, txn.Status)
	// Tinkoff in particular requires the literal body OK to stop retrying
	return c.String(http.StatusOK, "OK")
}
