package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gaiypov/rabota360-billing/lib/responses"
	"github.com/gaiypov/rabota360-billing/lib/service"
	"github.com/gaiypov/rabota360-billing/lib/tokens"
)

// BalanceController : BalanceController struct
type BalanceController struct {
	svc *service.BillingService
}

func NewBalanceController(svc *service.BillingService) *BalanceController {
	return &BalanceController{svc: svc}
}

type BalanceResponse struct {
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
	Unit     string `json:"unit"`
}

// Balance godoc
// @Summary      Retrieve balance
// @Description  Current account's wallet balance in kopecks
// @Accept       json
// @Produce      json
// @Tags         Wallet
// @Success      200  {object}  BalanceResponse
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /billing/wallet/balance [get]
// @Security     OAuth2Password
func (controller *BalanceController) Balance(c echo.Context) error {
	accountId := tokens.AccountIdFromContext(c)
	wallet, err := controller.svc.GetOrCreateWallet(c.Request().Context(), accountId)
	if err != nil {
		c.Logger().Errorf("Error fetching wallet for account_id:%v error: %v", accountId, err)
		return c.JSON(responses.GeneralServerError.HttpStatusCode, responses.GeneralServerError)
	}
	return c.JSON(http.StatusOK, &BalanceResponse{
		Balance:  wallet.Balance,
		Currency: wallet.Currency,
		Unit:     "kopeck",
	})
}
