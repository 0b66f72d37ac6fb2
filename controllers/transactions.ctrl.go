package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gaiypov/rabota360-billing/db/models"
	"github.com/gaiypov/rabota360-billing/lib/responses"
	"github.com/gaiypov/rabota360-billing/lib/service"
	"github.com/gaiypov/rabota360-billing/lib/tokens"
)

// TransactionsController : TransactionsController struct
type TransactionsController struct {
	svc *service.BillingService
}

func NewTransactionsController(svc *service.BillingService) *TransactionsController {
	return &TransactionsController{svc: svc}
}

// GetTransactions godoc
// @Summary      Retrieve wallet history
// @Description  Returns the account's ledger entries, newest first
// @Accept       json
// @Produce      json
// @Tags         Wallet
// @Param        limit   query     int     false  "page size (max 100)"
// @Param        offset  query     int     false  "page offset"
// @Param        type    query     string  false  "deposit|payment|refund|withdrawal"
// @Param        status  query     string  false  "pending|completed|failed|cancelled"
// @Success      200  {object}  []models.Transaction
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /billing/wallet/transactions [get]
// @Security     OAuth2Password
func (controller *TransactionsController) GetTransactions(c echo.Context) error {
	accountId := tokens.AccountIdFromContext(c)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	transactions, err := controller.svc.TransactionsForAccount(c.Request().Context(), accountId, service.TransactionFilter{
		Type:   c.QueryParam("type"),
		Status: c.QueryParam("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		c.Logger().Errorf("Error fetching transactions for account_id:%v error: %v", accountId, err)
		return c.JSON(responses.GeneralServerError.HttpStatusCode, responses.GeneralServerError)
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	return c.JSON(http.StatusOK, transactions)
}
