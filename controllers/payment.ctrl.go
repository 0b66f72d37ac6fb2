package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/gaiypov/rabota360-billing/db/models"
	"github.com/gaiypov/rabota360-billing/gateway"
	"github.com/gaiypov/rabota360-billing/lib/responses"
	"github.com/gaiypov/rabota360-billing/lib/service"
	"github.com/gaiypov/rabota360-billing/lib/tokens"
)

// PaymentController : PaymentController struct
type PaymentController struct {
	svc *service.BillingService
}

func NewPaymentController(svc *service.BillingService) *PaymentController {
	return &PaymentController{svc: svc}
}

type InitPaymentRequestBody struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Gateway     string `json:"gateway" validate:"required"`
	Description string `json:"description"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone"`
}

type InitPaymentResponseBody struct {
	TransactionID string `json:"transaction_id"`
	PaymentURL    string `json:"payment_url,omitempty"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
}

type PaymentStatusResponseBody struct {
	TransactionID string     `json:"transaction_id"`
	Status        string     `json:"status"`
	Amount        int64      `json:"amount"`
	Gateway       string     `json:"gateway"`
	PaymentURL    string     `json:"payment_url,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// InitPayment godoc
// @Summary      Initiate a wallet deposit
// @Description  Records a pending deposit and registers the order with the chosen payment gateway
// @Accept       json
// @Produce      json
// @Tags         Payment
// @Param        InitPaymentRequestBody  body      InitPaymentRequestBody  true  "Deposit to initiate"
// @Success      200  {object}  InitPaymentResponseBody
// @Success      202  {object}  InitPaymentResponseBody
// @Failure      400  {object}  responses.ErrorResponse
// @Failure      502  {object}  responses.ErrorResponse
// @Router       /billing/payment/init [post]
// @Security     OAuth2Password
func (controller *PaymentController) InitPayment(c echo.Context) error {
	accountId := tokens.AccountIdFromContext(c)
	var body InitPaymentRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load init payment request body: %v", err)
		return c.JSON(responses.BadArgumentsError.HttpStatusCode, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid init payment request body: %v", err)
		return c.JSON(responses.BadArgumentsError.HttpStatusCode, responses.BadArgumentsError)
	}

	txn, err := controller.svc.InitDeposit(c.Request().Context(), accountId, body.Amount, body.Gateway, body.Description, body.Email, body.Phone)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDepositTooSmall):
			return c.JSON(responses.DepositTooSmallError.HttpStatusCode, responses.DepositTooSmallError)
		case errors.Is(err, service.ErrUnknownGateway):
			return c.JSON(responses.UnknownGatewayError.HttpStatusCode, responses.UnknownGatewayError)
		case errors.Is(err, service.ErrGatewayTimeout):
			// unknown outcome: the deposit stays pending and resolves
			// through webhook or poll, the client should retry the
			// status endpoint
			return c.JSON(http.StatusAccepted, &InitPaymentResponseBody{
				TransactionID: txn.ID,
				Amount:        txn.Amount,
				Status:        txn.Status,
			})
		}
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) {
			c.Logger().Errorf("Gateway refused deposit for account_id:%v error: %v", accountId, err)
			return c.JSON(responses.GatewayError.HttpStatusCode, responses.GatewayError)
		}
		c.Logger().Errorf("Failed to init deposit for account_id:%v error: %v", accountId, err)
		return c.JSON(responses.GeneralServerError.HttpStatusCode, responses.GeneralServerError)
	}

	return c.JSON(http.StatusOK, &InitPaymentResponseBody{
		TransactionID: txn.ID,
		PaymentURL:    service.PaymentURL(txn),
		Amount:        txn.Amount,
		Status:        txn.Status,
	})
}

// Status godoc
// @Summary      Retrieve payment status
// @Description  Returns the current state of one of the account's transactions
// @Accept       json
// @Produce      json
// @Tags         Payment
// @Param        transaction_id  path      string  true  "Transaction ID"
// @Success      200  {object}  PaymentStatusResponseBody
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /billing/payment/{transaction_id}/status [get]
// @Security     OAuth2Password
func (controller *PaymentController) Status(c echo.Context) error {
	accountId := tokens.AccountIdFromContext(c)
	txn, err := controller.svc.PaymentStatus(c.Request().Context(), accountId, c.Param("transaction_id"))
	if err != nil {
		if errors.Is(err, service.ErrTransactionNotFound) {
			return c.JSON(responses.TransactionNotFoundError.HttpStatusCode, responses.TransactionNotFoundError)
		}
		c.Logger().Errorf("Error fetching transaction for account_id:%v error: %v", accountId, err)
		return c.JSON(responses.GeneralServerError.HttpStatusCode, responses.GeneralServerError)
	}
	return c.JSON(http.StatusOK, paymentStatusResponse(txn))
}

// QR godoc
// @Summary      Payment URL QR code
// @Description  Returns the pending deposit's payment url as a PNG QR code
// @Produce      png
// @Tags         Payment
// @Param        transaction_id  path      string  true  "Transaction ID"
// @Success      200  {string}  binary  "PNG image"
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /billing/payment/{transaction_id}/qr [get]
// @Security     OAuth2Password
func (controller *PaymentController) QR(c echo.Context) error {
	accountId := tokens.AccountIdFromContext(c)
	txn, err := controller.svc.PaymentStatus(c.Request().Context(), accountId, c.Param("transaction_id"))
	if err != nil {
		if errors.Is(err, service.ErrTransactionNotFound) {
			return c.JSON(responses.TransactionNotFoundError.HttpStatusCode, responses.TransactionNotFoundError)
		}
		c.Logger().Errorf("Error fetching transaction for account_id:%v error: %v", accountId, err)
		return c.JSON(responses.GeneralServerError.HttpStatusCode, responses.GeneralServerError)
	}
	url := service.PaymentURL(txn)
	if url == "" {
		return c.JSON(responses.TransactionNotFoundError.HttpStatusCode, responses.TransactionNotFoundError)
	}
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		c.Logger().Errorf("Failed to encode payment url as qr: %v", err)
		return c.JSON(responses.GeneralServerError.HttpStatusCode, responses.GeneralServerError)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

type RefundRequestBody struct {
	Amount int64 `json:"amount" validate:"omitempty,gt=0"`
}

// Refund godoc
// @Summary      Refund a completed deposit
// @Description  Sends a refund order to the provider and records the compensating withdrawal
// @Accept       json
// @Produce      json
// @Tags         Payment
// @Param        transaction_id     path      string             true   "Transaction ID"
// @Param        RefundRequestBody  body      RefundRequestBody  false  "Partial amount, full refund when omitted"
// @Success      200  {object}  PaymentStatusResponseBody
// @Failure      402  {object}  responses.ErrorResponse
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /billing/admin/payments/{transaction_id}/refund [post]
// @Security     ApiKeyAuth
func (controller *PaymentController) Refund(c echo.Context) error {
	var body RefundRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load refund request body: %v", err)
		return c.JSON(responses.BadArgumentsError.HttpStatusCode, responses.BadArgumentsError)
	}

	refund, err := controller.svc.RefundDeposit(c.Request().Context(), c.Param("transaction_id"), body.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTransactionNotFound):
			return c.JSON(responses.TransactionNotFoundError.HttpStatusCode, responses.TransactionNotFoundError)
		case errors.Is(err, service.ErrInsufficientFunds):
			return c.JSON(responses.InsufficientFundsError.HttpStatusCode, responses.InsufficientFundsError)
		}
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) {
			c.Logger().Errorf("Gateway refused refund for transaction %s: %v", c.Param("transaction_id"), err)
			return c.JSON(responses.GatewayError.HttpStatusCode, responses.GatewayError)
		}
		c.Logger().Errorf("Failed to refund transaction %s: %v", c.Param("transaction_id"), err)
		return c.JSON(responses.GeneralServerError.HttpStatusCode, responses.GeneralServerError)
	}
	return c.JSON(http.StatusOK, paymentStatusResponse(refund))
}

func paymentStatusResponse(txn *models.Transaction) *PaymentStatusResponseBody {
	response := &PaymentStatusResponseBody{
		TransactionID: txn.ID,
		Status:        txn.Status,
		Amount:        txn.Amount,
		Gateway:       txn.Gateway,
		PaymentURL:    service.PaymentURL(txn),
		CreatedAt:     txn.CreatedAt,
	}
	if !txn.CompletedAt.IsZero() {
		completedAt := txn.CompletedAt.Time
		response.CompletedAt = &completedAt
	}
	return response
}
