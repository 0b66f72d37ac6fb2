package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gaiypov/rabota360-billing/db/models"
	"github.com/gaiypov/rabota360-billing/lib/responses"
	"github.com/gaiypov/rabota360-billing/lib/service"
	"github.com/gaiypov/rabota360-billing/lib/tokens"
)

// InvoiceController : InvoiceController struct
type InvoiceController struct {
	svc *service.BillingService
}

func NewInvoiceController(svc *service.BillingService) *InvoiceController {
	return &InvoiceController{svc: svc}
}

type CreateInvoiceRequestBody struct {
	Description string                  `json:"description"`
	Items       []CreateInvoiceItemBody `json:"items" validate:"required,min=1,dive"`
}

type CreateInvoiceItemBody struct {
	Name     string `json:"name" validate:"required"`
	Quantity int64  `json:"quantity" validate:"omitempty,gt=0"`
	Price    int64  `json:"price" validate:"required,gt=0"`
}

// CreateInvoice godoc
// @Summary      Issue an invoice
// @Description  Creates an issued invoice with computed VAT for the account
// @Accept       json
// @Produce      json
// @Tags         Invoice
// @Param        CreateInvoiceRequestBody  body      CreateInvoiceRequestBody  true  "Invoice to issue"
// @Success      200  {object}  models.Invoice
// @Failure      400  {object}  responses.ErrorResponse
// @Router       /billing/invoices [post]
// @Security     OAuth2Password
func (controller *InvoiceController) CreateInvoice(c echo.Context) error {
	accountId := tokens.AccountIdFromContext(c)
	var body CreateInvoiceRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create invoice request body: %v", err)
		return c.JSON(responses.BadArgumentsError.HttpStatusCode, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid create invoice request body: %v", err)
		return c.JSON(responses.BadArgumentsError.HttpStatusCode, responses.BadArgumentsError)
	}

	items := make([]models.InvoiceItem, 0, len(body.Items))
	for _, item := range body.Items {
		items = append(items, models.InvoiceItem{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}
	invoice, err := controller.svc.CreateInvoice(c.Request().Context(), accountId, body.Description, items)
	if err != nil {
		c.Logger().Errorf("Failed to create invoice for account_id:%v error: %v", accountId, err)
		return c.JSON(responses.GeneralServerError.HttpStatusCode, responses.GeneralServerError)
	}
	return c.JSON(http.StatusOK, invoice)
}

// GetInvoices godoc
// @Summary      List invoices
// @Description  Returns the account's invoices, newest first
// @Accept       json
// @Produce      json
// @Tags         Invoice
// @Param        limit   query     int     false  "page size (max 100)"
// @Param        offset  query     int     false  "page offset"
// @Param        status  query     string  false  "draft|issued|paid|void"
// @Success      200  {object}  []models.Invoice
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /billing/invoices [get]
// @Security     OAuth2Password
func (controller *InvoiceController) GetInvoices(c echo.Context) error {
	accountId := tokens.AccountIdFromContext(c)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	invoices, err := controller.svc.InvoicesForAccount(c.Request().Context(), accountId, service.InvoiceFilter{
		Status: c.QueryParam("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		c.Logger().Errorf("Error fetching invoices for account_id:%v error: %v", accountId, err)
		return c.JSON(responses.GeneralServerError.HttpStatusCode, responses.GeneralServerError)
	}
	if invoices == nil {
		invoices = []models.Invoice{}
	}
	return c.JSON(http.StatusOK, invoices)
}

// GetInvoice godoc
// @Summary      Retrieve an invoice
// @Accept       json
// @Produce      json
// @Tags         Invoice
// @Param        id  path      string  true  "Invoice ID"
// @Success      200  {object}  models.Invoice
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /billing/invoices/{id} [get]
// @Security     OAuth2Password
func (controller *InvoiceController) GetInvoice(c echo.Context) error {
	accountId := tokens.AccountIdFromContext(c)
	invoice, err := controller.svc.FindInvoice(c.Request().Context(), accountId, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrInvoiceNotFound) {
			return c.JSON(responses.InvoiceNotFoundError.HttpStatusCode, responses.InvoiceNotFoundError)
		}
		c.Logger().Errorf("Error fetching invoice for account_id:%v error: %v", accountId, err)
		return c.JSON(responses.GeneralServerError.HttpStatusCode, responses.GeneralServerError)
	}
	return c.JSON(http.StatusOK, invoice)
}

// PayInvoice godoc
// @Summary      Pay an invoice from the wallet
// @Description  Debits the wallet for the invoice total and marks it paid, atomically
// @Accept       json
// @Produce      json
// @Tags         Invoice
// @Param        id  path      string  true  "Invoice ID"
// @Success      200  {object}  models.Invoice
// @Failure      402  {object}  responses.ErrorResponse
// @Failure      404  {object}  responses.ErrorResponse
// @Failure      409  {object}  responses.ErrorResponse
// @Router       /billing/invoices/{id}/pay [post]
// @Security     OAuth2Password
func (controller *InvoiceController) PayInvoice(c echo.Context) error {
	accountId := tokens.AccountIdFromContext(c)
	invoice, err := controller.svc.PayInvoiceFromWallet(c.Request().Context(), accountId, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvoiceNotFound):
			return c.JSON(responses.InvoiceNotFoundError.HttpStatusCode, responses.InvoiceNotFoundError)
		case errors.Is(err, service.ErrInvoiceAlreadyPaid):
			return c.JSON(responses.InvoiceAlreadyPaidError.HttpStatusCode, responses.InvoiceAlreadyPaidError)
		case errors.Is(err, service.ErrInsufficientFunds):
			return c.JSON(responses.InsufficientFundsError.HttpStatusCode, responses.InsufficientFundsError)
		}
		c.Logger().Errorf("Failed to pay invoice %s for account_id:%v error: %v", c.Param("id"), accountId, err)
		return c.JSON(responses.GeneralServerError.HttpStatusCode, responses.GeneralServerError)
	}
	return c.JSON(http.StatusOK, invoice)
}
