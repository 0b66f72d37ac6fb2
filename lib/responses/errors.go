package responses

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error          bool   `json:"error"`
	Code           int    `json:"code"`
	Message        string `json:"message"`
	HttpStatusCode int    `json:"-"`
}

// Code 1 is reserved for authentication failures so they can be filtered
// from exception tracking.
var BadAuthError = ErrorResponse{
	Error:          true,
	Code:           1,
	Message:        "bad auth",
	HttpStatusCode: 401,
}

var UnauthenticatedWebhookError = ErrorResponse{
	Error:          true,
	Code:           1,
	Message:        "webhook signature verification failed",
	HttpStatusCode: 401,
}

var InsufficientFundsError = ErrorResponse{
	Error:          true,
	Code:           2,
	Message:        "not enough balance on wallet",
	HttpStatusCode: 402,
}

var TransactionNotFoundError = ErrorResponse{
	Error:          true,
	Code:           3,
	Message:        "transaction not found",
	HttpStatusCode: 404,
}

var InvoiceNotFoundError = ErrorResponse{
	Error:          true,
	Code:           3,
	Message:        "invoice not found",
	HttpStatusCode: 404,
}

var InvoiceAlreadyPaidError = ErrorResponse{
	Error:          true,
	Code:           4,
	Message:        "invoice has already been paid",
	HttpStatusCode: 409,
}

var UnknownGatewayError = ErrorResponse{
	Error:          true,
	Code:           5,
	Message:        "unknown payment gateway",
	HttpStatusCode: 400,
}

var GeneralServerError = ErrorResponse{
	Error:          true,
	Code:           6,
	Message:        "Something went wrong. Please try again later",
	HttpStatusCode: 500,
}

var DepositTooSmallError = ErrorResponse{
	Error:          true,
	Code:           7,
	Message:        "deposit amount is below the minimum",
	HttpStatusCode: 400,
}

var BadArgumentsError = ErrorResponse{
	Error:          true,
	Code:           8,
	Message:        "Bad arguments",
	HttpStatusCode: 400,
}

var GatewayError = ErrorResponse{
	Error:          true,
	Code:           9,
	Message:        "payment gateway rejected the request",
	HttpStatusCode: 502,
}

func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	c.Logger().Error(err)
	if hub := sentryecho.GetHubFromContext(c); hub != nil && isErrAllowedForSentry(err) {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("AccountID", c.Get("AccountID"))
			hub.CaptureException(err)
		})
	}
	if he, ok := err.(*echo.HTTPError); ok {
		c.JSON(he.Code, he.Message)
	} else {
		c.JSON(http.StatusInternalServerError, GeneralServerError)
	}
}

// Auth failures are expected noise (expired tokens, bad webhook signatures)
// and do not get reported to sentry.
func isErrAllowedForSentry(err error) bool {
	he, ok := err.(*echo.HTTPError)
	if !ok {
		return true
	}
	if response, ok := he.Message.(ErrorResponse); ok {
		return response.Code != 1
	}
	if response, ok := he.Message.(echo.Map); ok {
		if code, ok := response["code"].(int); ok {
			return code != 1
		}
	}
	return true
}
