package transport

import (
	cache "github.com/SporkHubr/echo-http-cache"
	"github.com/labstack/echo/v4"

	"github.com/gaiypov/rabota360-billing/controllers"
	"github.com/gaiypov/rabota360-billing/lib/service"
)

// RegisterBillingEndpoints wires the billing surface. The webhook and
// pricing endpoints are public; everything else goes through the secured
// group (bearer token). Payment initiation additionally sits behind the
// strict rate limit.
func RegisterBillingEndpoints(svc *service.BillingService, e *echo.Echo, secured *echo.Group, securedWithStrictRateLimit *echo.Group, adminMw echo.MiddlewareFunc, cacheClient *cache.Client) {
	paymentCtrl := controllers.NewPaymentController(svc)
	invoiceCtrl := controllers.NewInvoiceController(svc)

	// the provider identity comes from the route, never from the payload
	e.POST("/billing/payment/webhook/:gateway", controllers.NewWebhookController(svc).HandleWebhook)
	e.GET("/health", controllers.NewHealthController(svc).HealthCheck)

	// refunds go back through the provider; operators only
	if svc.Config.AdminToken != "" {
		e.POST("/billing/admin/payments/:transaction_id/refund", paymentCtrl.Refund, adminMw)
	}

	pricing := controllers.NewPricingController(svc)
	if cacheClient != nil {
		e.GET("/billing/pricing", pricing.GetPricing, cacheClient.Middleware())
	} else {
		e.GET("/billing/pricing", pricing.GetPricing)
	}

	secured.GET("/billing/wallet/balance", controllers.NewBalanceController(svc).Balance)
	secured.GET("/billing/wallet/transactions", controllers.NewTransactionsController(svc).GetTransactions)
	securedWithStrictRateLimit.POST("/billing/payment/init", paymentCtrl.InitPayment)
	secured.GET("/billing/payment/:transaction_id/status", paymentCtrl.Status)
	secured.GET("/billing/payment/:transaction_id/qr", paymentCtrl.QR)
	secured.POST("/billing/invoices", invoiceCtrl.CreateInvoice)
	secured.GET("/billing/invoices", invoiceCtrl.GetInvoices)
	secured.GET("/billing/invoices/:id", invoiceCtrl.GetInvoice)
	securedWithStrictRateLimit.POST("/billing/invoices/:id/pay", invoiceCtrl.PayInvoice)
}
