package controllers_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaiypov/rabota360-billing/common"
	"github.com/gaiypov/rabota360-billing/controllers"
	"github.com/gaiypov/rabota360-billing/db"
	"github.com/gaiypov/rabota360-billing/db/models"
	"github.com/gaiypov/rabota360-billing/gateway"
	"github.com/gaiypov/rabota360-billing/lib/logging"
	"github.com/gaiypov/rabota360-billing/lib/service"
)

const (
	testTerminalKey = "terminal-1"
	testSecretKey   = "secret-key"
)

func newWebhookTestService(t *testing.T) *service.BillingService {
	t.Helper()
	cfg := &service.Config{
		DatabaseUri:           "sqlite://:memory:",
		Currency:              common.CurrencyRUB,
		MinDepositAmount:      10000,
		GatewayRequestTimeout: 5,
	}
	dbConn, err := db.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, db.CreateTables(context.Background(), dbConn))
	t.Cleanup(func() { dbConn.Close() })

	return &service.BillingService{
		Config: cfg,
		DB:     dbConn,
		Logger: logging.Logger(""),
		Gateways: map[string]gateway.Adapter{
			common.GatewayTinkoff: gateway.NewTinkoff(gateway.TinkoffConfig{
				TerminalKey: testTerminalKey,
				SecretKey:   testSecretKey,
			}),
		},
		TransactionPubSub: service.NewPubsub(),
	}
}

func pendingDeposit(t *testing.T, svc *service.BillingService, accountId int64, amount int64) *models.Transaction {
	t.Helper()
	ctx := context.Background()
	wallet, err := svc.GetOrCreateWallet(ctx, accountId)
	require.NoError(t, err)
	txn, err := svc.RecordPendingTransaction(ctx, wallet.ID, common.TransactionTypeDeposit, amount, common.GatewayTinkoff, "deposit")
	require.NoError(t, err)
	return txn
}

// tinkoffToken signs a notification the way the acquiring API does: SHA-256
// over the scalar values concatenated in key order, secret appended.
func tinkoffToken(orderId string, amount int64, status string) string {
	payload := fmt.Sprintf("%d%s12345%strue%s%s", amount, orderId, status, testTerminalKey, testSecretKey)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func tinkoffNotification(orderId string, amount int64, status string, token string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"TerminalKey": testTerminalKey,
		"OrderId":     orderId,
		"PaymentId":   12345,
		"Status":      status,
		"Amount":      amount,
		"Success":     true,
		"Token":       token,
	})
	return string(body)
}

func postWebhook(svc *service.BillingService, gatewayName string, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/billing/payment/webhook/"+gatewayName, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("gateway")
	c.SetParamValues(gatewayName)

	controller := controllers.NewWebhookController(svc)
	if err := controller.HandleWebhook(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestHandleWebhookSettlesDeposit(t *testing.T) {
	svc := newWebhookTestService(t)
	txn := pendingDeposit(t, svc, 1, 10000)

	token := tinkoffToken(txn.ID, 10000, "CONFIRMED")
	rec := postWebhook(svc, common.GatewayTinkoff, tinkoffNotification(txn.ID, 10000, "CONFIRMED", token))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	balance, err := svc.CurrentBalance(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 10000, balance)
}

func TestHandleWebhookBadSignature(t *testing.T) {
	svc := newWebhookTestService(t)
	txn := pendingDeposit(t, svc, 1, 10000)

	// token signed over a different amount than the body carries
	token := tinkoffToken(txn.ID, 99999, "CONFIRMED")
	rec := postWebhook(svc, common.GatewayTinkoff, tinkoffNotification(txn.ID, 10000, "CONFIRMED", token))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	stored, err := svc.FindTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, common.TransactionStatusPending, stored.Status)
}

func TestHandleWebhookUnknownGateway(t *testing.T) {
	svc := newWebhookTestService(t)

	rec := postWebhook(svc, "paypal", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWebhookUnknownOrder(t *testing.T) {
	svc := newWebhookTestService(t)

	token := tinkoffToken("no-such-order", 10000, "CONFIRMED")
	rec := postWebhook(svc, common.GatewayTinkoff, tinkoffNotification("no-such-order", 10000, "CONFIRMED", token))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleWebhookAmountMismatchStillAcknowledged(t *testing.T) {
	svc := newWebhookTestService(t)
	txn := pendingDeposit(t, svc, 1, 10000)

	token := tinkoffToken(txn.ID, 9000, "CONFIRMED")
	rec := postWebhook(svc, common.GatewayTinkoff, tinkoffNotification(txn.ID, 9000, "CONFIRMED", token))

	// flagged for review but acknowledged, so the gateway stops retrying
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	stored, err := svc.FindTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, common.TransactionStatusFailed, stored.Status)
	assert.Equal(t, common.ReviewReasonAmountMismatch, stored.Metadata[common.MetadataReviewKey])

	balance, err := svc.CurrentBalance(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, balance)
}
