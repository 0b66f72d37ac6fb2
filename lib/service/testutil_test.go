package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gaiypov/rabota360-billing/common"
	"github.com/gaiypov/rabota360-billing/db"
	"github.com/gaiypov/rabota360-billing/gateway"
	"github.com/gaiypov/rabota360-billing/lib/logging"
	"github.com/gaiypov/rabota360-billing/lib/service"
)

// fakeGateway is a hand-written adapter double; tests script its responses.
type fakeGateway struct {
	mu sync.Mutex

	name string

	initiateResult *gateway.InitiateResult
	initiateErr    error
	initiateCalls  []gateway.InitiateParams

	status    *gateway.Status
	statusErr error

	webhookEvent *gateway.WebhookEvent
	webhookErr   error

	refunds []int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		name: common.GatewayTinkoff,
		initiateResult: &gateway.InitiateResult{
			ExternalID: "ext-1",
			PaymentURL: "https://pay.example.com/ext-1",
		},
	}
}

func (f *fakeGateway) Name() string { return f.name }

func (f *fakeGateway) Initiate(ctx context.Context, params gateway.InitiateParams) (*gateway.InitiateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiateCalls = append(f.initiateCalls, params)
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	return f.initiateResult, nil
}

func (f *fakeGateway) QueryStatus(ctx context.Context, externalID string) (*gateway.Status, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status, nil
}

func (f *fakeGateway) Cancel(ctx context.Context, externalID string) error { return nil }

func (f *fakeGateway) Refund(ctx context.Context, externalID string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, amount)
	return nil
}

func (f *fakeGateway) ParseWebhook(payload []byte) (*gateway.WebhookEvent, error) {
	if f.webhookErr != nil {
		return nil, f.webhookErr
	}
	return f.webhookEvent, nil
}

func newTestService(t *testing.T) (*service.BillingService, *fakeGateway) {
	t.Helper()
	cfg := &service.Config{
		DatabaseUri:           "sqlite://:memory:",
		Currency:              common.CurrencyRUB,
		MinDepositAmount:      10000,
		GatewayRequestTimeout: 5,
		InvoiceVatRate:        20,
		InvoiceDueDays:        14,
	}
	dbConn, err := db.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, db.CreateTables(context.Background(), dbConn))
	t.Cleanup(func() { dbConn.Close() })

	fake := newFakeGateway()
	svc := &service.BillingService{
		Config: cfg,
		DB:     dbConn,
		Logger: logging.Logger(""),
		Gateways: map[string]gateway.Adapter{
			fake.Name(): fake,
		},
		TransactionPubSub: service.NewPubsub(),
	}
	return svc, fake
}

// fundWallet credits the account through the regular settlement path.
func fundWallet(t *testing.T, svc *service.BillingService, accountId int64, amount int64) {
	t.Helper()
	ctx := context.Background()
	wallet, err := svc.GetOrCreateWallet(ctx, accountId)
	require.NoError(t, err)
	txn, err := svc.RecordPendingTransaction(ctx, wallet.ID, common.TransactionTypeDeposit, amount, common.GatewayTinkoff, "test deposit")
	require.NoError(t, err)
	_, err = svc.CompleteTransaction(ctx, txn.ID)
	require.NoError(t, err)
}
