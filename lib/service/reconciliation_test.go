package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaiypov/rabota360-billing/common"
	"github.com/gaiypov/rabota360-billing/db/models"
	"github.com/gaiypov/rabota360-billing/gateway"
	"github.com/gaiypov/rabota360-billing/lib/service"
)

// initDeposit starts a deposit through the facade and returns the pending
// transaction.
func initDeposit(t *testing.T, svc *service.BillingService, accountId int64, amount int64) *models.Transaction {
	t.Helper()
	txn, err := svc.InitDeposit(context.Background(), accountId, amount, common.GatewayTinkoff, "", "", "")
	require.NoError(t, err)
	require.Equal(t, common.TransactionStatusPending, txn.Status)
	return txn
}

func paidEvent(txn *models.Transaction) *gateway.WebhookEvent {
	return &gateway.WebhookEvent{
		OrderID:    txn.ID,
		ExternalID: "ext-1",
		State:      gateway.StatePaid,
		Amount:     txn.Amount,
	}
}

func TestWebhookSettlesDeposit(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	txn := initDeposit(t, svc, 1, 10000)
	fake.webhookEvent = paidEvent(txn)

	settled, err := svc.ProcessGatewayWebhook(ctx, common.GatewayTinkoff, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, common.TransactionStatusCompleted, settled.Status)

	balance, err := svc.CurrentBalance(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 10000, balance)
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	txn := initDeposit(t, svc, 1, 10000)
	fake.webhookEvent = paidEvent(txn)

	for i := 0; i < 5; i++ {
		settled, err := svc.ProcessGatewayWebhook(ctx, common.GatewayTinkoff, []byte(`{}`))
		require.NoError(t, err)
		assert.Equal(t, common.TransactionStatusCompleted, settled.Status)
	}

	balance, err := svc.CurrentBalance(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 10000, balance)
}

func TestConcurrentWebhooksSettleExactlyOnce(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	txn := initDeposit(t, svc, 1, 10000)
	fake.webhookEvent = paidEvent(txn)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ProcessGatewayWebhook(ctx, common.GatewayTinkoff, []byte(`{}`))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := svc.CurrentBalance(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 10000, balance)
}

func TestWebhookAmountMismatchFlagsForReview(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	txn := initDeposit(t, svc, 1, 10000)
	fake.webhookEvent = &gateway.WebhookEvent{
		OrderID: txn.ID,
		State:   gateway.StatePaid,
		Amount:  9000,
	}

	_, err := svc.ProcessGatewayWebhook(ctx, common.GatewayTinkoff, []byte(`{}`))
	var mismatch *service.AmountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, txn.ID, mismatch.TransactionID)
	assert.EqualValues(t, 10000, mismatch.Expected)
	assert.EqualValues(t, 9000, mismatch.Reported)

	stored, err := svc.FindTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, common.TransactionStatusFailed, stored.Status)
	assert.Equal(t, common.ReviewReasonAmountMismatch, stored.Metadata[common.MetadataReviewKey])

	balance, err := svc.CurrentBalance(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, balance)

	// terminal now: even a correct replay must not credit
	fake.webhookEvent = paidEvent(txn)
	_, err = svc.ProcessGatewayWebhook(ctx, common.GatewayTinkoff, []byte(`{}`))
	require.NoError(t, err)
	balance, err = svc.CurrentBalance(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, balance)
}

func TestWebhookBadSignatureTouchesNothing(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	txn := initDeposit(t, svc, 1, 10000)
	fake.webhookErr = gateway.ErrBadSignature

	_, err := svc.ProcessGatewayWebhook(ctx, common.GatewayTinkoff, []byte(`{}`))
	assert.ErrorIs(t, err, gateway.ErrBadSignature)

	stored, err := svc.FindTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, common.TransactionStatusPending, stored.Status)

	// a later, correctly signed callback still settles it
	fake.webhookErr = nil
	fake.webhookEvent = paidEvent(txn)
	settled, err := svc.ProcessGatewayWebhook(ctx, common.GatewayTinkoff, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, common.TransactionStatusCompleted, settled.Status)
}

func TestWebhookCancelledHasNoBalanceEffect(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	txn := initDeposit(t, svc, 1, 10000)
	fake.webhookEvent = &gateway.WebhookEvent{
		OrderID: txn.ID,
		State:   gateway.StateCancelled,
	}

	settled, err := svc.ProcessGatewayWebhook(ctx, common.GatewayTinkoff, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, common.TransactionStatusCancelled, settled.Status)

	balance, err := svc.CurrentBalance(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, balance)
}

func TestWebhookUnknownTransaction(t *testing.T) {
	svc, fake := newTestService(t)

	fake.webhookEvent = &gateway.WebhookEvent{
		OrderID: "no-such-order",
		State:   gateway.StatePaid,
		Amount:  10000,
	}
	_, err := svc.ProcessGatewayWebhook(context.Background(), common.GatewayTinkoff, []byte(`{}`))
	assert.ErrorIs(t, err, service.ErrTransactionNotFound)
}

func TestWebhookWrongGatewayIsRejected(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	txn := initDeposit(t, svc, 1, 10000)

	// a callback for a tinkoff order arriving on the alfabank route must
	// not settle it
	_, err := svc.SettleFromEvent(ctx, common.GatewayAlfabank, paidEvent(txn))
	assert.ErrorIs(t, err, service.ErrTransactionNotFound)

	stored, err := svc.FindTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, common.TransactionStatusPending, stored.Status)
	_ = fake
}

func TestSettledTransactionsArePublished(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	settled := make(chan models.Transaction, 1)
	svc.TransactionPubSub.Subscribe(common.TransactionStatusCompleted, settled)

	txn := initDeposit(t, svc, 1, 10000)
	fake.webhookEvent = paidEvent(txn)

	_, err := svc.ProcessGatewayWebhook(ctx, common.GatewayTinkoff, []byte(`{}`))
	require.NoError(t, err)

	published := <-settled
	assert.Equal(t, txn.ID, published.ID)
	assert.Equal(t, common.TransactionStatusCompleted, published.Status)

	// a replay settles nothing and must not publish again
	_, err = svc.ProcessGatewayWebhook(ctx, common.GatewayTinkoff, []byte(`{}`))
	require.NoError(t, err)
	select {
	case extra := <-settled:
		t.Fatalf("unexpected duplicate publication for %s", extra.ID)
	default:
	}
}

func TestCheckPendingTransactionsSettlesViaPoll(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	txn := initDeposit(t, svc, 1, 10000)
	fake.status = &gateway.Status{State: gateway.StatePaid, Amount: 10000}

	require.NoError(t, svc.CheckPendingTransactions(ctx))

	stored, err := svc.FindTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, common.TransactionStatusCompleted, stored.Status)

	balance, err := svc.CurrentBalance(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 10000, balance)
}
