package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaiypov/rabota360-billing/common"
	"github.com/gaiypov/rabota360-billing/db/models"
	"github.com/gaiypov/rabota360-billing/lib/service"
)

func TestGetOrCreateWalletIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.GetOrCreateWallet(ctx, 42)
	require.NoError(t, err)
	assert.EqualValues(t, 42, first.AccountID)
	assert.EqualValues(t, 0, first.Balance)
	assert.Equal(t, common.CurrencyRUB, first.Currency)

	second, err := svc.GetOrCreateWallet(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	count, err := svc.DB.NewSelect().Model((*models.Wallet)(nil)).Where("account_id = ?", 42).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCompleteTransactionCreditsOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	wallet, err := svc.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)
	txn, err := svc.RecordPendingTransaction(ctx, wallet.ID, common.TransactionTypeDeposit, 10000, common.GatewayTinkoff, "deposit")
	require.NoError(t, err)
	assert.Equal(t, common.TransactionStatusPending, txn.Status)

	completed, err := svc.CompleteTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, common.TransactionStatusCompleted, completed.Status)
	assert.False(t, completed.CompletedAt.IsZero())

	// re-driving an already-terminal transaction is a no-op
	again, err := svc.CompleteTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, common.TransactionStatusCompleted, again.Status)

	balance, err := svc.CurrentBalance(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 10000, balance)
}

func TestCompleteTransactionUnknown(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CompleteTransaction(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, service.ErrTransactionNotFound)
}

func TestBalanceMatchesCompletedTransactions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	fundWallet(t, svc, 7, 10000)
	fundWallet(t, svc, 7, 25000)

	// a pending deposit must not count
	wallet, err := svc.GetOrCreateWallet(ctx, 7)
	require.NoError(t, err)
	_, err = svc.RecordPendingTransaction(ctx, wallet.ID, common.TransactionTypeDeposit, 99999, common.GatewayTinkoff, "still pending")
	require.NoError(t, err)

	invoice, err := svc.CreateInvoice(ctx, 7, "posting fee", []models.InvoiceItem{
		{Name: "vacancy", Quantity: 1, Price: 10000},
	})
	require.NoError(t, err)
	_, err = svc.PayInvoiceFromWallet(ctx, 7, invoice.ID)
	require.NoError(t, err)

	balance, err := svc.CurrentBalance(ctx, 7)
	require.NoError(t, err)

	var sum int64
	transactions, err := svc.TransactionsForAccount(ctx, 7, service.TransactionFilter{})
	require.NoError(t, err)
	for _, txn := range transactions {
		if txn.Status != common.TransactionStatusCompleted {
			continue
		}
		sum += common.BalanceDirection(txn.Type) * txn.Amount
	}
	assert.Equal(t, sum, balance)
	assert.EqualValues(t, 10000+25000-invoice.Total, balance)
}

func TestTransactionsForAccountFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	fundWallet(t, svc, 3, 20000)
	invoice, err := svc.CreateInvoice(ctx, 3, "fee", []models.InvoiceItem{{Name: "boost", Price: 5000}})
	require.NoError(t, err)
	_, err = svc.PayInvoiceFromWallet(ctx, 3, invoice.ID)
	require.NoError(t, err)

	deposits, err := svc.TransactionsForAccount(ctx, 3, service.TransactionFilter{Type: common.TransactionTypeDeposit})
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, common.TransactionTypeDeposit, deposits[0].Type)

	payments, err := svc.TransactionsForAccount(ctx, 3, service.TransactionFilter{Type: common.TransactionTypePayment})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, invoice.Total, payments[0].Amount)

	// another account sees nothing
	other, err := svc.TransactionsForAccount(ctx, 4, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, other)
}
