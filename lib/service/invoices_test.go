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

func TestCreateInvoiceComputesVat(t *testing.T) {
	svc, _ := newTestService(t)

	invoice, err := svc.CreateInvoice(context.Background(), 1, "vacancy posting", []models.InvoiceItem{
		{Name: "vacancy", Quantity: 2, Price: 5000},
		{Name: "boost", Price: 3000}, // quantity defaults to 1
	})
	require.NoError(t, err)

	assert.EqualValues(t, 13000, invoice.Amount)
	assert.EqualValues(t, 2600, invoice.Vat) // 20%
	assert.EqualValues(t, 15600, invoice.Total)
	assert.Equal(t, common.InvoiceStatusIssued, invoice.Status)
	assert.NotEmpty(t, invoice.Number)
	assert.False(t, invoice.DueDate.IsZero())
	require.Len(t, invoice.Items, 2)
	assert.EqualValues(t, 10000, invoice.Items[0].Total)
}

func TestCreateInvoiceRejectsEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateInvoice(context.Background(), 1, "", nil)
	assert.Error(t, err)
}

func TestPayInvoiceFromWallet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	fundWallet(t, svc, 1, 5000)
	invoice, err := svc.CreateInvoice(ctx, 1, "fee", []models.InvoiceItem{{Name: "vacancy", Price: 4000}})
	require.NoError(t, err)
	require.EqualValues(t, 4800, invoice.Total)

	paid, err := svc.PayInvoiceFromWallet(ctx, 1, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, common.InvoiceStatusPaid, paid.Status)
	assert.False(t, paid.PaidAt.IsZero())

	balance, err := svc.CurrentBalance(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 200, balance)

	// the debit is on the ledger and points back at the invoice
	payments, err := svc.TransactionsForAccount(ctx, 1, service.TransactionFilter{Type: common.TransactionTypePayment})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, common.TransactionStatusCompleted, payments[0].Status)
	assert.EqualValues(t, 4800, payments[0].Amount)
	assert.Equal(t, invoice.ID, payments[0].Metadata[common.MetadataInvoiceIDKey])
}

func TestPayInvoiceInsufficientFunds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	fundWallet(t, svc, 1, 1000)
	invoice, err := svc.CreateInvoice(ctx, 1, "fee", []models.InvoiceItem{{Name: "vacancy", Price: 5000}})
	require.NoError(t, err)

	_, err = svc.PayInvoiceFromWallet(ctx, 1, invoice.ID)
	assert.ErrorIs(t, err, service.ErrInsufficientFunds)

	// nothing moved
	balance, err := svc.CurrentBalance(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, balance)

	stored, err := svc.FindInvoice(ctx, 1, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, common.InvoiceStatusIssued, stored.Status)

	payments, err := svc.TransactionsForAccount(ctx, 1, service.TransactionFilter{Type: common.TransactionTypePayment})
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestPayInvoiceTwice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	fundWallet(t, svc, 1, 20000)
	invoice, err := svc.CreateInvoice(ctx, 1, "fee", []models.InvoiceItem{{Name: "vacancy", Price: 5000}})
	require.NoError(t, err)

	_, err = svc.PayInvoiceFromWallet(ctx, 1, invoice.ID)
	require.NoError(t, err)

	_, err = svc.PayInvoiceFromWallet(ctx, 1, invoice.ID)
	assert.ErrorIs(t, err, service.ErrInvoiceAlreadyPaid)

	// charged exactly once
	balance, err := svc.CurrentBalance(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 20000-invoice.Total, balance)
}

func TestPayInvoiceWrongAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	fundWallet(t, svc, 2, 20000)
	invoice, err := svc.CreateInvoice(ctx, 1, "fee", []models.InvoiceItem{{Name: "vacancy", Price: 5000}})
	require.NoError(t, err)

	_, err = svc.PayInvoiceFromWallet(ctx, 2, invoice.ID)
	assert.ErrorIs(t, err, service.ErrInvoiceNotFound)
}

func TestInvoicesForAccountFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	fundWallet(t, svc, 1, 50000)
	first, err := svc.CreateInvoice(ctx, 1, "fee", []models.InvoiceItem{{Name: "vacancy", Price: 5000}})
	require.NoError(t, err)
	_, err = svc.CreateInvoice(ctx, 1, "fee", []models.InvoiceItem{{Name: "boost", Price: 2000}})
	require.NoError(t, err)
	_, err = svc.PayInvoiceFromWallet(ctx, 1, first.ID)
	require.NoError(t, err)

	paid, err := svc.InvoicesForAccount(ctx, 1, service.InvoiceFilter{Status: common.InvoiceStatusPaid})
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, first.ID, paid[0].ID)

	all, err := svc.InvoicesForAccount(ctx, 1, service.InvoiceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
