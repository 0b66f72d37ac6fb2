package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/random"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/gaiypov/rabota360-billing/common"
	"github.com/gaiypov/rabota360-billing/db/models"
)

// CreateInvoice issues an invoice for the given line items. Item totals and
// the VAT split are computed here; the stored amounts are authoritative from
// this point on.
func (svc *BillingService) CreateInvoice(ctx context.Context, accountId int64, description string, items []models.InvoiceItem) (*models.Invoice, error) {
	var amount int64
	for i := range items {
		if items[i].Quantity <= 0 {
			items[i].Quantity = 1
		}
		items[i].Total = items[i].Quantity * items[i].Price
		amount += items[i].Total
	}
	if amount <= 0 {
		return nil, fmt.Errorf("invoice amount must be positive")
	}
	vat := amount * svc.Config.InvoiceVatRate / 100

	now := time.Now()
	invoice := &models.Invoice{
		ID:          uuid.NewString(),
		Number:      invoiceNumber(now),
		AccountID:   accountId,
		Amount:      amount,
		Vat:         vat,
		Total:       amount + vat,
		Currency:    svc.Config.Currency,
		Status:      common.InvoiceStatusIssued,
		Description: description,
		Items:       items,
		IssuedAt:    now,
		DueDate:     bun.NullTime{Time: now.AddDate(0, 0, svc.Config.InvoiceDueDays)},
		CreatedAt:   now,
	}
	if _, err := svc.DB.NewInsert().Model(invoice).Exec(ctx); err != nil {
		return nil, err
	}
	return invoice, nil
}

func invoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), random.String(6, random.Uppercase, random.Numeric))
}

func (svc *BillingService) FindInvoice(ctx context.Context, accountId int64, invoiceId string) (*models.Invoice, error) {
	invoice := models.Invoice{}
	err := svc.DB.NewSelect().
		Model(&invoice).
		Where("id = ?", invoiceId).
		Where("account_id = ?", accountId).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

type InvoiceFilter struct {
	Status string
	Limit  int
	Offset int
}

func (svc *BillingService) InvoicesForAccount(ctx context.Context, accountId int64, filter InvoiceFilter) ([]models.Invoice, error) {
	invoices := []models.Invoice{}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query := svc.DB.NewSelect().
		Model(&invoices).
		Where("account_id = ?", accountId).
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	err := query.Scan(ctx)
	return invoices, err
}

// PayInvoiceFromWallet debits the wallet for the invoice total and flips the
// invoice to paid, both inside one database transaction. Either both commit
// or neither does; an invoice can never be paid without its completed
// ledger entry.
func (svc *BillingService) PayInvoiceFromWallet(ctx context.Context, accountId int64, invoiceId string) (*models.Invoice, error) {
	// the wallet row must exist before the debit can lock it
	if _, err := svc.GetOrCreateWallet(ctx, accountId); err != nil {
		return nil, err
	}

	var paid *models.Invoice
	err := svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		invoice := models.Invoice{}
		query := tx.NewSelect().
			Model(&invoice).
			Where("id = ?", invoiceId).
			Where("account_id = ?", accountId)
		if svc.DB.Dialect().Name() == dialect.PG {
			query = query.For("UPDATE")
		}
		err := query.Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvoiceNotFound
		}
		if err != nil {
			return err
		}
		if invoice.IsPaid() {
			return ErrInvoiceAlreadyPaid
		}
		if invoice.Status == common.InvoiceStatusVoid {
			return ErrInvoiceNotFound
		}

		_, err = svc.debitTx(ctx, tx, accountId, invoice.Total, "Invoice "+invoice.Number, map[string]interface{}{
			common.MetadataInvoiceIDKey: invoice.ID,
		})
		if err != nil {
			return err
		}

		invoice.Status = common.InvoiceStatusPaid
		invoice.PaidAt = bun.NullTime{Time: time.Now()}
		if _, err = tx.NewUpdate().Model(&invoice).WherePK().Exec(ctx); err != nil {
			return err
		}
		paid = &invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}
