package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gaiypov/rabota360-billing/common"
	"github.com/gaiypov/rabota360-billing/db/models"
)

// RecordPendingTransaction creates the PENDING ledger row for a billing
// operation. The balance is not touched until settlement.
func (svc *BillingService) RecordPendingTransaction(ctx context.Context, walletId int64, kind string, amount int64, gatewayName string, description string) (*models.Transaction, error) {
	txn := &models.Transaction{
		ID:          uuid.NewString(),
		WalletID:    walletId,
		Type:        kind,
		Amount:      amount,
		Currency:    svc.Config.Currency,
		Status:      common.TransactionStatusPending,
		Gateway:     gatewayName,
		Description: description,
		CreatedAt:   time.Now(),
	}
	_, err := svc.DB.NewInsert().Model(txn).Exec(ctx)
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (svc *BillingService) FindTransaction(ctx context.Context, transactionId string) (*models.Transaction, error) {
	txn := models.Transaction{}
	err := svc.DB.NewSelect().Model(&txn).Where("id = ?", transactionId).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindTransactionForAccount scopes the lookup to the caller's wallet so one
// account can never read another account's ledger.
func (svc *BillingService) FindTransactionForAccount(ctx context.Context, accountId int64, transactionId string) (*models.Transaction, error) {
	txn := models.Transaction{}
	err := svc.DB.NewSelect().
		Model(&txn).
		Join(`JOIN wallets AS wallet ON wallet.id = "transaction".wallet_id`).
		Where(`"transaction".id = ?`, transactionId).
		Where("wallet.account_id = ?", accountId).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

type TransactionFilter struct {
	Type   string
	Status string
	Limit  int
	Offset int
}

func (svc *BillingService) TransactionsForAccount(ctx context.Context, accountId int64, filter TransactionFilter) ([]models.Transaction, error) {
	transactions := []models.Transaction{}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query := svc.DB.NewSelect().
		Model(&transactions).
		Join(`JOIN wallets AS wallet ON wallet.id = "transaction".wallet_id`).
		Where("wallet.account_id = ?", accountId).
		Order("transaction.created_at DESC").
		Limit(limit).
		Offset(filter.Offset)
	if filter.Type != "" {
		query = query.Where(`"transaction".type = ?`, filter.Type)
	}
	if filter.Status != "" {
		query = query.Where(`"transaction".status = ?`, filter.Status)
	}
	err := query.Scan(ctx)
	return transactions, err
}

// PendingDepositsOlderThan returns PENDING gateway deposits that have not
// heard back for at least minAge. These are candidates for status polling.
func (svc *BillingService) PendingDepositsOlderThan(ctx context.Context, minAge time.Duration) ([]models.Transaction, error) {
	transactions := []models.Transaction{}
	err := svc.DB.NewSelect().
		Model(&transactions).
		Where("status = ?", common.TransactionStatusPending).
		Where("type = ?", common.TransactionTypeDeposit).
		Where("external_id IS NOT NULL").
		Where("created_at < ?", time.Now().Add(-minAge)).
		Scan(ctx)
	return transactions, err
}
