package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/gaiypov/rabota360-billing/common"
	"github.com/gaiypov/rabota360-billing/db/models"
)

// GetOrCreateWallet returns the account's wallet, creating a zero-balance
// one on first billing interaction. Two concurrent first requests race on
// the unique account_id; the loser of the insert reads the winner's row.
func (svc *BillingService) GetOrCreateWallet(ctx context.Context, accountId int64) (*models.Wallet, error) {
	wallet := models.Wallet{
		AccountID: accountId,
		Currency:  svc.Config.Currency,
	}
	_, err := svc.DB.NewInsert().Model(&wallet).On("CONFLICT (account_id) DO NOTHING").Exec(ctx)
	if err != nil {
		return nil, err
	}
	found := models.Wallet{}
	err = svc.DB.NewSelect().Model(&found).Where("account_id = ?", accountId).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (svc *BillingService) CurrentBalance(ctx context.Context, accountId int64) (int64, error) {
	wallet, err := svc.GetOrCreateWallet(ctx, accountId)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

// CompleteTransaction applies the balance effect of a PENDING transaction
// and marks it COMPLETED, all inside one database transaction. Re-driving an
// already-terminal transaction is a no-op that returns the stored row, which
// is what makes webhook replays harmless.
func (svc *BillingService) CompleteTransaction(ctx context.Context, transactionId string) (*models.Transaction, error) {
	var result *models.Transaction
	err := svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		txn, err := svc.lockTransaction(ctx, tx, transactionId)
		if err != nil {
			return err
		}
		if txn.IsTerminal() {
			result = txn
			return nil
		}
		if err = svc.applyBalanceEffect(ctx, tx, txn); err != nil {
			return err
		}
		txn.Status = common.TransactionStatusCompleted
		txn.CompletedAt = bun.NullTime{Time: time.Now()}
		if _, err = tx.NewUpdate().Model(txn).WherePK().Exec(ctx); err != nil {
			return err
		}
		result = txn
		return nil
	})
	return result, err
}

// lockTransaction loads a transaction row with an exclusive lock so that two
// concurrent settlements of the same transaction serialize.
func (svc *BillingService) lockTransaction(ctx context.Context, tx bun.Tx, transactionId string) (*models.Transaction, error) {
	txn := models.Transaction{}
	query := tx.NewSelect().Model(&txn).Where("id = ?", transactionId)
	if svc.DB.Dialect().Name() == dialect.PG {
		query = query.For("UPDATE")
	}
	err := query.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// sqlite has no row locks; there the single write connection serializes
// instead.
func (svc *BillingService) lockWallet(ctx context.Context, tx bun.Tx, walletId int64) (*models.Wallet, error) {
	wallet := models.Wallet{}
	query := tx.NewSelect().Model(&wallet).Where("id = ?", walletId)
	if svc.DB.Dialect().Name() == dialect.PG {
		query = query.For("UPDATE")
	}
	err := query.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (svc *BillingService) applyBalanceEffect(ctx context.Context, tx bun.Tx, txn *models.Transaction) error {
	wallet, err := svc.lockWallet(ctx, tx, txn.WalletID)
	if err != nil {
		return err
	}
	next := wallet.Balance + common.BalanceDirection(txn.Type)*txn.Amount
	if next < 0 {
		return ErrInsufficientFunds
	}
	wallet.Balance = next
	_, err = tx.NewUpdate().Model(wallet).WherePK().Exec(ctx)
	return err
}

// debitTx records an immediately-completed debit and decrements the wallet
// inside the caller's database transaction. Used by invoice payment, where
// the debit must commit or roll back together with the invoice status flip.
func (svc *BillingService) debitTx(ctx context.Context, tx bun.Tx, accountId int64, amount int64, description string, metadata map[string]interface{}) (*models.Transaction, error) {
	wallet := models.Wallet{}
	query := tx.NewSelect().Model(&wallet).Where("account_id = ?", accountId)
	if svc.DB.Dialect().Name() == dialect.PG {
		query = query.For("UPDATE")
	}
	err := query.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		// no wallet means zero balance
		return nil, ErrInsufficientFunds
	}
	if err != nil {
		return nil, err
	}
	if wallet.Balance < amount {
		return nil, ErrInsufficientFunds
	}
	wallet.Balance -= amount
	if _, err = tx.NewUpdate().Model(&wallet).WherePK().Exec(ctx); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		ID:          uuid.NewString(),
		WalletID:    wallet.ID,
		Type:        common.TransactionTypePayment,
		Amount:      amount,
		Currency:    wallet.Currency,
		Status:      common.TransactionStatusCompleted,
		Description: description,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
		CompletedAt: bun.NullTime{Time: time.Now()},
	}
	if _, err = tx.NewInsert().Model(txn).Exec(ctx); err != nil {
		return nil, err
	}
	return txn, nil
}
