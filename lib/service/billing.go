package service

import (
	"context"
	"errors"

	"github.com/gaiypov/rabota360-billing/common"
	"github.com/gaiypov/rabota360-billing/db/models"
	"github.com/gaiypov/rabota360-billing/gateway"
)

// InitDeposit begins a wallet top-up: get-or-create the wallet, record a
// PENDING deposit and register the order with the chosen provider, using the
// transaction id as the order id. The wallet is never credited here; only
// reconciliation does that, on a confirmed callback or status poll.
func (svc *BillingService) InitDeposit(ctx context.Context, accountId int64, amount int64, gatewayName string, description string, email string, phone string) (*models.Transaction, error) {
	if amount < svc.Config.MinDepositAmount {
		return nil, ErrDepositTooSmall
	}
	adapter, err := svc.GatewayFor(gatewayName)
	if err != nil {
		return nil, err
	}
	wallet, err := svc.GetOrCreateWallet(ctx, accountId)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = "Wallet deposit"
	}
	txn, err := svc.RecordPendingTransaction(ctx, wallet.ID, common.TransactionTypeDeposit, amount, gatewayName, description)
	if err != nil {
		return nil, err
	}

	// The order call runs outside any lock and under a bounded timeout.
	requestCtx, cancel := context.WithTimeout(ctx, svc.Config.GatewayTimeout())
	defer cancel()
	result, err := adapter.Initiate(requestCtx, gateway.InitiateParams{
		OrderID:     txn.ID,
		Amount:      amount,
		Description: description,
		Email:       email,
		Phone:       phone,
		ReturnURL:   svc.Config.PaymentReturnUrl,
	})
	if err != nil {
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) {
			// the provider answered and refused; nothing will ever
			// settle this row
			if markErr := svc.markTransactionFailed(ctx, txn); markErr != nil {
				svc.Logger.Errorf("Failed to mark transaction %s failed: %v", txn.ID, markErr)
			}
			return nil, err
		}
		// Timeout or transport failure: the charge may still exist
		// gateway-side. The transaction stays PENDING and is resolved
		// later by webhook or the pending poller.
		svc.Logger.Errorf("Gateway %s initiate for transaction %s did not complete: %v", gatewayName, txn.ID, err)
		return txn, ErrGatewayTimeout
	}

	txn.ExternalID = result.ExternalID
	txn.Metadata = map[string]interface{}{
		common.MetadataPaymentURLKey: result.PaymentURL,
	}
	if _, err = svc.DB.NewUpdate().Model(txn).WherePK().Exec(ctx); err != nil {
		return nil, err
	}
	return txn, nil
}

func (svc *BillingService) markTransactionFailed(ctx context.Context, txn *models.Transaction) error {
	txn.Status = common.TransactionStatusFailed
	_, err := svc.DB.NewUpdate().Model(txn).WherePK().Column("status", "updated_at").Exec(ctx)
	return err
}

// PaymentStatus reads one transaction, scoped to the calling account.
func (svc *BillingService) PaymentStatus(ctx context.Context, accountId int64, transactionId string) (*models.Transaction, error) {
	return svc.FindTransactionForAccount(ctx, accountId, transactionId)
}

// PaymentURL returns the provider redirect url recorded at initiation, or ""
// for transactions without one.
func PaymentURL(txn *models.Transaction) string {
	url, _ := txn.Metadata[common.MetadataPaymentURLKey].(string)
	return url
}

// RefundDeposit sends a refund order to the provider for a completed deposit
// and records the compensating refund transaction. The ledger row for the
// original deposit is never modified.
func (svc *BillingService) RefundDeposit(ctx context.Context, transactionId string, amount int64) (*models.Transaction, error) {
	deposit, err := svc.FindTransaction(ctx, transactionId)
	if err != nil {
		return nil, err
	}
	if deposit.Status != common.TransactionStatusCompleted || deposit.Type != common.TransactionTypeDeposit {
		return nil, ErrTransactionNotFound
	}
	if amount <= 0 || amount > deposit.Amount {
		amount = deposit.Amount
	}
	adapter, err := svc.GatewayFor(deposit.Gateway)
	if err != nil {
		return nil, err
	}
	// the provider is only asked to pay out money the wallet still holds
	wallet := models.Wallet{}
	if err = svc.DB.NewSelect().Model(&wallet).Where("id = ?", deposit.WalletID).Scan(ctx); err != nil {
		return nil, err
	}
	if wallet.Balance < amount {
		return nil, ErrInsufficientFunds
	}

	requestCtx, cancel := context.WithTimeout(ctx, svc.Config.GatewayTimeout())
	defer cancel()
	if err = adapter.Refund(requestCtx, deposit.ExternalID, amount); err != nil {
		return nil, err
	}

	refund, err := svc.RecordPendingTransaction(ctx, deposit.WalletID, common.TransactionTypeWithdrawal, amount, deposit.Gateway, "Refund of "+deposit.ID)
	if err != nil {
		return nil, err
	}
	return svc.CompleteTransaction(ctx, refund.ID)
}
