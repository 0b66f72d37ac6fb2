package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gaiypov/rabota360-billing/db/models"
	"github.com/gaiypov/rabota360-billing/gateway"
)

// StartPendingTransactionRoutine periodically reconciles deposits that
// stayed PENDING because a webhook was lost or an initiate call timed out.
// Runs until the context is cancelled.
func (svc *BillingService) StartPendingTransactionRoutine(ctx context.Context) {
	interval := time.Duration(svc.Config.PendingCheckInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.CheckPendingTransactions(ctx); err != nil {
				svc.Logger.Error(err)
			}
		}
	}
}

func (svc *BillingService) CheckPendingTransactions(ctx context.Context) error {
	minAge := time.Duration(svc.Config.PendingCheckMinAge) * time.Second
	pending, err := svc.PendingDepositsOlderThan(ctx, minAge)
	if err != nil {
		return err
	}
	svc.Logger.Infof("Found %d stale pending deposits", len(pending))
	for _, txn := range pending {
		txn := txn
		if err := svc.checkPendingTransaction(ctx, &txn); err != nil {
			svc.Logger.Errorf("Failed to reconcile pending transaction %s: %v", txn.ID, err)
		}
	}
	return nil
}

// checkPendingTransaction polls the provider for the order's state and, when
// terminal, drives it through the same settlement path as a webhook.
func (svc *BillingService) checkPendingTransaction(ctx context.Context, txn *models.Transaction) error {
	adapter, err := svc.GatewayFor(txn.Gateway)
	if err != nil {
		return err
	}

	var status *gateway.Status
	err = backoff.Retry(func() error {
		requestCtx, cancel := context.WithTimeout(ctx, svc.Config.GatewayTimeout())
		defer cancel()
		var queryErr error
		status, queryErr = adapter.QueryStatus(requestCtx, txn.ExternalID)
		return queryErr
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx))
	if err != nil {
		return err
	}
	if status.State == gateway.StatePending {
		return nil
	}

	_, err = svc.SettleFromEvent(ctx, txn.Gateway, &gateway.WebhookEvent{
		OrderID:    txn.ID,
		ExternalID: txn.ExternalID,
		State:      status.State,
		Amount:     status.Amount,
	})
	var mismatch *AmountMismatchError
	if errors.As(err, &mismatch) {
		svc.Logger.Errorf("Flagged for review: %v", mismatch)
		return nil
	}
	return err
}
