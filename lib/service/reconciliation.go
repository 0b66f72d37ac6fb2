package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/uptrace/bun"

	"github.com/gaiypov/rabota360-billing/common"
	"github.com/gaiypov/rabota360-billing/db/models"
	"github.com/gaiypov/rabota360-billing/gateway"
)

// ProcessGatewayWebhook authenticates one provider callback and drives the
// referenced transaction's state machine. The provider identity comes from
// the route, never from the payload. On gateway.ErrBadSignature no row is
// touched; the transaction stays resolvable by a later, correctly signed
// callback.
func (svc *BillingService) ProcessGatewayWebhook(ctx context.Context, gatewayName string, payload []byte) (*models.Transaction, error) {
	adapter, err := svc.GatewayFor(gatewayName)
	if err != nil {
		return nil, err
	}
	event, err := adapter.ParseWebhook(payload)
	if err != nil {
		return nil, err
	}
	return svc.SettleFromEvent(ctx, gatewayName, event)
}

// SettleFromEvent applies one normalized gateway event to the ledger:
//
//	PENDING -> {COMPLETED | FAILED | CANCELLED}
//
// Terminal states absorb repeat input, so replays and duplicate deliveries
// have no effect. The row lock plus the terminal short-circuit give
// exactly-once balance effect under concurrent delivery.
//
// A paid event whose amount does not match the recorded amount forces the
// transaction to FAILED, flags it for manual review and reports an
// *AmountMismatchError after committing. Balance is never touched on a
// mismatch.
func (svc *BillingService) SettleFromEvent(ctx context.Context, gatewayName string, event *gateway.WebhookEvent) (*models.Transaction, error) {
	var settled *models.Transaction
	var mismatch *AmountMismatchError
	newlyTerminal := false

	err := svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		txn, err := svc.lockTransaction(ctx, tx, event.OrderID)
		if err != nil {
			return err
		}
		// a callback claiming a transaction that belongs to a different
		// provider is as good as a callback for a missing one
		if txn.Gateway != gatewayName {
			return ErrTransactionNotFound
		}
		if txn.IsTerminal() {
			settled = txn
			return nil
		}
		if event.ExternalID != "" && txn.ExternalID == "" {
			txn.ExternalID = event.ExternalID
		}

		switch event.State {
		case gateway.StatePaid:
			if event.Amount != 0 && event.Amount != txn.Amount {
				mismatch = &AmountMismatchError{
					TransactionID: txn.ID,
					Expected:      txn.Amount,
					Reported:      event.Amount,
				}
				txn.Status = common.TransactionStatusFailed
				if txn.Metadata == nil {
					txn.Metadata = map[string]interface{}{}
				}
				txn.Metadata[common.MetadataReviewKey] = common.ReviewReasonAmountMismatch
			} else {
				if err = svc.applyBalanceEffect(ctx, tx, txn); err != nil {
					return err
				}
				txn.Status = common.TransactionStatusCompleted
				txn.CompletedAt = bun.NullTime{Time: time.Now()}
			}
		case gateway.StateCancelled:
			txn.Status = common.TransactionStatusCancelled
		case gateway.StateRejected:
			txn.Status = common.TransactionStatusFailed
		default:
			// still pending on the provider side, nothing to settle yet
			settled = txn
			return nil
		}

		if _, err = tx.NewUpdate().Model(txn).WherePK().Exec(ctx); err != nil {
			return err
		}
		settled = txn
		newlyTerminal = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if newlyTerminal {
		svc.publishSettled(settled)
	}
	if mismatch != nil {
		sentry.CaptureException(mismatch)
		return settled, mismatch
	}
	return settled, nil
}

func (svc *BillingService) publishSettled(txn *models.Transaction) {
	if txn == nil || svc.TransactionPubSub == nil {
		return
	}
	svc.TransactionPubSub.Publish(txn.Status, *txn)
}
