package service

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientFunds   = errors.New("insufficient wallet balance")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrInvoiceAlreadyPaid  = errors.New("invoice has already been paid")
	ErrUnknownGateway      = errors.New("unknown payment gateway")
	ErrDepositTooSmall     = errors.New("deposit amount is below the minimum")
	// ErrGatewayTimeout means the initiate call did not come back in time.
	// The charge may still have succeeded gateway-side, so the transaction
	// stays PENDING and is resolved later by webhook or status poll.
	ErrGatewayTimeout = errors.New("payment gateway timed out")
)

// AmountMismatchError : the gateway reported a settled amount different from
// the recorded transaction amount. The transaction is forced to FAILED and
// flagged for manual review; the wallet is never touched.
type AmountMismatchError struct {
	TransactionID string
	Expected      int64
	Reported      int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch on transaction %s: recorded %d, gateway reported %d", e.TransactionID, e.Expected, e.Reported)
}
