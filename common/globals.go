package common

const (
	TransactionTypeDeposit    = "deposit"
	TransactionTypePayment    = "payment"
	TransactionTypeRefund     = "refund"
	TransactionTypeWithdrawal = "withdrawal"

	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusCancelled = "cancelled"

	InvoiceStatusDraft  = "draft"
	InvoiceStatusIssued = "issued"
	InvoiceStatusPaid   = "paid"
	InvoiceStatusVoid   = "void"

	GatewayTinkoff  = "tinkoff"
	GatewayAlfabank = "alfabank"

	CurrencyRUB = "RUB"

	// metadata keys on transactions
	MetadataReviewKey     = "review"
	MetadataPaymentURLKey = "payment_url"
	MetadataInvoiceIDKey  = "invoice_id"

	ReviewReasonAmountMismatch = "amount_mismatch"
)

// BalanceDirection returns +1 for transaction types that credit the wallet
// and -1 for types that debit it.
func BalanceDirection(transactionType string) int64 {
	switch transactionType {
	case TransactionTypeDeposit, TransactionTypeRefund:
		return 1
	default:
		return -1
	}
}

func IsTerminalTransactionStatus(status string) bool {
	switch status {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled:
		return true
	}
	return false
}
