package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Normalized payment states. Every adapter maps its provider's status
// vocabulary onto these before anything else in the service sees it.
const (
	StatePending   = "pending"
	StatePaid      = "paid"
	StateCancelled = "cancelled"
	StateRejected  = "rejected"
)

// ErrBadSignature means a webhook payload failed signature verification and
// must be treated as unauthenticated. Nothing in it can be trusted.
var ErrBadSignature = errors.New("webhook signature mismatch")

// Error is a failure reported by the provider API itself (as opposed to a
// transport error reaching it).
type Error struct {
	Gateway string
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s gateway error %s: %s", e.Gateway, e.Code, e.Message)
}

type InitiateParams struct {
	// OrderID is the internal transaction id. It is sent to the provider
	// as the merchant order number, so the provider-side order is
	// idempotent per transaction.
	OrderID     string
	Amount      int64 // minor units
	Description string
	Email       string
	Phone       string
	ReturnURL   string
}

type InitiateResult struct {
	ExternalID string
	PaymentURL string
}

type Status struct {
	State  string
	Amount int64 // minor units
}

// WebhookEvent is a provider callback normalized to the internal vocabulary.
type WebhookEvent struct {
	OrderID    string // internal transaction id
	ExternalID string // provider-side payment/order id
	State      string
	Amount     int64 // minor units, 0 when the provider does not report it
}

// Adapter hides one provider's wire format, amount conventions and signing
// scheme behind a uniform contract. Callers never branch on provider
// identity except to pick the adapter.
type Adapter interface {
	Name() string
	Initiate(ctx context.Context, params InitiateParams) (*InitiateResult, error)
	QueryStatus(ctx context.Context, externalID string) (*Status, error)
	// Cancel reverses an order before settlement.
	Cancel(ctx context.Context, externalID string) error
	Refund(ctx context.Context, externalID string, amount int64) error
	// ParseWebhook authenticates and decodes a raw callback payload.
	// ErrBadSignature is returned when the payload cannot be trusted; the
	// returned event must then be ignored entirely.
	ParseWebhook(payload []byte) (*WebhookEvent, error)
}
