package models

import (
	"context"
	"time"

	"github.com/gaiypov/rabota360-billing/common"
	"github.com/uptrace/bun"
)

// Transaction : an immutable record of a single money movement. The row is
// created PENDING, moves to exactly one terminal status and is never
// touched again; the amount is fixed at creation time.
//
// The id is a UUID and doubles as the order id on the gateway side, which
// makes repeated initiation and settlement naturally idempotent.
type Transaction struct {
	ID          string                 `json:"id" bun:",pk"`
	WalletID    int64                  `json:"wallet_id" bun:",notnull"`
	Wallet      *Wallet                `json:"-" bun:"rel:belongs-to,join:wallet_id=id"`
	Type        string                 `json:"type" bun:",notnull"`
	Amount      int64                  `json:"amount" bun:",notnull"`
	Currency    string                 `json:"currency" bun:",notnull,default:'RUB'"`
	Status      string                 `json:"status" bun:",notnull,default:'pending'"`
	Gateway     string                 `json:"gateway,omitempty" bun:",nullzero"`
	ExternalID  string                 `json:"external_id,omitempty" bun:",nullzero"`
	Description string                 `json:"description,omitempty" bun:",nullzero"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" bun:",nullzero,type:jsonb"`
	CreatedAt   time.Time              `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt   bun.NullTime           `json:"updated_at"`
	CompletedAt bun.NullTime           `json:"completed_at"`
}

func (t *Transaction) IsTerminal() bool {
	return common.IsTerminalTransactionStatus(t.Status)
}

func (t *Transaction) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		t.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Transaction)(nil)
