package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Wallet : one employer account's stored balance, in minor currency units
// (kopecks). The balance is only ever mutated inside a locked ledger
// operation, together with the transaction row that explains the change.
type Wallet struct {
	ID        int64        `json:"id" bun:",pk,autoincrement"`
	AccountID int64        `json:"account_id" bun:",notnull,unique"`
	Balance   int64        `json:"balance" bun:",notnull,default:0"`
	Currency  string       `json:"currency" bun:",notnull,default:'RUB'"`
	CreatedAt time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt bun.NullTime `json:"updated_at"`
}

func (w *Wallet) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		w.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Wallet)(nil)
