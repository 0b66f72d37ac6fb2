package models

import (
	"context"
	"time"

	"github.com/gaiypov/rabota360-billing/common"
	"github.com/uptrace/bun"
)

type InvoiceItem struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Price    int64  `json:"price"`
	Total    int64  `json:"total"`
}

// Invoice : Invoice Model. Amounts are minor units; Total = Amount + Vat.
// The paid status is only reachable through a wallet debit that commits
// atomically with the status flip.
type Invoice struct {
	ID          string        `json:"id" bun:",pk"`
	Number      string        `json:"number" bun:",notnull,unique"`
	AccountID   int64         `json:"account_id" bun:",notnull"`
	Amount      int64         `json:"amount" bun:",notnull"`
	Vat         int64         `json:"vat" bun:",notnull"`
	Total       int64         `json:"total" bun:",notnull"`
	Currency    string        `json:"currency" bun:",notnull,default:'RUB'"`
	Status      string        `json:"status" bun:",notnull,default:'draft'"`
	Description string        `json:"description,omitempty" bun:",nullzero"`
	Items       []InvoiceItem `json:"items,omitempty" bun:",nullzero,type:jsonb"`
	IssuedAt    time.Time     `json:"issued_at" bun:",nullzero,notnull,default:current_timestamp"`
	DueDate     bun.NullTime  `json:"due_date"`
	PaidAt      bun.NullTime  `json:"paid_at"`
	CreatedAt   time.Time     `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt   bun.NullTime  `json:"updated_at"`
}

func (i *Invoice) IsPaid() bool {
	return i.Status == common.InvoiceStatusPaid
}

func (i *Invoice) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		i.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Invoice)(nil)
