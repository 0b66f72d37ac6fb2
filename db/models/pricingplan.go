package models

import "time"

// PricingPlan : a purchasable tariff shown to employers. Read-only from the
// service's point of view; managed through the admin tooling.
type PricingPlan struct {
	ID          int64     `json:"id" bun:",pk,autoincrement"`
	Name        string    `json:"name" bun:",notnull"`
	Description string    `json:"description,omitempty" bun:",nullzero"`
	Price       int64     `json:"price" bun:",notnull"`
	Currency    string    `json:"currency" bun:",notnull,default:'RUB'"`
	IsActive    bool      `json:"is_active" bun:",notnull,default:true"`
	CreatedAt   time.Time `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}
