package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Product is a catalog entry owned by a selling company.
type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID        int64           `bun:",pk,autoincrement"`
	CompanyID int64           `bun:"company_user_id,notnull"`
	SKU       string          `bun:"sku,notnull"`
	Name      string          `bun:"name,notnull"`
	Price     decimal.Decimal `bun:"price,type:decimal(12,2),notnull"`
	Active    bool            `bun:"active,notnull"`
	CreatedAt time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// OfferKind enumerates promotional offer mechanics.
type OfferKind string

const (
	OfferKindPercentage OfferKind = "percentage"
	OfferKindFixed      OfferKind = "fixed"
	OfferKindBonus      OfferKind = "bonus"
)

// Offer is a seller promotion attached to a single product.
//
// Percentage offers take Value percent off the line, fixed offers take Value off each unit,
// bonus offers grant BonusQty units of BonusProductID for every MinQty units ordered.
type Offer struct {
	bun.BaseModel `bun:"table:offers"`

	ID             int64           `bun:",pk,autoincrement"`
	CompanyID      int64           `bun:"company_user_id,notnull"`
	ProductID      int64           `bun:"product_id,notnull"`
	Kind           OfferKind       `bun:"kind,notnull"`
	MinQty         int             `bun:"min_qty,notnull"`
	Value          decimal.Decimal `bun:"value,type:decimal(12,2),notnull"`
	BonusProductID *int64          `bun:"bonus_product_id"`
	BonusQty       int             `bun:"bonus_qty,notnull"`
	Priority       int             `bun:"priority,notnull"`
	Active         bool            `bun:"active,notnull"`
	StartsAt       *time.Time      `bun:"starts_at"`
	EndsAt         *time.Time      `bun:"ends_at"`
	CreatedAt      time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// Address is a customer delivery address.
type Address struct {
	bun.BaseModel `bun:"table:addresses"`

	ID         int64     `bun:",pk,autoincrement"`
	CustomerID int64     `bun:"customer_user_id,notnull"`
	Label      string    `bun:"label,notnull"`
	Line1      string    `bun:"line1,notnull"`
	City       string    `bun:"city,notnull"`
	Country    string    `bun:"country,notnull"`
	Active     bool      `bun:"active,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
