package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// PreviewBonus is a free item granted by a bonus offer at preview time.
type PreviewBonus struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Qty         int    `json:"qty"`
}

// PreviewLine is the priced snapshot of one requested product.
type PreviewLine struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	LineTotal   decimal.Decimal `json:"line_total"`
	OfferID     *int64          `json:"offer_id,omitempty"`
	Bonuses     []PreviewBonus  `json:"bonuses,omitempty"`
}

// PreviewQuote backs a preview token until it expires or is consumed by an order.
type PreviewQuote struct {
	bun.BaseModel `bun:"table:order_previews"`

	ID         int64           `bun:",pk,autoincrement"`
	Token      string          `bun:"token,notnull,unique"`
	CustomerID int64           `bun:"customer_user_id,notnull"`
	CompanyID  int64           `bun:"company_user_id,notnull"`
	Notes      string          `bun:"notes,notnull"`
	Lines      []PreviewLine   `bun:"payload,type:text,notnull"`
	Subtotal   decimal.Decimal `bun:"subtotal,type:decimal(12,2),notnull"`
	Discount   decimal.Decimal `bun:"discount,type:decimal(12,2),notnull"`
	Total      decimal.Decimal `bun:"total,type:decimal(12,2),notnull"`
	Signature  string          `bun:"signature,notnull"`
	ExpiresAt  time.Time       `bun:"expires_at,notnull"`
	ConsumedAt *time.Time      `bun:"consumed_at"`
	OrderID    *int64          `bun:"order_id"`
	CreatedAt  time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// Expired reports whether the quote is unusable at now.
func (q *PreviewQuote) Expired(now time.Time) bool {
	return !now.Before(q.ExpiresAt)
}

// Consumed reports whether an order has already been created from the quote.
func (q *PreviewQuote) Consumed() bool {
	return q.ConsumedAt != nil
}
