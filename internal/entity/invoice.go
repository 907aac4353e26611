package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// InvoiceStatus is the payment state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid InvoiceStatus = "unpaid"
	InvoiceStatusPaid   InvoiceStatus = "paid"
	InvoiceStatusVoid   InvoiceStatus = "void"
)

// Invoice is the financial snapshot of an order. It references, but never owns, the order.
type Invoice struct {
	bun.BaseModel `bun:"table:invoices"`

	ID         int64           `bun:",pk,autoincrement"`
	Number     string          `bun:"invoice_no,notnull,unique"`
	OrderID    int64           `bun:"order_id,notnull"`
	CompanyID  int64           `bun:"company_user_id,notnull"`
	CustomerID int64           `bun:"customer_user_id,notnull"`
	Subtotal   decimal.Decimal `bun:"subtotal_snapshot,type:decimal(12,2),notnull"`
	Discount   decimal.Decimal `bun:"discount_total_snapshot,type:decimal(12,2),notnull"`
	Total      decimal.Decimal `bun:"total_snapshot,type:decimal(12,2),notnull"`
	Status     InvoiceStatus   `bun:"status,notnull"`
	IssuedAt   time.Time       `bun:"issued_at,notnull"`
	PaidAt     *time.Time      `bun:"paid_at"`
	VoidedAt   *time.Time      `bun:"voided_at"`

	Items []*InvoiceItem `bun:"rel:has-many,join:id=invoice_id"`
}

// InvoiceItem mirrors one order item at issuance time.
type InvoiceItem struct {
	bun.BaseModel `bun:"table:invoice_items"`

	ID          int64           `bun:",pk,autoincrement"`
	InvoiceID   int64           `bun:"invoice_id,notnull"`
	OrderItemID int64           `bun:"order_item_id,notnull"`
	ProductID   int64           `bun:"product_id,notnull"`
	Description string          `bun:"description,notnull"`
	Qty         int             `bun:"qty,notnull"`
	UnitPrice   decimal.Decimal `bun:"unit_price_snapshot,type:decimal(12,2),notnull"`
	Discount    decimal.Decimal `bun:"discount_amount_snapshot,type:decimal(12,2),notnull"`
	LineTotal   decimal.Decimal `bun:"line_total_snapshot,type:decimal(12,2),notnull"`

	Bonuses []*InvoiceBonusItem `bun:"rel:has-many,join:id=invoice_item_id"`
}

// InvoiceBonusItem mirrors one order item bonus at issuance time.
type InvoiceBonusItem struct {
	bun.BaseModel `bun:"table:invoice_bonus_items"`

	ID             int64  `bun:",pk,autoincrement"`
	InvoiceID      int64  `bun:"invoice_id,notnull"`
	InvoiceItemID  int64  `bun:"invoice_item_id,notnull"`
	BonusProductID int64  `bun:"bonus_product_id,notnull"`
	Description    string `bun:"description,notnull"`
	BonusQty       int    `bun:"bonus_qty,notnull"`
}
