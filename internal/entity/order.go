package entity

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

// remember to add new statuses to validOrderStatuses
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var validOrderStatuses = map[OrderStatus]struct{}{
	OrderStatusPending:   {},
	OrderStatusApproved:  {},
	OrderStatusPreparing: {},
	OrderStatusShipped:   {},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// ErrInvalidOrderStatus is returned when parsing an unknown status.
var ErrInvalidOrderStatus = errors.New("invalid order status")

// ToOrderStatus parses s into a known OrderStatus.
func ToOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := validOrderStatuses[status]; ok {
		return status, nil
	}
	return "", ErrInvalidOrderStatus
}

// Invoiceable reports whether an order in this status may receive an invoice.
func (s OrderStatus) Invoiceable() bool {
	switch s {
	case OrderStatusApproved, OrderStatusPreparing, OrderStatusShipped, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// Order is the aggregate root persisted when a customer confirms a preview.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID                int64           `bun:",pk,autoincrement"`
	Number            string          `bun:"order_no,notnull,unique"`
	PreviewToken      string          `bun:"preview_token,notnull,unique"`
	CompanyID         int64           `bun:"company_user_id,notnull"`
	CustomerID        int64           `bun:"customer_user_id,notnull"`
	DeliveryAddressID int64           `bun:"delivery_address_id,notnull"`
	Status            OrderStatus     `bun:"status,notnull"`
	Subtotal          decimal.Decimal `bun:"subtotal,type:decimal(12,2),notnull"`
	Discount          decimal.Decimal `bun:"discount,type:decimal(12,2),notnull"`
	Total             decimal.Decimal `bun:"total,type:decimal(12,2),notnull"`
	NotesCustomer     string          `bun:"notes_customer,notnull"`
	NotesCompany      string          `bun:"notes_company,notnull"`
	SubmittedAt       time.Time       `bun:"submitted_at,notnull"`
	ApprovedAt        *time.Time      `bun:"approved_at"`
	DeliveredAt       *time.Time      `bun:"delivered_at"`
	CancelledAt       *time.Time      `bun:"cancelled_at"`
	CreatedAt         time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time       `bun:"updated_at,nullzero"`

	Items []*OrderItem `bun:"rel:has-many,join:id=order_id"`
}

// OrderItem is an immutable priced line of an order.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID              int64           `bun:",pk,autoincrement"`
	OrderID         int64           `bun:"order_id,notnull"`
	ProductID       int64           `bun:"product_id,notnull"`
	ProductName     string          `bun:"product_name,notnull"`
	Qty             int             `bun:"qty,notnull"`
	UnitPrice       decimal.Decimal `bun:"unit_price_snapshot,type:decimal(12,2),notnull"`
	Discount        decimal.Decimal `bun:"discount_amount_snapshot,type:decimal(12,2),notnull"`
	LineTotal       decimal.Decimal `bun:"final_line_total_snapshot,type:decimal(12,2),notnull"`
	SelectedOfferID *int64          `bun:"selected_offer_id"`

	Bonuses []*OrderItemBonus `bun:"rel:has-many,join:id=order_item_id"`
}

// OrderItemBonus is a free product granted to an order item by a bonus offer.
type OrderItemBonus struct {
	bun.BaseModel `bun:"table:order_item_bonuses"`

	ID               int64  `bun:",pk,autoincrement"`
	OrderItemID      int64  `bun:"order_item_id,notnull"`
	BonusProductID   int64  `bun:"bonus_product_id,notnull"`
	BonusProductName string `bun:"bonus_product_name,notnull"`
	BonusQty         int    `bun:"bonus_qty,notnull"`
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusApproved, OrderStatusCancelled},
	OrderStatusApproved:  {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
}

// CanTransitionTo reports whether an order may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
