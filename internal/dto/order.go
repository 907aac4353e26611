package dto

import (
	"time"

	"github.com/samber/lo"

	"github.com/Additional-Code/tradehub/internal/entity"
)

// OrderResponse represents an order as exposed via transport layers. Money is rendered as
// fixed two-decimal strings.
type OrderResponse struct {
	ID                int64               `json:"id"`
	Number            string              `json:"number"`
	Status            string              `json:"status"`
	CompanyID         int64               `json:"company_id"`
	CustomerID        int64               `json:"customer_id"`
	DeliveryAddressID int64               `json:"delivery_address_id"`
	Subtotal          string              `json:"subtotal"`
	Discount          string              `json:"discount"`
	Total             string              `json:"total"`
	NotesCustomer     string              `json:"notes_customer,omitempty"`
	NotesCompany      string              `json:"notes_company,omitempty"`
	Items             []OrderItemResponse `json:"items,omitempty"`
	SubmittedAt       time.Time           `json:"submitted_at"`
	ApprovedAt        *time.Time          `json:"approved_at,omitempty"`
	DeliveredAt       *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// OrderItemResponse is one priced order line.
type OrderItemResponse struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Qty         int             `json:"qty"`
	UnitPrice   string          `json:"unit_price"`
	Discount    string          `json:"discount"`
	LineTotal   string          `json:"line_total"`
	OfferID     *int64          `json:"offer_id,omitempty"`
	Bonuses     []BonusResponse `json:"bonuses,omitempty"`
}

// BonusResponse is a free item attached to a line.
type BonusResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Qty         int    `json:"qty"`
}

// StatusRequest is the body of an order status change.
type StatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

// ConfirmRequest is the body of an order confirmation.
type ConfirmRequest struct {
	PreviewToken      string `json:"preview_token"`
	DeliveryAddressID int64  `json:"delivery_address_id"`
}

// FromOrder maps an order entity.
func FromOrder(order *entity.Order) OrderResponse {
	return OrderResponse{
		ID:                order.ID,
		Number:            order.Number,
		Status:            string(order.Status),
		CompanyID:         order.CompanyID,
		CustomerID:        order.CustomerID,
		DeliveryAddressID: order.DeliveryAddressID,
		Subtotal:          order.Subtotal.StringFixed(2),
		Discount:          order.Discount.StringFixed(2),
		Total:             order.Total.StringFixed(2),
		NotesCustomer:     order.NotesCustomer,
		NotesCompany:      order.NotesCompany,
		Items: lo.Map(order.Items, func(item *entity.OrderItem, _ int) OrderItemResponse {
			return OrderItemResponse{
				ID:          item.ID,
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Qty:         item.Qty,
				UnitPrice:   item.UnitPrice.StringFixed(2),
				Discount:    item.Discount.StringFixed(2),
				LineTotal:   item.LineTotal.StringFixed(2),
				OfferID:     item.SelectedOfferID,
				Bonuses: lo.Map(item.Bonuses, func(b *entity.OrderItemBonus, _ int) BonusResponse {
					return BonusResponse{ProductID: b.BonusProductID, ProductName: b.BonusProductName, Qty: b.BonusQty}
				}),
			}
		}),
		SubmittedAt: order.SubmittedAt,
		ApprovedAt:  order.ApprovedAt,
		DeliveredAt: order.DeliveredAt,
		CancelledAt: order.CancelledAt,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}
