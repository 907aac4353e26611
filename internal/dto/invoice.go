package dto

import (
	"time"

	"github.com/samber/lo"

	"github.com/Additional-Code/tradehub/internal/entity"
)

type InvoiceResponse struct {
	ID         int64                 `json:"id"`
	Number     string                `json:"number"`
	OrderID    int64                 `json:"order_id"`
	CompanyID  int64                 `json:"company_id"`
	CustomerID int64                 `json:"customer_id"`
	Status     string                `json:"status"`
	Subtotal   string                `json:"subtotal"`
	Discount   string                `json:"discount"`
	Total      string                `json:"total"`
	Items      []InvoiceItemResponse `json:"items,omitempty"`
	IssuedAt   time.Time             `json:"issued_at"`
	PaidAt     *time.Time            `json:"paid_at,omitempty"`
	VoidedAt   *time.Time            `json:"voided_at,omitempty"`
}

type InvoiceItemResponse struct {
	ID          int64           `json:"id"`
	OrderItemID int64           `json:"order_item_id"`
	ProductID   int64           `json:"product_id"`
	Description string          `json:"description"`
	Qty         int             `json:"qty"`
	UnitPrice   string          `json:"unit_price"`
	Discount    string          `json:"discount"`
	LineTotal   string          `json:"line_total"`
	Bonuses     []BonusResponse `json:"bonuses,omitempty"`
}

func FromInvoice(invoice *entity.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:         invoice.ID,
		Number:     invoice.Number,
		OrderID:    invoice.OrderID,
		CompanyID:  invoice.CompanyID,
		CustomerID: invoice.CustomerID,
		Status:     string(invoice.Status),
		Subtotal:   invoice.Subtotal.StringFixed(2),
		Discount:   invoice.Discount.StringFixed(2),
		Total:      invoice.Total.StringFixed(2),
		Items: lo.Map(invoice.Items, func(item *entity.InvoiceItem, _ int) InvoiceItemResponse {
			return InvoiceItemResponse{
				ID:          item.ID,
				OrderItemID: item.OrderItemID,
				ProductID:   item.ProductID,
				Description: item.Description,
				Qty:         item.Qty,
				UnitPrice:   item.UnitPrice.StringFixed(2),
				Discount:    item.Discount.StringFixed(2),
				LineTotal:   item.LineTotal.StringFixed(2),
				Bonuses: lo.Map(item.Bonuses, func(b *entity.InvoiceBonusItem, _ int) BonusResponse {
					return BonusResponse{ProductID: b.BonusProductID, ProductName: b.Description, Qty: b.BonusQty}
				}),
			}
		}),
		IssuedAt: invoice.IssuedAt,
		PaidAt:   invoice.PaidAt,
		VoidedAt: invoice.VoidedAt,
	}
}
