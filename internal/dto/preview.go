package dto

import (
	"time"

	"github.com/samber/lo"

	"github.com/Additional-Code/tradehub/internal/entity"
)

// PreviewRequest is the body of a pricing preview.
type PreviewRequest struct {
	CompanyID int64              `json:"company_id"`
	Notes     string             `json:"notes"`
	Items     []PreviewItemInput `json:"items"`
}

// PreviewItemInput is one requested product.
type PreviewItemInput struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

// PreviewResponse is a priced cart and its redemption token.
type PreviewResponse struct {
	PreviewToken string              `json:"preview_token"`
	ExpiresAt    time.Time           `json:"expires_at"`
	Currency     string              `json:"currency"`
	Subtotal     string              `json:"subtotal"`
	Discount     string              `json:"discount"`
	Total        string              `json:"total"`
	Items        []OrderItemResponse `json:"items"`
}

// PreviewLines maps quote lines; line ids are not assigned yet.
func PreviewLines(lines []entity.PreviewLine) []OrderItemResponse {
	return lo.Map(lines, func(l entity.PreviewLine, _ int) OrderItemResponse {
		return OrderItemResponse{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Qty:         l.Qty,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Discount:    l.Discount.StringFixed(2),
			LineTotal:   l.LineTotal.StringFixed(2),
			OfferID:     l.OfferID,
			Bonuses: lo.Map(l.Bonuses, func(b entity.PreviewBonus, _ int) BonusResponse {
				return BonusResponse{ProductID: b.ProductID, ProductName: b.ProductName, Qty: b.Qty}
			}),
		}
	})
}
