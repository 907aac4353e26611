package pricing

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/tradehub/internal/entity"
)

// Drift describes one difference between a stored quote and a fresh re-pricing.
type Drift struct {
	ProductID int64  `json:"product_id,omitempty"`
	Field     string `json:"field"`
	Was       string `json:"was"`
	Now       string `json:"now"`
}

// Compare reports every monetary difference above tolerance and every offer or bonus change
// between the stored lines and a fresh quote. Line order must match.
func Compare(stored []entity.PreviewLine, storedTotal decimal.Decimal, current Quote, tolerance decimal.Decimal) []Drift {
	var drifts []Drift

	if len(stored) != len(current.Lines) {
		return []Drift{{Field: "items", Was: strconv.Itoa(len(stored)), Now: strconv.Itoa(len(current.Lines))}}
	}

	for i, was := range stored {
		now := current.Lines[i]
		if was.ProductID != now.ProductID || was.Qty != now.Qty {
			drifts = append(drifts, Drift{
				ProductID: was.ProductID,
				Field:     "item",
				Was:       fmt.Sprintf("%d x%d", was.ProductID, was.Qty),
				Now:       fmt.Sprintf("%d x%d", now.ProductID, now.Qty),
			})
			continue
		}
		if beyond(was.UnitPrice, now.UnitPrice, tolerance) {
			drifts = append(drifts, moneyDrift(was.ProductID, "unit_price", was.UnitPrice, now.UnitPrice))
		}
		if beyond(was.Discount, now.Discount, tolerance) {
			drifts = append(drifts, moneyDrift(was.ProductID, "discount", was.Discount, now.Discount))
		}
		if offerKey(was.OfferID) != offerKey(now.OfferID) {
			drifts = append(drifts, Drift{ProductID: was.ProductID, Field: "offer", Was: offerKey(was.OfferID), Now: offerKey(now.OfferID)})
		}
		if bonusKey(was.Bonuses) != bonusKey(now.Bonuses) {
			drifts = append(drifts, Drift{ProductID: was.ProductID, Field: "bonuses", Was: bonusKey(was.Bonuses), Now: bonusKey(now.Bonuses)})
		}
	}

	if beyond(storedTotal, current.Total, tolerance) {
		drifts = append(drifts, moneyDrift(0, "total", storedTotal, current.Total))
	}

	return drifts
}

func beyond(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().GreaterThan(tolerance)
}

func moneyDrift(productID int64, field string, was, now decimal.Decimal) Drift {
	return Drift{ProductID: productID, Field: field, Was: was.StringFixed(2), Now: now.StringFixed(2)}
}

func offerKey(id *int64) string {
	if id == nil {
		return "none"
	}
	return strconv.FormatInt(*id, 10)
}

func bonusKey(bonuses []entity.PreviewBonus) string {
	if len(bonuses) == 0 {
		return "none"
	}
	key := ""
	for i, b := range bonuses {
		if i > 0 {
			key += ","
		}
		key += fmt.Sprintf("%dx%d", b.ProductID, b.Qty)
	}
	return key
}
