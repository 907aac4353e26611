// Package pricing computes preview quotes from catalog state. It performs no I/O.
package pricing

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/tradehub/internal/entity"
)

const (
	maxNotesLength = 2000
	// MaxQty is the largest quantity accepted on a single line.
	MaxQty = 100_000
)

var (
	hundred = decimal.NewFromInt(100)

	// MaxAmount is the largest money value the DECIMAL(12, 2) columns hold.
	MaxAmount = decimal.RequireFromString("9999999999.99")
)

// LineRequest is one requested product and quantity.
type LineRequest struct {
	ProductID int64
	Qty       int
}

// Quote is the priced result of a line set.
type Quote struct {
	Lines    []entity.PreviewLine
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// ProductProblem classifies why a requested product cannot be priced.
type ProductProblem string

const (
	ProductMissing  ProductProblem = "missing"
	ProductForeign  ProductProblem = "foreign"
	ProductInactive ProductProblem = "inactive"
)

// ProductError reports the first unusable product of a request.
type ProductError struct {
	ProductID int64
	Problem   ProductProblem
}

func (e *ProductError) Error() string {
	switch e.Problem {
	case ProductMissing:
		return fmt.Sprintf("product %d not found", e.ProductID)
	case ProductForeign:
		return fmt.Sprintf("product %d is not sold by this company", e.ProductID)
	default:
		return fmt.Sprintf("product %d is not active", e.ProductID)
	}
}

// ValidateRequest checks the request shape and returns field-level messages, or nil.
func ValidateRequest(companyID int64, notes string, lines []LineRequest) map[string]string {
	fields := make(map[string]string)
	if companyID <= 0 {
		fields["company_id"] = "must be a positive id"
	}
	if len([]rune(notes)) > maxNotesLength {
		fields["notes"] = fmt.Sprintf("must be at most %d characters", maxNotesLength)
	}
	if len(lines) == 0 {
		fields["items"] = "at least one item is required"
	}

	seen := make(map[int64]struct{}, len(lines))
	for i, line := range lines {
		if line.ProductID <= 0 {
			fields[fmt.Sprintf("items.%d.product_id", i)] = "must be a positive id"
		}
		switch {
		case line.Qty <= 0:
			fields[fmt.Sprintf("items.%d.qty", i)] = "must be a positive integer"
		case line.Qty > MaxQty:
			fields[fmt.Sprintf("items.%d.qty", i)] = fmt.Sprintf("must be at most %d", MaxQty)
		}
		if _, dup := seen[line.ProductID]; dup {
			fields[fmt.Sprintf("items.%d.product_id", i)] = "duplicate product"
		}
		seen[line.ProductID] = struct{}{}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

// CheckAmounts reports the lines of q whose line total does not fit a stored amount, keyed like
// ValidateRequest fields. The quote total is reported under "items".
func CheckAmounts(q Quote) map[string]string {
	fields := make(map[string]string)
	for i, line := range q.Lines {
		if line.LineTotal.GreaterThan(MaxAmount) {
			fields[fmt.Sprintf("items.%d.qty", i)] = "line total exceeds " + MaxAmount.StringFixed(2)
		}
	}
	if len(fields) == 0 && q.Subtotal.GreaterThan(MaxAmount) {
		fields["items"] = "order total exceeds " + MaxAmount.StringFixed(2)
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// CheckProducts verifies every requested product exists, belongs to companyID and is active.
func CheckProducts(companyID int64, lines []LineRequest, products map[int64]*entity.Product) error {
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return &ProductError{ProductID: line.ProductID, Problem: ProductMissing}
		}
		if product.CompanyID != companyID {
			return &ProductError{ProductID: line.ProductID, Problem: ProductForeign}
		}
		if !product.Active {
			return &ProductError{ProductID: line.ProductID, Problem: ProductInactive}
		}
	}
	return nil
}

// Calculate prices lines against products and offers at now. Products must have passed CheckProducts;
// products may also contain bonus products referenced by offers.
func Calculate(lines []LineRequest, products map[int64]*entity.Product, offers []*entity.Offer, now time.Time) Quote {
	quote := Quote{
		Lines:    make([]entity.PreviewLine, 0, len(lines)),
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
	}

	for _, req := range lines {
		product := products[req.ProductID]
		unit := product.Price.Round(2)
		lineTotal := unit.Mul(decimal.NewFromInt(int64(req.Qty))).Round(2)

		line := entity.PreviewLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Qty:         req.Qty,
			UnitPrice:   unit,
			Discount:    decimal.Zero,
			LineTotal:   lineTotal,
		}

		if offer := SelectOffer(offers, product, req.Qty, products, now); offer != nil {
			line.OfferID = lo.ToPtr(offer.ID)
			line.Discount = offerDiscount(offer, unit, req.Qty, lineTotal)
			if offer.Kind == entity.OfferKindBonus {
				bonus := products[*offer.BonusProductID]
				line.Bonuses = []entity.PreviewBonus{{
					ProductID:   bonus.ID,
					ProductName: bonus.Name,
					Qty:         (req.Qty / minQty(offer)) * offer.BonusQty,
				}}
			}
		}

		quote.Lines = append(quote.Lines, line)
		quote.Subtotal = quote.Subtotal.Add(line.LineTotal)
		quote.Discount = quote.Discount.Add(line.Discount)
	}

	quote.Total = quote.Subtotal.Sub(quote.Discount)
	return quote
}

// SelectOffer picks the winning eligible offer for a product: highest priority, then earliest
// creation, then lowest id. It returns nil when no offer applies.
func SelectOffer(offers []*entity.Offer, product *entity.Product, qty int, products map[int64]*entity.Product, now time.Time) *entity.Offer {
	eligible := lo.Filter(offers, func(o *entity.Offer, _ int) bool {
		return offerApplies(o, product, qty, products, now)
	})
	if len(eligible) == 0 {
		return nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return eligible[0]
}

func offerApplies(o *entity.Offer, product *entity.Product, qty int, products map[int64]*entity.Product, now time.Time) bool {
	if o == nil || !o.Active || o.ProductID != product.ID || o.CompanyID != product.CompanyID {
		return false
	}
	if o.StartsAt != nil && now.Before(*o.StartsAt) {
		return false
	}
	if o.EndsAt != nil && !now.Before(*o.EndsAt) {
		return false
	}
	if qty < minQty(o) {
		return false
	}

	switch o.Kind {
	case entity.OfferKindPercentage:
		return o.Value.IsPositive() && o.Value.LessThanOrEqual(hundred)
	case entity.OfferKindFixed:
		return o.Value.IsPositive()
	case entity.OfferKindBonus:
		if o.BonusProductID == nil || o.BonusQty <= 0 {
			return false
		}
		bonus, ok := products[*o.BonusProductID]
		return ok && bonus.Active && bonus.CompanyID == product.CompanyID
	default:
		return false
	}
}

func offerDiscount(o *entity.Offer, unit decimal.Decimal, qty int, lineTotal decimal.Decimal) decimal.Decimal {
	switch o.Kind {
	case entity.OfferKindPercentage:
		return lineTotal.Mul(o.Value).Div(hundred).Round(2)
	case entity.OfferKindFixed:
		return decimal.Min(o.Value, unit).Mul(decimal.NewFromInt(int64(qty))).Round(2)
	default:
		return decimal.Zero
	}
}

func minQty(o *entity.Offer) int {
	if o.MinQty < 1 {
		return 1
	}
	return o.MinQty
}

// BonusProductIDs lists the bonus products referenced by offers so callers can load them.
func BonusProductIDs(offers []*entity.Offer) []int64 {
	ids := lo.FilterMap(offers, func(o *entity.Offer, _ int) (int64, bool) {
		if o.Kind != entity.OfferKindBonus || o.BonusProductID == nil {
			return 0, false
		}
		return *o.BonusProductID, true
	})
	return lo.Uniq(ids)
}

// Requests rebuilds the line requests a stored quote was priced from.
func Requests(lines []entity.PreviewLine) []LineRequest {
	return lo.Map(lines, func(l entity.PreviewLine, _ int) LineRequest {
		return LineRequest{ProductID: l.ProductID, Qty: l.Qty}
	})
}
