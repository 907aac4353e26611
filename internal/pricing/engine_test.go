package pricing

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Additional-Code/tradehub/internal/entity"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func product(id, company int64, price string) *entity.Product {
	return &entity.Product{ID: id, CompanyID: company, SKU: gofakeit.LetterN(6), Name: gofakeit.ProductName(), Price: dec(price), Active: true}
}

func catalog(products ...*entity.Product) map[int64]*entity.Product {
	return lo.KeyBy(products, func(p *entity.Product) int64 { return p.ID })
}

func TestCalculateWithoutOffers(t *testing.T) {
	products := catalog(product(1, 10, "10.00"))

	quote := Calculate([]LineRequest{{ProductID: 1, Qty: 3}}, products, nil, now)

	require.Len(t, quote.Lines, 1)
	line := quote.Lines[0]
	assert.Equal(t, "10.00", line.UnitPrice.StringFixed(2))
	assert.Equal(t, "30.00", line.LineTotal.StringFixed(2))
	assert.True(t, line.Discount.IsZero())
	assert.Nil(t, line.OfferID)

	assert.Equal(t, "30.00", quote.Subtotal.StringFixed(2))
	assert.Equal(t, "0.00", quote.Discount.StringFixed(2))
	assert.Equal(t, "30.00", quote.Total.StringFixed(2))
}

func TestCalculateOfferKinds(t *testing.T) {
	bonusID := int64(2)
	tests := []struct {
		name         string
		offer        *entity.Offer
		qty          int
		wantDiscount string
		wantBonuses  []entity.PreviewBonus
		wantOffer    bool
	}{
		{
			name:         "percentage above threshold",
			offer:        &entity.Offer{ID: 1, CompanyID: 10, ProductID: 1, Kind: entity.OfferKindPercentage, MinQty: 5, Value: dec("10"), Active: true},
			qty:          5,
			wantDiscount: "6.17",
			wantOffer:    true,
		},
		{
			name:         "percentage below threshold",
			offer:        &entity.Offer{ID: 1, CompanyID: 10, ProductID: 1, Kind: entity.OfferKindPercentage, MinQty: 5, Value: dec("10"), Active: true},
			qty:          4,
			wantDiscount: "0.00",
		},
		{
			name:         "fixed per unit",
			offer:        &entity.Offer{ID: 2, CompanyID: 10, ProductID: 1, Kind: entity.OfferKindFixed, MinQty: 1, Value: dec("1.50"), Active: true},
			qty:          4,
			wantDiscount: "6.00",
			wantOffer:    true,
		},
		{
			name:         "fixed capped at unit price",
			offer:        &entity.Offer{ID: 2, CompanyID: 10, ProductID: 1, Kind: entity.OfferKindFixed, MinQty: 1, Value: dec("99"), Active: true},
			qty:          2,
			wantDiscount: "24.66",
			wantOffer:    true,
		},
		{
			name:         "bonus buy three get one",
			offer:        &entity.Offer{ID: 3, CompanyID: 10, ProductID: 1, Kind: entity.OfferKindBonus, MinQty: 3, BonusProductID: &bonusID, BonusQty: 1, Active: true},
			qty:          7,
			wantDiscount: "0.00",
			wantBonuses:  []entity.PreviewBonus{{ProductID: 2, ProductName: "Sample sachet", Qty: 2}},
			wantOffer:    true,
		},
		{
			name:         "inactive offer ignored",
			offer:        &entity.Offer{ID: 4, CompanyID: 10, ProductID: 1, Kind: entity.OfferKindFixed, MinQty: 1, Value: dec("1"), Active: false},
			qty:          2,
			wantDiscount: "0.00",
		},
		{
			name:         "expired offer ignored",
			offer:        &entity.Offer{ID: 5, CompanyID: 10, ProductID: 1, Kind: entity.OfferKindFixed, MinQty: 1, Value: dec("1"), Active: true, EndsAt: lo.ToPtr(now)},
			qty:          2,
			wantDiscount: "0.00",
		},
		{
			name:         "future offer ignored",
			offer:        &entity.Offer{ID: 6, CompanyID: 10, ProductID: 1, Kind: entity.OfferKindFixed, MinQty: 1, Value: dec("1"), Active: true, StartsAt: lo.ToPtr(now.Add(time.Minute))},
			qty:          2,
			wantDiscount: "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := product(1, 10, "12.33")
			bonus := product(2, 10, "1.00")
			bonus.Name = "Sample sachet"
			products := catalog(item, bonus)

			quote := Calculate([]LineRequest{{ProductID: 1, Qty: tt.qty}}, products, []*entity.Offer{tt.offer}, now)

			require.Len(t, quote.Lines, 1)
			line := quote.Lines[0]
			assert.Equal(t, tt.wantDiscount, line.Discount.StringFixed(2))
			assert.Equal(t, tt.wantOffer, line.OfferID != nil)
			assert.Empty(t, cmp.Diff(tt.wantBonuses, line.Bonuses))
			assert.True(t, quote.Total.Equal(quote.Subtotal.Sub(quote.Discount)))
		})
	}
}

func TestSelectOfferTieBreak(t *testing.T) {
	p := product(1, 10, "5.00")
	base := entity.Offer{CompanyID: 10, ProductID: 1, Kind: entity.OfferKindFixed, MinQty: 1, Value: dec("1"), Active: true}

	low := base
	low.ID, low.Priority, low.CreatedAt = 1, 1, now.Add(-3*time.Hour)
	highLate := base
	highLate.ID, highLate.Priority, highLate.CreatedAt = 2, 5, now.Add(-time.Hour)
	highEarly := base
	highEarly.ID, highEarly.Priority, highEarly.CreatedAt = 3, 5, now.Add(-2*time.Hour)
	highEarlyTwin := base
	highEarlyTwin.ID, highEarlyTwin.Priority, highEarlyTwin.CreatedAt = 4, 5, now.Add(-2*time.Hour)

	offers := []*entity.Offer{&low, &highLate, &highEarlyTwin, &highEarly}

	got := SelectOffer(offers, p, 1, catalog(p), now)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.ID)
}

func TestCalculateBonusRequiresSellerProduct(t *testing.T) {
	foreignBonus := product(2, 99, "1.00")
	item := product(1, 10, "4.00")
	bonusID := foreignBonus.ID
	offer := &entity.Offer{ID: 1, CompanyID: 10, ProductID: 1, Kind: entity.OfferKindBonus, MinQty: 1, BonusProductID: &bonusID, BonusQty: 1, Active: true}

	quote := Calculate([]LineRequest{{ProductID: 1, Qty: 2}}, catalog(item, foreignBonus), []*entity.Offer{offer}, now)

	assert.Nil(t, quote.Lines[0].OfferID)
	assert.Empty(t, quote.Lines[0].Bonuses)
}

func TestCalculateTotalsReproducibleFromSnapshots(t *testing.T) {
	for round := 0; round < 50; round++ {
		var (
			products []*entity.Product
			offers   []*entity.Offer
			lines    []LineRequest
		)
		count := gofakeit.Number(1, 6)
		for i := 1; i <= count; i++ {
			p := product(int64(i), 10, decimal.NewFromFloat(gofakeit.Price(0.5, 250)).StringFixed(2))
			products = append(products, p)
			lines = append(lines, LineRequest{ProductID: p.ID, Qty: gofakeit.Number(1, 40)})
			if gofakeit.Bool() {
				offers = append(offers, &entity.Offer{
					ID:        int64(i),
					CompanyID: 10,
					ProductID: p.ID,
					Kind:      entity.OfferKindPercentage,
					MinQty:    gofakeit.Number(1, 10),
					Value:     decimal.NewFromInt(int64(gofakeit.Number(1, 60))),
					Active:    true,
				})
			}
		}

		quote := Calculate(lines, catalog(products...), offers, now)

		subtotal, discount := decimal.Zero, decimal.Zero
		for _, l := range quote.Lines {
			assert.True(t, l.LineTotal.Equal(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty)))))
			assert.True(t, l.Discount.LessThanOrEqual(l.LineTotal))
			subtotal = subtotal.Add(l.LineTotal)
			discount = discount.Add(l.Discount)
		}
		assert.True(t, quote.Subtotal.Equal(subtotal))
		assert.True(t, quote.Discount.Equal(discount))
		assert.True(t, quote.Total.Equal(subtotal.Sub(discount)))
	}
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name       string
		companyID  int64
		lines      []LineRequest
		wantFields []string
	}{
		{name: "valid", companyID: 1, lines: []LineRequest{{ProductID: 1, Qty: 1}}},
		{name: "no items", companyID: 1, wantFields: []string{"items"}},
		{name: "bad company", companyID: 0, lines: []LineRequest{{ProductID: 1, Qty: 1}}, wantFields: []string{"company_id"}},
		{name: "zero qty", companyID: 1, lines: []LineRequest{{ProductID: 1, Qty: 0}}, wantFields: []string{"items.0.qty"}},
		{name: "duplicate product", companyID: 1, lines: []LineRequest{{ProductID: 1, Qty: 1}, {ProductID: 1, Qty: 2}}, wantFields: []string{"items.1.product_id"}},
		{name: "max qty", companyID: 1, lines: []LineRequest{{ProductID: 1, Qty: MaxQty}}},
		{name: "qty above max", companyID: 1, lines: []LineRequest{{ProductID: 1, Qty: MaxQty + 1}}, wantFields: []string{"items.0.qty"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := ValidateRequest(tt.companyID, "", tt.lines)
			if len(tt.wantFields) == 0 {
				assert.Nil(t, fields)
				return
			}
			assert.ElementsMatch(t, tt.wantFields, lo.Keys(fields))
		})
	}
}

func TestCheckAmounts(t *testing.T) {
	products := catalog(product(1, 10, "1000000.00"), product(2, 10, "60000.00"), product(3, 10, "1.00"), product(4, 10, "60000.00"))

	fits := Calculate([]LineRequest{{ProductID: 3, Qty: MaxQty}}, products, nil, now)
	assert.Nil(t, CheckAmounts(fits))

	line := Calculate([]LineRequest{{ProductID: 3, Qty: 1}, {ProductID: 1, Qty: MaxQty}}, products, nil, now)
	assert.Equal(t, []string{"items.1.qty"}, lo.Keys(CheckAmounts(line)))

	total := Calculate([]LineRequest{{ProductID: 2, Qty: 90_000}, {ProductID: 4, Qty: 90_000}}, products, nil, now)
	assert.Equal(t, []string{"items"}, lo.Keys(CheckAmounts(total)))
}

func TestCheckProducts(t *testing.T) {
	inactive := product(2, 10, "1.00")
	inactive.Active = false
	products := catalog(product(1, 10, "1.00"), inactive, product(3, 11, "1.00"))

	tests := []struct {
		name string
		id   int64
		want ProductProblem
	}{
		{name: "missing", id: 4, want: ProductMissing},
		{name: "inactive", id: 2, want: ProductInactive},
		{name: "foreign", id: 3, want: ProductForeign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckProducts(10, []LineRequest{{ProductID: tt.id, Qty: 1}}, products)
			var perr *ProductError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.want, perr.Problem)
		})
	}

	assert.NoError(t, CheckProducts(10, []LineRequest{{ProductID: 1, Qty: 1}}, products))
}
