package order

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/database/dbtest"
	"github.com/Additional-Code/tradehub/internal/entity"
)

func newOrder(c dbtest.Catalog, now time.Time) *entity.Order {
	return &entity.Order{
		Number:            "ORD" + now.Format("20060102") + "-" + gofakeit.Regex("[A-Z0-9]{6}"),
		PreviewToken:      "PV" + now.Format("20060102") + gofakeit.Regex("[A-Z0-9]{4}"),
		CompanyID:         c.Company.ID,
		CustomerID:        c.Customer.ID,
		DeliveryAddressID: c.Address.ID,
		Status:            entity.OrderStatusPending,
		Subtotal:          decimal.RequireFromString("30.00"),
		Discount:          decimal.Zero,
		Total:             decimal.RequireFromString("30.00"),
		NotesCustomer:     "ring twice",
		SubmittedAt:       now,
		CreatedAt:         now,
		UpdatedAt:         now,
		Items: []*entity.OrderItem{{
			ProductID:   c.Product.ID,
			ProductName: c.Product.Name,
			Qty:         3,
			UnitPrice:   decimal.RequireFromString("10.00"),
			Discount:    decimal.Zero,
			LineTotal:   decimal.RequireFromString("30.00"),
			Bonuses: []*entity.OrderItemBonus{{
				BonusProductID:   c.Sachet.ID,
				BonusProductName: c.Sachet.Name,
				BonusQty:         1,
			}},
		}},
	}
}

func create(t *testing.T, conns *database.Connections, order *entity.Order) {
	t.Helper()
	repo := NewRepository(conns)
	require.NoError(t, conns.RunInTx(t.Context(), func(ctx context.Context, tx bun.Tx) error {
		return repo.WithTx(tx).Create(ctx, order)
	}))
}

func TestCreateAndGet(t *testing.T) {
	conns := dbtest.New(t)
	c := dbtest.SeedCatalog(t, conns)
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	order := newOrder(c, now)
	create(t, conns, order)
	require.NotZero(t, order.ID)

	repo := NewRepository(conns)
	for name, get := range map[string]func() (*entity.Order, error){
		"reader": func() (*entity.Order, error) { return repo.GetByID(t.Context(), order.ID) },
		"writer": func() (*entity.Order, error) { return repo.GetFromWriter(t.Context(), order.ID) },
	} {
		t.Run(name, func(t *testing.T) {
			got, err := get()
			require.NoError(t, err)
			require.Len(t, got.Items, 1)
			require.Len(t, got.Items[0].Bonuses, 1)
			assert.Equal(t, got.Items[0].ID, got.Items[0].Bonuses[0].OrderItemID)

			diff := cmp.Diff(order, got,
				cmpopts.IgnoreFields(entity.Order{}, "SubmittedAt", "CreatedAt", "UpdatedAt"),
				cmpopts.IgnoreFields(entity.OrderItem{}, "Bonuses"),
				cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }),
			)
			assert.Empty(t, diff)
		})
	}

	_, err := repo.GetByID(t.Context(), order.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRejectsDuplicateNumber(t *testing.T) {
	conns := dbtest.New(t)
	c := dbtest.SeedCatalog(t, conns)
	now := time.Now().UTC()

	first := newOrder(c, now)
	create(t, conns, first)

	second := newOrder(c, now)
	second.Number = first.Number
	repo := NewRepository(conns)
	err := conns.RunInTx(t.Context(), func(ctx context.Context, tx bun.Tx) error {
		return repo.WithTx(tx).Create(ctx, second)
	})
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
}

func TestUpdateStatusGuardsPreviousStatus(t *testing.T) {
	conns := dbtest.New(t)
	c := dbtest.SeedCatalog(t, conns)
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	order := newOrder(c, now)
	create(t, conns, order)

	repo := NewRepository(conns)
	approved := now.Add(time.Hour)
	order.Status = entity.OrderStatusApproved
	order.ApprovedAt = &approved
	order.NotesCompany = "ok"

	ok, err := repo.UpdateStatus(t.Context(), order, entity.OrderStatusPending)
	require.NoError(t, err)
	assert.True(t, ok)

	// a second writer still believing the order is pending loses
	order.Status = entity.OrderStatusCancelled
	ok, err = repo.UpdateStatus(t.Context(), order, entity.OrderStatusPending)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetFromWriter(t.Context(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusApproved, got.Status)
	assert.Equal(t, "ok", got.NotesCompany)
	require.NotNil(t, got.ApprovedAt)
	assert.True(t, approved.Equal(*got.ApprovedAt))
}
