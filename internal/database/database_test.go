package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/database/dbtest"
	"github.com/Additional-Code/tradehub/internal/entity"
)

func TestIsUniqueViolation(t *testing.T) {
	conns := dbtest.New(t)
	ctx := t.Context()

	user := &entity.User{Name: "Acme", Email: "sales@acme.test", Role: entity.RoleCompany, Active: true, CreatedAt: time.Now().UTC()}
	_, err := conns.Writer.NewInsert().Model(user).Exec(ctx)
	require.NoError(t, err)

	dup := &entity.User{Name: "Acme 2", Email: "sales@acme.test", Role: entity.RoleCompany, Active: true, CreatedAt: time.Now().UTC()}
	_, err = conns.Writer.NewInsert().Model(dup).Exec(ctx)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))

	assert.False(t, database.IsUniqueViolation(nil))
	assert.False(t, database.IsUniqueViolation(errors.New("connection reset")))
}

func TestActiveInvoiceIndexAllowsReissueAfterVoid(t *testing.T) {
	conns := dbtest.New(t)
	ctx := t.Context()

	newInvoice := func(number string, status entity.InvoiceStatus) *entity.Invoice {
		return &entity.Invoice{
			Number:     number,
			OrderID:    7,
			CompanyID:  1,
			CustomerID: 2,
			Subtotal:   decimal.RequireFromString("10.00"),
			Discount:   decimal.Zero,
			Total:      decimal.RequireFromString("10.00"),
			Status:     status,
			IssuedAt:   time.Now().UTC(),
		}
	}

	_, err := conns.Writer.NewInsert().Model(newInvoice("INV20261018-AAAAAA", entity.InvoiceStatusVoid)).Exec(ctx)
	require.NoError(t, err)

	_, err = conns.Writer.NewInsert().Model(newInvoice("INV20261018-BBBBBB", entity.InvoiceStatusUnpaid)).Exec(ctx)
	require.NoError(t, err)

	_, err = conns.Writer.NewInsert().Model(newInvoice("INV20261018-CCCCCC", entity.InvoiceStatusUnpaid)).Exec(ctx)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
}

func TestRunInTxRollsBack(t *testing.T) {
	conns := dbtest.New(t)
	ctx := t.Context()

	boom := errors.New("boom")
	err := conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		user := &entity.User{Name: "Buyer", Email: "buyer@example.test", Role: entity.RoleCustomer, Active: true, CreatedAt: time.Now().UTC()}
		if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err := conns.Reader.NewSelect().Model((*entity.User)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
