//go:build integration

package app

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/migration"
	"github.com/Additional-Code/tradehub/internal/pricing"
	"github.com/Additional-Code/tradehub/internal/principal"
	"github.com/Additional-Code/tradehub/internal/seeder"
	invoicesvc "github.com/Additional-Code/tradehub/internal/service/invoice"
	ordersvc "github.com/Additional-Code/tradehub/internal/service/order"
	previewsvc "github.com/Additional-Code/tradehub/internal/service/preview"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := t.Context()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("tradehub"),
		postgres.WithUsername("tradehub"),
		postgres.WithPassword("tradehub"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestPostgresOrderToInvoice(t *testing.T) {
	dsn := startPostgres(t)
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_WRITER_DSN", dsn)
	t.Setenv("DB_READER_DSN", dsn)
	t.Setenv("PRICING_TOKEN_SECRET", "integration-secret")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("MESSAGING_ENABLED", "false")
	t.Setenv("OBS_ENABLE_TRACING", "false")
	t.Setenv("OBS_ENABLE_METRICS", "false")
	t.Setenv("INVOICE_ISSUE_ON_APPROVAL", "false")

	var (
		conns    *database.Connections
		mig      *migration.Migrator
		seed     *seeder.Seeder
		previews *previewsvc.Service
		orders   *ordersvc.Service
		invoices *invoicesvc.Service
	)
	app := fxtest.New(t,
		Core,
		migration.Module,
		seeder.Module,
		fx.Populate(&conns, &mig, &seed, &previews, &orders, &invoices),
	)
	app.RequireStart()
	t.Cleanup(app.RequireStop)

	ctx := t.Context()
	require.NoError(t, mig.Up(ctx))
	require.NoError(t, seed.Catalog(ctx))

	var company, customer entity.User
	require.NoError(t, conns.Reader.NewSelect().Model(&company).Where("email = ?", "sales@northwind.example").Scan(ctx))
	require.NoError(t, conns.Reader.NewSelect().Model(&customer).Where("email = ?", "orders@contoso.example").Scan(ctx))
	var tea entity.Product
	require.NoError(t, conns.Reader.NewSelect().Model(&tea).Where("sku = ?", "NW-TEA-100").Scan(ctx))
	var address entity.Address
	require.NoError(t, conns.Reader.NewSelect().Model(&address).Where("customer_user_id = ?", customer.ID).Scan(ctx))

	buyer := principal.Principal{UserID: customer.ID, Role: principal.RoleCustomer}
	seller := principal.Principal{UserID: company.ID, Role: principal.RoleCompany}

	quote, err := previews.Preview(ctx, buyer, previewsvc.Command{
		CompanyID: company.ID,
		Items:     []pricing.LineRequest{{ProductID: tea.ID, Qty: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, "30.00", quote.Total.StringFixed(2))
	require.Len(t, quote.Items, 1)
	require.Len(t, quote.Items[0].Bonuses, 1)

	order, err := orders.Confirm(ctx, buyer, ordersvc.ConfirmCommand{PreviewToken: quote.Token, DeliveryAddressID: address.ID})
	require.NoError(t, err)

	_, err = orders.Confirm(ctx, buyer, ordersvc.ConfirmCommand{PreviewToken: quote.Token, DeliveryAddressID: address.ID})
	assert.True(t, errorbank.IsKind(err, errorbank.KindTokenAlreadyUsed))

	_, err = orders.Transition(ctx, seller, order.ID, ordersvc.TransitionCommand{Status: string(entity.OrderStatusApproved)})
	require.NoError(t, err)

	const callers = 6
	ids := make([]int64, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			invoice, _, err := invoices.IssueForOrder(ctx, order.ID)
			if assert.NoError(t, err) {
				ids[i] = invoice.ID
			}
		}()
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	count, err := conns.Reader.NewSelect().Model((*entity.Invoice)(nil)).Where("order_id = ?", order.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	invoice, err := invoices.GetByOrder(ctx, buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "30.00", invoice.Total.StringFixed(2))
	require.Len(t, invoice.Items, 1)
	assert.Len(t, invoice.Items[0].Bonuses, 1)
}
