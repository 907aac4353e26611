package invoice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/tradehub/internal/config"
	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/database/dbtest"
	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/messaging"
	"github.com/Additional-Code/tradehub/internal/principal"
	invoicerepo "github.com/Additional-Code/tradehub/internal/repository/invoice"
	orderrepo "github.com/Additional-Code/tradehub/internal/repository/order"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

var now = time.Date(2026, 10, 18, 11, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.Event
}

func (r *recordingPublisher) Publish(_ context.Context, msg messaging.Message) error {
	event, err := messaging.DecodeEvent(msg)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (r *recordingPublisher) Topic() string { return "tradehub.orders" }

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Map(r.events, func(e messaging.Event, _ int) string { return e.Type })
}

type fixture struct {
	conns     *database.Connections
	svc       *Service
	publisher *recordingPublisher
	catalog   dbtest.Catalog
	order     *entity.Order
}

func setup(t *testing.T, status entity.OrderStatus) fixture {
	t.Helper()
	conns := dbtest.New(t)
	c := dbtest.SeedCatalog(t, conns)
	publisher := &recordingPublisher{}

	svc := NewService(Params{
		Connections: conns,
		Orders:      orderrepo.NewRepository(conns),
		Invoices:    invoicerepo.NewRepository(conns),
		Config:      config.Config{Messaging: config.Messaging{Enabled: true}},
		Logger:      zaptest.NewLogger(t),
		Publisher:   publisher,
	})
	svc.now = func() time.Time { return now }

	order := &entity.Order{
		Number:            "ORD20261018-TEST01",
		PreviewToken:      "PV20261018TEST",
		CompanyID:         c.Company.ID,
		CustomerID:        c.Customer.ID,
		DeliveryAddressID: c.Address.ID,
		Status:            status,
		Subtotal:          decimal.RequireFromString("30.00"),
		Discount:          decimal.Zero,
		Total:             decimal.RequireFromString("30.00"),
		SubmittedAt:       now.Add(-time.Hour),
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
	require.NoError(t, conns.RunInTx(t.Context(), func(ctx context.Context, tx bun.Tx) error {
		return orderrepo.NewRepository(conns).WithTx(tx).Create(ctx, order)
	}))

	return fixture{conns: conns, svc: svc, publisher: publisher, catalog: c, order: order}
}

func countRows(t *testing.T, conns *database.Connections, model any) int {
	t.Helper()
	n, err := conns.Reader.NewSelect().Model(model).Count(t.Context())
	require.NoError(t, err)
	return n
}

func TestIssueForOrderSnapshotsOrder(t *testing.T) {
	f := setup(t, entity.OrderStatusApproved)

	invoice, created, err := f.svc.IssueForOrder(t.Context(), f.order.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Regexp(t, `^INV20261018-[A-Z0-9]{6}$`, invoice.Number)
	assert.Equal(t, entity.InvoiceStatusUnpaid, invoice.Status)
	assert.Equal(t, "30.00", invoice.Subtotal.StringFixed(2))
	assert.Equal(t, "0.00", invoice.Discount.StringFixed(2))
	assert.Equal(t, "30.00", invoice.Total.StringFixed(2))

	// catalog changes after issuance must not leak into the invoice
	_, err = f.conns.Writer.NewUpdate().Model((*entity.Product)(nil)).
		Set("price = ?", decimal.RequireFromString("99.00")).
		Where("id = ?", f.catalog.Product.ID).
		Exec(t.Context())
	require.NoError(t, err)

	owner := principal.Principal{UserID: f.catalog.Customer.ID, Role: principal.RoleCustomer}
	stored, err := f.svc.Get(t.Context(), owner, invoice.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	item := stored.Items[0]
	assert.Equal(t, 3, item.Qty)
	assert.Equal(t, "10.00", item.UnitPrice.StringFixed(2))
	assert.Equal(t, "30.00", item.LineTotal.StringFixed(2))
	assert.Equal(t, f.order.Items[0].ID, item.OrderItemID)
	require.Len(t, item.Bonuses, 1)
	assert.Equal(t, f.catalog.Sachet.ID, item.Bonuses[0].BonusProductID)
	assert.Equal(t, invoice.ID, item.Bonuses[0].InvoiceID)
	assert.Equal(t, "30.00", stored.Total.StringFixed(2))

	again, created, err := f.svc.IssueForOrder(t.Context(), f.order.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, invoice.ID, again.ID)

	assert.Equal(t, []string{messaging.EventInvoiceIssued}, f.publisher.types())
}

func TestIssueForOrderRejects(t *testing.T) {
	f := setup(t, entity.OrderStatusPending)

	_, _, err := f.svc.IssueForOrder(t.Context(), f.order.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))

	_, _, err = f.svc.IssueForOrder(t.Context(), 4242)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	assert.Zero(t, countRows(t, f.conns, (*entity.Invoice)(nil)))
}

func TestIssueForOrderConcurrent(t *testing.T) {
	f := setup(t, entity.OrderStatusApproved)

	const callers = 8
	var (
		wg      sync.WaitGroup
		ids     = make([]int64, callers)
		created = make([]bool, callers)
		errs    = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			invoice, ok, err := f.svc.IssueForOrder(context.Background(), f.order.ID)
			errs[i] = err
			created[i] = ok
			if invoice != nil {
				ids[i] = invoice.ID
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, lo.Uniq(ids), 1)
	assert.Equal(t, 1, lo.Count(created, true))
	assert.Equal(t, 1, countRows(t, f.conns, (*entity.Invoice)(nil)))
	assert.Equal(t, 1, countRows(t, f.conns, (*entity.InvoiceItem)(nil)))
	assert.Equal(t, 1, countRows(t, f.conns, (*entity.InvoiceBonusItem)(nil)))
}

func TestIssueResolvesConflictToExistingInvoice(t *testing.T) {
	f := setup(t, entity.OrderStatusApproved)

	winner := Build(f.order, "INV20261018-WINNER", now)
	require.NoError(t, invoicerepo.NewRepository(f.conns).Create(t.Context(), winner))

	order, err := orderrepo.NewRepository(f.conns).GetByID(t.Context(), f.order.ID)
	require.NoError(t, err)

	invoice, created, err := f.svc.issue(t.Context(), order)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner.ID, invoice.ID)
	assert.Equal(t, 1, countRows(t, f.conns, (*entity.Invoice)(nil)))
}

func TestIssueRetriesNumberCollision(t *testing.T) {
	f := setup(t, entity.OrderStatusApproved)

	other := *f.order
	other.ID = 0
	other.Number = "ORD20261018-OTHER1"
	other.PreviewToken = "PV20261018OTHR"
	other.Items = nil
	dbtest.Insert(t, f.conns, &other)
	taken := Build(&other, "INV20261018-TAKEN1", now)
	require.NoError(t, invoicerepo.NewRepository(f.conns).Create(t.Context(), taken))

	numbers := []string{"INV20261018-TAKEN1", "INV20261018-FRESH1"}
	f.svc.number = func(time.Time) (string, error) {
		n := numbers[0]
		numbers = numbers[1:]
		return n, nil
	}

	invoice, created, err := f.svc.IssueForOrder(t.Context(), f.order.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "INV20261018-FRESH1", invoice.Number)
}

func TestVoidAllowsReissue(t *testing.T) {
	f := setup(t, entity.OrderStatusApproved)
	admin := principal.Principal{UserID: 1, Role: principal.RoleAdmin}
	seller := principal.Principal{UserID: f.catalog.Company.ID, Role: principal.RoleCompany}

	first, _, err := f.svc.IssueForOrder(t.Context(), f.order.ID)
	require.NoError(t, err)

	_, err = f.svc.Void(t.Context(), seller, first.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	voided, err := f.svc.Void(t.Context(), admin, first.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusVoid, voided.Status)
	assert.NotNil(t, voided.VoidedAt)

	_, err = f.svc.Void(t.Context(), admin, first.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))

	second, created, err := f.svc.IssueForOrder(t.Context(), f.order.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)

	active, err := f.svc.GetByOrder(t.Context(), seller, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
}

func TestMarkPaid(t *testing.T) {
	f := setup(t, entity.OrderStatusApproved)
	seller := principal.Principal{UserID: f.catalog.Company.ID, Role: principal.RoleCompany}
	buyer := principal.Principal{UserID: f.catalog.Customer.ID, Role: principal.RoleCustomer}
	stranger := principal.Principal{UserID: f.catalog.Company.ID + 1000, Role: principal.RoleCompany}

	invoice, _, err := f.svc.IssueForOrder(t.Context(), f.order.ID)
	require.NoError(t, err)

	_, err = f.svc.MarkPaid(t.Context(), buyer, invoice.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	_, err = f.svc.MarkPaid(t.Context(), stranger, invoice.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	paid, err := f.svc.MarkPaid(t.Context(), seller, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusPaid, paid.Status)

	_, err = f.svc.MarkPaid(t.Context(), seller, invoice.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))

	_, err = f.svc.Get(t.Context(), principal.Principal{UserID: f.catalog.Customer.ID + 1000, Role: principal.RoleCustomer}, invoice.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	assert.Equal(t, []string{messaging.EventInvoiceIssued, messaging.EventInvoicePaid}, f.publisher.types())
}
