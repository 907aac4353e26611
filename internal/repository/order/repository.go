package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/report"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/tradehub/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer bun.IDB
	reader bun.IDB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// WithTx returns a copy that reads and writes through tx.
func (r *Repository) WithTx(tx bun.Tx) *Repository {
	return &Repository{writer: tx, reader: tx}
}

// Create persists an order with its items and bonuses. Run it inside a transaction so a
// partial aggregate is never visible.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(order).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}

	if len(order.Items) == 0 {
		return nil
	}
	for _, item := range order.Items {
		item.OrderID = order.ID
	}
	if _, err := r.writer.NewInsert().Model(&order.Items).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert items failed")
		return err
	}

	var bonuses []*entity.OrderItemBonus
	for _, item := range order.Items {
		for _, bonus := range item.Bonuses {
			bonus.OrderItemID = item.ID
			bonuses = append(bonuses, bonus)
		}
	}
	if len(bonuses) == 0 {
		return nil
	}
	if _, err := r.writer.NewInsert().Model(&bonuses).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert bonuses failed")
		return err
	}
	return nil
}

// GetByID fetches an order with its items and bonuses using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	return r.get(ctx, r.reader, id)
}

// GetFromWriter fetches an order through the writer so read-modify-write flows see their own
// commits. It takes no row lock; writers guard on the previous status instead (see UpdateStatus).
func (r *Repository) GetFromWriter(ctx context.Context, id int64) (*entity.Order, error) {
	return r.get(ctx, r.writer, id)
}

func (r *Repository) get(ctx context.Context, db bun.IDB, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := db.NewSelect().
		Model(order).
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery { return q.Order("id ASC") }).
		Relation("Items.Bonuses", func(q *bun.SelectQuery) *bun.SelectQuery { return q.Order("id ASC") }).
		Where("?TableAlias.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// UpdateStatus writes the lifecycle columns of order, provided its stored status is still from.
// It reports false when a concurrent transition won.
func (r *Repository) UpdateStatus(ctx context.Context, order *entity.Order, from entity.OrderStatus) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.String("order.status.from", string(from)),
		attribute.String("order.status.to", string(order.Status)),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model(order).
		Column("status", "approved_at", "delivered_at", "cancelled_at", "notes_company", "updated_at").
		WherePK().
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// List returns the orders matching spec, newest first. Items are not loaded.
func (r *Repository) List(ctx context.Context, spec report.Spec, now time.Time, limit int) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List", trace.WithAttributes(attribute.Int("filter.count", len(spec.Filters))))
	defer span.End()

	var orders []*entity.Order
	q, err := report.ApplyOrders(r.reader.NewSelect().Model(&orders), spec, now)
	if err != nil {
		return nil, err
	}
	if err := q.Order("submitted_at DESC", "id DESC").Limit(limit).Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}
