package invoice

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

var repoTracer = otel.Tracer("github.com/Additional-Code/tradehub/repository/invoice")

// ErrNotFound is returned when an invoice is missing.
var ErrNotFound = errors.New("invoice not found")

// Repository encapsulates read/write access for invoices.
type Repository struct {
	writer bun.IDB
	reader bun.IDB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// WithTx returns a copy that reads and writes through tx.
func (r *Repository) WithTx(tx bun.Tx) *Repository {
	return &Repository{writer: tx, reader: tx}
}

// Create persists an invoice with its items and bonus items. A second active invoice for the
// same order, or a duplicate number, surfaces as a unique violation.
func (r *Repository) Create(ctx context.Context, invoice *entity.Invoice) error {
	if invoice == nil {
		return errors.New("nil invoice")
	}
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.Create", trace.WithAttributes(
		attribute.String("invoice.number", invoice.Number),
		attribute.Int64("order.id", invoice.OrderID),
	))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(invoice).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	if len(invoice.Items) == 0 {
		return nil
	}

	for _, item := range invoice.Items {
		item.InvoiceID = invoice.ID
	}
	if _, err := r.writer.NewInsert().Model(&invoice.Items).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert items failed")
		return err
	}

	var bonuses []*entity.InvoiceBonusItem
	for _, item := range invoice.Items {
		for _, bonus := range item.Bonuses {
			bonus.InvoiceID = invoice.ID
			bonus.InvoiceItemID = item.ID
			bonuses = append(bonuses, bonus)
		}
	}
	if len(bonuses) == 0 {
		return nil
	}
	if _, err := r.writer.NewInsert().Model(&bonuses).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert bonus items failed")
		return err
	}
	return nil
}

// FindActiveByOrder returns the non-void invoice of an order. It reads through the writer so
// that a conflict fallback sees the row that caused the conflict.
func (r *Repository) FindActiveByOrder(ctx context.Context, orderID int64) (*entity.Invoice, error) {
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.FindActiveByOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	invoice := new(entity.Invoice)
	err := withItems(r.writer.NewSelect().Model(invoice)).
		Where("?TableAlias.order_id = ?", orderID).
		Where("?TableAlias.status <> ?", entity.InvoiceStatusVoid).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return invoice, nil
}

// GetByID fetches an invoice with items and bonus items.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.GetByID", trace.WithAttributes(attribute.Int64("invoice.id", id)))
	defer span.End()

	invoice := new(entity.Invoice)
	err := withItems(r.reader.NewSelect().Model(invoice)).Where("?TableAlias.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return invoice, nil
}

// UpdateStatus moves an invoice from one status to another and stamps the matching timestamp.
// It reports false when the stored status was no longer from.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, from, to entity.InvoiceStatus, at time.Time) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.UpdateStatus", trace.WithAttributes(
		attribute.Int64("invoice.id", id),
		attribute.String("invoice.status.to", string(to)),
	))
	defer span.End()

	q := r.writer.NewUpdate().
		Model((*entity.Invoice)(nil)).
		Set("status = ?", to).
		Where("id = ?", id).
		Where("status = ?", from)
	switch to {
	case entity.InvoiceStatusPaid:
		q = q.Set("paid_at = ?", at)
	case entity.InvoiceStatusVoid:
		q = q.Set("voided_at = ?", at)
	}

	res, err := q.Exec(ctx)
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

// List returns the invoices matching spec, newest first. Items are not loaded.
func (r *Repository) List(ctx context.Context, spec report.Spec, now time.Time, limit int) ([]*entity.Invoice, error) {
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.List", trace.WithAttributes(attribute.Int("filter.count", len(spec.Filters))))
	defer span.End()

	var invoices []*entity.Invoice
	q, err := report.ApplyInvoices(r.reader.NewSelect().Model(&invoices), spec, now)
	if err != nil {
		return nil, err
	}
	if err := q.Order("issued_at DESC", "id DESC").Limit(limit).Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return invoices, nil
}

func withItems(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery { return q.Order("id ASC") }).
		Relation("Items.Bonuses", func(q *bun.SelectQuery) *bun.SelectQuery { return q.Order("id ASC") })
}
