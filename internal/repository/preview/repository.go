package preview

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
)

var repoTracer = otel.Tracer("github.com/Additional-Code/tradehub/repository/preview")

// ErrNotFound is returned when no quote exists for a token.
var ErrNotFound = errors.New("preview not found")

// Repository persists preview quotes.
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

// Create stores a new quote. A duplicate token surfaces as a unique violation.
func (r *Repository) Create(ctx context.Context, quote *entity.PreviewQuote) error {
	if quote == nil {
		return errors.New("nil preview")
	}
	ctx, span := repoTracer.Start(ctx, "PreviewRepository.Create", trace.WithAttributes(attribute.String("preview.token", quote.Token)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(quote).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByToken fetches a quote by token. Inside a transaction it reads the writer's view.
func (r *Repository) GetByToken(ctx context.Context, token string) (*entity.PreviewQuote, error) {
	ctx, span := repoTracer.Start(ctx, "PreviewRepository.GetByToken", trace.WithAttributes(attribute.String("preview.token", token)))
	defer span.End()

	quote := new(entity.PreviewQuote)
	err := r.writer.NewSelect().Model(quote).Where("token = ?", token).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return quote, nil
}

// Consume marks an unconsumed quote as used by orderID. It reports false when another
// caller consumed it first.
func (r *Repository) Consume(ctx context.Context, id, orderID int64, at time.Time) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "PreviewRepository.Consume", trace.WithAttributes(
		attribute.Int64("preview.id", id),
		attribute.Int64("order.id", orderID),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.PreviewQuote)(nil)).
		Set("consumed_at = ?", at).
		Set("order_id = ?", orderID).
		Where("id = ?", id).
		Where("consumed_at IS NULL").
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

// PurgeExpired deletes unconsumed quotes that expired before cutoff and returns how many went.
// Consumed quotes are kept as the audit trail of their order.
func (r *Repository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "PreviewRepository.PurgeExpired")
	defer span.End()

	res, err := r.writer.NewDelete().
		Model((*entity.PreviewQuote)(nil)).
		Where("consumed_at IS NULL").
		Where("expires_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return 0, err
	}
	return res.RowsAffected()
}
