// Package catalog reads the seller catalog and customer records the order workflow depends on.
// Catalog maintenance happens elsewhere; this repository never writes.
package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/samber/lo"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/pricing"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/tradehub/repository/catalog")

var (
	// ErrUserNotFound is returned when a user is missing.
	ErrUserNotFound = errors.New("user not found")
	// ErrAddressNotFound is returned when an address is missing.
	ErrAddressNotFound = errors.New("address not found")
)

// Repository reads users, products, offers and addresses.
type Repository struct {
	reader bun.IDB
}

// NewRepository wires a repository on the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// WithTx returns a copy bound to tx.
func (r *Repository) WithTx(tx bun.Tx) *Repository {
	return &Repository{reader: tx}
}

// GetUser fetches a user by id.
func (r *Repository) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.GetUser", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	user := new(entity.User)
	err := r.reader.NewSelect().Model(user).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrUserNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return user, nil
}

// ProductsByIDs loads the given products keyed by id. Missing ids are simply absent.
func (r *Repository) ProductsByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.ProductsByIDs", trace.WithAttributes(attribute.Int("product.count", len(ids))))
	defer span.End()

	if len(ids) == 0 {
		return map[int64]*entity.Product{}, nil
	}

	var products []*entity.Product
	err := r.reader.NewSelect().Model(&products).Where("id IN (?)", bun.In(lo.Uniq(ids))).Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return lo.KeyBy(products, func(p *entity.Product) int64 { return p.ID }), nil
}

// ActiveOffers lists the active offers a seller has on the given products. Date windows are
// left to the pricing engine so that the evaluation instant stays in one place.
func (r *Repository) ActiveOffers(ctx context.Context, companyID int64, productIDs []int64) ([]*entity.Offer, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.ActiveOffers", trace.WithAttributes(
		attribute.Int64("company.id", companyID),
		attribute.Int("product.count", len(productIDs)),
	))
	defer span.End()

	if len(productIDs) == 0 {
		return nil, nil
	}

	var offers []*entity.Offer
	err := r.reader.NewSelect().
		Model(&offers).
		Where("company_user_id = ?", companyID).
		Where("product_id IN (?)", bun.In(productIDs)).
		Where("active = ?", true).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return offers, nil
}

// GetAddress fetches an address by id.
func (r *Repository) GetAddress(ctx context.Context, id int64) (*entity.Address, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.GetAddress", trace.WithAttributes(attribute.Int64("address.id", id)))
	defer span.End()

	address := new(entity.Address)
	err := r.reader.NewSelect().Model(address).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrAddressNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return address, nil
}

// PricingInputs loads what the pricing engine needs for a seller's line set: the requested
// products, the seller's active offers on them and any bonus products those offers reference.
func (r *Repository) PricingInputs(ctx context.Context, companyID int64, productIDs []int64) (map[int64]*entity.Product, []*entity.Offer, error) {
	products, err := r.ProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, nil, err
	}
	offers, err := r.ActiveOffers(ctx, companyID, productIDs)
	if err != nil {
		return nil, nil, err
	}

	missing := lo.Filter(pricing.BonusProductIDs(offers), func(id int64, _ int) bool {
		_, ok := products[id]
		return !ok
	})
	if len(missing) > 0 {
		bonuses, err := r.ProductsByIDs(ctx, missing)
		if err != nil {
			return nil, nil, err
		}
		for id, p := range bonuses {
			products[id] = p
		}
	}
	return products, offers, nil
}
