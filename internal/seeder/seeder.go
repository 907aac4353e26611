package seeder

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/entity"
)

// Module provides the Seeder.
var Module = fx.Provide(New)

//go:embed fixtures/catalog.yaml
var catalogFixture []byte

// Catalog is the fixture layout. Records reference each other by email and sku.
type Catalog struct {
	Users []struct {
		Name  string `yaml:"name"`
		Email string `yaml:"email"`
		Role  string `yaml:"role"`
	} `yaml:"users"`
	Products []struct {
		Company string `yaml:"company"`
		SKU     string `yaml:"sku"`
		Name    string `yaml:"name"`
		Price   string `yaml:"price"`
	} `yaml:"products"`
	Offers []struct {
		Product      string `yaml:"product"`
		Kind         string `yaml:"kind"`
		MinQty       int    `yaml:"min_qty"`
		Value        string `yaml:"value"`
		BonusProduct string `yaml:"bonus_product"`
		BonusQty     int    `yaml:"bonus_qty"`
		Priority     int    `yaml:"priority"`
	} `yaml:"offers"`
	Addresses []struct {
		Customer string `yaml:"customer"`
		Label    string `yaml:"label"`
		Line1    string `yaml:"line1"`
		City     string `yaml:"city"`
		Country  string `yaml:"country"`
	} `yaml:"addresses"`
}

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// ParseCatalog decodes a YAML catalog fixture.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog fixture: %w", err)
	}
	return &c, nil
}

// Catalog seeds the embedded catalog fixture.
func (s *Seeder) Catalog(ctx context.Context) error {
	c, err := ParseCatalog(catalogFixture)
	if err != nil {
		return err
	}
	return s.Apply(ctx, c)
}

// Apply inserts the catalog in one transaction. Records that already exist are left untouched, so
// seeding is repeatable.
func (s *Seeder) Apply(ctx context.Context, c *Catalog) error {
	var created int
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		users := make(map[string]int64, len(c.Users))
		for _, u := range c.Users {
			user := &entity.User{Name: u.Name, Email: u.Email, Role: u.Role, Active: true}
			ok, err := ensure(ctx, tx, user, tx.NewSelect().Model(user).Where("email = ?", u.Email))
			if err != nil {
				return fmt.Errorf("seed user %s: %w", u.Email, err)
			}
			created += ok
			users[u.Email] = user.ID
		}

		products := make(map[string]int64, len(c.Products))
		for _, p := range c.Products {
			companyID, ok := users[p.Company]
			if !ok {
				return fmt.Errorf("product %s references unknown company %s", p.SKU, p.Company)
			}
			price, err := decimal.NewFromString(p.Price)
			if err != nil {
				return fmt.Errorf("product %s price: %w", p.SKU, err)
			}
			product := &entity.Product{CompanyID: companyID, SKU: p.SKU, Name: p.Name, Price: price.Round(2), Active: true}
			n, err := ensure(ctx, tx, product, tx.NewSelect().Model(product).
				Where("company_user_id = ?", companyID).
				Where("sku = ?", p.SKU))
			if err != nil {
				return fmt.Errorf("seed product %s: %w", p.SKU, err)
			}
			created += n
			products[p.SKU] = product.ID
		}

		for _, o := range c.Offers {
			offer, err := buildOffer(o.Product, o.Kind, o.Value, o.BonusProduct, o.MinQty, o.BonusQty, o.Priority, products)
			if err != nil {
				return err
			}
			var companyID int64
			if err := tx.NewSelect().Model((*entity.Product)(nil)).Column("company_user_id").
				Where("id = ?", offer.ProductID).Scan(ctx, &companyID); err != nil {
				return err
			}
			offer.CompanyID = companyID
			n, err := ensure(ctx, tx, offer, tx.NewSelect().Model(offer).
				Where("product_id = ?", offer.ProductID).
				Where("kind = ?", offer.Kind))
			if err != nil {
				return fmt.Errorf("seed offer for %s: %w", o.Product, err)
			}
			created += n
		}

		for _, a := range c.Addresses {
			customerID, ok := users[a.Customer]
			if !ok {
				return fmt.Errorf("address %s references unknown customer %s", a.Label, a.Customer)
			}
			address := &entity.Address{CustomerID: customerID, Label: a.Label, Line1: a.Line1, City: a.City, Country: a.Country, Active: true}
			n, err := ensure(ctx, tx, address, tx.NewSelect().Model(address).
				Where("customer_user_id = ?", customerID).
				Where("label = ?", a.Label))
			if err != nil {
				return fmt.Errorf("seed address %s: %w", a.Label, err)
			}
			created += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("seeded catalog", zap.Int("created", created))
	}
	return nil
}

func buildOffer(sku, kind, value, bonusSKU string, minQty, bonusQty, priority int, products map[string]int64) (*entity.Offer, error) {
	productID, ok := products[sku]
	if !ok {
		return nil, fmt.Errorf("offer references unknown product %s", sku)
	}
	offer := &entity.Offer{
		ProductID: productID,
		Kind:      entity.OfferKind(kind),
		MinQty:    max(minQty, 1),
		Value:     decimal.Zero,
		BonusQty:  bonusQty,
		Priority:  priority,
		Active:    true,
	}
	if value != "" {
		v, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("offer for %s value: %w", sku, err)
		}
		offer.Value = v.Round(2)
	}
	if bonusSKU != "" {
		bonusID, ok := products[bonusSKU]
		if !ok {
			return nil, fmt.Errorf("offer for %s references unknown bonus product %s", sku, bonusSKU)
		}
		offer.BonusProductID = &bonusID
	}
	return offer, nil
}

// ensure loads model through lookup, inserting it when missing. It returns 1 when a row was created.
func ensure(ctx context.Context, tx bun.Tx, model any, lookup *bun.SelectQuery) (int, error) {
	err := lookup.Limit(1).Scan(ctx)
	if err == nil {
		return 0, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if _, err := tx.NewInsert().Model(model).Exec(ctx); err != nil {
		return 0, err
	}
	return 1, nil
}
