package dbtest

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/entity"
)

// Insert writes each model through the writer connection.
func Insert(t *testing.T, conns *database.Connections, models ...any) {
	t.Helper()
	for _, m := range models {
		_, err := conns.Writer.NewInsert().Model(m).Exec(t.Context())
		require.NoError(t, err)
	}
}

// Catalog is a minimal marketplace: one seller with two products, one customer with an address.
type Catalog struct {
	Company  *entity.User
	Customer *entity.User
	Address  *entity.Address
	Product  *entity.Product
	Sachet   *entity.Product
}

// SeedCatalog inserts a Catalog. Product costs 10.00 and Sachet 1.00.
func SeedCatalog(t *testing.T, conns *database.Connections) Catalog {
	t.Helper()

	c := Catalog{
		Company:  User(entity.RoleCompany),
		Customer: User(entity.RoleCustomer),
	}
	Insert(t, conns, c.Company, c.Customer)

	c.Address = &entity.Address{
		CustomerID: c.Customer.ID,
		Label:      "Warehouse",
		Line1:      gofakeit.Street(),
		City:       gofakeit.City(),
		Country:    gofakeit.CountryAbr(),
		Active:     true,
	}
	c.Product = Product(c.Company.ID, "10.00")
	c.Sachet = Product(c.Company.ID, "1.00")
	Insert(t, conns, c.Address, c.Product, c.Sachet)

	return c
}

// User builds an active user with the given role.
func User(role string) *entity.User {
	return &entity.User{
		Name:   gofakeit.Company(),
		Email:  gofakeit.Email(),
		Role:   role,
		Active: true,
	}
}

// Product builds an active product for a seller.
func Product(companyID int64, price string) *entity.Product {
	return &entity.Product{
		CompanyID: companyID,
		SKU:       gofakeit.Regex("[A-Z]{3}-[0-9]{5}"),
		Name:      gofakeit.ProductName(),
		Price:     decimal.RequireFromString(price),
		Active:    true,
	}
}
