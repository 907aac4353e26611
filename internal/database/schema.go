package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/Additional-Code/tradehub/internal/entity"
)

var schemaModels = []any{
	(*entity.User)(nil),
	(*entity.Product)(nil),
	(*entity.Offer)(nil),
	(*entity.Address)(nil),
	(*entity.PreviewQuote)(nil),
	(*entity.Order)(nil),
	(*entity.OrderItem)(nil),
	(*entity.OrderItemBonus)(nil),
	(*entity.Invoice)(nil),
	(*entity.InvoiceItem)(nil),
	(*entity.InvoiceBonusItem)(nil),
}

// CreateSchema builds every table from the bun models. It backs sqlite deployments and tests;
// postgres and mysql deployments use the goose migrations instead.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range schemaModels {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table %T: %w", model, err)
		}
	}

	// at most one non-void invoice per order
	_, err := db.NewCreateIndex().
		Model((*entity.Invoice)(nil)).
		Index("invoices_active_order_uidx").
		Unique().
		IfNotExists().
		Column("order_id").
		Where("status <> ?", string(entity.InvoiceStatusVoid)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create invoices_active_order_uidx: %w", err)
	}

	indexes := []struct {
		model  any
		name   string
		column string
	}{
		{(*entity.OrderItem)(nil), "order_items_order_id_idx", "order_id"},
		{(*entity.OrderItemBonus)(nil), "order_item_bonuses_item_id_idx", "order_item_id"},
		{(*entity.InvoiceItem)(nil), "invoice_items_invoice_id_idx", "invoice_id"},
		{(*entity.InvoiceBonusItem)(nil), "invoice_bonus_items_invoice_id_idx", "invoice_id"},
		{(*entity.Offer)(nil), "offers_product_id_idx", "product_id"},
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().Model(idx.model).Index(idx.name).IfNotExists().Column(idx.column).Exec(ctx); err != nil {
			return fmt.Errorf("create %s: %w", idx.name, err)
		}
	}

	return nil
}
