package report

import (
	"time"

	"github.com/uptrace/bun"
)

// ApplyOrders adds the clauses of spec to an orders select query.
func ApplyOrders(q *bun.SelectQuery, spec Spec, now time.Time) (*bun.SelectQuery, error) {
	return apply(q, EntityOrders, spec, now)
}

// ApplyInvoices adds the clauses of spec to an invoices select query.
func ApplyInvoices(q *bun.SelectQuery, spec Spec, now time.Time) (*bun.SelectQuery, error) {
	return apply(q, EntityInvoices, spec, now)
}

func apply(q *bun.SelectQuery, e Entity, spec Spec, now time.Time) (*bun.SelectQuery, error) {
	if err := spec.Validate(e); err != nil {
		return nil, err
	}
	t := targets[e]

	for _, f := range spec.Filters {
		switch f := f.(type) {
		case DateRange:
			q = between(q, t.dateFields[f.Field], f.From, f.To)
		case ForeignKey:
			q = q.Where("?TableAlias.? = ?", bun.Ident(t.keys[f.Field]), f.ID)
		case Status:
			q = q.Where("?TableAlias.status IN (?)", bun.In(f.Values))
		case Preset:
			column := t.defaultDate
			if f.Field != "" {
				column = t.dateFields[f.Field]
			}
			from, to := Window(f.Name, now)
			q = between(q, column, &from, &to)
		}
	}
	return q, nil
}

func between(q *bun.SelectQuery, column string, from, to *time.Time) *bun.SelectQuery {
	if from != nil {
		q = q.Where("?TableAlias.? >= ?", bun.Ident(column), from.UTC())
	}
	if to != nil {
		q = q.Where("?TableAlias.? < ?", bun.Ident(column), to.UTC())
	}
	return q
}
