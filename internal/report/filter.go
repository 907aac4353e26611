// Package report composes list filters for order and invoice reports. A Spec is a closed set of
// typed filters; per-entity builders translate it into bun query clauses against an allowlist of
// columns, so no caller-supplied identifier ever reaches SQL.
package report

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/principal"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

// Kind names a filter variant.
type Kind string

const (
	KindDateRange  Kind = "date_range"
	KindForeignKey Kind = "foreign_key"
	KindStatus     Kind = "status"
	KindPreset     Kind = "preset"
)

// Filter is implemented only by the variants in this package.
type Filter interface {
	Kind() Kind
	isFilter()
}

// DateRange keeps rows whose Field falls in [From, To). Either bound may be nil.
type DateRange struct {
	Field string
	From  *time.Time
	To    *time.Time
}

// ForeignKey keeps rows whose Field equals ID.
type ForeignKey struct {
	Field string
	ID    int64
}

// Status keeps rows whose status is one of Values.
type Status struct {
	Values []string
}

// Preset is a named relative date window over Field, or the entity's default date column.
type Preset struct {
	Name  string
	Field string
}

func (DateRange) Kind() Kind  { return KindDateRange }
func (ForeignKey) Kind() Kind { return KindForeignKey }
func (Status) Kind() Kind     { return KindStatus }
func (Preset) Kind() Kind     { return KindPreset }

func (DateRange) isFilter()  {}
func (ForeignKey) isFilter() {}
func (Status) isFilter()     {}
func (Preset) isFilter()     {}

const (
	PresetToday      = "today"
	PresetThisWeek   = "this_week"
	PresetThisMonth  = "this_month"
	PresetLast30Days = "last_30_days"
)

// Entity selects the column allowlist a Spec is validated and applied against.
type Entity string

const (
	EntityOrders   Entity = "orders"
	EntityInvoices Entity = "invoices"
)

type target struct {
	dateFields  map[string]string
	defaultDate string
	keys        map[string]string
	statuses    []string
}

var targets = map[Entity]target{
	EntityOrders: {
		dateFields: map[string]string{
			"submitted_at": "submitted_at",
			"approved_at":  "approved_at",
			"delivered_at": "delivered_at",
			"cancelled_at": "cancelled_at",
			"created_at":   "created_at",
		},
		defaultDate: "submitted_at",
		keys: map[string]string{
			"company_id":          "company_user_id",
			"customer_id":         "customer_user_id",
			"delivery_address_id": "delivery_address_id",
		},
		statuses: []string{
			string(entity.OrderStatusPending),
			string(entity.OrderStatusApproved),
			string(entity.OrderStatusPreparing),
			string(entity.OrderStatusShipped),
			string(entity.OrderStatusDelivered),
			string(entity.OrderStatusCancelled),
		},
	},
	EntityInvoices: {
		dateFields: map[string]string{
			"issued_at": "issued_at",
			"paid_at":   "paid_at",
			"voided_at": "voided_at",
		},
		defaultDate: "issued_at",
		keys: map[string]string{
			"company_id":  "company_user_id",
			"customer_id": "customer_user_id",
			"order_id":    "order_id",
		},
		statuses: []string{
			string(entity.InvoiceStatusUnpaid),
			string(entity.InvoiceStatusPaid),
			string(entity.InvoiceStatusVoid),
		},
	},
}

// Spec is an ordered conjunction of filters.
type Spec struct {
	Filters []Filter
}

// With returns a copy of s with f appended.
func (s Spec) With(f Filter) Spec {
	filters := make([]Filter, 0, len(s.Filters)+1)
	filters = append(filters, s.Filters...)
	return Spec{Filters: append(filters, f)}
}

// ScopedTo narrows s to the rows p may see. Sellers only see their own rows and customers
// only their own; admins are unrestricted.
func (s Spec) ScopedTo(p principal.Principal) Spec {
	switch p.Role {
	case principal.RoleCompany:
		return s.With(ForeignKey{Field: "company_id", ID: p.UserID})
	case principal.RoleCustomer:
		return s.With(ForeignKey{Field: "customer_id", ID: p.UserID})
	default:
		return s
	}
}

// Validate checks every filter against the allowlist of e.
func (s Spec) Validate(e Entity) error {
	t, ok := targets[e]
	if !ok {
		return errorbank.Validation(fmt.Sprintf("unknown report entity %q", e))
	}

	fields := make(map[string]string)
	for i, f := range s.Filters {
		key := fmt.Sprintf("filters.%d", i)
		switch f := f.(type) {
		case DateRange:
			if _, ok := t.dateFields[f.Field]; !ok {
				fields[key] = fmt.Sprintf("unknown date field %q", f.Field)
			} else if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
				fields[key] = "from must be before to"
			}
		case ForeignKey:
			if _, ok := t.keys[f.Field]; !ok {
				fields[key] = fmt.Sprintf("unknown key field %q", f.Field)
			} else if f.ID <= 0 {
				fields[key] = "id must be positive"
			}
		case Status:
			if len(f.Values) == 0 {
				fields[key] = "at least one status is required"
			}
			if unknown, _ := lo.Difference(f.Values, t.statuses); len(unknown) > 0 {
				fields[key] = fmt.Sprintf("unknown status %q", unknown[0])
			}
		case Preset:
			if !lo.Contains([]string{PresetToday, PresetThisWeek, PresetThisMonth, PresetLast30Days}, f.Name) {
				fields[key] = fmt.Sprintf("unknown preset %q", f.Name)
			}
			if _, ok := t.dateFields[f.Field]; f.Field != "" && !ok {
				fields[key] = fmt.Sprintf("unknown date field %q", f.Field)
			}
		default:
			fields[key] = "unsupported filter"
		}
	}

	if len(fields) > 0 {
		return errorbank.Validation("invalid report filter", errorbank.WithFields(fields))
	}
	return nil
}

// Window resolves a preset name into a [from, to) range relative to now, in now's location.
// Weeks start on Monday.
func Window(name string, now time.Time) (time.Time, time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch name {
	case PresetToday:
		return day, day.AddDate(0, 0, 1)
	case PresetThisWeek:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case PresetThisMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0)
	default:
		return now.AddDate(0, 0, -30), now
	}
}
