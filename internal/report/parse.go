package report

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

const dateLayout = "2006-01-02"

// Parse builds a Spec for e from report query parameters: from, to, date_field, company_id,
// customer_id, order_id, status (comma separated) and preset. A date-only "to" includes the
// whole day. The result is validated.
func Parse(values url.Values, e Entity) (Spec, error) {
	var spec Spec
	fields := make(map[string]string)

	dateField := strings.TrimSpace(values.Get("date_field"))
	if dateField == "" {
		dateField = targets[e].defaultDate
	}

	from, err := parseBound(values.Get("from"), false)
	if err != nil {
		fields["from"] = err.Error()
	}
	to, err := parseBound(values.Get("to"), true)
	if err != nil {
		fields["to"] = err.Error()
	}
	if from != nil || to != nil {
		spec = spec.With(DateRange{Field: dateField, From: from, To: to})
	}

	for _, key := range []string{"company_id", "customer_id", "order_id"} {
		raw := strings.TrimSpace(values.Get(key))
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			fields[key] = "must be an integer"
			continue
		}
		spec = spec.With(ForeignKey{Field: key, ID: id})
	}

	if raw := values.Get("status"); raw != "" {
		statuses := lo.Uniq(lo.Compact(lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
			return strings.ToLower(strings.TrimSpace(s))
		})))
		spec = spec.With(Status{Values: statuses})
	}

	if preset := strings.TrimSpace(values.Get("preset")); preset != "" {
		spec = spec.With(Preset{Name: strings.ToLower(preset), Field: strings.TrimSpace(values.Get("date_field"))})
	}

	if len(fields) > 0 {
		return Spec{}, errorbank.Validation("invalid report filter", errorbank.WithFields(fields))
	}
	if err := spec.Validate(e); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

func parseBound(raw string, end bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, errInvalidDate
	}
	if end {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

var errInvalidDate = errors.New("must be YYYY-MM-DD or RFC 3339")
