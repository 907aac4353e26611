package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/tradehub/internal/entity"
	"github.com/Additional-Code/tradehub/internal/messaging"
	ordersvc "github.com/Additional-Code/tradehub/internal/service/order"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

type issuerFunc func(ctx context.Context, orderID int64) (*entity.Invoice, bool, error)

func (f issuerFunc) IssueForOrder(ctx context.Context, orderID int64) (*entity.Invoice, bool, error) {
	return f(ctx, orderID)
}

func statusEvent(t *testing.T, status entity.OrderStatus) messaging.Event {
	t.Helper()
	event, err := messaging.NewEvent(messaging.EventOrderStatusChanged, ordersvc.OrderEvent{ID: 42, Status: string(status)}, time.Now())
	require.NoError(t, err)
	return event
}

func TestInvoiceOnApproval(t *testing.T) {
	var calls []int64
	issuer := issuerFunc(func(_ context.Context, orderID int64) (*entity.Invoice, bool, error) {
		calls = append(calls, orderID)
		return &entity.Invoice{ID: 7}, false, nil
	})
	handler := invoiceOnApproval(zaptest.NewLogger(t), issuer)

	require.NoError(t, handler(t.Context(), statusEvent(t, entity.OrderStatusPreparing)))
	assert.Empty(t, calls)

	require.NoError(t, handler(t.Context(), statusEvent(t, entity.OrderStatusApproved)))
	assert.Equal(t, []int64{42}, calls)
}

func TestInvoiceOnApprovalErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "order no longer invoiceable", err: errorbank.InvalidState("cancelled")},
		{name: "order gone", err: errorbank.NotFound("order not found")},
		{name: "database down", err: errorbank.Internal("boom", errorbank.WithCause(errors.New("conn refused"))), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer := issuerFunc(func(context.Context, int64) (*entity.Invoice, bool, error) {
				return nil, false, tt.err
			})
			err := invoiceOnApproval(zaptest.NewLogger(t), issuer)(t.Context(), statusEvent(t, entity.OrderStatusApproved))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
