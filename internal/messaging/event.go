package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types published on the domain topic.
const (
	EventOrderConfirmed     = "order.confirmed"
	EventOrderStatusChanged = "order.status_changed"
	EventInvoiceIssued      = "invoice.issued"
	EventInvoiceVoided      = "invoice.voided"
	EventInvoicePaid        = "invoice.paid"
)

// Event is the envelope every domain message is wrapped in.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEvent wraps payload in an envelope with a fresh id.
func NewEvent(eventType string, payload any, at time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: at.UTC(),
		Payload:    raw,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// DecodeEvent parses an envelope from a consumed message.
func DecodeEvent(msg Message) (Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return Event{}, err
	}
	if event.Type == "" {
		return Event{}, errors.New("event type is missing")
	}
	return event, nil
}

// PublishEvent wraps payload in an envelope and publishes it under key.
func PublishEvent(ctx context.Context, client Client, key, eventType string, payload any, at time.Time) error {
	event, err := NewEvent(eventType, payload, at)
	if err != nil {
		return err
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return client.Publish(ctx, Message{
		Key:   []byte(key),
		Value: value,
		Headers: map[string]string{
			HeaderEventType: event.Type,
			HeaderEventID:   event.ID,
		},
	})
}
