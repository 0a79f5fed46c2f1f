package notify

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tekrabyte/pos-sub000/internal/catalog"
)

// Message types pushed by the backend.
const (
	TypeNewOrder          = "new_order"
	TypeOrderStatusUpdate = "order_status_update"
)

// ErrMalformedMessage is returned for frames that are not JSON objects with a type.
var ErrMalformedMessage = errors.New("malformed notification message")

// Event is a decoded push message.
type Event interface {
	EventType() string
}

// NewOrderEvent announces a newly placed order.
type NewOrderEvent struct {
	Type        string         `json:"type"`
	OrderNumber catalog.ID     `json:"order_number"`
	TotalAmount catalog.Amount `json:"total_amount"`
}

func (e *NewOrderEvent) EventType() string { return TypeNewOrder }

// OrderStatusEvent announces a status change of an existing order.
type OrderStatusEvent struct {
	Type    string     `json:"type"`
	OrderID catalog.ID `json:"order_id,omitempty"`
	Status  string     `json:"status"`
}

func (e *OrderStatusEvent) EventType() string { return TypeOrderStatusUpdate }

// UnknownEvent is any well-formed message with an unrecognised type.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e *UnknownEvent) EventType() string { return e.Type }

// ParseMessage decodes a frame into one of the event types.
func ParseMessage(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if envelope.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	var ev Event
	switch envelope.Type {
	case TypeNewOrder:
		ev = &NewOrderEvent{}
	case TypeOrderStatusUpdate:
		ev = &OrderStatusEvent{}
	default:
		return &UnknownEvent{Type: envelope.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, envelope.Type, err)
	}
	return ev, nil
}
