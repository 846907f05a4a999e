package orders

import (
	"encoding/json"
	"time"
)

// Lifecycle event types. Created, updated and cancelled are published by the
// API; settled and expired are consumed by the worker.
const (
	EventTypeCreated   = "order.created"
	EventTypeUpdated   = "order.updated"
	EventTypeCancelled = "order.cancelled"
	EventTypeSettled   = "order.settled"
	EventTypeExpired   = "order.expired"
)

// OrderEvent is the SQS message body for every lifecycle event.
type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"orderId"`
	OwnerID    string    `json:"ownerId"`
	Status     Status    `json:"status"`
	OccurredAt time.Time `json:"occurredAt"`
}

func newOrderEvent(eventType string, o Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:       eventType,
		OrderID:    o.ID,
		OwnerID:    o.OwnerID,
		Status:     o.Status,
		OccurredAt: at,
	}
}

// LifecycleEvent maps a consumed event type to the transition it triggers.
func LifecycleEvent(eventType string) (Event, bool) {
	switch eventType {
	case EventTypeSettled:
		return EventSettle, true
	case EventTypeExpired:
		return EventExpire, true
	case EventTypeCancelled:
		return EventCancel, true
	}
	return 0, false
}

func (e OrderEvent) marshal() (string, error) {
	b, err := json.Marshal(e)
	return string(b), err
}
