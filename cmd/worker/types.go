package main

// WorkerMessage is the payload of a lifecycle event delivered through SQS.
// Settlement and expiry producers share the shape of the events the API
// publishes.
type WorkerMessage struct {
	Type          string `json:"type"`
	OrderID       string `json:"orderId"`
	OwnerID       string `json:"ownerId"`
	CorrelationID string `json:"correlationId,omitempty"`
}
