package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-trader-orders/internal/logger"
	"github.com/imrishuroy/go-trader-orders/internal/orders"
)

// LifecycleService is implemented by *orders.Service.
type LifecycleService interface {
	ApplyEvent(ctx context.Context, ownerID, orderID string, ev orders.Event) (orders.Order, error)
}

// Processor applies settlement and expiry events to orders.
type Processor struct {
	svc LifecycleService
}

// NewProcessor creates a new worker processor.
func NewProcessor(svc LifecycleService) *Processor {
	return &Processor{svc: svc}
}

// Handle processes a batch and reports the messages to redeliver. Messages
// for orders that are gone or already terminal are acknowledged.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Lambda will retry; after maxReceiveCount the message goes to the DLQ.
			logger.Error(ctx, "worker error", zap.String("message_id", rec.MessageId), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg WorkerMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if msg.OrderID == "" || msg.OwnerID == "" {
		return fmt.Errorf("message without order or owner id: %s", rec.Body)
	}
	if msg.CorrelationID != "" {
		ctx = logger.WithRequestID(ctx, msg.CorrelationID)
	}
	ctx = logger.WithOwnerID(ctx, msg.OwnerID)

	event, ok := orders.LifecycleEvent(msg.Type)
	if !ok {
		logger.Debug(ctx, "ignoring event", zap.String("type", msg.Type), zap.String("order_id", msg.OrderID))
		return nil
	}

	o, err := p.svc.ApplyEvent(ctx, msg.OwnerID, msg.OrderID, event)
	switch {
	case errors.Is(err, orders.ErrNotFound):
		logger.Warn(ctx, "event for unknown order", zap.String("order_id", msg.OrderID), zap.String("type", msg.Type))
		return nil
	case errors.Is(err, orders.ErrOrderNotActive):
		// duplicate delivery or a competing transition won
		logger.Info(ctx, "order already terminal", zap.String("order_id", msg.OrderID), zap.String("type", msg.Type))
		return nil
	case err != nil:
		return fmt.Errorf("apply %s to order %s: %w", event, msg.OrderID, err)
	}

	logger.Info(ctx, "order transitioned by event",
		zap.String("order_id", o.ID),
		zap.String("type", msg.Type),
		zap.Stringer("status", o.Status))
	return nil
}
