package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-trader-orders/internal/orders"
)

// --- mock implementations ---

type applied struct {
	owner, id string
	ev        orders.Event
}

type mockService struct {
	calls []applied
	errs  map[string]error
}

func (m *mockService) ApplyEvent(_ context.Context, ownerID, orderID string, ev orders.Event) (orders.Order, error) {
	m.calls = append(m.calls, applied{ownerID, orderID, ev})
	if err := m.errs[orderID]; err != nil {
		return orders.Order{}, err
	}
	next, _ := orders.NextStatus(orders.StatusActive, ev)
	return orders.Order{ID: orderID, OwnerID: ownerID, Status: next}, nil
}

func message(t *testing.T, id string, msg WorkerMessage) events.SQSMessage {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return events.SQSMessage{MessageId: id, Body: string(body)}
}

// --- test cases ---

func TestWorkerProcess_Success(t *testing.T) {
	svc := &mockService{}
	p := NewProcessor(svc)

	resp, err := p.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		message(t, "m1", WorkerMessage{Type: orders.EventTypeSettled, OrderID: "o1", OwnerID: "u1", CorrelationID: "c1"}),
		message(t, "m2", WorkerMessage{Type: orders.EventTypeExpired, OrderID: "o2", OwnerID: "u1"}),
	}})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Equal(t, []applied{
		{"u1", "o1", orders.EventSettle},
		{"u1", "o2", orders.EventExpire},
	}, svc.calls)
}

func TestWorkerProcess_AcknowledgesDuplicatesAndUnknownOrders(t *testing.T) {
	svc := &mockService{errs: map[string]error{
		"gone":     orders.ErrNotFound,
		"terminal": orders.ErrOrderNotActive,
	}}
	p := NewProcessor(svc)

	resp, err := p.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		message(t, "m1", WorkerMessage{Type: orders.EventTypeSettled, OrderID: "gone", OwnerID: "u1"}),
		message(t, "m2", WorkerMessage{Type: orders.EventTypeSettled, OrderID: "terminal", OwnerID: "u1"}),
	}})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Len(t, svc.calls, 2)
}

func TestWorkerProcess_IgnoresEventsItDoesNotConsume(t *testing.T) {
	svc := &mockService{}
	resp, err := NewProcessor(svc).Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		message(t, "m1", WorkerMessage{Type: orders.EventTypeCreated, OrderID: "o1", OwnerID: "u1"}),
		message(t, "m2", WorkerMessage{Type: orders.EventTypeUpdated, OrderID: "o1", OwnerID: "u1"}),
	}})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Empty(t, svc.calls)
}

func TestWorkerProcess_ReportsFailuresPerMessage(t *testing.T) {
	svc := &mockService{errs: map[string]error{"flaky": orders.ErrUpstreamUnavailable}}
	p := NewProcessor(svc)

	resp, err := p.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "bad-json", Body: "{"},
		message(t, "no-owner", WorkerMessage{Type: orders.EventTypeSettled, OrderID: "o1"}),
		message(t, "flaky", WorkerMessage{Type: orders.EventTypeExpired, OrderID: "flaky", OwnerID: "u1"}),
		message(t, "ok", WorkerMessage{Type: orders.EventTypeExpired, OrderID: "o2", OwnerID: "u1"}),
	}})
	require.NoError(t, err)

	var failed []string
	for _, f := range resp.BatchItemFailures {
		failed = append(failed, f.ItemIdentifier)
	}
	assert.Equal(t, []string{"bad-json", "no-owner", "flaky"}, failed)
	require.Len(t, svc.calls, 2)
	assert.Equal(t, "o2", svc.calls[1].id)
}

func TestWorkerProcess_WrapsServiceError(t *testing.T) {
	boom := errors.New("boom")
	p := NewProcessor(&mockService{errs: map[string]error{"o1": boom}})
	err := p.processMessage(context.Background(), message(t, "m1", WorkerMessage{Type: orders.EventTypeSettled, OrderID: "o1", OwnerID: "u1"}))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "apply settle to order o1")
}
