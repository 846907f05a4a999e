package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-trader-orders/internal/aws"
	"github.com/imrishuroy/go-trader-orders/internal/config"
	"github.com/imrishuroy/go-trader-orders/internal/logger"
	"github.com/imrishuroy/go-trader-orders/internal/orders"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	defer func() { _ = logger.Sync() }()

	clients, err := aws.NewAWSClients(context.Background(), cfg.StoreMaxAttempts)
	if err != nil {
		logger.L().Fatal("failed to init aws clients", zap.Error(err))
	}

	// Transitions only touch the orders table. The worker does not publish
	// events back onto the queue it consumes.
	svc := orders.NewService(orders.NewStore(clients.DynamoDB, cfg.OrdersTable), orders.Dependencies{})
	p := NewProcessor(svc)

	// RUN_LOCAL=true processes a single message taken from LOCAL_SQS_BODY.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"type":"order.settled","orderId":"local-order-1","ownerId":"local-user"}`
		}
		event := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local-1", Body: body}}}
		resp, err := p.Handle(context.Background(), event)
		if err != nil || len(resp.BatchItemFailures) > 0 {
			logger.L().Fatal("local handler error", zap.Error(err), zap.Int("failures", len(resp.BatchItemFailures)))
		}
		return
	}

	lambda.Start(p.Handle)
}
