package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-trader-orders/internal/aws"
	"github.com/imrishuroy/go-trader-orders/internal/config"
	"github.com/imrishuroy/go-trader-orders/internal/handlers"
	"github.com/imrishuroy/go-trader-orders/internal/idempotency"
	"github.com/imrishuroy/go-trader-orders/internal/logger"
	"github.com/imrishuroy/go-trader-orders/internal/orders"
	"github.com/imrishuroy/go-trader-orders/internal/upstream"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestID())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterOrdersRoutes(r, cfg)

	return r
}

// newService wires the order service. The returned func flushes queued
// metrics.
func newService(cfg config.Config, clients *aws.AWSClients) (*orders.Service, func()) {
	settings := func(name, baseURL string) upstream.Settings {
		return upstream.Settings{
			Name:        name,
			BaseURL:     baseURL,
			Timeout:     cfg.UpstreamTimeout,
			MaxTries:    cfg.UpstreamMaxTries,
			MaxFailures: cfg.BreakerMaxFailures,
			OpenTimeout: cfg.BreakerOpenTimeout,
		}
	}
	portfolios := upstream.NewPortfolioClient(upstream.NewClient(settings("portfolio-service", cfg.PortfolioServiceURL)))

	deps := orders.Dependencies{
		Portfolios:     portfolios,
		PortfolioNames: upstream.NewCachedPortfolios(portfolios, cfg.UpstreamCacheTTL),
		Assets:         upstream.NewAssetClient(upstream.NewClient(settings("asset-service", cfg.AssetServiceURL)), cfg.UpstreamCacheTTL),
		Currencies:     upstream.NewCurrencyClient(upstream.NewClient(settings("currency-service", cfg.CurrencyServiceURL)), cfg.UpstreamCacheTTL),
	}
	if cfg.EventsQueueURL != "" {
		deps.Events = aws.NewPublisher(clients.SQS, cfg.EventsQueueURL)
	}
	cleanup := func() {}
	if cfg.MetricsNamespace != "" {
		metrics := orders.NewCloudWatchPageMetrics(aws.NewMetricsEmitter(clients.CloudWatch, cfg.MetricsNamespace))
		deps.Metrics = metrics
		cleanup = metrics.Close
	}
	return orders.NewService(orders.NewStore(clients.DynamoDB, cfg.OrdersTable), deps), cleanup
}

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	defer func() { _ = logger.Sync() }()

	clients, err := aws.NewAWSClients(context.Background(), cfg.StoreMaxAttempts)
	if err != nil {
		logger.L().Fatal("failed to init aws clients", zap.Error(err))
	}

	svc, closeMetrics := newService(cfg, clients)
	defer closeMetrics()

	hcfg := handlers.HandlerConfig{Service: svc}
	if cfg.IdempotencyTable != "" {
		hcfg.Idempotency = idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
	}

	r := setupRouter(hcfg)

	// RUN_LOCAL=true serves plain HTTP for development.
	if cfg.RunLocal {
		logger.L().Info("running local server", zap.String("addr", cfg.HTTPAddr))
		if err := r.Run(cfg.HTTPAddr); err != nil {
			logger.L().Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
