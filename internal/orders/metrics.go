package orders

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-trader-orders/internal/aws"
	"github.com/imrishuroy/go-trader-orders/internal/logger"
)

// PageStats describes the work behind one assembled page.
type PageStats struct {
	Index      string
	RoundTrips int
	Scanned    int
	Returned   int
}

// PageMetrics records pager statistics.
type PageMetrics interface {
	ObservePage(ctx context.Context, s PageStats)
}

type NopPageMetrics struct{}

func (NopPageMetrics) ObservePage(context.Context, PageStats) {}

// MetricEmitter is satisfied by *aws.MetricsEmitter.
type MetricEmitter interface {
	Emit(ctx context.Context, data ...aws.Datum) error
}

// CloudWatchPageMetrics publishes page statistics as CloudWatch counts,
// dimensioned by index. Observations are queued and emitted in batches by a
// background goroutine so list requests never wait on CloudWatch. When the
// queue is full observations are dropped. Emission failures are logged.
type CloudWatchPageMetrics struct {
	emitter MetricEmitter
	queue   chan PageStats
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

const (
	pageMetricsQueueSize = 256
	pageMetricsBatchSize = 25
	pageMetricsTimeout   = 5 * time.Second
)

func NewCloudWatchPageMetrics(e MetricEmitter) *CloudWatchPageMetrics {
	m := &CloudWatchPageMetrics{
		emitter: e,
		queue:   make(chan PageStats, pageMetricsQueueSize),
		done:    make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *CloudWatchPageMetrics) ObservePage(ctx context.Context, s PageStats) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- s:
	default:
		logger.Debug(ctx, "page metrics queue full, dropping", zap.String("index", s.Index))
	}
}

// Close stops accepting observations and waits until the queued ones are
// emitted.
func (m *CloudWatchPageMetrics) Close() {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.mu.Unlock()
	<-m.done
}

func (m *CloudWatchPageMetrics) run() {
	defer close(m.done)
	batch := make([]PageStats, 0, pageMetricsBatchSize)
	for s := range m.queue {
		batch = append(batch[:0], s)
	drain:
		for len(batch) < pageMetricsBatchSize {
			select {
			case next, ok := <-m.queue:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		m.emit(batch)
	}
}

func (m *CloudWatchPageMetrics) emit(batch []PageStats) {
	data := make([]aws.Datum, 0, 3*len(batch))
	for _, s := range batch {
		index := s.Index
		if index == "" {
			index = "base"
		}
		dims := map[string]string{"Index": index}
		data = append(data,
			aws.Datum{Name: "RoundTrips", Value: float64(s.RoundTrips), Dimensions: dims},
			aws.Datum{Name: "ScannedItems", Value: float64(s.Scanned), Dimensions: dims},
			aws.Datum{Name: "ReturnedItems", Value: float64(s.Returned), Dimensions: dims},
		)
	}
	ctx, cancel := context.WithTimeout(context.Background(), pageMetricsTimeout)
	defer cancel()
	if err := m.emitter.Emit(ctx, data...); err != nil {
		logger.Warn(ctx, "emit page metrics failed", zap.Int("pages", len(batch)), zap.Error(err))
	}
}
