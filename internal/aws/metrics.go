package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Datum is a single count metric with its dimensions.
type Datum struct {
	Name       string
	Value      float64
	Dimensions map[string]string
}

// MetricsEmitter pushes count metrics to CloudWatch under one namespace.
type MetricsEmitter struct {
	CloudWatch CloudWatchAPI
	Namespace  string
}

// NewMetricsEmitter returns an emitter bound to a namespace.
func NewMetricsEmitter(cw CloudWatchAPI, namespace string) *MetricsEmitter {
	return &MetricsEmitter{CloudWatch: cw, Namespace: namespace}
}

// Emit sends all data points in a single PutMetricData call.
func (m *MetricsEmitter) Emit(ctx context.Context, data ...Datum) error {
	if len(data) == 0 {
		return nil
	}

	metricData := make([]cwtypes.MetricDatum, 0, len(data))
	for _, d := range data {
		dims := make([]cwtypes.Dimension, 0, len(d.Dimensions))
		for name, value := range d.Dimensions {
			dims = append(dims, cwtypes.Dimension{
				Name:  sdkaws.String(name),
				Value: sdkaws.String(value),
			})
		}
		metricData = append(metricData, cwtypes.MetricDatum{
			MetricName: sdkaws.String(d.Name),
			Value:      sdkaws.Float64(d.Value),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		})
	}

	_, err := m.CloudWatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  sdkaws.String(m.Namespace),
		MetricData: metricData,
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}
