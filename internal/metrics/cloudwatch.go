// Package metrics pushes counters and latencies to CloudWatch. Emission is
// best effort: a nil emitter is valid and all methods become no-ops, so
// callers never branch on whether metrics are configured.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/somasaidi/somasaidi/internal/awsx"
)

type Emitter struct {
	cw        awsx.CloudWatchAPI
	namespace string
	logger    *slog.Logger
}

func NewEmitter(cw awsx.CloudWatchAPI, namespace string, logger *slog.Logger) *Emitter {
	return &Emitter{cw: cw, namespace: namespace, logger: logger}
}

// Count adds n to a counter metric.
func (e *Emitter) Count(ctx context.Context, name string, n float64, dims map[string]string) {
	if e == nil {
		return
	}
	e.put(ctx, name, n, types.StandardUnitCount, dims)
}

// Duration records an elapsed time in milliseconds.
func (e *Emitter) Duration(ctx context.Context, name string, d time.Duration, dims map[string]string) {
	if e == nil {
		return
	}
	e.put(ctx, name, float64(d.Milliseconds()), types.StandardUnitMilliseconds, dims)
}

func (e *Emitter) put(ctx context.Context, name string, value float64, unit types.StandardUnit, dims map[string]string) {
	datum := types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now()),
	}
	for k, v := range dims {
		datum.Dimensions = append(datum.Dimensions, types.Dimension{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}
	_, err := e.cw.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(e.namespace),
		MetricData: []types.MetricDatum{datum},
	})
	if err != nil && e.logger != nil {
		e.logger.Warn("failed to put metric", "metric", name, "error", err)
	}
}
