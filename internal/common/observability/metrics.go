package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	meter          otelmetric.Meter
	answerCounter  otelmetric.Int64Counter
	answerDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	answerCounter, _ := meter.Int64Counter(
		"answers.processed",
		otelmetric.WithDescription("Number of questions answered"),
	)

	answerDuration, _ := meter.Float64Histogram(
		"answers.duration",
		otelmetric.WithDescription("End-to-end answer duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:  provider,
		meter:          meter,
		answerCounter:  answerCounter,
		answerDuration: answerDuration,
	}
}

func (o *Observability) RecordAnswer(ctx context.Context, mode string) {
	if o.answerCounter != nil {
		o.answerCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("mode", mode),
		))
	}
}

func (o *Observability) RecordAnswerDuration(ctx context.Context, duration time.Duration, mode string) {
	if o.answerDuration != nil {
		o.answerDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("mode", mode),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
