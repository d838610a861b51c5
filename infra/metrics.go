package infra

import (
	"context"
	"log"

	"github.com/cardforge/mint-worker/config"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type MetricsClient struct {
	provider *sdkmetric.MeterProvider

	jobsProcessed metric.Int64Counter
	jobsCompleted metric.Int64Counter
	jobsFailed    metric.Int64Counter
	jobsRetried   metric.Int64Counter
}

func InitMetricsClient(cfg *config.EnvConfig) *MetricsClient {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.Grafana.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment.Mode),
		),
	)
	if err != nil {
		res = resource.Default()
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.Grafana.OTLPEndpoint != "" {
		exporter, err := otlpmetrichttp.New(
			context.Background(),
			otlpmetrichttp.WithEndpoint(cfg.Grafana.OTLPEndpoint),
		)
		if err != nil {
			log.Printf("Warning: OTLP metric exporter unavailable, metrics stay local: %v", err)
		} else {
			opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
		}
	}

	provider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)

	if err := runtime.Start(); err != nil {
		log.Printf("Warning: runtime instrumentation failed to start: %v", err)
	}

	meter := provider.Meter("mint-worker")

	client := &MetricsClient{provider: provider}
	client.jobsProcessed, _ = meter.Int64Counter("mint_jobs_processed",
		metric.WithDescription("Mint job submission attempts with a recorded outcome"))
	client.jobsCompleted, _ = meter.Int64Counter("mint_jobs_completed",
		metric.WithDescription("Mint jobs recorded as completed"))
	client.jobsFailed, _ = meter.Int64Counter("mint_jobs_failed",
		metric.WithDescription("Mint jobs recorded as terminally failed"))
	client.jobsRetried, _ = meter.Int64Counter("mint_jobs_retried",
		metric.WithDescription("Mint jobs requeued for another attempt"))

	return client
}

func (m *MetricsClient) RecordCompleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.jobsProcessed.Add(ctx, 1)
	m.jobsCompleted.Add(ctx, 1)
}

func (m *MetricsClient) RecordFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.jobsProcessed.Add(ctx, 1)
	m.jobsFailed.Add(ctx, 1)
}

func (m *MetricsClient) RecordRetried(ctx context.Context) {
	if m == nil {
		return
	}
	m.jobsProcessed.Add(ctx, 1)
	m.jobsRetried.Add(ctx, 1)
}

func (m *MetricsClient) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
