// Package telemetry はOpenTelemetryによるトレース送信の初期化を提供する。
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config はトレース送信の設定を保持する。
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint はOTLP gRPCの送信先。空の場合はトレースを送信しない。
	Endpoint string
	Insecure bool
}

// ShutdownFunc はバッファ済みのスパンを送信してプロバイダーを停止する。
type ShutdownFunc func(context.Context) error

func noop(context.Context) error { return nil }

// Setup はグローバルなTracerProviderとW3C Trace Contextの伝搬を設定する。
// Endpointが空、またはエクスポーターの生成に失敗した場合は何もしないShutdownFuncを返す。
func Setup(ctx context.Context, cfg Config) ShutdownFunc {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Endpoint == "" {
		return noop
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		slog.Error("failed to create otlp exporter", slog.String("error", err.Error()))
		return noop
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		slog.Warn("failed to build otel resource", slog.String("error", err.Error()))
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	slog.Info("tracing enabled",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("service", cfg.ServiceName),
	)
	return provider.Shutdown
}
