package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

// エンドポイント未設定の場合は何もしないShutdownFuncを返す
func TestSetup_NoEndpoint_ReturnsNoop(t *testing.T) {
	shutdown := Setup(context.Background(), Config{ServiceName: "jwt-pizza-service"})
	if shutdown == nil {
		t.Fatal("Setup() returned nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestSetup_ConfiguresPropagator(t *testing.T) {
	Setup(context.Background(), Config{ServiceName: "jwt-pizza-service"})

	fields := otel.GetTextMapPropagator().Fields()
	found := false
	for _, f := range fields {
		if f == "traceparent" {
			found = true
		}
	}
	if !found {
		t.Errorf("propagator fields = %v, want traceparent", fields)
	}
}

// エクスポーターは遅延接続のため、到達できないエンドポイントでもSetupは成功する
func TestSetup_WithEndpoint_ShutsDown(t *testing.T) {
	shutdown := Setup(context.Background(), Config{
		ServiceName: "jwt-pizza-service",
		Endpoint:    "127.0.0.1:1",
		Insecure:    true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// キャンセル済みコンテキストでは送信を待たずに戻る
	_ = shutdown(ctx)
}
