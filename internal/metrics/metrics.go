// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 工場呼び出しの結果ラベル
const (
	FactorySuccess     = "success"
	FactoryFailure     = "failure"
	FactoryUnreachable = "unreachable"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method string, statusCode int, duration time.Duration)
	RecordLogin(success bool)
	RecordOrder(itemCount int, revenue float64)
	RecordFactoryCall(outcome string, duration time.Duration)
	RecordTokensPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests   *prometheus.CounterVec
	httpLatency    prometheus.Histogram
	logins         *prometheus.CounterVec
	orders         prometheus.Counter
	pizzasSold     prometheus.Counter
	revenue        prometheus.Counter
	factoryCalls   *prometheus.CounterVec
	factoryLatency prometheus.Histogram
	tokensPurged   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jwtpizza_http_requests_total",
			Help: "HTTPメソッドとステータスコード別のリクエスト数",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jwtpizza_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jwtpizza_auth_attempts_total",
			Help: "ログイン試行の結果別件数",
		}, []string{"result"}),
		orders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jwtpizza_orders_total",
			Help: "保存された注文の合計数",
		}),
		pizzasSold: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jwtpizza_pizzas_sold_total",
			Help: "注文されたピザの合計数",
		}),
		revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jwtpizza_revenue_total",
			Help: "注文明細価格の累計",
		}),
		factoryCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jwtpizza_factory_calls_total",
			Help: "工場サービス呼び出しの結果別件数",
		}, []string{"outcome"}),
		factoryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jwtpizza_factory_latency_seconds",
			Help:    "工場サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		tokensPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jwtpizza_auth_tokens_purged_total",
			Help: "期限切れで削除されたトークン署名の合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.logins,
		c.orders,
		c.pizzasSold,
		c.revenue,
		c.factoryCalls,
		c.factoryLatency,
		c.tokensPurged,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの結果と処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// RecordLogin はログイン試行を記録する。
func (c *Collector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

// RecordOrder は保存された注文を記録する。
func (c *Collector) RecordOrder(itemCount int, revenue float64) {
	c.orders.Inc()
	c.pizzasSold.Add(float64(itemCount))
	if revenue > 0 {
		c.revenue.Add(revenue)
	}
}

// RecordFactoryCall は工場サービス呼び出しの結果を記録する。
func (c *Collector) RecordFactoryCall(outcome string, duration time.Duration) {
	c.factoryCalls.WithLabelValues(outcome).Inc()
	c.factoryLatency.Observe(duration.Seconds())
}

// RecordTokensPurged は削除されたトークン署名の件数を記録する。
func (c *Collector) RecordTokensPurged(count int64) {
	c.tokensPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
