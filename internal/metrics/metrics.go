// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやハンドラーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(method string, duration time.Duration)
	RecordAuthEvent(event, outcome string)
	RecordTokenRejection(reason string)
	RecordTodoOperation(op string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	authEvents      *prometheus.CounterVec
	tokenRejections *prometheus.CounterVec
	todoOps         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoapi_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todoapi_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoapi_auth_events_total",
			Help: "登録・ログインの結果別の件数",
		}, []string{"event", "outcome"}),
		tokenRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoapi_token_rejections_total",
			Help: "認証ガードで拒否したトークンの理由別の件数",
		}, []string{"reason"}),
		todoOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoapi_todo_operations_total",
			Help: "成功したTODO操作の種類別の件数",
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.authEvents,
		c.tokenRejections,
		c.todoOps,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(method string, duration time.Duration) {
	c.requestLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordAuthEvent は登録・ログインの結果を記録する。
// eventは"register"または"login"、outcomeは"success"または失敗理由。
func (c *Collector) RecordAuthEvent(event, outcome string) {
	c.authEvents.WithLabelValues(event, outcome).Inc()
}

// RecordTokenRejection はトークン拒否を理由別に記録する。
func (c *Collector) RecordTokenRejection(reason string) {
	c.tokenRejections.WithLabelValues(reason).Inc()
}

// RecordTodoOperation はTODO操作の成功を記録する。
func (c *Collector) RecordTodoOperation(op string) {
	c.todoOps.WithLabelValues(op).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
