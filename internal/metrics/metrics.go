// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 送金結果のラベル値。
const (
	TransferResultSuccess           = "success"
	TransferResultInvalid           = "invalid"
	TransferResultInsufficientFunds = "insufficient_funds"
	TransferResultRecipientNotFound = "recipient_not_found"
	TransferResultError             = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・チャットハブから利用する。
type MetricsCollector interface {
	RecordTransfer(result string, amount int64)
	RecordReport(targetKind string)
	RecordModerationAction(action string)
	RecordChatMessage()
	ChatConnectionOpened()
	ChatConnectionClosed()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	transfers         *prometheus.CounterVec
	pointsMoved       prometheus.Counter
	reports           *prometheus.CounterVec
	moderationActions *prometheus.CounterVec
	chatMessages      prometheus.Counter
	chatConnections   prometheus.Gauge
	httpStatus        *prometheus.CounterVec
	requestLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinyshop_transfers_total",
			Help: "結果別のポイント送金リクエスト数",
		}, []string{"result"}),
		pointsMoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tinyshop_points_moved_total",
			Help: "送金で移動したポイントの合計",
		}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinyshop_reports_total",
			Help: "対象種別ごとの受理された通報数",
		}, []string{"target"}),
		moderationActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinyshop_moderation_actions_total",
			Help: "自動モデレーションで適用された処分数",
		}, []string{"action"}),
		chatMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tinyshop_chat_messages_total",
			Help: "配信されたチャットメッセージの合計数",
		}),
		chatConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tinyshop_chat_connections",
			Help: "現在接続中のチャットWebSocket数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinyshop_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tinyshop_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.transfers,
		c.pointsMoved,
		c.reports,
		c.moderationActions,
		c.chatMessages,
		c.chatConnections,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordTransfer は送金結果を記録する。成功時は移動ポイントも加算する。
func (c *Collector) RecordTransfer(result string, amount int64) {
	c.transfers.WithLabelValues(result).Inc()
	if result == TransferResultSuccess && amount > 0 {
		c.pointsMoved.Add(float64(amount))
	}
}

// RecordReport は受理された通報を記録する。
func (c *Collector) RecordReport(targetKind string) {
	c.reports.WithLabelValues(targetKind).Inc()
}

// RecordModerationAction は適用された処分を記録する。
func (c *Collector) RecordModerationAction(action string) {
	c.moderationActions.WithLabelValues(action).Inc()
}

// RecordChatMessage はチャットメッセージの配信を記録する。
func (c *Collector) RecordChatMessage() {
	c.chatMessages.Inc()
}

// ChatConnectionOpened は接続中WebSocket数を1増やす。
func (c *Collector) ChatConnectionOpened() {
	c.chatConnections.Inc()
}

// ChatConnectionClosed は接続中WebSocket数を1減らす。
func (c *Collector) ChatConnectionClosed() {
	c.chatConnections.Dec()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はHTTPリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type NopCollector struct{}

func (NopCollector) RecordTransfer(string, int64)       {}
func (NopCollector) RecordReport(string)                {}
func (NopCollector) RecordModerationAction(string)      {}
func (NopCollector) RecordChatMessage()                 {}
func (NopCollector) ChatConnectionOpened()              {}
func (NopCollector) ChatConnectionClosed()              {}
func (NopCollector) RecordHTTPStatus(int)               {}
func (NopCollector) RecordRequestLatency(time.Duration) {}

// OrNop はcがnilの場合にNopCollectorを返す。
func OrNop(c MetricsCollector) MetricsCollector {
	if c == nil {
		return NopCollector{}
	}
	return c
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
