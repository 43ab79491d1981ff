package middleware

import (
	"net/http"
	"time"

	"github.com/hitoshi/tinyshop/internal/metrics"
)

// NewMetricsMiddleware はHTTPステータスコードと処理時間を記録するミドルウェアを返す。
func NewMetricsMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	collector = metrics.OrNop(collector)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			// WebSocket接続は接続時間が処理時間になるため記録しない
			if rec.statusCode == http.StatusSwitchingProtocols {
				return
			}
			collector.RecordHTTPStatus(rec.statusCode)
			collector.RecordRequestLatency(time.Since(start))
		})
	}
}
