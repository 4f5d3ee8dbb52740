// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証結果ラベルの値。
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやミドルウェアから利用する。
type MetricsCollector interface {
	RecordSignup(result string)
	RecordLogin(result string)
	RecordLogout()
	RecordEntryCreated(kind string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signups        *prometheus.CounterVec
	logins         *prometheus.CounterVec
	logouts        prometheus.Counter
	entriesCreated *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kakeibo_signups_total",
			Help: "サインアップ試行の合計数（結果別）",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kakeibo_logins_total",
			Help: "ログイン試行の合計数（結果別）",
		}, []string{"result"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kakeibo_logouts_total",
			Help: "ログアウトの合計数",
		}),
		entriesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kakeibo_entries_created_total",
			Help: "登録された収入・支出エントリの合計数（種別別）",
		}, []string{"kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kakeibo_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kakeibo_http_request_duration_seconds",
			Help:    "HTTPリクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.signups,
		c.logins,
		c.logouts,
		c.entriesCreated,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordSignup はサインアップ結果を記録する。
func (c *Collector) RecordSignup(result string) {
	c.signups.WithLabelValues(result).Inc()
}

// RecordLogin はログイン結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordLogout はログアウトを記録する。
func (c *Collector) RecordLogout() {
	c.logouts.Inc()
}

// RecordEntryCreated はエントリ登録を記録する。
func (c *Collector) RecordEntryCreated(kind string) {
	c.entriesCreated.WithLabelValues(kind).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop は何も記録しないMetricsCollector。
// メトリクスを使わないテストやツールで使用する。
type Noop struct{}

func (Noop) RecordSignup(string)                 {}
func (Noop) RecordLogin(string)                  {}
func (Noop) RecordLogout()                       {}
func (Noop) RecordEntryCreated(string)           {}
func (Noop) RecordHTTPStatus(int)                {}
func (Noop) RecordRequestLatency(time.Duration) {}
