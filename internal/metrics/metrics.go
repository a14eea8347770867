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
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordLoginSuccess(method string)
	RecordLoginFailure(method string, reason string)
	RecordUserCreated()
	RecordTokenPairIssued()
	RecordTokenRotation()
	RecordExchangeLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordRevokedTokensPurged(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess    *prometheus.CounterVec
	loginFail       *prometheus.CounterVec
	usersCreated    prometheus.Counter
	pairsIssued     prometheus.Counter
	rotations       prometheus.Counter
	exchangeLatency prometheus.Histogram
	httpStatus      *prometheus.CounterVec
	tokensPurged    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notelog_login_success_total",
			Help: "ログイン成功の合計数（認証方法別）",
		}, []string{"method"}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notelog_login_fail_total",
			Help: "ログイン失敗の合計数（認証方法・理由別）",
		}, []string{"method", "reason"}),
		usersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notelog_users_created_total",
			Help: "作成されたユーザーの合計数",
		}),
		pairsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notelog_token_pairs_issued_total",
			Help: "発行されたトークンペアの合計数",
		}),
		rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notelog_token_rotations_total",
			Help: "リフレッシュトークンローテーションの合計数",
		}),
		exchangeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "notelog_oauth_exchange_latency_seconds",
			Help:    "IdPとの認可コード交換のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notelog_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		tokensPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notelog_revoked_tokens_purged_total",
			Help: "削除された期限切れ失効記録の合計数",
		}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.usersCreated,
		c.pairsIssued,
		c.rotations,
		c.exchangeLatency,
		c.httpStatus,
		c.tokensPurged,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。methodは"google"または"password"。
func (c *Collector) RecordLoginSuccess(method string) {
	c.loginSuccess.WithLabelValues(method).Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure(method string, reason string) {
	c.loginFail.WithLabelValues(method, reason).Inc()
}

// RecordUserCreated はユーザー作成を記録する。
func (c *Collector) RecordUserCreated() {
	c.usersCreated.Inc()
}

// RecordTokenPairIssued はトークンペア発行を記録する。
func (c *Collector) RecordTokenPairIssued() {
	c.pairsIssued.Inc()
}

// RecordTokenRotation はローテーションを記録する。
func (c *Collector) RecordTokenRotation() {
	c.rotations.Inc()
}

// RecordExchangeLatency は認可コード交換のレイテンシを記録する。
func (c *Collector) RecordExchangeLatency(duration time.Duration) {
	c.exchangeLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRevokedTokensPurged は削除された期限切れ失効記録の数を記録する。
func (c *Collector) RecordRevokedTokensPurged(count int) {
	c.tokensPurged.Add(float64(count))
}

// NopCollector は何も記録しないMetricsCollector実装。
// メトリクス収集が不要な構成（テストなど）で使用する。
type NopCollector struct{}

func (NopCollector) RecordLoginSuccess(method string) {}

func (NopCollector) RecordLoginFailure(method string, reason string) {}

func (NopCollector) RecordUserCreated() {}

func (NopCollector) RecordTokenPairIssued() {}

func (NopCollector) RecordTokenRotation() {}

func (NopCollector) RecordExchangeLatency(duration time.Duration) {}

func (NopCollector) RecordHTTPStatus(statusCode int) {}

func (NopCollector) RecordRevokedTokensPurged(count int) {}

var _ MetricsCollector = NopCollector{}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
