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
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordArticleCreated()
	RecordFavorite(action string)
	RecordFollow(action string)
	RecordArticlesReconciled(count int)
}

// ソーシャル操作のラベル値
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
	articlesCreated    prometheus.Counter
	favoriteActions    *prometheus.CounterVec
	followActions      *prometheus.CounterVec
	articlesReconciled prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conduit_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "conduit_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		articlesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conduit_articles_created_total",
			Help: "作成された記事の合計数",
		}),
		favoriteActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conduit_favorite_actions_total",
			Help: "お気に入り登録・解除の合計数",
		}, []string{"action"}),
		followActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conduit_follow_actions_total",
			Help: "フォロー・フォロー解除の合計数",
		}, []string{"action"}),
		articlesReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conduit_articles_reconciled_total",
			Help: "お気に入り数を再計算した記事の合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.articlesCreated,
		c.favoriteActions,
		c.followActions,
		c.articlesReconciled,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordArticleCreated は記事作成を記録する。
func (c *Collector) RecordArticleCreated() {
	c.articlesCreated.Inc()
}

// RecordFavorite はお気に入り操作を記録する。actionは ActionAdd または ActionRemove。
func (c *Collector) RecordFavorite(action string) {
	c.favoriteActions.WithLabelValues(action).Inc()
}

// RecordFollow はフォロー操作を記録する。
func (c *Collector) RecordFollow(action string) {
	c.followActions.WithLabelValues(action).Inc()
}

// RecordArticlesReconciled は再計算した記事数を記録する。
func (c *Collector) RecordArticlesReconciled(count int) {
	c.articlesReconciled.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordHTTPStatus(int)               {}
func (Nop) RecordRequestLatency(time.Duration) {}
func (Nop) RecordArticleCreated()              {}
func (Nop) RecordFavorite(string)              {}
func (Nop) RecordFollow(string)                {}
func (Nop) RecordArticlesReconciled(int)       {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

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
