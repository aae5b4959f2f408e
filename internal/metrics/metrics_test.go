package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily は名前でメトリクスファミリーを探す。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// counterByLabel はラベル値ごとのカウンタ値を返す。
func counterByLabel(mf *dto.MetricFamily) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		out[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	return out
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(422)

	got := counterByLabel(findMetricFamily(t, reg, "conduit_http_status_total"))
	if len(got) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(got))
	}
	if got["200"] != 2 {
		t.Errorf("http_status_total{status_code=200} = %v, want 2", got["200"])
	}
	if got["422"] != 1 {
		t.Errorf("http_status_total{status_code=422} = %v, want 1", got["422"])
	}
}

// TestRecordRequestLatency_ObservesHistogram はレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(100 * time.Millisecond)
	c.RecordRequestLatency(2 * time.Second)

	h := findMetricFamily(t, reg, "conduit_request_latency_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	// 合計は0.1 + 2.0 = 2.1秒
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

// TestRecordArticleCreated_IncrementsCounter は記事作成カウンタが増加することを検証する。
func TestRecordArticleCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordArticleCreated()
	c.RecordArticleCreated()

	val := findMetricFamily(t, reg, "conduit_articles_created_total").GetMetric()[0].GetCounter().GetValue()
	if val != 2 {
		t.Errorf("articles_created_total = %v, want 2", val)
	}
}

// TestRecordSocialActions_CountsByAction はお気に入り・フォロー操作が種別ごとに数えられることを検証する。
func TestRecordSocialActions_CountsByAction(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFavorite(ActionAdd)
	c.RecordFavorite(ActionAdd)
	c.RecordFavorite(ActionRemove)
	c.RecordFollow(ActionAdd)

	favorites := counterByLabel(findMetricFamily(t, reg, "conduit_favorite_actions_total"))
	if favorites[ActionAdd] != 2 || favorites[ActionRemove] != 1 {
		t.Errorf("favorite_actions_total = %v", favorites)
	}

	follows := counterByLabel(findMetricFamily(t, reg, "conduit_follow_actions_total"))
	if follows[ActionAdd] != 1 {
		t.Errorf("follow_actions_total = %v", follows)
	}
	if _, ok := follows[ActionRemove]; ok {
		t.Errorf("記録していないラベルが存在する: %v", follows)
	}
}

// TestRecordArticlesReconciled_AddsCount は再計算件数が加算されることを検証する。
func TestRecordArticlesReconciled_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordArticlesReconciled(10)
	c.RecordArticlesReconciled(5)

	val := findMetricFamily(t, reg, "conduit_articles_reconciled_total").GetMetric()[0].GetCounter().GetValue()
	if val != 15 {
		t.Errorf("articles_reconciled_total = %v, want 15", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordRequestLatency(500 * time.Millisecond)
	c.RecordArticleCreated()
	c.RecordFavorite(ActionAdd)
	c.RecordFollow(ActionRemove)
	c.RecordArticlesReconciled(3)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"conduit_http_status_total",
		"conduit_request_latency_seconds",
		"conduit_articles_created_total",
		"conduit_favorite_actions_total",
		"conduit_follow_actions_total",
		"conduit_articles_reconciled_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordArticleCreated()
	c2.RecordArticleCreated()
	c2.RecordArticleCreated()

	val1 := findMetricFamily(t, reg1, "conduit_articles_created_total").GetMetric()[0].GetCounter().GetValue()
	val2 := findMetricFamily(t, reg2, "conduit_articles_created_total").GetMetric()[0].GetCounter().GetValue()

	if val1 != 1 {
		t.Errorf("reg1 articles_created = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 articles_created = %v, want 2", val2)
	}
}
