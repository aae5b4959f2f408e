package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSetupMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordArticleCreated()
	c.RecordFavorite(ActionAdd)
	c.RecordFollow(ActionRemove)
	c.RecordArticlesReconciled(7)

	handler := SetupMetricsRoute(reg)

	t.Run("/metricsはドメインメトリクスを返す", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		body := w.Body.String()
		for _, want := range []string{
			"conduit_articles_created_total 1",
			`conduit_favorite_actions_total{action="add"} 1`,
			`conduit_follow_actions_total{action="remove"} 1`,
			"conduit_articles_reconciled_total 7",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("response should contain %q", want)
			}
		}
	})

	t.Run("他のパスは404", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/articles", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}
