package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/conduit/internal/article"
	"github.com/hitoshi/conduit/internal/auth"
	"github.com/hitoshi/conduit/internal/feed"
	"github.com/hitoshi/conduit/internal/metrics"
	"github.com/hitoshi/conduit/internal/repository"
	"github.com/hitoshi/conduit/internal/security"
	"github.com/hitoshi/conduit/internal/social"
	"github.com/hitoshi/conduit/internal/user"
	"github.com/hitoshi/conduit/internal/view"
)

// testApp はインメモリストア上で全サービスを組み立てたルーター。
type testApp struct {
	router   http.Handler
	store    *repository.MemoryStore
	registry *prometheus.Registry
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	store := repository.NewMemoryStore()
	users := store.Users()
	articles := store.Articles()
	comments := store.Comments()

	reg := prometheus.NewRegistry()
	mc := metrics.NewCollector(reg)
	sanitizer := security.NewContentSanitizer()

	authService := auth.NewService(users, auth.NewTokenService("handler-test-secret", time.Hour), sanitizer)
	manager := social.NewManager(users, articles, nil, mc)

	router := NewRouter(&RouterDeps{
		Authenticator:     authService,
		CORSAllowedOrigin: "*",
		Logger:            discardLogger(),
		Metrics:           mc,
		Gatherer:          reg,
		AccountService:    authService,
		ProfileService:    user.NewService(users, manager),
		ArticleService:    article.NewService(articles, comments, users, manager, sanitizer, nil, mc),
		FeedComposer:      feed.NewComposer(users, articles),
	})

	return &testApp{router: router, store: store, registry: reg}
}

// do はリクエストを実行する。tokenが空の場合はAuthorizationヘッダーを付けない。
func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// register はユーザーを登録してトークンを返す。
func (a *testApp) register(t *testing.T, username string) string {
	t.Helper()

	w := a.do(t, http.MethodPost, "/api/users", "", map[string]any{
		"user": map[string]string{
			"username": username,
			"email":    username + "@example.com",
			"password": "password123",
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: status = %d, body = %s", username, w.Code, w.Body.String())
	}
	return decode[userResponse](t, w).User.Token
}

// createArticle は記事を作成してレスポンスの記事を返す。
func (a *testApp) createArticle(t *testing.T, token, title string, tags ...string) view.ArticleView {
	t.Helper()

	if tags == nil {
		tags = []string{}
	}
	w := a.do(t, http.MethodPost, "/api/articles", token, map[string]any{
		"article": map[string]any{
			"title":       title,
			"description": "about " + title,
			"body":        "body of " + title,
			"tagList":     tags,
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create article: status = %d, body = %s", w.Code, w.Body.String())
	}
	return decode[articleResponse](t, w).Article
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, w.Body.String())
	}
	return v
}

func validationErrors(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode errors: %v", err)
	}
	return body.Errors
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()

	if w.Code != want {
		t.Fatalf("status = %d, want %d, body = %s", w.Code, want, w.Body.String())
	}
}
