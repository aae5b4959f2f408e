package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/conduit/internal/model"
)

func newLogBuffer() (*bytes.Buffer, *slog.Logger) {
	var buf bytes.Buffer
	return &buf, slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func decodeLogEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	buf, logger := newLogBuffer()

	handler := NewLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Millisecond)
		_, _ = w.Write([]byte(`{"articles":[]}`))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/articles?tag=go", nil))

	entry := decodeLogEntry(t, buf)
	want := map[string]any{
		"msg":    "http_request",
		"level":  "INFO",
		"method": "GET",
		"path":   "/api/articles",
		"status": float64(http.StatusOK),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
	if d, _ := entry["duration_ms"].(float64); d <= 0 {
		t.Errorf("duration_ms = %v, want > 0", entry["duration_ms"])
	}
	for _, absent := range []string{"user_id", "request_id", "route"} {
		if _, ok := entry[absent]; ok {
			t.Errorf("%s should be omitted, got %v", absent, entry[absent])
		}
	}
	if got := w.Header().Get(RequestIDHeader); got != "" {
		t.Errorf("%s = %q, want empty", RequestIDHeader, got)
	}
}

func TestLoggingMiddleware_RouteAndRequestIDUnderChi(t *testing.T) {
	buf, logger := newLogBuffer()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(NewLoggingMiddleware(logger))
	r.Get("/api/articles/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/articles/missing-abc123", nil)
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	entry := decodeLogEntry(t, buf)
	want := map[string]any{
		"route":      "/api/articles/{slug}",
		"path":       "/api/articles/missing-abc123",
		"request_id": "req-42",
		"level":      "WARN",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
	if got := w.Header().Get(RequestIDHeader); got != "req-42" {
		t.Errorf("%s = %q, want %q", RequestIDHeader, got, "req-42")
	}
}

func TestLoggingMiddleware_UserID(t *testing.T) {
	alice := &model.User{ID: "user-456", Username: "alice"}

	t.Run("外側で注入済み", func(t *testing.T) {
		buf, logger := newLogBuffer()
		handler := NewLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
		req = req.WithContext(ContextWithUser(req.Context(), alice))
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if got := decodeLogEntry(t, buf)["user_id"]; got != "user-456" {
			t.Errorf("user_id = %v, want %q", got, "user-456")
		}
	})

	t.Run("内側の認証ミドルウェアが解決", func(t *testing.T) {
		buf, logger := newLogBuffer()
		authn := &mockAuthenticator{
			authenticateFn: func(ctx context.Context, token string) (*model.User, error) {
				return alice, nil
			},
		}
		handler := NewLoggingMiddleware(logger)(NewRequireAuthMiddleware(authn)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		))

		req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
		req.Header.Set("Authorization", "Token valid")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if got := decodeLogEntry(t, buf)["user_id"]; got != "user-456" {
			t.Errorf("user_id = %v, want %q", got, "user-456")
		}
	})
}

func TestLoggingMiddleware_StatusAndLevel(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantLevel  string
	}{
		{"暗黙の200", func(w http.ResponseWriter) { _, _ = w.Write([]byte("ok")) }, http.StatusOK, "INFO"},
		{"201", func(w http.ResponseWriter) { w.WriteHeader(http.StatusCreated) }, http.StatusCreated, "INFO"},
		{"422", func(w http.ResponseWriter) { w.WriteHeader(http.StatusUnprocessableEntity) }, http.StatusUnprocessableEntity, "WARN"},
		{"500", func(w http.ResponseWriter) { w.WriteHeader(http.StatusInternalServerError) }, http.StatusInternalServerError, "ERROR"},
		{"最初のWriteHeaderを記録", func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusForbidden)
			w.WriteHeader(http.StatusOK)
		}, http.StatusForbidden, "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, logger := newLogBuffer()
			handler := NewLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tt.write(w)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/articles", nil))

			entry := decodeLogEntry(t, buf)
			if entry["status"] != float64(tt.wantStatus) {
				t.Errorf("status = %v, want %d", entry["status"], tt.wantStatus)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %q", entry["level"], tt.wantLevel)
			}
		})
	}
}
