package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/conduit/internal/model"
)

// mockAuthenticator はテスト用のAuthenticatorモック。
type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, token string) (*model.User, error)
	calls          int
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (*model.User, error) {
	m.calls++
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, token)
	}
	return nil, model.NewUnauthorizedError()
}

func tokenAuthenticator(valid string, user *model.User) *mockAuthenticator {
	return &mockAuthenticator{
		authenticateFn: func(ctx context.Context, token string) (*model.User, error) {
			if token == valid {
				return user, nil
			}
			return nil, model.NewUnauthorizedError()
		},
	}
}

func TestTokenFromHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		wantOK bool
	}{
		{"Tokenスキーム", "Token abc.def.ghi", "abc.def.ghi", true},
		{"Bearerスキーム", "Bearer abc.def.ghi", "abc.def.ghi", true},
		{"大文字小文字を区別しない", "token abc", "abc", true},
		{"前後の空白", "  Token   abc  ", "abc", true},
		{"空", "", "", false},
		{"スキームのみ", "Token", "", false},
		{"スキームと空白のみ", "Token   ", "", false},
		{"未知のスキーム", "Basic dXNlcjpwYXNz", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TokenFromHeader(tt.header)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("token = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestRequireAuth_ValidToken は有効なトークンでユーザーがコンテキストに注入されることを検証する。
func TestRequireAuth_ValidToken(t *testing.T) {
	authn := tokenAuthenticator("good", &model.User{ID: "user-1", Username: "alice"})

	var captured *model.User
	handler := NewRequireAuthMiddleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.Header.Set("Authorization", "Token good")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if captured == nil || captured.Username != "alice" {
		t.Fatalf("user = %+v, want alice", captured)
	}
}

// TestRequireAuth_Rejects は認証必須ルートで401になるケースを検証する。
func TestRequireAuth_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"ヘッダーなし", ""},
		{"不正な形式", "abc"},
		{"無効なトークン", "Token bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authn := tokenAuthenticator("good", &model.User{ID: "user-1"})
			called := false
			handler := NewRequireAuthMiddleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if called {
				t.Error("next handler should not be called")
			}
		})
	}
}

// TestOptionalAuth_NoHeader はヘッダーがなければ匿名で通過することを検証する。
func TestOptionalAuth_NoHeader(t *testing.T) {
	authn := &mockAuthenticator{}

	var captured *model.User
	called := false
	handler := NewOptionalAuthMiddleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		captured = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/articles", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !called {
		t.Fatal("next handler should be called")
	}
	if captured != nil {
		t.Errorf("user = %+v, want nil", captured)
	}
	if authn.calls != 0 {
		t.Errorf("Authenticate called %d times, want 0", authn.calls)
	}
}

// TestOptionalAuth_InvalidToken は任意認証でも無効なトークンは401になることを検証する。
func TestOptionalAuth_InvalidToken(t *testing.T) {
	authn := tokenAuthenticator("good", &model.User{ID: "user-1"})
	handler := NewOptionalAuthMiddleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	req.Header.Set("Authorization", "Token expired")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// TestOptionalAuth_ValidToken は任意認証でもトークンがあればユーザーが注入されることを検証する。
func TestOptionalAuth_ValidToken(t *testing.T) {
	authn := tokenAuthenticator("good", &model.User{ID: "user-2", Username: "bob"})

	var capturedID string
	handler := NewOptionalAuthMiddleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if capturedID != "user-2" {
		t.Errorf("userID = %q, want %q", capturedID, "user-2")
	}
}

// TestRequireAuth_RepositoryFailure は認証処理の内部エラーが500になることを検証する。
func TestRequireAuth_RepositoryFailure(t *testing.T) {
	authn := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, token string) (*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	handler := NewRequireAuthMiddleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.Header.Set("Authorization", "Token good")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for anonymous context")
	}
	if user := UserFromContext(context.Background()); user != nil {
		t.Errorf("user = %+v, want nil", user)
	}
}
