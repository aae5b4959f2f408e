package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization, X-Requested-With"
	corsMaxAge       = "86400"
)

// parseAllowedOrigins はカンマ区切りのオリジン指定を分解する。
// "*" を含む場合はワイルドカードとして扱う。
func parseAllowedOrigins(spec string) (origins map[string]struct{}, wildcard bool) {
	origins = make(map[string]struct{})
	for _, o := range strings.Split(spec, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			wildcard = true
		default:
			origins[o] = struct{}{}
		}
	}
	return origins, wildcard
}

// NewCORSMiddleware はCORSミドルウェアを返す。
// allowedOriginは "*" またはカンマ区切りのオリジン一覧。一覧の場合はリクエストの
// Originが一致したときだけそのOriginを返し、Vary: Origin を付与する。
// トークンはAuthorizationヘッダーで受け取るため、Cookieの送信は許可しない。
// OPTIONSプリフライトはハンドラーに渡さず204で応答する。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	origins, wildcard := parseAllowedOrigins(allowedOrigin)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			allowed := ""
			if wildcard {
				allowed = "*"
			} else {
				h.Add("Vary", "Origin")
				if origin := r.Header.Get("Origin"); origin != "" {
					if _, ok := origins[origin]; ok {
						allowed = origin
					}
				}
			}

			if allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Max-Age", corsMaxAge)
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
