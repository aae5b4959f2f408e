package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/conduit/internal/metrics"
	"github.com/hitoshi/conduit/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	Gatherer          prometheus.Gatherer

	// ヘルスチェック（nilの場合は常に200）
	HealthChecker HealthChecker

	// アカウント
	AccountService AccountServiceInterface

	// プロフィール
	ProfileService ProfileServiceInterface

	// 記事・コメント・タグ
	ArticleService ArticleServiceInterface
	FeedComposer   FeedComposerInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → SecurityHeaders → CORS → Metrics → (Optional|Require)Auth
//
// /health と /metrics は認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewMetricsMiddleware(mc))

	userHandler := NewUserHandler(deps.AccountService)
	profileHandler := NewProfileHandler(deps.ProfileService)
	articleHandler := NewArticleHandler(deps.ArticleService, deps.FeedComposer)

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	requireAuth := middleware.NewRequireAuthMiddleware(deps.Authenticator)
	optionalAuth := middleware.NewOptionalAuthMiddleware(deps.Authenticator)

	r.Route("/api", func(r chi.Router) {
		// --- 認証不要のルート ---
		r.Post("/users", userHandler.Register)
		r.Post("/users/login", userHandler.Login)

		// --- 閲覧者によって表現が変わるルート ---
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)

			r.Get("/profiles/{username}", profileHandler.Get)
			r.Get("/articles", articleHandler.List)
			r.Get("/articles/{slug}", articleHandler.Get)
			r.Get("/articles/{slug}/comments", articleHandler.ListComments)
			r.Get("/tags", articleHandler.Tags)
		})

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/user", userHandler.Current)
			r.Put("/user", userHandler.Update)

			r.Post("/profiles/{username}/follow", profileHandler.Follow)
			r.Delete("/profiles/{username}/follow", profileHandler.Unfollow)

			r.Get("/articles/feed", articleHandler.Feed)
			r.Post("/articles", articleHandler.Create)
			r.Put("/articles/{slug}", articleHandler.Update)
			r.Delete("/articles/{slug}", articleHandler.Delete)
			r.Post("/articles/{slug}/favorite", articleHandler.Favorite)
			r.Delete("/articles/{slug}/favorite", articleHandler.Unfavorite)
			r.Post("/articles/{slug}/comments", articleHandler.AddComment)
			r.Delete("/articles/{slug}/comments/{id}", articleHandler.DeleteComment)
		})
	})

	return r
}
