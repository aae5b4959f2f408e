package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/conduit/internal/article"
	"github.com/hitoshi/conduit/internal/auth"
	"github.com/hitoshi/conduit/internal/config"
	"github.com/hitoshi/conduit/internal/database"
	"github.com/hitoshi/conduit/internal/events"
	"github.com/hitoshi/conduit/internal/feed"
	"github.com/hitoshi/conduit/internal/handler"
	"github.com/hitoshi/conduit/internal/logger"
	"github.com/hitoshi/conduit/internal/metrics"
	"github.com/hitoshi/conduit/internal/repository"
	"github.com/hitoshi/conduit/internal/security"
	"github.com/hitoshi/conduit/internal/social"
	"github.com/hitoshi/conduit/internal/user"
	"github.com/hitoshi/conduit/internal/worker/reconcile"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("store_driver", cfg.StoreDriver),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandReconcile:
		return runReconcile(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// stores はストアドライバに応じて構築したリポジトリ群。
type stores struct {
	users    repository.UserRepository
	articles repository.ArticleRepository
	comments repository.CommentRepository
	health   handler.HealthChecker
	close    func() error
}

// openStores は設定に応じてインメモリまたはPostgreSQLのリポジトリを構築する。
func openStores(cfg *config.Config) (*stores, error) {
	if cfg.UsesMemoryStore() {
		mem := repository.NewMemoryStore()
		slog.Warn("using in-memory store; data is lost on restart")
		return &stores{
			users:    mem.Users(),
			articles: mem.Articles(),
			comments: mem.Comments(),
			close:    func() error { return nil },
		}, nil
	}

	db, err := database.Connect(context.Background(), cfg.DatabaseURL, database.DefaultPoolConfig, 10*time.Second)
	if err != nil {
		return nil, err
	}
	slog.Info("database connection established")

	return &stores{
		users:    repository.NewPostgresUserRepo(db),
		articles: repository.NewPostgresArticleRepo(db),
		comments: repository.NewPostgresCommentRepo(db),
		health:   db,
		close:    db.Close,
	}, nil
}

// openPublisher はAMQP_URLが設定されていればRabbitMQ、なければ何もしないPublisherを返す。
func openPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}, nil
	}
	pub, err := events.NewRabbitMQPublisher(events.RabbitMQConfig{
		URL:      cfg.AMQPURL,
		Exchange: cfg.AMQPExchange,
	}, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to message broker: %w", err)
	}
	return pub, nil
}

// newRegistry はプロセスとGoランタイムのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// buildRouter は全依存関係をワイヤリングしたHTTPハンドラーを返す。
func buildRouter(cfg *config.Config, st *stores, publisher events.Publisher, reg *prometheus.Registry) http.Handler {
	mc := metrics.NewCollector(reg)
	notifier := events.NewNotifier(publisher)
	sanitizer := security.NewContentSanitizer()

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(st.users, tokens, sanitizer)
	manager := social.NewManager(st.users, st.articles, notifier, mc)

	return handler.NewRouter(&handler.RouterDeps{
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            slog.Default(),
		Metrics:           mc,
		Gatherer:          reg,
		HealthChecker:     st.health,

		AccountService: authService,
		ProfileService: user.NewService(st.users, manager),
		ArticleService: article.NewService(st.articles, st.comments, st.users, manager, sanitizer, notifier, mc),
		FeedComposer:   feed.NewComposer(st.users, st.articles),
	})
}

// runServe はAPIサーバーモードで起動する。
// ストアとメッセージブローカーに接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close()

	publisher, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      buildRouter(cfg, st, publisher, newRegistry()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilSignal(server, "API server")
}

// runWorker はワーカーモードで起動する。
// お気に入り数の再計算ジョブを実行し、/metrics を公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.UsesMemoryStore() {
		return errors.New("worker requires STORE_DRIVER=postgres")
	}

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close()

	reg := newRegistry()
	mc := metrics.NewCollector(reg)
	manager := social.NewManager(st.users, st.articles, nil, mc)
	job := reconcile.NewJob(st.articles, manager, mc, slog.Default(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting",
		slog.Duration("reconcile_interval", cfg.ReconcileInterval),
	)

	// 再計算ジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.ReconcileInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runReconcile はお気に入り数の再計算を1回だけ実行して終了する。
// cronなど外部スケジューラーからの起動を想定する。
func runReconcile(cfg *config.Config) error {
	if cfg.UsesMemoryStore() {
		return errors.New("reconcile requires STORE_DRIVER=postgres")
	}

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close()

	manager := social.NewManager(st.users, st.articles, nil, nil)
	job := reconcile.NewJob(st.articles, manager, nil, slog.Default(), 0)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := job.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("reconcile interrupted: %w", err)
	}
	slog.Info("reconcile completed", slog.Int("articles", n))
	return nil
}

// serveUntilSignal はサーバーを起動し、SIGINT/SIGTERMを受信したらグレースフルシャットダウンする。
func serveUntilSignal(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s listen failed: %w", name, err)
	case <-stop:
	}

	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.UsesMemoryStore() {
		slog.Info("in-memory store needs no migrations")
		return nil
	}

	names, err := database.MigrationNames()
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Int("embedded_files", len(names)),
	)

	status, err := database.RunMigrations(cfg.DatabaseURL, slog.Default())
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(status.Version)),
		slog.Bool("changed", status.Changed),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
