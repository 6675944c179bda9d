package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hitoshi/jwtpizza/internal/auth"
	"github.com/hitoshi/jwtpizza/internal/cache"
	"github.com/hitoshi/jwtpizza/internal/config"
	"github.com/hitoshi/jwtpizza/internal/database"
	"github.com/hitoshi/jwtpizza/internal/factory"
	"github.com/hitoshi/jwtpizza/internal/franchise"
	"github.com/hitoshi/jwtpizza/internal/handler"
	"github.com/hitoshi/jwtpizza/internal/logger"
	"github.com/hitoshi/jwtpizza/internal/metrics"
	"github.com/hitoshi/jwtpizza/internal/middleware"
	"github.com/hitoshi/jwtpizza/internal/order"
	"github.com/hitoshi/jwtpizza/internal/repository"
	"github.com/hitoshi/jwtpizza/internal/security"
	"github.com/hitoshi/jwtpizza/internal/seed"
	"github.com/hitoshi/jwtpizza/internal/telemetry"
	"github.com/hitoshi/jwtpizza/internal/user"
	"github.com/hitoshi/jwtpizza/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数のConfigを読み込む。
func Init(w io.Writer) (*config.Config, error) {
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		slog.Warn("invalid LOG_LEVEL, falling back to info", slog.String("error", err.Error()))
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "3000"
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
		slog.String("version", appVersion(cfg)),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    cfg.OTelServiceName,
		ServiceVersion: appVersion(cfg),
		Endpoint:       cfg.OTelEndpoint,
		Insecure:       cfg.OTelInsecure,
	})
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("failed to shut down tracing", slog.String("error", err.Error()))
		}
	}()

	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.DB, "jwtpizza"),
	)
	collector := metrics.NewCollector(registry)

	// 3. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	tokenRepo := repository.NewPostgresAuthTokenRepo(db)
	franchiseRepo := repository.NewPostgresFranchiseRepo(db)
	menuRepo := repository.NewPostgresMenuRepo(db)
	orderRepo := repository.NewPostgresOrderRepo(db)

	// 4. セキュリティ
	guard := security.NewURLGuard()
	sanitizer := security.NewTextSanitizer()

	// 5. 外部サービス
	factoryClient := factory.NewClient(newFactoryHTTPClient(cfg, guard), slog.Default(), cfg.FactoryURL, cfg.FactoryAPIKey)

	var menuCache cache.MenuCache
	if cfg.RedisURL != "" {
		redisClient, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		menuCache = cache.NewRedisMenuCache(redisClient, cfg.MenuCacheTTL)
		slog.Info("menu cache enabled", slog.Duration("ttl", cfg.MenuCacheTTL))
	}

	// 6. ドメインサービス
	authService := auth.NewService(userRepo, tokenRepo, auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), sanitizer)
	userService := user.NewService(userRepo, authService, sanitizer)
	franchiseService := franchise.NewService(franchiseRepo, userRepo, sanitizer)
	orderService := order.NewService(menuRepo, orderRepo, franchiseRepo, menuCache, factoryClient, guard, sanitizer, collector)

	// 7. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Collector:         collector,
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),
		Docs: handler.DocsConfig{
			Version:    appVersion(cfg),
			FactoryURL: cfg.FactoryURL,
		},

		AuthService:      authService,
		UserService:      userService,
		FranchiseService: franchiseService,
		OrderService:     orderService,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      otelhttp.NewHandler(router, "jwtpizza"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen failed: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newFactoryHTTPClient は工場サービス向けのHTTPクライアントを生成する。
// FACTORY_ALLOW_PRIVATEが無効な場合はプライベートアドレスへの接続を拒否する。
func newFactoryHTTPClient(cfg *config.Config, guard security.URLGuard) *http.Client {
	var client *http.Client
	if cfg.FactoryAllowPrivate {
		client = &http.Client{Timeout: cfg.FactoryTimeout}
	} else {
		client = guard.NewSafeClient(cfg.FactoryTimeout)
	}

	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client.Transport = otelhttp.NewTransport(base)
	return client
}

// runWorker はワーカーモードで起動する。
// 失効済みトークン署名を定期削除し、/health と /metrics をSERVER_PORTで公開する。
// シグナル受信で停止する。
func runWorker(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(registry)

	job := cleanup.NewCleanupJob(repository.NewPostgresAuthTokenRepo(db), slog.Default(), collector)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           workerMux(db, metrics.Handler(registry)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker status server failed", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting", slog.Duration("cleanup_interval", cfg.CleanupInterval))

	// ブロッキング: ctxがキャンセルされるまで実行する
	job.Start(ctx, cfg.CleanupInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("worker status server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// workerMux はワーカーの死活監視とメトリクス用のハンドラーを返す。
func workerMux(db handler.HealthChecker, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	return mux
}

// runMigrate は未適用のマイグレーションをすべて適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runSeed はシードファイルのユーザーとメニューを投入する。
// SEED_FILEが未設定の場合は組み込みのデフォルトを使う。
func runSeed(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	seeder := seed.NewSeeder(
		repository.NewPostgresUserRepo(db),
		repository.NewPostgresMenuRepo(db),
		auth.HashPassword,
		slog.Default(),
	)
	if _, err := seeder.Run(ctx, f); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	return nil
}

// runHealthcheck はdistroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// appVersion はドキュメントとトレースに載せるバージョン文字列を返す。
func appVersion(cfg *config.Config) string {
	if cfg.AppVersion != "" {
		return cfg.AppVersion
	}
	return "dev"
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
