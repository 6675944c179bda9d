package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/jwtpizza/internal/metrics"
	"github.com/hitoshi/jwtpizza/internal/middleware"
	"github.com/hitoshi/jwtpizza/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
	Docs           DocsConfig

	// ドメインサービス
	AuthService      AuthServiceInterface
	UserService      UserServiceInterface
	FranchiseService FranchiseServiceInterface
	OrderService     OrderServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → Session → RateLimit(General)
//
// /health と /metrics はセッションとレート制限の外に配置する。
// 登録とログインには認証用の厳しいレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Collector))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "NOT_FOUND",
			Message:  "unknown endpoint",
			Category: "system",
			Action:   "URLを確認してください。",
		})
	})

	docsHandler := NewDocsHandler(deps.Docs, deps.HealthChecker)
	authHandler := NewAuthHandler(deps.AuthService, deps.Collector)
	userHandler := NewUserHandler(deps.UserService)
	franchiseHandler := NewFranchiseHandler(deps.FranchiseService)
	orderHandler := NewOrderHandler(deps.OrderService)

	// --- 運用エンドポイント ---
	r.Get("/health", docsHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- API ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/", docsHandler.Welcome)
		r.Get("/api/docs", docsHandler.Docs)

		// 認証
		r.Route("/api/auth", func(r chi.Router) {
			r.With(deps.RateLimiter.AuthMiddleware()).Post("/", authHandler.Register)
			r.With(deps.RateLimiter.AuthMiddleware()).Put("/", authHandler.Login)
			r.With(middleware.RequireAuth).Delete("/", authHandler.Logout)
		})

		// ユーザー
		r.Route("/api/user", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/", userHandler.List)
			r.Get("/me", userHandler.Me)
			r.Put("/{userId}", userHandler.Update)
			r.Delete("/{userId}", userHandler.Delete)
		})

		// メニューと注文
		r.Route("/api/order", func(r chi.Router) {
			r.Get("/menu", orderHandler.Menu)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Put("/menu", orderHandler.AddMenuItem)
				r.Get("/", orderHandler.List)
				r.Post("/", orderHandler.Create)
			})
		})

		// フランチャイズと店舗
		r.Route("/api/franchise", func(r chi.Router) {
			r.Get("/", franchiseHandler.List)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/{userId}", franchiseHandler.ListForUser)
				r.Post("/", franchiseHandler.Create)
				r.Delete("/{franchiseId}", franchiseHandler.Delete)
				r.Post("/{franchiseId}/store", franchiseHandler.CreateStore)
				r.Delete("/{franchiseId}/store/{storeId}", franchiseHandler.DeleteStore)
			})
		})
	})

	return r
}
