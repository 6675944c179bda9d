package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/jwtpizza/internal/middleware"
)

// HealthChecker はDB疎通確認のインターフェース。*sqlx.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// DocsConfig はAPIドキュメントに表示するサービス情報。
type DocsConfig struct {
	Version    string
	FactoryURL string
}

// endpointDoc はAPIドキュメントの1エンドポイント分の記述。
type endpointDoc struct {
	Method       string `json:"method"`
	Path         string `json:"path"`
	Description  string `json:"description"`
	RequiresAuth bool   `json:"requiresAuth"`
}

type docsResponse struct {
	Version   string        `json:"version"`
	Endpoints []endpointDoc `json:"endpoints"`
	Config    struct {
		Factory struct {
			URL string `json:"url"`
		} `json:"factory"`
	} `json:"config"`
}

type welcomeResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// endpoints はルーターに登録するAPIの一覧。
var endpoints = []endpointDoc{
	{http.MethodPost, "/api/auth", "Register a new user", false},
	{http.MethodPut, "/api/auth", "Login existing user", false},
	{http.MethodDelete, "/api/auth", "Logout a user", true},
	{http.MethodGet, "/api/user/me", "Get authenticated user", true},
	{http.MethodPut, "/api/user/:userId", "Update user", true},
	{http.MethodDelete, "/api/user/:userId", "Delete user", true},
	{http.MethodGet, "/api/user?page=1&limit=10&name=*", "Gets a list of users", true},
	{http.MethodGet, "/api/order/menu", "Get the pizza menu", false},
	{http.MethodPut, "/api/order/menu", "Add an item to the menu", true},
	{http.MethodGet, "/api/order?page=1", "Get the orders for the authenticated user", true},
	{http.MethodPost, "/api/order", "Create a order for the authenticated user", true},
	{http.MethodGet, "/api/franchise?page=0&limit=10&name=*", "List all the franchises", false},
	{http.MethodGet, "/api/franchise/:userId", "List a user's franchises", true},
	{http.MethodPost, "/api/franchise", "Create a new franchise", true},
	{http.MethodDelete, "/api/franchise/:franchiseId", "Delete a franchise", true},
	{http.MethodPost, "/api/franchise/:franchiseId/store", "Create a new franchise store", true},
	{http.MethodDelete, "/api/franchise/:franchiseId/store/:storeId", "Delete a store", true},
}

// DocsHandler はサービス情報、APIドキュメント、ヘルスチェックのHTTPハンドラー。
type DocsHandler struct {
	config DocsConfig
	health HealthChecker
}

// NewDocsHandler はDocsHandlerを生成する。healthがnilの場合、ヘルスチェックは常に成功する。
func NewDocsHandler(config DocsConfig, health HealthChecker) *DocsHandler {
	return &DocsHandler{
		config: config,
		health: health,
	}
}

// Welcome はサービス名とバージョンを返す。
// GET /
func (h *DocsHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, welcomeResponse{Message: "welcome to JWT Pizza", Version: h.config.Version})
}

// Docs はAPIエンドポイントの一覧を返す。
// GET /api/docs
func (h *DocsHandler) Docs(w http.ResponseWriter, r *http.Request) {
	var resp docsResponse
	resp.Version = h.config.Version
	resp.Endpoints = endpoints
	resp.Config.Factory.URL = h.config.FactoryURL
	writeJSON(w, resp)
}

// Health はDBへの疎通を確認する。
// GET /health
func (h *DocsHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := h.health.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
			return
		}
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
