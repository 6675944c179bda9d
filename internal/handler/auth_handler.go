// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/jwtpizza/internal/metrics"
	"github.com/hitoshi/jwtpizza/internal/middleware"
	"github.com/hitoshi/jwtpizza/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, name, email, password string) (*model.User, string, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandler は登録・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service   AuthServiceInterface
	collector metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。collectorはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, collector metrics.MetricsCollector) *AuthHandler {
	return &AuthHandler{
		service:   service,
		collector: collector,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register はdinerとしてユーザーを登録し、トークンを返す。
// POST /api/auth
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, token, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, authResponse{User: toUserResponse(user), Token: token})
}

// Login はメールアドレスとパスワードでログインし、新しいトークンを返す。
// PUT /api/auth
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	h.recordLogin(err)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, authResponse{User: toUserResponse(user), Token: token})
}

// Logout はリクエストのベアラートークンを失効させる。
// DELETE /api/auth
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), middleware.TokenFromContext(r.Context())); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, messageResponse{Message: "logout successful"})
}

// recordLogin はログイン結果をメトリクスに記録する。
// 資格情報の誤り以外のエラー（DB障害など）は失敗として数えない。
func (h *AuthHandler) recordLogin(err error) {
	if h.collector == nil {
		return
	}
	if err == nil {
		h.collector.RecordLogin(true)
		return
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		h.collector.RecordLogin(false)
	}
}
