package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/jwtpizza/internal/middleware"
	"github.com/hitoshi/jwtpizza/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Me(ctx context.Context, caller *model.User) (*model.User, error)
	// Update は本人またはadminによるユーザー情報の更新を行い、新しいトークンを返す。
	Update(ctx context.Context, caller *model.User, userID int64, upd model.UserUpdate) (*model.User, string, error)
	Delete(ctx context.Context, caller *model.User, userID int64) error
	List(ctx context.Context, caller *model.User, page model.Page) ([]*model.User, bool, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

type updateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userListResponse struct {
	Users []userResponse `json:"users"`
	More  bool           `json:"more"`
}

// Me は認証済みユーザーの情報を返す。
// GET /api/user/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context(), middleware.UserFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, toUserResponse(user))
}

// Update はユーザー情報を更新する。
// PUT /api/user/{userId}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, token, err := h.service.Update(r.Context(), middleware.UserFromContext(r.Context()), userID, model.UserUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, authResponse{User: toUserResponse(user), Token: token})
}

// Delete はユーザーを削除する。
// DELETE /api/user/{userId}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), middleware.UserFromContext(r.Context()), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, messageResponse{Message: "user deleted"})
}

// List はユーザー一覧を返す。nameの'*'はワイルドカードとして扱う。
// GET /api/user?page=1&limit=10&name=*
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page := model.Page{
		Number:     queryInt(r, "page", 1),
		Limit:      queryInt(r, "limit", 0),
		NameFilter: r.URL.Query().Get("name"),
	}

	users, more, err := h.service.List(r.Context(), middleware.UserFromContext(r.Context()), page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := userListResponse{Users: make([]userResponse, 0, len(users)), More: more}
	for _, u := range users {
		resp.Users = append(resp.Users, toUserResponse(u))
	}
	writeJSON(w, resp)
}
