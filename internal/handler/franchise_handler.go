package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/jwtpizza/internal/middleware"
	"github.com/hitoshi/jwtpizza/internal/model"
)

// FranchiseServiceInterface はフランチャイズハンドラーが必要とするサービスインターフェース。
type FranchiseServiceInterface interface {
	List(ctx context.Context, caller *model.User, page model.Page) ([]*model.Franchise, bool, error)
	ListForUser(ctx context.Context, caller *model.User, userID int64) ([]*model.Franchise, error)
	Create(ctx context.Context, caller *model.User, name string, adminEmails []string) (*model.Franchise, error)
	Delete(ctx context.Context, caller *model.User, franchiseID int64) error
	CreateStore(ctx context.Context, caller *model.User, franchiseID int64, name string) (*model.Store, error)
	DeleteStore(ctx context.Context, caller *model.User, franchiseID, storeID int64) error
}

// FranchiseHandler はフランチャイズと店舗のHTTPハンドラー。
type FranchiseHandler struct {
	service FranchiseServiceInterface
}

// NewFranchiseHandler はFranchiseHandlerを生成する。
func NewFranchiseHandler(service FranchiseServiceInterface) *FranchiseHandler {
	return &FranchiseHandler{
		service: service,
	}
}

type createFranchiseRequest struct {
	Name   string `json:"name"`
	Admins []struct {
		Email string `json:"email"`
	} `json:"admins"`
}

type createStoreRequest struct {
	Name string `json:"name"`
}

type franchiseListResponse struct {
	Franchises []franchiseResponse `json:"franchises"`
	More       bool                `json:"more"`
}

// List はフランチャイズ一覧を返す。ページ番号は0始まり。
// adminの場合のみ管理者一覧と店舗売上を含める。
// GET /api/franchise?page=0&limit=10&name=*
func (h *FranchiseHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())
	page := model.Page{
		Number:     queryInt(r, "page", 0),
		Limit:      queryInt(r, "limit", 0),
		NameFilter: r.URL.Query().Get("name"),
	}

	franchises, more, err := h.service.List(r.Context(), caller, page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	withDetail := caller.IsAdmin()
	resp := franchiseListResponse{Franchises: make([]franchiseResponse, 0, len(franchises)), More: more}
	for _, f := range franchises {
		resp.Franchises = append(resp.Franchises, toFranchiseResponse(f, withDetail))
	}
	writeJSON(w, resp)
}

// ListForUser は指定ユーザーが管理するフランチャイズを配列で返す。
// GET /api/franchise/{userId}
func (h *FranchiseHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	franchises, err := h.service.ListForUser(r.Context(), middleware.UserFromContext(r.Context()), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]franchiseResponse, 0, len(franchises))
	for _, f := range franchises {
		resp = append(resp, toFranchiseResponse(f, true))
	}
	writeJSON(w, resp)
}

// Create はフランチャイズを作成する。
// POST /api/franchise
func (h *FranchiseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createFranchiseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	emails := make([]string, 0, len(req.Admins))
	for _, a := range req.Admins {
		emails = append(emails, a.Email)
	}

	franchise, err := h.service.Create(r.Context(), middleware.UserFromContext(r.Context()), req.Name, emails)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, toFranchiseResponse(franchise, true))
}

// Delete はフランチャイズと配下の店舗を削除する。
// DELETE /api/franchise/{franchiseId}
func (h *FranchiseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	franchiseID, ok := pathID(w, r, "franchiseId")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), middleware.UserFromContext(r.Context()), franchiseID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, messageResponse{Message: "franchise deleted"})
}

// CreateStore はフランチャイズ配下に店舗を作成する。
// POST /api/franchise/{franchiseId}/store
func (h *FranchiseHandler) CreateStore(w http.ResponseWriter, r *http.Request) {
	franchiseID, ok := pathID(w, r, "franchiseId")
	if !ok {
		return
	}
	var req createStoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	store, err := h.service.CreateStore(r.Context(), middleware.UserFromContext(r.Context()), franchiseID, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, storeResponse{ID: store.ID, FranchiseID: store.FranchiseID, Name: store.Name})
}

// DeleteStore は店舗を削除する。
// DELETE /api/franchise/{franchiseId}/store/{storeId}
func (h *FranchiseHandler) DeleteStore(w http.ResponseWriter, r *http.Request) {
	franchiseID, ok := pathID(w, r, "franchiseId")
	if !ok {
		return
	}
	storeID, ok := pathID(w, r, "storeId")
	if !ok {
		return
	}

	if err := h.service.DeleteStore(r.Context(), middleware.UserFromContext(r.Context()), franchiseID, storeID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, messageResponse{Message: "store deleted"})
}
