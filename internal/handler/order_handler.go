package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/jwtpizza/internal/middleware"
	"github.com/hitoshi/jwtpizza/internal/model"
)

// OrderServiceInterface は注文ハンドラーが必要とするサービスインターフェース。
type OrderServiceInterface interface {
	Menu(ctx context.Context) ([]*model.MenuItem, error)
	AddMenuItem(ctx context.Context, caller *model.User, item model.MenuItem) ([]*model.MenuItem, error)
	List(ctx context.Context, caller *model.User, page int) ([]*model.Order, int, error)
	// Create は注文を保存して工場へ送信する。工場エラー時も保存済みの注文を返す。
	Create(ctx context.Context, caller *model.User, req model.Order) (*model.Order, *model.FactoryReceipt, error)
}

// OrderHandler はメニューと注文のHTTPハンドラー。
type OrderHandler struct {
	service OrderServiceInterface
}

// NewOrderHandler はOrderHandlerを生成する。
func NewOrderHandler(service OrderServiceInterface) *OrderHandler {
	return &OrderHandler{
		service: service,
	}
}

type addMenuItemRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Price       float64 `json:"price"`
}

type createOrderRequest struct {
	FranchiseID int64 `json:"franchiseId"`
	StoreID     int64 `json:"storeId"`
	Items       []struct {
		MenuID      int64   `json:"menuId"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
	} `json:"items"`
}

type orderListResponse struct {
	DinerID int64           `json:"dinerId"`
	Orders  []orderResponse `json:"orders"`
	Page    int             `json:"page"`
}

type createOrderResponse struct {
	Order                orderResponse `json:"order"`
	FollowLinkToEndChaos string        `json:"followLinkToEndChaos,omitempty"`
	JWT                  string        `json:"jwt"`
}

// Menu はメニュー一覧を配列で返す。認証不要。
// GET /api/order/menu
func (h *OrderHandler) Menu(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Menu(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, toMenuResponse(items))
}

// AddMenuItem はメニュー項目を追加し、更新後のメニューを返す。
// PUT /api/order/menu
func (h *OrderHandler) AddMenuItem(w http.ResponseWriter, r *http.Request) {
	var req addMenuItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	items, err := h.service.AddMenuItem(r.Context(), middleware.UserFromContext(r.Context()), model.MenuItem{
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Price:       req.Price,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, toMenuResponse(items))
}

// List は認証済みユーザーの注文履歴を返す。ページ番号は1始まり。
// GET /api/order?page=1
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	orders, page, err := h.service.List(r.Context(), caller, queryInt(r, "page", 1))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := orderListResponse{
		DinerID: caller.ID,
		Orders:  make([]orderResponse, 0, len(orders)),
		Page:    page,
	}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(o))
	}
	writeJSON(w, resp)
}

// Create は注文を作成し、工場サービスの確認トークンを返す。
// POST /api/order
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order := model.Order{
		FranchiseID: req.FranchiseID,
		StoreID:     req.StoreID,
		Items:       make([]model.OrderItem, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		order.Items = append(order.Items, model.OrderItem{
			MenuID:      it.MenuID,
			Description: it.Description,
			Price:       it.Price,
		})
	}

	created, receipt, err := h.service.Create(r.Context(), middleware.UserFromContext(r.Context()), order)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, createOrderResponse{
		Order:                toOrderResponse(created),
		FollowLinkToEndChaos: receipt.ReportURL,
		JWT:                  receipt.JWT,
	})
}
