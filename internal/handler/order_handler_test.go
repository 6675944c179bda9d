package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/jwtpizza/internal/model"
)

// --- モック定義 ---

type mockOrderService struct {
	menuFn        func(ctx context.Context) ([]*model.MenuItem, error)
	addMenuItemFn func(ctx context.Context, caller *model.User, item model.MenuItem) ([]*model.MenuItem, error)
	listFn        func(ctx context.Context, caller *model.User, page int) ([]*model.Order, int, error)
	createFn      func(ctx context.Context, caller *model.User, req model.Order) (*model.Order, *model.FactoryReceipt, error)
}

func (m *mockOrderService) Menu(ctx context.Context) ([]*model.MenuItem, error) {
	if m.menuFn != nil {
		return m.menuFn(ctx)
	}
	return nil, nil
}

func (m *mockOrderService) AddMenuItem(ctx context.Context, caller *model.User, item model.MenuItem) ([]*model.MenuItem, error) {
	if m.addMenuItemFn != nil {
		return m.addMenuItemFn(ctx, caller, item)
	}
	return nil, nil
}

func (m *mockOrderService) List(ctx context.Context, caller *model.User, page int) ([]*model.Order, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, caller, page)
	}
	return nil, page, nil
}

func (m *mockOrderService) Create(ctx context.Context, caller *model.User, req model.Order) (*model.Order, *model.FactoryReceipt, error) {
	if m.createFn != nil {
		return m.createFn(ctx, caller, req)
	}
	return nil, nil, nil
}

var veggie = &model.MenuItem{ID: 1, Title: "Veggie", Description: "A garden of delight", Image: "pizza1.png", Price: 0.0038}

// --- GET /api/order/menu ---

func TestOrderHandler_Menu_ReturnsArray(t *testing.T) {
	svc := &mockOrderService{
		menuFn: func(context.Context) ([]*model.MenuItem, error) {
			return []*model.MenuItem{veggie}, nil
		},
	}
	h := NewOrderHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/order/menu", nil)
	w := httptest.NewRecorder()

	h.Menu(w, req)

	var resp []menuItemResponse
	decodeResponse(t, w, &resp)
	if len(resp) != 1 || resp[0].Title != "Veggie" || resp[0].Image != "pizza1.png" {
		t.Errorf("resp = %+v", resp)
	}
}

// --- PUT /api/order/menu ---

func TestOrderHandler_AddMenuItem_Forbidden(t *testing.T) {
	svc := &mockOrderService{
		addMenuItemFn: func(context.Context, *model.User, model.MenuItem) ([]*model.MenuItem, error) {
			return nil, model.NewForbiddenError("unable to add menu item")
		},
	}
	h := NewOrderHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/order/menu", strings.NewReader(`{"title":"test pizza","price":0.001}`))
	req = withUser(req, dinerUser)
	w := httptest.NewRecorder()

	h.AddMenuItem(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if !strings.Contains(w.Body.String(), "unable to add menu item") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestOrderHandler_AddMenuItem_PassesFields(t *testing.T) {
	svc := &mockOrderService{
		addMenuItemFn: func(_ context.Context, _ *model.User, item model.MenuItem) ([]*model.MenuItem, error) {
			if item.Title != "Student" || item.Image != "pizza9.png" || item.Price != 0.0001 {
				t.Errorf("item = %+v", item)
			}
			return []*model.MenuItem{veggie, {ID: 2, Title: item.Title}}, nil
		},
	}
	h := NewOrderHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/order/menu",
		strings.NewReader(`{"title":"Student","description":"No topping, no sauce, just carbs","image":"pizza9.png","price":0.0001}`))
	req = withUser(req, adminUser)
	w := httptest.NewRecorder()

	h.AddMenuItem(w, req)

	var resp []menuItemResponse
	decodeResponse(t, w, &resp)
	if len(resp) != 2 {
		t.Errorf("menu length = %d, want 2", len(resp))
	}
}

// --- GET /api/order ---

func TestOrderHandler_List(t *testing.T) {
	date := time.Date(2024, 6, 5, 5, 14, 40, 0, time.UTC)
	svc := &mockOrderService{
		listFn: func(_ context.Context, caller *model.User, page int) ([]*model.Order, int, error) {
			if page != 2 {
				t.Errorf("page = %d, want 2", page)
			}
			return []*model.Order{{
				ID: 1, DinerID: caller.ID, FranchiseID: 1, StoreID: 1, Date: date,
				Items: []model.OrderItem{{ID: 1, MenuID: 1, Description: "Veggie", Price: 0.05}},
			}}, page, nil
		},
	}
	h := NewOrderHandler(svc)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/order?page=2", nil), dinerUser)
	w := httptest.NewRecorder()

	h.List(w, req)

	var resp orderListResponse
	decodeResponse(t, w, &resp)
	if resp.DinerID != 7 || resp.Page != 2 || len(resp.Orders) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Orders[0].Date != "2024-06-05T05:14:40.000Z" {
		t.Errorf("date = %q", resp.Orders[0].Date)
	}
	if resp.Orders[0].Items[0].MenuID != 1 {
		t.Errorf("items = %+v", resp.Orders[0].Items)
	}
}

// --- POST /api/order ---

func TestOrderHandler_Create_ReturnsFactoryJWT(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(_ context.Context, caller *model.User, req model.Order) (*model.Order, *model.FactoryReceipt, error) {
			if req.FranchiseID != 1 || req.StoreID != 1 || len(req.Items) != 1 || req.Items[0].MenuID != 1 {
				t.Errorf("req = %+v", req)
			}
			order := req
			order.ID = 42
			order.DinerID = caller.ID
			return &order, &model.FactoryReceipt{JWT: "factory.jwt.token", ReportURL: "https://factory/report/42"}, nil
		},
	}
	h := NewOrderHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/order",
		strings.NewReader(`{"franchiseId":1,"storeId":1,"items":[{"menuId":1,"description":"Veggie","price":0.05}]}`))
	req = withUser(req, dinerUser)
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp createOrderResponse
	decodeResponse(t, w, &resp)
	if resp.JWT != "factory.jwt.token" || resp.Order.ID != 42 || resp.FollowLinkToEndChaos != "https://factory/report/42" {
		t.Errorf("resp = %+v", resp)
	}
}

// 工場エラー時は500と工場のメッセージ、レポートURLを返す
func TestOrderHandler_Create_FactoryFailure(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(_ context.Context, _ *model.User, req model.Order) (*model.Order, *model.FactoryReceipt, error) {
			order := req
			order.ID = 43
			return &order, nil, model.NewFactoryFailureError("oven is on fire", "https://factory/report/43")
		},
	}
	h := NewOrderHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/order",
		strings.NewReader(`{"franchiseId":1,"storeId":1,"items":[{"menuId":1,"description":"Veggie","price":0.05}]}`))
	req = withUser(req, dinerUser)
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var resp struct {
		Message              string `json:"message"`
		FollowLinkToEndChaos string `json:"followLinkToEndChaos"`
	}
	decodeResponse(t, w, &resp)
	if resp.Message != "Failed to fulfill order at factory: oven is on fire" || resp.FollowLinkToEndChaos != "https://factory/report/43" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestOrderHandler_Create_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    *model.APIError
		status int
	}{
		{"明細なし", model.NewInvalidRequestError("order must contain at least one item"), http.StatusBadRequest},
		{"店舗なし", model.NewStoreNotFoundError(9), http.StatusNotFound},
		{"メニューなし", model.NewMenuItemNotFoundError(99), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{
				createFn: func(context.Context, *model.User, model.Order) (*model.Order, *model.FactoryReceipt, error) {
					return nil, nil, tt.err
				},
			}
			h := NewOrderHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/order", strings.NewReader(`{"franchiseId":1,"storeId":9,"items":[]}`))
			req = withUser(req, dinerUser)
			w := httptest.NewRecorder()

			h.Create(w, req)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}
