// Package order はメニューと注文のドメインロジックを提供する。
// 注文は保存後に工場サービスへ送信される。
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/jwtpizza/internal/authz"
	"github.com/hitoshi/jwtpizza/internal/cache"
	"github.com/hitoshi/jwtpizza/internal/factory"
	"github.com/hitoshi/jwtpizza/internal/metrics"
	"github.com/hitoshi/jwtpizza/internal/model"
	"github.com/hitoshi/jwtpizza/internal/repository"
	"github.com/hitoshi/jwtpizza/internal/security"
)

// PageSize は注文履歴1ページあたりの件数。
const PageSize = 10

// FactoryClient は工場サービスへの注文送信インターフェース。
type FactoryClient interface {
	SubmitOrder(ctx context.Context, diner *model.User, order *model.Order) (*model.FactoryReceipt, error)
}

// StoreFinder は注文先店舗の存在確認インターフェース。
type StoreFinder interface {
	FindStore(ctx context.Context, franchiseID, storeID int64) (*model.Store, error)
}

// Service はメニューと注文のサービス層。
type Service struct {
	menuRepo  repository.MenuRepository
	orderRepo repository.OrderRepository
	stores    StoreFinder
	menuCache cache.MenuCache
	factory   FactoryClient
	guard     security.URLGuard
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// menuCacheとmetricsはnilでもよい。
func NewService(
	menuRepo repository.MenuRepository,
	orderRepo repository.OrderRepository,
	stores StoreFinder,
	menuCache cache.MenuCache,
	factory FactoryClient,
	guard security.URLGuard,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		menuRepo:  menuRepo,
		orderRepo: orderRepo,
		stores:    stores,
		menuCache: menuCache,
		factory:   factory,
		guard:     guard,
		sanitizer: sanitizer,
		metrics:   collector,
		now:       time.Now,
	}
}

// Menu はメニュー全件を返す。キャッシュが有効な場合はキャッシュを優先する。
// キャッシュミス時の補充はFillで行い、AddMenuItemが書き込んだ新しいメニューを上書きしない。
func (s *Service) Menu(ctx context.Context) ([]*model.MenuItem, error) {
	if s.menuCache != nil {
		items, ok, err := s.menuCache.Get(ctx)
		if err != nil {
			slog.Warn("メニューキャッシュの読み取りに失敗しました", slog.String("error", err.Error()))
		}
		if ok {
			return items, nil
		}
	}

	items, err := s.menuRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("メニューの取得に失敗しました: %w", err)
	}

	if s.menuCache != nil {
		if err := s.menuCache.Fill(ctx, items); err != nil {
			slog.Warn("メニューキャッシュの書き込みに失敗しました", slog.String("error", err.Error()))
		}
	}
	return items, nil
}

// AddMenuItem はメニュー項目を追加し、追加後のメニュー全件を返す。adminのみ実行できる。
func (s *Service) AddMenuItem(ctx context.Context, caller *model.User, item model.MenuItem) ([]*model.MenuItem, error) {
	if d := authz.Check(caller, authz.ActionAddMenuItem, authz.Target{}); !d.Allowed {
		return nil, model.NewForbiddenError(d.Reason)
	}

	item.Title = s.sanitizer.Clean(item.Title)
	item.Description = s.sanitizer.Clean(item.Description)
	if item.Title == "" {
		return nil, model.NewInvalidRequestError("title is required")
	}
	if err := model.CheckLength("title", item.Title, model.MaxTextLength); err != nil {
		return nil, err
	}
	if err := model.CheckLength("image", item.Image, model.MaxImageRefLength); err != nil {
		return nil, err
	}
	if err := model.CheckPrice(item.Price); err != nil {
		return nil, err
	}
	if err := s.guard.ValidateImageRef(item.Image); err != nil {
		return nil, model.NewInvalidMenuImageURLError(err.Error())
	}

	if err := s.menuRepo.Create(ctx, &item); err != nil {
		return nil, fmt.Errorf("メニュー項目の追加に失敗しました: %w", err)
	}

	slog.Info("メニュー項目を追加しました",
		slog.Int64("menu_id", item.ID),
		slog.String("title", item.Title),
	)

	items, err := s.menuRepo.List(ctx)
	if err != nil {
		s.invalidateMenu(ctx)
		return nil, fmt.Errorf("メニューの取得に失敗しました: %w", err)
	}
	if s.menuCache != nil {
		if err := s.menuCache.Set(ctx, items); err != nil {
			slog.Warn("メニューキャッシュの書き込みに失敗しました", slog.String("error", err.Error()))
			s.invalidateMenu(ctx)
		}
	}
	return items, nil
}

// invalidateMenu は最新のメニューを書き込めなかった場合にキャッシュを破棄する。
func (s *Service) invalidateMenu(ctx context.Context) {
	if s.menuCache == nil {
		return
	}
	if err := s.menuCache.Invalidate(ctx); err != nil {
		slog.Warn("メニューキャッシュの削除に失敗しました", slog.String("error", err.Error()))
	}
}

// List は呼び出し元の注文履歴を新しい順に返す。ページ番号は1始まり。
func (s *Service) List(ctx context.Context, caller *model.User, page int) ([]*model.Order, int, error) {
	if caller == nil {
		return nil, 0, model.NewUnauthorizedError()
	}
	if page < 1 {
		page = 1
	}

	orders, err := s.orderRepo.ListByDiner(ctx, caller.ID, page, PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("注文履歴の取得に失敗しました: %w", err)
	}
	return orders, page, nil
}

// Create は注文を検証して保存し、工場サービスへ送信する。
// 工場での処理に失敗した場合も注文は保存されたまま、注文とFACTORY_FAILUREエラーを返す。
func (s *Service) Create(ctx context.Context, caller *model.User, req model.Order) (*model.Order, *model.FactoryReceipt, error) {
	if caller == nil {
		return nil, nil, model.NewUnauthorizedError()
	}
	if err := validateOrder(req); err != nil {
		return nil, nil, err
	}

	store, err := s.stores.FindStore(ctx, req.FranchiseID, req.StoreID)
	if err != nil {
		return nil, nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	if store == nil {
		return nil, nil, model.NewStoreNotFoundError(req.StoreID)
	}

	items, err := s.resolveItems(ctx, req.Items)
	if err != nil {
		return nil, nil, err
	}

	order := &model.Order{
		DinerID:     caller.ID,
		FranchiseID: store.FranchiseID,
		StoreID:     store.ID,
		Items:       items,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, nil, fmt.Errorf("注文の保存に失敗しました: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordOrder(len(order.Items), order.Total())
	}

	slog.Info("注文を保存しました",
		slog.Int64("order_id", order.ID),
		slog.Int64("diner_id", caller.ID),
		slog.Int64("store_id", order.StoreID),
		slog.Int("item_count", len(order.Items)),
	)

	start := s.now()
	receipt, err := s.factory.SubmitOrder(ctx, caller, order)
	elapsed := s.now().Sub(start)
	if err != nil {
		var ferr *factory.Error
		if errors.As(err, &ferr) {
			s.recordFactory(metrics.FactoryFailure, elapsed)
			slog.Warn("工場サービスで注文の処理に失敗しました",
				slog.Int64("order_id", order.ID),
				slog.Int("http_status", ferr.StatusCode),
				slog.String("factory_message", ferr.Message),
			)
			return order, nil, model.NewFactoryFailureError(ferr.Message, ferr.ReportURL)
		}
		s.recordFactory(metrics.FactoryUnreachable, elapsed)
		return order, nil, model.NewFactoryUnreachableError(err.Error())
	}

	s.recordFactory(metrics.FactorySuccess, elapsed)
	return order, receipt, nil
}

func (s *Service) recordFactory(outcome string, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordFactoryCall(outcome, elapsed)
	}
}

// resolveItems は注文明細のメニューIDを検証し、説明が空の明細にはメニュー名を補う。
func (s *Service) resolveItems(ctx context.Context, reqItems []model.OrderItem) ([]model.OrderItem, error) {
	ids := make([]int64, 0, len(reqItems))
	seen := make(map[int64]struct{}, len(reqItems))
	for _, it := range reqItems {
		if _, ok := seen[it.MenuID]; !ok {
			seen[it.MenuID] = struct{}{}
			ids = append(ids, it.MenuID)
		}
	}

	menu, err := s.menuRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("メニューの取得に失敗しました: %w", err)
	}
	byID := make(map[int64]*model.MenuItem, len(menu))
	for _, m := range menu {
		byID[m.ID] = m
	}

	items := make([]model.OrderItem, 0, len(reqItems))
	for _, it := range reqItems {
		m, ok := byID[it.MenuID]
		if !ok {
			return nil, model.NewMenuItemNotFoundError(it.MenuID)
		}
		desc := s.sanitizer.Clean(it.Description)
		if desc == "" {
			desc = m.Title
		}
		if err := model.CheckLength("description", desc, model.MaxTextLength); err != nil {
			return nil, err
		}
		items = append(items, model.OrderItem{MenuID: it.MenuID, Description: desc, Price: it.Price})
	}
	return items, nil
}

// validateOrder は注文リクエストの形式を検証する。
func validateOrder(req model.Order) error {
	if req.FranchiseID <= 0 || req.StoreID <= 0 {
		return model.NewInvalidRequestError("franchiseId and storeId are required")
	}
	if len(req.Items) == 0 {
		return model.NewInvalidRequestError("order must contain at least one item")
	}
	for _, it := range req.Items {
		if it.MenuID <= 0 {
			return model.NewInvalidRequestError("menuId is required for each item")
		}
		if err := model.CheckPrice(it.Price); err != nil {
			return err
		}
	}
	return nil
}
