// Package franchise はフランチャイズと店舗管理のドメインロジックを提供する。
package franchise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/jwtpizza/internal/authz"
	"github.com/hitoshi/jwtpizza/internal/model"
	"github.com/hitoshi/jwtpizza/internal/repository"
	"github.com/hitoshi/jwtpizza/internal/security"
)

const (
	// DefaultPageLimit は一覧取得の既定件数。
	DefaultPageLimit = 10
	// MaxPageLimit は一覧取得で指定できる最大件数。
	MaxPageLimit = 100
)

// Service はフランチャイズ管理のサービス層。
type Service struct {
	repo      repository.FranchiseRepository
	userRepo  repository.UserRepository
	sanitizer security.TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.FranchiseRepository,
	userRepo repository.UserRepository,
	sanitizer security.TextSanitizer,
) *Service {
	return &Service{
		repo:      repo,
		userRepo:  userRepo,
		sanitizer: sanitizer,
	}
}

// List はフランチャイズ一覧を返す。ページ番号は0始まり。
// callerがadminの場合のみ管理者一覧と店舗売上を含める。callerはnilでもよい。
func (s *Service) List(ctx context.Context, caller *model.User, page model.Page) ([]*model.Franchise, bool, error) {
	withDetail := authz.Check(caller, authz.ActionViewFranchiseDetail, authz.Target{}).Allowed

	if page.Number < 0 {
		page.Number = 0
	}
	switch {
	case page.Limit <= 0:
		page.Limit = DefaultPageLimit
	case page.Limit > MaxPageLimit:
		page.Limit = MaxPageLimit
	}

	franchises, more, err := s.repo.List(ctx, page, withDetail)
	if err != nil {
		return nil, false, fmt.Errorf("フランチャイズ一覧の取得に失敗しました: %w", err)
	}
	return franchises, more, nil
}

// ListForUser は指定ユーザーが管理するフランチャイズを返す。
// 本人またはadmin以外の呼び出しには空の一覧を返す。
func (s *Service) ListForUser(ctx context.Context, caller *model.User, userID int64) ([]*model.Franchise, error) {
	if d := authz.Check(caller, authz.ActionListUserFranchises, authz.Target{UserID: userID}); !d.Allowed {
		return []*model.Franchise{}, nil
	}

	franchises, err := s.repo.ListByAdmin(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーのフランチャイズ取得に失敗しました: %w", err)
	}
	return franchises, nil
}

// Create はフランチャイズを作成し、指定メールアドレスのユーザーにfranchiseeロールを付与する。
// 未登録のメールアドレスが含まれる場合は何も作成しない。
func (s *Service) Create(ctx context.Context, caller *model.User, name string, adminEmails []string) (*model.Franchise, error) {
	if d := authz.Check(caller, authz.ActionCreateFranchise, authz.Target{}); !d.Allowed {
		return nil, model.NewForbiddenError(d.Reason)
	}

	name = s.sanitizer.Clean(name)
	if name == "" {
		return nil, model.NewInvalidRequestError("franchise name is required")
	}
	if err := model.CheckLength("franchise name", name, model.MaxTextLength); err != nil {
		return nil, err
	}

	emails := uniqueEmails(adminEmails)
	admins := make([]model.FranchiseAdmin, 0, len(emails))
	if len(emails) > 0 {
		users, err := s.userRepo.FindByEmails(ctx, emails)
		if err != nil {
			return nil, fmt.Errorf("管理者ユーザーの取得に失敗しました: %w", err)
		}
		byEmail := make(map[string]*model.User, len(users))
		for _, u := range users {
			byEmail[u.Email] = u
		}
		for _, email := range emails {
			u, ok := byEmail[email]
			if !ok {
				return nil, model.NewUnknownFranchiseAdminError(email)
			}
			admins = append(admins, model.FranchiseAdmin{ID: u.ID, Name: u.Name, Email: u.Email})
		}
	}

	franchise := &model.Franchise{Name: name, Admins: admins, Stores: []model.Store{}}
	if err := s.repo.Create(ctx, franchise); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateFranchiseError(name)
		}
		return nil, fmt.Errorf("フランチャイズの作成に失敗しました: %w", err)
	}

	slog.Info("フランチャイズを作成しました",
		slog.Int64("franchise_id", franchise.ID),
		slog.String("name", franchise.Name),
		slog.Int("admin_count", len(admins)),
	)
	return franchise, nil
}

// Delete はフランチャイズを店舗とロール割り当てごと削除する。adminのみ実行できる。
func (s *Service) Delete(ctx context.Context, caller *model.User, franchiseID int64) error {
	if d := authz.Check(caller, authz.ActionDeleteFranchise, authz.Target{}); !d.Allowed {
		return model.NewForbiddenError(d.Reason)
	}

	if err := s.repo.Delete(ctx, franchiseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewFranchiseNotFoundError(franchiseID)
		}
		return fmt.Errorf("フランチャイズの削除に失敗しました: %w", err)
	}

	slog.Info("フランチャイズを削除しました",
		slog.Int64("franchise_id", franchiseID),
		slog.Int64("deleted_by", caller.ID),
	)
	return nil
}

// CreateStore はフランチャイズ配下に店舗を作成する。
// adminまたはそのフランチャイズの管理者のみ実行できる。
func (s *Service) CreateStore(ctx context.Context, caller *model.User, franchiseID int64, name string) (*model.Store, error) {
	franchise, err := s.authorizeStore(ctx, caller, authz.ActionCreateStore, franchiseID)
	if err != nil {
		return nil, err
	}

	name = s.sanitizer.Clean(name)
	if name == "" {
		return nil, model.NewInvalidRequestError("store name is required")
	}
	if err := model.CheckLength("store name", name, model.MaxTextLength); err != nil {
		return nil, err
	}

	store := &model.Store{FranchiseID: franchise.ID, Name: name}
	if err := s.repo.CreateStore(ctx, store); err != nil {
		return nil, fmt.Errorf("店舗の作成に失敗しました: %w", err)
	}

	slog.Info("店舗を作成しました",
		slog.Int64("franchise_id", franchise.ID),
		slog.Int64("store_id", store.ID),
	)
	return store, nil
}

// DeleteStore はフランチャイズ配下の店舗を削除する。
// adminまたはそのフランチャイズの管理者のみ実行できる。
func (s *Service) DeleteStore(ctx context.Context, caller *model.User, franchiseID, storeID int64) error {
	if _, err := s.authorizeStore(ctx, caller, authz.ActionDeleteStore, franchiseID); err != nil {
		return err
	}

	if err := s.repo.DeleteStore(ctx, franchiseID, storeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewStoreNotFoundError(storeID)
		}
		return fmt.Errorf("店舗の削除に失敗しました: %w", err)
	}

	slog.Info("店舗を削除しました",
		slog.Int64("franchise_id", franchiseID),
		slog.Int64("store_id", storeID),
	)
	return nil
}

// authorizeStore は店舗操作の権限を確認し、対象フランチャイズを返す。
// 権限のない呼び出し元には、存在しないフランチャイズでもForbiddenを返す。
func (s *Service) authorizeStore(ctx context.Context, caller *model.User, action authz.Action, franchiseID int64) (*model.Franchise, error) {
	franchise, err := s.repo.FindByID(ctx, franchiseID)
	if err != nil {
		return nil, fmt.Errorf("フランチャイズの取得に失敗しました: %w", err)
	}
	if d := authz.Check(caller, action, authz.Target{Franchise: franchise}); !d.Allowed {
		return nil, model.NewForbiddenError(d.Reason)
	}
	if franchise == nil {
		return nil, model.NewFranchiseNotFoundError(franchiseID)
	}
	return franchise, nil
}

// uniqueEmails は空白を除去し、重複と空文字列を取り除いたメールアドレス一覧を返す。
func uniqueEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
