// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/jwtpizza/internal/auth"
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

// TokenIssuer はユーザー情報更新後のトークン再発行インターフェース。
type TokenIssuer interface {
	IssueToken(ctx context.Context, user *model.User) (string, error)
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo  repository.UserRepository
	issuer    TokenIssuer
	sanitizer security.TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	issuer TokenIssuer,
	sanitizer security.TextSanitizer,
) *Service {
	return &Service{
		userRepo:  userRepo,
		issuer:    issuer,
		sanitizer: sanitizer,
	}
}

// Me は認証済みユーザーの最新情報を返す。
func (s *Service) Me(ctx context.Context, caller *model.User) (*model.User, error) {
	if caller == nil {
		return nil, model.NewUnauthorizedError()
	}
	user, err := s.userRepo.FindByID(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Update はユーザー情報を部分更新し、更新後のユーザーと新しいトークンを返す。
// 本人またはadminのみ実行できる。呼び出し元の既存トークンは無効化しない。
func (s *Service) Update(ctx context.Context, caller *model.User, userID int64, upd model.UserUpdate) (*model.User, string, error) {
	if d := authz.Check(caller, authz.ActionUpdateUser, authz.Target{UserID: userID}); !d.Allowed {
		return nil, "", model.NewForbiddenError(d.Reason)
	}

	upd.Name = s.sanitizer.Clean(upd.Name)
	upd.Email = strings.TrimSpace(upd.Email)
	if upd.IsEmpty() {
		return nil, "", model.NewInvalidRequestError("name, email, or password is required")
	}
	if len(upd.Password) > auth.MaxPasswordBytes {
		return nil, "", model.NewInvalidRequestError("password is too long")
	}
	if err := model.CheckLength("name", upd.Name, model.MaxTextLength); err != nil {
		return nil, "", err
	}
	if err := model.CheckLength("email", upd.Email, model.MaxTextLength); err != nil {
		return nil, "", err
	}

	var hash string
	if upd.Password != "" {
		h, err := auth.HashPassword(upd.Password)
		if err != nil {
			return nil, "", err
		}
		hash = h
	}

	if err := s.userRepo.Update(ctx, userID, upd.Name, upd.Email, hash); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, "", model.NewUserNotFoundError()
		case errors.Is(err, repository.ErrDuplicate):
			return nil, "", model.NewDuplicateEmailError()
		}
		return nil, "", fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, "", model.NewUserNotFoundError()
	}

	token, err := s.issuer.IssueToken(ctx, user)
	if err != nil {
		return nil, "", err
	}

	slog.Info("ユーザー情報を更新しました",
		slog.Int64("user_id", userID),
		slog.Int64("updated_by", caller.ID),
	)
	return user, token, nil
}

// Delete はユーザーを削除する。adminのみ実行できる。
// 発行済みトークン、ロール、注文はON DELETE CASCADEで同時に削除される。
func (s *Service) Delete(ctx context.Context, caller *model.User, userID int64) error {
	if d := authz.Check(caller, authz.ActionDeleteUser, authz.Target{UserID: userID}); !d.Allowed {
		return model.NewForbiddenError(d.Reason)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("ユーザーを削除しました",
		slog.Int64("user_id", userID),
		slog.Int64("deleted_by", caller.ID),
	)
	return nil
}

// List はユーザー一覧を返す。adminのみ実行できる。ページ番号は1始まり。
func (s *Service) List(ctx context.Context, caller *model.User, page model.Page) ([]*model.User, bool, error) {
	if d := authz.Check(caller, authz.ActionListUsers, authz.Target{}); !d.Allowed {
		return nil, false, model.NewForbiddenError(d.Reason)
	}

	if page.Number < 1 {
		page.Number = 1
	}
	page.Limit = clampLimit(page.Limit)

	users, more, err := s.userRepo.List(ctx, page)
	if err != nil {
		return nil, false, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, more, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}
