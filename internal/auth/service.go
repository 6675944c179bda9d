// Package auth はパスワード認証、JWTの発行、トークン署名テーブルによるセッション管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/jwtpizza/internal/model"
	"github.com/hitoshi/jwtpizza/internal/repository"
	"github.com/hitoshi/jwtpizza/internal/security"
)

// MaxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
const MaxPasswordBytes = 72

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	tokenRepo repository.AuthTokenRepository
	issuer    *TokenIssuer
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	tokenRepo repository.AuthTokenRepository,
	issuer *TokenIssuer,
	sanitizer security.TextSanitizer,
) *Service {
	return &Service{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		issuer:    issuer,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Register はdinerロールのユーザーを作成し、ログイン状態のトークンを発行する。
func (s *Service) Register(ctx context.Context, name, email, password string) (*model.User, string, error) {
	name = s.sanitizer.Clean(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, "", model.NewInvalidRequestError("name, email, and password are required")
	}
	if err := model.CheckLength("name", name, model.MaxTextLength); err != nil {
		return nil, "", err
	}
	if err := model.CheckLength("email", email, model.MaxTextLength); err != nil {
		return nil, "", err
	}
	if len(password) > MaxPasswordBytes {
		return nil, "", model.NewInvalidRequestError("password is too long")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Roles:        []model.RoleAssignment{{Role: model.RoleDiner}},
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", model.NewDuplicateEmailError()
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.IssueToken(ctx, user)
	if err != nil {
		return nil, "", err
	}

	slog.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return user, token, nil
}

// Login はメールアドレスとパスワードを検証し、新しいトークンを発行する。
// 既存のトークンは無効化しないため、複数端末で独立にログアウトできる。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	if email == "" || password == "" {
		return nil, "", model.NewInvalidRequestError("email and password are required")
	}

	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !CheckPassword(user.PasswordHash, password) {
		return nil, "", model.NewUnknownUserError()
	}

	token, err := s.IssueToken(ctx, user)
	if err != nil {
		return nil, "", err
	}

	slog.Info("user logged in", slog.Int64("user_id", user.ID))
	return user, token, nil
}

// Logout はトークン署名を削除し、以降そのトークンを無効にする。
// 既に削除済みの署名に対してもエラーにしない。
func (s *Service) Logout(ctx context.Context, token string) error {
	signature := TokenSignature(token)
	if signature == "" {
		return model.NewUnauthorizedError()
	}

	deleted, err := s.tokenRepo.DeleteBySignature(ctx, signature)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	slog.Info("user logged out", slog.Bool("revoked", deleted))
	return nil
}

// Authenticate はベアラートークンを検証し、トークンに埋め込まれたユーザーを返す。
// 署名テーブルに行が存在しないトークンは、署名が正しくても拒否する。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	signature := TokenSignature(token)
	if signature == "" {
		return nil, model.NewUnauthorizedError()
	}

	ok, err := s.tokenRepo.Exists(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to check token: %w", err)
	}
	if !ok {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.issuer.Parse(token)
	if err != nil {
		slog.Warn("rejected token with valid signature row",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUnauthorizedError()
	}
	return user, nil
}

// IssueToken はユーザーのトークンを発行し、署名をテーブルに登録する。
func (s *Service) IssueToken(ctx context.Context, user *model.User) (string, error) {
	token, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		return "", err
	}

	record := &model.AuthToken{
		Signature: TokenSignature(token),
		UserID:    user.ID,
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	}
	if err := s.tokenRepo.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}
	return token, nil
}
