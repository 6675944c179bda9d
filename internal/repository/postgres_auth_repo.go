package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/jwtpizza/internal/model"
)

// PostgresAuthTokenRepo はPostgreSQLを使用したトークン署名リポジトリ。
// authテーブルに行が存在するトークンのみが有効とみなされる。
type PostgresAuthTokenRepo struct {
	db *sqlx.DB
}

// NewPostgresAuthTokenRepo はPostgresAuthTokenRepoを生成する。
func NewPostgresAuthTokenRepo(db *sqlx.DB) *PostgresAuthTokenRepo {
	return &PostgresAuthTokenRepo{db: db}
}

// Create はトークン署名を登録する。
func (r *PostgresAuthTokenRepo) Create(ctx context.Context, token *model.AuthToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth (token, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		token.Signature, token.UserID, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auth token: %w", err)
	}
	return nil
}

// Exists は有効期限内のトークン署名が存在するかどうかを返す。
func (r *PostgresAuthTokenRepo) Exists(ctx context.Context, signature string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM auth WHERE token = $1 AND expires_at > now())`,
		signature,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check auth token: %w", err)
	}
	return exists, nil
}

// DeleteBySignature はトークン署名を削除する。
// 既に削除済みの場合はdeleted=falseを返し、エラーにはしない。
func (r *PostgresAuthTokenRepo) DeleteBySignature(ctx context.Context, signature string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM auth WHERE token = $1`,
		signature,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete auth token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteExpired は指定時刻より前に失効したトークンを削除する。
func (r *PostgresAuthTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM auth WHERE expires_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired auth tokens: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ AuthTokenRepository = (*PostgresAuthTokenRepo)(nil)
