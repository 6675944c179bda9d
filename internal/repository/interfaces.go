// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/jwtpizza/internal/model"
)

var (
	// ErrNotFound は更新・削除対象の行が存在しない場合に返される。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate は一意制約違反の場合に返される。
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepository はユーザーとロール割り当ての永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーをロール付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーをロールとパスワードハッシュ付きで取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByEmails は複数のメールアドレスに一致するユーザーを取得する。
	FindByEmails(ctx context.Context, emails []string) ([]*model.User, error)

	// Create はユーザーとロールを同一トランザクションで作成し、採番したIDをuser.IDに設定する。
	// メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// Update は空でないフィールドのみ更新する。passwordHashが空の場合はパスワードを変更しない。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, id int64, name, email, passwordHash string) error

	// List はユーザー一覧を取得する。続きがある場合はmore=trueを返す。
	List(ctx context.Context, page model.Page) (users []*model.User, more bool, err error)

	// DeleteByID は指定IDのユーザーを削除する。
	// ロールと認証トークンはCASCADE削除される。対象が存在しない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id int64) error
}

// AuthTokenRepository は発行済みトークン署名の永続化インターフェース。
type AuthTokenRepository interface {
	// Create はトークン署名を登録する。
	Create(ctx context.Context, token *model.AuthToken) error
	// Exists は有効期限内のトークン署名が存在するかどうかを返す。
	Exists(ctx context.Context, signature string) (bool, error)
	// DeleteBySignature はトークン署名を削除する。存在しない場合もエラーにしない。
	DeleteBySignature(ctx context.Context, signature string) (deleted bool, err error)
	// DeleteExpired は指定時刻より前に失効したトークンを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// FranchiseRepository はフランチャイズと店舗の永続化インターフェース。
type FranchiseRepository interface {
	// List はフランチャイズ一覧を店舗付きで取得する。
	// withDetailがtrueの場合は管理者と店舗売上も取得する。
	List(ctx context.Context, page model.Page, withDetail bool) (franchises []*model.Franchise, more bool, err error)

	// FindByID は指定IDのフランチャイズを管理者・店舗（売上付き）とともに取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Franchise, error)

	// ListByAdmin は指定ユーザーがfranchiseeとして管理するフランチャイズを詳細付きで取得する。
	ListByAdmin(ctx context.Context, userID int64) ([]*model.Franchise, error)

	// Create はフランチャイズと管理者ロールを同一トランザクションで作成し、IDを設定する。
	// 名前が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, franchise *model.Franchise) error

	// Delete はフランチャイズと関連する店舗・ロールを同一トランザクションで削除する。
	// 対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id int64) error

	// FindStore は指定フランチャイズ配下の店舗を取得する。見つからない場合はnilを返す。
	FindStore(ctx context.Context, franchiseID, storeID int64) (*model.Store, error)

	// CreateStore は店舗を作成し、IDを設定する。
	CreateStore(ctx context.Context, store *model.Store) error

	// DeleteStore は指定フランチャイズ配下の店舗を削除する。
	// 対象が存在しない場合はErrNotFoundを返す。
	DeleteStore(ctx context.Context, franchiseID, storeID int64) error
}

// MenuRepository はメニューの永続化インターフェース。
type MenuRepository interface {
	// List はメニュー全件をID順に取得する。
	List(ctx context.Context) ([]*model.MenuItem, error)
	// FindByIDs は指定IDのメニュー項目を取得する。存在しないIDは結果に含まれない。
	FindByIDs(ctx context.Context, ids []int64) ([]*model.MenuItem, error)
	// FindByTitle はタイトルでメニュー項目を取得する。見つからない場合はnilを返す。
	FindByTitle(ctx context.Context, title string) (*model.MenuItem, error)
	// Create はメニュー項目を追加し、IDを設定する。
	Create(ctx context.Context, item *model.MenuItem) error
}

// OrderRepository は注文の永続化インターフェース。
type OrderRepository interface {
	// Create は注文と明細を同一トランザクションで作成し、注文IDと日時を設定する。
	Create(ctx context.Context, order *model.Order) error
	// ListByDiner は指定ダイナーの注文を明細付きで新しい順に取得する。
	ListByDiner(ctx context.Context, dinerID int64, page, limit int) ([]*model.Order, error)
}
