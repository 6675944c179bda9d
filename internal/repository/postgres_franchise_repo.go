package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/jwtpizza/internal/model"
)

// PostgresFranchiseRepo はPostgreSQLを使用したフランチャイズ・店舗リポジトリ。
type PostgresFranchiseRepo struct {
	db *sqlx.DB
}

// NewPostgresFranchiseRepo はPostgresFranchiseRepoを生成する。
func NewPostgresFranchiseRepo(db *sqlx.DB) *PostgresFranchiseRepo {
	return &PostgresFranchiseRepo{db: db}
}

type franchiseRow struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

type storeRow struct {
	ID           int64   `db:"id"`
	FranchiseID  int64   `db:"franchise_id"`
	Name         string  `db:"name"`
	TotalRevenue float64 `db:"total_revenue"`
}

type franchiseAdminRow struct {
	FranchiseID int64  `db:"franchise_id"`
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Email       string `db:"email"`
}

// List はフランチャイズ一覧を取得する。ページ番号は0始まり。
func (r *PostgresFranchiseRepo) List(ctx context.Context, page model.Page, withDetail bool) ([]*model.Franchise, bool, error) {
	number := page.Number
	if number < 0 {
		number = 0
	}

	var rows []franchiseRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, name FROM franchise
		 WHERE name LIKE $1
		 ORDER BY id
		 LIMIT $2 OFFSET $3`,
		namePattern(page.NameFilter), page.Limit+1, number*page.Limit,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list franchises: %w", err)
	}

	more := len(rows) > page.Limit
	if more {
		rows = rows[:page.Limit]
	}

	franchises, err := r.attach(ctx, rows, withDetail)
	if err != nil {
		return nil, false, err
	}
	return franchises, more, nil
}

// FindByID は指定IDのフランチャイズを詳細付きで取得する。見つからない場合はnilを返す。
func (r *PostgresFranchiseRepo) FindByID(ctx context.Context, id int64) (*model.Franchise, error) {
	var row franchiseRow
	err := r.db.GetContext(ctx, &row, `SELECT id, name FROM franchise WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find franchise: %w", err)
	}

	franchises, err := r.attach(ctx, []franchiseRow{row}, true)
	if err != nil {
		return nil, err
	}
	return franchises[0], nil
}

// ListByAdmin は指定ユーザーが管理するフランチャイズを詳細付きで取得する。
func (r *PostgresFranchiseRepo) ListByAdmin(ctx context.Context, userID int64) ([]*model.Franchise, error) {
	var rows []franchiseRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT DISTINCT f.id, f.name
		 FROM franchise f
		 JOIN user_role ur ON ur.object_id = f.id AND ur.role = 'franchisee'
		 WHERE ur.user_id = $1
		 ORDER BY f.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list franchises by admin: %w", err)
	}

	return r.attach(ctx, rows, true)
}

// Create はフランチャイズと管理者ロールを同一トランザクションで作成する。
func (r *PostgresFranchiseRepo) Create(ctx context.Context, franchise *model.Franchise) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO franchise (name) VALUES ($1) RETURNING id`,
		franchise.Name,
	).Scan(&franchise.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert franchise: %w", err)
	}

	for _, admin := range franchise.Admins {
		role := model.RoleAssignment{Role: model.RoleFranchisee, ObjectID: franchise.ID}
		if err := insertRole(ctx, tx, admin.ID, role); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete はフランチャイズを削除する。
// 削除順序: franchiseeロール → 店舗 → フランチャイズ
func (r *PostgresFranchiseRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_role WHERE role = 'franchisee' AND object_id = $1`, id,
	); err != nil {
		return fmt.Errorf("failed to delete franchise roles: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM store WHERE franchise_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete franchise stores: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM franchise WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete franchise: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("franchise %d: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindStore は指定フランチャイズ配下の店舗を取得する。見つからない場合はnilを返す。
func (r *PostgresFranchiseRepo) FindStore(ctx context.Context, franchiseID, storeID int64) (*model.Store, error) {
	var row storeRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, franchise_id, name, 0::float8 AS total_revenue
		 FROM store WHERE franchise_id = $1 AND id = $2`,
		franchiseID, storeID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find store: %w", err)
	}
	return &model.Store{ID: row.ID, FranchiseID: row.FranchiseID, Name: row.Name}, nil
}

// CreateStore は店舗を作成する。
func (r *PostgresFranchiseRepo) CreateStore(ctx context.Context, store *model.Store) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO store (franchise_id, name) VALUES ($1, $2) RETURNING id`,
		store.FranchiseID, store.Name,
	).Scan(&store.ID)
	if err != nil {
		return fmt.Errorf("failed to insert store: %w", err)
	}
	return nil
}

// DeleteStore は指定フランチャイズ配下の店舗を削除する。
func (r *PostgresFranchiseRepo) DeleteStore(ctx context.Context, franchiseID, storeID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM store WHERE franchise_id = $1 AND id = $2`,
		franchiseID, storeID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete store: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("store %d: %w", storeID, ErrNotFound)
	}
	return nil
}

// attach はフランチャイズ行に店舗と（withDetailの場合）管理者・売上を付与する。
func (r *PostgresFranchiseRepo) attach(ctx context.Context, rows []franchiseRow, withDetail bool) ([]*model.Franchise, error) {
	franchises := make([]*model.Franchise, 0, len(rows))
	if len(rows) == 0 {
		return franchises, nil
	}

	ids := make([]int64, 0, len(rows))
	byID := make(map[int64]*model.Franchise, len(rows))
	for _, row := range rows {
		f := &model.Franchise{ID: row.ID, Name: row.Name, Stores: []model.Store{}}
		if withDetail {
			f.Admins = []model.FranchiseAdmin{}
		}
		franchises = append(franchises, f)
		byID[row.ID] = f
		ids = append(ids, row.ID)
	}

	stores, err := r.loadStores(ctx, ids, withDetail)
	if err != nil {
		return nil, err
	}
	for _, s := range stores {
		f := byID[s.FranchiseID]
		f.Stores = append(f.Stores, model.Store{
			ID:           s.ID,
			FranchiseID:  s.FranchiseID,
			Name:         s.Name,
			TotalRevenue: s.TotalRevenue,
		})
	}

	if !withDetail {
		return franchises, nil
	}

	admins, err := r.loadAdmins(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, a := range admins {
		f := byID[a.FranchiseID]
		f.Admins = append(f.Admins, model.FranchiseAdmin{ID: a.ID, Name: a.Name, Email: a.Email})
	}

	return franchises, nil
}

func (r *PostgresFranchiseRepo) loadStores(ctx context.Context, franchiseIDs []int64, withRevenue bool) ([]storeRow, error) {
	base := `SELECT id, franchise_id, name, 0::float8 AS total_revenue
		 FROM store WHERE franchise_id IN (?) ORDER BY id`
	if withRevenue {
		base = `SELECT s.id, s.franchise_id, s.name, COALESCE(SUM(oi.price), 0)::float8 AS total_revenue
		 FROM store s
		 LEFT JOIN diner_order o ON o.store_id = s.id AND o.franchise_id = s.franchise_id
		 LEFT JOIN order_item oi ON oi.order_id = o.id
		 WHERE s.franchise_id IN (?)
		 GROUP BY s.id, s.franchise_id, s.name
		 ORDER BY s.id`
	}

	query, args, err := sqlx.In(base, franchiseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build store query: %w", err)
	}

	var rows []storeRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load stores: %w", err)
	}
	return rows, nil
}

func (r *PostgresFranchiseRepo) loadAdmins(ctx context.Context, franchiseIDs []int64) ([]franchiseAdminRow, error) {
	query, args, err := sqlx.In(
		`SELECT ur.object_id AS franchise_id, u.id, u.name, u.email
		 FROM user_role ur
		 JOIN users u ON u.id = ur.user_id
		 WHERE ur.role = 'franchisee' AND ur.object_id IN (?)
		 ORDER BY u.id`,
		franchiseIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build admin query: %w", err)
	}

	var rows []franchiseAdminRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load franchise admins: %w", err)
	}
	return rows, nil
}

// compile-time interface check
var _ FranchiseRepository = (*PostgresFranchiseRepo)(nil)
