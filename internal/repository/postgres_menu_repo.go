package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/jwtpizza/internal/model"
)

// PostgresMenuRepo はPostgreSQLを使用したメニューリポジトリ。
type PostgresMenuRepo struct {
	db *sqlx.DB
}

// NewPostgresMenuRepo はPostgresMenuRepoを生成する。
func NewPostgresMenuRepo(db *sqlx.DB) *PostgresMenuRepo {
	return &PostgresMenuRepo{db: db}
}

type menuRow struct {
	ID          int64   `db:"id"`
	Title       string  `db:"title"`
	Description string  `db:"description"`
	Image       string  `db:"image"`
	Price       float64 `db:"price"`
}

func (row menuRow) toModel() *model.MenuItem {
	return &model.MenuItem{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Image:       row.Image,
		Price:       row.Price,
	}
}

// List はメニュー全件をID順に取得する。
func (r *PostgresMenuRepo) List(ctx context.Context) ([]*model.MenuItem, error) {
	var rows []menuRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT id, title, description, image, price::float8 AS price FROM menu ORDER BY id`,
	); err != nil {
		return nil, fmt.Errorf("failed to list menu: %w", err)
	}

	items := make([]*model.MenuItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toModel())
	}
	return items, nil
}

// FindByIDs は指定IDのメニュー項目を取得する。
func (r *PostgresMenuRepo) FindByIDs(ctx context.Context, ids []int64) ([]*model.MenuItem, error) {
	if len(ids) == 0 {
		return []*model.MenuItem{}, nil
	}

	query, args, err := sqlx.In(
		`SELECT id, title, description, image, price::float8 AS price FROM menu WHERE id IN (?) ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build menu query: %w", err)
	}

	var rows []menuRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to find menu items: %w", err)
	}

	items := make([]*model.MenuItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toModel())
	}
	return items, nil
}

// FindByTitle はタイトルでメニュー項目を取得する。見つからない場合はnilを返す。
func (r *PostgresMenuRepo) FindByTitle(ctx context.Context, title string) (*model.MenuItem, error) {
	var row menuRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, title, description, image, price::float8 AS price FROM menu WHERE title = $1 ORDER BY id LIMIT 1`,
		title,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find menu item by title: %w", err)
	}
	return row.toModel(), nil
}

// Create はメニュー項目を追加する。
func (r *PostgresMenuRepo) Create(ctx context.Context, item *model.MenuItem) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO menu (title, description, image, price)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		item.Title, item.Description, item.Image, item.Price,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to insert menu item: %w", err)
	}
	return nil
}

// compile-time interface check
var _ MenuRepository = (*PostgresMenuRepo)(nil)
