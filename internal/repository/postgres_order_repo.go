package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/jwtpizza/internal/model"
)

// PostgresOrderRepo はPostgreSQLを使用した注文リポジトリ。
type PostgresOrderRepo struct {
	db *sqlx.DB
}

// NewPostgresOrderRepo はPostgresOrderRepoを生成する。
func NewPostgresOrderRepo(db *sqlx.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

type orderRow struct {
	ID          int64     `db:"id"`
	DinerID     int64     `db:"diner_id"`
	FranchiseID int64     `db:"franchise_id"`
	StoreID     int64     `db:"store_id"`
	Date        time.Time `db:"date"`
}

type orderItemRow struct {
	ID          int64   `db:"id"`
	OrderID     int64   `db:"order_id"`
	MenuID      int64   `db:"menu_id"`
	Description string  `db:"description"`
	Price       float64 `db:"price"`
}

// Create は注文と明細を同一トランザクションで作成する。
func (r *PostgresOrderRepo) Create(ctx context.Context, order *model.Order) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO diner_order (diner_id, franchise_id, store_id, date)
		 VALUES ($1, $2, $3, now())
		 RETURNING id, date`,
		order.DinerID, order.FranchiseID, order.StoreID,
	).Scan(&order.ID, &order.Date)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.QueryRowxContext(ctx,
			`INSERT INTO order_item (order_id, menu_id, description, price)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			item.OrderID, item.MenuID, item.Description, item.Price,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListByDiner は指定ダイナーの注文を明細付きで新しい順に取得する。
// ページ番号は1始まり。
func (r *PostgresOrderRepo) ListByDiner(ctx context.Context, dinerID int64, page, limit int) ([]*model.Order, error) {
	var rows []orderRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, diner_id, franchise_id, store_id, date
		 FROM diner_order
		 WHERE diner_id = $1
		 ORDER BY date DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		dinerID, limit, offset(page, limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]*model.Order, 0, len(rows))
	if len(rows) == 0 {
		return orders, nil
	}

	ids := make([]int64, 0, len(rows))
	byID := make(map[int64]*model.Order, len(rows))
	for _, row := range rows {
		o := &model.Order{
			ID:          row.ID,
			DinerID:     row.DinerID,
			FranchiseID: row.FranchiseID,
			StoreID:     row.StoreID,
			Date:        row.Date,
			Items:       []model.OrderItem{},
		}
		orders = append(orders, o)
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	query, args, err := sqlx.In(
		`SELECT id, order_id, menu_id, description, price::float8 AS price
		 FROM order_item WHERE order_id IN (?) ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build order item query: %w", err)
	}

	var items []orderItemRow
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	for _, it := range items {
		o := byID[it.OrderID]
		o.Items = append(o.Items, model.OrderItem{
			ID:          it.ID,
			OrderID:     it.OrderID,
			MenuID:      it.MenuID,
			Description: it.Description,
			Price:       it.Price,
		})
	}

	return orders, nil
}

// compile-time interface check
var _ OrderRepository = (*PostgresOrderRepo)(nil)
