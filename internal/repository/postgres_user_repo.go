package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/jwtpizza/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sqlx.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sqlx.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

type userRow struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Password  string    `db:"password"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row userRow) toModel() *model.User {
	return &model.User{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		PasswordHash: row.Password,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

type roleRow struct {
	UserID   int64         `db:"user_id"`
	Role     string        `db:"role"`
	ObjectID sql.NullInt64 `db:"object_id"`
}

// FindByID は指定IDのユーザーをロール付きで取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, name, email, password, created_at, updated_at FROM users WHERE id = $1`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return r.withRoles(ctx, row.toModel())
}

// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, name, email, password, created_at, updated_at FROM users WHERE email = $1`,
		email,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return r.withRoles(ctx, row.toModel())
}

// FindByEmails は複数のメールアドレスに一致するユーザーを取得する。
func (r *PostgresUserRepo) FindByEmails(ctx context.Context, emails []string) ([]*model.User, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		`SELECT id, name, email, password, created_at, updated_at FROM users WHERE email IN (?) ORDER BY id`,
		emails,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to find users by email: %w", err)
	}

	return r.toUsersWithRoles(ctx, rows)
}

// Create はユーザーとロールを同一トランザクションで作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO users (name, email, password)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		user.Name, user.Email, user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	for _, role := range user.Roles {
		if err := insertRole(ctx, tx, user.ID, role); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Update は空でないフィールドのみ更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, id int64, name, email, passwordHash string) error {
	var sets []string
	var args []any
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if name != "" {
		set("name", name)
	}
	if email != "" {
		set("email", email)
	}
	if passwordHash != "" {
		set("password", passwordHash)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	result, err := r.db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

// List はユーザー一覧をID順に取得する。
// limit+1件を取得して続きの有無を判定する。
func (r *PostgresUserRepo) List(ctx context.Context, page model.Page) ([]*model.User, bool, error) {
	var rows []userRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, name, email, password, created_at, updated_at
		 FROM users
		 WHERE name LIKE $1
		 ORDER BY id
		 LIMIT $2 OFFSET $3`,
		namePattern(page.NameFilter), page.Limit+1, offset(page.Number, page.Limit),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list users: %w", err)
	}

	more := len(rows) > page.Limit
	if more {
		rows = rows[:page.Limit]
	}

	users, err := r.toUsersWithRoles(ctx, rows)
	if err != nil {
		return nil, false, err
	}
	return users, more, nil
}

// DeleteByID は指定IDのユーザーを削除する。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *PostgresUserRepo) withRoles(ctx context.Context, user *model.User) (*model.User, error) {
	roles, err := loadRoles(ctx, r.db, []int64{user.ID})
	if err != nil {
		return nil, err
	}
	user.Roles = roles[user.ID]
	return user, nil
}

func (r *PostgresUserRepo) toUsersWithRoles(ctx context.Context, rows []userRow) ([]*model.User, error) {
	if len(rows) == 0 {
		return []*model.User{}, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	roles, err := loadRoles(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}

	users := make([]*model.User, 0, len(rows))
	for _, row := range rows {
		u := row.toModel()
		u.Roles = roles[u.ID]
		users = append(users, u)
	}
	return users, nil
}

// loadRoles は複数ユーザーのロールを1クエリでまとめて取得する。
func loadRoles(ctx context.Context, db *sqlx.DB, userIDs []int64) (map[int64][]model.RoleAssignment, error) {
	query, args, err := sqlx.In(
		`SELECT user_id, role, object_id FROM user_role WHERE user_id IN (?) ORDER BY id`,
		userIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build role query: %w", err)
	}

	var rows []roleRow
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}

	roles := make(map[int64][]model.RoleAssignment, len(userIDs))
	for _, row := range rows {
		roles[row.UserID] = append(roles[row.UserID], model.RoleAssignment{
			Role:     model.Role(row.Role),
			ObjectID: row.ObjectID.Int64,
		})
	}
	return roles, nil
}

// insertRole はトランザクション内でロール割り当てを1件追加する。
func insertRole(ctx context.Context, tx *sqlx.Tx, userID int64, role model.RoleAssignment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO user_role (user_id, role, object_id) VALUES ($1, $2, $3)`,
		userID, string(role.Role), nullObjectID(role.ObjectID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert role: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
