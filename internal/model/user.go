// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーに付与されるロール種別を表す。
type Role string

const (
	// RoleDiner は注文を行う一般ユーザー。登録時に必ず付与される。
	RoleDiner Role = "diner"
	// RoleFranchisee はフランチャイズの管理者。ObjectIDにフランチャイズIDを持つ。
	RoleFranchisee Role = "franchisee"
	// RoleAdmin はシステム管理者。
	RoleAdmin Role = "admin"
)

// IsValid は既知のロール種別かどうかを返す。
func (r Role) IsValid() bool {
	switch r {
	case RoleDiner, RoleFranchisee, RoleAdmin:
		return true
	default:
		return false
	}
}

// RoleAssignment はユーザーへのロール割り当てを表す。
// ObjectIDはfranchiseeの場合に対象フランチャイズIDを指し、それ以外は0。
type RoleAssignment struct {
	Role     Role
	ObjectID int64
}

// User はサービス利用ユーザーを表す。
// PasswordHashはAPIレスポンスに含めてはならない。
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Roles        []RoleAssignment
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole はユーザーが指定ロールを持つかどうかを返す。
func (u *User) HasRole(role Role) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r.Role == role {
			return true
		}
	}
	return false
}

// IsAdmin はユーザーがadminロールを持つかどうかを返す。
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// IsFranchiseeOf はユーザーが指定フランチャイズのfranchiseeロールを持つかどうかを返す。
func (u *User) IsFranchiseeOf(franchiseID int64) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r.Role == RoleFranchisee && r.ObjectID == franchiseID {
			return true
		}
	}
	return false
}

// AuthToken は発行済みトークンの署名部分を表す。
// 行が存在する間だけトークンは有効とみなされる。
type AuthToken struct {
	Signature string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// UserUpdate はユーザー情報の部分更新内容を表す。
// 空文字列のフィールドは更新しない。
type UserUpdate struct {
	Name     string
	Email    string
	Password string
}

// IsEmpty は更新対象のフィールドが1つもないかどうかを返す。
func (u UserUpdate) IsEmpty() bool {
	return u.Name == "" && u.Email == "" && u.Password == ""
}

// Page はページング済み一覧取得の条件を表す。
type Page struct {
	Number     int
	Limit      int
	NameFilter string
}
