// Package authz はロールに基づく操作可否の判定を提供する。
//
// 判定は (呼び出し元, 操作, 対象) を受け取り Decision を返す純粋関数で、
// DBアクセスは行わない。対象に必要な情報（フランチャイズ管理者など）は呼び出し側が揃える。
package authz

import "github.com/hitoshi/jwtpizza/internal/model"

// Action は判定対象の操作を表す。
type Action string

const (
	ActionUpdateUser          Action = "user:update"
	ActionDeleteUser          Action = "user:delete"
	ActionListUsers           Action = "user:list"
	ActionListUserFranchises  Action = "franchise:list-by-user"
	ActionViewFranchiseDetail Action = "franchise:view-detail"
	ActionCreateFranchise     Action = "franchise:create"
	ActionDeleteFranchise     Action = "franchise:delete"
	ActionCreateStore         Action = "store:create"
	ActionDeleteStore         Action = "store:delete"
	ActionAddMenuItem         Action = "menu:add"
)

// Target は操作対象を表す。操作に関係しないフィールドはゼロ値のままでよい。
type Target struct {
	// UserID は対象ユーザー（本人確認が必要な操作）
	UserID int64
	// Franchise は対象フランチャイズ（店舗操作）
	Franchise *model.Franchise
}

// Decision は判定結果を表す。
type Decision struct {
	Allowed bool
	// Reason は拒否時にクライアントへ返すメッセージ
	Reason string
}

var allow = Decision{Allowed: true}

// denyMessages は操作ごとの拒否メッセージ。
var denyMessages = map[Action]string{
	ActionUpdateUser:          "unauthorized",
	ActionDeleteUser:          "unauthorized",
	ActionListUsers:           "unauthorized",
	ActionListUserFranchises:  "unauthorized",
	ActionViewFranchiseDetail: "unauthorized",
	ActionCreateFranchise:     "unable to create a franchise",
	ActionDeleteFranchise:     "unable to delete a franchise",
	ActionCreateStore:         "unable to create a store",
	ActionDeleteStore:         "unable to delete a store",
	ActionAddMenuItem:         "unable to add menu item",
}

func deny(action Action) Decision {
	msg, ok := denyMessages[action]
	if !ok {
		msg = "forbidden"
	}
	return Decision{Allowed: false, Reason: msg}
}

// Check は呼び出し元が対象に対して操作を行えるかを判定する。
// callerがnil（未認証）の場合は常に拒否する。未知の操作も拒否する。
func Check(caller *model.User, action Action, target Target) Decision {
	if caller == nil {
		return deny(action)
	}

	switch action {
	case ActionUpdateUser, ActionListUserFranchises:
		if caller.ID == target.UserID || caller.IsAdmin() {
			return allow
		}
	case ActionDeleteUser, ActionListUsers, ActionViewFranchiseDetail,
		ActionCreateFranchise, ActionDeleteFranchise, ActionAddMenuItem:
		if caller.IsAdmin() {
			return allow
		}
	case ActionCreateStore, ActionDeleteStore:
		if caller.IsAdmin() {
			return allow
		}
		if f := target.Franchise; f != nil && (caller.IsFranchiseeOf(f.ID) || f.HasAdmin(caller.ID)) {
			return allow
		}
	}

	return deny(action)
}
