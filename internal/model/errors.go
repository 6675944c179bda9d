package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Messageはクライアントが表示する英語メッセージ、Actionは対処方法。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, franchise, order, system
	Action   string // ユーザー向け対処方法

	// ReportURL は工場サービスが返した障害レポートURL（工場エラー時のみ）
	ReportURL string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeUnknownUser         = "UNKNOWN_USER"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeFranchiseNotFound   = "FRANCHISE_NOT_FOUND"
	ErrCodeStoreNotFound       = "STORE_NOT_FOUND"
	ErrCodeMenuItemNotFound    = "MENU_ITEM_NOT_FOUND"
	ErrCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	ErrCodeDuplicateFranchise  = "DUPLICATE_FRANCHISE"
	ErrCodeFactoryFailure      = "FACTORY_FAILURE"
	ErrCodeInvalidMenuImageURL = "INVALID_MENU_IMAGE_URL"
)

// NewInvalidRequestError はリクエスト形式の不備を表すエラーを生成する。
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  message,
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
// トークンが無い、不正、またはログアウト済みの場合に使用する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "unauthorized",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: "auth",
		Action:   "この操作を行う権限がありません。",
	}
}

// NewUnknownUserError はログイン時の認証失敗エラーを生成する。
// メールアドレスとパスワードのどちらが誤っているかは区別しない。
func NewUnknownUserError() *APIError {
	return &APIError{
		Code:     ErrCodeUnknownUser,
		Message:  "unknown user",
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "user not found",
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewUnknownFranchiseAdminError はフランチャイズ管理者として指定されたメールアドレスが未登録の場合のエラーを生成する。
func NewUnknownFranchiseAdminError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("unknown user for franchise admin %s provided", email),
		Category: "franchise",
		Action:   "登録済みユーザーのメールアドレスを指定してください。",
	}
}

// NewFranchiseNotFoundError はフランチャイズが見つからない場合のエラーを生成する。
func NewFranchiseNotFoundError(franchiseID int64) *APIError {
	return &APIError{
		Code:     ErrCodeFranchiseNotFound,
		Message:  fmt.Sprintf("franchise not found: %d", franchiseID),
		Category: "franchise",
		Action:   "フランチャイズIDを確認してください。",
	}
}

// NewStoreNotFoundError は店舗が見つからない場合のエラーを生成する。
func NewStoreNotFoundError(storeID int64) *APIError {
	return &APIError{
		Code:     ErrCodeStoreNotFound,
		Message:  fmt.Sprintf("store not found: %d", storeID),
		Category: "franchise",
		Action:   "フランチャイズIDと店舗IDの組み合わせを確認してください。",
	}
}

// NewMenuItemNotFoundError はメニュー項目が見つからない場合のエラーを生成する。
func NewMenuItemNotFoundError(menuID int64) *APIError {
	return &APIError{
		Code:     ErrCodeMenuItemNotFound,
		Message:  fmt.Sprintf("menu item not found: %d", menuID),
		Category: "order",
		Action:   "メニューを再読み込みしてから注文してください。",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "email already registered",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewDuplicateFranchiseError はフランチャイズ名重複エラーを生成する。
func NewDuplicateFranchiseError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateFranchise,
		Message:  fmt.Sprintf("franchise already exists: %s", name),
		Category: "franchise",
		Action:   "別のフランチャイズ名を指定してください。",
	}
}

// NewInvalidMenuImageURLError はメニュー画像URLが安全でない場合のエラーを生成する。
func NewInvalidMenuImageURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMenuImageURL,
		Message:  fmt.Sprintf("invalid image url: %s", reason),
		Category: "validation",
		Action:   "公開されているhttp(s)のURLか、ファイル名を指定してください。",
	}
}

// NewFactoryFailureError は工場サービスでの注文処理失敗エラーを生成する。
// 注文自体は保存済みのまま返される。工場が返したメッセージがあれば末尾に付加する。
func NewFactoryFailureError(factoryMessage, reportURL string) *APIError {
	message := "Failed to fulfill order at factory"
	if factoryMessage != "" {
		message = fmt.Sprintf("%s: %s", message, factoryMessage)
	}
	return &APIError{
		Code:      ErrCodeFactoryFailure,
		Message:   message,
		Category:  "order",
		Action:    "注文は記録されています。レポートを確認してください。",
		ReportURL: reportURL,
	}
}

// NewFactoryUnreachableError は工場サービスへの接続自体が失敗した場合のエラーを生成する。
func NewFactoryUnreachableError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeFactoryFailure,
		Message:  fmt.Sprintf("Failed to fulfill order at factory: %s", detail),
		Category: "order",
		Action:   "注文は記録されています。時間をおいて状況を確認してください。",
	}
}
