package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/jwtpizza/internal/middleware"
	"github.com/hitoshi/jwtpizza/internal/model"
)

// maxBodyBytes はJSONリクエストボディの上限サイズ。
const maxBodyBytes = 1 << 20

// roleResponse はロール割り当てのAPIレスポンス。
type roleResponse struct {
	Role     string `json:"role"`
	ObjectID int64  `json:"objectId,omitempty"`
}

// userResponse はユーザー情報のAPIレスポンス。パスワードは含めない。
type userResponse struct {
	ID    int64          `json:"id"`
	Name  string         `json:"name"`
	Email string         `json:"email"`
	Roles []roleResponse `json:"roles"`
}

// authResponse はトークンを伴うユーザー情報のレスポンス。
type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

// messageResponse は処理結果メッセージのみのレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

type franchiseAdminResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// storeResponse は店舗情報のAPIレスポンス。
// totalRevenueは管理者向け表示でのみ含める。
type storeResponse struct {
	ID           int64    `json:"id"`
	FranchiseID  int64    `json:"franchiseId,omitempty"`
	Name         string   `json:"name"`
	TotalRevenue *float64 `json:"totalRevenue,omitempty"`
}

type franchiseResponse struct {
	ID     int64                    `json:"id"`
	Name   string                   `json:"name"`
	Admins []franchiseAdminResponse `json:"admins,omitempty"`
	Stores []storeResponse          `json:"stores"`
}

type menuItemResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Price       float64 `json:"price"`
}

type orderItemResponse struct {
	ID          int64   `json:"id,omitempty"`
	MenuID      int64   `json:"menuId"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

type orderResponse struct {
	ID          int64               `json:"id"`
	FranchiseID int64               `json:"franchiseId"`
	StoreID     int64               `json:"storeId"`
	Date        string              `json:"date"`
	Items       []orderItemResponse `json:"items"`
}

// --- 変換 ---

func toUserResponse(u *model.User) userResponse {
	roles := make([]roleResponse, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, roleResponse{Role: string(r.Role), ObjectID: r.ObjectID})
	}
	return userResponse{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Roles: roles,
	}
}

// toFranchiseResponse はフランチャイズをレスポンスに変換する。
// withDetailがfalseの場合は管理者一覧と売上を省く。
func toFranchiseResponse(f *model.Franchise, withDetail bool) franchiseResponse {
	resp := franchiseResponse{
		ID:     f.ID,
		Name:   f.Name,
		Stores: make([]storeResponse, 0, len(f.Stores)),
	}
	if withDetail {
		resp.Admins = make([]franchiseAdminResponse, 0, len(f.Admins))
		for _, a := range f.Admins {
			resp.Admins = append(resp.Admins, franchiseAdminResponse{ID: a.ID, Name: a.Name, Email: a.Email})
		}
	}
	for _, s := range f.Stores {
		sr := storeResponse{ID: s.ID, Name: s.Name}
		if withDetail {
			revenue := s.TotalRevenue
			sr.TotalRevenue = &revenue
		}
		resp.Stores = append(resp.Stores, sr)
	}
	return resp
}

func toMenuResponse(items []*model.MenuItem) []menuItemResponse {
	resp := make([]menuItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, menuItemResponse{
			ID:          it.ID,
			Title:       it.Title,
			Description: it.Description,
			Image:       it.Image,
			Price:       it.Price,
		})
	}
	return resp
}

func toOrderResponse(o *model.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ID:          it.ID,
			MenuID:      it.MenuID,
			Description: it.Description,
			Price:       it.Price,
		})
	}
	return orderResponse{
		ID:          o.ID,
		FranchiseID: o.FranchiseID,
		StoreID:     o.StoreID,
		Date:        o.Date.UTC().Format("2006-01-02T15:04:05.000Z"),
		Items:       items,
	}
}

// --- ヘルパー関数 ---

// writeJSON はステータス200でJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをvにデコードする。
// 失敗した場合は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("invalid JSON body"))
		return false
	}
	return true
}

// pathID はURLパラメータを正の整数IDとして取り出す。
// 不正な場合は400を書き込みfalseを返す。
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("invalid "+name))
		return 0, false
	}
	return id, true
}

// queryInt はクエリパラメータを整数として取り出す。未指定や不正値はdefaultValを返す。
func queryInt(r *http.Request, name string, defaultVal int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidMenuImageURL:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeUnknownUser, model.ErrCodeUserNotFound, model.ErrCodeFranchiseNotFound,
		model.ErrCodeStoreNotFound, model.ErrCodeMenuItemNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateEmail, model.ErrCodeDuplicateFranchise:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
