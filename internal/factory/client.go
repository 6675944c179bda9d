// Package factory はピザ工場サービスへの注文送信を提供する。
package factory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/jwtpizza/internal/model"
)

const (
	// DefaultURL は工場サービスのベースURL。
	DefaultURL = "https://pizza-factory.cs329.click"
	// orderPath は注文受付エンドポイントのパス。
	orderPath = "/api/order"
	// maxResponseBytes は読み取るレスポンスボディの上限。
	maxResponseBytes = 1 << 20
)

// Error は工場サービスが2xx以外を返したことを表す。
type Error struct {
	StatusCode int
	Message    string
	ReportURL  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("factory returned status %d: %s", e.StatusCode, e.Message)
}

// Client は工場サービスのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
}

// NewClient はClientを生成する。baseURLが空の場合はDefaultURLを使う。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// BaseURL は送信先のベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

type dinerPayload struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type itemPayload struct {
	MenuID      int64   `json:"menuId"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

type orderPayload struct {
	ID          int64         `json:"id"`
	FranchiseID int64         `json:"franchiseId"`
	StoreID     int64         `json:"storeId"`
	Items       []itemPayload `json:"items"`
}

type requestBody struct {
	Diner dinerPayload `json:"diner"`
	Order orderPayload `json:"order"`
}

type responseBody struct {
	JWT       string `json:"jwt"`
	ReportURL string `json:"reportUrl"`
	Message   string `json:"message"`
}

// SubmitOrder は保存済みの注文を工場サービスへ送信し、受領結果を返す。
// 2xx以外の応答は *Error、通信失敗はラップしたエラーを返す。
func (c *Client) SubmitOrder(ctx context.Context, diner *model.User, order *model.Order) (*model.FactoryReceipt, error) {
	payload := requestBody{
		Diner: dinerPayload{ID: diner.ID, Name: diner.Name, Email: diner.Email},
		Order: orderPayload{
			ID:          order.ID,
			FranchiseID: order.FranchiseID,
			StoreID:     order.StoreID,
			Items:       make([]itemPayload, 0, len(order.Items)),
		},
	}
	for _, it := range order.Items {
		payload.Order.Items = append(payload.Order.Items, itemPayload{
			MenuID:      it.MenuID,
			Description: it.Description,
			Price:       it.Price,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode factory request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+orderPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create factory request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("工場サービスの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.Int64("order_id", order.ID),
		)
		return nil, fmt.Errorf("factory request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read factory response: %w", err)
	}

	// 失敗時もreportUrlを拾うため、デコードエラーは無視して空の値で続行する
	var decoded responseBody
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("工場サービスがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.Int64("order_id", order.ID),
			slog.String("factory_message", decoded.Message),
			slog.String("report_url", decoded.ReportURL),
		)
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Message:    decoded.Message,
			ReportURL:  decoded.ReportURL,
		}
	}

	if decoded.JWT == "" {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "missing jwt in factory response", ReportURL: decoded.ReportURL}
	}

	return &model.FactoryReceipt{JWT: decoded.JWT, ReportURL: decoded.ReportURL}, nil
}
