package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/jwtpizza/internal/model"
)

// mockAuthenticator はテスト用のAuthenticator実装。
type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, token string) (*model.User, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, token)
	}
	return nil, model.NewUnauthorizedError()
}

func validTokenAuthenticator() *mockAuthenticator {
	return &mockAuthenticator{
		authenticateFn: func(_ context.Context, token string) (*model.User, error) {
			if token == "valid.jwt.token" {
				return &model.User{ID: 42, Name: "pizza diner"}, nil
			}
			return nil, model.NewUnauthorizedError()
		},
	}
}

// TestSessionMiddleware_ValidToken_InjectsUser は有効なトークンでユーザーとトークンが注入されることを検証する。
func TestSessionMiddleware_ValidToken_InjectsUser(t *testing.T) {
	var gotUser *model.User
	var gotToken string
	handler := NewSessionMiddleware(validTokenAuthenticator())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserFromContext(r.Context())
		gotToken = TokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
	req.Header.Set("Authorization", "Bearer valid.jwt.token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if gotUser == nil || gotUser.ID != 42 {
		t.Fatalf("user = %+v, want id 42", gotUser)
	}
	if gotToken != "valid.jwt.token" {
		t.Errorf("token = %q", gotToken)
	}
}

// TestSessionMiddleware_MissingOrInvalidToken_Anonymous はトークンが無効でも未認証として通過することを検証する。
func TestSessionMiddleware_MissingOrInvalidToken_Anonymous(t *testing.T) {
	headers := []string{"", "Bearer", "Bearer revoked.jwt.token", "Basic dXNlcjpwYXNz", "valid.jwt.token"}

	for _, h := range headers {
		t.Run(h, func(t *testing.T) {
			called := false
			handler := NewSessionMiddleware(validTokenAuthenticator())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				if UserFromContext(r.Context()) != nil {
					t.Error("user should not be set")
				}
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/order/menu", nil)
			if h != "" {
				req.Header.Set("Authorization", h)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if !called || w.Code != http.StatusOK {
				t.Errorf("called=%v status=%d", called, w.Code)
			}
		})
	}
}

// TestSessionMiddleware_BackendError_Returns500 は検証処理自体の失敗時に500を返すことを検証する。
func TestSessionMiddleware_BackendError_Returns500(t *testing.T) {
	authn := &mockAuthenticator{
		authenticateFn: func(context.Context, string) (*model.User, error) {
			return nil, errors.New("db down")
		},
	}
	handler := NewSessionMiddleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
	req.Header.Set("Authorization", "Bearer a.b.c")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

// TestRequireAuth は未認証リクエストに401を返すことを検証する。
func TestRequireAuth(t *testing.T) {
	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
	req = req.WithContext(ContextWithUser(req.Context(), &model.User{ID: 1}))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authenticated: status = %d, want 200", w.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc.def.ghi", "abc.def.ghi"},
		{"Bearer   abc ", "abc"},
		{"Token abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", tt.header)
		if got := bearerToken(req); got != tt.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestContextHelpers_Empty(t *testing.T) {
	ctx := context.Background()
	if UserFromContext(ctx) != nil {
		t.Error("UserFromContext should return nil")
	}
	if TokenFromContext(ctx) != "" {
		t.Error("TokenFromContext should return empty string")
	}
}
