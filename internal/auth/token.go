package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/jwtpizza/internal/model"
)

// ErrInvalidToken はトークンの署名・形式・有効期限の検証に失敗した場合に返される。
var ErrInvalidToken = errors.New("invalid token")

// RoleClaim はトークンに埋め込むロール情報。
type RoleClaim struct {
	Role     string `json:"role"`
	ObjectID int64  `json:"objectId,omitempty"`
}

// Claims はJWTのペイロード。
type Claims struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Roles []RoleClaim `json:"roles"`
	jwt.RegisteredClaims
}

// TokenIssuer はHS256署名のJWTを発行・検証する。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue はユーザー情報を埋め込んだトークンを発行する。
// jtiにランダムなUUIDを設定するため、同一秒内の発行でも異なるトークンになる。
func (t *TokenIssuer) Issue(user *model.User) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)

	roles := make([]RoleClaim, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, RoleClaim{Role: string(r.Role), ObjectID: r.ObjectID})
	}

	claims := Claims{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse はトークンの署名と有効期限を検証し、埋め込まれたユーザー情報を返す。
func (t *TokenIssuer) Parse(token string) (*model.User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user := &model.User{
		ID:    claims.ID,
		Name:  claims.Name,
		Email: claims.Email,
		Roles: make([]model.RoleAssignment, 0, len(claims.Roles)),
	}
	for _, r := range claims.Roles {
		user.Roles = append(user.Roles, model.RoleAssignment{Role: model.Role(r.Role), ObjectID: r.ObjectID})
	}
	return user, nil
}

// TokenSignature はJWTの署名部分（3番目のセグメント）を返す。
// 形式が不正な場合は空文字列を返す。
func TokenSignature(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[2] == "" {
		return ""
	}
	return parts[2]
}
