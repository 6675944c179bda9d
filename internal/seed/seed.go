// Package seed は初期ユーザーとメニューの投入を提供する。
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/jwtpizza/internal/model"
	"github.com/hitoshi/jwtpizza/internal/repository"
)

//go:embed default.yaml
var defaultSeed []byte

// File はシードファイルの内容。
type File struct {
	Users []User     `yaml:"users"`
	Menu  []MenuItem `yaml:"menu"`
}

// User は投入するユーザー。パスワードは平文で記述し、投入時にハッシュ化する。
type User struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Roles    []Role `yaml:"roles"`
}

// Role はユーザーに付与するロール。
type Role struct {
	Role     string `yaml:"role"`
	ObjectID int64  `yaml:"objectId"`
}

// MenuItem は投入するメニュー項目。
type MenuItem struct {
	Title       string  `yaml:"title"`
	Description string  `yaml:"description"`
	Image       string  `yaml:"image"`
	Price       float64 `yaml:"price"`
}

// Result は投入結果の件数。
type Result struct {
	UsersCreated int
	UsersSkipped int
	MenuCreated  int
	MenuSkipped  int
}

// Decode はYAMLからシードファイルを読み込み、内容を検証する。
func Decode(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("シードファイルの解析に失敗: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load はpathのシードファイルを読み込む。pathが空の場合は組み込みのデフォルトを使う。
func Load(path string) (*File, error) {
	if path == "" {
		return Decode(bytes.NewReader(defaultSeed))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("シードファイルを開けません: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

func (f *File) validate() error {
	for i, u := range f.Users {
		if strings.TrimSpace(u.Email) == "" || u.Password == "" || strings.TrimSpace(u.Name) == "" {
			return fmt.Errorf("users[%d]: name, email, password は必須です", i)
		}
		for _, r := range u.Roles {
			role := model.Role(r.Role)
			if !role.IsValid() {
				return fmt.Errorf("users[%d]: 不明なロール %q", i, r.Role)
			}
			if role == model.RoleFranchisee && r.ObjectID <= 0 {
				return fmt.Errorf("users[%d]: franchiseeロールにはobjectIdが必要です", i)
			}
		}
	}
	for i, m := range f.Menu {
		if strings.TrimSpace(m.Title) == "" {
			return fmt.Errorf("menu[%d]: title は必須です", i)
		}
		if m.Price < 0 {
			return fmt.Errorf("menu[%d]: price は0以上である必要があります", i)
		}
	}
	return nil
}

// PasswordHasher はパスワードのハッシュ化関数。
type PasswordHasher func(password string) (string, error)

// Seeder はシードファイルの内容をリポジトリへ投入する。
type Seeder struct {
	users  repository.UserRepository
	menu   repository.MenuRepository
	hash   PasswordHasher
	logger *slog.Logger
}

// NewSeeder はSeederを生成する。
func NewSeeder(users repository.UserRepository, menu repository.MenuRepository, hash PasswordHasher, logger *slog.Logger) *Seeder {
	return &Seeder{
		users:  users,
		menu:   menu,
		hash:   hash,
		logger: logger,
	}
}

// Run はシードを投入する。既に存在するメールアドレスとメニュー名はスキップするため、何度実行してもよい。
func (s *Seeder) Run(ctx context.Context, f *File) (Result, error) {
	var res Result

	for _, u := range f.Users {
		existing, err := s.users.FindByEmail(ctx, u.Email)
		if err != nil {
			return res, fmt.Errorf("ユーザーの確認に失敗 (%s): %w", u.Email, err)
		}
		if existing != nil {
			res.UsersSkipped++
			continue
		}

		hash, err := s.hash(u.Password)
		if err != nil {
			return res, fmt.Errorf("パスワードのハッシュ化に失敗 (%s): %w", u.Email, err)
		}
		user := &model.User{
			Name:         u.Name,
			Email:        u.Email,
			PasswordHash: hash,
			Roles:        toRoles(u.Roles),
		}
		if err := s.users.Create(ctx, user); err != nil {
			return res, fmt.Errorf("ユーザーの作成に失敗 (%s): %w", u.Email, err)
		}
		res.UsersCreated++
		s.logger.Info("シードユーザーを作成しました",
			slog.Int64("user_id", user.ID),
			slog.String("email", user.Email),
		)
	}

	for _, m := range f.Menu {
		existing, err := s.menu.FindByTitle(ctx, m.Title)
		if err != nil {
			return res, fmt.Errorf("メニューの確認に失敗 (%s): %w", m.Title, err)
		}
		if existing != nil {
			res.MenuSkipped++
			continue
		}

		item := &model.MenuItem{
			Title:       m.Title,
			Description: m.Description,
			Image:       m.Image,
			Price:       m.Price,
		}
		if err := s.menu.Create(ctx, item); err != nil {
			return res, fmt.Errorf("メニューの作成に失敗 (%s): %w", m.Title, err)
		}
		res.MenuCreated++
	}

	s.logger.Info("シードの投入が完了しました",
		slog.Int("users_created", res.UsersCreated),
		slog.Int("users_skipped", res.UsersSkipped),
		slog.Int("menu_created", res.MenuCreated),
		slog.Int("menu_skipped", res.MenuSkipped),
	)
	return res, nil
}

// toRoles はシードのロールをモデルに変換する。空の場合はdinerを付与する。
func toRoles(roles []Role) []model.RoleAssignment {
	if len(roles) == 0 {
		return []model.RoleAssignment{{Role: model.RoleDiner}}
	}
	out := make([]model.RoleAssignment, 0, len(roles))
	for _, r := range roles {
		out = append(out, model.RoleAssignment{Role: model.Role(r.Role), ObjectID: r.ObjectID})
	}
	return out
}
