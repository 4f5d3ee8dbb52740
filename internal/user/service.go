// Package user はユーザー登録と資格情報の検証を提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/kakeibo/internal/model"
	"github.com/hitoshi/kakeibo/internal/repository"
)

// DefaultBcryptCost はパスワードハッシュのデフォルトコスト。
const DefaultBcryptCost = bcrypt.DefaultCost

// Service はユーザー管理のサービス層。
// 登録（Signup）とログイン時の資格情報検証（Authenticate）を提供する。
type Service struct {
	userRepo   repository.UserRepository
	bcryptCost int
	now        func() time.Time

	// dummyHash は未登録メールアドレスでも比較処理を行うためのハッシュ。
	dummyHash []byte
}

// NewService はServiceの新しいインスタンスを生成する。
// bcryptCostが有効範囲外の場合はDefaultBcryptCostを使用する。
func NewService(userRepo repository.UserRepository, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = DefaultBcryptCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("kakeibo-dummy-password"), bcryptCost)
	return &Service{
		userRepo:   userRepo,
		bcryptCost: bcryptCost,
		now:        time.Now,
		dummyHash:  dummy,
	}
}

// NormalizeEmail はメールアドレスの前後空白を除去し小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup は新規ユーザーを登録する。
// メールアドレスが登録済みの場合はUSER_EXISTSエラーを返す。
func (s *Service) Signup(ctx context.Context, name, email, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, model.NewValidationError("name, email and password are required")
	}

	// 1. 重複チェック
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewUserExistsError()
	}

	// 2. パスワードハッシュ化
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, model.NewValidationError("password is too long")
		}
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	// 3. 保存（同時登録による一意制約違反も重複として扱う）
	now := s.now()
	u := &model.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewUserExistsError()
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("user signed up", slog.String("user_id", u.ID))
	return u, nil
}

// Authenticate はメールアドレスとパスワードを検証し、該当ユーザーを返す。
// 未登録メールアドレスとパスワード不一致はどちらもINVALID_CREDENTIALSを返す。
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	u, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		// 応答時間を揃えるためダミーハッシュと比較する
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	return u, nil
}
