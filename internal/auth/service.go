// Package auth はログインとセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/kakeibo/internal/model"
	"github.com/hitoshi/kakeibo/internal/repository"
)

// Authenticator はメールアドレスとパスワードからユーザーを特定するインターフェース。
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
}

// UserLookup はセッションが参照するユーザーの存在確認に使うインターフェース。
// 未登録の場合は(nil, nil)を返す。
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionSecret string
	SessionMaxAge int // セッション有効期間（秒）
}

// LoginResult はログイン成功時の結果。
// TokenはそのままセッションCookieの値として使用する。
type LoginResult struct {
	Session *model.Session
	Token   string
}

// Service はログイン・セッション解決・ログアウトのビジネスロジックを提供する。
type Service struct {
	authenticator Authenticator
	users         UserLookup
	sessionRepo   repository.SessionRepository
	signer        *TokenSigner
	maxAge        time.Duration
	now           func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	authenticator Authenticator,
	users UserLookup,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	maxAge := config.SessionMaxAge
	if maxAge <= 0 {
		maxAge = 86400
	}
	return &Service{
		authenticator: authenticator,
		users:         users,
		sessionRepo:   sessionRepo,
		signer:        NewTokenSigner(config.SessionSecret),
		maxAge:        time.Duration(maxAge) * time.Second,
		now:           time.Now,
	}
}

// Login は資格情報を検証し、セッションを発行する。
// 資格情報が不正な場合はINVALID_CREDENTIALSエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	// 1. 資格情報の検証
	user, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	// 2. セッションを発行
	session, err := s.CreateSession(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return &LoginResult{
		Session: session,
		Token:   s.signer.Sign(session.ID),
	}, nil
}

// CreateSession はユーザーのセッションを作成し永続化する。
// セッションにはユーザーIDと表示名のみを保持する。
func (s *Service) CreateSession(ctx context.Context, user *model.User) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		User:      model.SessionUser{ID: user.ID, Name: user.Name},
		ExpiresAt: now.Add(s.maxAge),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// ResolveSession はCookie値から有効なセッションを取得する。
// 署名不正・未登録・期限切れ、または参照先ユーザーが存在しない場合は(nil, nil)を返す。
// ストア障害の場合のみエラーを返す。
func (s *Service) ResolveSession(ctx context.Context, token string) (*model.Session, error) {
	sessionID, ok := s.signer.Verify(token)
	if !ok {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.Expired(s.now()) {
		return nil, nil
	}

	user, err := s.users.FindByID(ctx, session.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	return session, nil
}

// Logout はCookie値が指すセッションを破棄する。
// 署名不正や既に存在しないセッションは成功として扱う。
func (s *Service) Logout(ctx context.Context, token string) error {
	sessionID, ok := s.signer.Verify(token)
	if !ok {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
