// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/kakeibo/internal/auth"
	"github.com/hitoshi/kakeibo/internal/metrics"
	"github.com/hitoshi/kakeibo/internal/middleware"
	"github.com/hitoshi/kakeibo/internal/model"
)

// UserServiceInterface はサインアップに必要なサービスインターフェース。
type UserServiceInterface interface {
	Signup(ctx context.Context, name, email, password string) (*model.User, error)
}

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	ResolveSession(ctx context.Context, token string) (*model.Session, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はサインアップ・ログイン・ログアウト・認証確認のHTTPハンドラー。
type AuthHandler struct {
	users   UserServiceInterface
	service AuthServiceInterface
	metrics metrics.MetricsCollector
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	users UserServiceInterface,
	service AuthServiceInterface,
	collector metrics.MetricsCollector,
	config AuthHandlerConfig,
) *AuthHandler {
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &AuthHandler{
		users:   users,
		service: service,
		metrics: collector,
		config:  config,
	}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

type checkAuthResponse struct {
	Authenticated bool               `json:"authenticated"`
	User          *model.SessionUser `json:"user,omitempty"`
}

// Signup は新規ユーザーを登録する。
// POST /signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSONBody(w, r, &req) {
		h.metrics.RecordSignup(metrics.ResultFailure)
		return
	}

	if _, err := h.users.Signup(r.Context(), req.Name, req.Email, req.Password); err != nil {
		h.metrics.RecordSignup(resultOf(err))
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordSignup(metrics.ResultSuccess)
	writeJSON(w, http.StatusCreated, messageResponse{Message: "Signup successful"})
}

// Login は資格情報を検証し、セッションCookieを発行する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSONBody(w, r, &req) {
		h.metrics.RecordLogin(metrics.ResultFailure)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.RecordLogin(resultOf(err))
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(result.Token, h.config.SessionMaxAge))

	h.metrics.RecordLogin(metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, loginResponse{
		Message: "Login successful",
		Name:    result.Session.User.Name,
	})
}

// Logout はセッションを破棄し、Cookieをクリアする。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var logoutErr error
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		logoutErr = h.service.Logout(r.Context(), cookie.Value)
	}

	// ログアウト失敗時もCookieはクリアする
	http.SetCookie(w, h.sessionCookie("", -1))

	if logoutErr != nil {
		slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.metrics.RecordLogout()
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logout successful"})
}

// CheckAuth はセッションCookieの有効性を返す。副作用はない。
// GET /check-auth
func (h *AuthHandler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusUnauthorized, checkAuthResponse{Authenticated: false})
		return
	}

	session, err := h.service.ResolveSession(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to resolve session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if session == nil {
		writeJSON(w, http.StatusUnauthorized, checkAuthResponse{Authenticated: false})
		return
	}

	user := session.User
	writeJSON(w, http.StatusOK, checkAuthResponse{Authenticated: true, User: &user})
}

// sessionCookie はセッションCookieを生成する。
// Secure時はクロスサイトのフロントエンドから送信できるようSameSite=Noneにする。
func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if h.config.CookieSecure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: sameSite,
	}
}

// resultOf はエラーをメトリクスの結果ラベルに変換する。
func resultOf(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && mapAPIErrorToHTTPStatus(apiErr) < http.StatusInternalServerError {
		return metrics.ResultFailure
	}
	return metrics.ResultError
}
