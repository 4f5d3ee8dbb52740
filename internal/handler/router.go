package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kakeibo/internal/metrics"
	"github.com/hitoshi/kakeibo/internal/middleware"
	"github.com/hitoshi/kakeibo/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	CORSAllowedOrigin string
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// 運用エンドポイント
	HealthCheckers []HealthChecker
	MetricsHandler http.Handler

	// 認証
	UserService UserServiceInterface
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 収入・支出
	LedgerService LedgerServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Metrics → (保護ルートのみ) Session
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Noop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.AuthConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewMetricsMiddleware(collector))

	authHandler := NewAuthHandler(deps.UserService, deps.AuthService, collector, deps.AuthConfig)
	incomeHandler := NewLedgerHandler(deps.LedgerService, model.EntryKindIncome, collector)
	expenseHandler := NewLedgerHandler(deps.LedgerService, model.EntryKindExpense, collector)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthCheckers...))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Post("/signup", authHandler.Signup)
	r.Post("/login", authHandler.Login)
	r.Post("/logout", authHandler.Logout)
	r.Get("/check-auth", authHandler.CheckAuth)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))

		r.Get("/incomes", incomeHandler.List)
		r.Post("/add-income", incomeHandler.Add)
		r.Get("/expenses", expenseHandler.List)
		r.Post("/add-expense", expenseHandler.Add)
	})

	return r
}
