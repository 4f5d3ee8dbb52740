package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker は依存先の疎通確認インターフェース。
// *sql.DBはこのインターフェースを満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HealthCheckFunc は関数をHealthCheckerとして扱うためのアダプタ。
type HealthCheckFunc func(ctx context.Context) error

// PingContext はfを呼び出す。
func (f HealthCheckFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

type healthResponse struct {
	Status string `json:"status"`
}

// NewHealthHandler は依存先の疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(checkers ...HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		for _, c := range checkers {
			if err := c.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}

		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
