// Package cleanup は期限切れセッションの削除ジョブを提供する。
// Postgresのsessionsテーブルからexpires_atを過ぎた行をまとめて削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SessionCleanupJob は期限切れセッションの削除ジョブ。
type SessionCleanupJob struct {
	db     Executor
	logger *slog.Logger
	// GraceMinutes は期限切れから削除までの猶予（分）。デフォルト0。
	GraceMinutes int
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
func NewSessionCleanupJob(db Executor, logger *slog.Logger) *SessionCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionCleanupJob{
		db:     db,
		logger: logger,
	}
}

// Run は期限切れセッションを削除し、削除件数を返す。
// 削除対象がない場合もエラーにはならない。
func (j *SessionCleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	grace := fmt.Sprintf("%d minutes", j.GraceMinutes)

	query := `DELETE FROM sessions WHERE expires_at <= now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, grace)
	if err != nil {
		j.logger.Error("セッションクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("grace_minutes", j.GraceMinutes),
		)
		return 0, fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.logger.Info("セッションクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("grace_minutes", j.GraceMinutes),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return deletedCount, nil
}
