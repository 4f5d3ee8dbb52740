// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/kakeibo/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが既に登録済みの場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// 実装はプロセス再起動後もセッションを保持する永続ストアでなければならない。
type SessionRepository interface {
	// Create はセッションを作成する。同一IDが存在する場合は上書きする。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。存在しないか期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
}

// EntryRepository は収入・支出エントリの永続化インターフェース。
type EntryRepository interface {
	// ListByUserID は指定ユーザーが所有するエントリを登録順で返す。
	ListByUserID(ctx context.Context, kind model.EntryKind, userID string) ([]*model.Entry, error)
	// Create はエントリを作成する。
	Create(ctx context.Context, entry *model.Entry) error
}
