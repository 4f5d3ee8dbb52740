// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはbcryptハッシュであり、レスポンスやセッションには含めない。
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionUser はセッションに保持する最小限のユーザー情報。
// 認可判定に必要なIDと表示名のみを持つ。
type SessionUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	User      SessionUser
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はセッションが指定時刻の時点で期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
