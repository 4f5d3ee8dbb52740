// Package ledger は収入・支出エントリの登録と一覧取得を提供する。
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/kakeibo/internal/model"
	"github.com/hitoshi/kakeibo/internal/repository"
)

// AddInput はエントリ登録の入力値。
// Amountは数値の文字列表現で受け取る（JSONの数値・数値文字列のどちらにも対応するため）。
type AddInput struct {
	Description string
	Date        string
	Amount      string
	Category    string
}

// Service は収入・支出エントリのサービス層。
// 所有者は常に呼び出し側が渡すセッションのユーザーIDで決まる。
type Service struct {
	entryRepo repository.EntryRepository
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(entryRepo repository.EntryRepository) *Service {
	return &Service{
		entryRepo: entryRepo,
		now:       time.Now,
	}
}

// List は指定ユーザーが所有するエントリを登録順で返す。
// 該当がない場合は空スライスを返す。
func (s *Service) List(ctx context.Context, kind model.EntryKind, userID string) ([]*model.Entry, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entry kind: %q", kind)
	}

	entries, err := s.entryRepo.ListByUserID(ctx, kind, userID)
	if err != nil {
		return nil, fmt.Errorf("エントリ一覧の取得に失敗しました: %w", err)
	}
	if entries == nil {
		entries = []*model.Entry{}
	}
	return entries, nil
}

// Add は入力を検証し、指定ユーザーのエントリとして保存する。
// 検証に失敗した場合はVALIDATION_ERRORを返し、何も保存しない。
func (s *Service) Add(ctx context.Context, kind model.EntryKind, userID string, in AddInput) (*model.Entry, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entry kind: %q", kind)
	}

	// 1. 入力検証
	description := strings.TrimSpace(in.Description)
	category := strings.TrimSpace(in.Category)
	if description == "" || strings.TrimSpace(in.Date) == "" || category == "" {
		return nil, model.NewValidationError("description, date, amount and category are required")
	}

	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	date, err := ParseDate(in.Date)
	if err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	// 2. 保存
	entry := &model.Entry{
		ID:          uuid.New().String(),
		UserID:      userID,
		Kind:        kind,
		Description: description,
		Date:        date,
		Amount:      amount,
		Category:    category,
		CreatedAt:   s.now(),
	}
	if err := s.entryRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("エントリの保存に失敗しました: %w", err)
	}

	slog.Debug("entry created",
		slog.String("user_id", userID),
		slog.String("kind", string(kind)),
		slog.String("entry_id", entry.ID),
	)

	return entry, nil
}

// ParseAmount は金額文字列を10進数の金額に変換する。
// 符号と通貨は検証しない。float64で表現できない桁の値は拒否する。
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil || math.IsInf(d.InexactFloat64(), 0) {
		return decimal.Zero, fmt.Errorf("amount must be a finite number")
	}
	return d, nil
}

// ParseDate はYYYY-MM-DD形式の日付を解析する。
// RFC 3339形式のタイムスタンプも受け付け、UTCに変換した日付部分を使用する。
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(model.DateLayout, s); err == nil {
		return d, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		ts = ts.UTC()
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("date must be in YYYY-MM-DD format")
}
