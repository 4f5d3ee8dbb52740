package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind は家計簿エントリの種別を表す。
type EntryKind string

const (
	// EntryKindIncome は収入。
	EntryKindIncome EntryKind = "income"
	// EntryKindExpense は支出。
	EntryKindExpense EntryKind = "expense"
)

// Valid は既知の種別かどうかを返す。
func (k EntryKind) Valid() bool {
	return k == EntryKindIncome || k == EntryKindExpense
}

// DateLayout はエントリ日付の表現形式。
const DateLayout = "2006-01-02"

// Entry は収入または支出の1件を表す。
// UserIDは必ずセッションから導出し、クライアント入力からは設定しない。
type Entry struct {
	ID          string
	UserID      string
	Kind        EntryKind
	Description string
	Date        time.Time
	Amount      decimal.Decimal
	Category    string
	CreatedAt   time.Time
}
