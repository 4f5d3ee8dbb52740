package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/kakeibo/internal/ledger"
	"github.com/hitoshi/kakeibo/internal/metrics"
	"github.com/hitoshi/kakeibo/internal/middleware"
	"github.com/hitoshi/kakeibo/internal/model"
)

// LedgerServiceInterface は収入・支出ハンドラーが必要とするサービスインターフェース。
type LedgerServiceInterface interface {
	List(ctx context.Context, kind model.EntryKind, userID string) ([]*model.Entry, error)
	Add(ctx context.Context, kind model.EntryKind, userID string, in ledger.AddInput) (*model.Entry, error)
}

// LedgerHandler は1種別（収入または支出）のエントリを扱うHTTPハンドラー。
type LedgerHandler struct {
	service LedgerServiceInterface
	kind    model.EntryKind
	metrics metrics.MetricsCollector
}

// NewLedgerHandler はLedgerHandlerを生成する。
func NewLedgerHandler(service LedgerServiceInterface, kind model.EntryKind, collector metrics.MetricsCollector) *LedgerHandler {
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &LedgerHandler{
		service: service,
		kind:    kind,
		metrics: collector,
	}
}

// addEntryRequest はエントリ登録リクエストのボディ。
// 所有者を示すフィールドは受け付けず、常にセッションのユーザーを使用する。
type addEntryRequest struct {
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Amount      json.RawMessage `json:"amount"`
	Category    string          `json:"category"`
}

// entryResponse はエントリのAPIレスポンス。
// 金額は丸めずにJSONの数値として出力する。
type entryResponse struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// List はログインユーザーのエントリ一覧を返す。
// GET /incomes, GET /expenses
func (h *LedgerHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	entries, err := h.service.List(r.Context(), h.kind, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Add はログインユーザーのエントリを登録する。
// POST /add-income, POST /add-expense
func (h *LedgerHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req addEntryRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	amount, ok := amountText(req.Amount)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("amount must be a finite number"))
		return
	}

	_, err = h.service.Add(r.Context(), h.kind, userID, ledger.AddInput{
		Description: req.Description,
		Date:        req.Date,
		Amount:      amount,
		Category:    req.Category,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordEntryCreated(string(h.kind))
	writeJSON(w, http.StatusCreated, messageResponse{Message: addedMessage(h.kind)})
}

// amountText はJSONの数値または数値文字列を文字列表現に変換する。
// 未指定・nullの場合は空文字を返す。真偽値・配列・オブジェクトはokがfalseになる。
func amountText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", true
	}

	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case c == '-' || (c >= '0' && c <= '9'):
		return string(raw), true
	default:
		return "", false
	}
}

func addedMessage(kind model.EntryKind) string {
	if kind == model.EntryKindExpense {
		return "Expense added"
	}
	return "Income added"
}

func toEntryResponse(e *model.Entry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		Description: e.Description,
		Date:        e.Date.Format(model.DateLayout),
		Amount:      json.Number(e.Amount.String()),
		Category:    e.Category,
		CreatedAt:   e.CreatedAt,
	}
}
