package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/kakeibo/internal/ledger"
	"github.com/hitoshi/kakeibo/internal/middleware"
	"github.com/hitoshi/kakeibo/internal/model"
)

// --- モック定義 ---

type mockLedgerService struct {
	listFn func(ctx context.Context, kind model.EntryKind, userID string) ([]*model.Entry, error)
	addFn  func(ctx context.Context, kind model.EntryKind, userID string, in ledger.AddInput) (*model.Entry, error)
}

func (m *mockLedgerService) List(ctx context.Context, kind model.EntryKind, userID string) ([]*model.Entry, error) {
	if m.listFn != nil {
		return m.listFn(ctx, kind, userID)
	}
	return []*model.Entry{}, nil
}

func (m *mockLedgerService) Add(ctx context.Context, kind model.EntryKind, userID string, in ledger.AddInput) (*model.Entry, error) {
	if m.addFn != nil {
		return m.addFn(ctx, kind, userID, in)
	}
	return &model.Entry{ID: "e1"}, nil
}

// withUserID はテスト用にリクエストコンテキストにセッションユーザーを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUser(r.Context(), model.SessionUser{ID: userID, Name: "Test"})
	return r.WithContext(ctx)
}

// --- List ---

func TestLedgerHandler_List_ReturnsEntries(t *testing.T) {
	created := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	var gotKind model.EntryKind
	var gotUser string
	svc := &mockLedgerService{
		listFn: func(ctx context.Context, kind model.EntryKind, userID string) ([]*model.Entry, error) {
			gotKind, gotUser = kind, userID
			return []*model.Entry{{
				ID:          "e1",
				UserID:      userID,
				Kind:        kind,
				Description: "Salary",
				Date:        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
				Amount:      decimal.NewFromInt(3000),
				Category:    "Job",
				CreatedAt:   created,
			}}, nil
		},
	}
	h := NewLedgerHandler(svc, model.EntryKindIncome, nil)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/incomes", nil), "user-a")
	w := httptest.NewRecorder()

	h.List(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if gotKind != model.EntryKindIncome || gotUser != "user-a" {
		t.Errorf("List called with (%q, %q)", gotKind, gotUser)
	}

	var body []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("len = %d, want 1", len(body))
	}
	e := body[0]
	if e["id"] != "e1" || e["description"] != "Salary" || e["category"] != "Job" {
		t.Errorf("unexpected entry: %v", e)
	}
	if e["date"] != "2024-01-15" {
		t.Errorf("date = %v, want 2024-01-15", e["date"])
	}
	if e["amount"] != float64(3000) {
		t.Errorf("amount = %v, want 3000", e["amount"])
	}
	if e["createdAt"] != "2024-01-15T09:00:00Z" {
		t.Errorf("createdAt = %v, want 2024-01-15T09:00:00Z", e["createdAt"])
	}
	if _, ok := e["userId"]; ok {
		t.Error("owner should not be exposed")
	}
}

func TestLedgerHandler_List_EmptyIsArray(t *testing.T) {
	h := NewLedgerHandler(&mockLedgerService{}, model.EntryKindExpense, nil)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/expenses", nil), "user-a")
	w := httptest.NewRecorder()

	h.List(w, req)

	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q, want %q", got, "[]")
	}
}

func TestLedgerHandler_List_NoUser_Returns401(t *testing.T) {
	h := NewLedgerHandler(&mockLedgerService{}, model.EntryKindIncome, nil)

	req := httptest.NewRequest(http.MethodGet, "/incomes", nil)
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestLedgerHandler_List_ServiceError_Returns500(t *testing.T) {
	svc := &mockLedgerService{
		listFn: func(ctx context.Context, kind model.EntryKind, userID string) ([]*model.Entry, error) {
			return nil, errors.New("db down")
		},
	}
	h := NewLedgerHandler(svc, model.EntryKindIncome, nil)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/incomes", nil), "user-a")
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}

// --- Add ---

func TestLedgerHandler_Add_UsesSessionOwner(t *testing.T) {
	var gotUser string
	var gotInput ledger.AddInput
	svc := &mockLedgerService{
		addFn: func(ctx context.Context, kind model.EntryKind, userID string, in ledger.AddInput) (*model.Entry, error) {
			gotUser, gotInput = userID, in
			return &model.Entry{ID: "e1"}, nil
		},
	}
	h := NewLedgerHandler(svc, model.EntryKindIncome, nil)

	body := `{"description":"Salary","date":"2024-01-15","amount":3000,"category":"Job","userId":"someone-else","user":"x"}`
	req := withUserID(httptest.NewRequest(http.MethodPost, "/add-income", strings.NewReader(body)), "user-a")
	w := httptest.NewRecorder()

	h.Add(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if gotUser != "user-a" {
		t.Errorf("owner = %q, want %q", gotUser, "user-a")
	}
	if gotInput.Amount != "3000" || gotInput.Description != "Salary" || gotInput.Date != "2024-01-15" || gotInput.Category != "Job" {
		t.Errorf("input = %+v", gotInput)
	}

	var msg messageResponse
	json.NewDecoder(resp.Body).Decode(&msg)
	if msg.Message != "Income added" {
		t.Errorf("message = %q, want %q", msg.Message, "Income added")
	}
}

func TestLedgerHandler_Add_ExpenseMessage(t *testing.T) {
	h := NewLedgerHandler(&mockLedgerService{}, model.EntryKindExpense, nil)

	body := `{"description":"Lunch","date":"2024-01-15","amount":"12.5","category":"Food"}`
	req := withUserID(httptest.NewRequest(http.MethodPost, "/add-expense", strings.NewReader(body)), "user-a")
	w := httptest.NewRecorder()

	h.Add(w, req)

	var msg messageResponse
	json.NewDecoder(w.Result().Body).Decode(&msg)
	if msg.Message != "Expense added" {
		t.Errorf("message = %q, want %q", msg.Message, "Expense added")
	}
}

func TestLedgerHandler_Add_NonNumericAmountType_Returns400(t *testing.T) {
	called := false
	svc := &mockLedgerService{
		addFn: func(ctx context.Context, kind model.EntryKind, userID string, in ledger.AddInput) (*model.Entry, error) {
			called = true
			return nil, nil
		},
	}
	h := NewLedgerHandler(svc, model.EntryKindExpense, nil)

	for _, amount := range []string{`true`, `[1]`, `{"v":1}`} {
		body := `{"description":"Lunch","date":"2024-01-15","amount":` + amount + `,"category":"Food"}`
		req := withUserID(httptest.NewRequest(http.MethodPost, "/add-expense", strings.NewReader(body)), "user-a")
		w := httptest.NewRecorder()

		h.Add(w, req)

		if w.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("amount %s: status = %d, want %d", amount, w.Result().StatusCode, http.StatusBadRequest)
		}
	}
	if called {
		t.Error("service should not be called for invalid amount types")
	}
}

func TestLedgerHandler_Add_ValidationError_Returns400(t *testing.T) {
	svc := &mockLedgerService{
		addFn: func(ctx context.Context, kind model.EntryKind, userID string, in ledger.AddInput) (*model.Entry, error) {
			return nil, model.NewValidationError("date must be in YYYY-MM-DD format")
		},
	}
	h := NewLedgerHandler(svc, model.EntryKindIncome, nil)

	body := `{"description":"x","date":"bad","amount":1,"category":"y"}`
	req := withUserID(httptest.NewRequest(http.MethodPost, "/add-income", strings.NewReader(body)), "user-a")
	w := httptest.NewRecorder()

	h.Add(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if code := decodeErrorCode(t, resp); code != model.ErrCodeValidation {
		t.Errorf("code = %q, want %q", code, model.ErrCodeValidation)
	}
}

func TestLedgerHandler_Add_NoUser_Returns401(t *testing.T) {
	h := NewLedgerHandler(&mockLedgerService{}, model.EntryKindIncome, nil)

	req := httptest.NewRequest(http.MethodPost, "/add-income", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	h.Add(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAmountText(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{``, "", true},
		{`null`, "", true},
		{`42`, "42", true},
		{`-1.5e2`, "-1.5e2", true},
		{`"12.50"`, "12.50", true},
		{`true`, "", false},
		{`[]`, "", false},
	}

	for _, tt := range tests {
		got, ok := amountText(json.RawMessage(tt.raw))
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("amountText(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestToEntryResponse_AmountIsExactJSONNumber(t *testing.T) {
	entry := &model.Entry{
		ID:     "e1",
		Date:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Amount: decimal.RequireFromString("1234567.89"),
	}

	data, err := json.Marshal(toEntryResponse(entry))
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if !strings.Contains(string(data), `"amount":1234567.89`) {
		t.Errorf("amount should be an unquoted exact number, got %s", data)
	}
}
