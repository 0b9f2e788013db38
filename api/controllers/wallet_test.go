package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clipclash/clipclash-backend/api/middleware"
	"github.com/clipclash/clipclash-backend/internal/ledger"
	"github.com/clipclash/clipclash-backend/internal/spend"
	"github.com/clipclash/clipclash-backend/pkg/db/models"
	"github.com/clipclash/clipclash-backend/pkg/enums"
	pkgerrors "github.com/clipclash/clipclash-backend/pkg/errors"
)

type stubWalletReader struct {
	balance int64
	err     error
	lastID  uuid.UUID
}

func (s *stubWalletReader) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	s.lastID = userID
	return s.balance, s.err
}

type stubLedgerService struct {
	page       *ledger.Page
	err        error
	lastUserID uuid.UUID
	lastFilter ledger.ListFilter
}

func (s *stubLedgerService) AppendTx(ctx context.Context, tx *gorm.DB, input ledger.AppendInput) (*models.TokenTransaction, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubLedgerService) FindByStripeSession(ctx context.Context, sessionID string) (*models.TokenTransaction, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubLedgerService) ListForUser(ctx context.Context, userID uuid.UUID, filter ledger.ListFilter) (*ledger.Page, error) {
	s.lastUserID = userID
	s.lastFilter = filter
	return s.page, s.err
}

type stubSpendService struct {
	result    *spend.Result
	err       error
	lastID    uuid.UUID
	lastInput spend.Input
}

func (s *stubSpendService) Spend(ctx context.Context, actorUserID uuid.UUID, input spend.Input) (*spend.Result, error) {
	s.lastID = actorUserID
	s.lastInput = input
	return s.result, s.err
}

func authedRequest(method, target, body string, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func TestGetWalletReturnsBalance(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	reader := &stubWalletReader{balance: 420}
	handler := GetWallet(reader, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/wallet", "", userID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if reader.lastID != userID {
		t.Fatalf("expected lookup for %s, got %s", userID, reader.lastID)
	}

	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["balance"] != 420 {
		t.Fatalf("expected balance 420, got %d", envelope.Data["balance"])
	}
}

func TestGetWalletRequiresIdentity(t *testing.T) {
	t.Parallel()

	handler := GetWallet(&stubWalletReader{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestListTransactionsPassesFilter(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	svc := &stubLedgerService{
		page: &ledger.Page{
			Transactions: []models.TokenTransaction{
				{
					ID:        uuid.New(),
					UserID:    userID,
					Amount:    -5,
					Kind:      enums.TransactionKindVote,
					CreatedAt: time.Now().UTC(),
				},
			},
			NextCursor: "next",
		},
	}
	handler := ListTransactions(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/wallet/transactions?kind=vote&limit=10&cursor=abc", "", userID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.lastUserID != userID {
		t.Fatalf("expected list for %s, got %s", userID, svc.lastUserID)
	}
	if svc.lastFilter.Kind == nil || *svc.lastFilter.Kind != enums.TransactionKindVote {
		t.Fatalf("expected vote kind filter, got %v", svc.lastFilter.Kind)
	}
	if svc.lastFilter.Limit != 10 {
		t.Fatalf("expected limit 10, got %d", svc.lastFilter.Limit)
	}
	if svc.lastFilter.Cursor != "abc" {
		t.Fatalf("expected cursor abc, got %q", svc.lastFilter.Cursor)
	}

	var envelope struct {
		Data struct {
			Transactions []TransactionResponse `json:"transactions"`
			NextCursor   string                `json:"next_cursor"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(envelope.Data.Transactions))
	}
	if envelope.Data.Transactions[0].Amount != -5 {
		t.Fatalf("expected amount -5, got %d", envelope.Data.Transactions[0].Amount)
	}
	if envelope.Data.NextCursor != "next" {
		t.Fatalf("expected next cursor, got %q", envelope.Data.NextCursor)
	}
}

func TestListTransactionsRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	handler := ListTransactions(&stubLedgerService{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/wallet/transactions?kind=jackpot", "", uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestSpendTokensSuccess(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	videoID := uuid.New()
	svc := &stubSpendService{result: &spend.Result{NewBalance: 55}}
	handler := SpendTokens(svc, nil)

	body := `{"amount":5,"kind":"vote","video_id":"` + videoID.String() + `"}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/wallet/spend", body, userID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.lastID != userID {
		t.Fatalf("expected spender %s, got %s", userID, svc.lastID)
	}
	if svc.lastInput.Amount != 5 || svc.lastInput.Kind != enums.TransactionKindVote {
		t.Fatalf("unexpected spend input: %+v", svc.lastInput)
	}
	if svc.lastInput.VideoID == nil || *svc.lastInput.VideoID != videoID {
		t.Fatalf("expected video id %s, got %v", videoID, svc.lastInput.VideoID)
	}

	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["new_balance"] != 55 {
		t.Fatalf("expected new balance 55, got %d", envelope.Data["new_balance"])
	}
}

func TestSpendTokensRejectsPurchaseKind(t *testing.T) {
	t.Parallel()

	svc := &stubSpendService{}
	handler := SpendTokens(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/wallet/spend", `{"amount":5,"kind":"purchase"}`, uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.lastInput.Amount != 0 {
		t.Fatalf("spend service should not have been called")
	}
}

func TestSpendTokensSurfacesInsufficientBalance(t *testing.T) {
	t.Parallel()

	svc := &stubSpendService{err: pkgerrors.New(pkgerrors.CodeInsufficientBalance, "balance too low")}
	handler := SpendTokens(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/wallet/spend", `{"amount":500,"kind":"boost"}`, uuid.New()))

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d (%s)", resp.Code, resp.Body.String())
	}
}
