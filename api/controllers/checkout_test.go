package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/clipclash/clipclash-backend/internal/catalog"
	"github.com/clipclash/clipclash-backend/internal/checkout"
	"github.com/clipclash/clipclash-backend/internal/fulfillment"
	pkgerrors "github.com/clipclash/clipclash-backend/pkg/errors"
)

type stubCheckoutService struct {
	session   *checkout.Session
	err       error
	lastID    uuid.UUID
	lastInput checkout.CreateSessionInput
}

func (s *stubCheckoutService) CreateSession(ctx context.Context, userID uuid.UUID, input checkout.CreateSessionInput) (*checkout.Session, error) {
	s.lastID = userID
	s.lastInput = input
	return s.session, s.err
}

type stubEngine struct {
	result        *fulfillment.Result
	err           error
	lastCaller    uuid.UUID
	lastSessionID string
}

func (s *stubEngine) FulfillSession(ctx context.Context, session *stripe.CheckoutSession) (*fulfillment.Result, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubEngine) FulfillBySessionID(ctx context.Context, callerUserID uuid.UUID, sessionID string) (*fulfillment.Result, error) {
	s.lastCaller = callerUserID
	s.lastSessionID = sessionID
	return s.result, s.err
}

func (s *stubEngine) SyncRenewal(ctx context.Context, subscriptionID string) error {
	return nil
}

func TestCreateCheckoutSessionSuccess(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	svc := &stubCheckoutService{session: &checkout.Session{
		SessionID: "cs_test_123",
		URL:       "https://checkout.stripe.com/c/pay/cs_test_123",
	}}
	handler := CreateCheckoutSession(svc, nil)

	body := `{"price_id":"price_cc_tokens_350","quantity":2}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/checkout/session", body, userID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.lastID != userID {
		t.Fatalf("expected buyer %s, got %s", userID, svc.lastID)
	}
	if svc.lastInput.PriceID != "price_cc_tokens_350" || svc.lastInput.Quantity != 2 {
		t.Fatalf("unexpected input: %+v", svc.lastInput)
	}

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["session_id"] != "cs_test_123" {
		t.Fatalf("unexpected session id %q", envelope.Data["session_id"])
	}
	if envelope.Data["url"] == "" {
		t.Fatalf("expected checkout url in response")
	}
}

func TestCreateCheckoutSessionTipReceiver(t *testing.T) {
	t.Parallel()

	receiverID := uuid.New()
	svc := &stubCheckoutService{session: &checkout.Session{SessionID: "cs_tip", URL: "https://stripe.test/cs_tip"}}
	handler := CreateCheckoutSession(svc, nil)

	body := `{"price_id":"price_cc_tip_gold","receiver_user_id":"` + receiverID.String() + `"}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/checkout/session", body, uuid.New()))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.lastInput.ReceiverUserID == nil || *svc.lastInput.ReceiverUserID != receiverID {
		t.Fatalf("expected receiver %s, got %v", receiverID, svc.lastInput.ReceiverUserID)
	}
}

func TestCreateCheckoutSessionRejectsMissingPrice(t *testing.T) {
	t.Parallel()

	handler := CreateCheckoutSession(&stubCheckoutService{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/checkout/session", `{"quantity":1}`, uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCreateCheckoutSessionUnknownProduct(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeUnknownProduct, "price not in catalog")}
	handler := CreateCheckoutSession(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/checkout/session", `{"price_id":"price_bogus"}`, uuid.New()))

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestFulfillCheckoutSessionSuccess(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	engine := &stubEngine{result: &fulfillment.Result{
		Kind:        catalog.ProductTokens,
		TokensAdded: 350,
		NewBalance:  350,
	}}
	handler := FulfillCheckoutSession(engine, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/checkout/fulfill", `{"session_id":"cs_done"}`, userID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if engine.lastCaller != userID || engine.lastSessionID != "cs_done" {
		t.Fatalf("unexpected engine call: caller=%s session=%s", engine.lastCaller, engine.lastSessionID)
	}

	var envelope struct {
		Data struct {
			TokensAdded      int64 `json:"tokens_added"`
			NewBalance       int64 `json:"new_balance"`
			AlreadyFulfilled bool  `json:"already_fulfilled"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.TokensAdded != 350 || envelope.Data.NewBalance != 350 {
		t.Fatalf("unexpected totals: %+v", envelope.Data)
	}
	if envelope.Data.AlreadyFulfilled {
		t.Fatalf("expected first-time fulfillment")
	}
}

func TestFulfillCheckoutSessionNotPaid(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{err: pkgerrors.New(pkgerrors.CodePaymentIncomplete, "session not paid")}
	handler := FulfillCheckoutSession(engine, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/checkout/fulfill", `{"session_id":"cs_pending"}`, uuid.New()))

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestFulfillCheckoutSessionRequiresSessionID(t *testing.T) {
	t.Parallel()

	handler := FulfillCheckoutSession(&stubEngine{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/checkout/fulfill", `{}`, uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
