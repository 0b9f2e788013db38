package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/clipclash/clipclash-backend/internal/catalog"
	"github.com/clipclash/clipclash-backend/internal/checkout"
	"github.com/clipclash/clipclash-backend/internal/cosmetics"
	"github.com/clipclash/clipclash-backend/internal/ledger"
	"github.com/clipclash/clipclash-backend/internal/tips"
	"github.com/clipclash/clipclash-backend/internal/wallet"
	"github.com/clipclash/clipclash-backend/pkg/db/models"
	"github.com/clipclash/clipclash-backend/pkg/enums"
	pkgerrors "github.com/clipclash/clipclash-backend/pkg/errors"
	"github.com/clipclash/clipclash-backend/pkg/logger"
	"github.com/clipclash/clipclash-backend/pkg/metrics"
)

type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type memWallets struct {
	balances map[uuid.UUID]int64
}

func newMemWallets() *memWallets {
	return &memWallets{balances: make(map[uuid.UUID]int64)}
}

func (m *memWallets) WithTx(tx *gorm.DB) wallet.Repository { return m }

func (m *memWallets) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return m.balances[userID], nil
}

func (m *memWallets) Credit(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	m.balances[userID] += amount
	return m.balances[userID], nil
}

func (m *memWallets) Debit(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	if m.balances[userID] < amount {
		return 0, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "balance too low for spend")
	}
	m.balances[userID] -= amount
	return m.balances[userID], nil
}

// memLedgerRepo enforces the unique session index the way Postgres would.
// hideNextProbe simulates the race where the probe misses because the
// other fulfillment path has not committed yet.
type memLedgerRepo struct {
	entries       []models.TokenTransaction
	hideNextProbe bool
}

func (m *memLedgerRepo) WithTx(tx *gorm.DB) ledger.Repository { return m }

func (m *memLedgerRepo) Create(ctx context.Context, entry *models.TokenTransaction) error {
	if entry.StripeSessionID != nil {
		for _, existing := range m.entries {
			if existing.StripeSessionID != nil && *existing.StripeSessionID == *entry.StripeSessionID {
				return errors.New(`duplicate key value violates unique constraint "idx_token_transactions_stripe_session_id"`)
			}
		}
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memLedgerRepo) FindByStripeSession(ctx context.Context, sessionID string) (*models.TokenTransaction, error) {
	if m.hideNextProbe {
		m.hideNextProbe = false
		return nil, nil
	}
	for i := range m.entries {
		if m.entries[i].StripeSessionID != nil && *m.entries[i].StripeSessionID == sessionID {
			return &m.entries[i], nil
		}
	}
	return nil, nil
}

func (m *memLedgerRepo) ListForUser(ctx context.Context, userID uuid.UUID, filter ledger.ListFilter) (*ledger.Page, error) {
	return &ledger.Page{}, nil
}

type memTips struct {
	tips []models.Tip
}

func (m *memTips) WithTx(tx *gorm.DB) tips.Repository { return m }

func (m *memTips) Create(ctx context.Context, tip *models.Tip) error {
	for _, existing := range m.tips {
		if existing.StripeSessionID == tip.StripeSessionID {
			return errors.New(`duplicate key value violates unique constraint "idx_tips_stripe_session_id"`)
		}
	}
	m.tips = append(m.tips, *tip)
	return nil
}

func (m *memTips) FindByStripeSession(ctx context.Context, sessionID string) (*models.Tip, error) {
	for i := range m.tips {
		if m.tips[i].StripeSessionID == sessionID {
			return &m.tips[i], nil
		}
	}
	return nil, nil
}

func (m *memTips) ListReceived(ctx context.Context, receiverID uuid.UUID, limit int, cursor string) (*tips.Page, error) {
	return &tips.Page{}, nil
}

type memCosmetics struct {
	unlocked map[string]bool
}

func newMemCosmetics() *memCosmetics {
	return &memCosmetics{unlocked: make(map[string]bool)}
}

func (m *memCosmetics) WithTx(tx *gorm.DB) cosmetics.Repository { return m }

func (m *memCosmetics) Unlock(ctx context.Context, unlock *models.AvatarUnlock) error {
	m.unlocked[unlock.UserID.String()+"|"+unlock.ItemKey] = true
	return nil
}

func (m *memCosmetics) Has(ctx context.Context, userID uuid.UUID, itemKey string) (bool, error) {
	return m.unlocked[userID.String()+"|"+itemKey], nil
}

func (m *memCosmetics) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.AvatarUnlock, error) {
	return nil, nil
}

type syncCall struct {
	userID         uuid.UUID
	tier           enums.SubscriptionTier
	subscriptionID string
}

type fakeSubscriptions struct {
	calls    []syncCall
	byStripe map[string]*models.Subscription
}

func (f *fakeSubscriptions) SyncFromStripe(ctx context.Context, tx *gorm.DB, userID uuid.UUID, tier enums.SubscriptionTier, subscriptionID string) (*models.Subscription, error) {
	f.calls = append(f.calls, syncCall{userID: userID, tier: tier, subscriptionID: subscriptionID})
	return &models.Subscription{UserID: userID, Tier: tier, StripeSubscriptionID: subscriptionID}, nil
}

func (f *fakeSubscriptions) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	if f.byStripe == nil {
		return nil, nil
	}
	return f.byStripe[subscriptionID], nil
}

func (f *fakeSubscriptions) GetForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return nil, nil
}

type fakeStripeSessions struct {
	sessions map[string]*stripe.CheckoutSession
	failures int
	getCalls int
}

func (f *fakeStripeSessions) Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStripeSessions) Get(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	f.getCalls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("stripe unavailable")
	}
	session, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such session: %s", id)
	}
	return session, nil
}

type engineFixture struct {
	engine  Engine
	wallets *memWallets
	ledger  *memLedgerRepo
	tips    *memTips
	items   *memCosmetics
	subs    *fakeSubscriptions
	stripe  *fakeStripeSessions
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	cat, err := catalog.New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ledgerRepo := &memLedgerRepo{}
	ledgerSvc, err := ledger.NewService(ledgerRepo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fixture := &engineFixture{
		wallets: newMemWallets(),
		ledger:  ledgerRepo,
		tips:    &memTips{},
		items:   newMemCosmetics(),
		subs:    &fakeSubscriptions{},
		stripe:  &fakeStripeSessions{sessions: make(map[string]*stripe.CheckoutSession)},
	}

	eng, err := NewEngine(EngineParams{
		Catalog:       cat,
		Ledger:        ledgerSvc,
		Wallets:       fixture.wallets,
		Tips:          fixture.tips,
		Cosmetics:     fixture.items,
		Subscriptions: fixture.subs,
		StripeClient:  fixture.stripe,
		TxRunner:      &fakeTxRunner{},
		Metrics:       metrics.NewLedgerMetrics(prometheus.NewRegistry()),
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fixture.engine = eng
	return fixture
}

func paidSession(userID uuid.UUID, priceID string, kind catalog.ProductKind) *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:                "cs_test_" + uuid.NewString(),
		PaymentStatus:     stripe.CheckoutSessionPaymentStatusPaid,
		ClientReferenceID: userID.String(),
		Metadata: map[string]string{
			checkout.MetadataPriceID: priceID,
			checkout.MetadataKind:    string(kind),
		},
	}
}

func TestFulfillTokensCreditsWalletOnce(t *testing.T) {
	fixture := newEngineFixture(t)
	userID := uuid.New()
	session := paidSession(userID, "price_cc_tokens_60", catalog.ProductTokens)

	result, err := fixture.engine.FulfillSession(context.Background(), session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TokensAdded != 60 || result.NewBalance != 60 {
		t.Fatalf("expected {60, 60}, got %+v", result)
	}
	if result.AlreadyFulfilled {
		t.Fatal("first fulfillment must not be marked duplicate")
	}

	// Second call is the double-pull case: same result, no extra credit.
	repeat, err := fixture.engine.FulfillSession(context.Background(), session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repeat.AlreadyFulfilled {
		t.Fatal("expected duplicate fulfillment to be flagged")
	}
	if repeat.TokensAdded != 60 || repeat.NewBalance != 60 {
		t.Fatalf("expected same outcome on repeat, got %+v", repeat)
	}
	if len(fixture.ledger.entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(fixture.ledger.entries))
	}
}

func TestFulfillTokensHonorsQuantity(t *testing.T) {
	fixture := newEngineFixture(t)
	userID := uuid.New()
	session := paidSession(userID, "price_cc_tokens_60", catalog.ProductTokens)
	session.Metadata[checkout.MetadataQuantity] = "3"

	result, err := fixture.engine.FulfillSession(context.Background(), session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TokensAdded != 180 || result.NewBalance != 180 {
		t.Fatalf("expected 180 tokens, got %+v", result)
	}
}

func TestFulfillRejectsUnpaidSession(t *testing.T) {
	fixture := newEngineFixture(t)
	userID := uuid.New()
	session := paidSession(userID, "price_cc_tokens_60", catalog.ProductTokens)
	session.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid

	_, err := fixture.engine.FulfillSession(context.Background(), session)
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentIncomplete) {
		t.Fatalf("expected payment incomplete error, got %v", err)
	}
	if balance := fixture.wallets.balances[userID]; balance != 0 {
		t.Fatalf("expected no credit, balance is %d", balance)
	}
	if len(fixture.ledger.entries) != 0 {
		t.Fatal("expected no ledger entries")
	}
}

func TestFulfillRejectsMissingClientReference(t *testing.T) {
	fixture := newEngineFixture(t)
	session := paidSession(uuid.New(), "price_cc_tokens_60", catalog.ProductTokens)
	session.ClientReferenceID = ""

	_, err := fixture.engine.FulfillSession(context.Background(), session)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(fixture.ledger.entries) != 0 {
		t.Fatal("expected no ledger entries")
	}
}

func TestFulfillRejectsUnknownPrice(t *testing.T) {
	fixture := newEngineFixture(t)
	userID := uuid.New()
	session := paidSession(userID, "price_not_in_catalog", catalog.ProductTokens)

	_, err := fixture.engine.FulfillSession(context.Background(), session)
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnknownProduct) {
		t.Fatalf("expected unknown product error, got %v", err)
	}
	if balance := fixture.wallets.balances[userID]; balance != 0 {
		t.Fatalf("expected no credit, balance is %d", balance)
	}
}

func TestFulfillRaceResolvesToWinnerOutcome(t *testing.T) {
	fixture := newEngineFixture(t)
	userID := uuid.New()
	session := paidSession(userID, "price_cc_tokens_350", catalog.ProductTokens)

	if _, err := fixture.engine.FulfillSession(context.Background(), session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The losing path probed before the winner committed, so its probe
	// misses and its insert hits the unique session index.
	fixture.ledger.hideNextProbe = true
	result, err := fixture.engine.FulfillSession(context.Background(), session)
	if err != nil {
		t.Fatalf("expected race to resolve, got %v", err)
	}
	if !result.AlreadyFulfilled || result.TokensAdded != 350 {
		t.Fatalf("expected winner outcome, got %+v", result)
	}
	if balance := fixture.wallets.balances[userID]; balance != 350 {
		t.Fatalf("expected single credit, balance is %d", balance)
	}
}

func TestFulfillTipLeavesWalletUntouched(t *testing.T) {
	fixture := newEngineFixture(t)
	sender := uuid.New()
	receiver := uuid.New()
	session := paidSession(sender, "price_cc_tip_gold", catalog.ProductTip)
	session.Metadata[checkout.MetadataReceiver] = receiver.String()

	result, err := fixture.engine.FulfillSession(context.Background(), session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != catalog.ProductTip || result.TokensAdded != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if balance := fixture.wallets.balances[sender]; balance != 0 {
		t.Fatalf("tip must not touch the payer wallet, balance is %d", balance)
	}

	if len(fixture.tips.tips) != 1 {
		t.Fatalf("expected one tip, got %d", len(fixture.tips.tips))
	}
	tip := fixture.tips.tips[0]
	if tip.SenderUserID != sender || tip.ReceiverUserID != receiver || tip.AmountCents != 999 {
		t.Fatalf("unexpected tip: %+v", tip)
	}

	if len(fixture.ledger.entries) != 2 {
		t.Fatalf("expected sent and received audit entries, got %d", len(fixture.ledger.entries))
	}
	sent, received := fixture.ledger.entries[0], fixture.ledger.entries[1]
	if sent.Kind != enums.TransactionKindTipSent || sent.Amount != -999 || sent.StripeSessionID == nil {
		t.Fatalf("unexpected sent entry: %+v", sent)
	}
	if received.Kind != enums.TransactionKindTipReceived || received.Amount != 999 || received.UserID != receiver {
		t.Fatalf("unexpected received entry: %+v", received)
	}
}

func TestFulfillTipMissingReceiverRejected(t *testing.T) {
	fixture := newEngineFixture(t)
	session := paidSession(uuid.New(), "price_cc_tip_bronze", catalog.ProductTip)

	_, err := fixture.engine.FulfillSession(context.Background(), session)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(fixture.tips.tips) != 0 {
		t.Fatal("expected no tip recorded")
	}
}

func TestFulfillSubscriptionSyncs(t *testing.T) {
	fixture := newEngineFixture(t)
	userID := uuid.New()
	session := paidSession(userID, "price_cc_sub_super_fan", catalog.ProductSubscription)
	session.Subscription = &stripe.Subscription{ID: "sub_test_123"}

	result, err := fixture.engine.FulfillSession(context.Background(), session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != catalog.ProductSubscription {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(fixture.subs.calls) != 1 {
		t.Fatalf("expected one sync call, got %d", len(fixture.subs.calls))
	}
	call := fixture.subs.calls[0]
	if call.userID != userID || call.tier != enums.SubscriptionTierSuperFan || call.subscriptionID != "sub_test_123" {
		t.Fatalf("unexpected sync call: %+v", call)
	}
}

func TestFulfillAvatarUnlocksItem(t *testing.T) {
	fixture := newEngineFixture(t)
	userID := uuid.New()
	session := paidSession(userID, "price_cc_avatar_gold_crown", catalog.ProductAvatar)

	result, err := fixture.engine.FulfillSession(context.Background(), session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != catalog.ProductAvatar {
		t.Fatalf("unexpected result: %+v", result)
	}
	owned, err := fixture.items.Has(context.Background(), userID, "gold_crown")
	if err != nil || !owned {
		t.Fatalf("expected item unlocked, owned=%t err=%v", owned, err)
	}
	if len(fixture.ledger.entries) != 1 || fixture.ledger.entries[0].Kind != enums.TransactionKindAvatarCustomize {
		t.Fatalf("expected avatar audit entry, got %+v", fixture.ledger.entries)
	}
}

func TestFulfillBySessionIDOwnershipAndRetry(t *testing.T) {
	fixture := newEngineFixture(t)
	owner := uuid.New()
	session := paidSession(owner, "price_cc_tokens_60", catalog.ProductTokens)
	fixture.stripe.sessions[session.ID] = session
	fixture.stripe.failures = 2

	result, err := fixture.engine.FulfillBySessionID(context.Background(), owner, session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TokensAdded != 60 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if fixture.stripe.getCalls != 3 {
		t.Fatalf("expected two retries before success, got %d calls", fixture.stripe.getCalls)
	}

	_, err = fixture.engine.FulfillBySessionID(context.Background(), uuid.New(), session.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for foreign session, got %v", err)
	}
}

func TestConcurrentUsersFulfillIndependently(t *testing.T) {
	fixture := newEngineFixture(t)
	alice := uuid.New()
	bob := uuid.New()

	if _, err := fixture.engine.FulfillSession(context.Background(), paidSession(alice, "price_cc_tokens_60", catalog.ProductTokens)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := fixture.engine.FulfillSession(context.Background(), paidSession(bob, "price_cc_tokens_350", catalog.ProductTokens)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fixture.wallets.balances[alice] != 60 || fixture.wallets.balances[bob] != 350 {
		t.Fatalf("balances crossed: alice=%d bob=%d", fixture.wallets.balances[alice], fixture.wallets.balances[bob])
	}
}

func TestSyncRenewal(t *testing.T) {
	fixture := newEngineFixture(t)

	// Unknown subscription renewals are acknowledged without side effects.
	if err := fixture.engine.SyncRenewal(context.Background(), "sub_never_seen"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fixture.subs.calls) != 0 {
		t.Fatal("expected no sync for unknown subscription")
	}

	userID := uuid.New()
	fixture.subs.byStripe = map[string]*models.Subscription{
		"sub_known": {UserID: userID, Tier: enums.SubscriptionTierFan, StripeSubscriptionID: "sub_known"},
	}
	if err := fixture.engine.SyncRenewal(context.Background(), "sub_known"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fixture.subs.calls) != 1 || fixture.subs.calls[0].userID != userID {
		t.Fatalf("expected sync for known subscription, got %+v", fixture.subs.calls)
	}
}
