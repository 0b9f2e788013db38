package fulfillment

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/clipclash/clipclash-backend/internal/catalog"
	"github.com/clipclash/clipclash-backend/internal/checkout"
	"github.com/clipclash/clipclash-backend/internal/cosmetics"
	"github.com/clipclash/clipclash-backend/internal/ledger"
	"github.com/clipclash/clipclash-backend/internal/subscriptions"
	"github.com/clipclash/clipclash-backend/internal/tips"
	"github.com/clipclash/clipclash-backend/internal/wallet"
	"github.com/clipclash/clipclash-backend/pkg/db"
	"github.com/clipclash/clipclash-backend/pkg/db/models"
	"github.com/clipclash/clipclash-backend/pkg/enums"
	pkgerrors "github.com/clipclash/clipclash-backend/pkg/errors"
	"github.com/clipclash/clipclash-backend/pkg/logger"
	"github.com/clipclash/clipclash-backend/pkg/metrics"
)

const (
	retrieveMaxRetries     = 3
	retrieveInitialBackoff = 200 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Result describes what fulfilling a session did, shaped for the success
// screen: how many tokens landed and where the balance ended up.
type Result struct {
	Kind             catalog.ProductKind
	TokensAdded      int64
	NewBalance       int64
	AlreadyFulfilled bool
}

// Engine runs the shared fulfillment algorithm. The webhook push path and
// the redirect pull path both land here, and the unique session index on
// the ledger keeps the two from ever crediting twice.
type Engine interface {
	FulfillSession(ctx context.Context, session *stripe.CheckoutSession) (*Result, error)
	FulfillBySessionID(ctx context.Context, callerUserID uuid.UUID, sessionID string) (*Result, error)
	SyncRenewal(ctx context.Context, subscriptionID string) error
}

// EngineParams groups dependencies for the fulfillment engine.
type EngineParams struct {
	Catalog       *catalog.Catalog
	Ledger        ledger.Service
	Wallets       wallet.Repository
	Tips          tips.Repository
	Cosmetics     cosmetics.Repository
	Subscriptions subscriptions.Service
	StripeClient  checkout.StripeCheckoutClient
	TxRunner      txRunner
	Metrics       *metrics.LedgerMetrics
	Logger        *logger.Logger
}

type engine struct {
	catalog       *catalog.Catalog
	ledger        ledger.Service
	wallets       wallet.Repository
	tips          tips.Repository
	cosmetics     cosmetics.Repository
	subscriptions subscriptions.Service
	stripe        checkout.StripeCheckoutClient
	txRunner      txRunner
	metrics       *metrics.LedgerMetrics
	log           *logger.Logger
}

// NewEngine builds a fulfillment engine with the required dependencies.
func NewEngine(params EngineParams) (Engine, error) {
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet repo required")
	}
	if params.Tips == nil {
		return nil, fmt.Errorf("tips repo required")
	}
	if params.Cosmetics == nil {
		return nil, fmt.Errorf("cosmetics repo required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions service required")
	}
	if params.StripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &engine{
		catalog:       params.Catalog,
		ledger:        params.Ledger,
		wallets:       params.Wallets,
		tips:          params.Tips,
		cosmetics:     params.Cosmetics,
		subscriptions: params.Subscriptions,
		stripe:        params.StripeClient,
		txRunner:      params.TxRunner,
		metrics:       params.Metrics,
		log:           params.Logger,
	}, nil
}

// FulfillBySessionID is the pull path: the success redirect hands the
// client a session id and the client asks us to settle it. The session is
// re-read from Stripe so the client can never forge a paid state.
func (e *engine) FulfillBySessionID(ctx context.Context, callerUserID uuid.UUID, sessionID string) (*Result, error) {
	if callerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	session, err := e.retrieveSession(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve checkout session")
	}

	sessionUser, err := sessionUserID(session)
	if err != nil {
		return nil, err
	}
	if sessionUser != callerUserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "session belongs to another user")
	}

	return e.FulfillSession(ctx, session)
}

func (e *engine) retrieveSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	var session *stripe.CheckoutSession
	backoff := retry.WithMaxRetries(retrieveMaxRetries, retry.NewExponential(retrieveInitialBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		got, getErr := e.stripe.Get(ctx, sessionID)
		if getErr != nil {
			return retry.RetryableError(getErr)
		}
		session = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// FulfillSession settles one completed checkout session. Safe to call any
// number of times from either path; only the first call mutates state.
func (e *engine) FulfillSession(ctx context.Context, session *stripe.CheckoutSession) (*Result, error) {
	if session == nil || strings.TrimSpace(session.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session is required")
	}
	ctx = e.log.WithStripeSession(ctx, session.ID)

	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		e.count(catalog.ProductKind("unknown"), "not_paid")
		return nil, pkgerrors.New(pkgerrors.CodePaymentIncomplete, "checkout session is not paid").
			WithDetails(map[string]string{"payment_status": string(session.PaymentStatus)})
	}

	userID, err := sessionUserID(session)
	if err != nil {
		e.count(catalog.ProductKind("unknown"), "missing_user")
		return nil, err
	}
	ctx = e.log.WithUserID(ctx, userID.String())

	// A session fulfilled by the other path already has its outcome on
	// record; return it instead of erroring.
	if result, found, err := e.priorOutcome(ctx, session.ID, userID); err != nil {
		return nil, err
	} else if found {
		e.count(result.Kind, "duplicate")
		return result, nil
	}

	entry, ok := e.catalog.Resolve(session.Metadata[checkout.MetadataPriceID])
	if !ok {
		e.log.Warn(ctx, "checkout session references unknown price")
		e.count(catalog.ProductKind("unknown"), "unknown_product")
		return nil, pkgerrors.New(pkgerrors.CodeUnknownProduct, "no catalog entry for this session").
			WithDetails(map[string]string{"price_id": session.Metadata[checkout.MetadataPriceID]})
	}

	var result *Result
	switch entry.Kind {
	case catalog.ProductTokens:
		result, err = e.fulfillTokens(ctx, session, userID, entry)
	case catalog.ProductTip:
		result, err = e.fulfillTip(ctx, session, userID, entry)
	case catalog.ProductSubscription:
		result, err = e.fulfillSubscription(ctx, session, userID, entry)
	case catalog.ProductAvatar:
		result, err = e.fulfillAvatar(ctx, session, userID, entry)
	default:
		err = pkgerrors.New(pkgerrors.CodeUnknownProduct, "unhandled catalog kind").
			WithDetails(map[string]string{"kind": string(entry.Kind)})
	}
	if err != nil {
		// Losing the race against the other fulfillment path surfaces as
		// a unique violation on the session index; the winner's outcome
		// is the correct answer.
		if db.IsUniqueViolation(err) {
			if prior, found, probeErr := e.priorOutcome(ctx, session.ID, userID); probeErr == nil && found {
				e.count(entry.Kind, "duplicate")
				return prior, nil
			}
		}
		e.count(entry.Kind, "error")
		return nil, err
	}

	e.count(entry.Kind, "fulfilled")
	e.log.Info(ctx, "checkout session fulfilled")
	return result, nil
}

// priorOutcome rebuilds the Result a finished fulfillment produced, keyed
// by the session's ledger entry.
func (e *engine) priorOutcome(ctx context.Context, sessionID string, userID uuid.UUID) (*Result, bool, error) {
	prior, err := e.ledger.FindByStripeSession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if prior == nil {
		return nil, false, nil
	}

	result := &Result{AlreadyFulfilled: true}
	switch prior.Kind {
	case enums.TransactionKindPurchase:
		result.Kind = catalog.ProductTokens
		result.TokensAdded = prior.Amount
	case enums.TransactionKindTipSent:
		result.Kind = catalog.ProductTip
	case enums.TransactionKindAvatarCustomize:
		result.Kind = catalog.ProductAvatar
	default:
		result.Kind = catalog.ProductKind("unknown")
	}

	balance, err := e.wallets.Balance(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	result.NewBalance = balance
	return result, true, nil
}

func (e *engine) fulfillTokens(ctx context.Context, session *stripe.CheckoutSession, userID uuid.UUID, entry catalog.Entry) (*Result, error) {
	quantity := sessionQuantity(session)
	tokens := entry.Tokens * quantity

	result := &Result{Kind: catalog.ProductTokens, TokensAdded: tokens}
	sessionID := session.ID
	err := e.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		newBalance, err := e.wallets.WithTx(tx).Credit(ctx, userID, tokens)
		if err != nil {
			return err
		}
		result.NewBalance = newBalance

		_, err = e.ledger.AppendTx(ctx, tx, ledger.AppendInput{
			UserID:          userID,
			Amount:          tokens,
			Kind:            enums.TransactionKindPurchase,
			StripeSessionID: &sessionID,
			Description:     fmt.Sprintf("purchased %d tokens", tokens),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *engine) fulfillTip(ctx context.Context, session *stripe.CheckoutSession, senderID uuid.UUID, entry catalog.Entry) (*Result, error) {
	receiverRaw := session.Metadata[checkout.MetadataReceiver]
	receiverID, err := uuid.Parse(receiverRaw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tip session is missing its receiver").
			WithDetails(map[string]string{"receiver_user_id": receiverRaw})
	}

	sessionID := session.ID
	err = e.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		tip := &models.Tip{
			ID:              uuid.New(),
			SenderUserID:    senderID,
			ReceiverUserID:  receiverID,
			AmountCents:     entry.AmountCents,
			Tier:            entry.TipTier,
			StripeSessionID: sessionID,
		}
		if err := e.tips.WithTx(tx).Create(ctx, tip); err != nil {
			return err
		}

		// The payer's token wallet stays untouched; both entries are
		// money-denominated audit records.
		if _, err := e.ledger.AppendTx(ctx, tx, ledger.AppendInput{
			UserID:          senderID,
			Amount:          -entry.AmountCents,
			Kind:            enums.TransactionKindTipSent,
			StripeSessionID: &sessionID,
			Description:     fmt.Sprintf("sent a %s tip", entry.TipTier),
		}); err != nil {
			return err
		}
		_, err := e.ledger.AppendTx(ctx, tx, ledger.AppendInput{
			UserID:      receiverID,
			Amount:      entry.AmountCents,
			Kind:        enums.TransactionKindTipReceived,
			Description: fmt.Sprintf("received a %s tip", entry.TipTier),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	balance, err := e.wallets.Balance(ctx, senderID)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: catalog.ProductTip, NewBalance: balance}, nil
}

func (e *engine) fulfillSubscription(ctx context.Context, session *stripe.CheckoutSession, userID uuid.UUID, entry catalog.Entry) (*Result, error) {
	if session.Subscription == nil || session.Subscription.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription session has no subscription id")
	}
	if _, err := e.subscriptions.SyncFromStripe(ctx, nil, userID, entry.SubscriptionTier, session.Subscription.ID); err != nil {
		return nil, err
	}

	balance, err := e.wallets.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: catalog.ProductSubscription, NewBalance: balance}, nil
}

func (e *engine) fulfillAvatar(ctx context.Context, session *stripe.CheckoutSession, userID uuid.UUID, entry catalog.Entry) (*Result, error) {
	sessionID := session.ID
	err := e.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		unlock := &models.AvatarUnlock{
			ID:              uuid.New(),
			UserID:          userID,
			ItemKey:         entry.ItemKey,
			StripeSessionID: &sessionID,
		}
		if err := e.cosmetics.WithTx(tx).Unlock(ctx, unlock); err != nil {
			return err
		}

		_, err := e.ledger.AppendTx(ctx, tx, ledger.AppendInput{
			UserID:          userID,
			Amount:          -entry.AmountCents,
			Kind:            enums.TransactionKindAvatarCustomize,
			StripeSessionID: &sessionID,
			Description:     fmt.Sprintf("unlocked avatar item %s", entry.ItemKey),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	balance, err := e.wallets.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: catalog.ProductAvatar, NewBalance: balance}, nil
}

// SyncRenewal handles invoice.payment_succeeded: the renewed subscription
// is looked up locally and re-read from Stripe so the period bounds move
// forward. Renewals for subscriptions we never recorded are ignored.
func (e *engine) SyncRenewal(ctx context.Context, subscriptionID string) error {
	if strings.TrimSpace(subscriptionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}

	record, err := e.subscriptions.FindByStripeSubscriptionID(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if record == nil {
		e.log.Warn(e.log.WithField(ctx, "stripe_subscription_id", subscriptionID), "renewal for unknown subscription ignored")
		return nil
	}

	_, err = e.subscriptions.SyncFromStripe(ctx, nil, record.UserID, record.Tier, subscriptionID)
	return err
}

func (e *engine) count(kind catalog.ProductKind, outcome string) {
	e.metrics.IncFulfillment(string(kind), outcome)
}

// sessionUserID extracts the buyer from the session's client reference. A
// paid session without one cannot be credited to anybody.
func sessionUserID(session *stripe.CheckoutSession) (uuid.UUID, error) {
	userID, err := uuid.Parse(strings.TrimSpace(session.ClientReferenceID))
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "session has no usable client reference")
	}
	return userID, nil
}

func sessionQuantity(session *stripe.CheckoutSession) int64 {
	raw := session.Metadata[checkout.MetadataQuantity]
	if raw == "" {
		return 1
	}
	quantity, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || quantity < 1 {
		return 1
	}
	return quantity
}
