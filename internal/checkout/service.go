package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/clipclash/clipclash-backend/internal/catalog"
	"github.com/clipclash/clipclash-backend/internal/users"
	pkgerrors "github.com/clipclash/clipclash-backend/pkg/errors"
)

// Metadata keys stamped onto every session so fulfillment never has to
// re-derive purchase intent from the price alone.
const (
	MetadataPriceID  = "price_id"
	MetadataKind     = "kind"
	MetadataQuantity = "quantity"
	MetadataReceiver = "receiver_user_id"
)

// CreateSessionInput captures a checkout request from an authenticated user.
type CreateSessionInput struct {
	PriceID        string
	Quantity       int64
	ReceiverUserID *uuid.UUID
	ReceiverEmail  string
}

// Session is what the client needs to hand off to Stripe's hosted page.
type Session struct {
	SessionID string
	URL       string
}

// Service starts Stripe checkout sessions for catalog products.
type Service interface {
	CreateSession(ctx context.Context, userID uuid.UUID, input CreateSessionInput) (*Session, error)
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Catalog      *catalog.Catalog
	Users        users.Repository
	StripeClient StripeCheckoutClient
	SuccessURL   string
	CancelURL    string
}

type service struct {
	catalog    *catalog.Catalog
	users      users.Repository
	stripe     StripeCheckoutClient
	successURL string
	cancelURL  string
}

// NewService builds a checkout service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repo required")
	}
	if params.StripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if strings.TrimSpace(params.SuccessURL) == "" || strings.TrimSpace(params.CancelURL) == "" {
		return nil, fmt.Errorf("success and cancel urls required")
	}
	return &service{
		catalog:    params.Catalog,
		users:      params.Users,
		stripe:     params.StripeClient,
		successURL: params.SuccessURL,
		cancelURL:  params.CancelURL,
	}, nil
}

func (s *service) CreateSession(ctx context.Context, userID uuid.UUID, input CreateSessionInput) (*Session, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required")
	}

	entry, ok := s.catalog.Resolve(input.PriceID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownProduct, "price is not in the catalog").
			WithDetails(map[string]string{"price_id": input.PriceID})
	}

	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	// Only token packs are quantity-priced; everything else is one unit.
	if entry.Kind != catalog.ProductTokens && quantity != 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity is only supported for token packs")
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(entry.PriceID), Quantity: stripe.Int64(quantity)},
		},
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(userID.String()),
	}
	if entry.Kind == catalog.ProductSubscription {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
	}
	params.AddMetadata(MetadataPriceID, entry.PriceID)
	params.AddMetadata(MetadataKind, string(entry.Kind))
	params.AddMetadata(MetadataQuantity, strconv.FormatInt(quantity, 10))

	if entry.Kind == catalog.ProductTip {
		receiverID, err := s.resolveReceiver(ctx, userID, input)
		if err != nil {
			return nil, err
		}
		params.AddMetadata(MetadataReceiver, receiverID.String())
	}

	created, err := s.stripe.Create(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe checkout session")
	}
	return &Session{SessionID: created.ID, URL: created.URL}, nil
}

// resolveReceiver turns the tip target into a user id. The target arrives
// as an id or as an email that is looked up against the identity
// projection; an email is never used as an id directly.
func (s *service) resolveReceiver(ctx context.Context, senderID uuid.UUID, input CreateSessionInput) (uuid.UUID, error) {
	var receiverID uuid.UUID

	switch {
	case input.ReceiverUserID != nil && *input.ReceiverUserID != uuid.Nil:
		user, err := s.users.FindByID(ctx, *input.ReceiverUserID)
		if err != nil {
			return uuid.Nil, err
		}
		receiverID = user.ID
	case strings.TrimSpace(input.ReceiverEmail) != "":
		user, err := s.users.FindByEmail(ctx, input.ReceiverEmail)
		if err != nil {
			return uuid.Nil, err
		}
		receiverID = user.ID
	default:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "tip requires a receiver user id or email")
	}

	if receiverID == senderID {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot tip yourself")
	}
	return receiverID, nil
}
