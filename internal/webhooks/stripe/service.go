package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/clipclash/clipclash-backend/internal/fulfillment"
	pkgerrors "github.com/clipclash/clipclash-backend/pkg/errors"
	"github.com/clipclash/clipclash-backend/pkg/logger"
)

// ServiceParams groups dependencies for the Stripe event handler.
type ServiceParams struct {
	Engine fulfillment.Engine
	Logger *logger.Logger
}

// Service routes verified Stripe events into the fulfillment engine.
type Service struct {
	engine fulfillment.Engine
	log    *logger.Logger
}

// NewService builds the webhook event handler.
func NewService(params ServiceParams) (*Service, error) {
	if params.Engine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment engine required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{engine: params.Engine, log: params.Logger}, nil
}

// HandleEvent processes one verified event. Returning an error makes the
// controller respond 5xx so Stripe redelivers; the fulfillment engine's
// session index makes that redelivery harmless. Events that can never
// succeed are acknowledged instead so Stripe stops retrying them.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		_, err := s.engine.FulfillSession(ctx, &session)
		if err != nil && pkgerrors.HasCode(err, pkgerrors.CodeUnknownProduct) {
			// Redelivery cannot fix a price we do not sell; log and ack.
			s.log.Warn(s.log.WithStripeSession(ctx, session.ID), "acknowledged session for unknown product")
			return nil
		}
		return err
	case stripe.EventTypeInvoicePaymentSucceeded:
		subscriptionID := event.GetObjectValue("subscription")
		if subscriptionID == "" {
			s.log.Warn(ctx, "invoice event without subscription ignored")
			return nil
		}
		return s.engine.SyncRenewal(ctx, subscriptionID)
	default:
		return nil
	}
}
