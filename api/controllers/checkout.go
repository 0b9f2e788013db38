package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/clipclash/clipclash-backend/api/middleware"
	"github.com/clipclash/clipclash-backend/api/responses"
	"github.com/clipclash/clipclash-backend/api/validators"
	"github.com/clipclash/clipclash-backend/internal/checkout"
	"github.com/clipclash/clipclash-backend/internal/fulfillment"
	pkgerrors "github.com/clipclash/clipclash-backend/pkg/errors"
	"github.com/clipclash/clipclash-backend/pkg/logger"
)

// CreateSessionRequest is the body for POST /checkout/session. Tips name a
// receiver by id or email; every other product kind ignores those fields.
type CreateSessionRequest struct {
	PriceID        string `json:"price_id" validate:"required"`
	Quantity       int64  `json:"quantity,omitempty" validate:"omitempty,min=1"`
	ReceiverUserID string `json:"receiver_user_id,omitempty" validate:"omitempty,uuid"`
	ReceiverEmail  string `json:"receiver_email,omitempty" validate:"omitempty,email"`
}

// FulfillRequest is the body for POST /checkout/fulfill, the redirect-return
// pull path that races the webhook to the same session.
type FulfillRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// CreateCheckoutSession opens a Stripe checkout session for the caller.
func CreateCheckoutSession(checkoutSvc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required"))
			return
		}

		var req CreateSessionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkout.CreateSessionInput{
			PriceID:       req.PriceID,
			Quantity:      req.Quantity,
			ReceiverEmail: req.ReceiverEmail,
		}
		if req.ReceiverUserID != "" {
			receiverID, parseErr := uuid.Parse(req.ReceiverUserID)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid receiver user id"))
				return
			}
			input.ReceiverUserID = &receiverID
		}

		session, err := checkoutSvc.CreateSession(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{
			"session_id": session.SessionID,
			"url":        session.URL,
		})
	}
}

// FulfillCheckoutSession settles a completed session on the caller's return
// from Stripe. Safe to call any number of times for the same session.
func FulfillCheckoutSession(engine fulfillment.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required"))
			return
		}

		var req FulfillRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := engine.FulfillBySessionID(r.Context(), userID, req.SessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"kind":              result.Kind,
			"tokens_added":      result.TokensAdded,
			"new_balance":       result.NewBalance,
			"already_fulfilled": result.AlreadyFulfilled,
		})
	}
}
