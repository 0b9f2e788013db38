package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clipclash/clipclash-backend/api/middleware"
	"github.com/clipclash/clipclash-backend/api/responses"
	"github.com/clipclash/clipclash-backend/api/validators"
	"github.com/clipclash/clipclash-backend/internal/ledger"
	"github.com/clipclash/clipclash-backend/internal/spend"
	"github.com/clipclash/clipclash-backend/pkg/db/models"
	"github.com/clipclash/clipclash-backend/pkg/enums"
	pkgerrors "github.com/clipclash/clipclash-backend/pkg/errors"
	"github.com/clipclash/clipclash-backend/pkg/logger"
)

type walletReader interface {
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
}

// TransactionResponse is the public shape of one ledger entry.
type TransactionResponse struct {
	ID              uuid.UUID             `json:"id"`
	Amount          int64                 `json:"amount"`
	Kind            enums.TransactionKind `json:"kind"`
	StripeSessionID *string               `json:"stripe_session_id,omitempty"`
	VideoID         *uuid.UUID            `json:"video_id,omitempty"`
	BattleID        *uuid.UUID            `json:"battle_id,omitempty"`
	Description     string                `json:"description,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

func toTransactionResponses(entries []models.TokenTransaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, TransactionResponse{
			ID:              entry.ID,
			Amount:          entry.Amount,
			Kind:            entry.Kind,
			StripeSessionID: entry.StripeSessionID,
			VideoID:         entry.VideoID,
			BattleID:        entry.BattleID,
			Description:     entry.Description,
			CreatedAt:       entry.CreatedAt,
		})
	}
	return out
}

// GetWallet returns the caller's current token balance.
func GetWallet(wallets walletReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required"))
			return
		}

		balance, err := wallets.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"balance": balance})
	}
}

// ListTransactions returns the caller's ledger entries, newest first.
func ListTransactions(ledgerSvc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required"))
			return
		}

		writeTransactionPage(w, r, ledgerSvc, userID, logg)
	}
}

func writeTransactionPage(w http.ResponseWriter, r *http.Request, ledgerSvc ledger.Service, userID uuid.UUID, logg *logger.Logger) {
	kind, err := validators.QueryTransactionKind(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	limit, err := validators.QueryInt(r, "limit", 0)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	page, err := ledgerSvc.ListForUser(r.Context(), userID, ledger.ListFilter{
		Kind:   kind,
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	responses.WriteSuccess(w, map[string]any{
		"transactions": toTransactionResponses(page.Transactions),
		"next_cursor":  page.NextCursor,
	})
}

// SpendRequest is the body for POST /wallet/spend. The acting user comes
// from the bearer token, never from this body.
type SpendRequest struct {
	Amount      int64  `json:"amount" validate:"required,min=1"`
	Kind        string `json:"kind" validate:"required,oneof=vote boost"`
	Description string `json:"description,omitempty" validate:"omitempty,max=280"`
	VideoID     string `json:"video_id,omitempty" validate:"omitempty,uuid"`
	BattleID    string `json:"battle_id,omitempty" validate:"omitempty,uuid"`
}

// SpendTokens debits the caller's wallet for a vote or boost.
func SpendTokens(spendSvc spend.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required"))
			return
		}

		var req SpendRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, err := enums.ParseTransactionKind(req.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid spend kind"))
			return
		}

		input := spend.Input{
			Amount:      req.Amount,
			Kind:        kind,
			Description: req.Description,
		}
		if req.VideoID != "" {
			videoID, parseErr := uuid.Parse(req.VideoID)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid video id"))
				return
			}
			input.VideoID = &videoID
		}
		if req.BattleID != "" {
			battleID, parseErr := uuid.Parse(req.BattleID)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid battle id"))
				return
			}
			input.BattleID = &battleID
		}

		result, err := spendSvc.Spend(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"new_balance": result.NewBalance})
	}
}
