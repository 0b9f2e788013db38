package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clipclash/clipclash-backend/api/middleware"
	"github.com/clipclash/clipclash-backend/api/responses"
	"github.com/clipclash/clipclash-backend/api/validators"
	"github.com/clipclash/clipclash-backend/internal/tips"
	pkgerrors "github.com/clipclash/clipclash-backend/pkg/errors"
	"github.com/clipclash/clipclash-backend/pkg/logger"
)

// TipResponse is the public shape of one received tip.
type TipResponse struct {
	ID            uuid.UUID `json:"id"`
	SenderUserID  uuid.UUID `json:"sender_user_id"`
	AmountCents   int64     `json:"amount_cents"`
	DisplayAmount string    `json:"display_amount"`
	Tier          string    `json:"tier"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListReceivedTips returns tips sent to the caller, newest first.
func ListReceivedTips(tipsRepo tips.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required"))
			return
		}

		limit, err := validators.QueryInt(r, "limit", 0)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := tipsRepo.ListReceived(r.Context(), userID, limit, r.URL.Query().Get("cursor"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]TipResponse, 0, len(page.Tips))
		for _, tip := range page.Tips {
			out = append(out, TipResponse{
				ID:            tip.ID,
				SenderUserID:  tip.SenderUserID,
				AmountCents:   tip.AmountCents,
				DisplayAmount: tips.DisplayAmount(tip.AmountCents),
				Tier:          tip.Tier,
				CreatedAt:     tip.CreatedAt,
			})
		}
		responses.WriteSuccess(w, map[string]any{
			"tips":        out,
			"next_cursor": page.NextCursor,
		})
	}
}
