package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clipclash/clipclash-backend/api/responses"
	"github.com/clipclash/clipclash-backend/internal/ledger"
	pkgerrors "github.com/clipclash/clipclash-backend/pkg/errors"
	"github.com/clipclash/clipclash-backend/pkg/logger"
)

func pathUserID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "userId")
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid user id")
	}
	return userID, nil
}

// AdminGetWallet returns any user's balance. Sits behind the admin role gate.
func AdminGetWallet(wallets walletReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := pathUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := wallets.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"user_id": userID,
			"balance": balance,
		})
	}
}

// AdminListTransactions returns any user's ledger, newest first.
func AdminListTransactions(ledgerSvc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := pathUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeTransactionPage(w, r, ledgerSvc, userID, logg)
	}
}
