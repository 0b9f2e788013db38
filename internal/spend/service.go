package spend

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clipclash/clipclash-backend/internal/ledger"
	"github.com/clipclash/clipclash-backend/internal/wallet"
	"github.com/clipclash/clipclash-backend/pkg/enums"
	pkgerrors "github.com/clipclash/clipclash-backend/pkg/errors"
	"github.com/clipclash/clipclash-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Input describes one spend request. The acting user is never part of the
// input; identity always comes from the verified bearer token.
type Input struct {
	Amount      int64
	Kind        enums.TransactionKind
	Description string
	VideoID     *uuid.UUID
	BattleID    *uuid.UUID
}

// Result reports the balance after a successful spend.
type Result struct {
	NewBalance int64
}

// Service authorizes token spends for votes and boosts.
type Service interface {
	Spend(ctx context.Context, actorUserID uuid.UUID, input Input) (*Result, error)
}

// ServiceParams groups dependencies for the spend service.
type ServiceParams struct {
	Wallets  wallet.Repository
	Ledger   ledger.Service
	TxRunner txRunner
	Metrics  *metrics.LedgerMetrics
}

type service struct {
	wallets  wallet.Repository
	ledger   ledger.Service
	txRunner txRunner
	metrics  *metrics.LedgerMetrics
}

// NewService builds a spend service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet repo required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		wallets:  params.Wallets,
		ledger:   params.Ledger,
		txRunner: params.TxRunner,
		metrics:  params.Metrics,
	}, nil
}

// Spend debits the actor's wallet and appends the matching negative ledger
// entry in one transaction. An insufficient balance cancels both.
func (s *service) Spend(ctx context.Context, actorUserID uuid.UUID, input Input) (*Result, error) {
	if actorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required")
	}
	if input.Amount <= 0 {
		s.metrics.IncSpend(string(input.Kind), "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "spend amount must be positive")
	}
	if !input.Kind.IsSpend() {
		s.metrics.IncSpend(string(input.Kind), "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "kind must be a spendable transaction kind").
			WithDetails(map[string]string{"kind": string(input.Kind)})
	}

	result := &Result{}
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		newBalance, err := s.wallets.WithTx(tx).Debit(ctx, actorUserID, input.Amount)
		if err != nil {
			return err
		}
		result.NewBalance = newBalance

		_, err = s.ledger.AppendTx(ctx, tx, ledger.AppendInput{
			UserID:      actorUserID,
			Amount:      -input.Amount,
			Kind:        input.Kind,
			VideoID:     input.VideoID,
			BattleID:    input.BattleID,
			Description: input.Description,
		})
		return err
	})
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance) {
			s.metrics.IncSpend(string(input.Kind), "insufficient")
		} else {
			s.metrics.IncSpend(string(input.Kind), "error")
		}
		return nil, err
	}

	s.metrics.IncSpend(string(input.Kind), "spent")
	return result, nil
}
