package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clipclash/clipclash-backend/pkg/db/models"
	"github.com/clipclash/clipclash-backend/pkg/enums"
)

// AppendInput captures the immutable data a ledger entry requires.
type AppendInput struct {
	UserID          uuid.UUID
	Amount          int64
	Kind            enums.TransactionKind
	StripeSessionID *string
	VideoID         *uuid.UUID
	BattleID        *uuid.UUID
	Description     string
}

// Service validates and records token transactions.
type Service interface {
	AppendTx(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.TokenTransaction, error)
	FindByStripeSession(ctx context.Context, sessionID string) (*models.TokenTransaction, error)
	ListForUser(ctx context.Context, userID uuid.UUID, filter ListFilter) (*Page, error)
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// AppendTx writes one entry inside the caller's transaction so it commits
// atomically with the balance change it describes.
func (s *service) AppendTx(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.TokenTransaction, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if input.Amount == 0 {
		return nil, fmt.Errorf("transaction amount must be non-zero")
	}
	if !input.Kind.IsValid() {
		return nil, fmt.Errorf("invalid transaction kind %q", input.Kind)
	}
	if input.StripeSessionID != nil && strings.TrimSpace(*input.StripeSessionID) == "" {
		return nil, fmt.Errorf("stripe session id must not be blank when set")
	}

	entry := &models.TokenTransaction{
		ID:              uuid.New(),
		UserID:          input.UserID,
		Amount:          input.Amount,
		Kind:            input.Kind,
		StripeSessionID: input.StripeSessionID,
		VideoID:         input.VideoID,
		BattleID:        input.BattleID,
		Description:     input.Description,
	}
	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) FindByStripeSession(ctx context.Context, sessionID string) (*models.TokenTransaction, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	return s.repo.FindByStripeSession(ctx, sessionID)
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, filter ListFilter) (*Page, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	return s.repo.ListForUser(ctx, userID, filter)
}
