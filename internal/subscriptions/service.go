package subscriptions

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clipclash/clipclash-backend/pkg/db/models"
	"github.com/clipclash/clipclash-backend/pkg/enums"
	pkgerrors "github.com/clipclash/clipclash-backend/pkg/errors"
)

// Service keeps the local subscription records in sync with Stripe.
type Service interface {
	SyncFromStripe(ctx context.Context, tx *gorm.DB, userID uuid.UUID, tier enums.SubscriptionTier, subscriptionID string) (*models.Subscription, error)
	FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Subscription, error)
	GetForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo         Repository
	StripeClient StripeSubscriptionClient
}

type service struct {
	repo   Repository
	stripe StripeSubscriptionClient
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscriptions repo required")
	}
	if params.StripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &service{repo: params.Repo, stripe: params.StripeClient}, nil
}

// SyncFromStripe retrieves the subscription detail from Stripe and upserts
// the user's record. Replayed events land on the same row, so the sync is
// safe to run any number of times.
func (s *service) SyncFromStripe(ctx context.Context, tx *gorm.DB, userID uuid.UUID, tier enums.SubscriptionTier, subscriptionID string) (*models.Subscription, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe subscription id is required")
	}

	sub, err := s.stripe.Get(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve subscription from stripe")
	}

	record, err := mapStripeSubscription(userID, tier, sub)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "map stripe subscription")
	}
	if err := s.repo.WithTx(tx).Upsert(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *service) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe subscription id is required")
	}
	return s.repo.FindByStripeSubscriptionID(ctx, subscriptionID)
}

func (s *service) GetForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.FindByUser(ctx, userID)
}
