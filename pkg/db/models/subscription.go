package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/clipclash/clipclash-backend/pkg/enums"
)

// Subscription persists Stripe subscription state per user. The unique index
// on UserID enforces at most one record per user; renewals upsert in place.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	StripeCustomerID     string                   `gorm:"column:stripe_customer_id;not null"`
	StripeSubscriptionID string                   `gorm:"column:stripe_subscription_id;not null;index"`
	Tier                 enums.SubscriptionTier   `gorm:"column:tier;type:subscription_tier;not null"`
	Status               enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	CurrentPeriodStart   *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
