package subscriptions

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/clipclash/clipclash-backend/pkg/db/models"
	"github.com/clipclash/clipclash-backend/pkg/enums"
)

// mapStripeStatus converts the processor's subscription status into the
// local enum. Stripe can add statuses; anything unrecognized falls back to
// canceled so an unknown state never grants benefits.
func mapStripeStatus(value stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch value {
	case stripe.SubscriptionStatusActive:
		return enums.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue:
		return enums.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return enums.SubscriptionStatusCanceled
	case stripe.SubscriptionStatusUnpaid:
		return enums.SubscriptionStatusUnpaid
	case stripe.SubscriptionStatusIncomplete:
		return enums.SubscriptionStatusIncomplete
	case stripe.SubscriptionStatusIncompleteExpired:
		return enums.SubscriptionStatusIncompleteExpired
	default:
		return enums.SubscriptionStatusCanceled
	}
}

// mapStripeSubscription projects the processor's subscription object onto
// the local record. Period bounds live on the subscription item since the
// processor moved them off the subscription envelope.
func mapStripeSubscription(userID uuid.UUID, tier enums.SubscriptionTier, sub *stripe.Subscription) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if !tier.IsValid() {
		return nil, fmt.Errorf("invalid subscription tier %q", tier)
	}
	if sub == nil {
		return nil, fmt.Errorf("stripe subscription is required")
	}

	record := &models.Subscription{
		ID:                   uuid.New(),
		UserID:               userID,
		StripeSubscriptionID: sub.ID,
		Tier:                 tier,
		Status:               mapStripeStatus(sub.Status),
	}
	if sub.Customer != nil {
		record.StripeCustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.CurrentPeriodStart > 0 {
			start := time.Unix(item.CurrentPeriodStart, 0).UTC()
			record.CurrentPeriodStart = &start
		}
		if item.CurrentPeriodEnd > 0 {
			end := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			record.CurrentPeriodEnd = &end
		}
	}
	return record, nil
}
