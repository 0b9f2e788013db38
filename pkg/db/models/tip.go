package models

import (
	"time"

	"github.com/google/uuid"
)

// Tip records one completed tip checkout. Amounts are minor currency units;
// the payer's token wallet is never involved. StripeSessionID is unique so a
// redelivered completion signal cannot double-record the tip.
type Tip struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SenderUserID    uuid.UUID `gorm:"column:sender_user_id;type:uuid;not null;index"`
	ReceiverUserID  uuid.UUID `gorm:"column:receiver_user_id;type:uuid;not null;index"`
	AmountCents     int64     `gorm:"column:amount_cents;not null"`
	Tier            string    `gorm:"column:tier;not null;default:''"`
	StripeSessionID string    `gorm:"column:stripe_session_id;not null;uniqueIndex"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}
