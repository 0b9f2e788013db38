package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/clipclash/clipclash-backend/pkg/enums"
)

// TokenTransaction is an immutable ledger entry. Wallet-affecting kinds
// (purchase, vote, boost) carry a signed token amount; tip and avatar
// entries record the paid amount in cents and leave the wallet untouched.
// StripeSessionID is the fulfillment idempotency key: the unique index
// guarantees at-most-once crediting when the push and pull paths race.
type TokenTransaction struct {
	ID              uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Amount          int64                 `gorm:"column:amount;not null"`
	Kind            enums.TransactionKind `gorm:"column:kind;type:transaction_kind;not null"`
	StripeSessionID *string               `gorm:"column:stripe_session_id;uniqueIndex"`
	VideoID         *uuid.UUID            `gorm:"column:video_id;type:uuid"`
	BattleID        *uuid.UUID            `gorm:"column:battle_id;type:uuid"`
	Description     string                `gorm:"column:description;not null;default:''"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
}
