package models

import (
	"time"

	"github.com/google/uuid"
)

// AvatarUnlock marks a cosmetic item as owned by a user.
type AvatarUnlock struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_avatar_unlocks_user_item"`
	ItemKey         string    `gorm:"column:item_key;not null;uniqueIndex:idx_avatar_unlocks_user_item"`
	StripeSessionID *string   `gorm:"column:stripe_session_id"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}
