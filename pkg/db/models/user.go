package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a read-only projection of the identity provider's account record.
// This service never creates or authenticates users; it only needs id, email
// and display name so tip recipients can be resolved by email.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email       string    `gorm:"type:text;not null;uniqueIndex"`
	DisplayName string    `gorm:"column:display_name;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
