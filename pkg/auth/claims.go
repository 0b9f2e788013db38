package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clipclash/clipclash-backend/pkg/enums"
)

// AccessTokenClaims represents the typed JWT issued by the identity provider.
// This service only verifies and reads these claims; it never mints tokens
// for real clients.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Email  string         `json:"email,omitempty"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}
