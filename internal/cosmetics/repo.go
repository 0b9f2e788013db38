package cosmetics

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clipclash/clipclash-backend/pkg/db"
	"github.com/clipclash/clipclash-backend/pkg/db/models"
)

// Repository manages avatar cosmetic unlocks. Unlocks are idempotent: a
// user owning an item already is success, not a conflict.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Unlock(ctx context.Context, unlock *models.AvatarUnlock) error
	Has(ctx context.Context, userID uuid.UUID, itemKey string) (bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.AvatarUnlock, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a cosmetics repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Unlock(ctx context.Context, unlock *models.AvatarUnlock) error {
	err := r.db.WithContext(ctx).Create(unlock).Error
	if err != nil && db.IsUniqueViolation(err) {
		return nil
	}
	return err
}

func (r *repository) Has(ctx context.Context, userID uuid.UUID, itemKey string) (bool, error) {
	var unlock models.AvatarUnlock
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND item_key = ?", userID, itemKey).
		First(&unlock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.AvatarUnlock, error) {
	var unlocks []models.AvatarUnlock
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&unlocks).Error; err != nil {
		return nil, err
	}
	return unlocks, nil
}
