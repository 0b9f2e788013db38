package tips

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clipclash/clipclash-backend/pkg/db/models"
	"github.com/clipclash/clipclash-backend/pkg/pagination"
)

// Page is one cursor-paginated slice of received tips, newest first.
type Page struct {
	Tips       []models.Tip
	NextCursor string
}

// Repository manages the immutable tip records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, tip *models.Tip) error
	FindByStripeSession(ctx context.Context, sessionID string) (*models.Tip, error)
	ListReceived(ctx context.Context, receiverID uuid.UUID, limit int, cursor string) (*Page, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a tips repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, tip *models.Tip) error {
	return r.db.WithContext(ctx).Create(tip).Error
}

func (r *repository) FindByStripeSession(ctx context.Context, sessionID string) (*models.Tip, error) {
	var tip models.Tip
	err := r.db.WithContext(ctx).Where("stripe_session_id = ?", sessionID).First(&tip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tip, nil
}

func (r *repository) ListReceived(ctx context.Context, receiverID uuid.UUID, limit int, cursorValue string) (*Page, error) {
	normalized := pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).
		Where("receiver_user_id = ?", receiverID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit))

	cursor, err := pagination.ParseCursor(cursorValue)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Tip
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	page := &Page{Tips: rows}
	if len(rows) > normalized {
		page.Tips = rows[:normalized]
		last := page.Tips[normalized-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}
