package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clipclash/clipclash-backend/pkg/db/models"
	"github.com/clipclash/clipclash-backend/pkg/enums"
	"github.com/clipclash/clipclash-backend/pkg/pagination"
)

// ListFilter narrows a transaction listing.
type ListFilter struct {
	Kind   *enums.TransactionKind
	Limit  int
	Cursor string
}

// Page is one cursor-paginated slice of the transaction log, newest first.
type Page struct {
	Transactions []models.TokenTransaction
	NextCursor   string
}

// Repository manages the append-only token transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.TokenTransaction) error
	FindByStripeSession(ctx context.Context, sessionID string) (*models.TokenTransaction, error)
	ListForUser(ctx context.Context, userID uuid.UUID, filter ListFilter) (*Page, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.TokenTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByStripeSession returns the transaction recorded for a checkout
// session, or nil when the session has not been fulfilled yet.
func (r *repository) FindByStripeSession(ctx context.Context, sessionID string) (*models.TokenTransaction, error) {
	var entry models.TokenTransaction
	err := r.db.WithContext(ctx).
		Where("stripe_session_id = ?", sessionID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID, filter ListFilter) (*Page, error) {
	limit := pagination.NormalizeLimit(filter.Limit)

	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(filter.Limit))

	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}

	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.TokenTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	page := &Page{Transactions: rows}
	if len(rows) > limit {
		page.Transactions = rows[:limit]
		last := page.Transactions[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}
