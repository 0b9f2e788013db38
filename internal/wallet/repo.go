package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clipclash/clipclash-backend/pkg/db"
	"github.com/clipclash/clipclash-backend/pkg/db/models"
	pkgerrors "github.com/clipclash/clipclash-backend/pkg/errors"
)

// Repository manages the durable per-user token balance. Credit and Debit
// must run on a repository bound to an open transaction (WithTx) so the
// balance change commits atomically with its ledger entry; both take a row
// lock on the wallet so concurrent mutations of one user serialize.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	Credit(ctx context.Context, userID uuid.UUID, amount int64) (int64, error)
	Debit(ctx context.Context, userID uuid.UUID, amount int64) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Balance reads the current balance without locking. A user with no wallet
// row has a balance of zero.
func (r *repository) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

// Credit adds tokens to the user's wallet, creating the row on first credit,
// and returns the new balance.
func (r *repository) Credit(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	wallet, err := r.lockWallet(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		created := &models.Wallet{ID: uuid.New(), UserID: userID, Balance: amount}
		createErr := r.db.WithContext(ctx).Create(created).Error
		if createErr == nil {
			return created.Balance, nil
		}
		if !db.IsUniqueViolation(createErr) {
			return 0, createErr
		}
		// Another transaction created the row first; lock the winner's row.
		wallet, err = r.lockWallet(ctx, userID)
	}
	if err != nil {
		return 0, err
	}

	newBalance := wallet.Balance + amount
	if err := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("id = ?", wallet.ID).
		Update("balance", newBalance).Error; err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Debit subtracts tokens from the user's wallet and returns the new balance.
// The balance never goes below zero; an oversized debit fails with
// INSUFFICIENT_BALANCE and leaves the row untouched.
func (r *repository) Debit(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	wallet, err := r.lockWallet(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "wallet has no balance").
			WithDetails(map[string]int64{"balance": 0, "requested": amount})
	}
	if err != nil {
		return 0, err
	}
	if wallet.Balance < amount {
		return 0, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "balance too low for spend").
			WithDetails(map[string]int64{"balance": wallet.Balance, "requested": amount})
	}

	newBalance := wallet.Balance - amount
	if err := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("id = ?", wallet.ID).
		Update("balance", newBalance).Error; err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *repository) lockWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}
