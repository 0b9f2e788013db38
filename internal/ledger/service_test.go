package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clipclash/clipclash-backend/pkg/db/models"
	"github.com/clipclash/clipclash-backend/pkg/enums"
)

type fakeLedgerRepo struct {
	created []models.TokenTransaction
}

func (f *fakeLedgerRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeLedgerRepo) Create(ctx context.Context, entry *models.TokenTransaction) error {
	f.created = append(f.created, *entry)
	return nil
}

func (f *fakeLedgerRepo) FindByStripeSession(ctx context.Context, sessionID string) (*models.TokenTransaction, error) {
	for i := range f.created {
		if f.created[i].StripeSessionID != nil && *f.created[i].StripeSessionID == sessionID {
			return &f.created[i], nil
		}
	}
	return nil, nil
}

func (f *fakeLedgerRepo) ListForUser(ctx context.Context, userID uuid.UUID, filter ListFilter) (*Page, error) {
	return &Page{}, nil
}

func TestServiceAppendTxRecordsEntry(t *testing.T) {
	repo := &fakeLedgerRepo{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sessionID := "cs_test_append"
	entry, err := svc.AppendTx(context.Background(), nil, AppendInput{
		UserID:          uuid.New(),
		Amount:          60,
		Kind:            enums.TransactionKindPurchase,
		StripeSessionID: &sessionID,
		Description:     "60 token pack",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.ID == uuid.Nil {
		t.Fatal("expected entry id to be assigned")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one created entry, got %d", len(repo.created))
	}
}

func TestServiceAppendTxValidation(t *testing.T) {
	svc, err := NewService(&fakeLedgerRepo{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	blank := "  "
	cases := []struct {
		name  string
		input AppendInput
	}{
		{name: "missing user", input: AppendInput{Amount: 10, Kind: enums.TransactionKindPurchase}},
		{name: "zero amount", input: AppendInput{UserID: uuid.New(), Kind: enums.TransactionKindPurchase}},
		{name: "unknown kind", input: AppendInput{UserID: uuid.New(), Amount: 10, Kind: enums.TransactionKind("refund")}},
		{name: "blank session", input: AppendInput{UserID: uuid.New(), Amount: 10, Kind: enums.TransactionKindPurchase, StripeSessionID: &blank}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.AppendTx(context.Background(), nil, tc.input); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestServiceRequiresRepository(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatal("expected error when repository is missing")
	}
}
