package enums

import "fmt"

// TransactionKind maps to the transaction_kind enum in Postgres.
type TransactionKind string

const (
	TransactionKindPurchase        TransactionKind = "purchase"
	TransactionKindVote            TransactionKind = "vote"
	TransactionKindBoost           TransactionKind = "boost"
	TransactionKindTipSent         TransactionKind = "tip_sent"
	TransactionKindTipReceived     TransactionKind = "tip_received"
	TransactionKindAvatarCustomize TransactionKind = "avatar_customization"
)

var validTransactionKinds = []TransactionKind{
	TransactionKindPurchase,
	TransactionKindVote,
	TransactionKindBoost,
	TransactionKindTipSent,
	TransactionKindTipReceived,
	TransactionKindAvatarCustomize,
}

// String implements fmt.Stringer.
func (k TransactionKind) String() string {
	return string(k)
}

// IsValid reports whether the value matches the canonical transaction kind enum.
func (k TransactionKind) IsValid() bool {
	for _, candidate := range validTransactionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// IsSpend reports whether the kind is a wallet debit a user initiates directly.
func (k TransactionKind) IsSpend() bool {
	return k == TransactionKindVote || k == TransactionKindBoost
}

// ParseTransactionKind converts raw input into a TransactionKind.
func ParseTransactionKind(value string) (TransactionKind, error) {
	for _, candidate := range validTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction kind %q", value)
}
