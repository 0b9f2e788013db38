package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clipclash/clipclash-backend/pkg/enums"
)

// ProductKind discriminates what a catalog entry sells.
type ProductKind string

const (
	ProductTokens       ProductKind = "tokens"
	ProductTip          ProductKind = "tip"
	ProductSubscription ProductKind = "subscription"
	ProductAvatar       ProductKind = "avatar"
)

// IsValid reports whether the value is a known product kind.
func (k ProductKind) IsValid() bool {
	switch k {
	case ProductTokens, ProductTip, ProductSubscription, ProductAvatar:
		return true
	}
	return false
}

// Entry maps one Stripe price to what fulfilling it means. Exactly the
// fields for its Kind are set; the rest stay zero.
type Entry struct {
	PriceID          string                 `json:"price_id"`
	Kind             ProductKind            `json:"kind"`
	Tokens           int64                  `json:"tokens,omitempty"`
	AmountCents      int64                  `json:"amount_cents,omitempty"`
	TipTier          string                 `json:"tip_tier,omitempty"`
	SubscriptionTier enums.SubscriptionTier `json:"subscription_tier,omitempty"`
	ItemKey          string                 `json:"item_key,omitempty"`
}

// Catalog is the immutable price table shared by checkout and both
// fulfillment paths. Built once at startup; lookups are read-only.
type Catalog struct {
	entries map[string]Entry
}

func defaultEntries() []Entry {
	return []Entry{
		{PriceID: "price_cc_tokens_60", Kind: ProductTokens, Tokens: 60},
		{PriceID: "price_cc_tokens_350", Kind: ProductTokens, Tokens: 350},
		{PriceID: "price_cc_tokens_700", Kind: ProductTokens, Tokens: 700},
		{PriceID: "price_cc_tokens_1500", Kind: ProductTokens, Tokens: 1500},
		{PriceID: "price_cc_tip_bronze", Kind: ProductTip, AmountCents: 199, TipTier: "bronze"},
		{PriceID: "price_cc_tip_silver", Kind: ProductTip, AmountCents: 499, TipTier: "silver"},
		{PriceID: "price_cc_tip_gold", Kind: ProductTip, AmountCents: 999, TipTier: "gold"},
		{PriceID: "price_cc_sub_fan", Kind: ProductSubscription, SubscriptionTier: enums.SubscriptionTierFan},
		{PriceID: "price_cc_sub_super_fan", Kind: ProductSubscription, SubscriptionTier: enums.SubscriptionTierSuperFan},
		{PriceID: "price_cc_avatar_neon_frame", Kind: ProductAvatar, ItemKey: "neon_frame", AmountCents: 299},
		{PriceID: "price_cc_avatar_gold_crown", Kind: ProductAvatar, ItemKey: "gold_crown", AmountCents: 499},
	}
}

// New builds the catalog from the built-in defaults merged with optional
// JSON overrides (an array of entries). An override with a known price id
// replaces the default; a new price id extends the table.
func New(overridesJSON string) (*Catalog, error) {
	entries := make(map[string]Entry)
	for _, entry := range defaultEntries() {
		entries[entry.PriceID] = entry
	}

	if trimmed := strings.TrimSpace(overridesJSON); trimmed != "" {
		var overrides []Entry
		if err := json.Unmarshal([]byte(trimmed), &overrides); err != nil {
			return nil, fmt.Errorf("parse catalog overrides: %w", err)
		}
		for _, entry := range overrides {
			entries[entry.PriceID] = entry
		}
	}

	for _, entry := range entries {
		if err := validateEntry(entry); err != nil {
			return nil, err
		}
	}
	return &Catalog{entries: entries}, nil
}

func validateEntry(entry Entry) error {
	if strings.TrimSpace(entry.PriceID) == "" {
		return fmt.Errorf("catalog entry missing price id")
	}
	switch entry.Kind {
	case ProductTokens:
		if entry.Tokens <= 0 {
			return fmt.Errorf("catalog entry %s: token count must be positive", entry.PriceID)
		}
	case ProductTip:
		if entry.AmountCents <= 0 {
			return fmt.Errorf("catalog entry %s: tip amount must be positive", entry.PriceID)
		}
		if strings.TrimSpace(entry.TipTier) == "" {
			return fmt.Errorf("catalog entry %s: tip tier label required", entry.PriceID)
		}
	case ProductSubscription:
		if !entry.SubscriptionTier.IsValid() {
			return fmt.Errorf("catalog entry %s: invalid subscription tier %q", entry.PriceID, entry.SubscriptionTier)
		}
	case ProductAvatar:
		if strings.TrimSpace(entry.ItemKey) == "" {
			return fmt.Errorf("catalog entry %s: avatar item key required", entry.PriceID)
		}
		if entry.AmountCents <= 0 {
			return fmt.Errorf("catalog entry %s: avatar price must be positive", entry.PriceID)
		}
	default:
		return fmt.Errorf("catalog entry %s: unknown product kind %q", entry.PriceID, entry.Kind)
	}
	return nil
}

// Resolve looks up the entry for a Stripe price id.
func (c *Catalog) Resolve(priceID string) (Entry, bool) {
	entry, ok := c.entries[priceID]
	return entry, ok
}

// Len returns the number of priced products.
func (c *Catalog) Len() int {
	return len(c.entries)
}
