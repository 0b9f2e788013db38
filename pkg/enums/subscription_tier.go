package enums

import "fmt"

// SubscriptionTier names the paid membership levels.
type SubscriptionTier string

const (
	SubscriptionTierFan      SubscriptionTier = "fan"
	SubscriptionTierSuperFan SubscriptionTier = "super_fan"
)

var validSubscriptionTiers = []SubscriptionTier{
	SubscriptionTierFan,
	SubscriptionTierSuperFan,
}

// IsValid reports whether the value is known.
func (t SubscriptionTier) IsValid() bool {
	for _, candidate := range validSubscriptionTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseSubscriptionTier converts raw input into a SubscriptionTier.
func ParseSubscriptionTier(value string) (SubscriptionTier, error) {
	for _, candidate := range validSubscriptionTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription tier %q", value)
}
