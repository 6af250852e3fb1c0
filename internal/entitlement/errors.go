package entitlement

import "errors"

var (
	// ErrPremiumRequired indicates a premium-only item was requested on a free tier.
	ErrPremiumRequired = errors.New("premium plan required")
	// ErrFeatureDisabled indicates the feature area is switched off for this actor.
	ErrFeatureDisabled = errors.New("feature not available on this plan")
	// ErrOverCeiling indicates a quantity above the tier ceiling.
	ErrOverCeiling = errors.New("quantity exceeds plan ceiling")
)
