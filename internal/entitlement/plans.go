package entitlement

import "strings"

// Feature areas declared by module descriptors.
const (
	FeatureMedia      = "media"
	FeatureScheduling = "scheduling"
	FeatureAnalytics  = "analytics"
	FeatureHR         = "hr"
)

// ForPlan maps a billing plan name to an entitlement snapshot.
// Unknown plans fall back to the free tier.
func ForPlan(plan string) Context {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case "pro", "premium", "business":
		return Context{
			Tier: TierPremium,
			Features: map[string]bool{
				FeatureMedia:      true,
				FeatureScheduling: true,
				FeatureAnalytics:  true,
				FeatureHR:         true,
			},
		}
	default:
		return Context{
			Tier: TierFree,
			Features: map[string]bool{
				FeatureMedia:      true,
				FeatureScheduling: false,
				FeatureAnalytics:  false,
				FeatureHR:         false,
			},
		}
	}
}
