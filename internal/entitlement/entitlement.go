package entitlement

import "strings"

// Tier is the actor's subscription level.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Context is a read-only per-actor entitlement snapshot. It is resolved once
// per request and treated as immutable for the duration of one interaction.
type Context struct {
	Tier     Tier            `json:"tier"`
	Features map[string]bool `json:"features"`
}

// Gated describes the entitlement requirements of a selectable item.
type Gated struct {
	PremiumOnly bool
	FeatureArea string
}

// Gate answers whether an option or quantity is permitted for one actor.
type Gate struct {
	ctx      Context
	ceilings map[string]map[Tier]int
}

// NewGate builds a Gate over the given context using the default ceilings.
func NewGate(ctx Context) *Gate {
	return &Gate{ctx: ctx, ceilings: defaultCeilings}
}

// Context returns the snapshot the gate was built over.
func (g *Gate) Context() Context { return g.ctx }

// Allows reports whether the gated item may be selected by this actor.
func (g *Gate) Allows(item Gated) error {
	if item.PremiumOnly && g.ctx.Tier != TierPremium {
		return ErrPremiumRequired
	}
	if area := strings.TrimSpace(item.FeatureArea); area != "" {
		if enabled, ok := g.ctx.Features[area]; ok && !enabled {
			return ErrFeatureDisabled
		}
	}
	return nil
}

// MaxAllowed returns the tier-dependent ceiling for a quantity kind.
// Unknown kinds are unlimited and report -1.
func (g *Gate) MaxAllowed(kind string) int {
	tiers, ok := g.ceilings[kind]
	if !ok {
		return -1
	}
	if max, ok := tiers[g.ctx.Tier]; ok {
		return max
	}
	if max, ok := tiers[TierFree]; ok {
		return max
	}
	return -1
}

// AllowQuantity rejects values above the tier ceiling for the given kind.
func (g *Gate) AllowQuantity(kind string, n int) error {
	max := g.MaxAllowed(kind)
	if max >= 0 && n > max {
		return ErrOverCeiling
	}
	return nil
}

// Quantity kinds with tier-dependent ceilings.
const (
	KindAttachments  = "attachments"
	KindAudienceSize = "audience_size"
	KindBatchSize    = "batch_size"
)

var defaultCeilings = map[string]map[Tier]int{
	KindAttachments:  {TierFree: 3, TierPremium: 10},
	KindAudienceSize: {TierFree: 1000, TierPremium: 100000},
	KindBatchSize:    {TierFree: 5, TierPremium: 50},
}
