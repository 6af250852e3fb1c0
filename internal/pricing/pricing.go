package pricing

import (
	"fmt"
	"math"

	"studio-backend/internal/catalog"
	"studio-backend/internal/entitlement"
)

// Selection is the pricing engine's read-only view of a specification.
type Selection struct {
	Options    []string
	Flags      []string
	Quantities map[string]int
}

// Line is one step of a quote breakdown.
type Line struct {
	Label  string `json:"label"`
	Kind   string `json:"kind"`
	Amount int    `json:"amount"`
}

// Quote is the computed, integer, floor-clamped cost of a specification.
// It is derived, never stored; callers recompute on every mutation.
type Quote struct {
	Credits   int    `json:"credits"`
	Floor     int    `json:"floor"`
	Breakdown []Line `json:"breakdown,omitempty"`
}

// ComputeQuote prices a selection against a module descriptor.
//
// The rounding discipline is ceil-after-each-multiplicative-step: the
// running total is rounded up after every multiplier so no fractional
// credits accumulate. Multipliers apply in the descriptor's declared
// order, never selection order, so a selection is priced as a set.
// Bucket surcharges and flat adds are summed after all multiplicative
// steps, then the result is clamped to the module floor. Identical
// inputs always yield identical quotes.
func ComputeQuote(sel Selection, desc catalog.ModuleDescriptor, ent entitlement.Context) (Quote, error) {
	gate := entitlement.NewGate(ent)

	selected := make(map[string]bool, len(sel.Options))
	for _, id := range sel.Options {
		if _, ok := desc.OptionByID(id); !ok {
			return Quote{}, fmt.Errorf("%w: %s", ErrUnknownOption, id)
		}
		selected[id] = true
	}

	cost := desc.BaseCost
	breakdown := []Line{{Label: "base", Kind: "base", Amount: cost}}

	flatAdds := 0
	for _, opt := range desc.Options {
		if !selected[opt.ID] {
			continue
		}
		if err := gate.Allows(entitlement.Gated{PremiumOnly: opt.PremiumOnly, FeatureArea: opt.FeatureArea}); err != nil {
			return Quote{}, fmt.Errorf("option %s: %w", opt.ID, err)
		}
		if opt.Multiplier > 0 && opt.Multiplier != 1 {
			cost = ceilMul(cost, opt.Multiplier)
			breakdown = append(breakdown, Line{Label: opt.Label, Kind: "category", Amount: cost})
		}
		if opt.FlatAdd != 0 {
			flatAdds += opt.FlatAdd
			breakdown = append(breakdown, Line{Label: opt.Label, Kind: "flat", Amount: opt.FlatAdd})
		}
	}

	for _, f := range desc.Flags {
		if !contains(sel.Flags, f.ID) {
			continue
		}
		if err := gate.Allows(entitlement.Gated{PremiumOnly: f.PremiumOnly, FeatureArea: f.FeatureArea}); err != nil {
			return Quote{}, fmt.Errorf("flag %s: %w", f.ID, err)
		}
		if f.Multiplier > 0 && f.Multiplier != 1 {
			cost = ceilMul(cost, f.Multiplier)
			breakdown = append(breakdown, Line{Label: f.Label, Kind: "flag", Amount: cost})
		}
		if f.FlatAdd != 0 {
			flatAdds += f.FlatAdd
			breakdown = append(breakdown, Line{Label: f.Label, Kind: "flat", Amount: f.FlatAdd})
		}
	}

	surcharge := 0
	for _, dim := range desc.QuantityDims {
		qty := sel.Quantities[dim.Field]
		excess := qty - dim.FreeThreshold
		if excess <= 0 || dim.BucketSize <= 0 {
			continue
		}
		buckets := (excess + dim.BucketSize - 1) / dim.BucketSize
		amount := int(math.Ceil(float64(buckets) * dim.PerBucketCost))
		surcharge += amount
		breakdown = append(breakdown, Line{Label: dim.Label, Kind: "quantity", Amount: amount})
	}

	total := cost + surcharge + flatAdds
	if total < 0 {
		total = 0
	}
	if total < desc.MinimumCost {
		total = desc.MinimumCost
		breakdown = append(breakdown, Line{Label: "minimum", Kind: "floor", Amount: total})
	}

	return Quote{Credits: total, Floor: desc.MinimumCost, Breakdown: breakdown}, nil
}

func ceilMul(cost int, multiplier float64) int {
	return int(math.Ceil(float64(cost) * multiplier))
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
