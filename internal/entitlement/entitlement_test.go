package entitlement

import (
	"errors"
	"testing"
)

func TestGateRejectsPremiumOnlyForFreeTier(t *testing.T) {
	gate := NewGate(ForPlan("starter"))

	err := gate.Allows(Gated{PremiumOnly: true})
	if !errors.Is(err, ErrPremiumRequired) {
		t.Fatalf("expected ErrPremiumRequired, got %v", err)
	}

	if err := gate.Allows(Gated{PremiumOnly: false}); err != nil {
		t.Fatalf("expected free option to pass, got %v", err)
	}
}

func TestGateAllowsPremiumOnlyForPremiumTier(t *testing.T) {
	gate := NewGate(ForPlan("pro"))

	if err := gate.Allows(Gated{PremiumOnly: true}); err != nil {
		t.Fatalf("expected premium option to pass, got %v", err)
	}
}

func TestGateFeatureAreaDisabled(t *testing.T) {
	gate := NewGate(ForPlan("starter"))

	err := gate.Allows(Gated{FeatureArea: FeatureScheduling})
	if !errors.Is(err, ErrFeatureDisabled) {
		t.Fatalf("expected ErrFeatureDisabled, got %v", err)
	}
}

func TestGateQuantityCeilings(t *testing.T) {
	free := NewGate(ForPlan("starter"))
	premium := NewGate(ForPlan("pro"))

	if got := free.MaxAllowed(KindAttachments); got != 3 {
		t.Fatalf("free attachment ceiling: expected 3, got %d", got)
	}
	if got := premium.MaxAllowed(KindAttachments); got != 10 {
		t.Fatalf("premium attachment ceiling: expected 10, got %d", got)
	}

	if err := free.AllowQuantity(KindAttachments, 4); !errors.Is(err, ErrOverCeiling) {
		t.Fatalf("expected ErrOverCeiling, got %v", err)
	}
	if err := premium.AllowQuantity(KindAttachments, 4); err != nil {
		t.Fatalf("expected premium quantity to pass, got %v", err)
	}
}

func TestGateUnknownKindUnlimited(t *testing.T) {
	gate := NewGate(ForPlan("starter"))

	if got := gate.MaxAllowed("unknown_kind"); got != -1 {
		t.Fatalf("expected -1 for unknown kind, got %d", got)
	}
	if err := gate.AllowQuantity("unknown_kind", 1<<20); err != nil {
		t.Fatalf("expected unlimited kind to pass, got %v", err)
	}
}
