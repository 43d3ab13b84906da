// Copyright 2025 Certen Protocol

package execution

import "testing"

func TestSizer_KellyFraction_HalfKellyDefault(t *testing.T) {
	s := NewSizer(DefaultKellyParams(), RiskLimits{MaxPositionPct: 0.10, MinPositionUSD: 10})
	f := s.KellyFraction()
	// p=0.55 b=1.2: full kelly = (1.2*0.55 - 0.45)/1.2 = 0.175, half = 0.0875
	if f < 0.087 || f > 0.088 {
		t.Fatalf("unexpected kelly fraction: %v", f)
	}
}

func TestSizer_SizeUSD_ScalesWithConviction(t *testing.T) {
	s := NewSizer(DefaultKellyParams(), RiskLimits{MaxPositionPct: 0.10, MinPositionUSD: 10})
	low := s.SizeUSD(100_000, 0.0, 0)
	high := s.SizeUSD(100_000, 1.0, 0)
	if !(high > low) {
		t.Fatalf("expected higher conviction to size larger: low=%v high=%v", low, high)
	}
}

func TestSizer_SizeUSD_CapsAtMaxPositionPct(t *testing.T) {
	s := NewSizer(KellyParams{P: 0.9, B: 2.0, FractionMultiplier: 1.0}, RiskLimits{MaxPositionPct: 0.05, MinPositionUSD: 10})
	size := s.SizeUSD(100_000, 1.0, 0)
	if size > 5_000.0+1e-6 {
		t.Fatalf("size %v exceeds 5%% cap of equity", size)
	}
}

func TestSizer_SizeUSD_BelowMinimumRejectsToZero(t *testing.T) {
	s := NewSizer(DefaultKellyParams(), RiskLimits{MaxPositionPct: 0.10, MinPositionUSD: 1_000_000})
	size := s.SizeUSD(100_000, 1.0, 0)
	if size != 0 {
		t.Fatalf("expected size below min_position_usd to reject to 0, got %v", size)
	}
}

func TestCorrelationAwareSizer_ThrottlesByHeatAndCorrelation(t *testing.T) {
	base := NewSizer(DefaultKellyParams(), RiskLimits{MaxPositionPct: 0.10, MinPositionUSD: 10})
	c := NewCorrelationAwareSizer(base)

	unthrottled := c.SizeUSD(100_000, 1.0, 0.0, 0.0, 0)
	throttled := c.SizeUSD(100_000, 1.0, 1.0, 1.0, 0)

	if throttled != 0 {
		t.Fatalf("fully correlated + fully hot portfolio should throttle to 0, got %v", throttled)
	}
	if unthrottled <= 0 {
		t.Fatalf("expected unthrottled size > 0, got %v", unthrottled)
	}
}
