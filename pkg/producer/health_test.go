// Copyright 2025 Certen Protocol

package producer

import (
	"testing"
	"time"
)

func TestQuarantineDelay_GrowsExponentiallyAfterThreshold(t *testing.T) {
	atThreshold := quarantineDelay(FailureThreshold)
	onePast := quarantineDelay(FailureThreshold + 1)
	if onePast <= atThreshold {
		t.Fatalf("expected backoff to grow with more consecutive failures: at=%v past=%v", atThreshold, onePast)
	}
}

func TestQuarantineDelay_CapsAtMax(t *testing.T) {
	d := quarantineDelay(FailureThreshold + 30)
	if d != QuarantineMaxDelay {
		t.Fatalf("expected the delay to cap at %v, got %v", QuarantineMaxDelay, d)
	}
}

func TestHealthState_QuarantinedReflectsWindow(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	s := HealthState{QuarantinedUntil: &future}
	if !s.Quarantined(now) {
		t.Fatal("expected quarantined to be true while now is before QuarantinedUntil")
	}

	past := now.Add(-time.Hour)
	s2 := HealthState{QuarantinedUntil: &past}
	if s2.Quarantined(now) {
		t.Fatal("expected quarantined to be false once the window has elapsed")
	}
}

func TestHealthState_NilQuarantineIsNeverQuarantined(t *testing.T) {
	s := HealthState{}
	if s.Quarantined(time.Now()) {
		t.Fatal("expected a zero-value HealthState to never be quarantined")
	}
}
