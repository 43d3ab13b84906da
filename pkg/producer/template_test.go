// Copyright 2025 Certen Protocol

package producer

import (
	"context"
	"testing"

	"github.com/certen/sovereign-engine/pkg/event"
)

func TestTemplateProducer_NormalizeProducesOneSignalEvent(t *testing.T) {
	p := TemplateProducer{}
	raw, err := p.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	drafts, err := p.Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("expected exactly one draft, got %d", len(drafts))
	}
	if drafts[0].Type != string(event.TypeSignalEvents) {
		t.Fatalf("expected a signal.events.v1 draft, got %q", drafts[0].Type)
	}
}

func TestTechnicalAnalysisProducer_CollectNoOpsWithoutEndpoint(t *testing.T) {
	t.Setenv("TA_URL", "")
	p := NewTechnicalAnalysisProducer([]string{"BTC-USD"})
	raw, err := p.Collect(context.Background())
	if err != nil {
		t.Fatalf("expected no error with an unset endpoint, got %v", err)
	}
	if raw != nil {
		t.Fatalf("expected a nil result with an unset endpoint, got %v", raw)
	}
}

func TestTechnicalAnalysisProducer_NormalizeUppercasesSymbolAndDedupes(t *testing.T) {
	p := NewTechnicalAnalysisProducer([]string{"btc-usd"})
	drafts, err := p.Normalize(context.Background(), []any{taRow{Symbol: "btc-usd", RSI14: 42}})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("expected one draft, got %d", len(drafts))
	}
	payload, ok := drafts[0].Payload.(event.SignalTAPayload)
	if !ok {
		t.Fatalf("expected a SignalTAPayload, got %T", drafts[0].Payload)
	}
	if payload.Symbol != "BTC-USD" {
		t.Fatalf("expected symbol normalized to upper case, got %q", payload.Symbol)
	}
	if drafts[0].DedupeKey == "" {
		t.Fatal("expected a non-empty dedupe key")
	}
}
