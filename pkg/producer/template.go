// Copyright 2025 Certen Protocol

package producer

import (
	"context"
	"time"

	"github.com/certen/sovereign-engine/pkg/event"
)

// TemplateProducer is a small, working example meant to be copied:
// rename it, pick a real domain, replace the placeholder payload. It is
// also used directly by unit tests that need a producer with known,
// trivial behavior.
type TemplateProducer struct{}

func (TemplateProducer) Name() string     { return "template" }
func (TemplateProducer) Domain() string   { return "events" }
func (TemplateProducer) Schedule() string { return "continuous" }

func (TemplateProducer) Collect(ctx context.Context) ([]any, error) {
	return []any{time.Now().UTC()}, nil
}

func (TemplateProducer) Normalize(ctx context.Context, raw []any) ([]Draft, error) {
	ts, _ := raw[0].(time.Time)
	return []Draft{{
		Type: string(event.TypeSignalEvents),
		Payload: event.SignalEventsPayload{
			Symbol:      "BTC-USD",
			EventName:   "template",
			ImpactScore: 0,
			ScheduledAt: ts,
		},
		ObservedAt: &ts,
	}}, nil
}
