// Copyright 2025 Certen Protocol

package producer

import (
	"context"
	"time"

	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/journal"
	"github.com/certen/sovereign-engine/pkg/metrics"
)

// FailureThreshold is the number of consecutive failed runs that
// quarantines a producer.
const FailureThreshold = 5

// QuarantineBaseDelay and QuarantineMaxDelay bound the exponential backoff
// applied once a producer is quarantined: base * 2^(failures-threshold),
// capped at max.
const (
	QuarantineBaseDelay = 1 * time.Minute
	QuarantineMaxDelay  = 2 * time.Hour
)

// HealthState is a producer's accumulated health as observed across runs.
type HealthState struct {
	Producer            string
	Domain              string
	Health              Health
	ConsecutiveFailures int
	LastError           string
	QuarantinedUntil    *time.Time
	QuarantinedReason   string
}

// Quarantined reports whether the producer is still inside its
// quarantine window at now.
func (h HealthState) Quarantined(now time.Time) bool {
	return h.QuarantinedUntil != nil && now.Before(*h.QuarantinedUntil)
}

// HealthTracker accumulates per-producer health across scheduler runs and
// journals a system.producer_health.v1 event whenever health changes in a
// way worth recording: a failure, a recovery, or a quarantine
// imposed/lifted. Tracker state itself is process-local and rebuilt from
// scratch on restart — a producer that was quarantined before a restart
// gets one more chance, which is the deliberate, simpler trade-off against
// replaying the full journal just to rehydrate a soft-fail counter.
type HealthTracker struct {
	journal *journal.Store
	state   map[string]*HealthState
	metrics *metrics.Registry
}

// NewHealthTracker builds an empty HealthTracker.
func NewHealthTracker(store *journal.Store) *HealthTracker {
	return &HealthTracker{journal: store, state: make(map[string]*HealthState)}
}

// SetMetrics attaches a metrics.Registry so every Record call reflects
// the producer's health gauge and consecutive-failure gauge. Optional.
func (t *HealthTracker) SetMetrics(reg *metrics.Registry) {
	t.metrics = reg
}

// healthOrdinal maps a Health value to the gauge scale pkg/metrics
// documents: 0=healthy, 1=degraded, 2=quarantined/error.
func healthOrdinal(h Health, quarantined bool) int {
	switch {
	case quarantined || h == HealthError:
		return 2
	case h == HealthDegraded:
		return 1
	default:
		return 0
	}
}

// Get returns the current health state for a producer, or a fresh
// HealthOK state if nothing has run yet.
func (t *HealthTracker) Get(name string) HealthState {
	if s, ok := t.state[name]; ok {
		return *s
	}
	return HealthState{Producer: name, Health: HealthOK}
}

// Record folds one producer Result into the tracker's state and journals
// a health event when the state materially changed.
func (t *HealthTracker) Record(ctx context.Context, domain string, res Result) error {
	s, ok := t.state[res.Producer]
	if !ok {
		s = &HealthState{Producer: res.Producer, Domain: domain, Health: HealthOK}
		t.state[res.Producer] = s
	}

	wasQuarantined := s.QuarantinedUntil != nil
	changed := false

	if res.Health == HealthError || res.Health == HealthDegraded {
		s.ConsecutiveFailures++
		s.LastError = lastOf(res.Errors)
		changed = true

		if s.ConsecutiveFailures >= FailureThreshold {
			until := res.Timestamp.Add(quarantineDelay(s.ConsecutiveFailures))
			s.QuarantinedUntil = &until
			s.QuarantinedReason = "consecutive_failures"
		}
	} else {
		if s.ConsecutiveFailures > 0 || wasQuarantined {
			changed = true
		}
		s.ConsecutiveFailures = 0
		s.LastError = ""
		s.QuarantinedUntil = nil
		s.QuarantinedReason = ""
	}
	s.Health = res.Health
	t.metrics.SetProducerHealth(s.Producer, s.Domain, healthOrdinal(s.Health, s.QuarantinedUntil != nil), s.ConsecutiveFailures)

	if !changed {
		return nil
	}

	_, err := t.journal.Append(ctx, event.DraftEvent{
		Type:   event.TypeSystemProducerHealth,
		Source: "producer.health_tracker",
		Payload: event.ProducerHealthPayload{
			Producer:            s.Producer,
			Domain:              s.Domain,
			Health:              string(s.Health),
			ConsecutiveFailures: s.ConsecutiveFailures,
			LastError:           s.LastError,
			QuarantinedUntil:    s.QuarantinedUntil,
			QuarantinedReason:   s.QuarantinedReason,
			EventsPublished:     res.EventsPublished,
			DurationMS:          res.Duration.Milliseconds(),
		},
	})
	return err
}

func quarantineDelay(consecutiveFailures int) time.Duration {
	k := consecutiveFailures - FailureThreshold
	if k < 0 {
		k = 0
	}
	if k > 20 {
		k = 20 // avoid overflow; this already dwarfs QuarantineMaxDelay
	}
	delay := QuarantineBaseDelay << k // base * 2^k
	if delay > QuarantineMaxDelay || delay <= 0 {
		return QuarantineMaxDelay
	}
	return delay
}

func lastOf(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	return errs[len(errs)-1]
}
