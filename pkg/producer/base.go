// Copyright 2025 Certen Protocol

package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/journal"
)

// Runner wraps a Producer with the publish/run template method every
// producer shares: collect, normalize, append to the journal, and turn
// whatever went wrong into a Result instead of a panic reaching the
// scheduler.
type Runner struct {
	producer Producer
	journal  *journal.Store
	breaker  *CircuitBreaker
}

// NewRunner builds a Runner over a concrete Producer with no circuit
// breaker — Collect is called unconditionally.
func NewRunner(p Producer, store *journal.Store) *Runner {
	return &Runner{producer: p, journal: store}
}

// WithCircuitBreaker attaches a breaker guarding this producer's Collect
// calls, returning the same Runner for chaining.
func (r *Runner) WithCircuitBreaker(b *CircuitBreaker) *Runner {
	r.breaker = b
	return r
}

func (r *Runner) Name() string     { return r.producer.Name() }
func (r *Runner) Domain() string   { return r.producer.Domain() }
func (r *Runner) Schedule() string { return r.producer.Schedule() }

// publish appends every draft to the journal under the producer's own
// name as source. The journal remains the source of truth for ids and the
// hash chain; drafts carry no identity of their own.
func (r *Runner) publish(ctx context.Context, drafts []Draft) (int, error) {
	published := 0
	for _, d := range drafts {
		_, err := r.journal.Append(ctx, event.DraftEvent{
			Type:       event.Type(d.Type),
			Payload:    d.Payload,
			ObservedAt: d.ObservedAt,
			Source:     r.producer.Name(),
			TraceID:    d.TraceID,
			DedupeKey:  d.DedupeKey,
		})
		if err != nil {
			return published, fmt.Errorf("producer %s: append %s: %w", r.producer.Name(), d.Type, err)
		}
		published++
	}
	return published, nil
}

// Run executes one collect -> normalize -> publish cycle. A failure at any
// stage is isolated: it never escapes as a panic or a propagated error,
// only as a Result with Health=error and the failure recorded in Errors.
// This is the producer isolation boundary — one misbehaving data source
// must never take down a brain cycle for every other symbol.
func (r *Runner) Run(ctx context.Context) (res Result) {
	start := time.Now()
	res.Producer = r.producer.Name()
	res.Health = HealthOK

	defer func() {
		if rec := recover(); rec != nil {
			res.Health = HealthError
			res.Errors = append(res.Errors, fmt.Sprintf("panic: %v", rec))
		}
		res.Duration = time.Since(start)
		res.Timestamp = time.Now().UTC()
	}()

	if r.breaker != nil {
		if err := r.breaker.Allow(); err != nil {
			res.Health = HealthDegraded
			res.Errors = append(res.Errors, err.Error())
			return res
		}
	}

	raw, err := r.producer.Collect(ctx)
	if err != nil {
		if r.breaker != nil {
			r.breaker.RecordFailure()
		}
		res.Health = HealthError
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	if r.breaker != nil {
		r.breaker.RecordSuccess()
	}

	drafts, err := r.producer.Normalize(ctx, raw)
	if err != nil {
		res.Health = HealthError
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	published, err := r.publish(ctx, drafts)
	res.EventsPublished = published
	if err != nil {
		res.Health = HealthError
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	if published == 0 && len(drafts) == 0 {
		res.Health = HealthStale
	}
	return res
}
