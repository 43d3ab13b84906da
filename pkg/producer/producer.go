// Copyright 2025 Certen Protocol
//
// Package producer hosts the sensory organs of the engine: small, isolated
// workers that observe the outside world, distill what they see into typed
// events, and append those events to the journal. The brain never reasons
// about anything a producer didn't see fit to publish.
//
// Every producer follows the same three-step observation protocol: collect
// raw facts, normalize them into the event contract, publish into the
// hash-chained journal. Runner implements the publish/run plumbing once so
// individual producers only ever implement Collect and Normalize.
package producer

import (
	"context"
	"time"
)

// Health is a producer's self-reported condition after a run.
type Health string

const (
	HealthOK       Health = "ok"
	HealthDegraded Health = "degraded"
	HealthStale    Health = "stale"
	HealthError    Health = "error"
)

// Producer is the sensory contract every data source implements. Name,
// Domain, and Schedule are static identity; Collect and Normalize are the
// only behavior a concrete producer supplies.
type Producer interface {
	Name() string
	Domain() string
	// Schedule is a cron expression, or "continuous" for producers the
	// scheduler runs back-to-back with no gap.
	Schedule() string

	// Collect gathers raw observations from the outside world (an HTTP
	// call, a websocket buffer drain, a file tail). It returns opaque
	// values Normalize alone knows how to interpret.
	Collect(ctx context.Context) ([]any, error)

	// Normalize turns raw observations into draft events ready to
	// append. It must not perform I/O.
	Normalize(ctx context.Context, raw []any) ([]Draft, error)
}

// Draft is a producer's output before it becomes a journal event: an event
// type paired with its payload, plus the provenance fields publish carries
// through untouched.
type Draft struct {
	Type       string
	Payload    any
	ObservedAt *time.Time
	DedupeKey  string
	TraceID    string
}

// Result summarizes one run of a producer, mirroring what the scheduler
// needs to decide whether to keep calling it.
type Result struct {
	Producer        string
	EventsPublished int
	Errors          []string
	Duration        time.Duration
	Timestamp       time.Time
	Health          Health
}
