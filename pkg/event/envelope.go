// Copyright 2025 Certen Protocol

package event

import (
	"encoding/json"
	"time"
)

// Envelope is the immutable record stored by the journal. Once
// committed, an Envelope is never mutated.
type Envelope struct {
	ID            string          `json:"id"`
	Type          Type            `json:"type"`
	Ts            time.Time       `json:"ts"`
	ObservedAt    *time.Time      `json:"observed_at,omitempty"`
	Source        string          `json:"source,omitempty"`
	TraceID       string          `json:"trace_id,omitempty"`
	SchemaVersion string          `json:"schema_version"`
	DedupeKey     string          `json:"dedupe_key,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	PrevHash      string          `json:"prev_hash"`
	Hash          string          `json:"hash"`
}

// DraftEvent is what a producer or pipeline stage constructs before the
// journal commits it. The journal — not the caller — assigns ID, Ts (if
// unset), PrevHash, and Hash.
type DraftEvent struct {
	Type          Type
	Payload       any
	ObservedAt    *time.Time
	Source        string
	TraceID       string
	SchemaVersion string
	DedupeKey     string
	Ts            *time.Time
}

// EffectiveSchemaVersion returns d.SchemaVersion or the default "v1".
func (d DraftEvent) EffectiveSchemaVersion() string {
	if d.SchemaVersion == "" {
		return "v1"
	}
	return d.SchemaVersion
}

// DecodePayload unmarshals the envelope's payload into dst.
func (e *Envelope) DecodePayload(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}
