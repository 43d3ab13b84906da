// Copyright 2025 Certen Protocol

package journal

import "errors"

// Sentinel errors the journal surfaces; callers must check for these
// with errors.Is rather than string-matching.
var (
	// ErrDedupeConflict is returned when an append's dedupe_key already
	// exists with a different payload hash.
	ErrDedupeConflict = errors.New("journal: dedupe_conflict")

	// ErrIntegrityError is returned by Verify when a recomputed hash does
	// not match the stored hash, or the hash chain is broken.
	ErrIntegrityError = errors.New("journal: integrity_error")

	// ErrSchemaViolation is returned when a draft event fails basic shape
	// validation (empty type, nil payload).
	ErrSchemaViolation = errors.New("journal: schema_violation")

	// ErrEventNotFound is returned when a query by id finds no row.
	ErrEventNotFound = errors.New("journal: event not found")

	// ErrEmptyBatch is returned by BatchAppend when given no events.
	ErrEmptyBatch = errors.New("journal: batch must contain at least one event")
)
