// Copyright 2025 Certen Protocol
//
// Package database provides sentinel errors for repository operations.
// Explicit errors instead of nil, nil returns.

package database

import "errors"

// Sentinel errors for database operations.
var (
	// ErrNotFound is returned when a requested entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrPositionNotFound is returned when a position row is not found.
	ErrPositionNotFound = errors.New("position not found")

	// ErrOrderNotFound is returned when an order row is not found.
	ErrOrderNotFound = errors.New("order not found")

	// ErrConvictionNotFound is returned when a conviction row is not found.
	ErrConvictionNotFound = errors.New("conviction not found")

	// ErrKarmaIntentNotFound is returned when a karma intent row is not found.
	ErrKarmaIntentNotFound = errors.New("karma intent not found")

	// ErrContributorNotFound is returned when a contributor row is not found.
	ErrContributorNotFound = errors.New("contributor not found")

	// ErrDuplicateIdempotencyKey is returned when an order's idempotency_key
	// already exists with different parameters (never on an exact retry —
	// that case returns the prior result instead).
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used with different parameters")

	// ErrDuplicateContributor is returned when registering a node_id that
	// is already registered.
	ErrDuplicateContributor = errors.New("contributor already registered for this node_id")
)
