// Copyright 2025 Certen Protocol
//
// Package ratelimit implements the per-contributor signal anti-spam gate:
// an hourly cap, a daily quota, and a same-asset-direction duplicate
// cooldown. All three checks are backed by the contributor_signals
// table so no state is lost across a restart.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/certen/sovereign-engine/pkg/config"
	"github.com/certen/sovereign-engine/pkg/database"
)

// Result is the outcome of a Check call.
type Result struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

// counter is the subset of ContributorRepository the limiter needs,
// narrowed so tests can supply a fake without a live database.
type counter interface {
	CountSince(ctx context.Context, contributorID string, since time.Time) (int, error)
	CountDuplicates(ctx context.Context, contributorID, asset, direction string, since time.Time) (int, error)
}

// Limiter enforces the three anti-spam layers ahead of every signal
// submission.
type Limiter struct {
	repo  counter
	cfg   config.RateLimit
	clock func() time.Time
}

// New builds a Limiter over repo using cfg's configured caps.
func New(repo *database.ContributorRepository, cfg config.RateLimit) *Limiter {
	return &Limiter{repo: repo, cfg: cfg, clock: time.Now}
}

// Check reports whether contributorID may submit a signal for
// asset/direction right now. Call this before recording the submission —
// successful checks never themselves consume quota.
func (l *Limiter) Check(ctx context.Context, contributorID, asset, direction string) (Result, error) {
	now := l.clock().UTC()

	hourAgo := now.Add(-time.Hour)
	hourCount, err := l.repo.CountSince(ctx, contributorID, hourAgo)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: count hourly: %w", err)
	}
	if hourCount >= l.cfg.MaxPerHour {
		return Result{
			Allowed:    false,
			Reason:     fmt.Sprintf("rate limit: %d signals/hour exceeded", l.cfg.MaxPerHour),
			RetryAfter: time.Hour,
		}, nil
	}

	dayAgo := now.Add(-24 * time.Hour)
	dayCount, err := l.repo.CountSince(ctx, contributorID, dayAgo)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: count daily: %w", err)
	}
	if dayCount >= l.cfg.MaxPerDay {
		return Result{
			Allowed:    false,
			Reason:     fmt.Sprintf("daily quota: %d signals/day exceeded", l.cfg.MaxPerDay),
			RetryAfter: 24 * time.Hour,
		}, nil
	}

	if asset != "" && direction != "" && l.cfg.DuplicateWindowMinutes > 0 {
		window := time.Duration(l.cfg.DuplicateWindowMinutes) * time.Minute
		windowStart := now.Add(-window)
		dupCount, err := l.repo.CountDuplicates(ctx, contributorID, asset, direction, windowStart)
		if err != nil {
			return Result{}, fmt.Errorf("ratelimit: count duplicates: %w", err)
		}
		if dupCount > 0 {
			return Result{
				Allowed:    false,
				Reason:     fmt.Sprintf("duplicate: same asset+direction within %dmin window", l.cfg.DuplicateWindowMinutes),
				RetryAfter: window,
			}, nil
		}
	}

	return Result{Allowed: true}, nil
}
