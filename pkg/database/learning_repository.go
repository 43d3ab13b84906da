// Copyright 2025 Certen Protocol

package database

import (
	"context"
	"fmt"
	"time"
)

// LearningWeightRow is one domain's weight adjustment for one learning
// cycle, the row shape persisted to the learning_weights table.
type LearningWeightRow struct {
	CycleType  string
	Domain     string
	Previous   float64
	Delta      float64
	NewWeight  float64
	Applied    bool
	Reason     string
	RecordedAt time.Time
}

// LearningRepository persists the learning loop's per-domain weight
// deltas, keyed by cycle type, in the learning_weights table. The
// journal's learning.weight_adjustment.v1 event remains the event of
// record; this table is a queryable mirror.
type LearningRepository struct {
	client *Client
}

// NewLearningRepository builds a LearningRepository over client.
func NewLearningRepository(client *Client) *LearningRepository {
	return &LearningRepository{client: client}
}

// RecordWeights inserts one row per domain in rows within a single
// transaction, so a cycle's deltas are never partially visible.
func (r *LearningRepository) RecordWeights(ctx context.Context, rows []LearningWeightRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("learning repository: begin tx: %w", err)
	}
	defer tx.Rollback()

	const stmt = `
		INSERT INTO learning_weights (cycle_type, domain, previous, delta, new_weight, applied, reason, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, stmt,
			row.CycleType, row.Domain, row.Previous, row.Delta, row.NewWeight, row.Applied, row.Reason, row.RecordedAt,
		); err != nil {
			return fmt.Errorf("learning repository: insert %s/%s: %w", row.CycleType, row.Domain, err)
		}
	}

	return tx.Commit()
}

// LatestAppliedWeights returns the most recent applied weight per domain
// for cycleType, or an empty map if none have ever been applied.
func (r *LearningRepository) LatestAppliedWeights(ctx context.Context, cycleType string) (map[string]float64, error) {
	const query = `
		SELECT DISTINCT ON (domain) domain, new_weight
		FROM learning_weights
		WHERE cycle_type = $1 AND applied = TRUE
		ORDER BY domain, recorded_at DESC
	`
	rows, err := r.client.DB().QueryContext(ctx, query, cycleType)
	if err != nil {
		return nil, fmt.Errorf("learning repository: query latest weights: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var domain string
		var weight float64
		if err := rows.Scan(&domain, &weight); err != nil {
			return nil, fmt.Errorf("learning repository: scan latest weight: %w", err)
		}
		out[domain] = weight
	}
	return out, rows.Err()
}
