// Copyright 2025 Certen Protocol

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Contributor is a registered signal contributor: a human curator, an
// autonomous agent, or a tester account.
type Contributor struct {
	ID           string
	NodeID       string
	Name         string
	Role         string
	Metadata     map[string]any
	RegisteredAt time.Time
}

// SignalRecord is one row of the contributor_signals ledger: a signal
// submission that passed the rate limiter and permission check.
type SignalRecord struct {
	ContributorID string
	EventID       string
	Asset         string
	Direction     string
	Score         *float64
	Accepted      bool
	Profitable    *bool
	CreatedAt     time.Time
}

// ContributorAggregate is the set of raw counters pkg/scoring composes
// into a ContributorScore, and pkg/ratelimit's window/duplicate checks
// both draw from the same contributor_signals table.
type ContributorAggregate struct {
	Submitted    int
	Accepted     int
	Profitable   int
	AvgScore     float64
	LastActiveAt time.Time
}

// ContributorRepository persists contributor registration and signal
// submission history. It is the authoritative store for this data —
// unlike the journal-mirrored learning_weights table, there is no event
// type this bookkeeping could be replayed from.
type ContributorRepository struct {
	client *Client
}

// NewContributorRepository builds a ContributorRepository over client.
func NewContributorRepository(client *Client) *ContributorRepository {
	return &ContributorRepository{client: client}
}

// Register inserts a new contributor and returns it with a generated ID.
// Registering an already-known node_id fails with ErrDuplicateContributor.
func (r *ContributorRepository) Register(ctx context.Context, nodeID, name, role string, metadata map[string]any) (*Contributor, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("contributor repository: marshal metadata: %w", err)
	}

	c := &Contributor{
		ID:           uuid.New().String(),
		NodeID:       nodeID,
		Name:         name,
		Role:         role,
		Metadata:     metadata,
		RegisteredAt: time.Now().UTC(),
	}

	const stmt = `
		INSERT INTO contributors (id, node_id, name, role, metadata, registered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	if _, err := r.client.DB().ExecContext(ctx, stmt, c.ID, c.NodeID, c.Name, c.Role, raw, c.RegisteredAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicateContributor
		}
		return nil, fmt.Errorf("contributor repository: register %s: %w", nodeID, err)
	}
	return c, nil
}

// Get fetches a contributor by ID, returning ErrContributorNotFound if
// none exists.
func (r *ContributorRepository) Get(ctx context.Context, contributorID string) (*Contributor, error) {
	const query = `
		SELECT id, node_id, name, role, metadata, registered_at
		FROM contributors WHERE id = $1
	`
	row := r.client.DB().QueryRowContext(ctx, query, contributorID)
	return scanContributor(row)
}

// List returns every registered contributor.
func (r *ContributorRepository) List(ctx context.Context) ([]Contributor, error) {
	const query = `SELECT id, node_id, name, role, metadata, registered_at FROM contributors`
	rows, err := r.client.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("contributor repository: list: %w", err)
	}
	defer rows.Close()

	var out []Contributor
	for rows.Next() {
		c, err := scanContributor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContributor(row rowScanner) (*Contributor, error) {
	var c Contributor
	var raw []byte
	if err := row.Scan(&c.ID, &c.NodeID, &c.Name, &c.Role, &raw, &c.RegisteredAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrContributorNotFound
		}
		return nil, fmt.Errorf("contributor repository: scan: %w", err)
	}
	c.Metadata = map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &c.Metadata)
	}
	return &c, nil
}

// RecordSignal inserts one accepted-submission row. Rejected submissions
// (denied by the rate limiter or the permission matrix) are never
// recorded, so successful checks never themselves consume quota.
func (r *ContributorRepository) RecordSignal(ctx context.Context, rec SignalRecord) error {
	const stmt = `
		INSERT INTO contributor_signals (contributor_id, event_id, signal_asset, signal_direction, signal_score, accepted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := r.client.DB().ExecContext(ctx, stmt,
		rec.ContributorID, rec.EventID, rec.Asset, rec.Direction, rec.Score, true, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("contributor repository: record signal: %w", err)
	}
	return nil
}

// RecordOutcome sets the profitable flag on an already-recorded signal,
// once the trade it led to has closed.
func (r *ContributorRepository) RecordOutcome(ctx context.Context, contributorID, eventID string, profitable bool) error {
	const stmt = `
		UPDATE contributor_signals SET profitable = $3
		WHERE contributor_id = $1 AND event_id = $2
	`
	_, err := r.client.DB().ExecContext(ctx, stmt, contributorID, eventID, profitable)
	if err != nil {
		return fmt.Errorf("contributor repository: record outcome: %w", err)
	}
	return nil
}

// CountSince counts rec.accepted submissions for contributorID at or
// after since — the window pkg/ratelimit checks hourly and daily caps
// against.
func (r *ContributorRepository) CountSince(ctx context.Context, contributorID string, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(1) FROM contributor_signals
		WHERE contributor_id = $1 AND created_at >= $2
	`
	var count int
	err := r.client.DB().QueryRowContext(ctx, query, contributorID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("contributor repository: count since: %w", err)
	}
	return count, nil
}

// CountDuplicates counts submissions of the same asset+direction for
// contributorID at or after since — pkg/ratelimit's diversity gate.
func (r *ContributorRepository) CountDuplicates(ctx context.Context, contributorID, asset, direction string, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(1) FROM contributor_signals
		WHERE contributor_id = $1 AND signal_asset = $2 AND signal_direction = $3 AND created_at >= $4
	`
	var count int
	err := r.client.DB().QueryRowContext(ctx, query, contributorID, asset, direction, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("contributor repository: count duplicates: %w", err)
	}
	return count, nil
}

// Aggregate returns the raw counters pkg/scoring composes into a score.
func (r *ContributorRepository) Aggregate(ctx context.Context, contributorID string) (ContributorAggregate, error) {
	const query = `
		SELECT
			COUNT(1),
			COALESCE(SUM(CASE WHEN accepted THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN profitable THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(signal_score), 0),
			COALESCE(MAX(created_at), TIMESTAMP '1970-01-01')
		FROM contributor_signals WHERE contributor_id = $1
	`
	var agg ContributorAggregate
	err := r.client.DB().QueryRowContext(ctx, query, contributorID).Scan(
		&agg.Submitted, &agg.Accepted, &agg.Profitable, &agg.AvgScore, &agg.LastActiveAt,
	)
	if err != nil {
		return ContributorAggregate{}, fmt.Errorf("contributor repository: aggregate: %w", err)
	}
	return agg, nil
}

// ConvictionAccuracy returns the mean signal_score among accepted,
// resolved submissions split by outcome, used to reward contributors
// whose high-conviction calls actually won more than their low-conviction
// ones did.
func (r *ContributorRepository) ConvictionAccuracy(ctx context.Context, contributorID string) (avgWin, avgLoss float64, ok bool, err error) {
	const query = `
		SELECT
			AVG(CASE WHEN profitable THEN signal_score END),
			AVG(CASE WHEN NOT profitable THEN signal_score END)
		FROM contributor_signals
		WHERE contributor_id = $1 AND accepted AND profitable IS NOT NULL AND signal_score IS NOT NULL
	`
	var win, loss sql.NullFloat64
	if scanErr := r.client.DB().QueryRowContext(ctx, query, contributorID).Scan(&win, &loss); scanErr != nil {
		return 0, 0, false, fmt.Errorf("contributor repository: conviction accuracy: %w", scanErr)
	}
	if !win.Valid || !loss.Valid {
		return 0, 0, false, nil
	}
	return win.Float64, loss.Float64, true, nil
}

// StreakDays returns the number of consecutive calendar days (most
// recent first) on which contributorID had at least one accepted signal.
func (r *ContributorRepository) StreakDays(ctx context.Context, contributorID string) (int, error) {
	const query = `
		SELECT DISTINCT date_trunc('day', created_at) AS d
		FROM contributor_signals
		WHERE contributor_id = $1 AND accepted
		ORDER BY d DESC
	`
	rows, err := r.client.DB().QueryContext(ctx, query, contributorID)
	if err != nil {
		return 0, fmt.Errorf("contributor repository: streak days: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return 0, fmt.Errorf("contributor repository: scan streak day: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(days) == 0 {
		return 0, nil
	}

	streak := 1
	prev := days[0]
	for _, d := range days[1:] {
		if prev.Sub(d) == 24*time.Hour {
			streak++
			prev = d
			continue
		}
		break
	}
	return streak, nil
}
