// Copyright 2025 Certen Protocol
//
// Package journal implements the hash-chained, append-only event store
// described as the system's single source of truth: every signal, brain
// decision, order, kill-switch transition, karma accrual, and learning
// outcome is a committed Envelope here first. Every other table is a
// projection rebuildable from this one.
package journal

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/certen/sovereign-engine/pkg/canon"
	"github.com/certen/sovereign-engine/pkg/database"
	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/metrics"
	"github.com/certen/sovereign-engine/pkg/timeutil"
)

// advisoryLockKey identifies the journal's single-writer slot in
// Postgres' session-level advisory lock namespace. Derived once from a
// fixed string so every engine binary computes the same key.
var advisoryLockKey = int64(mustFNV64("certen-sovereign-engine/journal/writer"))

func mustFNV64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// Store is the append-only journal over pkg/database.Client. All writes
// funnel through Append/BatchAppend, which serialize on writeMu — the
// journal is a single-process writer by design, matching the monotonic
// hash chain's requirement that prev_hash always be re-read from the
// last committed row, never from cache.
type Store struct {
	db      *database.Client
	clock   timeutil.Clock
	writeMu sync.Mutex

	// writerConn holds the session-level Postgres advisory lock for the
	// lifetime of the process, detecting a second engine process
	// accidentally pointed at the same database.
	writerConn *sql.Conn

	// metrics is nil unless SetMetrics is called; every recording call
	// through it is a no-op against a nil Registry.
	metrics *metrics.Registry
}

// SetMetrics attaches a metrics.Registry so every future Append/BatchAppend
// records a counter and latency observation. Optional — a Store with no
// Registry attached behaves identically, just unobserved.
func (s *Store) SetMetrics(reg *metrics.Registry) {
	s.metrics = reg
}

// Open creates a Store and attempts to acquire the cross-process writer
// lock. If another process already holds it, Open fails rather than
// risking two processes racing to extend the same hash chain.
func Open(ctx context.Context, db *database.Client) (*Store, error) {
	s := &Store{db: db, clock: timeutil.SystemClock{}}

	conn, err := db.DB().Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("journal: acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", advisoryLockKey).Scan(&acquired); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: advisory lock probe: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, fmt.Errorf("journal: another process holds the writer lock")
	}

	s.writerConn = conn
	return s, nil
}

// Close releases the writer lock and its dedicated connection.
func (s *Store) Close() error {
	if s.writerConn == nil {
		return nil
	}
	ctx := context.Background()
	_, _ = s.writerConn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockKey)
	return s.writerConn.Close()
}

// ProbeConcurrentWriter returns true if another holder currently has the
// journal's write lock. Safe to call from a process that does not itself
// hold the lock (e.g. a read-only CLI or health check).
func ProbeConcurrentWriter(ctx context.Context, db *database.Client) (bool, error) {
	conn, err := db.DB().Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("journal: acquire connection: %w", err)
	}
	defer conn.Close()

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", advisoryLockKey).Scan(&acquired); err != nil {
		return false, fmt.Errorf("journal: advisory lock probe: %w", err)
	}
	if acquired {
		_, _ = conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockKey)
		return false, nil
	}
	return true, nil
}

// Append commits a single draft event and returns its stored envelope.
// prev_hash is re-read from the last committed row inside the write
// transaction, never from any in-memory cache, so the chain link is
// always correct even if multiple Store instances exist in-process.
func (s *Store) Append(ctx context.Context, draft event.DraftEvent) (*event.Envelope, error) {
	started := s.clock.Now()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if draft.Type == "" {
		return nil, fmt.Errorf("%w: empty event type", ErrSchemaViolation)
	}
	if draft.Payload == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrSchemaViolation)
	}

	tx, err := s.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback()

	env, err := s.appendTx(ctx, tx, draft)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("journal: commit: %w", err)
	}
	s.metrics.ObserveJournalAppend(string(draft.Type), s.clock.Now().Sub(started))
	return env, nil
}

// BatchAppend commits a list of draft events atomically, linked in list
// order, in a single transaction. Either all events land or none do.
func (s *Store) BatchAppend(ctx context.Context, drafts []event.DraftEvent) ([]*event.Envelope, error) {
	if len(drafts) == 0 {
		return nil, ErrEmptyBatch
	}

	started := s.clock.Now()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback()

	envs := make([]*event.Envelope, 0, len(drafts))
	for i, draft := range drafts {
		if draft.Type == "" {
			return nil, fmt.Errorf("%w: empty event type at batch index %d", ErrSchemaViolation, i)
		}
		if draft.Payload == nil {
			return nil, fmt.Errorf("%w: nil payload at batch index %d", ErrSchemaViolation, i)
		}
		env, err := s.appendTx(ctx, tx, draft)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("journal: commit: %w", err)
	}

	elapsed := s.clock.Now().Sub(started)
	for _, draft := range drafts {
		s.metrics.ObserveJournalAppend(string(draft.Type), elapsed)
	}
	return envs, nil
}

// appendTx performs one append within an already-open transaction. The
// caller holds writeMu and owns commit/rollback.
func (s *Store) appendTx(ctx context.Context, tx *sql.Tx, draft event.DraftEvent) (*event.Envelope, error) {
	canonicalPayload, err := canon.Marshal(draft.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalize payload: %v", ErrSchemaViolation, err)
	}
	payloadHash := sha256.Sum256(canonicalPayload)
	payloadHashHex := hex.EncodeToString(payloadHash[:])

	if draft.DedupeKey != "" {
		existing, found, err := findByDedupeKey(ctx, tx, draft.DedupeKey)
		if err != nil {
			return nil, fmt.Errorf("journal: dedupe lookup: %w", err)
		}
		if found {
			if existing.payloadHash == payloadHashHex {
				return s.loadEnvelope(ctx, tx, existing.id)
			}
			return nil, fmt.Errorf("%w: dedupe_key %q already used with a different payload", ErrDedupeConflict, draft.DedupeKey)
		}
	}

	prevHash, err := lastHash(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("journal: read last hash: %w", err)
	}

	ts := s.clock.Now()
	if draft.Ts != nil {
		ts = *draft.Ts
	}

	chainHash, err := canon.ChainHash(prevHash, string(draft.Type), draft.Payload)
	if err != nil {
		return nil, fmt.Errorf("journal: compute chain hash: %w", err)
	}

	id := uuid.New().String()

	const insert = `
		INSERT INTO events (id, type, ts, observed_at, source, trace_id, schema_version, dedupe_key, payload, payload_hash, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	var dedupeKey sql.NullString
	if draft.DedupeKey != "" {
		dedupeKey = sql.NullString{String: draft.DedupeKey, Valid: true}
	}

	_, err = tx.ExecContext(ctx, insert,
		id, string(draft.Type), ts, draft.ObservedAt, nullableString(draft.Source), nullableString(draft.TraceID),
		draft.EffectiveSchemaVersion(), dedupeKey, string(canonicalPayload), payloadHashHex, prevHash, chainHash,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: insert event: %w", err)
	}

	return &event.Envelope{
		ID:            id,
		Type:          draft.Type,
		Ts:            ts,
		ObservedAt:    draft.ObservedAt,
		Source:        draft.Source,
		TraceID:       draft.TraceID,
		SchemaVersion: draft.EffectiveSchemaVersion(),
		DedupeKey:     draft.DedupeKey,
		Payload:       canonicalPayload,
		PrevHash:      prevHash,
		Hash:          chainHash,
	}, nil
}

type dedupeRow struct {
	id          string
	payloadHash string
}

func findByDedupeKey(ctx context.Context, tx *sql.Tx, dedupeKey string) (dedupeRow, bool, error) {
	var row dedupeRow
	err := tx.QueryRowContext(ctx, `SELECT id, payload_hash FROM events WHERE dedupe_key = $1`, dedupeKey).Scan(&row.id, &row.payloadHash)
	if err == sql.ErrNoRows {
		return dedupeRow{}, false, nil
	}
	if err != nil {
		return dedupeRow{}, false, err
	}
	return row, true, nil
}

// lastHash re-reads the hash of the most recently committed event from
// inside the write transaction. Returns the genesis prev_hash convention
// when the journal is empty.
func lastHash(ctx context.Context, tx *sql.Tx) (string, error) {
	var hash string
	err := tx.QueryRowContext(ctx, `SELECT hash FROM events ORDER BY seq DESC LIMIT 1`).Scan(&hash)
	if err == sql.ErrNoRows {
		return canon.GenesisPrevHash, nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

func (s *Store) loadEnvelope(ctx context.Context, tx *sql.Tx, id string) (*event.Envelope, error) {
	return scanEnvelope(tx.QueryRowContext(ctx, selectEnvelopeByID, id))
}

// GetByID retrieves a single committed event by its UUID.
func (s *Store) GetByID(ctx context.Context, id string) (*event.Envelope, error) {
	env, err := scanEnvelope(s.db.DB().QueryRowContext(ctx, selectEnvelopeByID, id))
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	return env, err
}

// QueryByType returns the most recent `limit` events of the given type,
// newest first.
func (s *Store) QueryByType(ctx context.Context, t event.Type, limit int) ([]*event.Envelope, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.DB().QueryContext(ctx, selectEnvelopeCols+` FROM events WHERE type = $1 ORDER BY seq DESC LIMIT $2`, string(t), limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query by type: %w", err)
	}
	defer rows.Close()
	return scanEnvelopes(rows)
}

// QueryBySource returns the most recent `limit` events from the given
// source, newest first.
func (s *Store) QueryBySource(ctx context.Context, source string, limit int) ([]*event.Envelope, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.DB().QueryContext(ctx, selectEnvelopeCols+` FROM events WHERE source = $1 ORDER BY seq DESC LIMIT $2`, source, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query by source: %w", err)
	}
	defer rows.Close()
	return scanEnvelopes(rows)
}

// QueryByTimeRange returns events with ts in [from, to], ascending.
func (s *Store) QueryByTimeRange(ctx context.Context, from, to time.Time) ([]*event.Envelope, error) {
	rows, err := s.db.DB().QueryContext(ctx, selectEnvelopeCols+` FROM events WHERE ts >= $1 AND ts <= $2 ORDER BY seq ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("journal: query by time range: %w", err)
	}
	defer rows.Close()
	return scanEnvelopes(rows)
}

// QuerySeqRange returns events whose internal sequence number falls in
// [fromSeq, toSeq], ascending. This is the journal's "id range" query —
// the public event id is a UUID and carries no order, so range queries
// address the monotonic internal sequence instead.
func (s *Store) QuerySeqRange(ctx context.Context, fromSeq, toSeq int64) ([]*event.Envelope, error) {
	rows, err := s.db.DB().QueryContext(ctx, selectEnvelopeCols+`, seq FROM events WHERE seq >= $1 AND seq <= $2 ORDER BY seq ASC`, fromSeq, toSeq)
	if err != nil {
		return nil, fmt.Errorf("journal: query by seq range: %w", err)
	}
	defer rows.Close()
	var out []*event.Envelope
	for rows.Next() {
		env, _, err := scanEnvelopeRowWithSeq(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, rows.Err()
}

// IterateAscending calls fn for every committed event in insertion
// order, the replay primitive every projection is built from. Stops and
// returns fn's error if fn returns one.
func (s *Store) IterateAscending(ctx context.Context, batchSize int, fn func(*event.Envelope) error) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	var afterSeq int64
	for {
		rows, err := s.db.DB().QueryContext(ctx, selectEnvelopeCols+`, seq FROM events WHERE seq > $1 ORDER BY seq ASC LIMIT $2`, afterSeq, batchSize)
		if err != nil {
			return fmt.Errorf("journal: iterate: %w", err)
		}

		var batch []*event.Envelope
		var lastSeq int64
		for rows.Next() {
			env, seq, err := scanEnvelopeRowWithSeq(rows)
			if err != nil {
				rows.Close()
				return err
			}
			batch = append(batch, env)
			lastSeq = seq
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, env := range batch {
			if err := fn(env); err != nil {
				return err
			}
		}
		if len(batch) < batchSize {
			return nil
		}
		afterSeq = lastSeq
	}
}

// Verify recomputes hash for every committed event (or the last N when
// fast is requested with a non-zero lastN) in insertion order and fails
// on the first mismatch. A mismatch anywhere in the chain invalidates
// everything after it, so Verify always reports the first break.
func (s *Store) Verify(ctx context.Context, fast bool, lastN int) error {
	var query string
	var args []any
	if fast && lastN > 0 {
		query = selectEnvelopeCols + `, seq FROM events ORDER BY seq DESC LIMIT $1`
		args = []any{lastN}
	} else {
		query = selectEnvelopeCols + `, seq FROM events ORDER BY seq ASC`
	}

	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("journal: verify query: %w", err)
	}
	defer rows.Close()

	var envs []*event.Envelope
	for rows.Next() {
		env, _, err := scanEnvelopeRowWithSeq(rows)
		if err != nil {
			return err
		}
		envs = append(envs, env)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if fast && lastN > 0 {
		// Descending order was used to get the last N cheaply; restore
		// ascending order for chain verification.
		for i, j := 0, len(envs)-1; i < j; i, j = i+1, j-1 {
			envs[i], envs[j] = envs[j], envs[i]
		}
	}

	for i, env := range envs {
		wantPrev := canon.GenesisPrevHash
		if i > 0 {
			wantPrev = envs[i-1].Hash
		} else if fast && lastN > 0 {
			// Fast verification of a suffix can't check the link to
			// whatever precedes the window; only self-consistency of
			// the window's own chain is checked in that case.
			wantPrev = env.PrevHash
		}
		if env.PrevHash != wantPrev {
			return fmt.Errorf("%w: event %s prev_hash mismatch", ErrIntegrityError, env.ID)
		}
		recomputed, err := canon.ChainHash(env.PrevHash, string(env.Type), json.RawMessage(env.Payload))
		if err != nil {
			return fmt.Errorf("journal: recompute hash for %s: %w", env.ID, err)
		}
		if recomputed != env.Hash {
			return fmt.Errorf("%w: event %s hash mismatch", ErrIntegrityError, env.ID)
		}
	}
	return nil
}

const selectEnvelopeCols = `SELECT id, type, ts, observed_at, source, trace_id, schema_version, dedupe_key, payload, prev_hash, hash`
const selectEnvelopeByID = selectEnvelopeCols + ` FROM events WHERE id = $1`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnvelope(row rowScanner) (*event.Envelope, error) {
	var env event.Envelope
	var observedAt sql.NullTime
	var source, traceID, dedupeKey sql.NullString
	var payload string

	if err := row.Scan(&env.ID, &env.Type, &env.Ts, &observedAt, &source, &traceID, &env.SchemaVersion, &dedupeKey, &payload, &env.PrevHash, &env.Hash); err != nil {
		return nil, err
	}
	if observedAt.Valid {
		env.ObservedAt = &observedAt.Time
	}
	env.Source = source.String
	env.TraceID = traceID.String
	env.DedupeKey = dedupeKey.String
	env.Payload = []byte(payload)
	return &env, nil
}

func scanEnvelopeRowWithSeq(rows *sql.Rows) (*event.Envelope, int64, error) {
	var env event.Envelope
	var observedAt sql.NullTime
	var source, traceID, dedupeKey sql.NullString
	var payload string
	var seq int64

	if err := rows.Scan(&env.ID, &env.Type, &env.Ts, &observedAt, &source, &traceID, &env.SchemaVersion, &dedupeKey, &payload, &env.PrevHash, &env.Hash, &seq); err != nil {
		return nil, 0, err
	}
	if observedAt.Valid {
		env.ObservedAt = &observedAt.Time
	}
	env.Source = source.String
	env.TraceID = traceID.String
	env.DedupeKey = dedupeKey.String
	env.Payload = []byte(payload)
	return &env, seq, nil
}

func scanEnvelopes(rows *sql.Rows) ([]*event.Envelope, error) {
	var out []*event.Envelope
	for rows.Next() {
		env, err := scanEnvelope(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, rows.Err()
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
