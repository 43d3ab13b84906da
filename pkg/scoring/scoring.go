// Copyright 2025 Certen Protocol
//
// Package scoring computes a quantified contributor/producer ranking: a
// composite of hit rate, submission volume, day-streak consistency,
// conviction accuracy, and recency, gated so a contributor cannot game
// it with a handful of lucky or spammy submissions.
package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/certen/sovereign-engine/pkg/database"
	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/journal"
)

const (
	// MinResolvedForHitRate is the minimum count of accepted
	// submissions with a known outcome before hit_rate counts for
	// anything; below it the composite treats hit_rate as 0.
	MinResolvedForHitRate = 5

	// AcceptanceGateMinSubmissions and AcceptanceGateThreshold together
	// collapse the whole score to 0 for a contributor whose accepted
	// fraction is too low to trust, once they have submitted enough to
	// judge.
	AcceptanceGateMinSubmissions = 10
	AcceptanceGateThreshold      = 0.10

	// volumeLogCap is the submission count at which the log-scaled
	// volume component saturates at 1.0.
	volumeLogCap = 100.0

	// consistencyCapDays is the streak length at which the consistency
	// component saturates at 1.0.
	consistencyCapDays = 30.0

	// recencyGraceDays is how long after a contributor's last accepted
	// signal the recency component stays at 1.0 before decaying.
	recencyGraceDays = 7.0
	recencyDecayDays = 30.0
)

// ContributorScore is the full scoring breakdown for one contributor.
type ContributorScore struct {
	ContributorID     string
	SignalsSubmitted  int
	SignalsAccepted   int
	SignalsProfitable int
	HitRate           float64
	AvgConviction     float64
	TotalKarmaUSD     float64
	Score             float64
	LastActive        time.Time
	Streak            int
}

// contributorStore is the subset of ContributorRepository scoring needs.
type contributorStore interface {
	Get(ctx context.Context, contributorID string) (*database.Contributor, error)
	List(ctx context.Context) ([]database.Contributor, error)
	Aggregate(ctx context.Context, contributorID string) (database.ContributorAggregate, error)
	ConvictionAccuracy(ctx context.Context, contributorID string) (avgWin, avgLoss float64, ok bool, err error)
	StreakDays(ctx context.Context, contributorID string) (int, error)
}

// Scorer computes ContributorScore from the contributor_signals
// bookkeeping plus the journal's karma.intent.v1 history.
type Scorer struct {
	repo    contributorStore
	journal *journal.Store
	clock   func() time.Time
}

// NewScorer builds a Scorer over repo and store.
func NewScorer(repo *database.ContributorRepository, store *journal.Store) *Scorer {
	return &Scorer{repo: repo, journal: store, clock: time.Now}
}

// ComputeScore computes the full composite score for contributorID.
func (s *Scorer) ComputeScore(ctx context.Context, contributorID string) (*ContributorScore, error) {
	contributor, err := s.repo.Get(ctx, contributorID)
	if err != nil {
		return nil, fmt.Errorf("scoring: get contributor: %w", err)
	}

	agg, err := s.repo.Aggregate(ctx, contributorID)
	if err != nil {
		return nil, fmt.Errorf("scoring: aggregate: %w", err)
	}

	streak, err := s.repo.StreakDays(ctx, contributorID)
	if err != nil {
		return nil, fmt.Errorf("scoring: streak days: %w", err)
	}

	karma, err := karmaTotalByNode(ctx, s.journal, contributor.NodeID)
	if err != nil {
		return nil, fmt.Errorf("scoring: karma total: %w", err)
	}

	result := &ContributorScore{
		ContributorID:     contributorID,
		SignalsSubmitted:  agg.Submitted,
		SignalsAccepted:   agg.Accepted,
		SignalsProfitable: agg.Profitable,
		AvgConviction:     agg.AvgScore,
		TotalKarmaUSD:     karma,
		LastActive:        agg.LastActiveAt,
		Streak:            streak,
	}

	resolvedCount, hitRate := hitRate(agg)
	result.HitRate = hitRate

	if agg.Submitted >= AcceptanceGateMinSubmissions {
		acceptanceRate := float64(agg.Accepted) / float64(agg.Submitted)
		if acceptanceRate < AcceptanceGateThreshold {
			result.Score = 0
			return result, nil
		}
	}

	hitRateNorm := clamp01(hitRate)
	if resolvedCount < MinResolvedForHitRate {
		hitRateNorm = 0
	}

	volumeNorm := 0.0
	if agg.Submitted > 0 {
		volumeNorm = clamp01(math.Log1p(float64(agg.Submitted)) / math.Log1p(volumeLogCap))
	}

	consistencyNorm := clamp01(float64(streak) / consistencyCapDays)

	avgWin, avgLoss, ok, err := s.repo.ConvictionAccuracy(ctx, contributorID)
	if err != nil {
		return nil, fmt.Errorf("scoring: conviction accuracy: %w", err)
	}
	convictionAccuracy := 0.5
	if ok {
		convictionAccuracy = clamp01(0.5 + (avgWin-avgLoss)/20.0)
	}

	recency := recencyScore(agg.LastActiveAt, s.clock())

	composite := 0.30*hitRateNorm + 0.25*volumeNorm + 0.20*consistencyNorm + 0.15*convictionAccuracy + 0.10*recency
	result.Score = 100.0 * clamp01(composite)
	return result, nil
}

// Leaderboard scores every registered contributor and returns the top
// limit, ranked by score then accepted then submitted signal count.
func (s *Scorer) Leaderboard(ctx context.Context, limit int) ([]ContributorScore, error) {
	contributors, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("scoring: list contributors: %w", err)
	}

	scores := make([]ContributorScore, 0, len(contributors))
	for _, c := range contributors {
		score, err := s.ComputeScore(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("scoring: score %s: %w", c.ID, err)
		}
		scores = append(scores, *score)
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		if scores[i].SignalsAccepted != scores[j].SignalsAccepted {
			return scores[i].SignalsAccepted > scores[j].SignalsAccepted
		}
		return scores[i].SignalsSubmitted > scores[j].SignalsSubmitted
	})

	if limit > 0 && len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

// hitRate returns the accepted-signal count (the resolved-outcome count
// the MinResolvedForHitRate gate checks against) and the win fraction
// among them.
func hitRate(agg database.ContributorAggregate) (resolvedCount int, rate float64) {
	if agg.Accepted == 0 {
		return 0, 0
	}
	return agg.Accepted, float64(agg.Profitable) / float64(agg.Accepted)
}

func recencyScore(lastActive, now time.Time) float64 {
	if lastActive.IsZero() {
		return 0
	}
	daysSince := now.Sub(lastActive).Hours() / 24.0
	if daysSince <= 0 {
		return 1.0
	}
	if daysSince <= recencyGraceDays {
		return 1.0
	}
	return clamp01(1.0 - (daysSince-recencyGraceDays)/recencyDecayDays)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// karmaTotalByNode replays every karma.intent.v1 event and sums
// AmountUSD for nodeID. Karma accrual has no SQL mirror table (unlike
// contributor_signals), so this is the only place the total lives.
func karmaTotalByNode(ctx context.Context, store *journal.Store, nodeID string) (float64, error) {
	if store == nil || nodeID == "" {
		return 0, nil
	}
	var total float64
	err := store.IterateAscending(ctx, 500, func(env *event.Envelope) error {
		if env.Type != event.TypeKarmaIntent {
			return nil
		}
		var p event.KarmaIntentPayload
		if err := env.DecodePayload(&p); err != nil {
			return fmt.Errorf("decode karma.intent: %w", err)
		}
		if p.NodeID == nodeID {
			total += p.AmountUSD
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
