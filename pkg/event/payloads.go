// Copyright 2025 Certen Protocol

package event

import "time"

// SignalTAPayload is the payload for signal.ta.v1 (technical analysis).
type SignalTAPayload struct {
	Symbol        string  `json:"symbol"`
	RSI14         float64 `json:"rsi_14,omitempty"`
	TrendStrength float64 `json:"trend_strength,omitempty"`
	VolumeRatio   float64 `json:"volume_ratio,omitempty"`
	MACDHist      float64 `json:"macd_hist,omitempty"`
	Direction     string  `json:"direction,omitempty"` // bullish|bearish|neutral
}

// SignalOnchainPayload is the payload for signal.onchain.v1.
type SignalOnchainPayload struct {
	Symbol        string  `json:"symbol"`
	WhaleNetflow  float64 `json:"whale_netflow,omitempty"`
	ExchangeFlow  float64 `json:"exchange_flow,omitempty"`
	ActiveAddrPct float64 `json:"active_address_change_pct,omitempty"`
}

// SignalTradfiPayload is the payload for signal.tradfi.v1.
type SignalTradfiPayload struct {
	Symbol            string  `json:"symbol"`
	FundingAnnualized float64 `json:"funding_annualized,omitempty"`
	BasisAnnualized   float64 `json:"basis_annualized,omitempty"`
	OpenInterestDelta float64 `json:"open_interest_delta,omitempty"`
}

// SignalSocialPayload is the payload for signal.social.v1.
type SignalSocialPayload struct {
	Symbol        string  `json:"symbol"`
	MentionVolume float64 `json:"mention_volume,omitempty"`
	SentimentMean float64 `json:"sentiment_mean,omitempty"` // -1..1
	Direction     string  `json:"direction,omitempty"`
}

// SignalSentimentPayload is the payload for signal.sentiment.v1.
type SignalSentimentPayload struct {
	Symbol    string  `json:"symbol"`
	FearGreed float64 `json:"fear_greed,omitempty"` // 0..100
}

// SignalEventsPayload is the payload for signal.events.v1 (scheduled
// macro/crypto calendar events).
type SignalEventsPayload struct {
	Symbol      string    `json:"symbol"`
	EventName   string    `json:"event_name"`
	ImpactScore float64   `json:"impact_score,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// SignalETFPayload is the payload for signal.etf.v1.
type SignalETFPayload struct {
	Symbol        string  `json:"symbol"`
	NetFlowUSD    float64 `json:"net_flow_usd,omitempty"`
	CumulativeUSD float64 `json:"cumulative_usd,omitempty"`
}

// SignalStablecoinPayload is the payload for signal.stablecoin.v1.
type SignalStablecoinPayload struct {
	Symbol          string  `json:"symbol"`
	SupplyChangePct float64 `json:"supply_change_pct,omitempty"`
}

// SignalWhalePayload is the payload for signal.whale.v1.
type SignalWhalePayload struct {
	Symbol     string  `json:"symbol"`
	TxCount    int     `json:"tx_count,omitempty"`
	NetflowUSD float64 `json:"netflow_usd,omitempty"`
}

// SignalOrderbookPayload is the payload for signal.orderbook.v1.
type SignalOrderbookPayload struct {
	Symbol         string  `json:"symbol"`
	BidAskSpread   float64 `json:"bid_ask_spread,omitempty"`
	DepthImbalance float64 `json:"depth_imbalance,omitempty"`
}

// SignalCuratorPayload is the payload for signal.curator.v1 — a
// human-submitted directional call, rate-limited per pkg/ratelimit.
type SignalCuratorPayload struct {
	Symbol        string  `json:"symbol"`
	Direction     string  `json:"direction"`
	Conviction    float64 `json:"conviction,omitempty"` // 0..1
	ContributorID string  `json:"contributor_id"`
}

// SignalACIPayload is the payload for signal.aci.v1 (aggregate curator
// index — a derived composite of recent curator submissions).
type SignalACIPayload struct {
	Symbol string  `json:"symbol"`
	Index  float64 `json:"index,omitempty"` // -1..1
}

// SignalPriceAlertPayload is the payload for signal.price_alert.v1.
type SignalPriceAlertPayload struct {
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	ThresholdPct float64 `json:"threshold_pct,omitempty"`
}

// SignalPriceWSPayload is the payload for signal.price_ws.v1 (streaming
// mid-price ticks).
type SignalPriceWSPayload struct {
	Symbol   string  `json:"symbol"`
	MidPrice float64 `json:"mid_price"`
}

// BrainCyclePayload is the payload for brain.cycle.v1.
type BrainCyclePayload struct {
	CycleID        string    `json:"cycle_id"`
	Symbols        []string  `json:"symbols"`
	OverallQuality float64   `json:"overall_quality"`
	Regime         string    `json:"regime"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// BrainSynthesisPayload is the payload for brain.synthesis.v1.
type BrainSynthesisPayload struct {
	CycleID        string             `json:"cycle_id"`
	Symbol         string             `json:"symbol"`
	DomainScores   map[string]float64 `json:"domain_scores"`
	WeightedScore  float64            `json:"weighted_score"`
	SourceEventIDs []string           `json:"source_event_ids"`
}

// BrainFeatureSnapshotPayload is the payload for brain.feature_snapshot.v1.
type BrainFeatureSnapshotPayload struct {
	CycleID        string                        `json:"cycle_id"`
	Symbol         string                        `json:"symbol"`
	Features       map[string]map[string]float64 `json:"features"`
	SourceEventIDs []string                      `json:"source_event_ids"`
	Regime         string                        `json:"regime,omitempty"`
	Version        string                        `json:"version"`
}

// BrainRegimeChangePayload is the payload for brain.regime_change.v1.
type BrainRegimeChangePayload struct {
	CycleID  string            `json:"cycle_id"`
	Previous string            `json:"previous"`
	Current  string            `json:"current"`
	Votes    map[string]string `json:"votes"`
}

// BrainConvictionPayload is the payload for brain.conviction.v1.
// CommitmentHash is computed over a reduced projection of these same
// fields that excludes the hash itself, then carried here so a position's
// conviction_id can be joined back to the cycle/symbol that produced it.
type BrainConvictionPayload struct {
	CycleID        string   `json:"cycle_id"`
	NodeID         string   `json:"node_id"`
	Symbol         string   `json:"symbol"`
	Direction      string   `json:"direction"`
	Magnitude      float64  `json:"magnitude"`
	Timeframe      string   `json:"timeframe"`
	Regime         string   `json:"regime"`
	PCS            float64  `json:"pcs"`
	CTS            float64  `json:"cts"`
	DomainsUsed    []string `json:"domains_used"`
	Confidence     *float64 `json:"confidence,omitempty"`
	CommitmentHash string   `json:"commitment_hash"`
}

// TradeIntentPayload is the payload for execution.trade_intent.v1.
type TradeIntentPayload struct {
	CycleID          string  `json:"cycle_id"`
	ConvictionID     string  `json:"conviction_id"`
	Symbol           string  `json:"symbol"`
	Direction        string  `json:"direction"`
	SizePct          float64 `json:"size_pct"`
	Leverage         float64 `json:"leverage"`
	RequiresApproval bool    `json:"requires_approval"`
	Regime           string  `json:"regime"`
	PCS              float64 `json:"pcs"`
}

// OrderSubmittedPayload is the payload for execution.order_submitted.v1.
type OrderSubmittedPayload struct {
	OrderID        string  `json:"order_id"`
	PositionID     string  `json:"position_id,omitempty"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	Type           string  `json:"type"`
	Size           float64 `json:"size"`
	IdempotencyKey string  `json:"idempotency_key"`
}

// OrderFilledPayload is the payload for execution.order_filled.v1.
type OrderFilledPayload struct {
	OrderID    string  `json:"order_id"`
	PositionID string  `json:"position_id"`
	FillPrice  float64 `json:"fill_price"`
	FillSize   float64 `json:"fill_size"`
	FeeUSD     float64 `json:"fee_usd"`
}

// OrderCanceledPayload is the payload for execution.order_canceled.v1.
type OrderCanceledPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// OrderFailedPayload is the payload for execution.order_failed.v1.
type OrderFailedPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// PositionOpenedPayload is the payload for execution.position_opened.v1.
type PositionOpenedPayload struct {
	PositionID    string  `json:"position_id"`
	Platform      string  `json:"platform"`
	Asset         string  `json:"asset"`
	Direction     string  `json:"direction"`
	EntryPrice    float64 `json:"entry_price"`
	SizeNotional  float64 `json:"size_notional"`
	Leverage      float64 `json:"leverage"`
	ConvictionID  string  `json:"conviction_id,omitempty"`
	RegimeAtEntry string  `json:"regime_at_entry,omitempty"`
	PCSAtEntry    float64 `json:"pcs_at_entry,omitempty"`
	CTSAtEntry    float64 `json:"cts_at_entry,omitempty"`
}

// PositionClosedPayload is the payload for execution.position_closed.v1.
type PositionClosedPayload struct {
	PositionID  string  `json:"position_id"`
	ExitPrice   float64 `json:"exit_price"`
	RealizedPnL float64 `json:"realized_pnl"`
	Status      string  `json:"status"`
}

// PositionUpdatedPayload is the payload for execution.position_updated.v1.
type PositionUpdatedPayload struct {
	PositionID    string  `json:"position_id"`
	Status        string  `json:"status"`
	MarkPrice     float64 `json:"mark_price,omitempty"`
	UnrealizedPnL float64 `json:"unrealized_pnl,omitempty"`
}

// KillSwitchPayload is the payload for system.kill_switch.v1.
type KillSwitchPayload struct {
	Level         int    `json:"level"`
	PreviousLevel int    `json:"previous_level"`
	Reason        string `json:"reason"`
	Auto          bool   `json:"auto"`
	Actor         string `json:"actor,omitempty"`
}

// BalanceUpdatedPayload is the payload for system.balance_updated.v1.
type BalanceUpdatedPayload struct {
	EquityUSD        float64 `json:"equity_usd"`
	AvailableUSD     float64 `json:"available_usd"`
	PortfolioHeatPct float64 `json:"portfolio_heat_pct,omitempty"`
}

// AuditPayload is the payload for system.audit.v1.
type AuditPayload struct {
	Actor   string `json:"actor"`
	Action  string `json:"action"`
	Details string `json:"details,omitempty"`
}

// ProducerHealthPayload is the payload for system.producer_health.v1, appended
// whenever a producer's health transitions (healthy -> degraded/error, or a
// quarantine is imposed or lifted).
type ProducerHealthPayload struct {
	Producer            string     `json:"producer"`
	Domain              string     `json:"domain"`
	Health              string     `json:"health"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
	QuarantinedUntil    *time.Time `json:"quarantined_until,omitempty"`
	QuarantinedReason   string     `json:"quarantined_reason,omitempty"`
	EventsPublished     int        `json:"events_published"`
	DurationMS          int64      `json:"duration_ms"`
}

// KarmaIntentPayload is the payload for karma.intent.v1.
type KarmaIntentPayload struct {
	IntentID       string  `json:"intent_id"`
	TradeID        string  `json:"trade_id"`
	RealizedPnLUSD float64 `json:"realized_pnl_usd"`
	Percentage     float64 `json:"percentage"`
	AmountUSD      float64 `json:"amount_usd"`
	NodeID         string  `json:"node_id"`
	SignatureB64   string  `json:"signature_b64"`
}

// KarmaSettlementPayload is the payload for karma.settlement.v1.
type KarmaSettlementPayload struct {
	BatchID           string   `json:"batch_id"`
	IntentIDs         []string `json:"intent_ids"`
	TotalUSD          float64  `json:"total_usd"`
	DestinationWallet string   `json:"destination_wallet"`
	TxHash            string   `json:"tx_hash,omitempty"`
	Status            string   `json:"status"`
	SignatureB64      string   `json:"signature_b64"`
}

// KarmaReceiptPayload is the payload for karma.receipt.v1.
type KarmaReceiptPayload struct {
	ReceiptID         string   `json:"receipt_id"`
	BatchID           string   `json:"batch_id"`
	IntentIDs         []string `json:"intent_ids"`
	DestinationWallet string   `json:"destination_wallet"`
	TxHash            string   `json:"tx_hash,omitempty"`
	TotalUSD          float64  `json:"total_usd"`
	Status            string   `json:"status"`
	SignatureB64      string   `json:"signature_b64"`
}

// KarmaWalletMigrationPayload is the payload for karma.wallet_migration.v1.
type KarmaWalletMigrationPayload struct {
	OldWallet    string `json:"old_wallet"`
	NewWallet    string `json:"new_wallet"`
	Reason       string `json:"reason"`
	AuthorizedBy string `json:"authorized_by"`
}

// LearningOutcomePayload is the payload for learning.outcome.v1.
type LearningOutcomePayload struct {
	PositionID          string             `json:"position_id"`
	ConvictionID        string             `json:"conviction_id"`
	RealizedPnL         float64            `json:"realized_pnl"`
	DirectionCorrect    bool               `json:"direction_correct"`
	TimeHeldHours       float64            `json:"time_held_hours"`
	MaxDrawdownPct      float64            `json:"max_drawdown_pct"`
	RegimeAtEntry       string             `json:"regime_at_entry"`
	DomainScoresAtEntry map[string]float64 `json:"domain_scores_at_entry"`
}

// LearningWeightAdjustmentPayload is the payload for learning.weight_adjustment.v1.
type LearningWeightAdjustmentPayload struct {
	CycleType       string             `json:"cycle_type"` // daily|weekly|monthly
	PreviousWeights map[string]float64 `json:"previous_weights"`
	NewWeights      map[string]float64 `json:"new_weights"`
	Deltas          map[string]float64 `json:"deltas"`
	Applied         bool               `json:"applied"`
	Reason          string             `json:"reason,omitempty"`
}

// LearningReportPayload is the payload for learning.report.v1.
type LearningReportPayload struct {
	CycleType      string  `json:"cycle_type"`
	Observations   int     `json:"observations"`
	AvgRealizedPnL float64 `json:"avg_realized_pnl"`
	Reverted       bool    `json:"reverted"`
}
