// Copyright 2025 Certen Protocol
//
// Package event defines the closed set of event types and their typed
// payloads. Every event the journal ever stores is one of these types;
// the journal itself only ever sees opaque JSON, but producers, the brain,
// execution, and learning all construct and parse payloads through this
// package so the schema stays in one place.
package event

// Type is the closed enum of event types, each named "{category}.{domain}.{version}".
type Type string

// Signal event types — inbound from producers.
const (
	TypeSignalTA         Type = "signal.ta.v1"
	TypeSignalOnchain    Type = "signal.onchain.v1"
	TypeSignalTradfi     Type = "signal.tradfi.v1"
	TypeSignalSocial     Type = "signal.social.v1"
	TypeSignalSentiment  Type = "signal.sentiment.v1"
	TypeSignalEvents     Type = "signal.events.v1"
	TypeSignalETF        Type = "signal.etf.v1"
	TypeSignalStablecoin Type = "signal.stablecoin.v1"
	TypeSignalWhale      Type = "signal.whale.v1"
	TypeSignalOrderbook  Type = "signal.orderbook.v1"
	TypeSignalCurator    Type = "signal.curator.v1"
	TypeSignalACI        Type = "signal.aci.v1"
	TypeSignalPriceAlert Type = "signal.price_alert.v1"
	TypeSignalPriceWS    Type = "signal.price_ws.v1"
)

// Brain event types.
const (
	TypeBrainCycle           Type = "brain.cycle.v1"
	TypeBrainConviction      Type = "brain.conviction.v1"
	TypeBrainSynthesis       Type = "brain.synthesis.v1"
	TypeBrainRegimeChange    Type = "brain.regime_change.v1"
	TypeBrainFeatureSnapshot Type = "brain.feature_snapshot.v1"
)

// Execution event types.
const (
	TypeExecutionTradeIntent     Type = "execution.trade_intent.v1"
	TypeExecutionOrderSubmitted  Type = "execution.order_submitted.v1"
	TypeExecutionOrderFilled     Type = "execution.order_filled.v1"
	TypeExecutionOrderCanceled   Type = "execution.order_canceled.v1"
	TypeExecutionOrderFailed     Type = "execution.order_failed.v1"
	TypeExecutionPositionOpened  Type = "execution.position_opened.v1"
	TypeExecutionPositionClosed  Type = "execution.position_closed.v1"
	TypeExecutionPositionUpdated Type = "execution.position_updated.v1"
)

// System event types.
const (
	TypeSystemKillSwitch     Type = "system.kill_switch.v1"
	TypeSystemBalanceUpdated Type = "system.balance_updated.v1"
	TypeSystemAudit          Type = "system.audit.v1"
	TypeSystemProducerHealth Type = "system.producer_health.v1"
)

// Karma event types.
const (
	TypeKarmaIntent          Type = "karma.intent.v1"
	TypeKarmaSettlement      Type = "karma.settlement.v1"
	TypeKarmaReceipt         Type = "karma.receipt.v1"
	TypeKarmaWalletMigration Type = "karma.wallet_migration.v1"
)

// Learning event types.
const (
	TypeLearningOutcome          Type = "learning.outcome.v1"
	TypeLearningWeightAdjustment Type = "learning.weight_adjustment.v1"
	TypeLearningReport           Type = "learning.report.v1"
)

// Domain is one of the feature-vector slots synthesis fuses.
type Domain string

const (
	DomainCurator   Domain = "curator"
	DomainOnchain   Domain = "onchain"
	DomainTradfi    Domain = "tradfi"
	DomainSocial    Domain = "social"
	DomainTechnical Domain = "technical"
	DomainEvents    Domain = "events"
)

// AllDomains lists every domain synthesis can fuse, in a stable order used
// wherever domain iteration order must be deterministic (weight
// renormalization, report generation).
var AllDomains = []Domain{DomainCurator, DomainOnchain, DomainTradfi, DomainSocial, DomainTechnical, DomainEvents}

// Direction is a categorical signal direction, mapped to {+1, -1, 0} by
// synthesis feature extraction.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
)

// Numeric maps a categorical Direction to {+1, -1, 0}.
func (d Direction) Numeric() float64 {
	switch d {
	case DirectionBullish:
		return 1
	case DirectionBearish:
		return -1
	default:
		return 0
	}
}

// domainByEventType maps each signal event type to the domain it feeds.
// Synthesis uses this to find "the latest event(s) of the relevant event
// types" for a domain.
var domainByEventType = map[Type]Domain{
	TypeSignalTA:         DomainTechnical,
	TypeSignalOrderbook:  DomainTechnical,
	TypeSignalPriceWS:    DomainTechnical,
	TypeSignalPriceAlert: DomainTechnical,
	TypeSignalOnchain:    DomainOnchain,
	TypeSignalWhale:      DomainOnchain,
	TypeSignalStablecoin: DomainOnchain,
	TypeSignalTradfi:     DomainTradfi,
	TypeSignalETF:        DomainTradfi,
	TypeSignalSocial:     DomainSocial,
	TypeSignalSentiment:  DomainSocial,
	TypeSignalACI:        DomainSocial,
	TypeSignalEvents:     DomainEvents,
	TypeSignalCurator:    DomainCurator,
}

// DomainFor returns the domain a signal event type feeds, and false if the
// type is not a signal type (e.g. brain/execution/system events).
func DomainFor(t Type) (Domain, bool) {
	d, ok := domainByEventType[t]
	return d, ok
}

// EventTypesForDomain returns every signal event type that feeds a domain.
func EventTypesForDomain(d Domain) []Type {
	var out []Type
	for t, dom := range domainByEventType {
		if dom == d {
			out = append(out, t)
		}
	}
	return out
}
