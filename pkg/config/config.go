// Copyright 2025 Certen Protocol

// Package config loads the engine's closed configuration surface from
// environment variables, with an optional YAML overlay whose weights
// map replaces preset synthesis weights on load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Preset is a named starting point for Weights and Risk before any
// learned-weights overlay or explicit env override is applied.
type Preset string

const (
	PresetConservative Preset = "conservative"
	PresetBalanced     Preset = "balanced"
	PresetDegen        Preset = "degen"
	PresetCustom       Preset = "custom"
)

// ExecutionMode selects whether the OMS submits to the paper broker or a
// live venue.
type ExecutionMode string

const (
	ExecutionModePaper ExecutionMode = "paper"
	ExecutionModeLive  ExecutionMode = "live"
)

// SettlementMode controls when karma accrual converts to a payable receipt.
type SettlementMode string

const (
	SettlementManual    SettlementMode = "manual"
	SettlementDaily     SettlementMode = "daily"
	SettlementWeekly    SettlementMode = "weekly"
	SettlementThreshold SettlementMode = "threshold"
)

// Weights holds the per-domain synthesis fusion weights. These must sum
// to 1±0.001; Validate enforces that.
type Weights struct {
	Curator   float64 `yaml:"curator"`
	Onchain   float64 `yaml:"onchain"`
	Tradfi    float64 `yaml:"tradfi"`
	Social    float64 `yaml:"social"`
	Technical float64 `yaml:"technical"`
	Events    float64 `yaml:"events"`
}

// Sum returns the total of all six domain weights.
func (w Weights) Sum() float64 {
	return w.Curator + w.Onchain + w.Tradfi + w.Social + w.Technical + w.Events
}

// Risk holds the position and portfolio risk limits the sizer and
// preflight gate enforce.
type Risk struct {
	MaxLeverage         float64
	MaxPositionPct      float64
	MaxPortfolioHeatPct float64
	DailyLossLimitPct   float64
	MaxDrawdownPct      float64
}

// Brain holds the cadence of the synthesis -> regime -> conviction ->
// decision cycle.
type Brain struct {
	CycleIntervalSeconds int
}

// Execution holds OMS mode and paper-broker bootstrap parameters.
type Execution struct {
	Mode                     ExecutionMode
	PaperStartBalance        float64
	ConfirmationThresholdUSD float64
	PaperMinDays             int
}

// KillSwitch holds the four escalating thresholds the kill switch state
// machine evaluates.
type KillSwitch struct {
	L1DailyLossPct     float64
	L2PortfolioHeatPct float64
	L3CrisisThreshold  float64
	L4MaxDrawdownPct   float64
}

// Karma holds contributor-reward accrual and settlement configuration.
type Karma struct {
	Enabled         bool
	Percentage      float64
	SettlementMode  SettlementMode
	ThresholdUSD    float64
	TreasuryAddress string
}

// Universe holds the tradable symbol set.
type Universe struct {
	Symbols []string
}

// Logging holds the ambient logging configuration.
type Logging struct {
	Level      string
	JSONOutput bool
}

// RateLimit holds the per-contributor signal submission caps.
type RateLimit struct {
	MaxPerHour             int
	MaxPerDay              int
	DuplicateWindowMinutes int
}

// Config is the engine's full closed configuration surface.
type Config struct {
	Preset     Preset
	Weights    Weights
	Risk       Risk
	Brain      Brain
	Execution  Execution
	KillSwitch KillSwitch
	Karma      Karma
	Universe   Universe
	Logging    Logging
	RateLimit  RateLimit

	// Database configuration: a DSN plus pool tuning knobs consumed
	// directly by pkg/database.Client.
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int
	DatabaseMaxLifetime int

	// Operator identity (pkg/identity): the path to the encrypted
	// secp256k1 key file the Ed25519 signing key is derived from, and
	// the validator/operator label stamped into signed karma intents.
	OperatorKeyPath     string
	OperatorKeyPassword string
	ValidatorID         string

	// LearnedWeightsPath, if set, is a YAML file overlaying Weights
	// after preset/env load.
	LearnedWeightsPath string

	// Firestore mirror (pkg/mirror), optional and best-effort.
	FirestoreEnabled        bool
	FirebaseProjectID       string
	FirebaseCredentialsFile string

	// MetricsAddr is where pkg/metrics serves /metrics.
	MetricsAddr string
}

// presets holds the Weights/Risk starting point for each built-in preset.
// "custom" has no entry here — it is whatever the env vars or YAML
// overlay say.
var presets = map[Preset]struct {
	Weights Weights
	Risk    Risk
}{
	PresetConservative: {
		Weights: Weights{Curator: 0.10, Onchain: 0.20, Tradfi: 0.25, Social: 0.10, Technical: 0.25, Events: 0.10},
		Risk:    Risk{MaxLeverage: 1.0, MaxPositionPct: 0.05, MaxPortfolioHeatPct: 0.20, DailyLossLimitPct: 0.02, MaxDrawdownPct: 0.10},
	},
	PresetBalanced: {
		Weights: Weights{Curator: 0.15, Onchain: 0.20, Tradfi: 0.20, Social: 0.15, Technical: 0.20, Events: 0.10},
		Risk:    Risk{MaxLeverage: 2.0, MaxPositionPct: 0.10, MaxPortfolioHeatPct: 0.35, DailyLossLimitPct: 0.04, MaxDrawdownPct: 0.20},
	},
	PresetDegen: {
		Weights: Weights{Curator: 0.20, Onchain: 0.25, Tradfi: 0.10, Social: 0.20, Technical: 0.15, Events: 0.10},
		Risk:    Risk{MaxLeverage: 4.0, MaxPositionPct: 0.20, MaxPortfolioHeatPct: 0.60, DailyLossLimitPct: 0.08, MaxDrawdownPct: 0.35},
	},
}

// PresetWeights returns the built-in starting weights for p, so callers
// outside this package (the learning loop's overfitting reversion) can
// revert to a preset without duplicating the table above.
func PresetWeights(p Preset) (Weights, bool) {
	base, ok := presets[p]
	if !ok {
		return Weights{}, false
	}
	return base.Weights, true
}

// Load reads configuration from environment variables, seeding
// Weights/Risk from PRESET (default "balanced") and then applying any
// explicit per-field overrides. Call Validate() after Load().
func Load() (*Config, error) {
	preset := Preset(getEnv("PRESET", string(PresetBalanced)))

	base, ok := presets[preset]
	if !ok && preset != PresetCustom {
		return nil, fmt.Errorf("config: unknown preset %q", preset)
	}

	cfg := &Config{
		Preset:  preset,
		Weights: base.Weights,
		Risk:    base.Risk,

		Brain: Brain{
			CycleIntervalSeconds: getEnvInt("BRAIN_CYCLE_INTERVAL_SECONDS", 300),
		},
		Execution: Execution{
			Mode:                     ExecutionMode(getEnv("EXECUTION_MODE", string(ExecutionModePaper))),
			PaperStartBalance:        getEnvFloat("EXECUTION_PAPER_START_BALANCE", 100000),
			ConfirmationThresholdUSD: getEnvFloat("EXECUTION_CONFIRMATION_THRESHOLD_USD", 5000),
			PaperMinDays:             getEnvInt("EXECUTION_PAPER_MIN_DAYS", 30),
		},
		KillSwitch: KillSwitch{
			L1DailyLossPct:     getEnvFloat("KILL_SWITCH_L1_DAILY_LOSS_PCT", 0.05),
			L2PortfolioHeatPct: getEnvFloat("KILL_SWITCH_L2_PORTFOLIO_HEAT_PCT", 0.70),
			L3CrisisThreshold:  getEnvFloat("KILL_SWITCH_L3_CRISIS_THRESHOLD", 0.85),
			L4MaxDrawdownPct:   getEnvFloat("KILL_SWITCH_L4_MAX_DRAWDOWN_PCT", 0.30),
		},
		Karma: Karma{
			Enabled:         getEnvBool("KARMA_ENABLED", true),
			Percentage:      getEnvFloat("KARMA_PERCENTAGE", 0.10),
			SettlementMode:  SettlementMode(getEnv("KARMA_SETTLEMENT_MODE", string(SettlementWeekly))),
			ThresholdUSD:    getEnvFloat("KARMA_THRESHOLD_USD", 100),
			TreasuryAddress: getEnv("KARMA_TREASURY_ADDRESS", ""),
		},
		Universe: Universe{
			Symbols: splitCSV(getEnv("UNIVERSE_SYMBOLS", "BTC-USD,ETH-USD")),
		},
		Logging: Logging{
			Level:      getEnv("LOG_LEVEL", "info"),
			JSONOutput: getEnvBool("LOG_JSON_OUTPUT", false),
		},
		RateLimit: RateLimit{
			MaxPerHour:             getEnvInt("RATE_LIMIT_MAX_PER_HOUR", 20),
			MaxPerDay:              getEnvInt("RATE_LIMIT_MAX_PER_DAY", 100),
			DuplicateWindowMinutes: getEnvInt("RATE_LIMIT_DUPLICATE_WINDOW_MINUTES", 30),
		},

		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 5),
		DatabaseMaxIdleTime: getEnvInt("DATABASE_MAX_IDLE_TIME", 300),
		DatabaseMaxLifetime: getEnvInt("DATABASE_MAX_LIFETIME", 3600),

		OperatorKeyPath:     getEnv("OPERATOR_KEY_PATH", "./data/operator.key"),
		OperatorKeyPassword: getEnv("OPERATOR_KEY_PASSWORD", ""),
		ValidatorID:         getEnv("VALIDATOR_ID", "engine-default"),

		LearnedWeightsPath: getEnv("LEARNED_WEIGHTS_PATH", ""),

		FirestoreEnabled:        getEnvBool("FIRESTORE_ENABLED", false),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
	}

	// Explicit per-field weight/risk overrides apply regardless of
	// preset, so an operator can tune a single knob without forking to
	// "custom".
	cfg.Weights.Curator = getEnvFloat("WEIGHTS_CURATOR", cfg.Weights.Curator)
	cfg.Weights.Onchain = getEnvFloat("WEIGHTS_ONCHAIN", cfg.Weights.Onchain)
	cfg.Weights.Tradfi = getEnvFloat("WEIGHTS_TRADFI", cfg.Weights.Tradfi)
	cfg.Weights.Social = getEnvFloat("WEIGHTS_SOCIAL", cfg.Weights.Social)
	cfg.Weights.Technical = getEnvFloat("WEIGHTS_TECHNICAL", cfg.Weights.Technical)
	cfg.Weights.Events = getEnvFloat("WEIGHTS_EVENTS", cfg.Weights.Events)

	cfg.Risk.MaxLeverage = getEnvFloat("RISK_MAX_LEVERAGE", cfg.Risk.MaxLeverage)
	cfg.Risk.MaxPositionPct = getEnvFloat("RISK_MAX_POSITION_PCT", cfg.Risk.MaxPositionPct)
	cfg.Risk.MaxPortfolioHeatPct = getEnvFloat("RISK_MAX_PORTFOLIO_HEAT_PCT", cfg.Risk.MaxPortfolioHeatPct)
	cfg.Risk.DailyLossLimitPct = getEnvFloat("RISK_DAILY_LOSS_LIMIT_PCT", cfg.Risk.DailyLossLimitPct)
	cfg.Risk.MaxDrawdownPct = getEnvFloat("RISK_MAX_DRAWDOWN_PCT", cfg.Risk.MaxDrawdownPct)

	if cfg.LearnedWeightsPath != "" {
		if err := cfg.applyLearnedWeightsOverlay(cfg.LearnedWeightsPath); err != nil {
			return nil, fmt.Errorf("config: learned weights overlay: %w", err)
		}
	}

	return cfg, nil
}

// learnedWeightsFile is the on-disk shape of a learned-weights overlay
// written by pkg/learning after a weight adjustment cycle.
type learnedWeightsFile struct {
	Weights Weights `yaml:"weights"`
}

// applyLearnedWeightsOverlay replaces cfg.Weights with the weights map
// from a YAML file. A missing file is not an error — the overlay simply
// hasn't been written yet on a cold start.
func (c *Config) applyLearnedWeightsOverlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var overlay learnedWeightsFile
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	c.Weights = overlay.Weights
	return nil
}

// Validate checks the closed configuration surface for internal
// consistency. Must be called after Load() before starting the engine.
func (c *Config) Validate() error {
	var errs []string

	if sum := c.Weights.Sum(); sum < 0.999 || sum > 1.001 {
		errs = append(errs, fmt.Sprintf("weights must sum to 1±0.001, got %.4f", sum))
	}

	if c.Risk.MaxLeverage <= 0 {
		errs = append(errs, "risk.max_leverage must be positive")
	}
	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 1 {
		errs = append(errs, "risk.max_position_pct must be in (0, 1]")
	}
	if c.Risk.MaxPortfolioHeatPct <= 0 || c.Risk.MaxPortfolioHeatPct > 1 {
		errs = append(errs, "risk.max_portfolio_heat_pct must be in (0, 1]")
	}

	if c.Brain.CycleIntervalSeconds <= 0 {
		errs = append(errs, "brain.cycle_interval_seconds must be positive")
	}

	switch c.Execution.Mode {
	case ExecutionModePaper, ExecutionModeLive:
	default:
		errs = append(errs, fmt.Sprintf("execution.mode must be paper or live, got %q", c.Execution.Mode))
	}
	if c.Execution.PaperMinDays < 1 {
		errs = append(errs, "execution.paper_min_days must be >= 1")
	}

	switch c.Karma.SettlementMode {
	case SettlementManual, SettlementDaily, SettlementWeekly, SettlementThreshold:
	default:
		errs = append(errs, fmt.Sprintf("karma.settlement_mode invalid: %q", c.Karma.SettlementMode))
	}

	if len(c.Universe.Symbols) == 0 {
		errs = append(errs, "universe.symbols must not be empty")
	}

	if c.RateLimit.MaxPerHour <= 0 {
		errs = append(errs, "rate_limit.max_per_hour must be positive")
	}
	if c.RateLimit.MaxPerDay <= 0 {
		errs = append(errs, "rate_limit.max_per_day must be positive")
	}

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required but not set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ConnMaxLifetime returns DatabaseMaxLifetime as a time.Duration, the
// shape pkg/database.Client's pool tuning expects.
func (c *Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.DatabaseMaxLifetime) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
