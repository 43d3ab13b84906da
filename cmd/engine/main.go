// Copyright 2025 Certen Protocol

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/certen/sovereign-engine/pkg/brain"
	"github.com/certen/sovereign-engine/pkg/config"
	"github.com/certen/sovereign-engine/pkg/database"
	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/execution"
	"github.com/certen/sovereign-engine/pkg/identity"
	"github.com/certen/sovereign-engine/pkg/journal"
	"github.com/certen/sovereign-engine/pkg/killswitch"
	"github.com/certen/sovereign-engine/pkg/learning"
	"github.com/certen/sovereign-engine/pkg/metrics"
	"github.com/certen/sovereign-engine/pkg/mirror"
	"github.com/certen/sovereign-engine/pkg/producer"
	"github.com/certen/sovereign-engine/pkg/projections"
	"github.com/certen/sovereign-engine/pkg/timeutil"
)

// HealthStatus tracks the health of every wired component for the
// /health endpoint. Updated during startup and from the main cycle
// loop; read by the HTTP handler under RLock.
type HealthStatus struct {
	Status        string `json:"status"` // "starting", "ok", "degraded", "error"
	Database      string `json:"database"`
	KillSwitch    string `json:"kill_switch"`
	ExecutionMode string `json:"execution_mode"`
	LastCycleID   string `json:"last_cycle_id"`
	LastCycleAt   string `json:"last_cycle_at"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	startTime time.Time
	mu        sync.RWMutex
}

var healthStatus = &HealthStatus{Status: "starting", startTime: time.Now()}

func (h *HealthStatus) SetDatabase(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Database = s
}

func (h *HealthStatus) SetKillSwitch(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.KillSwitch = s
}

func (h *HealthStatus) SetCycle(cycleID string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastCycleID = cycleID
	h.LastCycleAt = at.UTC().Format(time.RFC3339)
}

func (h *HealthStatus) SetStatus(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Status = s
}

func (h *HealthStatus) ToJSON() []byte {
	h.mu.Lock()
	h.UptimeSeconds = int64(time.Since(h.startTime).Seconds())
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	data, _ := json.Marshal(h)
	return data
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("starting sovereign engine")

	var (
		validatorID = flag.String("validator-id", "", "Validator ID (overrides VALIDATOR_ID env var)")
		showHelp    = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	if *validatorID != "" {
		cfg.ValidatorID = *validatorID
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	log.Printf("validator id: %s, preset: %s, execution mode: %s", cfg.ValidatorID, cfg.Preset, cfg.Execution.Mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbClient, err := database.NewClient(cfg, database.WithLogger(log.New(log.Writer(), "[database] ", log.LstdFlags)))
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer dbClient.Close()
	if err := dbClient.MigrateUp(ctx); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	healthStatus.SetDatabase("connected")
	log.Println("database connected and migrated")

	store, err := journal.Open(ctx, dbClient)
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}
	defer store.Close()

	reg := metrics.New()
	store.SetMetrics(reg)

	ks, err := killswitch.Open(ctx, cfg.KillSwitch, store)
	if err != nil {
		log.Fatalf("open kill switch: %v", err)
	}
	ks.SetMetrics(reg)
	healthStatus.SetKillSwitch(ks.Level().String())

	id, err := loadOrGenerateIdentity(cfg)
	if err != nil {
		log.Fatalf("load operator identity: %v", err)
	}
	log.Printf("operator identity loaded: ed25519 public key %s", id.PublicKeyHex())
	gate := identity.NewGate(id.PublicKeyHex())
	_ = gate // authorizes kill-switch reset / karma migration / overlay replacement, driven from the API layer

	mirrorClient, err := mirror.NewClient(ctx, &mirror.ClientConfig{
		ProjectID:       cfg.FirebaseProjectID,
		CredentialsFile: cfg.FirebaseCredentialsFile,
		Enabled:         cfg.FirestoreEnabled,
		Logger:          log.New(log.Writer(), "[mirror] ", log.LstdFlags),
	})
	if err != nil {
		log.Fatalf("init firestore mirror: %v", err)
	}
	defer mirrorClient.Close()
	mirrorSvc := mirror.NewService(mirrorClient)
	go mirrorSvc.Run(ctx, store, 30*time.Second)

	orchestrator := brain.NewBrainOrchestrator(cfg, store, ks, cfg.ValidatorID)
	orchestrator.SetMetrics(reg)

	preflight := execution.NewPreflight(cfg.Risk, ks, nil)
	sizer := execution.NewCorrelationAwareSizer(execution.NewSizer(execution.DefaultKellyParams(), execution.RiskLimits{
		MaxPositionPct: cfg.Risk.MaxPositionPct,
		MinPositionUSD: 10,
	}))
	paperBroker, err := execution.OpenPaperBroker(ctx, execution.DefaultPaperConfig(), store, timeutil.SystemClock{})
	if err != nil {
		log.Fatalf("open paper broker: %v", err)
	}
	pnl, err := execution.OpenPnLTracker(ctx, store)
	if err != nil {
		log.Fatalf("open pnl tracker: %v", err)
	}
	oms := execution.NewOMS(store, preflight, sizer, paperBroker, pnl, string(cfg.Execution.Mode), cfg.Risk.MaxPositionPct)

	learningRepo := database.NewLearningRepository(dbClient)
	learningEngine := learning.NewEngine(store, learningRepo, cfg)

	registry := producer.NewRegistry()
	registry.Register(producer.NewTechnicalAnalysisProducer(cfg.Universe.Symbols), store)
	registry.Register(producer.TemplateProducer{}, store)
	healthTracker := producer.NewHealthTracker(store)
	healthTracker.SetMetrics(reg)
	scheduler := producer.NewScheduler(registry, healthTracker, log.New(log.Writer(), "[scheduler] ", log.LstdFlags))
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("start producer scheduler: %v", err)
	}
	defer scheduler.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(healthStatus.ToJSON())
	})
	httpServer := &http.Server{Addr: ":8080", Handler: mux}
	go func() {
		log.Printf("health endpoint listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("health server error: %v", err)
		}
	}()

	metricsCtx, metricsCancel := context.WithCancel(ctx)
	defer metricsCancel()
	go func() {
		if err := reg.Serve(metricsCtx, cfg.MetricsAddr); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", cfg.MetricsAddr)

	healthStatus.SetStatus("ok")
	go runCycleLoop(ctx, cfg, store, ks, orchestrator, oms, learningEngine, mirrorSvc)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("health server shutdown error: %v", err)
	}
	log.Println("stopped")
}

// runCycleLoop drives brain cycles on cfg.Brain.CycleIntervalSeconds,
// submitting every produced intent to the OMS and mirroring the
// resulting state to Firestore. A daily learning cycle runs once the
// UTC day changes.
func runCycleLoop(ctx context.Context, cfg *config.Config, store *journal.Store, ks *killswitch.Switch, orchestrator *brain.BrainOrchestrator, oms *execution.OMS, learningEngine *learning.Engine, mirrorSvc *mirror.Service) {
	interval := time.Duration(cfg.Brain.CycleIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastLearningDay := time.Now().UTC().Day()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOneCycle(ctx, cfg, store, ks, orchestrator, oms, mirrorSvc)

			now := time.Now().UTC()
			if now.Day() != lastLearningDay {
				lastLearningDay = now.Day()
				if _, err := learningEngine.RunCycle(ctx, learning.CycleDaily); err != nil {
					log.Printf("learning cycle failed: %v", err)
				}
			}
		}
	}
}

func runOneCycle(ctx context.Context, cfg *config.Config, store *journal.Store, ks *killswitch.Switch, orchestrator *brain.BrainOrchestrator, oms *execution.OMS, mirrorSvc *mirror.Service) {
	result, err := orchestrator.RunCycle(ctx, cfg.Universe.Symbols)
	if err != nil {
		log.Printf("brain cycle failed: %v", err)
		return
	}
	healthStatus.SetCycle(result.CycleID, result.Ts)
	healthStatus.SetKillSwitch(ks.Level().String())

	idx, err := projections.BuildLatestSignalIndex(ctx, store)
	if err != nil {
		log.Printf("rebuild signal index for pricing: %v", err)
		idx = nil
	}

	equity := cfg.Execution.PaperStartBalance
	for _, intent := range result.Intents {
		mid, ok := latestMidPrice(idx, intent.Symbol)
		if !ok {
			log.Printf("no mid price available for %s, skipping intent", intent.Symbol)
			continue
		}

		res, err := oms.Submit(ctx, intent, execution.SubmitParams{
			MidPrice:         mid,
			EquityUSD:        equity,
			DailyLossUSD:     0,
			PortfolioHeatPct: 0,
			CorrToPortfolio:  0,
		})
		if err != nil {
			log.Printf("submit intent %s %s: %v", intent.Symbol, intent.Direction, err)
			continue
		}
		if res.Status != "filled" {
			log.Printf("intent %s %s not filled: %v", intent.Symbol, intent.Direction, res.Reasons)
			continue
		}
		log.Printf("filled %s %s, position %s, notional %.2f", intent.Symbol, intent.Direction, res.PositionID, res.NotionalUSD)

		if conv, ok := result.Convictions[intent.Symbol]; ok {
			mirrorSvc.MirrorConviction(ctx, mirror.ConvictionSnapshot{
				CycleID:    result.CycleID,
				Symbol:     intent.Symbol,
				Direction:  conv.Score.Direction,
				Magnitude:  conv.Score.Magnitude,
				Regime:     conv.Score.Regime,
				PCS:        conv.PCS,
				CTS:        conv.CTS,
				Confidence: conv.Score.Confidence,
				Ts:         result.Ts,
			})
		}
	}

	if err := mirrorSvc.RefreshFromJournal(ctx, store); err != nil {
		log.Printf("mirror refresh: %v", err)
	}
}

// latestMidPrice looks up the most recent signal.price_ws.v1 tick for
// symbol. Producing live price ticks is a streaming producer's job, not
// the brain's — the orchestrator never reads price data itself.
func latestMidPrice(idx *projections.LatestSignalIndex, symbol string) (float64, bool) {
	if idx == nil {
		return 0, false
	}
	env, ok := idx.Latest(strings.ToUpper(symbol), event.TypeSignalPriceWS)
	if !ok {
		return 0, false
	}
	var payload event.SignalPriceWSPayload
	if err := env.DecodePayload(&payload); err != nil {
		return 0, false
	}
	if payload.MidPrice <= 0 {
		return 0, false
	}
	return payload.MidPrice, true
}

// loadOrGenerateIdentity loads the operator's encrypted secp256k1 key
// from cfg.OperatorKeyPath, deriving an Identity from it, or generates a
// new one and persists it encrypted if none exists yet.
func loadOrGenerateIdentity(cfg *config.Config) (*identity.Identity, error) {
	if cfg.OperatorKeyPassword == "" {
		return nil, fmt.Errorf("OPERATOR_KEY_PASSWORD is required to unlock the operator key")
	}

	raw, err := os.ReadFile(cfg.OperatorKeyPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read operator key file: %w", err)
		}
		return generateAndSaveIdentity(cfg)
	}

	var encrypted identity.EncryptedKeyFile
	if err := json.Unmarshal(raw, &encrypted); err != nil {
		return nil, fmt.Errorf("parse operator key file: %w", err)
	}
	secpKey, err := identity.Decrypt(&encrypted, cfg.OperatorKeyPassword)
	if err != nil {
		return nil, err
	}
	defer zero(secpKey)

	return identity.New(cfg.ValidatorID, secpKey)
}

func generateAndSaveIdentity(cfg *config.Config) (*identity.Identity, error) {
	id, rawKey, err := identity.Generate(cfg.ValidatorID)
	if err != nil {
		return nil, fmt.Errorf("generate operator identity: %w", err)
	}
	defer zero(rawKey)

	encrypted, err := identity.Encrypt(rawKey, cfg.OperatorKeyPassword)
	if err != nil {
		return nil, fmt.Errorf("encrypt operator key: %w", err)
	}
	data, err := json.Marshal(encrypted)
	if err != nil {
		return nil, fmt.Errorf("marshal operator key file: %w", err)
	}
	if err := os.WriteFile(cfg.OperatorKeyPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write operator key file: %w", err)
	}
	log.Printf("generated new operator key at %s", cfg.OperatorKeyPath)
	return id, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func printHelp() {
	fmt.Println("sovereign engine daemon")
	fmt.Println()
	fmt.Println("Configuration is read entirely from environment variables; see pkg/config.")
	fmt.Println()
	flag.PrintDefaults()
}
