// Copyright 2025 Certen Protocol

package producer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/certen/sovereign-engine/pkg/event"
)

// TechnicalAnalysisProducer fetches pre-computed TA indicators from a
// configured HTTP endpoint and emits signal.ta.v1. The endpoint is
// resolved from an env var so the same binary can point at a sidecar in
// every environment without a recompile.
type TechnicalAnalysisProducer struct {
	symbols     []string
	endpointEnv string
	client      *http.Client
}

// NewTechnicalAnalysisProducer builds a TA producer over symbols, reading
// its endpoint from the TA_URL environment variable on every Collect.
func NewTechnicalAnalysisProducer(symbols []string) *TechnicalAnalysisProducer {
	return &TechnicalAnalysisProducer{
		symbols:     symbols,
		endpointEnv: "TA_URL",
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *TechnicalAnalysisProducer) Name() string     { return "technical-analysis" }
func (p *TechnicalAnalysisProducer) Domain() string   { return "technical" }
func (p *TechnicalAnalysisProducer) Schedule() string { return "*/15 * * * *" }

type taRow struct {
	Symbol        string  `json:"symbol"`
	Asset         string  `json:"asset"`
	RSI14         float64 `json:"rsi_14"`
	TrendStrength float64 `json:"trend_strength"`
	VolumeRatio   float64 `json:"volume_ratio"`
	MACDHist      float64 `json:"macd_hist"`
	Direction     string  `json:"direction"`
}

type taResponse struct {
	Data []taRow `json:"data"`
}

// Collect posts the configured symbol universe to the TA endpoint and
// returns the raw rows it responds with. An unset endpoint is not an
// error — it degrades the producer to a no-op the same way the
// unconfigured-endpoint path did in the original.
func (p *TechnicalAnalysisProducer) Collect(ctx context.Context) ([]any, error) {
	url := os.Getenv(p.endpointEnv)
	if url == "" {
		return nil, nil
	}

	body, err := json.Marshal(map[string]any{"symbols": p.symbols})
	if err != nil {
		return nil, fmt.Errorf("ta producer: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ta producer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ta producer: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ta producer: endpoint returned %d", resp.StatusCode)
	}

	var parsed taResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ta producer: decode response: %w", err)
	}

	raw := make([]any, len(parsed.Data))
	for i, row := range parsed.Data {
		raw[i] = row
	}
	return raw, nil
}

// Normalize turns each TA row into a signal.ta.v1 draft, deduped by
// symbol + producer + minute so a retried poll never double-publishes.
func (p *TechnicalAnalysisProducer) Normalize(ctx context.Context, raw []any) ([]Draft, error) {
	ts := time.Now().UTC()
	drafts := make([]Draft, 0, len(raw))

	for _, r := range raw {
		row, ok := r.(taRow)
		if !ok {
			continue
		}
		sym := strings.ToUpper(strings.TrimSpace(row.Symbol))
		if sym == "" {
			sym = strings.ToUpper(strings.TrimSpace(row.Asset))
		}
		if sym == "" {
			continue
		}

		drafts = append(drafts, Draft{
			Type: string(event.TypeSignalTA),
			Payload: event.SignalTAPayload{
				Symbol:        sym,
				RSI14:         row.RSI14,
				TrendStrength: row.TrendStrength,
				VolumeRatio:   row.VolumeRatio,
				MACDHist:      row.MACDHist,
				Direction:     row.Direction,
			},
			ObservedAt: &ts,
			DedupeKey:  fmt.Sprintf("%s:technical-analysis:%s:%d", event.TypeSignalTA, sym, ts.Unix()/60),
		})
	}
	return drafts, nil
}
