// Copyright 2025 Certen Protocol
//
// Package mirror best-effort mirrors a handful of engine projections
// (kill switch level, open positions, latest conviction per symbol) to
// Firestore for a dashboard to read. The journal remains the only
// source of truth; nothing here is ever read back into the engine, and
// every write is fire-and-forget — a Firestore outage never blocks a
// brain cycle.
package mirror

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"

	gcpfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// Client wraps the Firestore client with engine-specific no-op-when-
// disabled semantics.
type Client struct {
	app       *firebase.App
	firestore *gcpfirestore.Client
	projectID string
	logger    *log.Logger
	enabled   bool
	mu        sync.RWMutex
}

// ClientConfig holds the Firestore mirror's connection parameters.
type ClientConfig struct {
	ProjectID       string
	CredentialsFile string
	Enabled         bool
	Logger          *log.Logger
}

// DefaultConfig builds a ClientConfig from the environment variables
// pkg/config.Config also reads, so cmd/engine can construct one
// directly from its loaded Config instead.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		ProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		Enabled:         getEnvBool("FIRESTORE_ENABLED", false),
		Logger:          log.New(os.Stdout, "[mirror] ", log.LstdFlags),
	}
}

// NewClient constructs a Client. When cfg.Enabled is false it returns a
// disabled no-op client without touching the network — the default for
// local development and for CI.
func NewClient(ctx context.Context, cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[mirror] ", log.LstdFlags)
	}

	client := &Client{projectID: cfg.ProjectID, logger: cfg.Logger, enabled: cfg.Enabled}
	if !cfg.Enabled {
		cfg.Logger.Println("firestore mirror disabled - running in no-op mode")
		return client, nil
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("mirror: FIREBASE_PROJECT_ID is required when enabled")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("mirror: init firebase app: %w", err)
	}
	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("mirror: init firestore client: %w", err)
	}
	client.app = app
	client.firestore = fsClient
	cfg.Logger.Printf("firestore mirror initialized for project %s", cfg.ProjectID)
	return client, nil
}

// Close releases the underlying Firestore client, if one was opened.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.firestore != nil {
		return c.firestore.Close()
	}
	return nil
}

// IsEnabled reports whether the mirror is actually writing to Firestore.
func (c *Client) IsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// set writes doc at path, logging and swallowing any error — callers in
// this package treat mirroring as best-effort and never propagate a
// Firestore failure into the trading loop.
func (c *Client) set(ctx context.Context, path string, doc map[string]interface{}) {
	if !c.IsEnabled() {
		return
	}
	if c.firestore == nil {
		c.logger.Printf("mirror: firestore client not initialized, dropping write to %s", path)
		return
	}
	if _, err := c.firestore.Doc(path).Set(ctx, doc); err != nil {
		c.logger.Printf("mirror: write to %s failed: %v", path, err)
	}
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}
