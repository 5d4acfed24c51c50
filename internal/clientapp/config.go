package clientapp

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/focusledger/internal/client"
	"github.com/MarkoPoloResearchLab/focusledger/internal/localstate"
	"github.com/MarkoPoloResearchLab/focusledger/internal/scheduler"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
)

const (
	defaultListenAddr    = "127.0.0.1:9090"
	defaultLedgerAddr    = "localhost:7000"
	defaultLedgerTimeout = 5 * time.Second
	defaultAllowedOrigin = "http://localhost:8000"
	defaultKeyFile       = "wallet.key"
	defaultStateDir      = ".focusledger"
)

// Config aggregates runtime settings for the focus client.
type Config struct {
	ListenAddr     string
	LedgerAddress  string
	LedgerInsecure bool
	LedgerTimeout  time.Duration
	Network        string
	KeyPath        string
	StateDir       string
	StorageKey     string
	RedisURL       string
	AllowedOrigins []string
	LogDev         bool

	GasBudget        uint64
	ConfirmTimeout   time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	PointsPerSession uint64
	PollInterval     time.Duration

	Schedule scheduler.Config
}

// Validate fills defaults and ensures the configuration is usable.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.LedgerAddress = defaultIfEmpty(cfg.LedgerAddress, defaultLedgerAddr)
	cfg.Network = defaultIfEmpty(cfg.Network, economy.DefaultNetwork)
	cfg.StateDir = defaultIfEmpty(cfg.StateDir, defaultStateDir)
	cfg.KeyPath = defaultIfEmpty(cfg.KeyPath, filepath.Join(cfg.StateDir, defaultKeyFile))
	cfg.StorageKey = defaultIfEmpty(cfg.StorageKey, localstate.DefaultStorageKey)
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = defaultLedgerTimeout
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	if strings.ContainsAny(cfg.StorageKey, `/\`) {
		return fmt.Errorf("storage key %q must not contain path separators", cfg.StorageKey)
	}
	return nil
}

// ClientConfig is the orchestrator view of the configuration.
func (cfg Config) ClientConfig() client.Config {
	return client.Config{
		Network:          cfg.Network,
		GasBudget:        cfg.GasBudget,
		ConfirmTimeout:   cfg.ConfirmTimeout,
		MaxRetries:       cfg.MaxRetries,
		RetryBackoff:     cfg.RetryBackoff,
		PointsPerSession: cfg.PointsPerSession,
	}
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
