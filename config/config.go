package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the full bridge configuration. Field names map to the
// `mapstructure` tags used by viper when loading from flags, environment or
// config file.
type Config struct {
	// Mode is the raw mode selector, e.g. "e2hs:1000000-1008191:random".
	Mode string `mapstructure:"mode"`

	// RandomSeed seeds the epoch shuffle for randomized e2hs mode. Zero
	// means derive a seed from the clock.
	RandomSeed int64 `mapstructure:"random-seed"`

	// ExecutionEndpoint is the execution-layer JSON-RPC URL.
	ExecutionEndpoint string `mapstructure:"execution-endpoint"`
	// ConsensusEndpoint is the consensus-layer REST URL.
	ConsensusEndpoint string `mapstructure:"consensus-endpoint"`
	// ArchiveDir holds e2hs epoch files for archive-backed history mode.
	ArchiveDir string `mapstructure:"archive-dir"`

	// OverlayEndpoints are the portal client JSON-RPC URLs gossip is fanned
	// out across. At least one is required.
	OverlayEndpoints []string `mapstructure:"overlay-endpoints"`

	// DispatchConcurrency bounds concurrently in-flight content items,
	// independent of how many work units are being processed upstream.
	DispatchConcurrency int `mapstructure:"dispatch-concurrency"`
	// Lookahead bounds how many work units may be concurrently fetching,
	// transforming or dispatching.
	Lookahead int `mapstructure:"lookahead"`
	// RetryAttempts bounds gossip delivery attempts per content item.
	RetryAttempts int `mapstructure:"retry-attempts"`
	// ExhaustedThreshold aborts the run once this many units have spent
	// their retry budget without delivering all content.
	ExhaustedThreshold int `mapstructure:"exhausted-threshold"`

	// PollInterval is the head-poll cadence in latest mode; it defaults to
	// the chain's slot duration.
	PollInterval time.Duration `mapstructure:"poll-interval"`
	// Lookback bounds how far behind the head latest mode starts when no
	// checkpoint exists.
	Lookback uint64 `mapstructure:"lookback"`

	// AttemptTimeout bounds every provider fetch and every gossip attempt.
	AttemptTimeout time.Duration `mapstructure:"attempt-timeout"`

	// LargeValueThreshold is the content value size, in bytes, above which
	// a value is offered by reference where supported and counted against
	// the large-value residency bound.
	LargeValueThreshold int `mapstructure:"large-value-threshold"`
	// LargeValueResidency bounds how many large values may be resident in
	// the dispatcher at once.
	LargeValueResidency int `mapstructure:"large-value-residency"`

	// DataDir is where the checkpoint database lives.
	DataDir string `mapstructure:"data-dir"`

	// LogLevel and LogFormat configure the default logger.
	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`

	// Prometheus toggles the metrics endpoint at PrometheusListenAddr.
	Prometheus           bool   `mapstructure:"prometheus"`
	PrometheusListenAddr string `mapstructure:"prometheus-listen-addr"`
}

// DefaultConfig returns a default configuration for the bridge.
func DefaultConfig() *Config {
	return &Config{
		DispatchConcurrency:  8,
		Lookahead:            4,
		RetryAttempts:        3,
		ExhaustedThreshold:   10,
		PollInterval:         12 * time.Second,
		Lookback:             32,
		AttemptTimeout:       30 * time.Second,
		LargeValueThreshold:  1 << 20,
		LargeValueResidency:  4,
		DataDir:              "data",
		LogLevel:             "info",
		LogFormat:            "plain",
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
	}
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	if cfg.DispatchConcurrency <= 0 {
		return errors.New("dispatch-concurrency must be positive")
	}
	if cfg.Lookahead <= 0 {
		return errors.New("lookahead must be positive")
	}
	if cfg.RetryAttempts <= 0 {
		return errors.New("retry-attempts must be positive")
	}
	if cfg.ExhaustedThreshold < 0 {
		return errors.New("exhausted-threshold can't be negative")
	}
	if cfg.PollInterval <= 0 {
		return errors.New("poll-interval must be positive")
	}
	if cfg.AttemptTimeout <= 0 {
		return errors.New("attempt-timeout must be positive")
	}
	if cfg.LargeValueThreshold <= 0 {
		return errors.New("large-value-threshold must be positive")
	}
	if cfg.LargeValueResidency <= 0 {
		return errors.New("large-value-residency must be positive")
	}
	if len(cfg.OverlayEndpoints) == 0 {
		return errors.New("at least one overlay endpoint is required")
	}
	switch mode.Kind {
	case ModeE2HS:
		if cfg.ArchiveDir == "" {
			return errors.New("e2hs mode requires archive-dir")
		}
	case ModeLatest:
		if cfg.ConsensusEndpoint == "" {
			return errors.New("latest mode requires consensus-endpoint")
		}
	case ModeSingle, ModeSnapshot:
		if cfg.ExecutionEndpoint == "" {
			return fmt.Errorf("%s mode requires execution-endpoint", mode.Kind)
		}
	}
	return nil
}

// ParsedMode returns the typed mode selector. ValidateBasic must have
// succeeded first.
func (cfg *Config) ParsedMode() (Mode, error) {
	return ParseMode(cfg.Mode)
}
