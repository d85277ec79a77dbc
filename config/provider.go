package config

import (
	"fmt"
	"sync/atomic"

	"github.com/caarlos0/env/v11"
)

// Provider hands out the current configuration snapshot and supports
// re-reading the environment without a restart. Callers always read
// through Snapshot() so a reload takes effect on the next operation.
type Provider struct {
	current atomic.Pointer[AppConfig]
}

// NewProvider creates a Provider seeded with the given configuration.
func NewProvider(cfg AppConfig) *Provider {
	p := &Provider{}
	p.current.Store(&cfg)
	return p
}

// Snapshot returns the current configuration. The returned pointer is
// immutable by convention; Reload swaps in a fresh value rather than
// mutating the old one.
func (p *Provider) Snapshot() *AppConfig {
	return p.current.Load()
}

// Reload re-parses the environment and atomically replaces the snapshot.
// On parse failure the previous snapshot stays in effect.
func (p *Provider) Reload() error {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	p.current.Store(&cfg)
	return nil
}
