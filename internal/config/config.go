// Package config loads the coordinator/gateway YAML configuration and
// re-reads the whole file when it changes (Manager.Watch), grounded on the
// teacher's internal/license.Manager reload-and-watch shape. Reloaded values
// reach only callers that call Current() again after the reload.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/technosupport/vms-coordinator/internal/ratelimit"
)

// LeasePolicy holds the default/max lease TTL and a renewal
// consecutive-failure threshold (spec.md §4.1/§4.4). coordinatord passes
// the TTL bounds to its lease store once at startup. RenewalFailureThreshold
// is not read by the renewal engine, which uses its own fixed threshold
// (consecutiveFailureThreshold in internal/orchestrator).
type LeasePolicy struct {
	DefaultTTLSeconds       int64 `yaml:"default_ttl_seconds"`
	MaxTTLSeconds           int64 `yaml:"max_ttl_seconds"`
	RenewalFailureThreshold int   `yaml:"renewal_failure_threshold"`
}

// RateLimits is the on-disk shape of the rate-limit policy: a global
// per-IP bucket, a per-node bucket, and a map of path to limiter config
// for the handful of endpoints (lease acquire above all) that warrant a
// tighter bucket than the defaults.
type RateLimits struct {
	GlobalIP  ratelimit.LimitConfig            `yaml:"global_ip"`
	Node      ratelimit.LimitConfig            `yaml:"node"`
	Endpoints map[string]ratelimit.LimitConfig `yaml:"endpoints"`
}

// Config is the full on-disk shape of a coordinatord/gatewayd config file.
type Config struct {
	NodeID   string `yaml:"node_id"`
	HTTPAddr string `yaml:"http_addr"`

	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`

	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`

	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`

	NodeAuth struct {
		SigningKey string        `yaml:"signing_key"`
		TTL        time.Duration `yaml:"ttl"`
	} `yaml:"node_auth"`

	Leases     LeasePolicy `yaml:"leases"`
	RateLimits RateLimits  `yaml:"rate_limits"`
}

func defaults() Config {
	var cfg Config
	cfg.HTTPAddr = ":8443"
	cfg.Leases = LeasePolicy{
		DefaultTTLSeconds:       30,
		MaxTTLSeconds:           120,
		RenewalFailureThreshold: 3,
	}
	cfg.RateLimits = RateLimits{
		GlobalIP: ratelimit.LimitConfig{Rate: 200, Window: time.Second},
		Node:     ratelimit.LimitConfig{Rate: 50, Window: time.Second},
		Endpoints: map[string]ratelimit.LimitConfig{
			"/v1/leases/acquire": {Rate: 10, Window: time.Second},
		},
	}
	return cfg
}

func load(path string) (Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Manager holds the live config and serves atomic reads while a background
// watcher (watcher.go) applies reloads.
type Manager struct {
	mu   sync.RWMutex
	path string
	cfg  Config
}

// NewManager loads path once and returns a Manager ready for Current() reads.
// Call Watch separately to pick up subsequent edits.
func NewManager(path string) (*Manager, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	return &Manager{path: path, cfg: cfg}, nil
}

func (m *Manager) Current() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Reload re-reads the config file, keeping the previous value on error so a
// transient edit (or a temporarily truncated file from a concurrent writer)
// never leaves the process without a usable config.
func (m *Manager) Reload() {
	cfg, err := load(m.path)
	if err != nil {
		fmt.Printf("config: reload failed, keeping previous config: %v\n", err)
		return
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}
