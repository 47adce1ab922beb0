// Package runtimeconfig holds the orchestration runtime's own settings:
// registry port allocation and heartbeat cadence, which the orchestrator
// passes on, plus bus, memory digest and provider values that no other
// package reads. It follows the teacher's three
// layer precedence — defaults, then environment variables, then
// functional options — but it never reads a YAML/JSON file: file-based
// workflow/template configuration loaders remain out of scope (spec
// Non-goals).
package runtimeconfig

import (
	"os"
	"strconv"
	"time"
)

// RegistryConfig controls port allocation and capacity for the CI
// registry (spec §4.D).
type RegistryConfig struct {
	BasePort     int           `json:"base_port" env:"ARGO_REGISTRY_BASE_PORT" default:"9000"`
	SlotsPerRole int           `json:"slots_per_role" env:"ARGO_REGISTRY_SLOTS_PER_ROLE" default:"10"`
	Capacity     int           `json:"capacity" env:"ARGO_REGISTRY_CAPACITY" default:"64"`
	StaleAfter   time.Duration `json:"stale_after" env:"ARGO_REGISTRY_STALE_AFTER" default:"60s"`
}

// LifecycleConfig controls heartbeat supervision (spec §4.E).
type LifecycleConfig struct {
	HeartbeatTimeout time.Duration `json:"heartbeat_timeout" env:"ARGO_HEARTBEAT_TIMEOUT" default:"60s"`
	MaxMissed        int           `json:"max_missed" env:"ARGO_HEARTBEAT_MAX_MISSED" default:"3"`
}

// BusConfig holds the message bus's pending-request settings (spec §4.F).
// The bus package does not read these fields: MockBus and NATSBus use
// their own defaults (a cap of 64 pending requests, a 30s timeout).
type BusConfig struct {
	PendingCap     int           `json:"pending_cap" env:"ARGO_BUS_PENDING_CAP" default:"50"`
	RequestTimeout time.Duration `json:"request_timeout" env:"ARGO_BUS_REQUEST_TIMEOUT" default:"30s"`
}

// MemoryConfig holds the bounded memory digest defaults (spec §4.B). The
// memory package does not read these fields: its item and breadcrumb caps
// are fixed there, and each digest's context limit is passed to memory.New.
type MemoryConfig struct {
	DefaultContextLimit int `json:"default_context_limit" env:"ARGO_MEMORY_CONTEXT_LIMIT" default:"8000"`
	MaxItems            int `json:"max_items" env:"ARGO_MEMORY_MAX_ITEMS" default:"100"`
	MaxBreadcrumbs      int `json:"max_breadcrumbs" env:"ARGO_MEMORY_MAX_BREADCRUMBS" default:"20"`
}

// ProviderConfig holds the HTTP-JSON adapter's ambient settings (spec
// §4.A/§4.C), independent of any one vendor's ProviderConfig record. The
// provider package does not read these fields: providers take a
// provider.HTTPTimeouts value, and the adapter's breaker threshold (5
// failures) and reset interval (30s) are fixed there.
type ProviderConfig struct {
	HTTPTimeout          time.Duration `json:"http_timeout" env:"ARGO_PROVIDER_HTTP_TIMEOUT" default:"60s"`
	DaemonTimeout        time.Duration `json:"daemon_timeout" env:"ARGO_PROVIDER_DAEMON_TIMEOUT" default:"60s"`
	DaemonPollInterval   time.Duration `json:"daemon_poll_interval" env:"ARGO_PROVIDER_DAEMON_POLL" default:"10ms"`
	FileMediatedTimeout  time.Duration `json:"file_mediated_timeout" env:"ARGO_PROVIDER_FILE_TIMEOUT" default:"300s"`
	BreakerThreshold     uint32        `json:"breaker_threshold" env:"ARGO_PROVIDER_BREAKER_THRESHOLD" default:"5"`
	BreakerResetInterval time.Duration `json:"breaker_reset_interval" env:"ARGO_PROVIDER_BREAKER_RESET" default:"30s"`
}

// Config aggregates the runtime's configuration surface.
type Config struct {
	Registry  RegistryConfig
	Lifecycle LifecycleConfig
	Bus       BusConfig
	Memory    MemoryConfig
	Provider  ProviderConfig
	LogLevel  string `json:"log_level" env:"ARGO_LOG_LEVEL" default:"info"`
	LogFormat string `json:"log_format" env:"ARGO_LOG_FORMAT"`
}

// Option configures a Config, applied after defaults and environment
// variables — the highest-priority layer, matching the teacher's
// Option-over-env-over-default precedence.
type Option func(*Config)

// Default returns a Config populated with built-in defaults overlaid by
// any recognized environment variables.
func Default() *Config {
	cfg := &Config{
		Registry: RegistryConfig{
			BasePort:     9000,
			SlotsPerRole: 10,
			Capacity:     64,
			StaleAfter:   60 * time.Second,
		},
		Lifecycle: LifecycleConfig{
			HeartbeatTimeout: 60 * time.Second,
			MaxMissed:        3,
		},
		Bus: BusConfig{
			PendingCap:     50,
			RequestTimeout: 30 * time.Second,
		},
		Memory: MemoryConfig{
			DefaultContextLimit: 8000,
			MaxItems:            100,
			MaxBreadcrumbs:      20,
		},
		Provider: ProviderConfig{
			HTTPTimeout:          60 * time.Second,
			DaemonTimeout:        60 * time.Second,
			DaemonPollInterval:   10 * time.Millisecond,
			FileMediatedTimeout:  300 * time.Second,
			BreakerThreshold:     5,
			BreakerResetInterval: 30 * time.Second,
		},
		LogLevel: "info",
	}
	cfg.applyEnv()
	return cfg
}

// New builds a Config from defaults, environment variables, then opts.
func New(opts ...Option) *Config {
	cfg := Default()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// applyEnv reads the registry base port, slots and capacity, the heartbeat,
// bus and log variables. The env tags on StaleAfter and on the memory and
// provider fields are not read.
func (c *Config) applyEnv() {
	if v := os.Getenv("ARGO_REGISTRY_BASE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Registry.BasePort = n
		}
	}
	if v := os.Getenv("ARGO_REGISTRY_SLOTS_PER_ROLE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Registry.SlotsPerRole = n
		}
	}
	if v := os.Getenv("ARGO_REGISTRY_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Registry.Capacity = n
		}
	}
	if v := os.Getenv("ARGO_HEARTBEAT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Lifecycle.HeartbeatTimeout = d
		}
	}
	if v := os.Getenv("ARGO_HEARTBEAT_MAX_MISSED"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Lifecycle.MaxMissed = n
		}
	}
	if v := os.Getenv("ARGO_BUS_PENDING_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Bus.PendingCap = n
		}
	}
	if v := os.Getenv("ARGO_BUS_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Bus.RequestTimeout = d
		}
	}
	if v := os.Getenv("ARGO_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ARGO_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
}

// WithRegistryBasePort overrides the registry's base port.
func WithRegistryBasePort(port int) Option {
	return func(c *Config) { c.Registry.BasePort = port }
}

// WithRegistryCapacity overrides the registry's entry cap.
func WithRegistryCapacity(n int) Option {
	return func(c *Config) { c.Registry.Capacity = n }
}

// WithHeartbeat overrides the heartbeat timeout and max-missed threshold.
func WithHeartbeat(timeout time.Duration, maxMissed int) Option {
	return func(c *Config) {
		c.Lifecycle.HeartbeatTimeout = timeout
		c.Lifecycle.MaxMissed = maxMissed
	}
}

// WithBusLimits overrides the bus's pending-request cap and timeout.
func WithBusLimits(cap int, timeout time.Duration) Option {
	return func(c *Config) {
		c.Bus.PendingCap = cap
		c.Bus.RequestTimeout = timeout
	}
}

// WithMemoryContextLimit overrides the default digest context limit.
func WithMemoryContextLimit(limit int) Option {
	return func(c *Config) { c.Memory.DefaultContextLimit = limit }
}

// WithLogLevel overrides the ambient logger's level.
func WithLogLevel(level string) Option {
	return func(c *Config) { c.LogLevel = level }
}
