package config

import (
	"fmt"
	"time"

	"marketscanner/internal/orchestrator"
	"marketscanner/internal/scanner"
)

// Config represents the complete application configuration.
type Config struct {
	Redis        RedisConfig        `yaml:"redis"`
	Venues       []VenueConfig      `yaml:"venues"`
	Scan         ScanConfig         `yaml:"scan"`
	Strategies   StrategiesConfig   `yaml:"strategies"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Notification NotificationConfig `yaml:"notification"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Performance  PerformanceConfig  `yaml:"performance"`
}

// ============================================================================
// CORE CONFIGURATION
// ============================================================================

// RedisConfig represents Redis connection configuration, backing the Event
// Sink's dedup store (spec §4.9).
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Timeout  string `yaml:"timeout"`
	// TTL bounds how long an event dedup key is retained; empty means keys
	// are never expired.
	TTL string `yaml:"ttl"`
}

// VenueConfig represents one exchange venue's enablement and per-venue
// symbol allow-list.
type VenueConfig struct {
	Name    string   `yaml:"name"`
	Enabled bool     `yaml:"enabled"`
	Symbols []string `yaml:"symbols"`
}

// ============================================================================
// SCAN CONFIGURATION
// ============================================================================

// ScanConfig collects the Symbol Scanner / Exchange Scan Loop settings
// (spec §4.6/§4.7): the configured timeframes, bar-selection policy, volume
// gate overrides and batching.
type ScanConfig struct {
	Timeframes      []string           `yaml:"timeframes"`
	BarSelection    string             `yaml:"bar_selection"`
	MinVolumeUSD    map[string]float64 `yaml:"min_volume_usd"`
	BatchSize       int                `yaml:"batch_size"`
	BatchSleep      string             `yaml:"batch_sleep"`
	FastMaxVenues   int                `yaml:"fast_max_venues"`
	SlowMaxVenues   int                `yaml:"slow_max_venues"`
	StartStagger    string             `yaml:"start_stagger"`
	BreatherMin     string             `yaml:"breather_min"`
	BreatherMax     string             `yaml:"breather_max"`
}

// StrategiesConfig names which registered strategies a scan session runs.
// An empty Enabled list runs every strategy the registry knows about.
type StrategiesConfig struct {
	Enabled []string `yaml:"enabled"`
}

// SchedulerConfig drives the long-running Idle/Scanning/CoolingDown loop
// (spec §4.8).
type SchedulerConfig struct {
	Enabled     bool `yaml:"enabled"`
	MinCooldown string `yaml:"min_cooldown"`
}

// NotificationConfig represents the notification sink's settings (spec §6):
// whether to broadcast at all, which channel identifier and recipients to
// tag every message with.
type NotificationConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Channel      string   `yaml:"channel"`
	RecipientIDs []string `yaml:"recipient_ids"`
	ListenAddr   string   `yaml:"listen_addr"`
}

// ============================================================================
// SYSTEM CONFIGURATION
// ============================================================================

// MonitoringConfig represents monitoring configuration.
type MonitoringConfig struct {
	HealthCheckInterval int  `yaml:"health_check_interval"`
	MetricsEnabled      bool `yaml:"metrics_enabled"`
	PrometheusPort      int  `yaml:"prometheus_port"`
}

// PerformanceConfig represents performance-tuning configuration.
type PerformanceConfig struct {
	BufferSize  int `yaml:"buffer_size"`
	MaxMemoryMB int `yaml:"max_memory_mb"`
}

// ============================================================================
// HELPER METHODS
// ============================================================================

// GetRedisAddress returns the "host:port" Redis address.
func (c *Config) GetRedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GetRedisTTL parses RedisConfig.TTL, returning 0 (never expire) on an
// empty or unparseable value.
func (c *Config) GetRedisTTL() time.Duration {
	if c.Redis.TTL == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Redis.TTL)
	if err != nil {
		return 0
	}
	return d
}

// EnabledVenueNames returns the names of every venue marked enabled.
func (c *Config) EnabledVenueNames() []string {
	var names []string
	for _, v := range c.Venues {
		if v.Enabled {
			names = append(names, v.Name)
		}
	}
	return names
}

// ToOrchestratorConfig translates the YAML-facing Config into the
// orchestrator package's runtime Config, parsing every duration field and
// falling back to its defaults (via withDefaults, applied internally) when
// a duration string is empty or unparseable.
func (c *Config) ToOrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		Timeframes:        c.Scan.Timeframes,
		Strategies:        c.Strategies.Enabled,
		Venues:            c.EnabledVenueNames(),
		RecipientSet:      c.Notification.RecipientIDs,
		SendNotifications: c.Notification.Enabled,
		VolumeOverride:    c.Scan.MinVolumeUSD,
		BarSelection:      scanner.BarSelection(c.Scan.BarSelection),
		FastMaxExchanges:  c.Scan.FastMaxVenues,
		SlowMaxExchanges:  c.Scan.SlowMaxVenues,
		StartStagger:      parseDuration(c.Scan.StartStagger),
		BreatherMin:       parseDuration(c.Scan.BreatherMin),
		BreatherMax:       parseDuration(c.Scan.BreatherMax),
		BatchSize:         c.Scan.BatchSize,
		BatchSleep:        parseDuration(c.Scan.BatchSleep),
	}
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// Validate checks the configuration for the required fields a scan session
// cannot run without.
func (c *Config) Validate() error {
	if len(c.Scan.Timeframes) == 0 {
		return errConfig("scan.timeframes must name at least one timeframe")
	}
	if len(c.EnabledVenueNames()) == 0 {
		return errConfig("venues must enable at least one exchange")
	}
	return nil
}

type configError string

func (e configError) Error() string { return string(e) }

func errConfig(msg string) error { return configError(msg) }
