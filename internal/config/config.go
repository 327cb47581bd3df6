// Package config provides configuration management for NetViz.
//
// Config file locations (priority order):
//  1. $NETVIZ_CONFIG
//  2. ./netviz.yaml
//  3. /etc/netviz/config.yaml
//
// Every field has a default, so the server runs with no config file at
// all. The shipped defaults describe the demo lab topology.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Sync      SyncConfig      `yaml:"sync"`
	Collector CollectorConfig `yaml:"collector"`
	Topology  TopologyConfig  `yaml:"topology"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the host:port listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds storage settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SyncConfig controls the reconcile loop and related timers
type SyncConfig struct {
	// Interval between successful reconcile runs
	Interval Duration `yaml:"interval"`

	// ErrorBackoff is the longer wait after a failed run
	ErrorBackoff Duration `yaml:"error_backoff"`

	// MetricsCacheTTL bounds how long a fetched snapshot is reused
	MetricsCacheTTL Duration `yaml:"metrics_cache_ttl"`

	// StaleAfter is how long an unmanaged node may go unseen before
	// the sweep removes it
	StaleAfter Duration `yaml:"stale_after"`

	// PingInterval is the websocket keep-alive cadence
	PingInterval Duration `yaml:"ping_interval"`
}

// CollectorConfig selects and configures the observation source
type CollectorConfig struct {
	// Mode is one of "http", "nmap", "ssh", or "static"
	Mode string `yaml:"mode"`

	// MetricsURL is the endpoint polled in http mode
	MetricsURL string `yaml:"metrics_url"`

	// Timeout bounds one fetch
	Timeout Duration `yaml:"timeout"`

	// SweepCIDR is the network scanned in nmap mode
	SweepCIDR string `yaml:"sweep_cidr"`

	// SSH configures the hosts probed in ssh mode
	SSH SSHConfig `yaml:"ssh"`
}

// SSHConfig holds the credentials and targets for the SSH probe
// collector. KeyPath wins over Password when both are set.
type SSHConfig struct {
	Hosts    []string `yaml:"hosts"`
	Port     int      `yaml:"port"`
	User     string   `yaml:"user"`
	KeyPath  string   `yaml:"key_path"`
	Password string   `yaml:"password"`
}

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := findConfigPath()
	if path == "" {
		return Default(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, path, nil
}

func findConfigPath() string {
	if p := os.Getenv("NETVIZ_CONFIG"); p != "" {
		return p
	}
	for _, p := range []string{"./netviz.yaml", "/etc/netviz/config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Database.Path == "" {
		c.Database.Path = "./netviz.db"
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = Duration(30 * time.Second)
	}
	if c.Sync.ErrorBackoff == 0 {
		c.Sync.ErrorBackoff = Duration(60 * time.Second)
	}
	if c.Sync.MetricsCacheTTL == 0 {
		c.Sync.MetricsCacheTTL = Duration(60 * time.Second)
	}
	if c.Sync.StaleAfter == 0 {
		c.Sync.StaleAfter = Duration(30 * time.Minute)
	}
	if c.Sync.PingInterval == 0 {
		c.Sync.PingInterval = Duration(30 * time.Second)
	}
	if c.Collector.Mode == "" {
		c.Collector.Mode = "http"
	}
	if c.Collector.MetricsURL == "" {
		c.Collector.MetricsURL = "http://localhost:9101/metrics/all"
	}
	if c.Collector.Timeout == 0 {
		c.Collector.Timeout = Duration(10 * time.Second)
	}
	if c.Collector.SweepCIDR == "" {
		c.Collector.SweepCIDR = "192.168.10.0/24"
	}
	if c.Collector.SSH.Port == 0 {
		c.Collector.SSH.Port = 22
	}
	if len(c.Topology.Devices) == 0 && len(c.Topology.Links) == 0 {
		c.Topology = DefaultTopology()
	}
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
