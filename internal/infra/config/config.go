package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Node         NodeConfig      `yaml:"node"`
	Gateway      GatewayConfig   `yaml:"gateway"`
	Identity     IdentityConfig  `yaml:"identity"`
	Capabilities CapsConfig      `yaml:"capabilities"`
	History      HistoryConfig   `yaml:"history"`
	Logger       LoggerConfig    `yaml:"logger"`
	Tracer       TracerConfig    `yaml:"tracer"`
	Reconnect    ReconnectConfig `yaml:"reconnect"`
	Discovery    DiscoveryConfig `yaml:"discovery"`
}

// NodeConfig identifies this node to the gateway.
type NodeConfig struct {
	ClientID    string `yaml:"client_id"`
	DisplayName string `yaml:"display_name"`
	Platform    string `yaml:"platform"` // auto-detected if empty
	Version     string `yaml:"version"`
}

// GatewayConfig holds the gateway connection settings.
type GatewayConfig struct {
	URL            string        `yaml:"url"` // ws:// or wss://; empty = discover via mDNS
	ConnectToken   string        `yaml:"connect_token"`
	StatusInterval time.Duration `yaml:"status_interval"`
	StatusCron     string        `yaml:"status_cron"` // overrides status_interval when set
}

// IdentityConfig holds device identity storage settings.
type IdentityConfig struct {
	Dir           string `yaml:"dir"` // default: <config dir>/identity
	PassphraseEnv string `yaml:"passphrase_env,omitempty"`
}

// CapsConfig toggles capabilities and their advertised permissions.
type CapsConfig struct {
	System      bool            `yaml:"system"`
	Canvas      bool            `yaml:"canvas"`
	Screen      bool            `yaml:"screen"`
	Camera      bool            `yaml:"camera"`
	Permissions map[string]bool `yaml:"permissions,omitempty"`
}

// HistoryConfig holds the local notification/invocation history settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // default: <config dir>/history.db
	MaxRows int    `yaml:"max_rows"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	Output string `yaml:"output"` // stdout, stderr, or a file path
}

// TracerConfig holds OpenTelemetry tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// ReconnectConfig bounds the caller-driven reconnect loop in cmd/nodelink.
// The node client itself never retries; see nodeclient.Client.Run.
type ReconnectConfig struct {
	Enabled     bool          `yaml:"enabled"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	MaxAttempts int           `yaml:"max_attempts"` // 0 = unbounded
}

// DiscoveryConfig toggles mDNS gateway discovery.
type DiscoveryConfig struct {
	MDNS    bool          `yaml:"mdns"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns a Config with sensible defaults applied.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			ClientID:    "nodelink",
			DisplayName: "Nodelink",
			Version:     "dev",
		},
		Gateway: GatewayConfig{
			StatusInterval: 30 * time.Second,
		},
		Capabilities: CapsConfig{
			System: true,
			Canvas: true,
			Screen: true,
			Camera: true,
		},
		History: HistoryConfig{
			Enabled: true,
			MaxRows: 500,
		},
		Logger: LoggerConfig{Level: "info", Format: "text", Output: "stderr"},
		Reconnect: ReconnectConfig{
			Enabled:     true,
			InitialWait: time.Second,
			MaxWait:     30 * time.Second,
		},
		Discovery: DiscoveryConfig{Timeout: 5 * time.Second},
	}
}

// Load reads a YAML config file, applies defaults, and validates.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Node.ClientID == "" {
		return fmt.Errorf("node.client_id must not be empty")
	}
	if c.Gateway.URL == "" && !c.Discovery.MDNS {
		return fmt.Errorf("gateway.url is required unless discovery.mdns is enabled")
	}
	if c.Reconnect.MaxWait < c.Reconnect.InitialWait {
		return fmt.Errorf("reconnect.max_wait must be >= reconnect.initial_wait")
	}
	return nil
}

// DataDir returns the per-user data directory for nodelink, creating it
// if necessary.
func DataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	dir := filepath.Join(base, "nodelink")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return dir, nil
}
