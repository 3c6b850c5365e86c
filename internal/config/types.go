package config

import (
	"path/filepath"
	"time"
)

// Config represents the complete ordergate configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	State    StateConfig    `yaml:"state"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Venue    VenueConfig    `yaml:"venue"`
	API      APIConfig      `yaml:"api,omitempty"`
	Security SecurityConfig `yaml:"security,omitempty"`
	// Schedules dispatch named queues on a timer while serving.
	Schedules []ScheduleConfig `yaml:"schedules,omitempty"`
	Webhooks  *WebhooksConfig  `yaml:"webhooks,omitempty"`

	// SourcePath is the absolute path the config was loaded from.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// StateConfig defines snapshot storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
	// SnapshotInterval is how often serve persists the desk. Zero saves only
	// on shutdown.
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	// EncryptionKey is a base64 32-byte key. Empty stores snapshots unsealed.
	EncryptionKey string `yaml:"encryption_key,omitempty"`
}

// DispatchConfig defines drain behaviour.
type DispatchConfig struct {
	MinInterval time.Duration `yaml:"min_interval"`
	LogDir      string        `yaml:"log_dir"`
}

const (
	VenuePaper  = "paper"
	VenueAlpaca = "alpaca"
)

// VenueConfig selects and configures the trading venue.
type VenueConfig struct {
	Kind              string        `yaml:"kind"`
	BaseURL           string        `yaml:"base_url,omitempty"`
	APIKey            string        `yaml:"api_key,omitempty"`
	APISecret         string        `yaml:"api_secret,omitempty"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	// PaperRejectSymbols makes the paper venue fault on these symbols.
	PaperRejectSymbols []string      `yaml:"paper_reject_symbols,omitempty"`
	PaperLatency       time.Duration `yaml:"paper_latency,omitempty"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is the admin bearer token (full access).
	// Prefer Tokens for scoped access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// SecurityConfig guards the interactive shell.
type SecurityConfig struct {
	// PasswordHash is a bcrypt hash. Empty disables the password prompt.
	PasswordHash string `yaml:"password_hash,omitempty"`
}

// ScheduleConfig dispatches Queue every Every (plus up to Jitter), or once a
// day at At ("HH:MM", local time). Exactly one of Every and At is set.
type ScheduleConfig struct {
	Name   string        `yaml:"name"`
	Queue  string        `yaml:"queue"`
	Every  time.Duration `yaml:"every,omitempty"`
	At     string        `yaml:"at,omitempty"`
	Jitter time.Duration `yaml:"jitter,omitempty"`
}

// WebhooksConfig serves HMAC-signed order signal endpoints on their own
// listener.
type WebhooksConfig struct {
	Listen    string            `yaml:"listen"`
	Endpoints []WebhookEndpoint `yaml:"endpoints"`
}

// WebhookEndpoint turns a signed POST into orders appended to Queue. With
// Dispatch set the queue is sent straight away.
type WebhookEndpoint struct {
	Path            string `yaml:"path"`
	Queue           string `yaml:"queue"`
	Dispatch        bool   `yaml:"dispatch,omitempty"`
	Secret          string `yaml:"secret"`
	SignatureHeader string `yaml:"signature_header,omitempty"`
	// MaxBodySize accepts plain bytes or a KB/MB suffix. Empty means 1MB.
	MaxBodySize string `yaml:"max_body_size,omitempty"`
}

// LockPath is the PID lock beside the state database.
func (c *Config) LockPath() string {
	return filepath.Join(filepath.Dir(c.State.Path), "ordergate.lock")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "ordergate",
			LogLevel:  "info",
			LogFormat: "json",
		},
		State: StateConfig{
			Path:             "./data/ordergate.db",
			SnapshotInterval: time.Minute,
		},
		Dispatch: DispatchConfig{
			MinInterval: 350 * time.Millisecond,
			LogDir:      "./data/logs",
		},
		Venue: VenueConfig{
			Kind:              VenuePaper,
			RequestsPerSecond: 3,
			Timeout:           10 * time.Second,
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
	}
}
