// Package config manages goradiusd daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete goradiusd configuration.
type Config struct {
	Listen  ListenConfig  `koanf:"listen"`
	Metrics MetricsConfig `koanf:"metrics"`
	Admin   AdminConfig   `koanf:"admin"`
	Log     LogConfig     `koanf:"log"`
	Client  ClientConfig  `koanf:"client"`
	Dict    DictConfig    `koanf:"dict"`
	Hosts   []HostConfig  `koanf:"hosts"`
	Users   []UserConfig  `koanf:"users"`
}

// ListenConfig holds the server's bind addresses and per-service ports
// (default ports 1812/1813/3799).
type ListenConfig struct {
	// Addresses are the local IPs goradiusd binds auth/acct/CoA sockets
	// on. Empty means "0.0.0.0".
	Addresses []string `koanf:"addresses"`
	// AuthPort is the Access-Request port.
	AuthPort int `koanf:"auth_port"`
	// AcctPort is the Accounting-Request port.
	AcctPort int `koanf:"acct_port"`
	// CoAPort is the CoA-Request/Disconnect-Request port.
	CoAPort int `koanf:"coa_port"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// AdminConfig holds the plain-HTTP admin introspection endpoint
// configuration ("/debug/hosts", "/debug/stats").
type AdminConfig struct {
	// Addr is the HTTP listen address for the admin endpoint. Empty
	// disables the admin endpoint.
	Addr string `koanf:"addr"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// ClientConfig holds goradiusctl's default retransmission parameters
// (timeout 5s, retries 3).
type ClientConfig struct {
	// Timeout is the per-attempt wait before retransmitting.
	Timeout time.Duration `koanf:"timeout"`
	// Retries is the total number of transmissions attempted.
	Retries int `koanf:"retries"`
}

// DictConfig names the dictionary files goradiusd/goradiusctl load in
// addition to the embedded standard dictionary loaded via
// dictionary.LoadStandard().
type DictConfig struct {
	// Files lists additional vendor dictionary file paths, merged on top
	// of the embedded standard dictionary in order.
	Files []string `koanf:"files"`
}

// HostConfig describes a declarative RADIUS peer from the configuration
// file. Each entry registers a host in the server's HostTable on daemon
// startup and SIGHUP reload.
type HostConfig struct {
	// Name identifies the host in logs and the admin endpoint.
	Name string `koanf:"name"`

	// Addr is the peer's source IP address.
	Addr string `koanf:"addr"`

	// Secret is the shared secret used to verify and decode this host's
	// requests and to sign replies.
	Secret string `koanf:"secret"`
}

// UserConfig is a single static credential for goradiusd's bundled
// authentication backend, the default pluggable backend goradiusd ships
// rather than part of the core server engine. A minimal PAP-only static
// list keeps the daemon runnable out of the box without a database-backed
// or EAP-capable backend.
type UserConfig struct {
	// Name is the RADIUS User-Name this entry authenticates.
	Name string `koanf:"name"`

	// Password is the cleartext User-Password this entry accepts.
	Password string `koanf:"password"`
}

// HostKey returns a unique identifier for the host based on its address.
// Used for diffing hosts on SIGHUP reload.
func (hc HostConfig) HostKey() string {
	return hc.Addr
}

// ParsedAddr parses Addr as a netip.Addr.
func (hc HostConfig) ParsedAddr() (netip.Addr, error) {
	if hc.Addr == "" {
		return netip.Addr{}, fmt.Errorf("host addr: %w", ErrInvalidHostAddr)
	}
	addr, err := netip.ParseAddr(hc.Addr)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse host addr %q: %w", hc.Addr, err)
	}
	return addr, nil
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
//
// Listen ports follow the IANA-registered RADIUS assignments: 1812
// (authentication), 1813 (accounting), 3799 (CoA/Disconnect, RFC 5176).
func DefaultConfig() *Config {
	return &Config{
		Listen: ListenConfig{
			AuthPort: 1812,
			AcctPort: 1813,
			CoAPort:  3799,
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Admin: AdminConfig{
			Addr: ":9101",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Client: ClientConfig{
			Timeout: 5 * time.Second,
			Retries: 3,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for goradiusd
// configuration. Variables are named GORADIUS_<section>_<key>, e.g.,
// GORADIUS_METRICS_ADDR.
const envPrefix = "GORADIUS_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (GORADIUS_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	GORADIUS_METRICS_ADDR   -> metrics.addr
//	GORADIUS_ADMIN_ADDR     -> admin.addr
//	GORADIUS_LOG_LEVEL      -> log.level
//	GORADIUS_LOG_FORMAT     -> log.format
//	GORADIUS_CLIENT_TIMEOUT -> client.timeout
//	GORADIUS_CLIENT_RETRIES -> client.retries
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults first.
	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	// Load YAML file on top of defaults.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	// Load environment variable overrides on top of YAML.
	// GORADIUS_METRICS_ADDR -> metrics.addr (strip prefix, lowercase, _ -> .).
	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms GORADIUS_METRICS_ADDR -> metrics.addr.
// Strips the GORADIUS_ prefix, lowercases, and replaces _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"listen.auth_port": defaults.Listen.AuthPort,
		"listen.acct_port": defaults.Listen.AcctPort,
		"listen.coa_port":  defaults.Listen.CoAPort,
		"metrics.addr":     defaults.Metrics.Addr,
		"metrics.path":     defaults.Metrics.Path,
		"admin.addr":       defaults.Admin.Addr,
		"log.level":        defaults.Log.Level,
		"log.format":       defaults.Log.Format,
		"client.timeout":   defaults.Client.Timeout.String(),
		"client.retries":   defaults.Client.Retries,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrInvalidAuthPort indicates the auth listen port is out of range.
	ErrInvalidAuthPort = errors.New("listen.auth_port must be between 1 and 65535")

	// ErrInvalidAcctPort indicates the acct listen port is out of range.
	ErrInvalidAcctPort = errors.New("listen.acct_port must be between 1 and 65535")

	// ErrInvalidCoAPort indicates the CoA listen port is out of range.
	ErrInvalidCoAPort = errors.New("listen.coa_port must be between 1 and 65535")

	// ErrInvalidClientTimeout indicates the client timeout is non-positive.
	ErrInvalidClientTimeout = errors.New("client.timeout must be > 0")

	// ErrInvalidClientRetries indicates the client retry count is zero.
	ErrInvalidClientRetries = errors.New("client.retries must be >= 1")

	// ErrInvalidHostAddr indicates a host has an empty or invalid address.
	ErrInvalidHostAddr = errors.New("host address is invalid")

	// ErrEmptyHostSecret indicates a host has no shared secret.
	ErrEmptyHostSecret = errors.New("host secret must not be empty")

	// ErrDuplicateHostKey indicates two hosts share the same address.
	ErrDuplicateHostKey = errors.New("duplicate host address")

	// ErrEmptyUserName indicates a user entry has no name.
	ErrEmptyUserName = errors.New("user name must not be empty")

	// ErrDuplicateUserName indicates two user entries share a name.
	ErrDuplicateUserName = errors.New("duplicate user name")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Listen.AuthPort < 1 || cfg.Listen.AuthPort > 65535 {
		return ErrInvalidAuthPort
	}

	if cfg.Listen.AcctPort < 1 || cfg.Listen.AcctPort > 65535 {
		return ErrInvalidAcctPort
	}

	if cfg.Listen.CoAPort < 1 || cfg.Listen.CoAPort > 65535 {
		return ErrInvalidCoAPort
	}

	if cfg.Client.Timeout <= 0 {
		return ErrInvalidClientTimeout
	}

	if cfg.Client.Retries < 1 {
		return ErrInvalidClientRetries
	}

	if err := validateHosts(cfg.Hosts); err != nil {
		return err
	}

	if err := validateUsers(cfg.Users); err != nil {
		return err
	}

	return nil
}

// validateUsers checks each static credential entry for correctness.
func validateUsers(users []UserConfig) error {
	seen := make(map[string]struct{}, len(users))

	for i, uc := range users {
		if uc.Name == "" {
			return fmt.Errorf("users[%d]: %w", i, ErrEmptyUserName)
		}
		if _, dup := seen[uc.Name]; dup {
			return fmt.Errorf("users[%d] %q: %w", i, uc.Name, ErrDuplicateUserName)
		}
		seen[uc.Name] = struct{}{}
	}

	return nil
}

// validateHosts checks each declarative host entry for correctness.
func validateHosts(hosts []HostConfig) error {
	seen := make(map[string]struct{}, len(hosts))

	for i, hc := range hosts {
		if _, err := hc.ParsedAddr(); err != nil {
			return fmt.Errorf("hosts[%d]: %w: %w", i, ErrInvalidHostAddr, err)
		}

		if hc.Secret == "" {
			return fmt.Errorf("hosts[%d] %q: %w", i, hc.Name, ErrEmptyHostSecret)
		}

		key := hc.HostKey()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("hosts[%d] key %q: %w", i, key, ErrDuplicateHostKey)
		}
		seen[key] = struct{}{}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
