package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the voxgate server.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	DataDir  string
	HTTPPort int

	EngineAddr     string // host:port of the engine's event socket
	EnginePassword string
	EngineEvents   string        // comma-separated event names, empty means the built-in set
	ReconnectBase  time.Duration // first reconnect delay
	ReconnectCap   time.Duration // maximum reconnect delay
	MaxReconnects  int           // consecutive failures before giving up

	ArchiveDSN  string // PostgreSQL DSN for CDR archival; empty disables archiving
	CountryCode string // default country code for number normalization

	JanitorInterval time.Duration // stale-call sweep interval
	JanitorMaxAge   time.Duration // sessions older than this with no hangup are closed

	JWTSecret string // hex-encoded 32-byte secret for admin JWT signing
	LogLevel  string
	LogFormat string // log output format: "text" or "json"
}

// defaults
const (
	defaultDataDir         = "./data"
	defaultHTTPPort        = 8080
	defaultEngineAddr      = "127.0.0.1:8021"
	defaultEnginePassword  = "ClueCon"
	defaultCountryCode     = "39"
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	defaultReconnectBase   = time.Second
	defaultReconnectCap    = 60 * time.Second
	defaultMaxReconnects   = 10
	defaultJanitorInterval = time.Minute
	defaultJanitorMaxAge   = 4 * time.Hour
)

// envPrefix is the prefix for all voxgate environment variables.
const envPrefix = "VOXGATE_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("voxgate", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for the sqlite database")
	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.EngineAddr, "engine-addr", defaultEngineAddr, "host:port of the telephony engine event socket")
	fs.StringVar(&cfg.EnginePassword, "engine-password", defaultEnginePassword, "event socket authentication password")
	fs.StringVar(&cfg.EngineEvents, "engine-events", "", "comma-separated event names to subscribe to (empty for the default set)")
	fs.DurationVar(&cfg.ReconnectBase, "reconnect-base", defaultReconnectBase, "initial reconnect backoff delay")
	fs.DurationVar(&cfg.ReconnectCap, "reconnect-cap", defaultReconnectCap, "maximum reconnect backoff delay")
	fs.IntVar(&cfg.MaxReconnects, "max-reconnects", defaultMaxReconnects, "consecutive reconnect failures before giving up")
	fs.StringVar(&cfg.ArchiveDSN, "archive-dsn", "", "PostgreSQL DSN for CDR archival (empty disables archiving)")
	fs.StringVar(&cfg.CountryCode, "country-code", defaultCountryCode, "default country code for caller number normalization")
	fs.DurationVar(&cfg.JanitorInterval, "janitor-interval", defaultJanitorInterval, "stale call sweep interval")
	fs.DurationVar(&cfg.JanitorMaxAge, "janitor-max-age", defaultJanitorMaxAge, "age after which a call with no hangup is force-closed")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "hex-encoded 32-byte secret for JWT signing (auto-generated if empty)")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the
	// command line. CLI flags take precedence over env vars.
	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	envMap := map[string]string{
		"data-dir":         envPrefix + "DATA_DIR",
		"http-port":        envPrefix + "HTTP_PORT",
		"engine-addr":      envPrefix + "ENGINE_ADDR",
		"engine-password":  envPrefix + "ENGINE_PASSWORD",
		"engine-events":    envPrefix + "ENGINE_EVENTS",
		"reconnect-base":   envPrefix + "RECONNECT_BASE",
		"reconnect-cap":    envPrefix + "RECONNECT_CAP",
		"max-reconnects":   envPrefix + "MAX_RECONNECTS",
		"archive-dsn":      envPrefix + "ARCHIVE_DSN",
		"country-code":     envPrefix + "COUNTRY_CODE",
		"janitor-interval": envPrefix + "JANITOR_INTERVAL",
		"janitor-max-age":  envPrefix + "JANITOR_MAX_AGE",
		"jwt-secret":       envPrefix + "JWT_SECRET",
		"log-level":        envPrefix + "LOG_LEVEL",
		"log-format":       envPrefix + "LOG_FORMAT",
	}

	for flagName, envVar := range envMap {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			continue
		}
		switch flagName {
		case "data-dir":
			cfg.DataDir = val
		case "http-port":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.HTTPPort = v
			}
		case "engine-addr":
			cfg.EngineAddr = val
		case "engine-password":
			cfg.EnginePassword = val
		case "engine-events":
			cfg.EngineEvents = val
		case "reconnect-base":
			if v, err := time.ParseDuration(val); err == nil {
				cfg.ReconnectBase = v
			}
		case "reconnect-cap":
			if v, err := time.ParseDuration(val); err == nil {
				cfg.ReconnectCap = v
			}
		case "max-reconnects":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.MaxReconnects = v
			}
		case "archive-dsn":
			cfg.ArchiveDSN = val
		case "country-code":
			cfg.CountryCode = val
		case "janitor-interval":
			if v, err := time.ParseDuration(val); err == nil {
				cfg.JanitorInterval = v
			}
		case "janitor-max-age":
			if v, err := time.ParseDuration(val); err == nil {
				cfg.JanitorMaxAge = v
			}
		case "jwt-secret":
			cfg.JWTSecret = val
		case "log-level":
			cfg.LogLevel = val
		case "log-format":
			cfg.LogFormat = val
		}
	}
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if c.EngineAddr == "" {
		return fmt.Errorf("engine-addr must not be empty")
	}
	if c.ReconnectBase <= 0 {
		return fmt.Errorf("reconnect-base must be positive, got %s", c.ReconnectBase)
	}
	if c.ReconnectCap < c.ReconnectBase {
		return fmt.Errorf("reconnect-cap must be >= reconnect-base, got %s", c.ReconnectCap)
	}
	if c.MaxReconnects < 1 {
		return fmt.Errorf("max-reconnects must be at least 1, got %d", c.MaxReconnects)
	}
	if c.JanitorInterval <= 0 {
		return fmt.Errorf("janitor-interval must be positive, got %s", c.JanitorInterval)
	}
	if c.JanitorMaxAge <= 0 {
		return fmt.Errorf("janitor-max-age must be positive, got %s", c.JanitorMaxAge)
	}
	if c.CountryCode != "" {
		for _, r := range c.CountryCode {
			if r < '0' || r > '9' {
				return fmt.Errorf("country-code must be digits only, got %q", c.CountryCode)
			}
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	return nil
}

// EventList returns the configured event subscription list, or nil when the
// built-in default set should be used.
func (c *Config) EventList() []string {
	if c.EngineEvents == "" {
		return nil
	}
	parts := strings.Split(c.EngineEvents, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JWTSecretBytes returns the decoded 32-byte JWT signing secret.
// If no secret is configured, it generates a random 32-byte key and stores
// the hex-encoded value back in the config for the process lifetime.
func (c *Config) JWTSecretBytes() ([]byte, error) {
	if c.JWTSecret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating jwt secret: %w", err)
		}
		c.JWTSecret = hex.EncodeToString(key)
		slog.Warn("no jwt-secret configured, generated ephemeral key (tokens will not survive restart)")
		return key, nil
	}
	key, err := hex.DecodeString(c.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("decoding jwt secret: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("jwt secret must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
