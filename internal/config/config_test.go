package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	// Clear any env vars that might interfere.
	for _, env := range []string{
		"VOXGATE_DATA_DIR", "VOXGATE_HTTP_PORT", "VOXGATE_ENGINE_ADDR",
		"VOXGATE_ENGINE_PASSWORD", "VOXGATE_ARCHIVE_DSN", "VOXGATE_COUNTRY_CODE",
		"VOXGATE_LOG_LEVEL", "VOXGATE_LOG_FORMAT",
	} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}

	cfg, err := load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DataDir != defaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, defaultDataDir)
	}
	if cfg.HTTPPort != defaultHTTPPort {
		t.Errorf("HTTPPort = %d, want %d", cfg.HTTPPort, defaultHTTPPort)
	}
	if cfg.EngineAddr != defaultEngineAddr {
		t.Errorf("EngineAddr = %q, want %q", cfg.EngineAddr, defaultEngineAddr)
	}
	if cfg.EnginePassword != defaultEnginePassword {
		t.Errorf("EnginePassword = %q, want %q", cfg.EnginePassword, defaultEnginePassword)
	}
	if cfg.ReconnectBase != defaultReconnectBase {
		t.Errorf("ReconnectBase = %s, want %s", cfg.ReconnectBase, defaultReconnectBase)
	}
	if cfg.ReconnectCap != defaultReconnectCap {
		t.Errorf("ReconnectCap = %s, want %s", cfg.ReconnectCap, defaultReconnectCap)
	}
	if cfg.MaxReconnects != defaultMaxReconnects {
		t.Errorf("MaxReconnects = %d, want %d", cfg.MaxReconnects, defaultMaxReconnects)
	}
	if cfg.ArchiveDSN != "" {
		t.Errorf("ArchiveDSN = %q, want empty", cfg.ArchiveDSN)
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, defaultLogLevel)
	}
}

func TestEnvVarOverride(t *testing.T) {
	t.Setenv("VOXGATE_HTTP_PORT", "9090")
	t.Setenv("VOXGATE_ENGINE_ADDR", "10.0.0.5:8021")
	t.Setenv("VOXGATE_JANITOR_MAX_AGE", "2h")
	t.Setenv("VOXGATE_LOG_LEVEL", "debug")

	cfg, err := load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.EngineAddr != "10.0.0.5:8021" {
		t.Errorf("EngineAddr = %q, want 10.0.0.5:8021", cfg.EngineAddr)
	}
	if cfg.JanitorMaxAge != 2*time.Hour {
		t.Errorf("JanitorMaxAge = %s, want 2h", cfg.JanitorMaxAge)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestCLIFlagsPrecedence(t *testing.T) {
	// CLI flags should override env vars.
	t.Setenv("VOXGATE_HTTP_PORT", "9090")
	t.Setenv("VOXGATE_LOG_LEVEL", "debug")

	cfg, err := load([]string{"--http-port", "3000", "--log-level", "warn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 3000 {
		t.Errorf("HTTPPort = %d, want 3000 (CLI should override env)", cfg.HTTPPort)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn (CLI should override env)", cfg.LogLevel)
	}
}

func TestValidateInvalidPort(t *testing.T) {
	if _, err := load([]string{"--http-port", "99999"}); err == nil {
		t.Fatal("expected error for invalid port, got nil")
	}
}

func TestValidateInvalidLogLevel(t *testing.T) {
	if _, err := load([]string{"--log-level", "verbose"}); err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
}

func TestValidateReconnectBounds(t *testing.T) {
	if _, err := load([]string{"--reconnect-base", "10s", "--reconnect-cap", "1s"}); err == nil {
		t.Fatal("expected error when reconnect-cap < reconnect-base")
	}
	if _, err := load([]string{"--max-reconnects", "0"}); err == nil {
		t.Fatal("expected error for max-reconnects of 0")
	}
}

func TestValidateCountryCode(t *testing.T) {
	if _, err := load([]string{"--country-code", "+39"}); err == nil {
		t.Fatal("expected error for non-digit country code")
	}
}

func TestEventList(t *testing.T) {
	cfg := &Config{}
	if got := cfg.EventList(); got != nil {
		t.Errorf("EventList() = %v, want nil for empty config", got)
	}

	cfg.EngineEvents = "CHANNEL_CREATE, CHANNEL_ANSWER ,CHANNEL_HANGUP"
	got := cfg.EventList()
	want := []string{"CHANNEL_CREATE", "CHANNEL_ANSWER", "CHANNEL_HANGUP"}
	if len(got) != len(want) {
		t.Fatalf("EventList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("EventList()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestJWTSecretBytes(t *testing.T) {
	cfg := &Config{}
	key, err := cfg.JWTSecretBytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("generated key length = %d, want 32", len(key))
	}
	if cfg.JWTSecret == "" {
		t.Error("generated secret was not stored back on the config")
	}

	cfg = &Config{JWTSecret: "nothex"}
	if _, err := cfg.JWTSecretBytes(); err == nil {
		t.Error("expected error for non-hex secret")
	}

	cfg = &Config{JWTSecret: "abcd"}
	if _, err := cfg.JWTSecretBytes(); err == nil {
		t.Error("expected error for short secret")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level}
			if got := cfg.SlogLevel(); got != tt.want {
				t.Errorf("SlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}
