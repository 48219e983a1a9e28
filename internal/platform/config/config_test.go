package config

import (
	"log/slog"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DatabaseURL:        "postgres://localhost/epts",
		JWTSecret:          "test-secret",
		Environment:        "development",
		SeedAdminEmpID:     "ADMIN001",
		RunSeed:            true,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 60,
		TokenTTL:           time.Hour,
	}
}

func TestValidateAcceptsDevelopmentDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRequiresDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = " "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing DATABASE_URL to fail")
	}
}

func TestValidateProductionRequiresStrongSecretAndSeedPassword(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = "production"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected short secret to fail in production")
	}

	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing seed password to fail in production")
	}

	cfg.SeedAdminPassword = "ChangeMe123!"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected production config to pass, got %v", err)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("APP_ADDR", ":9999")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")
	t.Setenv("RANK_REPAIR_INTERVAL", "15m")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("MAX_BODY_BYTES", "not-a-number")

	cfg := Load()
	if cfg.Addr != ":9999" {
		t.Fatalf("expected addr :9999, got %s", cfg.Addr)
	}
	if cfg.RateLimitPerMinute != 30 {
		t.Fatalf("expected rate limit 30, got %d", cfg.RateLimitPerMinute)
	}
	if cfg.RankRepairInterval != 15*time.Minute {
		t.Fatalf("expected 15m repair interval, got %s", cfg.RankRepairInterval)
	}
	if cfg.MetricsEnabled {
		t.Fatal("expected metrics disabled")
	}
	if cfg.MaxBodyBytes != 1048576 {
		t.Fatalf("expected fallback body limit, got %d", cfg.MaxBodyBytes)
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := (Config{LogLevel: raw}).SlogLevel(); got != want {
			t.Fatalf("level %q: expected %v, got %v", raw, want, got)
		}
	}
}
