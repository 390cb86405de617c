package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
http:
  addr: ":9090"
checkout:
  quote_ttl: 30m
verify:
  oracle_timeout: 3s
  rate_per_minute: 7
cleanup:
  pending_retention: 168h
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Checkout.QuoteTTL != 30*time.Minute {
		t.Fatalf("unexpected quote ttl: %s", cfg.Checkout.QuoteTTL)
	}
	if cfg.Verify.OracleTimeout != 3*time.Second {
		t.Fatalf("unexpected oracle timeout: %s", cfg.Verify.OracleTimeout)
	}
	if cfg.Verify.RatePerMinute != 7 {
		t.Fatalf("unexpected verify rate/minute: %d", cfg.Verify.RatePerMinute)
	}
	if cfg.Cleanup.PendingRetention != 168*time.Hour {
		t.Fatalf("unexpected pending retention: %s", cfg.Cleanup.PendingRetention)
	}

	if cfg.Verify.RatePer10Sec != 5 {
		t.Fatalf("verify rate_per_10sec default should stay 5")
	}
	if cfg.Download.URLTTL != 15*time.Minute {
		t.Fatalf("download url_ttl default should stay 15m")
	}
	if cfg.S3.Bucket != "digistore-artifacts" {
		t.Fatalf("unexpected s3 bucket default: %s", cfg.S3.Bucket)
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected default http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Checkout.QuoteTTL != time.Hour {
		t.Fatalf("unexpected default quote ttl: %s", cfg.Checkout.QuoteTTL)
	}
	if cfg.Verify.OracleTimeout != 10*time.Second {
		t.Fatalf("unexpected default oracle timeout: %s", cfg.Verify.OracleTimeout)
	}
	if cfg.Cleanup.Interval != 6*time.Hour {
		t.Fatalf("unexpected default cleanup interval: %s", cfg.Cleanup.Interval)
	}
	if cfg.Postgres.MigrationsDir != "migrations" {
		t.Fatalf("unexpected default migrations dir: %s", cfg.Postgres.MigrationsDir)
	}
	if cfg.Postgres.MaxConns != 8 {
		t.Fatalf("unexpected default max conns: %d", cfg.Postgres.MaxConns)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("VERIFY_ORACLE_TIMEOUT", "2s")
	t.Setenv("VERIFY_RATE_PER_MINUTE", "3")
	t.Setenv("POSTGRES_MAX_CONNS", "16")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":7070" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Verify.OracleTimeout != 2*time.Second {
		t.Fatalf("unexpected oracle timeout: %s", cfg.Verify.OracleTimeout)
	}
	if cfg.Verify.RatePerMinute != 3 {
		t.Fatalf("unexpected verify rate/minute: %d", cfg.Verify.RatePerMinute)
	}
	if cfg.Postgres.MaxConns != 16 {
		t.Fatalf("unexpected max conns: %d", cfg.Postgres.MaxConns)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Fatalf("unexpected jwt secret: %s", cfg.Auth.JWTSecret)
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL",
		"POSTGRES_DSN",
		"POSTGRES_MIGRATIONS_DIR",
		"POSTGRES_MAX_CONNS",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"S3_ENDPOINT",
		"S3_ACCESS_KEY",
		"S3_SECRET_KEY",
		"S3_BUCKET",
		"S3_REGION",
		"S3_USE_SSL",
		"JWT_SECRET",
		"CHECKOUT_QUOTE_TTL",
		"VERIFY_ORACLE_TIMEOUT",
		"VERIFY_RATE_PER_MINUTE",
		"VERIFY_RATE_PER_10SEC",
		"DOWNLOAD_URL_TTL",
		"CLEANUP_INTERVAL",
		"CLEANUP_PENDING_RETENTION",
	} {
		t.Setenv(key, "")
	}
}
