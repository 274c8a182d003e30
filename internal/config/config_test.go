package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGIN", "DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD",
		"REDIS_DB", "SUMMARY_TTL_SECONDS", "AUTH_SECRET", "ACCESS_TOKEN_TTL_MINUTES", "MANAGER_PIN",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("default port: %s", cfg.Port)
	}
	if cfg.AllowedOrigin != "*" {
		t.Fatalf("default origin: %s", cfg.AllowedOrigin)
	}
	if cfg.SummaryTTLSeconds != 60 {
		t.Fatalf("default summary ttl: %d", cfg.SummaryTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 720 {
		t.Fatalf("default token ttl: %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("address: %s", cfg.Address())
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9900")
	t.Setenv("DATABASE_URL", "postgres://localhost/fiadopos")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SUMMARY_TTL_SECONDS", "120")
	t.Setenv("AUTH_SECRET", "secret")
	t.Setenv("MANAGER_PIN", "493817")

	cfg := Load()
	if cfg.Port != "9900" || cfg.DatabaseURL != "postgres://localhost/fiadopos" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 3 {
		t.Fatalf("redis config not picked up: %+v", cfg)
	}
	if cfg.SummaryTTLSeconds != 120 {
		t.Fatalf("summary ttl: %d", cfg.SummaryTTLSeconds)
	}
	if cfg.ManagerPIN != "493817" {
		t.Fatalf("manager pin: %s", cfg.ManagerPIN)
	}
}

func TestLoadIgnoresMalformedInts(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("SUMMARY_TTL_SECONDS", "")

	cfg := Load()
	if cfg.RedisDB != 0 {
		t.Fatalf("malformed int should fall back, got %d", cfg.RedisDB)
	}
	if cfg.SummaryTTLSeconds != 60 {
		t.Fatalf("empty int should fall back, got %d", cfg.SummaryTTLSeconds)
	}
}
