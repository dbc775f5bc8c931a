package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "REDIS_ADDR", "SESSION_TTL", "CORS_ALLOWED_ORIGINS", "RATE_LIMIT_RPS", "CATALOG_S3_KEY"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("expected in-memory sessions by default, got redis %s", cfg.RedisAddr)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("expected default session ttl, got %s", cfg.SessionTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("expected wildcard cors default, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRPS != 5 || cfg.RateLimitBurst != 10 {
		t.Fatalf("unexpected rate limit defaults %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.CatalogS3Key != "providers.yaml" {
		t.Fatalf("expected default catalog key, got %s", cfg.CatalogS3Key)
	}
	if cfg.IsProduction() {
		t.Fatalf("development must not report production")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("CATALOG_S3_BUCKET", "astracare-directory")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, ,https://admin.example.com")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")
	t.Setenv("TRUST_PROXY_HEADERS", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production env")
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.RedisAddr != "localhost:6379" || !cfg.RedisTLS {
		t.Fatalf("expected redis override, got %s tls=%v", cfg.RedisAddr, cfg.RedisTLS)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Fatalf("expected session ttl override, got %s", cfg.SessionTTL)
	}
	if cfg.CatalogS3Bucket != "astracare-directory" {
		t.Fatalf("expected bucket override, got %s", cfg.CatalogS3Bucket)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.TrustProxyHeaders {
		t.Fatalf("expected proxy headers to be trusted")
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rps override, got %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst != 10 {
		t.Fatalf("invalid burst should fall back to default, got %d", cfg.RateLimitBurst)
	}
}
