// Package bootstrap builds the API's backing stores from configuration,
// falling back to in-process implementations when a backend is not set.
package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/astracare/internal/agent"
	"github.com/wolfman30/astracare/internal/appointments"
	"github.com/wolfman30/astracare/internal/catalog"
	appconfig "github.com/wolfman30/astracare/internal/config"
	"github.com/wolfman30/astracare/internal/session"
	"github.com/wolfman30/astracare/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, sessions stay in memory", "error", err, "addr", cfg.RedisAddr)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore picks Redis when a client is available.
func BuildSessionStore(client *redis.Client, ttl time.Duration, logger *logging.Logger) session.Store {
	if client == nil {
		logger.Info("session store: memory", "ttl", ttl.String())
		return session.NewMemoryStore(ttl)
	}
	logger.Info("session store: redis", "ttl", ttl.String())
	return session.NewRedisStore(client, ttl, nil)
}

// BuildAppointmentRepository connects Postgres when DATABASE_URL is set. The
// returned pool is nil for the in-memory repository.
func BuildAppointmentRepository(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (appointments.Repository, *pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Info("appointment store: memory")
		return appointments.NewMemoryRepository(), nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("appointment store: postgres")
	return appointments.NewPostgresRepository(pool), pool, nil
}

// LoadCatalog reads the provider directory from S3 when a bucket is set,
// then CATALOG_PATH, then the embedded seed.
func LoadCatalog(ctx context.Context, cfg *appconfig.Config, objects catalog.ObjectGetter, now time.Time, logger *logging.Logger) (*catalog.Catalog, error) {
	var (
		dir    *catalog.Catalog
		err    error
		source string
	)
	switch {
	case cfg.CatalogS3Bucket != "":
		source = "s3://" + cfg.CatalogS3Bucket + "/" + cfg.CatalogS3Key
		dir, err = catalog.LoadS3(ctx, objects, cfg.CatalogS3Bucket, cfg.CatalogS3Key, now)
	case cfg.CatalogPath != "":
		source = cfg.CatalogPath
		dir, err = catalog.LoadFile(cfg.CatalogPath, now)
	default:
		source = "embedded seed"
		dir, err = catalog.LoadDefault(now)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("provider catalog loaded", "source", source, "providers", dir.Len())
	return dir, nil
}

// LoadSettings overlays SCORING_CONFIG_PATH on the default scoring settings.
func LoadSettings(cfg *appconfig.Config) (agent.Settings, error) {
	if cfg == nil || cfg.ScoringConfigPath == "" {
		return agent.DefaultSettings(), nil
	}
	f, err := os.Open(cfg.ScoringConfigPath)
	if err != nil {
		return agent.Settings{}, fmt.Errorf("bootstrap: open scoring config: %w", err)
	}
	defer f.Close()
	s, err := agent.LoadSettings(f)
	if err != nil {
		return agent.Settings{}, fmt.Errorf("bootstrap: %s: %w", cfg.ScoringConfigPath, err)
	}
	return s, nil
}
