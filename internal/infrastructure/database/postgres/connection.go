package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"loan-engine/internal/config"
	"loan-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns int32 = 10
	applicationName       = "loan-engine"
	pingTimeout           = 5 * time.Second
)

var errEmptyDatabaseURL = errors.New("database URL is empty in configuration")

type pinger interface {
	Ping(ctx context.Context) error
}

// NewConnectionPool opens a pool and pings it once before returning. Sessions run in UTC
// so DATE columns compare against the same calendar day the services compute.
func NewConnectionPool(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	logger = logger.With("component", "PostgresPool")
	if cfg.URL == "" {
		return nil, errEmptyDatabaseURL
	}

	poolConfig, err := configurePool(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("Connecting to PostgreSQL database...",
		"host", poolConfig.ConnConfig.Host,
		"db", poolConfig.ConnConfig.Database)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err, "unable to create connection pool")
	}

	if err := verifyConnection(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("Connected to PostgreSQL database.", "maxConns", poolConfig.MaxConns)
	return pool, nil
}

func configurePool(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err, "failed to parse database config from URL")
	}

	poolConfig.MaxConns = defaultMaxConns
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.HealthCheckPeriod = time.Minute

	params := poolConfig.ConnConfig.RuntimeParams
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = applicationName
	}
	params["timezone"] = "UTC"

	return poolConfig, nil
}

func verifyConnection(ctx context.Context, db pinger, logger *slog.Logger) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	if err := db.Ping(pingCtx); err != nil {
		logger.Error("Failed to ping database", "error", err)
		return apperrors.WrapDatabaseError(err, "failed to ping database on connect")
	}
	logger.Debug("Database ping succeeded", "latency", time.Since(start))
	return nil
}
