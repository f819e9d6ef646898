package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-reviews/db"
	"github.com/Clark-Hu/movie-reviews/internal/config"
)

// Options controls connection-pool behaviour.
type Options struct {
	MaxConns               int32
	MinConns               int32
	MaxConnIdleTime        time.Duration
	MaxConnLifetime        time.Duration
	ConnTimeout            time.Duration
	StatementCacheCapacity int
	Logger                 zerolog.Logger
}

// OptionsFromConfig maps the DB_* settings onto pool options.
func OptionsFromConfig(cfg config.Config, logger zerolog.Logger) Options {
	return Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}
}

// Store hides direct access to the underlying connection pool so higher layers
// can focus on business logic.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
	opts   Options
}

// New initializes a connection pool and validates connectivity with Ping.
func New(ctx context.Context, dbURL string, opts Options) (*Store, error) {
	logger := opts.Logger.With().Str("component", "store").Logger()
	logger.Info().
		Int32("max_conns", opts.MaxConns).
		Int32("min_conns", opts.MinConns).
		Dur("max_idle", opts.MaxConnIdleTime).
		Dur("max_life", opts.MaxConnLifetime).
		Int("stmt_cache", opts.StatementCacheCapacity).
		Msg("initializing connection pool")

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.StatementCacheCapacity > 0 {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
		cfg.ConnConfig.StatementCacheCapacity = opts.StatementCacheCapacity
	}

	connCtx := ctx
	if opts.ConnTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, opts.ConnTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(connCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info().Msg("database connection established")

	return &Store{pool: pool, logger: logger, opts: opts}, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.logger.Info().Msg("closing connection pool")
	s.pool.Close()
}

// HealthCheck verifies the database is reachable and reports the round trip.
func (s *Store) HealthCheck(ctx context.Context) (time.Duration, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("store not initialized")
	}
	checkCtx := ctx
	if s.opts.ConnTimeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, s.opts.ConnTimeout)
		defer cancel()
	}
	start := time.Now()
	if err := s.pool.Ping(checkCtx); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Migrate applies the embedded schema migrations on the store's pool.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("store not initialized")
	}
	applied, err := Migrate(ctx, s.pool)
	if err != nil {
		return err
	}
	s.logger.Info().Int("migrations", applied).Msg("schema migrations applied")
	return nil
}

// Migrate applies every embedded up migration in order. Migrations are
// written to be re-runnable, so applying them twice is harmless.
func Migrate(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	migrations, err := db.UpMigrations()
	if err != nil {
		return 0, fmt.Errorf("load migrations: %w", err)
	}
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			return 0, fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
	}
	return len(migrations), nil
}

// Pool exposes the underlying pgx pool for repositories.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Stats exposes pgxpool statistics for observability.
func (s *Store) Stats() *pgxpool.Stat {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Stat()
}
