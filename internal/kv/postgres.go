package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/modvault/modvault/internal/database"
	"github.com/modvault/modvault/pkg/logger"
)

// PostgresStore implements Store on the kv_entries table.
//
// Expiry is evaluated against the database clock. Expired rows stay
// invisible to Get and are removed by DeleteExpired.
type PostgresStore struct {
	pool *database.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store. The kv_entries table
// must exist; see database.NewMigrator.
func NewPostgresStore(pool *database.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get retrieves a live value.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1 AND expires_at > NOW()`,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("postgres get failed: %w", err)
	}
	return value, nil
}

// Put upserts a value that expires after ttl.
func (s *PostgresStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_entries (key, value, expires_at)
		VALUES ($1, $2, NOW() + $3::float8 * INTERVAL '1 millisecond')
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`, key, value, float64(ttl.Milliseconds()))
	if err != nil {
		return fmt.Errorf("postgres put failed: %w", err)
	}
	return nil
}

// DeleteExpired removes expired rows and returns how many were removed.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("postgres delete expired failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RunSweeper calls DeleteExpired every interval until ctx is done.
func (s *PostgresStore) RunSweeper(ctx context.Context, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.DeleteExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Error("kv sweep failed", "error", err.Error())
				}
				continue
			}
			if n > 0 {
				log.Debug("kv sweep removed expired entries", "count", n)
			}
		}
	}
}

// Ping checks if the database is healthy.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.HealthCheck(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
