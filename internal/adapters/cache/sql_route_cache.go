package cache

import (
	"context"
	"cycle-nav-service/internal/domain"
	"cycle-nav-service/internal/platform/obs"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SQLRouteCache is a Postgres-backed cache of fetched routes keyed by their
// endpoints.
type SQLRouteCache struct {
	DB  *sql.DB
	log *zap.Logger
}

func NewSQLRouteCache(db *sql.DB, log *zap.Logger) *SQLRouteCache {
	return &SQLRouteCache{DB: db, log: log}
}

// Create the route_cache table.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init route cache schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init route cache schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`
		CREATE TABLE IF NOT EXISTS route_cache (
			route_key TEXT PRIMARY KEY,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		`,
		`
		CREATE INDEX IF NOT EXISTS idx_route_cache_created_at
		ON route_cache(created_at);
		`,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init route cache schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init route cache schema: commit tx: %w", err)
	}

	return nil
}

// Fetch a cached route. A miss is reported as (nil, false, nil).
func (s *SQLRouteCache) GetRoute(ctx context.Context, key string) (_ *domain.Route, _ bool, err error) {
	defer obs.Time(ctx, s.log, "route.cache.GetRoute")(&err)

	if s.DB == nil {
		return nil, false, errors.New("route cache: db is nil")
	}
	if key == "" {
		return nil, false, errors.New("get route cache: key must not be empty")
	}

	var payload []byte
	err = s.DB.QueryRowContext(ctx, `
	SELECT payload
	FROM route_cache
	WHERE route_key = $1;
	`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get route cache: query route_cache table: %w", err)
	}

	route, err := decodeRoute(payload)
	if err != nil {
		return nil, false, fmt.Errorf("get route cache key=%q: %w", key, err)
	}
	return route, true, nil
}

// Store a route, replacing any previous entry for key.
func (s *SQLRouteCache) PutRoute(ctx context.Context, key string, route *domain.Route) (err error) {
	defer obs.Time(ctx, s.log, "route.cache.PutRoute")(&err)

	if s.DB == nil {
		return errors.New("route cache: db is nil")
	}
	if key == "" {
		return errors.New("insert route cache: key must not be empty")
	}

	payload, err := encodeRoute(route)
	if err != nil {
		return fmt.Errorf("insert route cache: encode: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO route_cache (route_key, payload)
	VALUES ($1, $2)
	ON CONFLICT (route_key) DO UPDATE
	SET payload = EXCLUDED.payload,
		created_at = now();
	`, key, payload)
	if err != nil {
		return fmt.Errorf("insert route cache key=%q: %w", key, err)
	}

	return nil
}

// Remove the given keys.
func (s *SQLRouteCache) Evict(ctx context.Context, keys []string) (_ int64, err error) {
	defer obs.Time(ctx, s.log, "route.cache.Evict")(&err)

	if s.DB == nil {
		return 0, errors.New("route cache: db is nil")
	}
	if len(keys) == 0 {
		return 0, nil
	}

	res, err := s.DB.ExecContext(ctx, `
	DELETE FROM route_cache
	WHERE route_key = ANY($1::text[]);
	`, keys)
	if err != nil {
		return 0, fmt.Errorf("evict route cache: %w", err)
	}
	return res.RowsAffected()
}

// Remove entries stored before now minus maxAge.
func (s *SQLRouteCache) Prune(ctx context.Context, maxAge time.Duration) (_ int64, err error) {
	defer obs.Time(ctx, s.log, "route.cache.Prune")(&err)

	if s.DB == nil {
		return 0, errors.New("route cache: db is nil")
	}

	res, err := s.DB.ExecContext(ctx, `
	DELETE FROM route_cache
	WHERE created_at < $1;
	`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("prune route cache: %w", err)
	}
	return res.RowsAffected()
}
