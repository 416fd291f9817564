package main

import (
	"context"
	"cycle-nav-service/internal/adapters/cache"
	"cycle-nav-service/internal/adapters/repositories"
	"cycle-nav-service/internal/platform/config"
	"cycle-nav-service/internal/platform/db"
	"cycle-nav-service/internal/platform/logger"
	"database/sql"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
)

// dbtool prepares the service's stores: it seeds the SQLite geo store from an
// Overpass JSON dump and, when DATABASE_URL is set, creates the Postgres
// route cache schema and prunes expired entries.
func main() {
	boot, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}

	loader, err := config.Load(boot)
	if err != nil {
		log.Fatal(err)
	}
	cfg := loader.Current()

	zl, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if seedPath := os.Getenv("SEED_PATH"); seedPath != "" {
		geo, err := db.OpenSQLite(ctx, cfg.GeoStorePath, false)
		if err != nil {
			zl.Fatal("open geo store", zap.Error(err))
		}
		defer geo.Close()

		if err := seedGeoStore(geo, seedPath, zl); err != nil {
			zl.Fatal("seeding failed", zap.Error(err))
		}
	} else {
		zl.Info("SEED_PATH not set, skipping geo store")
	}

	if cfg.DatabaseURL != "" {
		pg, err := db.Open(ctx, cfg.DatabaseURL, zl)
		if err != nil {
			zl.Fatal("open route cache", zap.Error(err))
		}
		defer pg.Close()

		if err := prepareRouteCache(ctx, pg, cfg.RouteCacheMaxAge, zl); err != nil {
			zl.Fatal("route cache maintenance failed", zap.Error(err))
		}
	}
}

func seedGeoStore(geo *sql.DB, seedPath string, zl *zap.Logger) error {
	zl.Info("initializing geo store schema")
	if err := repositories.InitSchema(geo); err != nil {
		return err
	}

	zl.Info("seeding geo store", zap.String("seed", seedPath))
	stats, err := repositories.SeedFromJSON(geo, seedPath)
	if err != nil {
		return err
	}
	zl.Info("seeding complete", zap.Int("nodes", stats.Nodes), zap.Int("ways", stats.Ways))
	return nil
}

func prepareRouteCache(ctx context.Context, pg *sql.DB, maxAge time.Duration, zl *zap.Logger) error {
	zl.Info("initializing route cache schema")
	if err := cache.InitSchema(ctx, pg); err != nil {
		return err
	}
	if maxAge <= 0 {
		return nil
	}

	removed, err := cache.NewSQLRouteCache(pg, zl).Prune(ctx, maxAge)
	if err != nil {
		return err
	}
	zl.Info("route cache pruned", zap.Int64("removed", removed), zap.Duration("max_age", maxAge))
	return nil
}
