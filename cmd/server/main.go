package main

import (
	"context"
	"cycle-nav-service/internal/adapters/cache"
	"cycle-nav-service/internal/adapters/httpclient"
	"cycle-nav-service/internal/adapters/mapdata"
	"cycle-nav-service/internal/adapters/position"
	"cycle-nav-service/internal/adapters/repositories"
	"cycle-nav-service/internal/adapters/routing"
	"cycle-nav-service/internal/api"
	"cycle-nav-service/internal/platform/config"
	"cycle-nav-service/internal/platform/db"
	"cycle-nav-service/internal/platform/logger"
	"cycle-nav-service/internal/ports"
	"cycle-nav-service/internal/services"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// main is the application composition root.
// It wires concrete adapters (OSRM, OSM data, caches, position feeds) behind
// ports and starts the HTTP server.
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// tagStack is the resolved tag source plus the node-level segmenter used by
// the stateless tag distribution endpoint.
type tagStack struct {
	source    ports.TagSource
	segmenter ports.NodeSegmenter
}

func run() error {
	boot, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("bootstrap logger: %w", err)
	}

	loader, err := config.Load(boot)
	if err != nil {
		return err
	}
	cfg := loader.Current()

	zl, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer zl.Sync()

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := httpclient.New(cfg.UserAgent)

	routes, cleanupRoutes, err := buildRouteProvider(ctx, cfg, client, zl)
	if err != nil {
		return err
	}
	defer cleanupRoutes()

	tags, cleanupTags, err := buildTagSource(ctx, cfg, client, zl)
	if err != nil {
		return err
	}
	defer cleanupTags()

	sessions := services.NewSessionStore(routes, tags.source, func() services.NavigatorConfig {
		c := loader.Current()
		return services.NavigatorConfig{
			RerouteWindow:  c.RerouteWindow,
			SegmentWindow:  c.SegmentWindow,
			FollowInterval: c.FollowInterval,
			RequestTimeout: c.RequestTimeout,
		}
	}, zl)
	defer sessions.Close()

	sources := &position.Factory{
		DefaultKind: cfg.PositionSource,
		Kafka: position.KafkaConfig{
			Brokers: cfg.Brokers(),
			Topic:   cfg.KafkaPositionTopic,
			GroupID: cfg.KafkaGroupID,
		},
		ReplayInterval: func() time.Duration { return loader.Current().ReplayInterval },
		ReplaySpacing:  cfg.ReplaySpacing,
		Log:            zl,
	}

	loader.OnChange(func(c config.Config) {
		zl.Info("settings updated; new sessions use them",
			zap.Duration("reroute_window", c.RerouteWindow),
			zap.Duration("segment_window", c.SegmentWindow),
			zap.Duration("replay_interval", c.ReplayInterval),
		)
	})

	router := api.NewRouter(api.Dependencies{
		Routes:   routes,
		Tags:     tags.segmenter,
		Sessions: sessions,
		Sources:  sources,
		Log:      zl,
	})

	// Write timeout covers a cold route request plus tag resolution.
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// buildRouteProvider returns the OSRM provider, wrapped in the Postgres
// route cache when DATABASE_URL is set.
func buildRouteProvider(
	ctx context.Context,
	cfg config.Config,
	client *httpclient.Client,
	zl *zap.Logger,
) (ports.RouteProvider, func(), error) {
	osrm, err := routing.NewOSRMRouteProvider(cfg.OSRMBaseURL, cfg.OSRMProfile, client, zl)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return osrm, func() {}, nil
	}

	pg, err := db.Open(ctx, cfg.DatabaseURL, zl)
	if err != nil {
		return nil, nil, err
	}
	if err := cache.InitSchema(ctx, pg); err != nil {
		pg.Close()
		return nil, nil, err
	}

	routeCache := cache.NewSQLRouteCache(pg, zl)
	if cfg.RouteCacheMaxAge > 0 {
		n, err := routeCache.Prune(ctx, cfg.RouteCacheMaxAge)
		if err != nil {
			zl.Warn("route cache prune failed", zap.Error(err))
		} else {
			zl.Info("route cache pruned", zap.Int64("removed", n))
		}
	}

	return cache.NewCachedRouteProvider(osrm, routeCache, cfg.OSRMProfile, zl), func() { pg.Close() }, nil
}

// buildTagSource selects the remote tag service or local resolution over the
// geo store or Overpass, and adds the Redis segment cache when REDIS_ADDR is
// set.
func buildTagSource(
	ctx context.Context,
	cfg config.Config,
	client *httpclient.Client,
	zl *zap.Logger,
) (tagStack, func(), error) {
	var (
		stack   tagStack
		cleanup = []func(){}
	)
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	switch cfg.TagSource {
	case "remote":
		remote, err := mapdata.NewTagServiceClient(cfg.TagServiceURL, client, zl)
		if err != nil {
			return tagStack{}, nil, err
		}
		stack = tagStack{source: remote, segmenter: remote}
	default:
		var elements ports.ElementSource
		switch cfg.ElementSource {
		case "overpass":
			elements = mapdata.NewOverpassElementSource(cfg.OverpassURL, client, zl)
		default:
			geo, err := db.OpenSQLite(ctx, cfg.GeoStorePath, true)
			if err != nil {
				return tagStack{}, nil, err
			}
			cleanup = append(cleanup, func() { geo.Close() })
			elements = repositories.NewSqliteElementRepository(geo, zl)
		}
		local := services.NewLocalTagSource(elements, zl)
		stack = tagStack{source: local, segmenter: local}
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			closeAll()
			return tagStack{}, nil, fmt.Errorf("redis: %w", err)
		}
		cleanup = append(cleanup, func() { rdb.Close() })
		segCache := cache.NewRedisSegmentCache(rdb, cfg.SegmentCacheTTL, zl)
		stack.source = cache.NewCachedTagSource(stack.source, segCache, zl)
	}

	zl.Info("tag source ready",
		zap.String("tag_source", cfg.TagSource),
		zap.String("element_source", cfg.ElementSource),
		zap.Bool("segment_cache", cfg.RedisAddr != ""),
	)
	return stack, closeAll, nil
}
