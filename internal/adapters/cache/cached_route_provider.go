package cache

import (
	"context"
	"cycle-nav-service/internal/domain"
	"cycle-nav-service/internal/ports"
	"fmt"

	"go.uber.org/zap"
)

// CachedRouteProvider serves routes from a RouteCache and falls back to the
// wrapped provider on a miss. Cache failures never fail a request.
type CachedRouteProvider struct {
	next      ports.RouteProvider
	cache     ports.RouteCache
	namespace string
	log       *zap.Logger
}

// NewCachedRouteProvider wraps next. namespace separates keys of different
// routing profiles sharing one cache.
func NewCachedRouteProvider(
	next ports.RouteProvider,
	cache ports.RouteCache,
	namespace string,
	log *zap.Logger,
) *CachedRouteProvider {
	return &CachedRouteProvider{next: next, cache: cache, namespace: namespace, log: log}
}

// RouteKey identifies a route by its endpoints rounded to 1e-6 degrees.
func RouteKey(namespace string, start, end domain.Coordinates) string {
	return fmt.Sprintf("%s:%.6f,%.6f;%.6f,%.6f", namespace, start.Lon, start.Lat, end.Lon, end.Lat)
}

func (c *CachedRouteProvider) GetRoute(ctx context.Context, start, end domain.Coordinates) (*domain.Route, error) {
	key := RouteKey(c.namespace, start, end)

	route, ok, err := c.cache.GetRoute(ctx, key)
	switch {
	case err != nil:
		c.log.Warn("route cache read failed", zap.String("key", key), zap.Error(err))
	case ok:
		return route, nil
	}

	route, err = c.next.GetRoute(ctx, start, end)
	if err != nil {
		return nil, err
	}

	if err := c.cache.PutRoute(ctx, key, route); err != nil {
		c.log.Warn("route cache write failed", zap.String("key", key), zap.Error(err))
	}
	return route, nil
}
