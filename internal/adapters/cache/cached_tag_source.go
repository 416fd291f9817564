package cache

import (
	"context"
	"crypto/sha1"
	"cycle-nav-service/internal/domain"
	"cycle-nav-service/internal/ports"
	"encoding/binary"
	"encoding/hex"
	"math"

	"go.uber.org/zap"
)

// CachedTagSource memoizes the segments of a route in a SegmentCache. Only
// successful resolutions are stored.
type CachedTagSource struct {
	next  ports.TagSource
	cache ports.SegmentCache
	log   *zap.Logger
}

func NewCachedTagSource(next ports.TagSource, cache ports.SegmentCache, log *zap.Logger) *CachedTagSource {
	return &CachedTagSource{next: next, cache: cache, log: log}
}

// SegmentKey hashes the route's node ids and its endpoints. The endpoints
// are part of the key because the first and last chain start and end at them.
func SegmentKey(route *domain.Route) string {
	h := sha1.New()
	buf := make([]byte, 8)

	for _, id := range route.NodeIDs {
		binary.LittleEndian.PutUint64(buf, uint64(id))
		h.Write(buf)
	}
	for _, p := range []float64{route.Start().Lon(), route.Start().Lat(), route.End().Lon(), route.End().Lat()} {
		binary.LittleEndian.PutUint64(buf, uint64(int64(math.Round(p*1e6))))
		h.Write(buf)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func (c *CachedTagSource) Segments(ctx context.Context, route *domain.Route) (domain.RouteSegments, error) {
	key := SegmentKey(route)

	segs, ok, err := c.cache.GetSegments(ctx, key)
	switch {
	case err != nil:
		c.log.Warn("segment cache read failed", zap.String("key", key), zap.Error(err))
	case ok:
		return segs, nil
	}

	segs, err = c.next.Segments(ctx, route)
	if err != nil {
		return nil, err
	}

	if err := c.cache.PutSegments(ctx, key, segs); err != nil {
		c.log.Warn("segment cache write failed", zap.String("key", key), zap.Error(err))
	}
	return segs, nil
}
