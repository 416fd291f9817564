package mapdata

import (
	"bytes"
	"context"
	"cycle-nav-service/internal/adapters/httpclient"
	"cycle-nav-service/internal/domain"
	"cycle-nav-service/internal/platform/obs"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"go.uber.org/zap"
)

// TagServiceClient is a TagSource backed by a remote service that resolves
// and aggregates tags itself. The service only knows about OSM nodes, so the
// route geometry is not sent.
type TagServiceClient struct {
	client  *httpclient.Client
	baseURL string
	log     *zap.Logger
}

func NewTagServiceClient(baseURL string, client *httpclient.Client, log *zap.Logger) (*TagServiceClient, error) {
	if baseURL == "" {
		return nil, errors.New("tag service url is empty")
	}
	return &TagServiceClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}, nil
}

type tagDistributionRequest struct {
	NodeIDs []osm.NodeID `json:"node_ids"`
}

type wayInfo struct {
	Name     string `json:"name"`
	Geometry struct {
		Coordinates [][]float64 `json:"coordinates"`
	} `json:"geometry"`
}

type tagInfo struct {
	Distance float64            `json:"distance"`
	Ways     map[string]wayInfo `json:"ways"`
}

type tagDistributionResponse struct {
	OK              bool                           `json:"ok"`
	TagDistribution map[string]map[string]tagInfo `json:"tag_distribution"`
}

func (c *TagServiceClient) Segments(ctx context.Context, route *domain.Route) (domain.RouteSegments, error) {
	return c.SegmentsForNodes(ctx, route.NodeIDs)
}

func (c *TagServiceClient) SegmentsForNodes(
	ctx context.Context,
	nodeIDs []osm.NodeID,
) (_ domain.RouteSegments, err error) {
	defer obs.Time(ctx, c.log, "tagservice.Segments")(&err)

	body, err := json.Marshal(tagDistributionRequest{NodeIDs: nodeIDs})
	if err != nil {
		return nil, fmt.Errorf("tag service: %w: %w", domain.ErrTagResolution, err)
	}

	resp, err := c.client.DoWithRetry(ctx, func() (*http.Request, error) {
		return c.client.NewRequest(
			ctx,
			http.MethodPost,
			c.baseURL+"/tag_distribution",
			bytes.NewReader(body),
			"application/json",
		)
	})
	if err != nil {
		return nil, fmt.Errorf("tag service: %w: %w", domain.ErrTagResolution, err)
	}
	defer resp.Body.Close()

	var out tagDistributionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("tag service: decode: %w: %w", domain.ErrTagResolution, err)
	}
	if !out.OK {
		return nil, fmt.Errorf("tag service: %w: service reported failure", domain.ErrTagResolution)
	}

	return convertDistribution(out.TagDistribution)
}

// convertDistribution turns the service's nested tag map into sorted groups.
// Every way becomes one chain, ordered by way id. Unknown tag keys are
// ignored.
func convertDistribution(dist map[string]map[string]tagInfo) (domain.RouteSegments, error) {
	segs := make(domain.RouteSegments, len(domain.Dimensions))

	for key, values := range dist {
		d, err := domain.ParseTagDimension(key)
		if err != nil {
			continue
		}

		groups := make([]domain.SegmentGroup, 0, len(values))
		for value, info := range values {
			chains, err := wayChains(info.Ways)
			if err != nil {
				return nil, fmt.Errorf("tag service: %s=%s: %w: %w", key, value, domain.ErrTagResolution, err)
			}
			groups = append(groups, domain.SegmentGroup{
				Value:    value,
				Distance: info.Distance,
				Chains:   chains,
			})
		}

		sort.Slice(groups, func(i, j int) bool {
			if groups[i].Distance != groups[j].Distance {
				return groups[i].Distance < groups[j].Distance
			}
			return groups[i].Value < groups[j].Value
		})
		segs[d] = groups
	}

	return segs, nil
}

func wayChains(ways map[string]wayInfo) ([]orb.LineString, error) {
	type keyed struct {
		id  int64
		way wayInfo
	}

	ordered := make([]keyed, 0, len(ways))
	for k, w := range ways {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("way id %q: %w", k, err)
		}
		ordered = append(ordered, keyed{id: id, way: w})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].id < ordered[j].id })

	chains := make([]orb.LineString, 0, len(ordered))
	for _, k := range ordered {
		ls := make(orb.LineString, 0, len(k.way.Geometry.Coordinates))
		for _, c := range k.way.Geometry.Coordinates {
			if len(c) < 2 {
				return nil, fmt.Errorf("way %d: short coordinate", k.id)
			}
			ls = append(ls, orb.Point{c[0], c[1]})
		}
		chains = append(chains, ls)
	}
	return chains, nil
}
