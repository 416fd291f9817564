// Package mapdata talks to remote OpenStreetMap data services.
package mapdata

import (
	"context"
	"cycle-nav-service/internal/adapters/httpclient"
	"cycle-nav-service/internal/domain"
	"cycle-nav-service/internal/platform/obs"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/osm"
	"go.uber.org/zap"
)

const DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

// OverpassElementSource implements ElementSource with an Overpass API query
// for the route nodes, every way through them and the nodes of those ways.
type OverpassElementSource struct {
	client *httpclient.Client
	url    string
	log    *zap.Logger
}

func NewOverpassElementSource(endpoint string, client *httpclient.Client, log *zap.Logger) *OverpassElementSource {
	if endpoint == "" {
		endpoint = DefaultOverpassURL
	}
	return &OverpassElementSource{client: client, url: endpoint, log: log}
}

// OverpassQuery builds the element query for nodeIDs.
func OverpassQuery(nodeIDs []osm.NodeID) string {
	ids := make([]string, len(nodeIDs))
	for i, id := range nodeIDs {
		ids[i] = strconv.FormatInt(int64(id), 10)
	}
	return fmt.Sprintf("[out:json][timeout:25];node(id:%s);way(bn);(._;>;);out;", strings.Join(ids, ","))
}

func (o *OverpassElementSource) Elements(
	ctx context.Context,
	nodeIDs []osm.NodeID,
) (_ *domain.MapElements, err error) {
	defer obs.Time(ctx, o.log, "overpass.Elements")(&err)

	if len(nodeIDs) == 0 {
		return &domain.MapElements{}, nil
	}

	form := url.Values{"data": {OverpassQuery(nodeIDs)}}.Encode()

	resp, err := o.client.DoWithRetry(ctx, func() (*http.Request, error) {
		return o.client.NewRequest(
			ctx,
			http.MethodPost,
			o.url,
			strings.NewReader(form),
			"application/x-www-form-urlencoded",
		)
	})
	if err != nil {
		return nil, fmt.Errorf("overpass query: %w", err)
	}
	defer resp.Body.Close()

	elements, err := DecodeOverpass(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("overpass query: %w", err)
	}

	o.log.Debug("overpass elements loaded",
		zap.Int("nodes", len(elements.Nodes)),
		zap.Int("ways", len(elements.Ways)),
	)
	return elements, nil
}

type overpassElement struct {
	Type  string            `json:"type"`
	ID    int64             `json:"id"`
	Lat   float64           `json:"lat"`
	Lon   float64           `json:"lon"`
	Nodes []int64           `json:"nodes"`
	Tags  map[string]string `json:"tags"`
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

// DecodeOverpass reads an Overpass JSON document. Elements keep their
// document order; relations are skipped.
func DecodeOverpass(r io.Reader) (*domain.MapElements, error) {
	var doc overpassResponse
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode overpass json: %w", err)
	}

	out := &domain.MapElements{}
	for _, e := range doc.Elements {
		switch e.Type {
		case "node":
			out.Nodes = append(out.Nodes, &osm.Node{
				ID:   osm.NodeID(e.ID),
				Lat:  e.Lat,
				Lon:  e.Lon,
				Tags: TagsFromMap(e.Tags),
			})
		case "way":
			wn := make(osm.WayNodes, len(e.Nodes))
			for i, id := range e.Nodes {
				wn[i] = osm.WayNode{ID: osm.NodeID(id)}
			}
			out.Ways = append(out.Ways, &osm.Way{
				ID:    osm.WayID(e.ID),
				Nodes: wn,
				Tags:  TagsFromMap(e.Tags),
			})
		}
	}

	return out, nil
}

// TagsFromMap converts a tag map into osm.Tags sorted by key.
func TagsFromMap(m map[string]string) osm.Tags {
	if len(m) == 0 {
		return nil
	}
	tags := make(osm.Tags, 0, len(m))
	for k, v := range m {
		tags = append(tags, osm.Tag{Key: k, Value: v})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Key < tags[j].Key })
	return tags
}
