package routing

import (
	"context"
	"cycle-nav-service/internal/adapters/httpclient"
	"cycle-nav-service/internal/domain"
	"cycle-nav-service/internal/platform/obs"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"go.uber.org/zap"
)

// OSRMRouteProvider implements RouteProvider on top of an OSRM server.
//
// It requests the full geometry, turn-by-turn steps and per-edge
// annotations of the first route between two points and converts them into
// a domain.Route. The provider is safe for concurrent use.
type OSRMRouteProvider struct {
	client  *httpclient.Client
	baseURL string
	profile string
	log     *zap.Logger
}

func NewOSRMRouteProvider(
	baseURL string,
	profile string,
	client *httpclient.Client,
	log *zap.Logger,
) (*OSRMRouteProvider, error) {
	if baseURL == "" {
		return nil, errors.New("OSRM base url is empty")
	}
	if profile == "" {
		profile = "bike"
	}

	return &OSRMRouteProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
		log:     log,
	}, nil
}

type osrmManeuver struct {
	Type     string `json:"type"`
	Modifier string `json:"modifier"`
}

type osrmStep struct {
	Distance float64      `json:"distance"`
	Duration float64      `json:"duration"`
	Name     string       `json:"name"`
	Maneuver osrmManeuver `json:"maneuver"`
}

type osrmAnnotation struct {
	Nodes    []int64   `json:"nodes"`
	Distance []float64 `json:"distance"`
}

type osrmLeg struct {
	Steps      []osrmStep     `json:"steps"`
	Annotation osrmAnnotation `json:"annotation"`
}

type osrmRoute struct {
	Geometry struct {
		Coordinates [][]float64 `json:"coordinates"`
	} `json:"geometry"`
	Legs     []osrmLeg `json:"legs"`
	Distance float64   `json:"distance"`
	Duration float64   `json:"duration"`
}

type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

func (o *OSRMRouteProvider) GetRoute(
	ctx context.Context,
	start domain.Coordinates,
	end domain.Coordinates,
) (_ *domain.Route, err error) {
	defer obs.Time(ctx, o.log, "osrm.GetRoute")(&err)

	if err := start.Validate(); err != nil {
		return nil, fmt.Errorf("%w: start: %v", domain.ErrMalformedRoute, err)
	}
	if err := end.Validate(); err != nil {
		return nil, fmt.Errorf("%w: end: %v", domain.ErrMalformedRoute, err)
	}

	url := fmt.Sprintf(
		"%s/route/v1/%s/%f,%f;%f,%f?overview=full&steps=true&geometries=geojson&annotations=true",
		o.baseURL, o.profile, start.Lon, start.Lat, end.Lon, end.Lat,
	)

	resp, err := o.client.DoWithRetry(ctx, func() (*http.Request, error) {
		return o.client.NewRequest(ctx, http.MethodGet, url, nil, "")
	})
	if err != nil {
		return nil, fmt.Errorf("osrm route: %w: %w", domain.ErrRouteUnavailable, err)
	}
	defer resp.Body.Close()

	var out osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("osrm route: decode: %w: %w", domain.ErrRouteUnavailable, err)
	}
	if out.Code != "Ok" {
		return nil, fmt.Errorf("osrm route: %w: %s %s", domain.ErrRouteUnavailable, out.Code, out.Message)
	}
	if len(out.Routes) == 0 || len(out.Routes[0].Legs) == 0 {
		return nil, fmt.Errorf("osrm route: %w: no route found", domain.ErrRouteUnavailable)
	}

	return convertRoute(out.Routes[0])
}

func convertRoute(r osrmRoute) (*domain.Route, error) {
	geom := make(orb.LineString, 0, len(r.Geometry.Coordinates))
	for i, c := range r.Geometry.Coordinates {
		if len(c) < 2 {
			return nil, fmt.Errorf("%w: coordinate %d has %d components", domain.ErrMalformedRoute, i, len(c))
		}
		geom = append(geom, orb.Point{c[0], c[1]})
	}

	leg := r.Legs[0]
	nodes := make([]osm.NodeID, len(leg.Annotation.Nodes))
	for i, id := range leg.Annotation.Nodes {
		nodes[i] = osm.NodeID(id)
	}

	return domain.NewRoute(geom, convertSteps(leg.Steps), nodes, leg.Annotation.Distance, r.Duration)
}

// convertSteps moves every maneuver to the end of the step leading up to it.
// OSRM opens each step with its maneuver and closes the route with a
// zero-length arrive step; here a step ends with its maneuver, so the arrive
// step is folded into the one before it.
func convertSteps(in []osrmStep) []domain.Step {
	if len(in) == 0 {
		return nil
	}
	if len(in) == 1 {
		return []domain.Step{{
			Distance: in[0].Distance,
			Duration: in[0].Duration,
			Name:     in[0].Name,
			Maneuver: domain.Maneuver{Type: domain.ManeuverArrive, Modifier: domain.ModifierNone},
		}}
	}

	out := make([]domain.Step, 0, len(in)-1)
	for i := 0; i < len(in)-1; i++ {
		out = append(out, domain.Step{
			Distance: in[i].Distance,
			Duration: in[i].Duration,
			Name:     in[i].Name,
			Maneuver: convertManeuver(in[i+1].Maneuver),
		})
	}

	last := &out[len(out)-1]
	last.Distance += in[len(in)-1].Distance
	last.Duration += in[len(in)-1].Duration

	return out
}

func convertManeuver(m osrmManeuver) domain.Maneuver {
	out := domain.Maneuver{Modifier: convertModifier(m.Modifier)}

	switch m.Type {
	case "arrive":
		out.Type = domain.ManeuverArrive
		out.Modifier = domain.ModifierNone
	case "end of road":
		out.Type = domain.ManeuverEndOfRoad
	case "continue", "new name", "depart", "notification", "use lane":
		out.Type = domain.ManeuverContinue
	default:
		out.Type = domain.ManeuverTurn
	}

	return out
}

func convertModifier(m string) domain.ManeuverModifier {
	switch m {
	case "sharp left", "left":
		return domain.ModifierLeft
	case "slight left":
		return domain.ModifierSlightLeft
	case "straight":
		return domain.ModifierStraight
	case "slight right":
		return domain.ModifierSlightRight
	case "right", "sharp right":
		return domain.ModifierRight
	default:
		return domain.ModifierNone
	}
}
