package repositories

import (
	"context"
	"cycle-nav-service/internal/adapters/mapdata"
	"cycle-nav-service/internal/domain"
	"cycle-nav-service/internal/platform/obs"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/osm"
	"go.uber.org/zap"
)

// SQLite parameter lists are split into chunks of this size.
const queryChunkSize = 500

// SQLite-backed implementation of the ElementSource port over a geo store
// built by InitSchema and SeedFromJSON.
type SqliteElementRepository struct {
	DB  *sql.DB
	log *zap.Logger
}

func NewSqliteElementRepository(db *sql.DB, log *zap.Logger) *SqliteElementRepository {
	return &SqliteElementRepository{DB: db, log: log}
}

// Return the requested nodes, every way through one of them and the nodes of
// those ways. Ways are ordered by id.
func (s *SqliteElementRepository) Elements(
	ctx context.Context,
	nodeIDs []osm.NodeID,
) (_ *domain.MapElements, err error) {
	defer obs.Time(ctx, s.log, "geostore.Elements")(&err)

	if s.DB == nil {
		return nil, errors.New("sqlite element repository: DB is nil")
	}

	out := &domain.MapElements{}
	if len(nodeIDs) == 0 {
		return out, nil
	}

	ways, err := s.waysByNodes(ctx, nodeIDs)
	if err != nil {
		return nil, err
	}
	out.Ways = ways

	wanted := make([]osm.NodeID, 0, len(nodeIDs))
	seen := make(map[osm.NodeID]struct{}, len(nodeIDs))
	add := func(id osm.NodeID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			wanted = append(wanted, id)
		}
	}
	for _, id := range nodeIDs {
		add(id)
	}
	for _, w := range ways {
		for _, wn := range w.Nodes {
			add(wn.ID)
		}
	}

	nodes, err := s.nodes(ctx, wanted)
	if err != nil {
		return nil, err
	}
	out.Nodes = nodes

	return out, nil
}

func (s *SqliteElementRepository) waysByNodes(ctx context.Context, nodeIDs []osm.NodeID) (osm.Ways, error) {
	byID := make(map[osm.WayID]*osm.Way)

	err := forChunks(nodeIDs, func(args []any, placeholders string) error {
		query := `
		SELECT DISTINCT w.id, w.node_list, w.tags
		FROM node_to_ways ntw
		INNER JOIN ways w ON ntw.way_id = w.id
		WHERE ntw.node_id IN (` + placeholders + `);
		`
		rows, err := s.DB.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list ways: query ways table: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id       int64
				nodeList string
				tags     string
			)
			if err := rows.Scan(&id, &nodeList, &tags); err != nil {
				return fmt.Errorf("list ways: scan row: %w", err)
			}

			w, err := decodeWay(id, nodeList, tags)
			if err != nil {
				return fmt.Errorf("list ways: %w", err)
			}
			byID[w.ID] = w
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("list ways: row iteration: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ways := make(osm.Ways, 0, len(byID))
	for _, w := range byID {
		ways = append(ways, w)
	}
	sort.Slice(ways, func(i, j int) bool { return ways[i].ID < ways[j].ID })

	return ways, nil
}

func (s *SqliteElementRepository) nodes(ctx context.Context, ids []osm.NodeID) (osm.Nodes, error) {
	nodes := make(osm.Nodes, 0, len(ids))

	err := forChunks(ids, func(args []any, placeholders string) error {
		query := `
		SELECT id, lat, lon, tags
		FROM nodes
		WHERE id IN (` + placeholders + `);
		`
		rows, err := s.DB.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list nodes: query nodes table: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id       int64
				lat, lon float64
				tags     string
			)
			if err := rows.Scan(&id, &lat, &lon, &tags); err != nil {
				return fmt.Errorf("list nodes: scan row: %w", err)
			}

			t, err := decodeTags(tags)
			if err != nil {
				return fmt.Errorf("list nodes: node %d: %w", id, err)
			}
			nodes = append(nodes, &osm.Node{ID: osm.NodeID(id), Lat: lat, Lon: lon, Tags: t})
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("list nodes: row iteration: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

func decodeWay(id int64, nodeList, tags string) (*osm.Way, error) {
	var ids []int64
	if err := json.Unmarshal([]byte(nodeList), &ids); err != nil {
		return nil, fmt.Errorf("way %d: decode node list: %w", id, err)
	}
	t, err := decodeTags(tags)
	if err != nil {
		return nil, fmt.Errorf("way %d: %w", id, err)
	}

	wn := make(osm.WayNodes, len(ids))
	for i, n := range ids {
		wn[i] = osm.WayNode{ID: osm.NodeID(n)}
	}
	return &osm.Way{ID: osm.WayID(id), Nodes: wn, Tags: t}, nil
}

func decodeTags(s string) (osm.Tags, error) {
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return mapdata.TagsFromMap(m), nil
}

func forChunks(ids []osm.NodeID, fn func(args []any, placeholders string) error) error {
	for start := 0; start < len(ids); start += queryChunkSize {
		end := min(start+queryChunkSize, len(ids))

		args := make([]any, 0, end-start)
		for _, id := range ids[start:end] {
			args = append(args, int64(id))
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")

		if err := fn(args, placeholders); err != nil {
			return err
		}
	}
	return nil
}
