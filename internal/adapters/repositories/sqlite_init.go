package repositories

import (
	"cycle-nav-service/internal/adapters/mapdata"
	"cycle-nav-service/internal/domain"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Initialize the geo store schema: nodes, ways and the node to way index.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createNodesQuery := `
	CREATE TABLE IF NOT EXISTS nodes (
		id INTEGER PRIMARY KEY ASC,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		tags TEXT NOT NULL DEFAULT '{}'
	);
	`

	createWaysQuery := `
	CREATE TABLE IF NOT EXISTS ways (
		id INTEGER PRIMARY KEY ASC,
		node_list TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '{}'
	);
	`

	createNodeToWaysQuery := `
	CREATE TABLE IF NOT EXISTS node_to_ways (
		node_id INTEGER NOT NULL,
		way_id INTEGER NOT NULL REFERENCES ways(id),
		PRIMARY KEY (node_id, way_id)
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_node_to_ways_way_id
	ON node_to_ways(way_id);
	`

	statements := []string{
		createNodesQuery,
		createWaysQuery,
		createNodeToWaysQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// SeedStats reports how many elements a seed run wrote.
type SeedStats struct {
	Nodes int
	Ways  int
}

// Populate the geo store from an Overpass JSON dump.
func SeedFromJSON(db *sql.DB, jsonPath string) (SeedStats, error) {
	f, err := os.Open(jsonPath)
	if err != nil {
		return SeedStats{}, fmt.Errorf("seed geo store: open %q: %w", jsonPath, err)
	}
	defer f.Close()

	elements, err := mapdata.DecodeOverpass(f)
	if err != nil {
		return SeedStats{}, fmt.Errorf("seed geo store: %w", err)
	}

	return SeedElements(db, elements)
}

// SeedElements inserts or replaces nodes and ways in one transaction.
func SeedElements(db *sql.DB, elements *domain.MapElements) (SeedStats, error) {
	for i, n := range elements.Nodes {
		if err := domain.CoordinatesFromPoint(n.Point()).Validate(); err != nil {
			return SeedStats{}, fmt.Errorf("seed geo store: node at index %d (id=%d): %w", i, n.ID, err)
		}
	}
	for i, w := range elements.Ways {
		if len(w.Nodes) < 2 {
			return SeedStats{}, fmt.Errorf("seed geo store: way at index %d (id=%d) has %d nodes", i, w.ID, len(w.Nodes))
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return SeedStats{}, fmt.Errorf("seed geo store: begin tx: %w", err)
	}
	defer tx.Rollback()

	nodeStmt, err := tx.Prepare(`INSERT OR REPLACE INTO nodes (id, lat, lon, tags) VALUES (?, ?, ?, ?);`)
	if err != nil {
		return SeedStats{}, fmt.Errorf("seed geo store: prepare node insert: %w", err)
	}
	defer nodeStmt.Close()

	wayStmt, err := tx.Prepare(`INSERT OR REPLACE INTO ways (id, node_list, tags) VALUES (?, ?, ?);`)
	if err != nil {
		return SeedStats{}, fmt.Errorf("seed geo store: prepare way insert: %w", err)
	}
	defer wayStmt.Close()

	linkStmt, err := tx.Prepare(`INSERT OR IGNORE INTO node_to_ways (node_id, way_id) VALUES (?, ?);`)
	if err != nil {
		return SeedStats{}, fmt.Errorf("seed geo store: prepare node_to_ways insert: %w", err)
	}
	defer linkStmt.Close()

	for _, n := range elements.Nodes {
		tags, err := json.Marshal(n.Tags.Map())
		if err != nil {
			return SeedStats{}, fmt.Errorf("seed geo store: encode tags of node %d: %w", n.ID, err)
		}
		if _, err := nodeStmt.Exec(int64(n.ID), n.Lat, n.Lon, string(tags)); err != nil {
			return SeedStats{}, fmt.Errorf("seed geo store: insert node id=%d: %w", n.ID, err)
		}
	}

	for _, w := range elements.Ways {
		ids := make([]int64, len(w.Nodes))
		for i, wn := range w.Nodes {
			ids[i] = int64(wn.ID)
		}
		nodeList, err := json.Marshal(ids)
		if err != nil {
			return SeedStats{}, fmt.Errorf("seed geo store: encode nodes of way %d: %w", w.ID, err)
		}
		tags, err := json.Marshal(w.Tags.Map())
		if err != nil {
			return SeedStats{}, fmt.Errorf("seed geo store: encode tags of way %d: %w", w.ID, err)
		}

		if _, err := wayStmt.Exec(int64(w.ID), string(nodeList), string(tags)); err != nil {
			return SeedStats{}, fmt.Errorf("seed geo store: insert way id=%d: %w", w.ID, err)
		}
		for _, id := range ids {
			if _, err := linkStmt.Exec(id, int64(w.ID)); err != nil {
				return SeedStats{}, fmt.Errorf("seed geo store: link node %d to way %d: %w", id, w.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return SeedStats{}, fmt.Errorf("seed geo store: commit tx: %w", err)
	}

	return SeedStats{Nodes: len(elements.Nodes), Ways: len(elements.Ways)}, nil
}
