// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ SQLITE SNAPSHOT EXPORTER
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Persistent Self-Modifying Graph Engine
// Component: Offline Inspection Export
//
// Description:
//   Dumps the live mapped region into a SQLite database so the graph can be queried,
//   diffed, and visualized offline with standard tooling. The export is a full
//   replacement: each run rewrites the tables inside one transaction, so a reader
//   always sees a consistent snapshot of exactly one tick.
//
// Design Principles:
//   - The exporter never mutates the region; it reads through store accessors only
//   - Tombstoned edge slots are skipped, so row counts match live graph shape
//   - Write-heavy pragmas: the snapshot file is disposable, durability is the
//     mapped region's job
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package snapshot

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"main/graph"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	idx        INTEGER PRIMARY KEY,
	kind       INTEGER NOT NULL,
	activation REAL NOT NULL,
	theta      REAL NOT NULL,
	mem        REAL NOT NULL,
	in_deg     INTEGER NOT NULL,
	out_deg    INTEGER NOT NULL,
	last_tick  INTEGER NOT NULL,
	protected  INTEGER NOT NULL,
	output     INTEGER NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS edges (
	src    INTEGER NOT NULL,
	dst    INTEGER NOT NULL,
	w_fast REAL NOT NULL,
	w_slow REAL NOT NULL,
	PRIMARY KEY (src, dst)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS modules (
	id        INTEGER PRIMARY KEY,
	name      TEXT NOT NULL,
	meta_node INTEGER NOT NULL,
	members   INTEGER NOT NULL,
	sig       TEXT NOT NULL,
	created   INTEGER NOT NULL,
	last_used INTEGER NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS stats (
	id          INTEGER PRIMARY KEY,
	tick        INTEGER NOT NULL,
	node_count  INTEGER NOT NULL,
	edge_count  INTEGER NOT NULL,
	live_edges  INTEGER NOT NULL,
	modules     INTEGER NOT NULL,
	exported_at INTEGER NOT NULL
) WITHOUT ROWID;
`

func configureDatabase(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = OFF",
		"PRAGMA synchronous = OFF",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA locking_mode = EXCLUSIVE",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

// Export rewrites the snapshot database from the current region state.
func Export(st *graph.Store, path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := configureDatabase(db); err != nil {
		return err
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"nodes", "edges", "modules", "stats"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := exportNodes(tx, st); err != nil {
		return err
	}
	liveEdges, err := exportEdges(tx, st)
	if err != nil {
		return err
	}
	if err := exportModules(tx, st); err != nil {
		return err
	}

	h := st.Header()
	_, err = tx.Exec(
		`INSERT INTO stats (id, tick, node_count, edge_count, live_edges, modules, exported_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?)`,
		h.Tick, h.NodeCount, h.EdgeCount, liveEdges, h.ModuleCount, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	return tx.Commit()
}

func exportNodes(tx *sql.Tx, st *graph.Store) error {
	stmt, err := tx.Prepare(
		`INSERT INTO nodes (idx, kind, activation, theta, mem, in_deg, out_deg, last_tick, protected, output)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	nodes := st.Nodes()
	for i := range nodes {
		n := &nodes[i]
		if _, err := stmt.Exec(
			i, int(n.Kind()), n.A, n.Theta, n.Mem,
			n.InDeg(), n.OutDeg(), n.LastTick,
			boolInt(n.IsProtected()), boolInt(n.IsOutput()),
		); err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}
	}
	return nil
}

func exportEdges(tx *sql.Tx, st *graph.Store) (int, error) {
	stmt, err := tx.Prepare(
		`INSERT INTO edges (src, dst, w_fast, w_slow) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	live := 0
	edges := st.Edges()
	for i := range edges {
		e := &edges[i]
		if !e.Live() {
			continue
		}
		if _, err := stmt.Exec(e.Src, e.Dst, e.WFast, e.WSlow); err != nil {
			return 0, fmt.Errorf("edge %d->%d: %w", e.Src, e.Dst, err)
		}
		live++
	}
	return live, nil
}

func exportModules(tx *sql.Tx, st *graph.Store) error {
	stmt, err := tx.Prepare(
		`INSERT INTO modules (id, name, meta_node, members, sig, created, last_used)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	mods := st.Modules()
	for i := range mods {
		m := &mods[i]
		if _, err := stmt.Exec(
			m.ID, m.NameString(), m.MetaNode, m.MemberCount,
			fmt.Sprintf("%016x", m.Sig), m.Created, m.LastUsed,
		); err != nil {
			return fmt.Errorf("module %d: %w", m.ID, err)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
