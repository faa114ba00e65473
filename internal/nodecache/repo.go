package nodecache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/nodeql/internal/node"
)

// Cache is the node cache used by ingestion. Consumers depend on this
// interface rather than *DB.
type Cache interface {
	Lookup(ctx context.Context, source, checksum string) ([]*node.Node, bool, error)
	Put(ctx context.Context, source, checksum string, nodes []*node.Node) error
	Checksums(ctx context.Context) (map[string]string, error)
	Delete(ctx context.Context, source string) error
	All(ctx context.Context) ([]*node.Node, error)
}

var _ Cache = (*DB)(nil)

// Put replaces the nodes derived from source. Nodes keep their order.
func (db *DB) Put(ctx context.Context, source, checksum string, nodes []*node.Node) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("nodecache: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sources (path, checksum, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, source, checksum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("nodecache: upsert source: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE source = ?`, source); err != nil {
		return fmt.Errorf("nodecache: clear nodes: %w", err)
	}
	if len(nodes) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO nodes (id, source, position, type, digest, payload)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("nodecache: prepare node insert: %w", err)
		}
		defer stmt.Close()
		for i, n := range nodes {
			payload, err := json.Marshal(n)
			if err != nil {
				return fmt.Errorf("nodecache: encode node %s: %w", n.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, n.ID, source, i, n.Type(), n.Internal.ContentDigest, string(payload)); err != nil {
				return fmt.Errorf("nodecache: insert node %s: %w", n.ID, err)
			}
		}
	}

	return tx.Commit()
}

// Lookup returns the nodes cached for source when its checksum still
// matches. The bool is false on a miss.
func (db *DB) Lookup(ctx context.Context, source, checksum string) ([]*node.Node, bool, error) {
	var cs string
	err := db.conn.QueryRowContext(ctx, `SELECT checksum FROM sources WHERE path = ?`, source).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("nodecache: lookup %s: %w", source, err)
	}
	if cs != checksum {
		return nil, false, nil
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT payload FROM nodes WHERE source = ? ORDER BY position`, source)
	if err != nil {
		return nil, false, fmt.Errorf("nodecache: lookup %s: %w", source, err)
	}
	nodes, err := scanNodes(rows)
	if err != nil {
		return nil, false, err
	}
	return nodes, true, nil
}

// Checksums returns the cached checksum of every source.
func (db *DB) Checksums(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT path, checksum FROM sources`)
	if err != nil {
		return nil, fmt.Errorf("nodecache: checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Delete drops a source and its nodes.
func (db *DB) Delete(ctx context.Context, source string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sources WHERE path = ?`, source); err != nil {
		return fmt.Errorf("nodecache: delete %s: %w", source, err)
	}
	return nil
}

// All returns every cached node, grouped by source in path order.
func (db *DB) All(ctx context.Context) ([]*node.Node, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT payload FROM nodes ORDER BY source, position`)
	if err != nil {
		return nil, fmt.Errorf("nodecache: all: %w", err)
	}
	return scanNodes(rows)
}

func scanNodes(rows *sql.Rows) ([]*node.Node, error) {
	defer rows.Close()
	var out []*node.Node
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		n := &node.Node{}
		if err := json.Unmarshal([]byte(payload), n); err != nil {
			return nil, fmt.Errorf("nodecache: decode node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
