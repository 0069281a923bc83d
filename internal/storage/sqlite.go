package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hotspotter/internal/scene"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			name TEXT PRIMARY KEY,
			selection JSON,
			updated_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS nodes (
			doc TEXT,
			id TEXT,
			parent_id TEXT,
			position INTEGER,
			node_type TEXT,
			name TEXT,
			x REAL,
			y REAL,
			width REAL,
			height REAL,
			text TEXT,
			PRIMARY KEY (doc, id)
		);`,
		`CREATE TABLE IF NOT EXISTS annotations (
			doc TEXT,
			node_id TEXT,
			key TEXT,
			value TEXT,
			PRIMARY KEY (doc, node_id, key)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(doc, parent_id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveDocument(ctx context.Context, name string, doc *scene.Document) error {
	selection, err := json.Marshal(doc.SelectionIDs())
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (name, selection, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET selection=excluded.selection, updated_at=excluded.updated_at
	`, name, selection, time.Now().Unix()); err != nil {
		return err
	}

	// Snapshot sync: the stored tree is replaced as a whole.
	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE doc = ?", name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM annotations WHERE doc = ?", name); err != nil {
		return err
	}

	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (doc, id, parent_id, position, node_type, name, x, y, width, height, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer nodeStmt.Close()

	dataStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO annotations (doc, node_id, key, value) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer dataStmt.Close()

	for _, r := range doc.Records() {
		g := r.Geometry
		if _, err := nodeStmt.ExecContext(ctx, name, r.ID, r.ParentID, r.Index, string(r.Type), r.Name, g.X, g.Y, g.Width, g.Height, r.Text); err != nil {
			return err
		}
		for k, v := range r.Data {
			if _, err := dataStmt.ExecContext(ctx, name, r.ID, k, v); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadDocument(ctx context.Context, name string) (*scene.Document, error) {
	var selectionJSON []byte
	err := s.db.QueryRowContext(ctx, "SELECT selection FROM documents WHERE name = ?", name).Scan(&selectionJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	var selection []string
	if len(selectionJSON) > 0 {
		if err := json.Unmarshal(selectionJSON, &selection); err != nil {
			return nil, fmt.Errorf("failed to decode selection: %w", err)
		}
	}

	// 1. Load Nodes
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, position, node_type, name, x, y, width, height, text
		FROM nodes WHERE doc = ? ORDER BY parent_id, position
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var records []scene.Record
	index := make(map[string]int)
	for rows.Next() {
		var r scene.Record
		var nodeType string
		if err := rows.Scan(&r.ID, &r.ParentID, &r.Index, &nodeType, &r.Name, &r.Geometry.X, &r.Geometry.Y, &r.Geometry.Width, &r.Geometry.Height, &r.Text); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		r.Type = scene.ParseNodeType(nodeType)
		index[r.ID] = len(records)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 2. Load Annotations
	dataRows, err := s.db.QueryContext(ctx, "SELECT node_id, key, value FROM annotations WHERE doc = ?", name)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	defer dataRows.Close()

	for dataRows.Next() {
		var nodeID, key, value string
		if err := dataRows.Scan(&nodeID, &key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		i, ok := index[nodeID]
		if !ok {
			continue
		}
		if records[i].Data == nil {
			records[i].Data = make(map[string]string)
		}
		records[i].Data[key] = value
	}
	if err := dataRows.Err(); err != nil {
		return nil, err
	}

	return scene.FromRecords(records, selection)
}

func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM documents ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM annotations WHERE doc = ?",
		"DELETE FROM nodes WHERE doc = ?",
		"DELETE FROM documents WHERE name = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, name); err != nil {
			return err
		}
	}
	return tx.Commit()
}
