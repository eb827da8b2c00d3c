package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

var validCollectionName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func init() {
	sqlite_vec.Auto()
}

// SQLite is a Store backed by a single SQLite database file using the
// sqlite-vec extension for per-collection similarity search, following the
// teacher repo's one-database-many-collections layout: each collection gets
// its own metadata table and its own vec0 virtual table, the latter created
// lazily once the embedding dimension of its first record is known.
type SQLite struct {
	db *sql.DB

	mu          sync.Mutex
	dimensions  map[string]int
	initialized map[string]bool
}

// NewSQLite opens (creating if necessary) the database file at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLite{
		db:          db,
		dimensions:  make(map[string]int),
		initialized: make(map[string]bool),
	}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func metaTable(collection string) string  { return collection + "_chunks" }
func vecTable(collection string) string   { return collection + "_vec" }
func validName(collection string) error {
	if !validCollectionName.MatchString(collection) {
		return fmt.Errorf("invalid collection name %q", collection)
	}
	return nil
}

func (s *SQLite) ensureCollection(collection string, dimension int) error {
	if err := validName(collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized[collection] && s.dimensions[collection] == dimension {
		return nil
	}

	meta := metaTable(collection)
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}'
		)`, meta))
	if err != nil {
		return fmt.Errorf("create metadata table: %w", err)
	}

	if dimension > 0 && !s.initialized[collection] {
		vt := vecTable(collection)
		_, err = s.db.Exec(fmt.Sprintf(
			`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`,
			vt, dimension))
		if err != nil {
			return fmt.Errorf("create vec table: %w", err)
		}
		s.initialized[collection] = true
		s.dimensions[collection] = dimension
	}
	return nil
}

func (s *SQLite) Upsert(ctx context.Context, collection string, rec Record) error {
	if err := s.ensureCollection(collection, len(rec.Embedding)); err != nil {
		return err
	}

	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	meta := metaTable(collection)
	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, text, metadata) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET text = excluded.text, metadata = excluded.metadata`, meta),
		rec.ID, rec.Text, string(metaJSON))
	if err != nil {
		return fmt.Errorf("upsert metadata: %w", err)
	}

	if len(rec.Embedding) > 0 {
		vt := vecTable(collection)
		embJSON, err := sqlite_vec.SerializeFloat32(rec.Embedding)
		if err != nil {
			return fmt.Errorf("serialize embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, vt), rec.ID); err != nil {
			return fmt.Errorf("delete stale embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, embedding) VALUES (?, ?)`, vt),
			rec.ID, embJSON); err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLite) Query(ctx context.Context, collection string, queryEmbedding []float32, k int) ([]Record, error) {
	if err := validName(collection); err != nil {
		return nil, err
	}

	embJSON, err := sqlite_vec.SerializeFloat32(queryEmbedding)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}

	vt := vecTable(collection)
	meta := metaTable(collection)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT m.id, m.text, m.metadata, v.distance
		FROM %s v
		JOIN %s m ON m.id = v.id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance`, vt, meta),
		embJSON, k)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("query vec table: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var id, text, metaJSON string
		var distance float64
		if err := rows.Scan(&id, &text, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var metadata map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
			metadata = map[string]any{}
		}
		out = append(out, Record{
			ID:       id,
			Text:     text,
			Metadata: metadata,
			Score:    1.0 / (1.0 + distance),
		})
	}
	return out, rows.Err()
}

func (s *SQLite) Count(ctx context.Context, collection string) (int, error) {
	if err := validName(collection); err != nil {
		return 0, err
	}
	meta := metaTable(collection)
	var count int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, meta)).Scan(&count)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return 0, nil
		}
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

func (s *SQLite) DeleteCollection(ctx context.Context, collection string) error {
	if err := validName(collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := metaTable(collection)
	vt := vecTable(collection)
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, meta)); err != nil {
		return fmt.Errorf("drop metadata table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, vt)); err != nil {
		return fmt.Errorf("drop vec table: %w", err)
	}
	delete(s.initialized, collection)
	delete(s.dimensions, collection)
	return nil
}
