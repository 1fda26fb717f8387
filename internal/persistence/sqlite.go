package persistence

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/projectrag/internal/vectorstore"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS vector_entries (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	position   INTEGER NOT NULL,
	user_id    TEXT NOT NULL,
	content    TEXT NOT NULL,
	vector     BLOB NOT NULL,
	metadata   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vector_entries_project ON vector_entries(project_id, position);
`

// SQLiteStore keeps the snapshot in a SQLite database, one row per entry.
//
// Each save replaces every row inside one transaction, so readers and crash
// recovery only ever see complete snapshots. Insertion order is kept in the
// position column.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
func NewSQLiteStore(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	expanded, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	if expanded != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(expanded), 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous=FULL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, path: expanded, logger: logger}, nil
}

// SaveSnapshot replaces all stored entries with snap in one transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap vectorstore.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM vector_entries"); err != nil {
		return fmt.Errorf("clearing entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vector_entries (id, project_id, position, user_id, content, vector, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for projectID, entries := range snap {
		for pos, e := range entries {
			meta, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("encoding metadata for %q: %w", e.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, e.ID, projectID, pos, e.UserID, e.Content, encodeVector(e.Vector), string(meta)); err != nil {
				return fmt.Errorf("inserting entry %q: %w", e.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved", zap.String("path", s.path), zap.Int("vectors", snap.Count()))
	return nil
}

// LoadSnapshot reads every stored entry, grouped by project in insertion order.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (vectorstore.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, user_id, content, vector, metadata
		FROM vector_entries
		ORDER BY project_id, position`)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	snap := vectorstore.Snapshot{}
	for rows.Next() {
		var (
			e    vectorstore.VectorEntry
			blob []byte
			meta string
		)
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.UserID, &e.Content, &blob, &meta); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.Vector, err = decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q: %v", ErrCorruptSnapshot, e.ID, err)
		}
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			return nil, fmt.Errorf("%w: entry %q metadata: %v", ErrCorruptSnapshot, e.ID, err)
		}
		snap[e.ProjectID] = append(snap[e.ProjectID], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return snap, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeVector converts []float32 to little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector converts little-endian bytes back to []float32.
func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
