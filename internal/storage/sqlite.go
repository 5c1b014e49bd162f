// Package storage persists the document catalog and chunk vectors in a
// single SQLite database.
package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding the document catalog and the
// chunk vector table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "askdocs.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for the vector store, which shares
// this database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

// parseMigrationVersion extracts the numeric prefix from a filename like "0001_init.sql".
func parseMigrationVersion(filename string) (int, error) {
	idx := strings.IndexByte(filename, '_')
	if idx <= 0 {
		return 0, fmt.Errorf("migration %s: missing version prefix", filename)
	}
	version, err := strconv.Atoi(filename[:idx])
	if err != nil {
		return 0, fmt.Errorf("migration %s: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the versions recorded in schema_version, ascending.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying schema_version: %w", err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// SaveDocument inserts or replaces a catalog entry keyed by document id.
func (s *Store) SaveDocument(doc DocumentRecord) error {
	metaJSON, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata for %s: %w", doc.ID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO documents (id, title, source, kind, status, chunk_count, created_at, updated_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			source = excluded.source,
			kind = excluded.kind,
			status = excluded.status,
			chunk_count = excluded.chunk_count,
			updated_at = excluded.updated_at,
			metadata = excluded.metadata`,
		doc.ID, doc.Title, doc.Source, doc.Kind, doc.Status, doc.ChunkCount,
		doc.CreatedAt.UTC().Format(time.RFC3339Nano),
		doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
		metaJSON,
	)
	if err != nil {
		return fmt.Errorf("saving document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument returns the catalog entry for the given id, or ErrNotFound.
func (s *Store) GetDocument(id string) (DocumentRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, title, source, kind, status, chunk_count, created_at, updated_at, metadata
		FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row.Scan)
	if err == sql.ErrNoRows {
		return DocumentRecord{}, ErrNotFound
	}
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("getting document %s: %w", id, err)
	}
	return doc, nil
}

// ListDocuments returns all catalog entries, newest first.
func (s *Store) ListDocuments() ([]DocumentRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, title, source, kind, status, chunk_count, created_at, updated_at, metadata
		FROM documents ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentRecord
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a catalog entry. Returns ErrNotFound for unknown ids.
func (s *Store) DeleteDocument(id string) error {
	res, err := s.db.Exec("DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearDocuments removes every catalog entry and returns how many were removed.
func (s *Store) ClearDocuments() (int, error) {
	res, err := s.db.Exec("DELETE FROM documents")
	if err != nil {
		return 0, fmt.Errorf("clearing documents: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// DocumentStats returns catalog counts grouped by status and by kind.
func (s *Store) DocumentStats() (DocumentStats, error) {
	stats := DocumentStats{
		ByStatus: make(map[string]int),
		ByKind:   make(map[string]int),
	}

	rows, err := s.db.Query("SELECT status, kind FROM documents")
	if err != nil {
		return stats, fmt.Errorf("querying document stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, kind string
		if err := rows.Scan(&status, &kind); err != nil {
			return stats, fmt.Errorf("scanning stats row: %w", err)
		}
		stats.TotalDocuments++
		stats.ByStatus[status]++
		stats.ByKind[kind]++
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterating stats rows: %w", err)
	}
	return stats, nil
}

// scanFn matches both sql.Row.Scan and sql.Rows.Scan.
type scanFn func(dest ...any) error

func scanDocument(scan scanFn) (DocumentRecord, error) {
	var doc DocumentRecord
	var createdAt, updatedAt, metaJSON string
	if err := scan(&doc.ID, &doc.Title, &doc.Source, &doc.Kind, &doc.Status,
		&doc.ChunkCount, &createdAt, &updatedAt, &metaJSON); err != nil {
		return DocumentRecord{}, err
	}

	var err error
	doc.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("parsing updated_at: %w", err)
	}

	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
			return DocumentRecord{}, fmt.Errorf("parsing metadata: %w", err)
		}
	}
	return doc, nil
}

func marshalMetadata(meta map[string]any) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
