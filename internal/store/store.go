// Package store is RustMailer's embedded persistence layer. Rust's original
// implementation leans on native_db, an embedded key-value store with
// declarative secondary-key indices; no example in the retrieved pack wires
// an embedded KV store directly, so this package follows the closest
// grounded analogue instead: a single-writer SQLite database opened with
// modernc.org/sqlite, WAL mode, and embedded versioned migrations, the exact
// shape used by internal/ruriko/store in the bdobrica-Ruriko example.
// Three logical stores share this type: metadata (accounts, hooks, tokens,
// oauth2 configs, mailboxes, envelopes), tasks (the scheduler's TaskMeta
// rows) and attachments (content-addressed blob cache) — each backed by its
// own database file so write-serialization never crosses a concern
// boundary.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// Namespace selects which embedded migration set a Store applies, keeping
// the tasks/metadata/attachments schemas independent of one another.
type Namespace string

const (
	NamespaceTasks       Namespace = "tasks"
	NamespaceMeta        Namespace = "meta"
	NamespaceAttachments Namespace = "attachments"
)

// Store wraps one SQLite database file, serialized through a single
// connection because SQLite is single-writer by design.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if absent) the SQLite database at path and applies
// any pending embedded migrations for ns.
func Open(path string, ns Namespace, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.runMigrations(ns); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) runMigrations(ns Namespace) error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		description TEXT NOT NULL
	)`); err != nil {
		return err
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return err
	}

	dir := filepath.Join("migrations", string(ns))
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) < 2 {
			continue
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := migrationsFS.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", version, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			version, time.Now(), strings.TrimSuffix(parts[1], ".sql"),
		); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		if s.logger != nil {
			s.logger.Info("applied migration", zap.Int("version", version), zap.String("file", entry.Name()))
		}
	}
	return nil
}
