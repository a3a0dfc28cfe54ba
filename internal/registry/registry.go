// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry is the durable store of the discovery registry: cached
// searches, per-work metadata, and assigned citation keys. Every mutation of
// a work runs in one transaction and writers are serialized, so readers see
// either the old or the new record, never a partial one.
package registry

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// DefaultFile is the registry file name used under <project>/notes/.
const DefaultFile = "arxiv-registry.sqlite3"

const (
	// WAL lets readers proceed while a writer holds the database; immediate
	// transactions take the write lock up front instead of on upgrade.
	dsnParams  = "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate"
	timeLayout = time.RFC3339Nano
)

// Store manages the registry SQLite database. It is the only component
// that reads or writes the searches, items and keys tables.
type Store struct {
	db  *sql.DB
	log *log.Logger
	now func() time.Time

	// writeMu serializes write transactions within the process.
	writeMu sync.Mutex
}

// Open opens (creating if needed) the registry database at path. The
// schema is not touched until Init is called.
func Open(path string, logger *log.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storageErr("creating registry directory", err)
		}
	}

	db, err := sql.Open("sqlite3", path+dsnParams)
	if err != nil {
		return nil, storageErr("opening database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, storageErr("opening database", err)
	}

	return New(db, logger.With("db", path)), nil
}

// New wraps an already opened database handle.
func New(db *sql.DB, logger *log.Logger) *Store {
	return &Store{
		db:  db,
		log: logger,
		now: time.Now,
	}
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Init applies any pending schema migrations and returns the resulting
// schema version. Migrations are additive only, so Init is safe to run
// repeatedly and against a store written by an older release.
func (s *Store) Init(ctx context.Context) (uint, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return 0, storageErr("loading migrations", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return 0, storageErr("preparing migrations", err)
	}
	// The migrate instance is not closed: closing it would close s.db.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return 0, storageErr("preparing migrations", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, storageErr("migrating schema", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, storageErr("reading schema version", err)
	}
	if dirty {
		return 0, storageErr("reading schema version", fmt.Errorf("schema version %d is dirty", version))
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO schema_meta (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		strconv.FormatUint(uint64(version), 10),
	)
	if err != nil {
		return 0, storageErr("recording schema version", err)
	}

	s.log.Debug("schema ready", "version", version)
	return version, nil
}

// SchemaVersion returns the version recorded by the last Init.
func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("schema version: %w", ErrNotFound)
	}
	if err != nil {
		return "", storageErr("reading schema version", err)
	}
	return v, nil
}

// Stats holds row counts for a quick registry overview.
type Stats struct {
	Items      int `json:"items" yaml:"items"`
	Searches   int `json:"searches" yaml:"searches"`
	SearchRuns int `json:"search_runs" yaml:"search_runs"`
	Keys       int `json:"keys" yaml:"keys"`
	Exported   int `json:"exported" yaml:"exported"`
	Fetches    int `json:"fetches" yaml:"fetches"`
}

// Stats counts the rows of each registry table.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	counts := []struct {
		query string
		dst   *int
	}{
		{`SELECT count(*) FROM items`, &st.Items},
		{`SELECT count(*) FROM searches`, &st.Searches},
		{`SELECT count(*) FROM search_runs`, &st.SearchRuns},
		{`SELECT count(*) FROM keys`, &st.Keys},
		{`SELECT count(*) FROM keys WHERE exported_at IS NOT NULL`, &st.Exported},
		{`SELECT count(*) FROM fetches`, &st.Fetches},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return Stats{}, storageErr("counting rows", err)
		}
	}
	return st, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
