package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/hpungsan/katha/internal/config"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Init initializes the SQLite database at baseDir/katha.db and creates the
// media directory used by the filesystem blob store.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.katha.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	mediaDir := filepath.Join(baseDir, "media")
	if err := os.MkdirAll(mediaDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	return Open(filepath.Join(baseDir, "katha.db"))
}

// Open opens (creating if needed) the database file at dbPath and migrates it.
func Open(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas in the connection string apply to every pooled connection
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: families, profiles, children, capsules
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS families (
		  id          TEXT PRIMARY KEY,
		  name        TEXT NOT NULL,
		  invite_code TEXT NOT NULL UNIQUE,
		  created_by  TEXT NOT NULL,
		  created_at  INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS profiles (
		  id                  TEXT PRIMARY KEY,
		  family_id           TEXT REFERENCES families(id),
		  display_name        TEXT NOT NULL,
		  role                TEXT NOT NULL,
		  relationship_label  TEXT,
		  language_prefs_json TEXT,
		  bio                 TEXT,
		  created_at          INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_profiles_family
		ON profiles(family_id)
		WHERE family_id IS NOT NULL;

		CREATE TABLE IF NOT EXISTS children (
		  id            TEXT PRIMARY KEY,
		  family_id     TEXT NOT NULL REFERENCES families(id),
		  name          TEXT NOT NULL,
		  date_of_birth TEXT NOT NULL,
		  created_at    INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_children_family
		ON children(family_id, created_at);

		CREATE TABLE IF NOT EXISTS capsules (
		  id                     TEXT PRIMARY KEY,
		  writer_id              TEXT NOT NULL REFERENCES profiles(id),
		  family_id              TEXT NOT NULL REFERENCES families(id),
		  child_id               TEXT REFERENCES children(id),
		  raw_text               TEXT NOT NULL DEFAULT '',
		  polished_text          TEXT,
		  audio_url              TEXT,
		  audio_duration_seconds INTEGER,
		  title                  TEXT,
		  excerpt                TEXT,
		  category               TEXT,
		  mood                   TEXT,
		  read_time_minutes      INTEGER,
		  unlock_type            TEXT NOT NULL DEFAULT 'immediate',
		  unlock_date            INTEGER,
		  unlock_age             INTEGER,
		  unlock_milestone       TEXT,
		  is_surprise            INTEGER NOT NULL DEFAULT 0,
		  is_unlocked            INTEGER NOT NULL DEFAULT 0,
		  is_private             INTEGER NOT NULL DEFAULT 0,
		  is_draft               INTEGER NOT NULL DEFAULT 1,
		  language               TEXT,
		  created_at             INTEGER NOT NULL,
		  published_at           INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_capsules_family_published
		ON capsules(family_id, published_at DESC)
		WHERE is_draft = 0;

		CREATE INDEX IF NOT EXISTS idx_capsules_writer_created
		ON capsules(writer_id, created_at DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: index for the unlock sweep
	if version < 2 {
		schema := `
		CREATE INDEX IF NOT EXISTS idx_capsules_sealed
		ON capsules(unlock_type, unlock_date)
		WHERE is_draft = 0 AND is_unlocked = 0;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction, committing on success.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
