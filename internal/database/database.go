package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"live-gallery/internal/logging"
	"live-gallery/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// schemaVersion is recorded in the metadata table after migrations run.
const schemaVersion = "2"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrFolderNotFound is returned when a media file names a folder that does not exist.
	ErrFolderNotFound = errors.New("folder not found")
)

// Database manages the folders, media files and variants of the gallery.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New creates a new Database instance.
// dbPath is the full path to the database file; its parent directory must
// already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// WAL for concurrent readers, busy_timeout against "database is locked",
	// foreign keys for variant cascade
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=1", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		visible INTEGER NOT NULL DEFAULT 1,
		grid_eligible INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_folders_name ON folders(name COLLATE NOCASE);

	-- hash is looked up before insert but deliberately not unique
	CREATE TABLE IF NOT EXISTS media_files (
		id TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		file_name TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('image', 'video')),
		width INTEGER,
		height INTEGER,
		duration INTEGER,
		size INTEGER NOT NULL DEFAULT 0,
		orientation INTEGER NOT NULL DEFAULT 1,
		folder_id TEXT NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_media_files_hash ON media_files(hash);
	CREATE INDEX IF NOT EXISTS idx_media_files_folder ON media_files(folder_id, created_at);

	CREATE TABLE IF NOT EXISTS variants (
		id TEXT PRIMARY KEY,
		media_file_id TEXT NOT NULL REFERENCES media_files(id) ON DELETE CASCADE,
		kind TEXT NOT NULL CHECK (kind IN ('original', 'webp', 'thumbnail')),
		path TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		width INTEGER,
		height INTEGER,
		UNIQUE(media_file_id, kind)
	);

	CREATE INDEX IF NOT EXISTS idx_variants_media_file ON variants(media_file_id);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return d.runMigrations(ctx)
}

// runMigrations applies database schema migrations
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: orientation column, absent from databases created before
	// rotation was applied on ingest
	var columnExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('media_files')
		WHERE name='orientation'
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for orientation column: %w", err)
	}

	if !columnExists {
		logging.Info("Migrating database: adding orientation column to media_files table")

		// Every stored rendition is already upright
		if _, err := d.db.ExecContext(ctx, `
			ALTER TABLE media_files ADD COLUMN orientation INTEGER NOT NULL DEFAULT 1
		`); err != nil {
			return fmt.Errorf("failed to add orientation column: %w", err)
		}

		logging.Info("Migration complete: orientation column added")
	}

	return d.SetMetadata(ctx, "schema_version", schemaVersion)
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// Ping checks that the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// withTx runs fn inside a transaction. fn's error rolls the transaction
// back; both errors are returned when the rollback fails too.
func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	start := time.Now()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		duration := time.Since(start).Seconds()
		if err != nil {
			metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
			}
			return
		}
		metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("commit: %w", cErr)
		}
	}()

	return fn(tx)
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)
	logging.Debug("Database directory is writable")

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only! Mode: %v - this will cause write failures", filepath.Base(path), info.Mode())
		if path == dbPath {
			continue
		}
		if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
			logging.Error("Failed to fix %s permissions: %v", filepath.Base(path), chmodErr)
		} else {
			logging.Info("Fixed %s permissions", filepath.Base(path))
		}
	}

	return nil
}
