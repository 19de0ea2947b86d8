package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/localizer/internal/model"
)

// DBFile is the database file name inside the data directory.
const DBFile = "localizer.db"

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// DB provides SQLite-based storage for run reports.
type DB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures DB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*DB, error) {
	dbPath := filepath.Join(dbDir, DBFile)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("history database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	h := &DB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck // returning the pragma error
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := h.createTables(); err != nil {
		_ = db.Close() //nolint:errcheck // returning the schema error
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return h, nil
}

// Close closes the database connection.
func (h *DB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *DB) Path() string {
	return h.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (h *DB) createTables() error {
	schema := `
	-- One row per localization run; report_json holds the full report.
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source_dir TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		message TEXT,
		documents_rewritten INTEGER DEFAULT 0,
		documents_unchanged INTEGER DEFAULT 0,
		files_copied INTEGER DEFAULT 0,
		failures INTEGER DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source_dir);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Assets written or reused by the content store during a run.
	CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		category TEXT NOT NULL,
		filename TEXT NOT NULL,
		origin TEXT,
		hash TEXT NOT NULL,
		size INTEGER DEFAULT 0,
		reused INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_assets_run ON assets(run_id);
	CREATE INDEX IF NOT EXISTS idx_assets_hash ON assets(hash);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a finished run and its assets in one transaction.
func (h *DB) SaveRun(ctx context.Context, report *model.RunReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, source_dir, output_dir, started_at, finished_at, status, message,
		documents_rewritten, documents_unchanged, files_copied, failures, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.SourceDir,
		report.OutputDir,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		string(report.Status),
		report.Message,
		report.DocumentsRewritten,
		report.DocumentsUnchanged,
		report.FilesCopied,
		len(report.Failures),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO assets (run_id, category, filename, origin, hash, size, reused)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare asset insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range report.Assets {
		if _, err := stmt.ExecContext(ctx, report.ID, a.Category.String(), a.Filename, a.Origin, a.Hash, a.Size, a.Reused); err != nil {
			return fmt.Errorf("failed to save asset %s: %w", a.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// RunSummary contains summary information about a stored run.
// This is used for listing history without loading the full report.
type RunSummary struct {
	ID                 string
	SourceDir          string
	OutputDir          string
	StartedAt          time.Time
	FinishedAt         time.Time
	Status             model.RunStatus
	DocumentsRewritten int
	FilesCopied        int
	Failures           int
	Assets             int
}

// ListRuns returns stored runs, newest first. An empty sourceDir lists
// every run.
func (h *DB) ListRuns(ctx context.Context, sourceDir string) ([]RunSummary, error) {
	query := `
	SELECT r.id, r.source_dir, r.output_dir, r.started_at, r.finished_at, r.status,
		r.documents_rewritten, r.files_copied, r.failures,
		(SELECT COUNT(*) FROM assets a WHERE a.run_id = r.id AND a.reused = 0)
	FROM runs r
	WHERE (? = '' OR r.source_dir = ?)
	ORDER BY r.started_at DESC
	`

	rows, err := h.db.QueryContext(ctx, query, sourceDir, sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunSummary
	for rows.Next() {
		var s RunSummary
		var started string
		var finished sql.NullString
		var status string

		if err := rows.Scan(&s.ID, &s.SourceDir, &s.OutputDir, &started, &finished, &status,
			&s.DocumentsRewritten, &s.FilesCopied, &s.Failures, &s.Assets); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.StartedAt = parseTimestamp(started)
		if finished.Valid {
			s.FinishedAt = parseTimestamp(finished.String)
		}
		s.Status = model.RunStatus(status)
		results = append(results, s)
	}

	return results, rows.Err()
}

// GetRun retrieves the full report of a run.
func (h *DB) GetRun(ctx context.Context, id string) (*model.RunReport, error) {
	var reportJSON string
	err := h.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var report model.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	for i := range report.Assets {
		if c, ok := model.ParseCategory(report.Assets[i].CategoryName); ok {
			report.Assets[i].Category = c
		}
	}

	return &report, nil
}

// FindAssetsByHash returns every stored asset with the given fingerprint,
// across runs. It answers "where did this file come from".
func (h *DB) FindAssetsByHash(ctx context.Context, hash string) ([]model.Asset, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT category, filename, origin, hash, size, reused
	FROM assets WHERE hash = ? ORDER BY id
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to find assets: %w", err)
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		var a model.Asset
		var origin sql.NullString
		if err := rows.Scan(&a.CategoryName, &a.Filename, &origin, &a.Hash, &a.Size, &a.Reused); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		a.Origin = origin.String
		if c, ok := model.ParseCategory(a.CategoryName); ok {
			a.Category = c
		}
		assets = append(assets, a)
	}

	return assets, rows.Err()
}

// formatTimestamp stores times as UTC RFC 3339 so they sort as text.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that may be read back.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
