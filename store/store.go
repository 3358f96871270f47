// Package store keeps the history of report runs in a local SQLite file.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run modes.
const (
	ModePhotos = "photos"
	ModeSheet  = "sheet"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Ledger wraps sql.DB with the run history queries.
type Ledger struct {
	*sql.DB
}

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	sqlDB, err := sql.Open("sqlite", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1) // SQLite works best with single connection
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	input TEXT NOT NULL,
	output TEXT NOT NULL,
	project TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	processed INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	started_at TEXT NOT NULL,
	finished_at TEXT
);
CREATE TABLE IF NOT EXISTS outputs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	path TEXT NOT NULL,
	format TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outputs_run ON outputs(run_id);`
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialise ledger %s: %w", path, err)
	}
	return &Ledger{sqlDB}, nil
}

// Run is one recorded invocation of forward or reverse mode.
type Run struct {
	ID         string
	Mode       string
	Input      string
	Output     string
	Project    string
	Status     string
	Processed  int
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Outputs    []string
}

// StartRun records a running invocation and returns its id.
func (l *Ledger) StartRun(mode, input, output, project string) (string, error) {
	id := uuid.NewString()
	_, err := l.Exec(
		`INSERT INTO runs (id, mode, input, output, project, status, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, mode, input, output, project, StatusRunning, time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishRun closes a run with its final status. A non-nil runErr is stored
// as the failure reason.
func (l *Ledger) FinishRun(id, status string, processed int, runErr error) error {
	var reason interface{}
	if runErr != nil {
		reason = runErr.Error()
	}
	return l.execRetry(
		`UPDATE runs SET status=?, processed=?, error=?, finished_at=? WHERE id=?`,
		status, processed, reason, time.Now().Format(time.RFC3339), id,
	)
}

// AddOutput attaches a generated file to a run.
func (l *Ledger) AddOutput(runID, path string) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return l.execRetry(`INSERT INTO outputs (run_id, path, format) VALUES (?, ?, ?)`, runID, path, format)
}

// execRetry retries writes that hit SQLITE_BUSY.
func (l *Ledger) execRetry(query string, args ...interface{}) error {
	maxRetries := 3
	var err error
	for i := 0; i < maxRetries; i++ {
		_, err = l.Exec(query, args...)
		if err == nil {
			return nil
		}
		if errStr := err.Error(); !strings.Contains(errStr, "database is locked") && !strings.Contains(errStr, "SQLITE_BUSY") {
			return err
		}
		// Wait before retry (exponential backoff)
		time.Sleep(time.Duration(i+1) * 50 * time.Millisecond)
	}
	return err
}

// ListRuns returns runs newest first, with their outputs.
func (l *Ledger) ListRuns(offset, limit int64) ([]Run, error) {
	rows, err := l.Query(`SELECT id, mode, input, output, project, status, processed, IFNULL(error,''), started_at, IFNULL(finished_at,'') FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Mode, &r.Input, &r.Output, &r.Project, &r.Status, &r.Processed, &r.Error, &started, &finished); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, started); err == nil {
			r.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339, finished); err == nil {
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		paths, err := l.outputs(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Outputs = paths
	}
	return out, nil
}

// GetRun returns one run, or nil when the id is unknown.
func (l *Ledger) GetRun(id string) (*Run, error) {
	var r Run
	var started, finished string
	err := l.QueryRow(`SELECT id, mode, input, output, project, status, processed, IFNULL(error,''), started_at, IFNULL(finished_at,'') FROM runs WHERE id = ?`, id).
		Scan(&r.ID, &r.Mode, &r.Input, &r.Output, &r.Project, &r.Status, &r.Processed, &r.Error, &started, &finished)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, started); err == nil {
		r.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339, finished); err == nil {
		r.FinishedAt = &t
	}
	if r.Outputs, err = l.outputs(r.ID); err != nil {
		return nil, err
	}
	return &r, nil
}

func (l *Ledger) outputs(runID string) ([]string, error) {
	rows, err := l.Query(`SELECT path FROM outputs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Clear deletes all recorded runs.
func (l *Ledger) Clear() error {
	if _, err := l.Exec(`DELETE FROM outputs`); err != nil {
		return err
	}
	if _, err := l.Exec(`DELETE FROM runs`); err != nil {
		return err
	}
	return nil
}
