// Package ledger records finished decompilation units in a SQLite database
// so unchanged inputs can be skipped on the next run.
package ledger

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the database file inside the ledger directory.
const FileName = "ledger.db"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS units (
    unit TEXT PRIMARY KEY,
    sha256 TEXT NOT NULL,
    output TEXT NOT NULL DEFAULT '',
    success INTEGER NOT NULL DEFAULT 0,
    lines INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_units_success ON units(success);
`

// Entry is the recorded outcome of one unit. Unit identifies the input:
// the image path, or "archive.a(member.o)" for archive members.
type Entry struct {
	Unit       string
	SHA256     string
	Output     string
	Success    bool
	Lines      int
	Error      string
	FinishedAt time.Time
}

// Ledger is an open run ledger. It is safe for concurrent use.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens or creates the ledger in dir.
func Open(dir string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("ledger: mkdir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	// Workers record concurrently; one connection serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: set WAL mode: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: init schema: %w", err)
	}
	return &Ledger{db: db, path: path}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Path returns the database file path.
func (l *Ledger) Path() string { return l.path }

// Record stores e, replacing any earlier entry for the same unit.
func (l *Ledger) Record(e Entry) error {
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now()
	}
	_, err := l.db.Exec(`
		INSERT OR REPLACE INTO units (unit, sha256, output, success, lines, error, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Unit, e.SHA256, e.Output, e.Success, e.Lines, e.Error, e.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("ledger: record %s: %w", e.Unit, err)
	}
	return nil
}

// Get returns the entry for unit. ok is false when none is recorded.
func (l *Ledger) Get(unit string) (e Entry, ok bool, err error) {
	var finished string
	err = l.db.QueryRow(`
		SELECT unit, sha256, output, success, lines, error, finished_at FROM units WHERE unit = ?`,
		unit).Scan(&e.Unit, &e.SHA256, &e.Output, &e.Success, &e.Lines, &e.Error, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("ledger: get %s: %w", unit, err)
	}
	e.FinishedAt, _ = time.Parse(time.RFC3339, finished)
	return e, true, nil
}

// Done reports whether unit already succeeded with content hash sum. The
// returned entry is zero when unit was never recorded.
func (l *Ledger) Done(unit, sum string) (Entry, bool, error) {
	e, ok, err := l.Get(unit)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	return e, e.Success && e.SHA256 == sum, nil
}

// Failed returns the units whose last run failed, sorted.
func (l *Ledger) Failed() ([]Entry, error) {
	rows, err := l.db.Query(`
		SELECT unit, sha256, output, success, lines, error, finished_at FROM units
		WHERE success = 0 ORDER BY unit`)
	if err != nil {
		return nil, fmt.Errorf("ledger: query failed: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var finished string
		if err := rows.Scan(&e.Unit, &e.SHA256, &e.Output, &e.Success, &e.Lines, &e.Error, &finished); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		e.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, e)
	}
	return out, rows.Err()
}

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("ledger: hash: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("ledger: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
