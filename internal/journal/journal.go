// Package journal keeps an optional SQLite record of every window a collector
// wrote or skipped. It is an audit trail only: resume points always come from
// the output file names.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Register sqlite driver

	"b3collect/internal/errors"
)

const dateFormat = "2006-01-02"

//go:embed migrations/001_initial.sql
var migration string

// Entry is one journaled window
type Entry struct {
	ID          int64
	RunID       string
	Dataset     string
	WindowStart time.Time
	WindowEnd   time.Time
	File        string // empty when the window was skipped
	Rows        int
	ItemsOK     int
	ItemsEmpty  int
	ItemsFailed int
	WrittenAt   time.Time
}

// Skipped reports whether the window produced no file
func (e Entry) Skipped() bool {
	return e.File == ""
}

// Journal stores entries in a SQLite database
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the journal database at dsn and applies the schema
func Open(dsn string) (*Journal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewStorageError("open journal", err).WithContext("dsn", dsn)
	}

	// In-memory databases are per-connection; keep a single connection so the
	// schema and the rows live in the same database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.NewStorageError(fmt.Sprintf("exec %s", pragma), err)
		}
	}

	if _, err := db.Exec(migration); err != nil {
		_ = db.Close()
		return nil, errors.NewStorageError("migrate journal", err)
	}

	return &Journal{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the database
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record inserts e, filling in its ID and WrittenAt
func (j *Journal) Record(ctx context.Context, e *Entry) error {
	const query = `INSERT INTO windows (run_id, dataset, window_start, window_end, file,
		rows_written, items_ok, items_empty, items_failed, written_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	e.WrittenAt = j.now()
	res, err := j.db.ExecContext(ctx, query,
		e.RunID, e.Dataset,
		e.WindowStart.Format(dateFormat), e.WindowEnd.Format(dateFormat),
		e.File, e.Rows, e.ItemsOK, e.ItemsEmpty, e.ItemsFailed,
		e.WrittenAt.Format(time.RFC3339),
	)
	if err != nil {
		return errors.NewStorageError("record window", err).
			WithContext("dataset", e.Dataset).
			WithContext("window_start", e.WindowStart.Format(dateFormat))
	}

	e.ID, _ = res.LastInsertId()
	return nil
}

// List returns the entries of dataset, newest first. An empty dataset lists all.
func (j *Journal) List(ctx context.Context, dataset string, limit int) ([]Entry, error) {
	query := `SELECT id, run_id, dataset, window_start, window_end, file,
		rows_written, items_ok, items_empty, items_failed, written_at
		FROM windows WHERE 1=1`

	var args []any
	if dataset != "" {
		query += " AND dataset = ?"
		args = append(args, dataset)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStorageError("list windows", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var startStr, endStr, writtenStr string
		if err := rows.Scan(
			&e.ID, &e.RunID, &e.Dataset, &startStr, &endStr, &e.File,
			&e.Rows, &e.ItemsOK, &e.ItemsEmpty, &e.ItemsFailed, &writtenStr,
		); err != nil {
			return nil, errors.NewStorageError("scan window", err)
		}
		e.WindowStart, _ = time.Parse(dateFormat, startStr)
		e.WindowEnd, _ = time.Parse(dateFormat, endStr)
		e.WrittenAt, _ = time.Parse(time.RFC3339, writtenStr)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterate windows", err)
	}
	return entries, nil
}
