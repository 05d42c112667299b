package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

// Journal records finished batches in a local sqlite database. It is an
// optional audit trail of what ran when; it never schedules or retries
// anything and stores no row data beyond counts.
type Journal struct {
	db *sql.DB
}

// BatchEntry is one journal row.
type BatchEntry struct {
	ID         int
	UUID       string
	StartedAt  string
	FinishedAt *string
	Scripts    int
	RowCount   *int
	OutputFile *string
	OK         *bool
}

// OpenJournal opens (creating if needed) the journal database at path.
func OpenJournal(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS batches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid TEXT NOT NULL UNIQUE,
			started_at TEXT NOT NULL,
			finished_at TEXT DEFAULT NULL,
			scripts INTEGER NOT NULL,
			row_count INTEGER DEFAULT NULL,
			output_file TEXT DEFAULT NULL,
			ok BOOLEAN DEFAULT NULL
		)`,
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Begin inserts an in-progress batch entry and returns its uuid.
func (j *Journal) Begin(ctx context.Context, scripts int) (string, error) {
	id := uuid.New().String()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO batches (uuid, started_at, scripts) VALUES (?,?,?);`,
		id, time.Now().UTC().Format(time.RFC3339), scripts,
	)
	if err != nil {
		return "", fmt.Errorf("executing sql insert failed: %w", err)
	}
	return id, nil
}

// Finish marks the batch identified by id as done, storing the row count, the
// output file and whether the CSV write succeeded.
// Returns ErrNotFound for an unknown id.
func (j *Journal) Finish(ctx context.Context, id string, rowCount int, outputFile string, ok bool) error {
	result, err := j.db.ExecContext(ctx,
		`UPDATE batches
		 SET
			finished_at = ?,
			row_count = ?,
			output_file = ?,
			ok = ?
		WHERE uuid = ?;
		`, time.Now().UTC().Format(time.RFC3339), rowCount, outputFile, ok, id,
	)
	if err != nil {
		return fmt.Errorf("executing sql update failed: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("fetching affected rows failed: %w", err)
	}
	if ra != 1 {
		return ErrNotFound
	}
	return nil
}

// Get returns the journal entry identified by id,
// ErrNotFound when it does not exist.
func (j *Journal) Get(ctx context.Context, id string) (BatchEntry, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT id, uuid, started_at, finished_at, scripts, row_count, output_file, ok
		 FROM batches WHERE uuid=?`, id,
	)

	var entry BatchEntry
	err := row.Scan(
		&entry.ID,
		&entry.UUID,
		&entry.StartedAt,
		&entry.FinishedAt,
		&entry.Scripts,
		&entry.RowCount,
		&entry.OutputFile,
		&entry.OK,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return BatchEntry{}, ErrNotFound
	case err != nil:
		return BatchEntry{}, fmt.Errorf("executing sql query failed: %w", err)
	}
	return entry, nil
}
