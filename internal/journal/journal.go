package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"islatel/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// DB is a local sqlite journal of mutations that could not reach the record
// store. The replay worker drains it once the store is reachable again.
type DB struct {
	db *sql.DB
}

func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to journal: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("create journal tables: %w", err)
	}

	return &DB{db: db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS pending_writes (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            collection TEXT NOT NULL,
            op TEXT NOT NULL,
            record_id TEXT NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,
		`CREATE INDEX IF NOT EXISTS idx_pending_writes_status ON pending_writes(status)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_writes_record_id ON pending_writes(record_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %v", query, err)
		}
	}
	return nil
}

func (j *DB) Append(ctx context.Context, entry *models.PendingWrite) error {
	query := `INSERT INTO pending_writes (collection, op, record_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	if entry.Status == "" {
		entry.Status = models.WritePending
	}
	result, err := j.db.ExecContext(ctx, query,
		entry.Collection,
		entry.Op,
		entry.RecordID,
		entry.Payload,
		entry.Status,
		entry.RetryCount,
		entry.LastError,
		now,
		entry.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append pending write: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	entry.CreatedAt = now

	return nil
}

func (j *DB) Pending(ctx context.Context, limit int) ([]models.PendingWrite, error) {
	query := `SELECT id, collection, op, record_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM pending_writes
              WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	rows, err := j.db.QueryContext(ctx, query, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending writes: %w", err)
	}
	defer rows.Close()

	var entries []models.PendingWrite
	for rows.Next() {
		var e models.PendingWrite
		var lastError sql.NullString
		err := rows.Scan(
			&e.ID, &e.Collection, &e.Op, &e.RecordID, &e.Payload, &e.Status,
			&e.RetryCount, &lastError, &e.CreatedAt, &e.ProcessedAt, &e.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending write: %w", err)
		}
		e.LastError = lastError.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (j *DB) MarkDone(ctx context.Context, id int64) error {
	query := `UPDATE pending_writes SET status = ?, processed_at = ? WHERE id = ?`
	if _, err := j.db.ExecContext(ctx, query, models.WriteDone, time.Now(), id); err != nil {
		return fmt.Errorf("failed to mark write done: %w", err)
	}
	return nil
}

func (j *DB) MarkRetry(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	query := `UPDATE pending_writes SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
	if _, err := j.db.ExecContext(ctx, query, models.WriteRetry, errMsg, nextRetryAt, id); err != nil {
		return fmt.Errorf("failed to mark write for retry: %w", err)
	}
	return nil
}

func (j *DB) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	query := `UPDATE pending_writes SET status = ?, last_error = ?, processed_at = ? WHERE id = ?`
	if _, err := j.db.ExecContext(ctx, query, models.WriteFailed, errMsg, time.Now(), id); err != nil {
		return fmt.Errorf("failed to mark write failed: %w", err)
	}
	return nil
}

// Failed returns writes that exhausted their retries, for inspection.
func (j *DB) Failed(ctx context.Context) ([]models.PendingWrite, error) {
	query := `SELECT id, collection, op, record_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM pending_writes WHERE status = 'failed' ORDER BY created_at DESC`
	rows, err := j.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed writes: %w", err)
	}
	defer rows.Close()

	var entries []models.PendingWrite
	for rows.Next() {
		var e models.PendingWrite
		var lastError sql.NullString
		err := rows.Scan(
			&e.ID, &e.Collection, &e.Op, &e.RecordID, &e.Payload, &e.Status,
			&e.RetryCount, &lastError, &e.CreatedAt, &e.ProcessedAt, &e.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending write: %w", err)
		}
		e.LastError = lastError.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (j *DB) Close() error {
	return j.db.Close()
}
