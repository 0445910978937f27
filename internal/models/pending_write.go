package models

import "time"

const (
	WriteOpInsert = "insert"
	WriteOpUpdate = "update"
	WriteOpDelete = "delete"
)

const (
	WritePending = "pending"
	WriteRetry   = "retry"
	WriteDone    = "done"
	WriteFailed  = "failed"
)

// PendingWrite is one journaled mutation waiting to be replayed against the
// store. Payload carries the full record as JSON; replays are idempotent
// upserts keyed by RecordID.
type PendingWrite struct {
	ID          int64      `json:"id"`
	Collection  string     `json:"collection"`
	Op          string     `json:"op"`
	RecordID    string     `json:"record_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}
