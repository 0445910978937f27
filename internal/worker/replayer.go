package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"islatel/internal/domain"
	"islatel/internal/models"
	"islatel/internal/store"
)

// Replayer drains the local write journal against the record store once it is
// reachable again. Replays are at-least-once; guest and follow-up updates are
// idempotent upserts keyed by record id, so a duplicate replay is harmless.
type Replayer struct {
	store        domain.RecordStore
	journal      domain.Journal
	retryPolicy  RetryPolicy
	pollInterval time.Duration
	batchSize    int
	logger       *zerolog.Logger
}

func NewReplayer(recordStore domain.RecordStore, journal domain.Journal, retry RetryPolicy, pollInterval time.Duration, logger *zerolog.Logger) *Replayer {
	if retry.MaxRetries == 0 {
		retry = DefaultRetryPolicy()
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Replayer{
		store:        recordStore,
		journal:      journal,
		retryPolicy:  retry,
		pollInterval: pollInterval,
		batchSize:    models.JournalBatchSize,
		logger:       logger,
	}
}

// Run polls the journal until ctx is cancelled.
func (r *Replayer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Drain(ctx)
		}
	}
}

// Drain replays one batch of due journal entries.
func (r *Replayer) Drain(ctx context.Context) {
	entries, err := r.journal.Pending(ctx, r.batchSize)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to read journal")
		return
	}

	for _, entry := range entries {
		if err := r.apply(ctx, &entry); err != nil {
			r.fail(ctx, &entry, err)
			continue
		}
		if err := r.journal.MarkDone(ctx, entry.ID); err != nil {
			r.logger.Error().Err(err).Int64("entry_id", entry.ID).Msg("failed to mark journal entry done")
			continue
		}
		r.logger.Info().Int64("entry_id", entry.ID).Str("collection", entry.Collection).
			Str("op", entry.Op).Msg("replayed journaled write")
	}
}

func (r *Replayer) fail(ctx context.Context, entry *models.PendingWrite, cause error) {
	if entry.RetryCount+1 >= r.retryPolicy.MaxRetries {
		r.logger.Error().Err(cause).Int64("entry_id", entry.ID).Str("collection", entry.Collection).
			Msg("journal entry exhausted retries")
		if err := r.journal.MarkFailed(ctx, entry.ID, cause.Error()); err != nil {
			r.logger.Error().Err(err).Int64("entry_id", entry.ID).Msg("failed to mark journal entry failed")
		}
		return
	}

	next := time.Now().Add(r.retryPolicy.NextDelay(entry.RetryCount + 1))
	if err := r.journal.MarkRetry(ctx, entry.ID, cause.Error(), next); err != nil {
		r.logger.Error().Err(err).Int64("entry_id", entry.ID).Msg("failed to reschedule journal entry")
	}
}

func (r *Replayer) apply(ctx context.Context, entry *models.PendingWrite) error {
	switch entry.Collection {
	case "guests":
		return r.applyGuest(ctx, entry)
	case "followUps":
		return r.applyFollowUp(ctx, entry)
	default:
		kind, ok := domain.ParseListKind(entry.Collection)
		if !ok {
			return fmt.Errorf("unknown journal collection %q", entry.Collection)
		}
		return r.applyList(ctx, kind, entry)
	}
}

func (r *Replayer) applyGuest(ctx context.Context, entry *models.PendingWrite) error {
	switch entry.Op {
	case models.WriteOpInsert, models.WriteOpUpdate:
		var guest models.Guest
		if err := json.Unmarshal([]byte(entry.Payload), &guest); err != nil {
			return fmt.Errorf("decode guest payload: %w", err)
		}
		guest.ID = entry.RecordID
		err := r.store.UpdateGuest(ctx, entry.RecordID, &guest)
		if errors.Is(err, store.ErrNotFound) {
			_, err = r.store.InsertGuest(ctx, &guest)
		}
		return err
	case models.WriteOpDelete:
		err := r.store.DeleteGuest(ctx, entry.RecordID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("unknown journal op %q", entry.Op)
	}
}

func (r *Replayer) applyFollowUp(ctx context.Context, entry *models.PendingWrite) error {
	switch entry.Op {
	case models.WriteOpInsert, models.WriteOpUpdate:
		var fu models.FollowUp
		if err := json.Unmarshal([]byte(entry.Payload), &fu); err != nil {
			return fmt.Errorf("decode follow-up payload: %w", err)
		}
		fu.ID = entry.RecordID
		err := r.store.UpdateFollowUp(ctx, entry.RecordID, &fu)
		if errors.Is(err, store.ErrNotFound) {
			_, err = r.store.InsertFollowUp(ctx, &fu)
		}
		return err
	default:
		return fmt.Errorf("unknown journal op %q", entry.Op)
	}
}

func (r *Replayer) applyList(ctx context.Context, kind domain.ListKind, entry *models.PendingWrite) error {
	switch entry.Op {
	case models.WriteOpInsert:
		return r.store.AddListValue(ctx, kind, entry.RecordID)
	case models.WriteOpDelete:
		err := r.store.RemoveListValue(ctx, kind, entry.RecordID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("unknown journal op %q", entry.Op)
	}
}
