package crm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"islatel/internal/domain"
	"islatel/internal/metrics"
	"islatel/internal/models"
)

var (
	// ErrDuplicateGuest signals a lead with the same name, check-in date and
	// product already exists. Checked at creation only.
	ErrDuplicateGuest = errors.New("guest with the same name, check-in and product already exists")

	ErrGuestNotFound    = errors.New("guest not found")
	ErrFollowUpNotFound = errors.New("follow-up not found")

	// ErrNotLatestFollowUp rejects amendments to anything but the most recent
	// follow-up of a guest. The history is append-only.
	ErrNotLatestFollowUp = errors.New("only the most recent follow-up can be amended")

	// ErrGuestTerminal rejects follow-up resolution on Booked or Cancelled
	// guests; auto-expiry is the only path into Cancelled from outside.
	ErrGuestTerminal = errors.New("guest is already booked or cancelled")
)

// Engine holds the canonical in-memory state of the CRM: the guest and
// follow-up collections plus the configurable enum lists. The store's
// snapshots are the normal source of updates; when the store is unreachable,
// mutations are applied locally and journaled for replay.
type Engine struct {
	store   domain.RecordStore
	journal domain.Journal
	events  domain.EventPublisher
	logger  *zerolog.Logger

	mu        sync.RWMutex
	guests    []models.Guest
	followUps []models.FollowUp
	lists     map[domain.ListKind][]string

	storeDown atomic.Bool

	now func() time.Time
}

func New(store domain.RecordStore, journal domain.Journal, events domain.EventPublisher, logger *zerolog.Logger) *Engine {
	return &Engine{
		store:   store,
		journal: journal,
		events:  events,
		logger:  logger,
		lists: map[domain.ListKind][]string{
			domain.ListProducts: append([]string(nil), models.DefaultProducts...),
			domain.ListChannels: append([]string(nil), models.DefaultChannels...),
			domain.ListStaff:    append([]string(nil), models.DefaultStaff...),
		},
		now: time.Now,
	}
}

// Run subscribes the engine to all store collections. Subscriptions live
// until ctx is cancelled; each snapshot replaces the matching collection
// wholesale. Snapshots may arrive in any order across collections.
func (e *Engine) Run(ctx context.Context) {
	e.store.SubscribeGuests(ctx, e.applyGuestSnapshot, e.onStoreError)
	e.store.SubscribeFollowUps(ctx, e.applyFollowUpSnapshot, e.onStoreError)
	for _, kind := range []domain.ListKind{domain.ListProducts, domain.ListChannels, domain.ListStaff} {
		k := kind
		e.store.SubscribeList(ctx, k, func(values []string) { e.applyListSnapshot(k, values) }, e.onStoreError)
	}
}

func (e *Engine) applyGuestSnapshot(guests []models.Guest) {
	e.mu.Lock()
	e.guests = guests
	e.mu.Unlock()

	e.markStoreUp()
	metrics.IncSnapshot("guests")
}

func (e *Engine) applyFollowUpSnapshot(followUps []models.FollowUp) {
	e.mu.Lock()
	e.followUps = followUps
	e.mu.Unlock()

	e.markStoreUp()
	metrics.IncSnapshot("followUps")
}

// applyListSnapshot replaces one enum list. An empty snapshot keeps the
// seeded defaults so classification never collapses to nothing while the
// store is still populating.
func (e *Engine) applyListSnapshot(kind domain.ListKind, values []string) {
	if len(values) > 0 {
		e.mu.Lock()
		e.lists[kind] = values
		e.mu.Unlock()
	}

	e.markStoreUp()
	metrics.IncSnapshot(kind.String())
}

func (e *Engine) onStoreError(err error) {
	if e.storeDown.CompareAndSwap(false, true) {
		metrics.SetStoreDown(true)
		e.logger.Error().Err(err).Msg("record store connection lost, serving from local state")
	}
}

func (e *Engine) markStoreUp() {
	if e.storeDown.CompareAndSwap(true, false) {
		metrics.SetStoreDown(false)
		e.logger.Info().Msg("record store connection restored")
	}
}

// Degraded reports whether the engine is running on local state because the
// store is unreachable.
func (e *Engine) Degraded() bool {
	return e.storeDown.Load()
}

// Snapshot returns a copy of the current state for the analytics layer.
func (e *Engine) Snapshot() ([]models.Guest, []models.FollowUp) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]models.Guest(nil), e.guests...), append([]models.FollowUp(nil), e.followUps...)
}

// journalWrite records a mutation that could not reach the store. The replay
// worker drains these once the connection recovers.
func (e *Engine) journalWrite(ctx context.Context, collection, op, recordID string, payload interface{}) {
	if e.journal == nil {
		return
	}

	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			e.logger.Error().Err(err).Str("collection", collection).Msg("failed to encode journal payload")
			return
		}
	}

	entry := &models.PendingWrite{
		Collection: collection,
		Op:         op,
		RecordID:   recordID,
		Payload:    string(raw),
	}
	if err := e.journal.Append(ctx, entry); err != nil {
		e.logger.Error().Err(err).Str("collection", collection).Str("record_id", recordID).
			Msg("failed to journal fallback write")
		return
	}

	metrics.IncFallbackWrite(collection)
}

func (e *Engine) publish(eventType string, payload interface{}) {
	if e.events == nil {
		return
	}
	if err := e.events.PublishJSON(eventType, payload); err != nil {
		e.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}
