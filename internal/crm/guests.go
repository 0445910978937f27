package crm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"islatel/internal/events"
	"islatel/internal/metrics"
	"islatel/internal/models"
)

// CreateResult is the outcome of a create attempt. Duplicate rejections are a
// normal result, not a fault: the caller keeps its form state and shows Message.
type CreateResult struct {
	Guest     *models.Guest
	Duplicate bool
	Message   string
}

// Create validates the draft against the duplicate rule, stamps its
// timestamps and persists it. The initial status may already be Booked or
// Sent Rate (walk-ins), in which case the matching timestamp is stamped at
// creation.
func (e *Engine) Create(ctx context.Context, draft models.Guest) (*CreateResult, error) {
	if e.IsDuplicate(draft.Name, draft.CheckIn, draft.Product) {
		metrics.IncDuplicateRejection()
		return &CreateResult{
			Duplicate: true,
			Message: fmt.Sprintf("%s already has a booking for %s on %s",
				draft.Name, draft.Product, draft.CheckIn.Format("2006-01-02")),
		}, nil
	}

	now := e.now()
	guest := draft
	guest.CreatedAt = now
	if guest.Status == "" {
		guest.Status = models.StatusIntent
	}
	switch guest.Status {
	case models.StatusBooked:
		guest.BookedAt = &now
	case models.StatusSentRate:
		guest.SentRateAt = &now
	}

	id, err := e.store.InsertGuest(ctx, &guest)
	if err != nil {
		e.onStoreError(err)
		guest.ID = uuid.New().String()
		e.mu.Lock()
		e.guests = append(e.guests, guest)
		e.mu.Unlock()
		e.journalWrite(ctx, "guests", models.WriteOpInsert, guest.ID, guest)
	} else {
		guest.ID = id
		metrics.IncMutation("guests", models.WriteOpInsert)
	}

	e.publish(events.EventGuestCreated, guestPayload(&guest))
	return &CreateResult{Guest: &guest}, nil
}

// Update persists the full record, last-write-wins. The booked/sent-rate
// timestamps are stamped only on the first transition into the matching
// status and never change afterwards.
func (e *Engine) Update(ctx context.Context, guest models.Guest) (*models.Guest, error) {
	prev, ok := e.Get(guest.ID)
	if !ok {
		return nil, ErrGuestNotFound
	}

	now := e.now()
	guest.CreatedAt = prev.CreatedAt
	if guest.BookedAt == nil {
		guest.BookedAt = prev.BookedAt
	}
	if guest.SentRateAt == nil {
		guest.SentRateAt = prev.SentRateAt
	}
	if guest.Status != prev.Status {
		switch guest.Status {
		case models.StatusBooked:
			if guest.BookedAt == nil {
				guest.BookedAt = &now
			}
		case models.StatusSentRate:
			if guest.SentRateAt == nil {
				guest.SentRateAt = &now
			}
		}
	}

	if err := e.store.UpdateGuest(ctx, guest.ID, &guest); err != nil {
		e.onStoreError(err)
		e.replaceGuestLocal(guest)
		e.journalWrite(ctx, "guests", models.WriteOpUpdate, guest.ID, guest)
	} else {
		metrics.IncMutation("guests", models.WriteOpUpdate)
	}

	e.publish(events.EventGuestUpdated, guestPayload(&guest))
	if guest.Status == models.StatusBooked && prev.Status != models.StatusBooked {
		e.publish(events.EventGuestBooked, guestPayload(&guest))
	}
	return &guest, nil
}

// Delete removes the guest. Its follow-ups stay in the log, reachable only
// by the now-absent guest id.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if _, ok := e.Get(id); !ok {
		return ErrGuestNotFound
	}

	if err := e.store.DeleteGuest(ctx, id); err != nil {
		e.onStoreError(err)
		e.removeGuestLocal(id)
		e.journalWrite(ctx, "guests", models.WriteOpDelete, id, nil)
	} else {
		metrics.IncMutation("guests", models.WriteOpDelete)
	}

	e.publish(events.EventGuestDeleted, events.GuestEventPayload{GuestID: id})
	return nil
}

// AutoExpire cancels every lead whose check-in date has passed without a
// booking. Date-only comparison: a check-in today is not yet expired. The
// sweep is idempotent; terminal guests are never touched.
func (e *Engine) AutoExpire(ctx context.Context, now time.Time) []models.Guest {
	today := models.DateOnly(now)

	e.mu.RLock()
	var stale []models.Guest
	for _, g := range e.guests {
		if g.Terminal() {
			continue
		}
		if models.DateOnly(g.CheckIn).Before(today) {
			stale = append(stale, g)
		}
	}
	e.mu.RUnlock()

	var expired []models.Guest
	for _, g := range stale {
		g.Status = models.StatusCancelled
		updated, err := e.Update(ctx, g)
		if err != nil {
			e.logger.Error().Err(err).Str("guest_id", g.ID).Msg("failed to auto-cancel expired lead")
			continue
		}
		expired = append(expired, *updated)
		e.publish(events.EventGuestExpired, guestPayload(updated))
	}

	if len(expired) > 0 {
		metrics.AddExpired(len(expired))
		e.logger.Info().Int("count", len(expired)).Msg("auto-cancelled expired leads")
	}
	return expired
}

// IsDuplicate reports whether a lead with the same case-insensitive name,
// check-in date and product already exists.
func (e *Engine) IsDuplicate(name string, checkIn time.Time, product string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := range e.guests {
		if e.guests[i].SameLead(name, checkIn, product) {
			return true
		}
	}
	return false
}

// Get returns a copy of the guest with the given id.
func (e *Engine) Get(id string) (models.Guest, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := range e.guests {
		if e.guests[i].ID == id {
			return e.guests[i], true
		}
	}
	return models.Guest{}, false
}

// Pending lists guests still in the follow-up pipeline, soonest check-in first.
func (e *Engine) Pending() []models.Guest {
	e.mu.RLock()
	var pending []models.Guest
	for _, g := range e.guests {
		if !g.Terminal() {
			pending = append(pending, g)
		}
	}
	e.mu.RUnlock()

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CheckIn.Before(pending[j].CheckIn)
	})
	return pending
}

// GuestFilter narrows the guest listing. Query matches name, email, phone and
// the social-contact name by substring; the other fields match exactly.
type GuestFilter struct {
	Query   string
	Status  string
	Product string
	Channel string
	Staff   string
}

func (f GuestFilter) matches(g *models.Guest) bool {
	if f.Status != "" && g.Status != f.Status {
		return false
	}
	if f.Product != "" && g.Product != f.Product {
		return false
	}
	if f.Channel != "" && g.Channel != f.Channel {
		return false
	}
	if f.Staff != "" && g.Staff != f.Staff {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(g.Name), q) &&
			!strings.Contains(strings.ToLower(g.Email), q) &&
			!strings.Contains(g.Phone, f.Query) &&
			!strings.Contains(strings.ToLower(g.FBName), q) {
			return false
		}
	}
	return true
}

// ListGuests returns guests matching the filter, newest first.
func (e *Engine) ListGuests(filter GuestFilter) []models.Guest {
	e.mu.RLock()
	var out []models.Guest
	for i := range e.guests {
		if filter.matches(&e.guests[i]) {
			out = append(out, e.guests[i])
		}
	}
	e.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (e *Engine) replaceGuestLocal(guest models.Guest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.guests {
		if e.guests[i].ID == guest.ID {
			e.guests[i] = guest
			return
		}
	}
	e.guests = append(e.guests, guest)
}

func (e *Engine) removeGuestLocal(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.guests {
		if e.guests[i].ID == id {
			e.guests = append(e.guests[:i], e.guests[i+1:]...)
			return
		}
	}
}

func guestPayload(g *models.Guest) events.GuestEventPayload {
	return events.GuestEventPayload{
		GuestID:       g.ID,
		Name:          g.Name,
		Product:       g.Product,
		Channel:       g.Channel,
		Staff:         g.Staff,
		Status:        g.Status,
		BookedValue:   g.BookedValue,
		CreditedStaff: g.CreditedStaff,
		CheckIn:       g.CheckIn,
	}
}
