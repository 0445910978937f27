package crm

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"islatel/internal/events"
	"islatel/internal/metrics"
	"islatel/internal/models"
)

// FollowUpDraft is the staff-entered part of a follow-up. BookedValue is
// consulted only when the outcome is Booked.
type FollowUpDraft struct {
	Staff       string
	Method      string
	Status      string
	BookedValue float64
}

// AddFollowUp appends a contact attempt for a guest, stamping today's date
// and the current instant. Returns the stored entry plus its ordinal number
// (first follow-up is 1).
func (e *Engine) AddFollowUp(ctx context.Context, guestID string, draft FollowUpDraft) (*models.FollowUp, int, error) {
	if _, ok := e.Get(guestID); !ok {
		return nil, 0, ErrGuestNotFound
	}

	now := e.now()
	fu := models.FollowUp{
		GuestID:   guestID,
		Staff:     draft.Staff,
		Method:    draft.Method,
		Status:    draft.Status,
		Date:      models.DateOnly(now),
		Timestamp: now,
	}
	ordinal := e.CountFor(guestID) + 1

	id, err := e.store.InsertFollowUp(ctx, &fu)
	if err != nil {
		e.onStoreError(err)
		fu.ID = uuid.New().String()
		e.mu.Lock()
		e.followUps = append(e.followUps, fu)
		e.mu.Unlock()
		e.journalWrite(ctx, "followUps", models.WriteOpInsert, fu.ID, fu)
	} else {
		fu.ID = id
		metrics.IncMutation("followUps", models.WriteOpInsert)
	}

	e.publish(events.EventFollowUpAdded, followUpPayload(&fu, ordinal))
	return &fu, ordinal, nil
}

// Resolve logs a follow-up and reflects its outcome onto the guest: Done
// keeps the current status, Booked also records the booked value and credits
// the follow-up's staff. Terminal guests cannot be resolved further.
func (e *Engine) Resolve(ctx context.Context, guestID string, draft FollowUpDraft) (*models.FollowUp, *models.Guest, error) {
	guest, ok := e.Get(guestID)
	if !ok {
		return nil, nil, ErrGuestNotFound
	}
	if guest.Terminal() {
		return nil, nil, ErrGuestTerminal
	}

	fu, _, err := e.AddFollowUp(ctx, guestID, draft)
	if err != nil {
		return nil, nil, err
	}

	patch := ResolvePatch(&guest, draft)
	guest.Status = patch.Status
	if patch.Status == models.StatusBooked {
		guest.BookedValue = patch.BookedValue
		guest.CreditedStaff = patch.CreditedStaff
	}

	updated, err := e.Update(ctx, guest)
	if err != nil {
		return fu, nil, err
	}
	return fu, updated, nil
}

// ResolvePatch maps a follow-up outcome to the guest-side change. Pure.
func ResolvePatch(guest *models.Guest, draft FollowUpDraft) models.GuestPatch {
	patch := models.GuestPatch{
		Status:        guest.Status,
		BookedValue:   guest.BookedValue,
		CreditedStaff: guest.CreditedStaff,
	}
	switch draft.Status {
	case models.StatusDone:
		// Contact made, no outcome change.
	case models.StatusBooked:
		patch.Status = models.StatusBooked
		patch.BookedValue = draft.BookedValue
		patch.CreditedStaff = draft.Staff
	case models.StatusCancelled:
		patch.Status = models.StatusCancelled
	case models.StatusSentRate:
		patch.Status = models.StatusSentRate
	}
	return patch
}

// UpdateLastFollowUp amends a follow-up in place. Only the guest's most
// recent entry may be corrected; history stays immutable. If the amendment
// changes the outcome, it is re-applied to the guest.
func (e *Engine) UpdateLastFollowUp(ctx context.Context, followUpID string, draft FollowUpDraft) (*models.FollowUp, error) {
	e.mu.RLock()
	var fu models.FollowUp
	found := false
	for i := range e.followUps {
		if e.followUps[i].ID == followUpID {
			fu = e.followUps[i]
			found = true
			break
		}
	}
	if found {
		for i := range e.followUps {
			if e.followUps[i].GuestID == fu.GuestID && e.followUps[i].Timestamp.After(fu.Timestamp) {
				e.mu.RUnlock()
				return nil, ErrNotLatestFollowUp
			}
		}
	}
	e.mu.RUnlock()
	if !found {
		return nil, ErrFollowUpNotFound
	}

	outcomeChanged := fu.Status != draft.Status
	fu.Staff = draft.Staff
	fu.Method = draft.Method
	fu.Status = draft.Status

	if err := e.store.UpdateFollowUp(ctx, fu.ID, &fu); err != nil {
		e.onStoreError(err)
		e.replaceFollowUpLocal(fu)
		e.journalWrite(ctx, "followUps", models.WriteOpUpdate, fu.ID, fu)
	} else {
		metrics.IncMutation("followUps", models.WriteOpUpdate)
	}

	e.publish(events.EventFollowUpAmended, followUpPayload(&fu, e.CountFor(fu.GuestID)))

	if outcomeChanged {
		if guest, ok := e.Get(fu.GuestID); ok && !guest.Terminal() {
			patch := ResolvePatch(&guest, draft)
			guest.Status = patch.Status
			if patch.Status == models.StatusBooked {
				guest.BookedValue = patch.BookedValue
				guest.CreditedStaff = patch.CreditedStaff
			}
			if _, err := e.Update(ctx, guest); err != nil {
				return &fu, err
			}
		}
	}
	return &fu, nil
}

// CountFor returns how many follow-ups are attached to a guest.
func (e *Engine) CountFor(guestID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for i := range e.followUps {
		if e.followUps[i].GuestID == guestID {
			n++
		}
	}
	return n
}

// ListFor returns a guest's follow-up history, oldest first.
func (e *Engine) ListFor(guestID string) []models.FollowUp {
	e.mu.RLock()
	var out []models.FollowUp
	for i := range e.followUps {
		if e.followUps[i].GuestID == guestID {
			out = append(out, e.followUps[i])
		}
	}
	e.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func (e *Engine) replaceFollowUpLocal(fu models.FollowUp) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.followUps {
		if e.followUps[i].ID == fu.ID {
			e.followUps[i] = fu
			return
		}
	}
	e.followUps = append(e.followUps, fu)
}

func followUpPayload(fu *models.FollowUp, ordinal int) events.FollowUpEventPayload {
	return events.FollowUpEventPayload{
		FollowUpID: fu.ID,
		GuestID:    fu.GuestID,
		Staff:      fu.Staff,
		Method:     fu.Method,
		Status:     fu.Status,
		Ordinal:    ordinal,
	}
}
