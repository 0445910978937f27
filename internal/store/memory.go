package store

import (
	"context"
	"sync"

	"islatel/internal/domain"
	"islatel/internal/models"

	"github.com/google/uuid"
)

type guestSubscriber struct {
	ctx        context.Context
	onSnapshot func([]models.Guest)
}

type followUpSubscriber struct {
	ctx        context.Context
	onSnapshot func([]models.FollowUp)
}

type listSubscriber struct {
	ctx        context.Context
	onSnapshot func([]string)
}

// Memory is an in-process RecordStore. It backs tests and the "memory" store
// driver, and delivers the same replace-whole-collection snapshot semantics
// as the real store: every mutation re-publishes the full collection.
type Memory struct {
	mu        sync.RWMutex
	guests    []models.Guest
	followUps []models.FollowUp
	lists     map[domain.ListKind][]string

	guestSubs    []guestSubscriber
	followUpSubs []followUpSubscriber
	listSubs     map[domain.ListKind][]listSubscriber

	failing bool
}

func NewMemory() *Memory {
	return &Memory{
		lists:    make(map[domain.ListKind][]string),
		listSubs: make(map[domain.ListKind][]listSubscriber),
	}
}

// SetFailing makes every mutation return ErrUnavailable. Used by tests to
// drive the fallback path.
func (m *Memory) SetFailing(failing bool) {
	m.mu.Lock()
	m.failing = failing
	m.mu.Unlock()
}

func (m *Memory) SubscribeGuests(ctx context.Context, onSnapshot func([]models.Guest), onError func(error)) {
	m.mu.Lock()
	m.guestSubs = append(m.guestSubs, guestSubscriber{ctx: ctx, onSnapshot: onSnapshot})
	snapshot := copyGuests(m.guests)
	m.mu.Unlock()
	onSnapshot(snapshot)
}

func (m *Memory) SubscribeFollowUps(ctx context.Context, onSnapshot func([]models.FollowUp), onError func(error)) {
	m.mu.Lock()
	m.followUpSubs = append(m.followUpSubs, followUpSubscriber{ctx: ctx, onSnapshot: onSnapshot})
	snapshot := copyFollowUps(m.followUps)
	m.mu.Unlock()
	onSnapshot(snapshot)
}

func (m *Memory) SubscribeList(ctx context.Context, kind domain.ListKind, onSnapshot func([]string), onError func(error)) {
	m.mu.Lock()
	m.listSubs[kind] = append(m.listSubs[kind], listSubscriber{ctx: ctx, onSnapshot: onSnapshot})
	snapshot := append([]string(nil), m.lists[kind]...)
	m.mu.Unlock()
	onSnapshot(snapshot)
}

func (m *Memory) InsertGuest(ctx context.Context, guest *models.Guest) (string, error) {
	m.mu.Lock()
	if m.failing {
		m.mu.Unlock()
		return "", ErrUnavailable
	}
	stored := *guest
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	m.guests = append(m.guests, stored)
	snapshot := copyGuests(m.guests)
	subs := append([]guestSubscriber(nil), m.guestSubs...)
	m.mu.Unlock()

	notifyGuests(subs, snapshot)
	return stored.ID, nil
}

func (m *Memory) UpdateGuest(ctx context.Context, id string, guest *models.Guest) error {
	m.mu.Lock()
	if m.failing {
		m.mu.Unlock()
		return ErrUnavailable
	}
	found := false
	for i := range m.guests {
		if m.guests[i].ID == id {
			updated := *guest
			updated.ID = id
			m.guests[i] = updated
			found = true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return ErrNotFound
	}
	snapshot := copyGuests(m.guests)
	subs := append([]guestSubscriber(nil), m.guestSubs...)
	m.mu.Unlock()

	notifyGuests(subs, snapshot)
	return nil
}

func (m *Memory) DeleteGuest(ctx context.Context, id string) error {
	m.mu.Lock()
	if m.failing {
		m.mu.Unlock()
		return ErrUnavailable
	}
	kept := m.guests[:0]
	for _, g := range m.guests {
		if g.ID != id {
			kept = append(kept, g)
		}
	}
	m.guests = kept
	snapshot := copyGuests(m.guests)
	subs := append([]guestSubscriber(nil), m.guestSubs...)
	m.mu.Unlock()

	notifyGuests(subs, snapshot)
	return nil
}

func (m *Memory) InsertFollowUp(ctx context.Context, fu *models.FollowUp) (string, error) {
	m.mu.Lock()
	if m.failing {
		m.mu.Unlock()
		return "", ErrUnavailable
	}
	stored := *fu
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	m.followUps = append(m.followUps, stored)
	snapshot := copyFollowUps(m.followUps)
	subs := append([]followUpSubscriber(nil), m.followUpSubs...)
	m.mu.Unlock()

	notifyFollowUps(subs, snapshot)
	return stored.ID, nil
}

func (m *Memory) UpdateFollowUp(ctx context.Context, id string, fu *models.FollowUp) error {
	m.mu.Lock()
	if m.failing {
		m.mu.Unlock()
		return ErrUnavailable
	}
	found := false
	for i := range m.followUps {
		if m.followUps[i].ID == id {
			updated := *fu
			updated.ID = id
			m.followUps[i] = updated
			found = true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return ErrNotFound
	}
	snapshot := copyFollowUps(m.followUps)
	subs := append([]followUpSubscriber(nil), m.followUpSubs...)
	m.mu.Unlock()

	notifyFollowUps(subs, snapshot)
	return nil
}

func (m *Memory) AddListValue(ctx context.Context, kind domain.ListKind, value string) error {
	m.mu.Lock()
	if m.failing {
		m.mu.Unlock()
		return ErrUnavailable
	}
	m.lists[kind] = append(m.lists[kind], value)
	snapshot := append([]string(nil), m.lists[kind]...)
	subs := append([]listSubscriber(nil), m.listSubs[kind]...)
	m.mu.Unlock()

	notifyLists(subs, snapshot)
	return nil
}

func (m *Memory) RemoveListValue(ctx context.Context, kind domain.ListKind, value string) error {
	m.mu.Lock()
	if m.failing {
		m.mu.Unlock()
		return ErrUnavailable
	}
	kept := m.lists[kind][:0]
	for _, v := range m.lists[kind] {
		if v != value {
			kept = append(kept, v)
		}
	}
	m.lists[kind] = kept
	snapshot := append([]string(nil), m.lists[kind]...)
	subs := append([]listSubscriber(nil), m.listSubs[kind]...)
	m.mu.Unlock()

	notifyLists(subs, snapshot)
	return nil
}

func notifyGuests(subs []guestSubscriber, snapshot []models.Guest) {
	for _, sub := range subs {
		if sub.ctx.Err() != nil {
			continue
		}
		sub.onSnapshot(copyGuests(snapshot))
	}
}

func notifyFollowUps(subs []followUpSubscriber, snapshot []models.FollowUp) {
	for _, sub := range subs {
		if sub.ctx.Err() != nil {
			continue
		}
		sub.onSnapshot(copyFollowUps(snapshot))
	}
}

func notifyLists(subs []listSubscriber, snapshot []string) {
	for _, sub := range subs {
		if sub.ctx.Err() != nil {
			continue
		}
		sub.onSnapshot(append([]string(nil), snapshot...))
	}
}

func copyGuests(in []models.Guest) []models.Guest {
	return append([]models.Guest(nil), in...)
}

func copyFollowUps(in []models.FollowUp) []models.FollowUp {
	return append([]models.FollowUp(nil), in...)
}
