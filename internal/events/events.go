package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventGuestCreated    = "guest_created"
	EventGuestUpdated    = "guest_updated"
	EventGuestDeleted    = "guest_deleted"
	EventGuestBooked     = "guest_booked"
	EventGuestExpired    = "guest_expired"
	EventFollowUpAdded   = "followup_added"
	EventFollowUpAmended = "followup_amended"
)

// GuestEventPayload is the minimal guest snapshot carried by guest events.
type GuestEventPayload struct {
	GuestID       string    `json:"guest_id"`
	Name          string    `json:"name"`
	Product       string    `json:"product"`
	Channel       string    `json:"channel"`
	Staff         string    `json:"staff"`
	Status        string    `json:"status"`
	BookedValue   float64   `json:"booked_value,omitempty"`
	CreditedStaff string    `json:"credited_staff,omitempty"`
	CheckIn       time.Time `json:"check_in"`
}

// FollowUpEventPayload describes a follow-up mutation for event consumers.
type FollowUpEventPayload struct {
	FollowUpID string `json:"followup_id"`
	GuestID    string `json:"guest_id"`
	Staff      string `json:"staff"`
	Method     string `json:"method"`
	Status     string `json:"status"`
	Ordinal    int    `json:"ordinal"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
