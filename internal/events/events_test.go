package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusPublishJSON(t *testing.T) {
	bus := NewEventBus()

	var got GuestEventPayload
	bus.Subscribe(EventGuestBooked, func(event *Event) error {
		require.NoError(t, json.Unmarshal(event.Payload, &got))
		assert.False(t, event.CreatedAt.IsZero())
		return nil
	})

	err := bus.PublishJSON(EventGuestBooked, GuestEventPayload{
		GuestID: "g-1", Name: "Jane Doe", Status: "Booked", BookedValue: 5000,
	})
	require.NoError(t, err)

	assert.Equal(t, "g-1", got.GuestID)
	assert.Equal(t, 5000.0, got.BookedValue)
}

func TestEventBusOnlyNotifiesMatchingType(t *testing.T) {
	bus := NewEventBus()

	var created, deleted int
	bus.Subscribe(EventGuestCreated, func(*Event) error { created++; return nil })
	bus.Subscribe(EventGuestDeleted, func(*Event) error { deleted++; return nil })

	require.NoError(t, bus.PublishJSON(EventGuestCreated, GuestEventPayload{GuestID: "g-1"}))
	require.NoError(t, bus.PublishJSON(EventGuestCreated, GuestEventPayload{GuestID: "g-2"}))

	assert.Equal(t, 2, created)
	assert.Equal(t, 0, deleted)
}

func TestNilEventBusIsSafe(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventGuestCreated, nil))
}
