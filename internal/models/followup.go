package models

import "time"

// FollowUp is one logged contact attempt tied to a guest. The collection is an
// append-only log; only the most recent entry for a guest may be amended.
type FollowUp struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	GuestID   string    `json:"guest_id" bson:"guest_id"`
	Staff     string    `json:"staff" bson:"staff"`
	Method    string    `json:"method" bson:"method"`
	Status    string    `json:"status" bson:"status"`
	Date      time.Time `json:"date" bson:"date"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// GuestPatch is the guest-side effect of resolving a follow-up.
type GuestPatch struct {
	Status        string
	BookedValue   float64
	CreditedStaff string
}
