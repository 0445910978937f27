package models

import (
	"strings"
	"time"
)

// Guest is a lead or booking record tracked through the sales funnel.
type Guest struct {
	ID            string     `json:"id" bson:"_id,omitempty"`
	Name          string     `json:"name" bson:"name"`
	Email         string     `json:"email" bson:"email"`
	Phone         string     `json:"phone" bson:"phone"`
	FBName        string     `json:"fb_name" bson:"fb_name"`
	CheckIn       time.Time  `json:"check_in" bson:"check_in"`
	CheckOut      time.Time  `json:"check_out" bson:"check_out"`
	Product       string     `json:"product" bson:"product"`
	Channel       string     `json:"channel" bson:"channel"`
	Staff         string     `json:"staff" bson:"staff"`
	Status        string     `json:"status" bson:"status"`
	BookedValue   float64    `json:"booked_value" bson:"booked_value"`
	CreditedStaff string     `json:"credited_staff,omitempty" bson:"credited_staff,omitempty"`
	Notes         string     `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
	BookedAt      *time.Time `json:"booked_at,omitempty" bson:"booked_at,omitempty"`
	SentRateAt    *time.Time `json:"sent_rate_at,omitempty" bson:"sent_rate_at,omitempty"`
}

// Terminal reports whether the guest left the follow-up pipeline.
func (g *Guest) Terminal() bool {
	return g.Status == StatusBooked || g.Status == StatusCancelled
}

// SameLead reports whether two guests describe the same lead:
// case-insensitive name, same check-in date, same product.
func (g *Guest) SameLead(name string, checkIn time.Time, product string) bool {
	return strings.EqualFold(g.Name, name) &&
		SameDay(g.CheckIn, checkIn) &&
		g.Product == product
}

// RevenueDate is the date a guest's booked value is attributed to:
// bookedAt, falling back to sentRateAt, falling back to createdAt.
func (g *Guest) RevenueDate() time.Time {
	if g.BookedAt != nil {
		return *g.BookedAt
	}
	if g.SentRateAt != nil {
		return *g.SentRateAt
	}
	return g.CreatedAt
}

// SameDay compares two instants by calendar date only.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateOnly truncates an instant to midnight of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
