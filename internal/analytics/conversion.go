package analytics

import (
	"fmt"
	"math"
	"time"

	"islatel/internal/models"
)

// AvgConversionDays measures how long booked guests took from first rate
// quote to booking, averaged in whole days.
//
// Per guest: the start instant is sentRateAt, else the earliest Sent Rate
// follow-up, else createdAt; the end instant is bookedAt, else the earliest
// Booked follow-up, else the start itself. The span is rounded up to whole
// days and clamped to zero when the record order is inverted; spans beyond
// ten years are treated as bad data and skipped.
//
// Returns one decimal place; "0.0" when bookings exist but none produced a
// usable span; "N/A" when there are no bookings at all.
func AvgConversionDays(guests []models.Guest, followUps []models.FollowUp) string {
	totalDays := 0
	measured := 0
	booked := 0

	for i := range guests {
		g := &guests[i]
		if g.Status != models.StatusBooked {
			continue
		}
		booked++

		start := conversionStart(g, followUps)
		end := conversionEnd(g, followUps, start)

		days := int(math.Ceil(end.Sub(start).Hours() / 24))
		if days < 0 {
			days = 0
		}
		if days > models.ConversionCapDays {
			continue
		}
		totalDays += days
		measured++
	}

	if booked == 0 {
		return "N/A"
	}
	if measured == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", float64(totalDays)/float64(measured))
}

func conversionStart(g *models.Guest, followUps []models.FollowUp) time.Time {
	if g.SentRateAt != nil {
		return *g.SentRateAt
	}
	if t, ok := earliestOutcome(g.ID, followUps, models.StatusSentRate); ok {
		return t
	}
	return g.CreatedAt
}

func conversionEnd(g *models.Guest, followUps []models.FollowUp, start time.Time) time.Time {
	if g.BookedAt != nil {
		return *g.BookedAt
	}
	if t, ok := earliestOutcome(g.ID, followUps, models.StatusBooked); ok {
		return t
	}
	return start
}

func earliestOutcome(guestID string, followUps []models.FollowUp, status string) (time.Time, bool) {
	var earliest time.Time
	found := false
	for i := range followUps {
		fu := &followUps[i]
		if fu.GuestID != guestID || fu.Status != status || fu.Timestamp.IsZero() {
			continue
		}
		if !found || fu.Timestamp.Before(earliest) {
			earliest = fu.Timestamp
			found = true
		}
	}
	return earliest, found
}
