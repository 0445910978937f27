package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"islatel/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func booked(name string, value float64, bookedAt time.Time) models.Guest {
	return models.Guest{
		Name:        name,
		Status:      models.StatusBooked,
		BookedValue: value,
		CreatedAt:   bookedAt.AddDate(0, 0, -3),
		BookedAt:    ptr(bookedAt),
	}
}

func TestDailyRevenue(t *testing.T) {
	day := date(2024, 3, 10)
	guests := []models.Guest{
		booked("A", 1000, day),
		booked("B", 500, day.Add(15*time.Hour)), // same day, later hour
		booked("C", 900, day.AddDate(0, 0, 1)),
		{Name: "D", Status: models.StatusSentRate, BookedValue: 300, SentRateAt: ptr(day)},
		{Name: "E", Status: models.StatusCancelled, BookedValue: 9999, BookedAt: ptr(day)},
		{Name: "F", Status: models.StatusIntent, BookedValue: 100, CreatedAt: day},
	}

	assert.Equal(t, 1800.0, DailyRevenue(guests, day), "booked and sent-rate count, terminal/intent do not")
	assert.Equal(t, 900.0, DailyRevenue(guests, day.AddDate(0, 0, 1)))
	assert.Equal(t, 0.0, DailyRevenue(nil, day))
}

func TestRevenueDateFallbackOrder(t *testing.T) {
	day := date(2024, 3, 10)
	g := models.Guest{Status: models.StatusBooked, BookedValue: 100, CreatedAt: day}
	assert.Equal(t, 100.0, DailyRevenue([]models.Guest{g}, day), "createdAt is the last fallback")

	g.SentRateAt = ptr(day.AddDate(0, 0, 1))
	assert.Equal(t, 0.0, DailyRevenue([]models.Guest{g}, day))
	assert.Equal(t, 100.0, DailyRevenue([]models.Guest{g}, day.AddDate(0, 0, 1)))

	g.BookedAt = ptr(day.AddDate(0, 0, 2))
	assert.Equal(t, 100.0, DailyRevenue([]models.Guest{g}, day.AddDate(0, 0, 2)), "bookedAt wins over sentRateAt")
}

func TestMonthlyMetrics(t *testing.T) {
	guests := []models.Guest{
		{Name: "lead1", Status: models.StatusIntent, CreatedAt: date(2024, 3, 5)},
		{Name: "lead2", Status: models.StatusCancelled, CreatedAt: date(2024, 3, 20)},
		booked("win", 2500, date(2024, 3, 15)),
		booked("lastMonth", 800, date(2024, 2, 28)),
	}
	// "win" was created on 3/12, inside the month as well.
	guests[2].CreatedAt = date(2024, 3, 12)

	m := Monthly(guests, 2024, time.March)
	assert.Equal(t, 3, m.Leads)
	assert.Equal(t, 1, m.Booked)
	assert.Equal(t, 2500.0, m.Revenue)
	assert.InDelta(t, 33.3, m.ClosingRate, 0.001)
}

func TestClosingRateBounds(t *testing.T) {
	assert.Equal(t, 0.0, ClosingRate(0, 0), "no leads means zero, not a division error")
	assert.Equal(t, 0.0, ClosingRate(0, 10))
	assert.Equal(t, 100.0, ClosingRate(10, 10))
	assert.Equal(t, 50.0, ClosingRate(5, 10))

	for leads := 0; leads <= 20; leads++ {
		for b := 0; b <= leads; b++ {
			rate := ClosingRate(b, leads)
			assert.GreaterOrEqual(t, rate, 0.0)
			assert.LessOrEqual(t, rate, 100.0)
		}
	}
}

func TestStaffLeaderboard(t *testing.T) {
	guests := []models.Guest{
		{Staff: "Sarah", Status: models.StatusIntent, CreatedAt: date(2024, 6, 1)},
		{Staff: "Sarah", Status: models.StatusIntent, CreatedAt: date(2024, 6, 2)},
		{Staff: "Sarah", Status: models.StatusBooked, BookedValue: 1000, CreatedAt: date(2024, 6, 3), BookedAt: ptr(date(2024, 6, 10))},
		{Staff: "Mike", Status: models.StatusBooked, BookedValue: 4000, CreatedAt: date(2024, 6, 4), BookedAt: ptr(date(2024, 6, 12))},
		// Booked by Sarah but credited to Anna via a follow-up.
		{Staff: "Sarah", CreditedStaff: "Anna", Status: models.StatusBooked, BookedValue: 2000, CreatedAt: date(2024, 5, 20), BookedAt: ptr(date(2024, 6, 15))},
		{Staff: "Tom", Status: models.StatusIntent, CreatedAt: date(2024, 7, 1)}, // outside month
	}

	board := StaffLeaderboard(guests, 2024, time.June)

	byName := make(map[string]StaffStats)
	for _, s := range board.Stats {
		byName[s.Name] = s
	}
	assert.Equal(t, 3, byName["Sarah"].Leads)
	assert.Equal(t, 1, byName["Sarah"].Booked)
	assert.Equal(t, 1000.0, byName["Sarah"].Revenue)
	assert.Equal(t, 4000.0, byName["Mike"].Revenue)
	assert.Equal(t, 2000.0, byName["Anna"].Revenue)
	assert.Zero(t, byName["Anna"].Leads)

	assert.Equal(t, "Mike", board.TopPerformer)
	assert.Equal(t, "Mike", board.BestCloser, "1/1 beats Sarah's 1/3")
	assert.Equal(t, "Sarah", board.TopLeadGetter)
}

func TestStaffLeaderboardTiesGoToFirstEncountered(t *testing.T) {
	guests := []models.Guest{
		{Staff: "Anna", Status: models.StatusIntent, CreatedAt: date(2024, 6, 1)},
		{Staff: "Tom", Status: models.StatusIntent, CreatedAt: date(2024, 6, 2)},
	}
	board := StaffLeaderboard(guests, 2024, time.June)
	assert.Equal(t, "Anna", board.TopLeadGetter)
}

func TestForecastBucketsByCheckIn(t *testing.T) {
	now := date(2024, 6, 15)
	guests := []models.Guest{
		{CheckIn: date(2024, 6, 20), Status: models.StatusIntent, CreatedAt: date(2024, 1, 1)},
		{CheckIn: date(2024, 6, 25), Status: models.StatusBooked, BookedValue: 3000, CreatedAt: date(2024, 1, 1)},
		{CheckIn: date(2024, 7, 2), Status: models.StatusBooked, BookedValue: 1500, CreatedAt: date(2024, 1, 1)},
		{CheckIn: date(2024, 9, 1), Status: models.StatusIntent, CreatedAt: date(2024, 1, 1)}, // beyond window
	}

	buckets := Forecast(guests, now, 3)
	assert.Len(t, buckets, 3)

	assert.Equal(t, "current month", buckets[0].Label)
	assert.Equal(t, 2, buckets[0].Leads)
	assert.Equal(t, 1, buckets[0].Booked)
	assert.Equal(t, 3000.0, buckets[0].Revenue)
	assert.Equal(t, 50.0, buckets[0].ClosingRate)

	assert.Equal(t, "forecast", buckets[1].Label)
	assert.Equal(t, time.July, buckets[1].Month.Month())
	assert.Equal(t, 1, buckets[1].Leads)
	assert.Equal(t, 1500.0, buckets[1].Revenue)

	assert.Equal(t, time.August, buckets[2].Month.Month())
	assert.Zero(t, buckets[2].Leads)
	assert.Zero(t, buckets[2].ClosingRate)
}

func TestReportBreakdowns(t *testing.T) {
	channels := []string{"Messenger", "TikTok", "OTA"}
	products := []string{"Stays", "ICE"}
	staff := []string{"Sarah", "Mike"}

	guests := []models.Guest{
		{Channel: "Messenger", Product: "Stays", Staff: "Sarah", Status: models.StatusBooked, BookedValue: 1000, BookedAt: ptr(date(2024, 6, 1)), SentRateAt: ptr(date(2024, 6, 1)), CreatedAt: date(2024, 6, 1)},
		{Channel: "TikTok", Product: "Stays", Staff: "Mike", Status: models.StatusBooked, BookedValue: 5000, BookedAt: ptr(date(2024, 6, 2)), SentRateAt: ptr(date(2024, 6, 1)), CreatedAt: date(2024, 6, 1)},
		{Channel: "TikTok", Product: "ICE", Staff: "Mike", Status: models.StatusIntent, CreatedAt: date(2024, 6, 3)},
		// Channel removed from the configured list but still on the record.
		{Channel: "Fax", Product: "Stays", Staff: "Sarah", Status: models.StatusIntent, CreatedAt: date(2024, 6, 4)},
	}

	s := Report(guests, nil, channels, products, staff)

	assert.Equal(t, 6000.0, s.TotalRevenue)
	assert.Equal(t, 2, s.TotalBookings)
	assert.Equal(t, 2, s.StatusBreakdown[models.StatusBooked])
	assert.Equal(t, 2, s.StatusBreakdown[models.StatusIntent])

	// OTA has no leads and is omitted; highest revenue first.
	names := make([]string, 0, len(s.ChannelPerformance))
	for _, c := range s.ChannelPerformance {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"TikTok", "Messenger", "Fax"}, names)
	assert.Equal(t, 50.0, s.ChannelPerformance[0].Rate)

	assert.Len(t, s.ProductPerformance, 2)
	assert.Equal(t, "Stays", s.ProductPerformance[0].Name)
	assert.Equal(t, 6000.0, s.ProductPerformance[0].Revenue)
}

func TestRevenueCountsSentRateValues(t *testing.T) {
	guests := []models.Guest{
		{Channel: "Messenger", Product: "Stays", Staff: "Sarah", Status: models.StatusSentRate,
			BookedValue: 700, SentRateAt: ptr(date(2024, 6, 5)), CreatedAt: date(2024, 6, 1)},
	}

	s := Report(guests, nil, []string{"Messenger"}, []string{"Stays"}, []string{"Sarah"})
	assert.Equal(t, 700.0, s.TotalRevenue, "a quoted rate already counts as revenue")
	assert.Zero(t, s.TotalBookings, "but not as a booking")
	assert.Equal(t, 700.0, s.ChannelPerformance[0].Revenue)
	assert.Zero(t, s.ChannelPerformance[0].Bookings)
	assert.Equal(t, 700.0, s.ProductPerformance[0].Revenue)
	assert.Equal(t, 700.0, s.StaffPerformance[0].Revenue)

	board := StaffLeaderboard(guests, 2024, time.June)
	byName := make(map[string]StaffStats)
	for _, st := range board.Stats {
		byName[st.Name] = st
	}
	assert.Equal(t, 700.0, byName["Sarah"].Revenue, "sent-rate value goes to the assigned staff")
	assert.Zero(t, byName["Sarah"].Booked)
}

func TestAvgConversionDays(t *testing.T) {
	t.Run("no bookings", func(t *testing.T) {
		guests := []models.Guest{{Status: models.StatusIntent, CreatedAt: date(2024, 1, 1)}}
		assert.Equal(t, "N/A", AvgConversionDays(guests, nil))
	})

	t.Run("simple spans", func(t *testing.T) {
		guests := []models.Guest{
			{Status: models.StatusBooked, SentRateAt: ptr(date(2024, 1, 1)), BookedAt: ptr(date(2024, 1, 4))},
			{Status: models.StatusBooked, SentRateAt: ptr(date(2024, 1, 1)), BookedAt: ptr(date(2024, 1, 2))},
		}
		assert.Equal(t, "2.0", AvgConversionDays(guests, nil))
	})

	t.Run("partial day rounds up", func(t *testing.T) {
		start := date(2024, 1, 1)
		guests := []models.Guest{
			{Status: models.StatusBooked, SentRateAt: ptr(start), BookedAt: ptr(start.Add(30 * time.Hour))},
		}
		assert.Equal(t, "2.0", AvgConversionDays(guests, nil))
	})

	t.Run("inverted timestamps clamp to zero", func(t *testing.T) {
		guests := []models.Guest{
			{Status: models.StatusBooked, SentRateAt: ptr(date(2024, 1, 10)), BookedAt: ptr(date(2024, 1, 5))},
		}
		assert.Equal(t, "0.0", AvgConversionDays(guests, nil))
	})

	t.Run("absurd spans are skipped", func(t *testing.T) {
		guests := []models.Guest{
			{Status: models.StatusBooked, SentRateAt: ptr(date(1990, 1, 1)), BookedAt: ptr(date(2024, 1, 1))},
		}
		assert.Equal(t, "0.0", AvgConversionDays(guests, nil), "bookings exist but none are measurable")

		guests = append(guests, models.Guest{
			Status: models.StatusBooked, SentRateAt: ptr(date(2024, 1, 1)), BookedAt: ptr(date(2024, 1, 5)),
		})
		assert.Equal(t, "4.0", AvgConversionDays(guests, nil), "bad record does not drag the average")
	})

	t.Run("follow-up timestamps fill missing stamps", func(t *testing.T) {
		guests := []models.Guest{
			{ID: "g1", Status: models.StatusBooked, CreatedAt: date(2024, 1, 1)},
		}
		followUps := []models.FollowUp{
			{GuestID: "g1", Status: models.StatusSentRate, Timestamp: date(2024, 1, 3)},
			{GuestID: "g1", Status: models.StatusSentRate, Timestamp: date(2024, 1, 2)},
			{GuestID: "g1", Status: models.StatusBooked, Timestamp: date(2024, 1, 7)},
			{GuestID: "g2", Status: models.StatusBooked, Timestamp: date(2024, 1, 20)},
		}
		assert.Equal(t, "5.0", AvgConversionDays(guests, followUps), "earliest sent-rate follow-up to earliest booked follow-up")
	})

	t.Run("booking with no measurable end is zero days", func(t *testing.T) {
		guests := []models.Guest{
			{ID: "g1", Status: models.StatusBooked, CreatedAt: date(2024, 1, 1)},
		}
		assert.Equal(t, "0.0", AvgConversionDays(guests, nil))
	})

	t.Run("never negative", func(t *testing.T) {
		guests := []models.Guest{
			{Status: models.StatusBooked, SentRateAt: ptr(date(2024, 5, 1)), BookedAt: ptr(date(2024, 4, 1))},
			{Status: models.StatusBooked, SentRateAt: ptr(date(2024, 1, 1)), BookedAt: ptr(date(2024, 1, 3))},
		}
		got := AvgConversionDays(guests, nil)
		assert.Equal(t, "1.0", got, "negative span contributes zero, not a negative number")
	})
}
