// Package analytics derives dashboard and report statistics from guest and
// follow-up snapshots. Everything here is a pure function: no state, no side
// effects, recomputed on demand. Malformed records degrade to zero values
// rather than failing, so dashboards keep rendering on partial data.
package analytics

import (
	"math"
	"sort"
	"time"

	"islatel/internal/models"
)

// revenueCounts reports whether a guest's booked value counts toward revenue.
func revenueCounts(g *models.Guest) bool {
	return g.Status == models.StatusBooked || g.Status == models.StatusSentRate
}

// DailyRevenue sums booked values attributed to one calendar day. Guests in
// Booked or Sent Rate count; the attribution date is the revenue date
// (bookedAt, else sentRateAt, else createdAt).
func DailyRevenue(guests []models.Guest, day time.Time) float64 {
	total := 0.0
	for i := range guests {
		g := &guests[i]
		if revenueCounts(g) && models.SameDay(g.RevenueDate(), day) {
			total += g.BookedValue
		}
	}
	return total
}

// RevenueToday and RevenueYesterday are the dashboard's headline cards.
func RevenueToday(guests []models.Guest, now time.Time) float64 {
	return DailyRevenue(guests, now)
}

func RevenueYesterday(guests []models.Guest, now time.Time) float64 {
	return DailyRevenue(guests, now.AddDate(0, 0, -1))
}

// BookingsToday counts guests booked with today's revenue date.
func BookingsToday(guests []models.Guest, now time.Time) int {
	n := 0
	for i := range guests {
		g := &guests[i]
		if g.Status == models.StatusBooked && models.SameDay(g.RevenueDate(), now) {
			n++
		}
	}
	return n
}

// MonthlyMetrics is one month's funnel summary.
type MonthlyMetrics struct {
	Revenue     float64 `json:"revenue"`
	Booked      int     `json:"booked"`
	Leads       int     `json:"leads"`
	ClosingRate float64 `json:"closing_rate"`
}

// Monthly computes the metrics for one calendar month: leads by creation
// month, bookings and revenue by revenue-date month.
func Monthly(guests []models.Guest, year int, month time.Month) MonthlyMetrics {
	var m MonthlyMetrics
	for i := range guests {
		g := &guests[i]
		if inMonth(g.CreatedAt, year, month) {
			m.Leads++
		}
		if !inMonth(g.RevenueDate(), year, month) {
			continue
		}
		if g.Status == models.StatusBooked {
			m.Booked++
		}
		if revenueCounts(g) {
			m.Revenue += g.BookedValue
		}
	}
	m.ClosingRate = ClosingRate(m.Booked, m.Leads)
	return m
}

// ClosingRate is booked/leads as a percentage, one decimal, 0 when there are
// no leads.
func ClosingRate(booked, leads int) float64 {
	if leads == 0 {
		return 0
	}
	return round1(float64(booked) / float64(leads) * 100)
}

// StaffStats is one staff member's monthly tally.
type StaffStats struct {
	Name    string  `json:"name"`
	Leads   int     `json:"leads"`
	Booked  int     `json:"booked"`
	Revenue float64 `json:"revenue"`
}

// Leaderboard is the monthly staff ranking with its derived headline names.
type Leaderboard struct {
	Stats         []StaffStats `json:"stats"`
	TopPerformer  string       `json:"top_performer"`
	BestCloser    string       `json:"best_closer"`
	TopLeadGetter string       `json:"top_lead_getter"`
}

// StaffLeaderboard tallies leads by assigned staff and creation month, and
// bookings and revenue by revenue-date month. A booking's revenue goes to the
// credited staff (the staff who closed it, falling back to the assigned
// staff); a sent rate's value goes to the assigned staff. Ties on the derived
// headliners go to the staff member encountered first.
func StaffLeaderboard(guests []models.Guest, year int, month time.Month) Leaderboard {
	index := make(map[string]int)
	var stats []StaffStats

	row := func(name string) *StaffStats {
		if name == "" {
			name = "Unassigned"
		}
		i, ok := index[name]
		if !ok {
			i = len(stats)
			index[name] = i
			stats = append(stats, StaffStats{Name: name})
		}
		return &stats[i]
	}

	for i := range guests {
		g := &guests[i]
		if inMonth(g.CreatedAt, year, month) {
			row(g.Staff).Leads++
		}
		if !inMonth(g.RevenueDate(), year, month) {
			continue
		}
		switch g.Status {
		case models.StatusBooked:
			credited := g.CreditedStaff
			if credited == "" {
				credited = g.Staff
			}
			r := row(credited)
			r.Booked++
			r.Revenue += g.BookedValue
		case models.StatusSentRate:
			row(g.Staff).Revenue += g.BookedValue
		}
	}

	board := Leaderboard{Stats: stats}
	bestRevenue, bestRatio, bestLeads := -1.0, -1.0, -1
	for _, s := range stats {
		if s.Revenue > bestRevenue {
			bestRevenue = s.Revenue
			board.TopPerformer = s.Name
		}
		if s.Leads > bestLeads {
			bestLeads = s.Leads
			board.TopLeadGetter = s.Name
		}
		if s.Leads > 0 {
			ratio := float64(s.Booked) / float64(s.Leads)
			if ratio > bestRatio {
				bestRatio = ratio
				board.BestCloser = s.Name
			}
		}
	}
	return board
}

// ForecastBucket is one check-in month of the near-future outlook.
type ForecastBucket struct {
	Month       time.Time `json:"month"`
	Label       string    `json:"label"`
	Leads       int       `json:"leads"`
	Booked      int       `json:"booked"`
	Revenue     float64   `json:"revenue"`
	ClosingRate float64   `json:"closing_rate"`
}

// Forecast buckets guests by check-in month (not creation month) for the
// current month plus the following ones. Revenue counts only booked guests.
func Forecast(guests []models.Guest, now time.Time, months int) []ForecastBucket {
	if months <= 0 {
		months = models.ForecastMonths
	}

	buckets := make([]ForecastBucket, 0, months)
	for offset := 0; offset < months; offset++ {
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, offset, 0)
		bucket := ForecastBucket{Month: first, Label: "forecast"}
		if offset == 0 {
			bucket.Label = "current month"
		}

		for i := range guests {
			g := &guests[i]
			if !inMonth(g.CheckIn, first.Year(), first.Month()) {
				continue
			}
			bucket.Leads++
			if g.Status == models.StatusBooked {
				bucket.Booked++
				bucket.Revenue += g.BookedValue
			}
		}
		bucket.ClosingRate = ClosingRate(bucket.Booked, bucket.Leads)
		buckets = append(buckets, bucket)
	}
	return buckets
}

// CategoryStats is one channel/product/staff row of the report breakdowns.
type CategoryStats struct {
	Name     string  `json:"name"`
	Leads    int     `json:"leads"`
	Bookings int     `json:"bookings"`
	Rate     float64 `json:"rate"`
	Revenue  float64 `json:"revenue"`
}

// Summary is the full report-side analytics payload.
type Summary struct {
	TotalRevenue       float64         `json:"total_revenue"`
	TotalBookings      int             `json:"total_bookings"`
	StatusBreakdown    map[string]int  `json:"status_breakdown"`
	ChannelPerformance []CategoryStats `json:"channel_performance"`
	ProductPerformance []CategoryStats `json:"product_performance"`
	StaffPerformance   []CategoryStats `json:"staff_performance"`
	AvgConversionDays  string          `json:"avg_conversion_days"`
}

// Report aggregates an already period-filtered guest set. Revenue counts
// Booked and Sent Rate values; booking counts are Booked only. Breakdowns run
// over the configured enum lists; categories with no leads are omitted and
// the rest sorted by revenue, highest first. A guest classified with a value
// missing from its list (stale snapshot) still counts under that value.
func Report(guests []models.Guest, followUps []models.FollowUp, channels, products, staff []string) Summary {
	s := Summary{StatusBreakdown: make(map[string]int)}
	for i := range guests {
		g := &guests[i]
		s.StatusBreakdown[g.Status]++
		if g.Status == models.StatusBooked {
			s.TotalBookings++
		}
		if revenueCounts(g) {
			s.TotalRevenue += g.BookedValue
		}
	}

	s.ChannelPerformance = breakdown(guests, channels, func(g *models.Guest) string { return g.Channel })
	s.ProductPerformance = breakdown(guests, products, func(g *models.Guest) string { return g.Product })
	s.StaffPerformance = breakdown(guests, staff, func(g *models.Guest) string { return g.Staff })
	s.AvgConversionDays = AvgConversionDays(guests, followUps)
	return s
}

func breakdown(guests []models.Guest, categories []string, key func(*models.Guest) string) []CategoryStats {
	index := make(map[string]int)
	stats := make([]CategoryStats, 0, len(categories))
	for _, name := range categories {
		if _, ok := index[name]; ok {
			continue
		}
		index[name] = len(stats)
		stats = append(stats, CategoryStats{Name: name})
	}

	for i := range guests {
		g := &guests[i]
		name := key(g)
		if name == "" {
			continue
		}
		j, ok := index[name]
		if !ok {
			// Value no longer (or not yet) in the configured list.
			j = len(stats)
			index[name] = j
			stats = append(stats, CategoryStats{Name: name})
		}
		stats[j].Leads++
		if g.Status == models.StatusBooked {
			stats[j].Bookings++
		}
		if revenueCounts(g) {
			stats[j].Revenue += g.BookedValue
		}
	}

	out := stats[:0]
	for _, s := range stats {
		if s.Leads == 0 {
			continue
		}
		s.Rate = ClosingRate(s.Bookings, s.Leads)
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Revenue > out[j].Revenue })
	return out
}

func inMonth(t time.Time, year int, month time.Month) bool {
	return t.Year() == year && t.Month() == month
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
