// Package report builds the printable report payload from a period-filtered
// guest set and renders it to a document.
package report

import (
	"errors"
	"fmt"
	"time"

	"islatel/internal/analytics"
	"islatel/internal/domain"
	"islatel/internal/models"
)

// PeriodKind selects how wide a report period is.
type PeriodKind int

const (
	PeriodDay PeriodKind = iota
	PeriodMonth
	PeriodYear
)

var ErrBadPeriod = errors.New("period must be day, month or year")

// ParsePeriodKind maps the API's period parameter.
func ParsePeriodKind(s string) (PeriodKind, error) {
	switch s {
	case "day":
		return PeriodDay, nil
	case "month":
		return PeriodMonth, nil
	case "year":
		return PeriodYear, nil
	default:
		return 0, ErrBadPeriod
	}
}

// Period is one reporting window anchored at a date.
type Period struct {
	Kind PeriodKind
	Date time.Time
}

func (p Period) Label() string {
	switch p.Kind {
	case PeriodDay:
		return p.Date.Format("January 2, 2006")
	case PeriodMonth:
		return p.Date.Format("January 2006")
	default:
		return p.Date.Format("2006")
	}
}

// Contains reports whether an instant falls inside the period.
func (p Period) Contains(t time.Time) bool {
	switch p.Kind {
	case PeriodDay:
		return models.SameDay(t, p.Date)
	case PeriodMonth:
		return t.Year() == p.Date.Year() && t.Month() == p.Date.Month()
	default:
		return t.Year() == p.Date.Year()
	}
}

// relevantDate places a guest into a reporting period: booked guests report
// under their booking date, everyone else under creation.
func relevantDate(g *models.Guest) time.Time {
	if g.Status == models.StatusBooked && g.BookedAt != nil {
		return *g.BookedAt
	}
	return g.CreatedAt
}

// FilterByPeriod returns the guests whose relevant date falls in the period.
func FilterByPeriod(guests []models.Guest, period Period) []models.Guest {
	var out []models.Guest
	for i := range guests {
		if period.Contains(relevantDate(&guests[i])) {
			out = append(out, guests[i])
		}
	}
	return out
}

// Build assembles the full report payload for a period. Guests are filtered
// here; follow-ups pass through whole so conversion spans that begin before
// the period still resolve.
func Build(guests []models.Guest, followUps []models.FollowUp, channels, products, staff []string, period Period, generatedAt time.Time) *domain.Report {
	filtered := FilterByPeriod(guests, period)
	summary := analytics.Report(filtered, followUps, channels, products, staff)

	r := &domain.Report{
		Title:             "Guest Performance Report",
		GeneratedAt:       generatedAt,
		Period:            period.Label(),
		TotalRevenue:      summary.TotalRevenue,
		TotalBookings:     summary.TotalBookings,
		AvgConversionDays: summary.AvgConversionDays,
		ChannelRows:       categoryRows(summary.ChannelPerformance),
		ProductRows:       categoryRows(summary.ProductPerformance),
		StaffRows:         categoryRows(summary.StaffPerformance),
	}

	if len(summary.ProductPerformance) > 0 {
		r.TopProduct = summary.ProductPerformance[0].Name
	}
	if len(summary.StaffPerformance) > 0 {
		r.TopStaff = summary.StaffPerformance[0].Name
	}
	for _, s := range summary.StaffPerformance {
		if s.Leads > r.TopLeadGetterCount {
			r.TopLeadGetterCount = s.Leads
			r.TopLeadGetter = s.Name
		}
	}

	for i := range filtered {
		g := &filtered[i]
		r.GuestRows = append(r.GuestRows, domain.GuestRow{
			Date:    relevantDate(g).Format("2006-01-02"),
			Name:    g.Name,
			Product: g.Product,
			Channel: g.Channel,
			Staff:   g.Staff,
			Status:  statusLabel(g),
			Revenue: revenueLabel(g),
		})
	}
	return r
}

func statusLabel(g *models.Guest) string {
	if g.Status == models.StatusBooked && g.BookedValue > 0 {
		return fmt.Sprintf("%s (%.2f)", g.Status, g.BookedValue)
	}
	return g.Status
}

func revenueLabel(g *models.Guest) string {
	if g.Status == models.StatusBooked {
		return fmt.Sprintf("%.2f", g.BookedValue)
	}
	return "-"
}

func categoryRows(stats []analytics.CategoryStats) []domain.CategoryRow {
	rows := make([]domain.CategoryRow, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, domain.CategoryRow{
			Name:     s.Name,
			Leads:    s.Leads,
			Bookings: s.Bookings,
			Rate:     s.Rate,
			Revenue:  s.Revenue,
		})
	}
	return rows
}
