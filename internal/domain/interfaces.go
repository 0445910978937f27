package domain

import (
	"context"
	"time"

	"islatel/internal/models"
)

// ListKind selects one of the configurable enum lists.
type ListKind int

const (
	ListProducts ListKind = iota
	ListChannels
	ListStaff
)

func (k ListKind) String() string {
	switch k {
	case ListProducts:
		return "products"
	case ListChannels:
		return "channels"
	case ListStaff:
		return "staff"
	default:
		return "unknown"
	}
}

// ParseListKind maps a list name to its kind.
func ParseListKind(name string) (ListKind, bool) {
	switch name {
	case "products":
		return ListProducts, true
	case "channels":
		return ListChannels, true
	case "staff":
		return ListStaff, true
	default:
		return 0, false
	}
}

// RecordStore is the external real-time document store. Subscriptions deliver
// the FULL collection on every change; ordering across collections is not
// guaranteed. Subscriptions end when ctx is cancelled.
type RecordStore interface {
	SubscribeGuests(ctx context.Context, onSnapshot func([]models.Guest), onError func(error))
	SubscribeFollowUps(ctx context.Context, onSnapshot func([]models.FollowUp), onError func(error))
	SubscribeList(ctx context.Context, kind ListKind, onSnapshot func([]string), onError func(error))

	InsertGuest(ctx context.Context, guest *models.Guest) (string, error)
	UpdateGuest(ctx context.Context, id string, guest *models.Guest) error
	DeleteGuest(ctx context.Context, id string) error

	InsertFollowUp(ctx context.Context, fu *models.FollowUp) (string, error)
	UpdateFollowUp(ctx context.Context, id string, fu *models.FollowUp) error

	AddListValue(ctx context.Context, kind ListKind, value string) error
	RemoveListValue(ctx context.Context, kind ListKind, value string) error
}

// Journal persists mutations that could not reach the store so the replay
// worker can retry them later.
type Journal interface {
	Append(ctx context.Context, entry *models.PendingWrite) error
	Pending(ctx context.Context, limit int) ([]models.PendingWrite, error)
	MarkDone(ctx context.Context, id int64) error
	MarkRetry(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// ReportRenderer turns a built report payload into a downloadable document.
// PDF rendering is an external collaborator; the in-repo implementation
// produces an Excel workbook.
type ReportRenderer interface {
	Render(ctx context.Context, report *Report) (string, error)
}

// Report is the structured payload handed to a renderer.
type Report struct {
	Title       string    `json:"title"`
	GeneratedAt time.Time `json:"generated_at"`
	Period      string    `json:"period"`

	TotalRevenue       float64 `json:"total_revenue"`
	TotalBookings      int     `json:"total_bookings"`
	AvgConversionDays  string  `json:"avg_conversion_days"`
	TopLeadGetter      string  `json:"top_lead_getter"`
	TopLeadGetterCount int     `json:"top_lead_getter_count"`
	TopProduct         string  `json:"top_product"`
	TopStaff           string  `json:"top_staff"`

	GuestRows   []GuestRow    `json:"guest_rows"`
	ChannelRows []CategoryRow `json:"channel_rows"`
	ProductRows []CategoryRow `json:"product_rows"`
	StaffRows   []CategoryRow `json:"staff_rows"`
}

// GuestRow is one line of the report's guest detail table.
type GuestRow struct {
	Date    string `json:"date"`
	Name    string `json:"name"`
	Product string `json:"product"`
	Channel string `json:"channel"`
	Staff   string `json:"staff"`
	Status  string `json:"status"`
	Revenue string `json:"revenue"`
}

// CategoryRow is one line of a channel/product/staff performance table.
type CategoryRow struct {
	Name     string  `json:"name"`
	Leads    int     `json:"leads"`
	Bookings int     `json:"bookings"`
	Rate     float64 `json:"rate"`
	Revenue  float64 `json:"revenue"`
}
