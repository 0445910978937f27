package models

const (
	StatusIntent    = "Intent"
	StatusSentRate  = "Sent Rate"
	StatusBooked    = "Booked"
	StatusCancelled = "Cancelled"

	// StatusDone is a follow-up outcome only: the guest keeps its current status.
	StatusDone = "Done"
)

const (
	MethodCall      = "Call"
	MethodMessenger = "Messenger"
	MethodText      = "Text"
	MethodEmail     = "Email"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Seed lists used until the store delivers a non-empty snapshot.
var (
	DefaultProducts = []string{"Stays", "ICE", "BURPS", "Others"}
	DefaultChannels = []string{"Messenger", "TikTok", "OTA", "Walk-in", "Email", "Call", "Referral", "Website", "Others"}
	DefaultStaff    = []string{"Sarah", "Mike", "Anna", "Tom"}
	DefaultStatuses = []string{StatusIntent, StatusBooked, StatusSentRate, StatusCancelled}
)

const (
	// ConversionCapDays rejects conversion spans caused by bad data.
	ConversionCapDays = 3650

	// ForecastMonths is the number of check-in month buckets on the dashboard.
	ForecastMonths = 3

	// JournalBatchSize is how many pending writes the replayer drains per poll.
	JournalBatchSize = 20

	// LoginRateLimit is login attempts per window per client.
	LoginRateLimit = 10

	// LoginRateWindow is the login rate limit window in seconds.
	LoginRateWindow = 60
)
