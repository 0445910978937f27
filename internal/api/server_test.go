package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"islatel/internal/auth"
	"islatel/internal/config"
	"islatel/internal/crm"
	"islatel/internal/logging"
	"islatel/internal/models"
	"islatel/internal/report"
	"islatel/internal/store"
)

type testAPI struct {
	server *Server
	engine *crm.Engine
	mem    *store.Memory
	admin  string
	staff  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	mem := store.NewMemory()
	engine := crm.New(mem, nil, nil, logging.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	engine.Run(ctx)

	authSvc := auth.NewService(config.AuthConfig{
		AdminPasscode:     "admin123",
		StaffPasscode:     "staff123",
		RateLimitAttempts: 100,
		RateLimitWindow:   60,
	}, auth.NewMemoryLimiter(), logging.Nop())

	renderer := report.NewExcelRenderer(t.TempDir(), logging.Nop())
	server := NewServer(config.APIConfig{Port: 0}, engine, authSvc, renderer, logging.Nop())

	api := &testAPI{server: server, engine: engine, mem: mem}
	api.admin = api.login(t, "admin123")
	api.staff = api.login(t, "staff123")
	return api
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "198.51.100.7:41000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) login(t *testing.T, passcode string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{"passcode": passcode})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session auth.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	return session.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLoginEndpoint(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{"passcode": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{"passcode": "admin123"})
	assert.Equal(t, http.StatusOK, rec.Code)
	session := decode[auth.Session](t, rec)
	assert.Equal(t, models.RoleAdmin, session.Role)
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/v1/guests", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/guests", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuestCRUDOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	draft := map[string]any{
		"name":     "Jane Doe",
		"check_in": "2030-06-10T00:00:00Z",
		"product":  "Stays",
		"channel":  "TikTok",
		"staff":    "Sarah",
	}
	rec := api.do(t, http.MethodPost, "/api/v1/guests", api.staff, draft)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Guest](t, rec)
	require.NotEmpty(t, created.ID)

	// Same triple is rejected.
	rec = api.do(t, http.MethodPost, "/api/v1/guests", api.staff, draft)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/guests?q=jane", api.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decode[struct {
		Guests []models.Guest `json:"guests"`
		Total  int            `json:"total"`
	}](t, rec)
	assert.Equal(t, 1, listing.Total)

	created.Status = models.StatusSentRate
	rec = api.do(t, http.MethodPut, "/api/v1/guests/"+created.ID, api.staff, created)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[models.Guest](t, rec)
	assert.NotNil(t, updated.SentRateAt)

	rec = api.do(t, http.MethodGet, "/api/v1/guests/"+created.ID, api.staff, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/guests/missing", api.staff, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteGuestIsAdminOnly(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/guests", api.staff, map[string]any{
		"name": "Jane Doe", "check_in": "2030-06-10T00:00:00Z", "product": "Stays",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.Guest](t, rec)

	rec = api.do(t, http.MethodDelete, "/api/v1/guests/"+created.ID, api.staff, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/v1/guests/"+created.ID, api.admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFollowUpResolutionOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/guests", api.staff, map[string]any{
		"name": "Jane Doe", "check_in": "2030-06-10T00:00:00Z", "product": "Stays", "status": models.StatusSentRate,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.Guest](t, rec)

	rec = api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/guests/%s/followups", created.ID), api.staff, map[string]any{
		"staff": "Mike", "method": models.MethodMessenger, "status": models.StatusBooked, "booked_value": 5000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decode[struct {
		FollowUp models.FollowUp `json:"followup"`
		Guest    models.Guest    `json:"guest"`
	}](t, rec)
	assert.Equal(t, models.StatusBooked, result.Guest.Status)
	assert.Equal(t, 5000.0, result.Guest.BookedValue)
	assert.Equal(t, "Mike", result.Guest.CreditedStaff)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/guests/%s/followups", created.ID), api.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[struct {
		Count int `json:"count"`
	}](t, rec)
	assert.Equal(t, 1, history.Count)

	// A booked guest cannot be resolved again.
	rec = api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/guests/%s/followups", created.ID), api.staff, map[string]any{
		"staff": "Mike", "method": models.MethodCall, "status": models.StatusDone,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAmendLastFollowUpOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/guests", api.staff, map[string]any{
		"name": "Jane Doe", "check_in": "2030-06-10T00:00:00Z", "product": "Stays",
	})
	created := decode[models.Guest](t, rec)

	rec = api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/guests/%s/followups", created.ID), api.staff, map[string]any{
		"staff": "Sarah", "method": models.MethodCall, "status": models.StatusDone,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	result := decode[struct {
		FollowUp models.FollowUp `json:"followup"`
	}](t, rec)

	rec = api.do(t, http.MethodPut, "/api/v1/followups/"+result.FollowUp.ID, api.staff, map[string]any{
		"staff": "Sarah", "method": models.MethodEmail, "status": models.StatusDone,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	amended := decode[models.FollowUp](t, rec)
	assert.Equal(t, models.MethodEmail, amended.Method)

	rec = api.do(t, http.MethodPut, "/api/v1/followups/missing", api.staff, map[string]any{"status": models.StatusDone})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemindersEndpoint(t *testing.T) {
	api := newTestAPI(t)

	api.do(t, http.MethodPost, "/api/v1/guests", api.staff, map[string]any{
		"name": "Open Lead", "check_in": "2030-06-10T00:00:00Z", "product": "Stays",
	})
	api.do(t, http.MethodPost, "/api/v1/guests", api.staff, map[string]any{
		"name": "Closed", "check_in": "2030-06-11T00:00:00Z", "product": "Stays", "status": models.StatusBooked,
	})

	rec := api.do(t, http.MethodGet, "/api/v1/reminders", api.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Reminders []struct {
			Guest       models.Guest `json:"guest"`
			NextOrdinal int          `json:"next_ordinal"`
		} `json:"reminders"`
	}](t, rec)
	require.Len(t, body.Reminders, 1)
	assert.Equal(t, "Open Lead", body.Reminders[0].Guest.Name)
	assert.Equal(t, 1, body.Reminders[0].NextOrdinal)
}

func TestListManagementIsAdminOnly(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/v1/lists", api.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lists := decode[struct {
		Products []string `json:"products"`
		Statuses []string `json:"statuses"`
	}](t, rec)
	assert.Equal(t, models.DefaultProducts, lists.Products)
	assert.Equal(t, models.DefaultStatuses, lists.Statuses)

	rec = api.do(t, http.MethodPost, "/api/v1/lists/products", api.staff, map[string]string{"value": "Tours"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/lists/products", api.admin, map[string]string{"value": "Tours"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/lists/products", api.admin, map[string]string{"value": "tours"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/v1/lists/products?value=Tours", api.admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/lists/espresso", api.admin, map[string]string{"value": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboardAndForecastEndpoints(t *testing.T) {
	api := newTestAPI(t)

	api.do(t, http.MethodPost, "/api/v1/guests", api.staff, map[string]any{
		"name": "Jane Doe", "check_in": time.Now().Format(time.RFC3339), "product": "Stays",
		"status": models.StatusBooked, "booked_value": 3000, "staff": "Sarah",
	})

	rec := api.do(t, http.MethodGet, "/api/v1/dashboard", api.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[struct {
		RevenueToday  float64 `json:"revenue_today"`
		BookingsToday int     `json:"bookings_today"`
	}](t, rec)
	assert.Equal(t, 3000.0, dash.RevenueToday)
	assert.Equal(t, 1, dash.BookingsToday)

	rec = api.do(t, http.MethodGet, "/api/v1/forecast", api.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	forecast := decode[struct {
		Forecast []struct {
			Label string `json:"label"`
		} `json:"forecast"`
	}](t, rec)
	require.Len(t, forecast.Forecast, models.ForecastMonths)
	assert.Equal(t, "current month", forecast.Forecast[0].Label)

	rec = api.do(t, http.MethodGet, "/api/v1/dashboard?date=bogus", api.staff, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportEndpoints(t *testing.T) {
	api := newTestAPI(t)

	api.do(t, http.MethodPost, "/api/v1/guests", api.staff, map[string]any{
		"name": "Jane Doe", "check_in": time.Now().Format(time.RFC3339), "product": "Stays",
		"status": models.StatusBooked, "booked_value": 2500, "staff": "Sarah", "channel": "TikTok",
	})

	rec := api.do(t, http.MethodGet, "/api/v1/reports?period=month", api.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payload := decode[struct {
		TotalRevenue  float64 `json:"total_revenue"`
		TotalBookings int     `json:"total_bookings"`
	}](t, rec)
	assert.Equal(t, 2500.0, payload.TotalRevenue)
	assert.Equal(t, 1, payload.TotalBookings)

	rec = api.do(t, http.MethodGet, "/api/v1/reports?period=fortnight", api.staff, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/reports/export?period=month", api.staff, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	exported := decode[map[string]string](t, rec)
	assert.FileExists(t, exported["file"])
}
