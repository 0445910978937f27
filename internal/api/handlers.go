package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"islatel/internal/analytics"
	"islatel/internal/auth"
	"islatel/internal/crm"
	"islatel/internal/domain"
	"islatel/internal/models"
	"islatel/internal/report"
	"islatel/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	storeState := "ok"
	if s.engine.Degraded() {
		storeState = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "store": storeState})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Passcode string `json:"passcode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	session, err := s.auth.Login(r.Context(), clientKey(r), body.Passcode)
	switch {
	case errors.Is(err, auth.ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, auth.ErrInvalidPasscode):
		writeError(w, http.StatusUnauthorized, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "login failed")
	default:
		writeJSON(w, http.StatusOK, session)
	}
}

func (s *Server) handleGuests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := crm.GuestFilter{
			Query:   r.URL.Query().Get("q"),
			Status:  r.URL.Query().Get("status"),
			Product: r.URL.Query().Get("product"),
			Channel: r.URL.Query().Get("channel"),
			Staff:   r.URL.Query().Get("staff"),
		}
		guests := s.engine.ListGuests(filter)
		writeJSON(w, http.StatusOK, map[string]any{"guests": guests, "total": len(guests)})

	case http.MethodPost:
		var draft models.Guest
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(draft.Name) == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		res, err := s.engine.Create(r.Context(), draft)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if res.Duplicate {
			writeError(w, http.StatusConflict, res.Message)
			return
		}
		writeJSON(w, http.StatusCreated, res.Guest)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleGuestByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/guests/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "guest id is required")
		return
	}

	if sub == "followups" {
		s.handleGuestFollowUps(w, r, id)
		return
	}
	if sub != "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		guest, ok := s.engine.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "guest not found")
			return
		}
		writeJSON(w, http.StatusOK, guest)

	case http.MethodPut:
		var guest models.Guest
		if err := json.NewDecoder(r.Body).Decode(&guest); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		guest.ID = id

		updated, err := s.engine.Update(r.Context(), guest)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := s.engine.Delete(r.Context(), id); err != nil {
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleGuestFollowUps(w http.ResponseWriter, r *http.Request, guestID string) {
	switch r.Method {
	case http.MethodGet:
		history := s.engine.ListFor(guestID)
		writeJSON(w, http.StatusOK, map[string]any{
			"followups": history,
			"count":     len(history),
		})

	case http.MethodPost:
		var body struct {
			Staff       string  `json:"staff"`
			Method      string  `json:"method"`
			Status      string  `json:"status"`
			BookedValue float64 `json:"booked_value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		fu, guest, err := s.engine.Resolve(r.Context(), guestID, crm.FollowUpDraft{
			Staff:       body.Staff,
			Method:      body.Method,
			Status:      body.Status,
			BookedValue: body.BookedValue,
		})
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"followup": fu, "guest": guest})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleFollowUpByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/followups/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "follow-up id is required")
		return
	}

	var body struct {
		Staff       string  `json:"staff"`
		Method      string  `json:"method"`
		Status      string  `json:"status"`
		BookedValue float64 `json:"booked_value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	fu, err := s.engine.UpdateLastFollowUp(r.Context(), id, crm.FollowUpDraft{
		Staff:       body.Staff,
		Method:      body.Method,
		Status:      body.Status,
		BookedValue: body.BookedValue,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fu)
}

func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pending := s.engine.Pending()
	type reminder struct {
		Guest       models.Guest `json:"guest"`
		FollowUps   int          `json:"followups"`
		NextOrdinal int          `json:"next_ordinal"`
	}

	reminders := make([]reminder, 0, len(pending))
	for _, g := range pending {
		n := s.engine.CountFor(g.ID)
		reminders = append(reminders, reminder{Guest: g, FollowUps: n, NextOrdinal: n + 1})
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": reminders})
}

func (s *Server) handleLists(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"products": s.engine.List(domain.ListProducts),
		"channels": s.engine.List(domain.ListChannels),
		"staff":    s.engine.List(domain.ListStaff),
		"statuses": s.engine.Statuses(),
	})
}

func (s *Server) handleListByKind(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/lists/")
	kind, ok := domain.ParseListKind(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown list")
		return
	}

	switch r.Method {
	case http.MethodPost:
		var body struct {
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(body.Value) == "" {
			writeError(w, http.StatusBadRequest, "value is required")
			return
		}
		if err := s.engine.AddListValue(r.Context(), kind, body.Value); err != nil {
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"values": s.engine.List(kind)})

	case http.MethodDelete:
		value := strings.TrimSpace(r.URL.Query().Get("value"))
		if value == "" {
			writeError(w, http.StatusBadRequest, "value is required")
			return
		}
		if err := s.engine.RemoveListValue(r.Context(), kind, value); err != nil {
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"values": s.engine.List(kind)})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now, err := dateParam(r, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	guests, followUps := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"revenue_today":       analytics.RevenueToday(guests, now),
		"revenue_yesterday":   analytics.RevenueYesterday(guests, now),
		"bookings_today":      analytics.BookingsToday(guests, now),
		"month":               analytics.Monthly(guests, now.Year(), now.Month()),
		"leaderboard":         analytics.StaffLeaderboard(guests, now.Year(), now.Month()),
		"avg_conversion_days": analytics.AvgConversionDays(guests, followUps),
	})
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now, err := dateParam(r, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	guests, _ := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"forecast": analytics.Forecast(guests, now, models.ForecastMonths),
	})
}

func (s *Server) buildReport(r *http.Request) (*domain.Report, error) {
	kind, err := report.ParsePeriodKind(r.URL.Query().Get("period"))
	if err != nil {
		return nil, err
	}
	date, err := dateParam(r, time.Now())
	if err != nil {
		return nil, err
	}

	guests, followUps := s.engine.Snapshot()
	period := report.Period{Kind: kind, Date: date}
	return report.Build(
		guests,
		followUps,
		s.engine.List(domain.ListChannels),
		s.engine.List(domain.ListProducts),
		s.engine.List(domain.ListStaff),
		period,
		time.Now(),
	), nil
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, err := s.buildReport(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleReportExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, err := s.buildReport(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := s.renderer.Render(r.Context(), payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("report export failed")
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"file": path})
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, crm.ErrGuestNotFound), errors.Is(err, crm.ErrFollowUpNotFound), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, crm.ErrGuestTerminal), errors.Is(err, crm.ErrNotLatestFollowUp), errors.Is(err, crm.ErrListValueExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func dateParam(r *http.Request, fallback time.Time) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", raw)
}
