package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	apperrors "github.com/macrogi/macrogi-server/internal/errors"
	"github.com/macrogi/macrogi-server/internal/services"
)

// DashboardAggregator produces the three dashboard views
type DashboardAggregator interface {
	Overall(ctx context.Context, userID uint, days int) (*services.OverallDashboard, error)
	Weekly(ctx context.Context, userID uint, weekStart time.Time) (*services.WeeklyDashboard, error)
	Daily(ctx context.Context, userID uint, date time.Time) (*services.DailyDashboard, error)
}

// DashboardHandler serves the aggregation endpoints
type DashboardHandler struct {
	Dashboard DashboardAggregator
}

// Overall handles GET /api/dashboard/overall?user_id=N&days=30
func (h DashboardHandler) Overall(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 1 {
			writeError(w, r, apperrors.NewValidationError("days must be a positive integer"))
			return
		}
	}

	result, err := h.Dashboard.Overall(r.Context(), userID, days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// Weekly handles GET /api/dashboard/weekly?user_id=N&start=2026-01-05&end=2026-01-12
func (h DashboardHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	start, err := queryDate(r, "start")
	if err != nil {
		writeError(w, r, err)
		return
	}

	// end is redundant (the window is always the 7 days from start) but when
	// a client sends one it has to agree with start.
	if raw := r.URL.Query().Get("end"); raw != "" {
		end, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, r, apperrors.NewValidationError("end must be YYYY-MM-DD"))
			return
		}
		if !end.Equal(start.AddDate(0, 0, 7)) {
			writeError(w, r, apperrors.NewValidationError("end must be exactly 7 days after start"))
			return
		}
	}

	result, err := h.Dashboard.Weekly(r.Context(), userID, start)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// Daily handles GET /api/dashboard/daily?user_id=N&date=2026-01-05
func (h DashboardHandler) Daily(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	date, err := queryDate(r, "date")
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.Dashboard.Daily(r.Context(), userID, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

func queryDate(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, apperrors.NewValidationError(name + " is required")
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError(name + " must be YYYY-MM-DD")
	}
	return t, nil
}
