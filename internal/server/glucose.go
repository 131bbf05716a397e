package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/macrogi/macrogi-server/internal/domain"
	apperrors "github.com/macrogi/macrogi-server/internal/errors"
	"github.com/macrogi/macrogi-server/internal/services"
)

// GlucoseStatsProvider assembles the glucose dashboard payload
type GlucoseStatsProvider interface {
	Stats(ctx context.Context, userID uint) (*services.GlucoseStats, error)
	AddReading(ctx context.Context, reading *domain.GlucoseReading) error
}

// GlucoseHandler serves the CGM endpoints
type GlucoseHandler struct {
	Glucose GlucoseStatsProvider
}

// Stats handles GET /api/glucose-stats?user_id=N
func (h GlucoseHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := h.Glucose.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

type cgmRequest struct {
	UserID    uint      `json:"user_id"`
	BGValue   float64   `json:"bg_value"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// AddReading handles POST /api/cgm, the simulator/device ingest path
func (h GlucoseHandler) AddReading(w http.ResponseWriter, r *http.Request) {
	var req cgmRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}
	if req.UserID == 0 {
		writeError(w, r, apperrors.NewValidationError("user_id is required"))
		return
	}

	reading := &domain.GlucoseReading{
		UserID:    req.UserID,
		Value:     req.BGValue,
		Source:    req.Source,
		Timestamp: req.Timestamp,
	}
	if err := h.Glucose.AddReading(r.Context(), reading); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, statusResponse{Status: "success"})
}
