package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/macrogi/macrogi-server/internal/domain"
	apperrors "github.com/macrogi/macrogi-server/internal/errors"
)

// ProfileManager resolves ISF/ICR and manages user profiles
type ProfileManager interface {
	Resolve(ctx context.Context, userID uint) (*domain.ProfileParams, error)
	Register(ctx context.Context, email, username string) (*domain.UserProfile, error)
	SetParams(ctx context.Context, userID uint, isf, icr float64) error
}

// DoseAdvisor computes dose recommendations for the insulin-advice endpoint
type DoseAdvisor interface {
	Advise(ctx context.Context, userID uint, plannedCarbs float64, isf, icr float64) (*domain.DoseRecommendation, error)
}

// AdvisorHandler serves the insulin parameter and dosing endpoints
type AdvisorHandler struct {
	Profiles ProfileManager
	Advisor  DoseAdvisor
}

type autoParamsResponse struct {
	ISF    float64 `json:"isf"`
	ICR    float64 `json:"icr"`
	TDD    float64 `json:"tdd,omitempty"`
	Source string  `json:"source"`
}

// AutoParams handles GET /api/auto-isf-icr?user_id=N
func (h AdvisorHandler) AutoParams(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	params, err := h.Profiles.Resolve(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, autoParamsResponse{
		ISF:    params.ISF,
		ICR:    params.ICR,
		TDD:    params.TDD,
		Source: string(params.Source),
	})
}

type adviceRequest struct {
	UserID       uint    `json:"user_id"`
	PlannedCarbs float64 `json:"planned_carbs"`
	ISF          float64 `json:"isf,omitempty"`
	ICR          float64 `json:"icr,omitempty"`
}

type adviceResponse struct {
	MealDose       float64 `json:"meal_dose"`
	CorrectionDose float64 `json:"correction_dose"`
	IOBAdjustment  float64 `json:"iob_adjustment"`
	TotalDose      float64 `json:"total_dose"`
	CurrentBG      float64 `json:"current_bg"`
	ISF            float64 `json:"isf_used"`
	ICR            float64 `json:"icr_used"`
}

// Advice handles POST /api/insulin-advice
func (h AdvisorHandler) Advice(w http.ResponseWriter, r *http.Request) {
	var req adviceRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}
	if req.UserID == 0 {
		writeError(w, r, apperrors.NewValidationError("user_id is required"))
		return
	}

	rec, err := h.Advisor.Advise(r.Context(), req.UserID, req.PlannedCarbs, req.ISF, req.ICR)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, adviceResponse{
		MealDose:       rec.MealDose,
		CorrectionDose: rec.CorrectionDose,
		IOBAdjustment:  rec.IOBAdjustment,
		TotalDose:      rec.TotalDose,
		CurrentBG:      rec.CurrentBG,
		ISF:            rec.ISF,
		ICR:            rec.ICR,
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

type registerResponse struct {
	UserID   uint   `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Register handles POST /api/users, finding or creating a user by email
func (h AdvisorHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}

	profile, err := h.Profiles.Register(r.Context(), req.Email, req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, registerResponse{
		UserID:   profile.ID,
		Email:    profile.Email,
		Username: profile.Username,
	})
}

type setParamsRequest struct {
	UserID uint    `json:"user_id"`
	ISF    float64 `json:"isf"`
	ICR    float64 `json:"icr"`
}

// SetParams handles PUT /api/profile-params, storing explicit ISF/ICR
func (h AdvisorHandler) SetParams(w http.ResponseWriter, r *http.Request) {
	var req setParamsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}
	if req.UserID == 0 {
		writeError(w, r, apperrors.NewValidationError("user_id is required"))
		return
	}

	if err := h.Profiles.SetParams(r.Context(), req.UserID, req.ISF, req.ICR); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, statusResponse{Status: "success"})
}

// queryUserID parses the user_id query parameter shared by the GET endpoints
func queryUserID(r *http.Request) (uint, error) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		return 0, apperrors.NewValidationError("user_id is required")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, apperrors.NewValidationError("user_id must be a positive integer")
	}
	return uint(id), nil
}
