package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/macrogi/macrogi-server/internal/domain"
	apperrors "github.com/macrogi/macrogi-server/internal/errors"
	"github.com/macrogi/macrogi-server/internal/logger"
)

// Dosing policy constants.
const (
	// targetBG is the correction target. Only BG above target produces a
	// correction dose; the calculator never doses for lows.
	targetBG = 100.0 // mg/dL

	// insulinActionDuration is how long a dose stays active. Doses older
	// than this contribute zero IOB.
	insulinActionDuration = 4 * time.Hour

	// insulinHalfLife shapes the exponential decay inside the action window.
	insulinHalfLife = 75 * time.Minute
)

// LatestGlucoseReader provides the reference "current BG" for dosing
type LatestGlucoseReader interface {
	Latest(ctx context.Context, userID uint) (*domain.GlucoseReading, error)
}

// DoseHistoryReader provides recent insulin doses for IOB estimation
type DoseHistoryReader interface {
	RecentDoses(ctx context.Context, userID uint, since time.Time) ([]domain.DoseRecord, error)
}

// ParamResolver resolves ISF/ICR when the caller does not supply them
type ParamResolver interface {
	Resolve(ctx context.Context, userID uint) (*domain.ProfileParams, error)
}

// InsulinService estimates insulin-on-board and computes dose
// recommendations. No maximum-dose ceiling is applied here; that guardrail
// belongs to a clinical safety layer above this service.
type InsulinService struct {
	glucose  LatestGlucoseReader
	doses    DoseHistoryReader
	profiles ParamResolver
	now      func() time.Time
}

// NewInsulinService creates a new insulin advisor service
func NewInsulinService(glucose LatestGlucoseReader, doses DoseHistoryReader, profiles ParamResolver) *InsulinService {
	return &InsulinService{
		glucose:  glucose,
		doses:    doses,
		profiles: profiles,
		now:      time.Now,
	}
}

// remainingFraction is the share of a dose still active after elapsed time:
// 1 at elapsed 0, exactly 0 at or beyond the action duration, exponential
// in between (normalized so the curve actually reaches zero).
func remainingFraction(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 1
	}
	if elapsed >= insulinActionDuration {
		return 0
	}
	halfLives := elapsed.Minutes() / insulinHalfLife.Minutes()
	endFraction := math.Pow(0.5, insulinActionDuration.Minutes()/insulinHalfLife.Minutes())
	return (math.Pow(0.5, halfLives) - endFraction) / (1 - endFraction)
}

// EstimateIOB sums the residual activity of recent doses at the given time.
// Doses timestamped in the future (clock skew) count as just administered.
func (s *InsulinService) EstimateIOB(doses []domain.DoseRecord, now time.Time) float64 {
	var iob float64
	for _, dose := range doses {
		if dose.Units <= 0 {
			continue
		}
		elapsed := now.Sub(dose.Timestamp)
		if elapsed < 0 {
			elapsed = 0
		}
		iob += dose.Units * remainingFraction(elapsed)
	}
	return iob
}

// CalculateDose combines planned carbs, current BG, resolved parameters and
// IOB into a dose breakdown. Internal math runs at full precision; returned
// values are rounded to one decimal for display.
func (s *InsulinService) CalculateDose(plannedCarbs, currentBG, isf, icr, iob float64) (*domain.DoseRecommendation, error) {
	switch {
	case plannedCarbs < 0:
		return nil, apperrors.NewValidationError("planned_carbs must be >= 0")
	case currentBG <= 0:
		return nil, apperrors.NewValidationError("current_bg must be > 0")
	case isf <= 0:
		return nil, apperrors.NewValidationError("isf must be > 0")
	case icr <= 0:
		return nil, apperrors.NewValidationError("icr must be > 0")
	}

	mealDose := plannedCarbs / icr
	correctionDose := math.Max(0, (currentBG-targetBG)/isf)

	// IOB offsets the dose but never pushes it negative
	iobAdjustment := math.Min(math.Max(iob, 0), mealDose+correctionDose)
	totalDose := math.Max(0, mealDose+correctionDose-iobAdjustment)

	return &domain.DoseRecommendation{
		MealDose:       round1(mealDose),
		CorrectionDose: round1(correctionDose),
		IOBAdjustment:  round1(iobAdjustment),
		TotalDose:      round1(totalDose),
		CurrentBG:      currentBG,
		ISF:            isf,
		ICR:            icr,
	}, nil
}

// Advise produces a dose recommendation for a user: current BG from the
// latest CGM reading, IOB from recent logged doses, and ISF/ICR either as
// supplied or resolved from the profile.
func (s *InsulinService) Advise(ctx context.Context, userID uint, plannedCarbs float64, isf, icr float64) (*domain.DoseRecommendation, error) {
	latest, err := s.glucose.Latest(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get current BG: %w", err)
	}

	now := s.now()
	doses, err := s.doses.RecentDoses(ctx, userID, now.Add(-insulinActionDuration))
	if err != nil {
		return nil, fmt.Errorf("failed to get recent doses: %w", err)
	}
	iob := s.EstimateIOB(doses, now)

	if isf <= 0 || icr <= 0 {
		params, err := s.profiles.Resolve(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve insulin parameters: %w", err)
		}
		if isf <= 0 {
			isf = params.ISF
		}
		if icr <= 0 {
			icr = params.ICR
		}
	}

	rec, err := s.CalculateDose(plannedCarbs, latest.Value, isf, icr, iob)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Debug("dose recommendation computed",
		"user_id", userID,
		"planned_carbs", plannedCarbs,
		"iob", round1(iob),
		"total_dose", rec.TotalDose,
	)
	return rec, nil
}
