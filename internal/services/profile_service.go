package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/macrogi/macrogi-server/internal/domain"
	apperrors "github.com/macrogi/macrogi-server/internal/errors"
)

// Clinical policy constants for ISF/ICR derivation. The 1700 and 500 rules
// back-calculate sensitivity and carb ratio from total daily insulin dose;
// results are clamped to plausible clinical ranges.
const (
	isfRuleNumerator = 1700.0
	icrRuleNumerator = 500.0

	defaultISF = 50.0 // mg/dL per unit
	defaultICR = 10.0 // g per unit

	minISF, maxISF = 10.0, 200.0
	minICR, maxICR = 3.0, 50.0

	tddLookbackDays = 7
	minTDDDays      = 3
)

// ProfileStore reads and writes user profiles and their explicit insulin
// parameters
type ProfileStore interface {
	GetProfile(ctx context.Context, userID uint) (*domain.UserProfile, error)
	GetOrCreateUser(ctx context.Context, email, username string) (*domain.UserProfile, error)
	UpdateParams(ctx context.Context, userID uint, isf, icr float64) error
}

// InsulinHistoryReader provides per-day insulin totals for TDD calculation
type InsulinHistoryReader interface {
	DailyInsulinTotals(ctx context.Context, userID uint, since time.Time) (map[string]float64, error)
}

// ProfileService resolves a user's ISF and ICR: explicit stored values
// first, then TDD-derived values, then clinical defaults.
type ProfileService struct {
	users ProfileStore
	meals InsulinHistoryReader
	now   func() time.Time
}

// NewProfileService creates a new profile parameter resolver
func NewProfileService(users ProfileStore, meals InsulinHistoryReader) *ProfileService {
	return &ProfileService{
		users: users,
		meals: meals,
		now:   time.Now,
	}
}

// Resolve returns the ISF/ICR pair for a user. It never fails for lack of
// history; with no explicit values and too little TDD data it returns the
// clinical defaults.
func (s *ProfileService) Resolve(ctx context.Context, userID uint) (*domain.ProfileParams, error) {
	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	if profile.ISF > 0 && profile.ICR > 0 {
		return &domain.ProfileParams{
			ISF:    profile.ISF,
			ICR:    profile.ICR,
			Source: domain.SourceExplicit,
		}, nil
	}

	tdd, days, err := s.meanTDD(ctx, userID)
	if err != nil {
		return nil, err
	}
	if days >= minTDDDays && tdd > 0 {
		return calculatedParams(tdd), nil
	}

	return &domain.ProfileParams{
		ISF:    defaultISF,
		ICR:    defaultICR,
		Source: domain.SourceDefault,
	}, nil
}

// ResolveCalculated always derives ISF/ICR from TDD history, ignoring any
// explicit stored values. It fails with an insufficient-data error when the
// user has no dose history at all.
func (s *ProfileService) ResolveCalculated(ctx context.Context, userID uint) (*domain.ProfileParams, error) {
	tdd, days, err := s.meanTDD(ctx, userID)
	if err != nil {
		return nil, err
	}
	if days == 0 || tdd <= 0 {
		return nil, apperrors.NewInsufficientDataError("no insulin dose history to calculate ISF/ICR")
	}
	return calculatedParams(tdd), nil
}

// Register finds or creates a user by email
func (s *ProfileService) Register(ctx context.Context, email, username string) (*domain.UserProfile, error) {
	if email == "" {
		return nil, apperrors.NewValidationError("email is required")
	}
	profile, err := s.users.GetOrCreateUser(ctx, email, username)
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	return profile, nil
}

// SetParams stores explicit ISF/ICR for a user. Explicit values take
// precedence over TDD-derived ones on every subsequent Resolve.
func (s *ProfileService) SetParams(ctx context.Context, userID uint, isf, icr float64) error {
	if isf <= 0 || icr <= 0 {
		return apperrors.NewValidationError("isf and icr must be > 0")
	}
	if err := s.users.UpdateParams(ctx, userID, isf, icr); err != nil {
		return fmt.Errorf("failed to update insulin parameters: %w", err)
	}
	return nil
}

// meanTDD averages daily insulin totals over the trailing lookback window,
// counting only days that actually have doses.
func (s *ProfileService) meanTDD(ctx context.Context, userID uint) (float64, int, error) {
	since := s.now().AddDate(0, 0, -tddLookbackDays)
	totals, err := s.meals.DailyInsulinTotals(ctx, userID, since)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get insulin history: %w", err)
	}
	if len(totals) == 0 {
		return 0, 0, nil
	}

	var sum float64
	for _, t := range totals {
		sum += t
	}
	return sum / float64(len(totals)), len(totals), nil
}

func calculatedParams(tdd float64) *domain.ProfileParams {
	isf := clamp(isfRuleNumerator/tdd, minISF, maxISF)
	icr := clamp(icrRuleNumerator/tdd, minICR, maxICR)
	return &domain.ProfileParams{
		ISF:    round1(isf),
		ICR:    round1(icr),
		TDD:    round1(tdd),
		Source: domain.SourceCalculated,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// round1 rounds to one decimal place, the display precision shared by the
// dose calculator and GL computation.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
