package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/macrogi/macrogi-server/internal/domain"
	apperrors "github.com/macrogi/macrogi-server/internal/errors"
	"github.com/macrogi/macrogi-server/internal/inference"
	"github.com/macrogi/macrogi-server/internal/logger"
	"github.com/macrogi/macrogi-server/internal/units"
)

// GI bands for the scan result color coding
const (
	giMediumThreshold = 55.0
	giHighThreshold   = 70.0
)

// MealStore persists and reads food diary entries
type MealStore interface {
	Create(ctx context.Context, entry *domain.MealRecord) error
	ListRecent(ctx context.Context, userID uint, limit int) ([]domain.MealRecord, error)
	GetByID(ctx context.Context, userID, entryID uint) (*domain.MealRecord, error)
	Delete(ctx context.Context, userID, entryID uint) error
}

// FoodService handles the food diary save path: unit normalization at the
// boundary, GI prediction via the external model, and GL computation.
type FoodService struct {
	meals     MealStore
	predictor inference.GIPredictor
	extractor inference.NutrientExtractor
	now       func() time.Time
}

// NewFoodService creates a new food diary service
func NewFoodService(meals MealStore, predictor inference.GIPredictor, extractor inference.NutrientExtractor) *FoodService {
	return &FoodService{
		meals:     meals,
		predictor: predictor,
		extractor: extractor,
		now:       time.Now,
	}
}

// FoodAnalysis is the scan result: predicted GI, computed GL, and the
// normalized nutrients that produced them.
type FoodAnalysis struct {
	GI        float64         `json:"gi"`
	GL        float64         `json:"gl"`
	GIColor   string          `json:"gi_color"`
	Nutrients units.Nutrients `json:"nutrients"`
}

// Analyze normalizes a raw nutrient payload and predicts GI/GL for it. The
// GI model is consulted as a black box; its absence is an upstream error
// for the caller to surface.
func (s *FoodService) Analyze(ctx context.Context, foodName string, raw map[string]float64) (*FoodAnalysis, error) {
	nutrients := units.Normalize(raw)

	gi, err := s.predictor.PredictGI(ctx, foodName, nutrients)
	if err != nil {
		return nil, fmt.Errorf("GI prediction failed: %w", err)
	}

	return &FoodAnalysis{
		GI:        math.Round(gi),
		GL:        GlycaemicLoad(gi, nutrients.Carbs),
		GIColor:   giColor(gi),
		Nutrients: nutrients,
	}, nil
}

// Scan runs OCR on a food label image and analyzes the extracted nutrients
// in one pass.
func (s *FoodService) Scan(ctx context.Context, foodName string, image []byte) (*FoodAnalysis, error) {
	raw, err := s.extractor.ExtractNutrients(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("nutrient extraction failed: %w", err)
	}
	if len(raw) == 0 {
		return nil, apperrors.NewValidationError("no nutrients could be read from the image")
	}
	return s.Analyze(ctx, foodName, raw)
}

// GlycaemicLoad computes GL = GI * carbs / 100, rounded to one decimal,
// the same display precision the dose calculator uses.
func GlycaemicLoad(gi, carbs float64) float64 {
	return round1(gi * carbs / 100)
}

func giColor(gi float64) string {
	switch {
	case gi >= giHighThreshold:
		return "#dc3545" // red, high GI
	case gi >= giMediumThreshold:
		return "#ffc107" // yellow, medium GI
	default:
		return "#28a745" // green, low GI
	}
}

// SaveEntry validates and persists a diary entry. GL is always recomputed
// from GI and carbs so the stored invariant holds regardless of what the
// client sent.
func (s *FoodService) SaveEntry(ctx context.Context, entry *domain.MealRecord) error {
	if entry.UserID == 0 {
		return apperrors.NewValidationError("user_id is required")
	}
	if entry.Carbs < 0 || entry.Calories < 0 || entry.Insulin < 0 {
		return apperrors.NewValidationError("nutrient values must be >= 0")
	}
	if entry.FoodName == "" {
		entry.FoodName = "Unknown Food"
	}
	entry.MealType = canonicalMealType(entry.MealType)
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	entry.GL = GlycaemicLoad(entry.GI, entry.Carbs)

	if err := s.meals.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to save diary entry: %w", err)
	}

	logger.FromContext(ctx).Info("diary entry saved",
		"user_id", entry.UserID,
		"food", entry.FoodName,
		"meal_type", entry.MealType,
	)
	return nil
}

// GetUserEntries returns a user's diary entries, newest first
func (s *FoodService) GetUserEntries(ctx context.Context, userID uint, limit int) ([]domain.MealRecord, error) {
	entries, err := s.meals.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get diary entries: %w", err)
	}
	return entries, nil
}

// NutrientRow is one row of the per-entry nutrient breakdown
type NutrientRow struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// NutrientBreakdown returns the labeled nutrient rows for one entry
func (s *FoodService) NutrientBreakdown(ctx context.Context, userID, entryID uint) ([]NutrientRow, error) {
	entry, err := s.meals.GetByID(ctx, userID, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get diary entry: %w", err)
	}
	return []NutrientRow{
		{Name: "Calories", Value: entry.Calories, Unit: "kcal"},
		{Name: "Carbohydrate", Value: entry.Carbs, Unit: "g"},
		{Name: "Protein", Value: entry.Protein, Unit: "g"},
		{Name: "Fat", Value: entry.Fat, Unit: "g"},
		{Name: "Fiber", Value: entry.Fiber, Unit: "g"},
		{Name: "Sodium", Value: entry.Sodium, Unit: "mg"},
	}, nil
}

// DeleteEntry removes one of the user's diary entries
func (s *FoodService) DeleteEntry(ctx context.Context, userID, entryID uint) error {
	if err := s.meals.Delete(ctx, userID, entryID); err != nil {
		return fmt.Errorf("failed to delete diary entry: %w", err)
	}
	return nil
}
