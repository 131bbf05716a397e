package repository

import (
	"context"
	"errors"
	"time"

	"github.com/macrogi/macrogi-server/internal/database"
	"github.com/macrogi/macrogi-server/internal/domain"
	apperrors "github.com/macrogi/macrogi-server/internal/errors"
	"gorm.io/gorm"
)

// MealRepository handles food diary data operations
type MealRepository struct {
	db *gorm.DB
}

// NewMealRepository creates a new meal repository
func NewMealRepository(db *gorm.DB) *MealRepository {
	return &MealRepository{db: db}
}

// Create persists a new food diary entry
func (r *MealRepository) Create(ctx context.Context, entry *domain.MealRecord) error {
	record := database.MealRecord{
		UserID:    entry.UserID,
		FoodName:  entry.FoodName,
		MealType:  entry.MealType,
		Calories:  entry.Calories,
		Carbs:     entry.Carbs,
		Protein:   entry.Protein,
		Fat:       entry.Fat,
		Fiber:     entry.Fiber,
		Sodium:    entry.Sodium,
		Insulin:   entry.Insulin,
		GI:        entry.GI,
		GL:        entry.GL,
		Timestamp: entry.Timestamp,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return apperrors.NewDatabaseError(err)
	}
	entry.ID = record.ID
	entry.CreatedAt = record.CreatedAt
	return nil
}

// ListWindow returns a user's entries with start <= timestamp < end,
// ordered ascending by timestamp. The end bound is exclusive so a record
// landing exactly on a window edge belongs to the next window.
func (r *MealRepository) ListWindow(ctx context.Context, userID uint, start, end time.Time) ([]domain.MealRecord, error) {
	var records []database.MealRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND timestamp >= ? AND timestamp < ?", userID, start, end).
		Order("timestamp ASC, id ASC").
		Find(&records).Error; err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return toMealRecords(records), nil
}

// GetByID fetches a single entry belonging to the given user
func (r *MealRepository) GetByID(ctx context.Context, userID, entryID uint) (*domain.MealRecord, error) {
	var record database.MealRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, entryID).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrEntryNotFound
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	rec := toMealRecord(record)
	return &rec, nil
}

// ListRecent returns the newest entries for a user, newest first
func (r *MealRepository) ListRecent(ctx context.Context, userID uint, limit int) ([]domain.MealRecord, error) {
	var records []database.MealRecord
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return toMealRecords(records), nil
}

// Delete removes an entry belonging to the given user
func (r *MealRepository) Delete(ctx context.Context, userID, entryID uint) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, entryID).
		Delete(&database.MealRecord{})
	if result.Error != nil {
		return apperrors.NewDatabaseError(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrEntryNotFound
	}
	return nil
}

// DailyInsulinTotals sums logged insulin per calendar day since the given
// time, skipping days with no doses. Feeds the TDD-based ISF/ICR
// calculation.
func (r *MealRepository) DailyInsulinTotals(ctx context.Context, userID uint, since time.Time) (map[string]float64, error) {
	var rows []struct {
		Day   string
		Total float64
	}
	err := r.db.WithContext(ctx).
		Model(&database.MealRecord{}).
		Select("to_char(timestamp, 'YYYY-MM-DD') AS day, SUM(insulin) AS total").
		Where("user_id = ? AND timestamp >= ? AND insulin > 0", userID, since).
		Group("day").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	totals := make(map[string]float64, len(rows))
	for _, row := range rows {
		totals[row.Day] = row.Total
	}
	return totals, nil
}

// RecentDoses returns insulin doses logged at or after the given time,
// oldest first, for IOB estimation.
func (r *MealRepository) RecentDoses(ctx context.Context, userID uint, since time.Time) ([]domain.DoseRecord, error) {
	var records []database.MealRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND timestamp >= ? AND insulin > 0", userID, since).
		Order("timestamp ASC").
		Find(&records).Error; err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	doses := make([]domain.DoseRecord, 0, len(records))
	for _, rec := range records {
		doses = append(doses, domain.DoseRecord{
			Timestamp: rec.Timestamp,
			Units:     rec.Insulin,
		})
	}
	return doses, nil
}

func toMealRecord(rec database.MealRecord) domain.MealRecord {
	return domain.MealRecord{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		UserID:    rec.UserID,
		FoodName:  rec.FoodName,
		MealType:  rec.MealType,
		Calories:  rec.Calories,
		Carbs:     rec.Carbs,
		Protein:   rec.Protein,
		Fat:       rec.Fat,
		Fiber:     rec.Fiber,
		Sodium:    rec.Sodium,
		Insulin:   rec.Insulin,
		GI:        rec.GI,
		GL:        rec.GL,
		Timestamp: rec.Timestamp,
	}
}

func toMealRecords(records []database.MealRecord) []domain.MealRecord {
	out := make([]domain.MealRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, toMealRecord(rec))
	}
	return out
}
