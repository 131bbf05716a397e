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

// GlucoseRepository handles CGM reading data operations
type GlucoseRepository struct {
	db *gorm.DB
}

// NewGlucoseRepository creates a new glucose repository
func NewGlucoseRepository(db *gorm.DB) *GlucoseRepository {
	return &GlucoseRepository{db: db}
}

// Create persists a CGM reading
func (r *GlucoseRepository) Create(ctx context.Context, reading *domain.GlucoseReading) error {
	record := database.GlucoseReading{
		UserID:    reading.UserID,
		Value:     reading.Value,
		Source:    reading.Source,
		Timestamp: reading.Timestamp,
	}
	if record.Source == "" {
		record.Source = "device"
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return apperrors.NewDatabaseError(err)
	}
	reading.ID = record.ID
	return nil
}

// ListSince returns readings at or after the given time, oldest first
func (r *GlucoseRepository) ListSince(ctx context.Context, userID uint, since time.Time) ([]domain.GlucoseReading, error) {
	var records []database.GlucoseReading
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND timestamp >= ?", userID, since).
		Order("timestamp ASC, id ASC").
		Find(&records).Error; err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	readings := make([]domain.GlucoseReading, 0, len(records))
	for _, rec := range records {
		readings = append(readings, toGlucoseReading(rec))
	}
	return readings, nil
}

// Latest returns the most recent reading for a user
func (r *GlucoseRepository) Latest(ctx context.Context, userID uint) (*domain.GlucoseReading, error) {
	var record database.GlucoseReading
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC, id DESC").
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNoGlucoseData
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	reading := toGlucoseReading(record)
	return &reading, nil
}

func toGlucoseReading(rec database.GlucoseReading) domain.GlucoseReading {
	return domain.GlucoseReading{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		UserID:    rec.UserID,
		Value:     rec.Value,
		Source:    rec.Source,
		Timestamp: rec.Timestamp,
	}
}
