package database

import (
	"fmt"
	"time"

	"github.com/macrogi/macrogi-server/internal/config"
	"github.com/macrogi/macrogi-server/internal/database/migrations"
	"github.com/macrogi/macrogi-server/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email    string `gorm:"uniqueIndex"`
	Username string
	// Explicit insulin parameters; 0 means unset and the resolver falls
	// back to TDD calculation or clinical defaults.
	ISF float64 `gorm:"column:isf;default:0"`
	ICR float64 `gorm:"column:icr;default:0"`
}

type MealRecord struct {
	gorm.Model
	UserID    uint `gorm:"index"`
	User      User
	FoodName  string
	MealType  string
	Calories  float64
	Carbs     float64
	Protein   float64
	Fat       float64
	Fiber     float64
	Sodium    float64
	Insulin   float64
	GI        float64 `gorm:"column:gi"`
	GL        float64 `gorm:"column:gl"`
	Timestamp time.Time `gorm:"index"`
}

type GlucoseReading struct {
	gorm.Model
	UserID    uint `gorm:"index"`
	User      User
	Value     float64
	Source    string    `gorm:"default:device"`
	Timestamp time.Time `gorm:"index"`
}

// NewPostgresDB opens the connection and applies migrations. Called once at
// process start; the returned handle is shared by all repositories.
func NewPostgresDB(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto-migrate the schema first; registered migrations build on it
	if err := db.AutoMigrate(&User{}, &MealRecord{}, &GlucoseReading{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	if err := migrations.RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database connection established and migrations completed")
	return db, nil
}
