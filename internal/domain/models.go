package domain

import (
	"time"
)

// ParamSource describes where resolved insulin parameters came from.
type ParamSource string

const (
	SourceExplicit   ParamSource = "explicit"
	SourceCalculated ParamSource = "calculated"
	SourceDefault    ParamSource = "default"
)

// UserProfile represents a user in the system
type UserProfile struct {
	ID        uint
	CreatedAt time.Time
	UpdatedAt time.Time
	Email     string
	Username  string
	// Explicit insulin parameters. Zero means "not set"; the resolver
	// falls back to TDD calculation or clinical defaults.
	ISF float64 // mg/dL drop per insulin unit
	ICR float64 // grams of carbs covered per insulin unit
}

// ProfileParams is the resolved ISF/ICR pair for a user
type ProfileParams struct {
	ISF    float64
	ICR    float64
	TDD    float64 // mean total daily dose used for calculation, 0 unless calculated
	Source ParamSource
}

// MealRecord represents one food diary entry
type MealRecord struct {
	ID        uint
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    uint
	FoodName  string
	MealType  string // breakfast/lunch/dinner/snack/other
	Calories  float64 // kcal
	Carbs     float64 // g
	Protein   float64 // g
	Fat       float64 // g
	Fiber     float64 // g
	Sodium    float64 // mg
	Insulin   float64 // units logged with this meal
	GI        float64
	GL        float64
	Timestamp time.Time
}

// GlucoseReading represents a single CGM measurement
type GlucoseReading struct {
	ID        uint
	CreatedAt time.Time
	UserID    uint
	Value     float64 // mg/dL
	Source    string  // "device" or "simulator"
	Timestamp time.Time
}

// DoseRecord is an administered insulin dose used for IOB estimation
type DoseRecord struct {
	Timestamp time.Time
	Units     float64
}

// DoseRecommendation is a computed dose breakdown. Never persisted.
type DoseRecommendation struct {
	MealDose       float64
	CorrectionDose float64
	IOBAdjustment  float64
	TotalDose      float64
	CurrentBG      float64
	ISF            float64
	ICR            float64
}

// ForecastPoint is one chart point, timestamp paired with a value
type ForecastPoint struct {
	Time  time.Time
	Value float64
}

// Forecast holds the external model's multi-horizon predictions
type Forecast struct {
	Pred30 float64
	Pred60 float64
	Pred90 float64
	// Feature contributions per horizon label ("30min"/"60min"/"90min").
	// Passed through untouched; downstream rendering interprets sign.
	Explanations map[string]map[string]float64
	Summary      string
}

// Insight is one dashboard observation derived from glucose history
type Insight struct {
	Icon     string `json:"icon"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Severity string `json:"severity"` // good/warning/danger/info
}
