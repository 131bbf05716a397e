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
)

const (
	statsLookback = 24 * time.Hour

	// the sequence model consumes the last 12 readings (60 min at 5-min
	// intervals); IOB/COB decay needs meal history from further back
	forecastInputLen = 12
	forecastLookback = 4 * time.Hour
	forecastSlot     = 5 * time.Minute

	cobHalfLife = 45 * time.Minute
)

var forecastHorizons = []time.Duration{30 * time.Minute, 60 * time.Minute, 90 * time.Minute}

// GlucoseHistoryReader provides CGM readings for charting and forecasting
type GlucoseHistoryReader interface {
	ListSince(ctx context.Context, userID uint, since time.Time) ([]domain.GlucoseReading, error)
	Create(ctx context.Context, reading *domain.GlucoseReading) error
}

// GlucoseService assembles the glucose-stats payload: the 24 h chart
// series, the latest reading, derived insights, and (when enough data
// exists) the external model's forecast merged into a chart-ready line.
type GlucoseService struct {
	glucose    GlucoseHistoryReader
	meals      MealWindowReader
	forecaster inference.BGForecaster
	now        func() time.Time
}

// NewGlucoseService creates a new glucose stats service
func NewGlucoseService(glucose GlucoseHistoryReader, meals MealWindowReader, forecaster inference.BGForecaster) *GlucoseService {
	return &GlucoseService{
		glucose:    glucose,
		meals:      meals,
		forecaster: forecaster,
		now:        time.Now,
	}
}

// AddReading stores one CGM measurement
func (s *GlucoseService) AddReading(ctx context.Context, reading *domain.GlucoseReading) error {
	if reading.Value <= 0 {
		return apperrors.NewValidationError("bg_value must be > 0")
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = s.now()
	}
	if err := s.glucose.Create(ctx, reading); err != nil {
		return fmt.Errorf("failed to store CGM reading: %w", err)
	}
	return nil
}

// ChartPoint is one {x, y} pair for the glucose line chart
type ChartPoint struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// LatestReading is the headline card value
type LatestReading struct {
	Value float64 `json:"value"`
	Time  string  `json:"time"`
}

// GlucoseStats is the full glucose dashboard payload. ForecastData is null
// when no forecast could be produced; the chart and insights still render.
type GlucoseStats struct {
	ChartData    []ChartPoint           `json:"chart_data"`
	ForecastData []ChartPoint           `json:"forecast_data"`
	Latest       LatestReading          `json:"latest"`
	Insights     []domain.Insight       `json:"insights"`
	Explanations map[string]interface{} `json:"explanations,omitempty"`
}

// Stats builds the glucose dashboard for a user from the trailing 24 hours
// of readings. A failed or thin forecast degrades to a null forecast series
// rather than failing the whole response.
func (s *GlucoseService) Stats(ctx context.Context, userID uint) (*GlucoseStats, error) {
	now := s.now()
	readings, err := s.glucose.ListSince(ctx, userID, now.Add(-statsLookback))
	if err != nil {
		return nil, fmt.Errorf("failed to query CGM readings: %w", err)
	}
	if len(readings) == 0 {
		return nil, apperrors.ErrNoGlucoseData
	}

	chart := make([]ChartPoint, 0, len(readings))
	for _, r := range readings {
		chart = append(chart, ChartPoint{X: r.Timestamp.UTC().Format(time.RFC3339), Y: r.Value})
	}

	latest := readings[len(readings)-1]
	stats := &GlucoseStats{
		ChartData: chart,
		Latest: LatestReading{
			Value: latest.Value,
			Time:  latest.Timestamp.UTC().Format("15:04"),
		},
		Insights: generateInsights(readings),
	}

	forecast, points := s.assembleForecast(ctx, userID, readings)
	stats.ForecastData = points
	if forecast != nil {
		stats.Explanations = explanationPayload(forecast)
	}

	return stats, nil
}

// assembleForecast calls the external model and anchors its three horizons
// on the latest actual reading's timestamp, never on wall-clock now. Any
// upstream failure yields a nil series.
func (s *GlucoseService) assembleForecast(ctx context.Context, userID uint, readings []domain.GlucoseReading) (*domain.Forecast, []ChartPoint) {
	if len(readings) < forecastInputLen {
		return nil, nil
	}

	window := readings[len(readings)-forecastInputLen:]
	rows, err := s.buildForecastRows(ctx, userID, window)
	if err != nil {
		logger.FromContext(ctx).Warn("forecast feature build failed", "error", err)
		return nil, nil
	}

	forecast, err := s.forecaster.ForecastBG(ctx, rows, userID)
	if err != nil {
		logger.FromContext(ctx).Warn("BG forecast unavailable", "error", err)
		return nil, nil
	}

	latest := window[len(window)-1]
	anchor := latest.Timestamp.UTC()
	preds := []float64{forecast.Pred30, forecast.Pred60, forecast.Pred90}

	points := make([]ChartPoint, 0, len(forecastHorizons)+1)
	points = append(points, ChartPoint{X: anchor.Format(time.RFC3339), Y: latest.Value})
	for i, horizon := range forecastHorizons {
		points = append(points, ChartPoint{
			X: anchor.Add(horizon).Format(time.RFC3339),
			Y: preds[i],
		})
	}
	return forecast, points
}

// buildForecastRows reconstructs the model's feature rows: per-slot insulin
// and carb events from the food diary, with IOB/COB decayed exponentially
// across a 5-minute timeline covering the full lookback.
func (s *GlucoseService) buildForecastRows(ctx context.Context, userID uint, window []domain.GlucoseReading) ([]inference.ForecastReading, error) {
	start := window[0].Timestamp.Add(-forecastLookback)
	end := window[len(window)-1].Timestamp.Add(forecastSlot)

	meals, err := s.meals.ListWindow(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query meal events: %w", err)
	}

	type slotEvents struct {
		carbs, insulin float64
	}
	events := make(map[int64]*slotEvents)
	for _, meal := range meals {
		key := slotKey(meal.Timestamp)
		if events[key] == nil {
			events[key] = &slotEvents{}
		}
		events[key].carbs += meal.Carbs
		events[key].insulin += meal.Insulin
	}

	iobDecay := decayPerSlot(insulinHalfLife)
	cobDecay := decayPerSlot(cobHalfLife)

	iobAt := make(map[int64]float64)
	cobAt := make(map[int64]float64)
	var iob, cob float64
	for t := slotKey(start); t <= slotKey(end); t += int64(forecastSlot.Seconds()) {
		var carbsNow, insulinNow float64
		if ev := events[t]; ev != nil {
			carbsNow = ev.carbs
			insulinNow = ev.insulin
		}
		iob = iob*iobDecay + insulinNow
		cob = cob*cobDecay + carbsNow
		iobAt[t] = iob
		cobAt[t] = cob
	}

	rows := make([]inference.ForecastReading, 0, len(window))
	for _, r := range window {
		key := slotKey(r.Timestamp)
		row := inference.ForecastReading{
			Glucose:   r.Value,
			IOB:       iobAt[key],
			COB:       cobAt[key],
			Timestamp: r.Timestamp.UTC(),
		}
		if ev := events[key]; ev != nil {
			row.Insulin = ev.insulin
			row.Carbs = ev.carbs
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// slotKey rounds a timestamp down to its 5-minute slot, in epoch seconds
func slotKey(t time.Time) int64 {
	return t.UTC().Truncate(forecastSlot).Unix()
}

// decayPerSlot is the per-5-minute retention factor for a half-life
func decayPerSlot(halfLife time.Duration) float64 {
	return math.Pow(0.5, forecastSlot.Minutes()/halfLife.Minutes())
}

func explanationPayload(forecast *domain.Forecast) map[string]interface{} {
	if len(forecast.Explanations) == 0 && forecast.Summary == "" {
		return nil
	}
	payload := make(map[string]interface{}, len(forecast.Explanations)+1)
	for horizon, contrib := range forecast.Explanations {
		payload[horizon] = contrib
	}
	if forecast.Summary != "" {
		payload["summary"] = forecast.Summary
	}
	return payload
}
