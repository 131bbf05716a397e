package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/macrogi/macrogi-server/internal/domain"
)

const (
	defaultOverallDays = 30
	maxOverallDays     = 90
	maxOverallMonths   = 7
	topFoodCount       = 20
	topWeeklyGLCount   = 5
)

// canonical meal-type order, used everywhere a breakdown is emitted so
// identical data always yields identical output
var mealTypeOrder = []string{"Breakfast", "Lunch", "Dinner", "Snack", "Other"}

var weekdayLabels = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// MealWindowReader lists diary entries within a half-open time window
type MealWindowReader interface {
	ListWindow(ctx context.Context, userID uint, start, end time.Time) ([]domain.MealRecord, error)
}

// DashboardService aggregates food diary records into chart-ready payloads
// for the overall/weekly/daily dashboard views. It holds no state between
// calls; identical stored data and window boundaries produce identical
// output.
type DashboardService struct {
	meals MealWindowReader
	now   func() time.Time
}

// NewDashboardService creates a new aggregation service
func NewDashboardService(meals MealWindowReader) *DashboardService {
	return &DashboardService{
		meals: meals,
		now:   time.Now,
	}
}

// LineChart is one multi-series chart: shared labels, one series per metric
type LineChart struct {
	Labels   []string  `json:"labels"`
	Carb     []float64 `json:"carb"`
	GL       []float64 `json:"gl"`
	Calories []float64 `json:"calories"`
}

// PieChart is a labeled percentage breakdown summing to 100
type PieChart struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// RankedFood is one entry of a top-N food ranking
type RankedFood struct {
	Name  string  `json:"name"`
	GI    float64 `json:"gi,omitempty"`
	Carbs float64 `json:"carbs,omitempty"`
	GL    float64 `json:"gl,omitempty"`
}

// OverallDashboard is the trailing-month view payload
type OverallDashboard struct {
	LineChart LineChart    `json:"line_chart"`
	PieChart  PieChart     `json:"pie_chart"`
	TopGI     []RankedFood `json:"top_gi"`
	TopCarb   []RankedFood `json:"top_carb"`
}

// WeeklyDashboard is the Monday-start seven-day view payload
type WeeklyDashboard struct {
	GlycaemicLoad     float64      `json:"glycaemic_load"`
	Carbohydrates     float64      `json:"carbohydrates"`
	Calories          float64      `json:"calories"`
	LineLabels        []string     `json:"line_labels"`
	LineCarb          []float64    `json:"line_carb"`
	LineGL            []float64    `json:"line_gl"`
	LineCalories      []float64    `json:"line_calories"`
	Top5GL            []RankedFood `json:"top5_gl"`
	PieLabels         []string     `json:"pie_labels"`
	PieValues         []float64    `json:"pie_values"`
	DailyBreakdownGL  []float64    `json:"daily_breakdown_gl"`
	DailyBreakdownCbs []float64    `json:"daily_breakdown_carbs"`
	DailyBreakdownCal []float64    `json:"daily_breakdown_calories"`
}

// FoodEntry is one row of the daily food list
type FoodEntry struct {
	Time string  `json:"time"`
	Food string  `json:"food"`
	GL   float64 `json:"gl"`
}

// DailyDashboard is the single-calendar-day view payload
type DailyDashboard struct {
	GlycaemicLoad float64     `json:"glycaemic_load"`
	Carbohydrates float64     `json:"carbohydrates"`
	Calories      float64     `json:"calories"`
	FoodEntries   []FoodEntry `json:"food_entries"`
	LineLabels    []string    `json:"line_labels"`
	LineCarb      []float64   `json:"line_carb"`
	LineGL        []float64   `json:"line_gl"`
	LineCalories  []float64   `json:"line_calories"`
}

// Overall aggregates the trailing N days into month buckets plus top-food
// rankings and a meal-type GL breakdown.
func (s *DashboardService) Overall(ctx context.Context, userID uint, days int) (*OverallDashboard, error) {
	if days <= 0 {
		days = defaultOverallDays
	}
	if days > maxOverallDays {
		days = maxOverallDays
	}

	end := s.now().UTC()
	start := end.AddDate(0, 0, -days)

	entries, err := s.meals.ListWindow(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query meal records: %w", err)
	}

	type bucket struct {
		carbs, gl, calories float64
	}
	monthly := make(map[string]*bucket)
	var monthKeys []time.Time
	seen := make(map[string]bool)

	for _, entry := range entries {
		key := entry.Timestamp.UTC().Format("Jan 06")
		if !seen[key] {
			seen[key] = true
			first := time.Date(entry.Timestamp.UTC().Year(), entry.Timestamp.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
			monthKeys = append(monthKeys, first)
			monthly[key] = &bucket{}
		}
		b := monthly[key]
		b.carbs += entry.Carbs
		b.gl += entry.GL
		b.calories += entry.Calories
	}

	sort.Slice(monthKeys, func(i, j int) bool { return monthKeys[i].Before(monthKeys[j]) })
	if len(monthKeys) > maxOverallMonths {
		monthKeys = monthKeys[len(monthKeys)-maxOverallMonths:]
	}

	line := LineChart{
		Labels:   make([]string, 0, len(monthKeys)),
		Carb:     make([]float64, 0, len(monthKeys)),
		GL:       make([]float64, 0, len(monthKeys)),
		Calories: make([]float64, 0, len(monthKeys)),
	}
	for _, m := range monthKeys {
		key := m.Format("Jan 06")
		b := monthly[key]
		line.Labels = append(line.Labels, key)
		line.Carb = append(line.Carb, round1(b.carbs))
		line.GL = append(line.GL, round1(b.gl))
		line.Calories = append(line.Calories, round1(b.calories))
	}

	topGI := make([]RankedFood, 0, topFoodCount)
	for _, f := range rankFoods(entries, func(e domain.MealRecord) float64 { return e.GI }, topFoodCount) {
		topGI = append(topGI, RankedFood{Name: f.name, GI: f.value})
	}
	topCarb := make([]RankedFood, 0, topFoodCount)
	for _, f := range rankFoods(entries, func(e domain.MealRecord) float64 { return e.Carbs }, topFoodCount) {
		topCarb = append(topCarb, RankedFood{Name: f.name, Carbs: f.value})
	}

	labels, values := mealTypeBreakdown(entries)

	return &OverallDashboard{
		LineChart: line,
		PieChart:  PieChart{Labels: labels, Values: values},
		TopGI:     topGI,
		TopCarb:   topCarb,
	}, nil
}

// Weekly aggregates a Monday-start seven-day window into per-weekday
// buckets. Days without records report zeroes so charts render unbroken.
func (s *DashboardService) Weekly(ctx context.Context, userID uint, weekStart time.Time) (*WeeklyDashboard, error) {
	start := mondayOf(weekStart)
	end := start.AddDate(0, 0, 7)

	entries, err := s.meals.ListWindow(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query meal records: %w", err)
	}

	carb := make([]float64, 7)
	gl := make([]float64, 7)
	calories := make([]float64, 7)
	foodGL := make(map[string]float64)

	for _, entry := range entries {
		day := int(entry.Timestamp.UTC().Sub(start).Hours() / 24)
		if day < 0 || day > 6 {
			continue
		}
		carb[day] += entry.Carbs
		gl[day] += entry.GL
		calories[day] += entry.Calories
		foodGL[foodName(entry)] += entry.GL
	}

	var totalGL, totalCarbs, totalCal float64
	for i := 0; i < 7; i++ {
		totalGL += gl[i]
		totalCarbs += carb[i]
		totalCal += calories[i]
		carb[i] = round1(carb[i])
		gl[i] = round1(gl[i])
		calories[i] = round1(calories[i])
	}

	top5 := make([]RankedFood, 0, topWeeklyGLCount)
	for _, name := range sortedKeysByValue(foodGL) {
		if len(top5) == topWeeklyGLCount {
			break
		}
		top5 = append(top5, RankedFood{Name: name, GL: math.Round(foodGL[name])})
	}

	labels, values := mealTypeBreakdown(entries)

	return &WeeklyDashboard{
		GlycaemicLoad:     math.Round(totalGL),
		Carbohydrates:     math.Round(totalCarbs),
		Calories:          math.Round(totalCal),
		LineLabels:        weekdayLabels,
		LineCarb:          carb,
		LineGL:            gl,
		LineCalories:      calories,
		Top5GL:            top5,
		PieLabels:         labels,
		PieValues:         values,
		DailyBreakdownGL:  gl,
		DailyBreakdownCbs: carb,
		DailyBreakdownCal: calories,
	}, nil
}

// Daily aggregates one calendar day; the series has one point per entry.
func (s *DashboardService) Daily(ctx context.Context, userID uint, date time.Time) (*DailyDashboard, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	entries, err := s.meals.ListWindow(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query meal records: %w", err)
	}

	result := &DailyDashboard{
		FoodEntries:  []FoodEntry{},
		LineLabels:   []string{},
		LineCarb:     []float64{},
		LineGL:       []float64{},
		LineCalories: []float64{},
	}

	var totalGL, totalCarbs, totalCal float64
	for _, entry := range entries {
		totalGL += entry.GL
		totalCarbs += entry.Carbs
		totalCal += entry.Calories

		label := entry.Timestamp.UTC().Format("15:04")
		result.FoodEntries = append(result.FoodEntries, FoodEntry{
			Time: label,
			Food: foodName(entry),
			GL:   math.Round(entry.GL),
		})
		result.LineLabels = append(result.LineLabels, label)
		result.LineCarb = append(result.LineCarb, round1(entry.Carbs))
		result.LineGL = append(result.LineGL, round1(entry.GL))
		result.LineCalories = append(result.LineCalories, round1(entry.Calories))
	}

	// placeholder point so charts render an axis for empty days
	if len(entries) == 0 {
		result.LineLabels = []string{"--"}
		result.LineCarb = []float64{0}
		result.LineGL = []float64{0}
		result.LineCalories = []float64{0}
	}

	result.GlycaemicLoad = math.Round(totalGL)
	result.Carbohydrates = math.Round(totalCarbs)
	result.Calories = math.Round(totalCal)
	return result, nil
}

// mondayOf snaps a date back to the Monday midnight (UTC) of its week, so
// the weekly window is stable no matter which day the client sends.
func mondayOf(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func foodName(entry domain.MealRecord) string {
	if entry.FoodName == "" {
		return "Unknown"
	}
	return entry.FoodName
}

func canonicalMealType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "" {
		return "Other"
	}
	t = strings.ToUpper(t[:1]) + t[1:]
	for _, known := range mealTypeOrder {
		if t == known {
			return t
		}
	}
	return "Other"
}

// mealTypeBreakdown turns records into GL share percentages per meal type,
// in canonical order, summing to exactly 100 via largest-remainder
// adjustment. Empty input yields empty slices, not an error.
func mealTypeBreakdown(entries []domain.MealRecord) ([]string, []float64) {
	shares := make(map[string]float64)
	var total float64
	for _, entry := range entries {
		shares[canonicalMealType(entry.MealType)] += entry.GL
		total += entry.GL
	}

	labels := []string{}
	values := []float64{}
	if total <= 0 {
		return labels, values
	}

	largestIdx := -1
	var largest float64
	var sum float64
	for _, mealType := range mealTypeOrder {
		gl, ok := shares[mealType]
		if !ok || gl <= 0 {
			continue
		}
		pct := round1(gl / total * 100)
		labels = append(labels, mealType)
		values = append(values, pct)
		sum += pct
		if gl > largest {
			largest = gl
			largestIdx = len(values) - 1
		}
	}

	// rounding residue lands on the biggest slice
	if largestIdx >= 0 {
		values[largestIdx] = round1(values[largestIdx] + (100 - sum))
	}
	return labels, values
}

type foodValue struct {
	name  string
	value float64
}

// rankFoods sorts entries by the given metric descending, name ascending on
// ties, and returns the top n.
func rankFoods(entries []domain.MealRecord, metric func(domain.MealRecord) float64, n int) []foodValue {
	ranked := make([]foodValue, 0, len(entries))
	for _, entry := range entries {
		ranked = append(ranked, foodValue{name: foodName(entry), value: metric(entry)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].value != ranked[j].value {
			return ranked[i].value > ranked[j].value
		}
		return ranked[i].name < ranked[j].name
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// sortedKeysByValue orders map keys by value descending, key ascending on
// ties, for deterministic top-N output.
func sortedKeysByValue(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
