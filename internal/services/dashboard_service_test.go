package services

import (
	"context"
	"testing"
	"time"

	"github.com/macrogi/macrogi-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMealWindow struct {
	listFn func(ctx context.Context, userID uint, start, end time.Time) ([]domain.MealRecord, error)
}

func (m mockMealWindow) ListWindow(ctx context.Context, userID uint, start, end time.Time) ([]domain.MealRecord, error) {
	return m.listFn(ctx, userID, start, end)
}

func windowReader(entries []domain.MealRecord) mockMealWindow {
	return mockMealWindow{listFn: func(ctx context.Context, userID uint, start, end time.Time) ([]domain.MealRecord, error) {
		var out []domain.MealRecord
		for _, e := range entries {
			if !e.Timestamp.Before(start) && e.Timestamp.Before(end) {
				out = append(out, e)
			}
		}
		return out, nil
	}}
}

func meal(ts time.Time, food, mealType string, carbs, gl, calories float64) domain.MealRecord {
	return domain.MealRecord{
		FoodName:  food,
		MealType:  mealType,
		Carbs:     carbs,
		GL:        gl,
		Calories:  calories,
		Timestamp: ts,
	}
}

func TestWeeklySnapsToMonday(t *testing.T) {
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	var gotStart, gotEnd time.Time
	svc := NewDashboardService(mockMealWindow{listFn: func(ctx context.Context, userID uint, start, end time.Time) ([]domain.MealRecord, error) {
		gotStart, gotEnd = start, end
		return nil, nil
	}})

	// any day of the week resolves to the same window
	for d := 0; d < 7; d++ {
		_, err := svc.Weekly(context.Background(), 1, monday.AddDate(0, 0, d).Add(13*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, monday, gotStart)
		assert.Equal(t, monday.AddDate(0, 0, 7), gotEnd)
	}
}

func TestWeeklyAggregation(t *testing.T) {
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	entries := []domain.MealRecord{
		meal(monday.Add(8*time.Hour), "Oatmeal", "breakfast", 40, 22, 300),
		meal(monday.Add(13*time.Hour), "Pasta", "lunch", 60, 30, 550),
		meal(monday.AddDate(0, 0, 2).Add(19*time.Hour), "Rice", "dinner", 50, 28, 450),
		// next Monday midnight is outside the half-open window
		meal(monday.AddDate(0, 0, 7), "Excluded", "lunch", 100, 50, 800),
	}
	svc := NewDashboardService(windowReader(entries))

	dash, err := svc.Weekly(context.Background(), 1, monday)
	require.NoError(t, err)

	assert.Equal(t, 80.0, dash.GlycaemicLoad)
	assert.Equal(t, 150.0, dash.Carbohydrates)
	assert.Equal(t, 1300.0, dash.Calories)
	assert.Equal(t, []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}, dash.LineLabels)
	assert.Equal(t, []float64{100, 0, 50, 0, 0, 0, 0}, dash.LineCarb)
	assert.Equal(t, []float64{52, 0, 28, 0, 0, 0, 0}, dash.LineGL)

	require.Len(t, dash.Top5GL, 3)
	assert.Equal(t, "Pasta", dash.Top5GL[0].Name)
	assert.Equal(t, 30.0, dash.Top5GL[0].GL)
	assert.Equal(t, "Rice", dash.Top5GL[1].Name)
	assert.Equal(t, "Oatmeal", dash.Top5GL[2].Name)
}

func TestWeeklyIdempotent(t *testing.T) {
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	entries := []domain.MealRecord{
		meal(monday.Add(8*time.Hour), "Oatmeal", "breakfast", 40, 22.3, 300),
		meal(monday.Add(13*time.Hour), "Pasta", "lunch", 60, 30.1, 550),
	}
	svc := NewDashboardService(windowReader(entries))

	first, err := svc.Weekly(context.Background(), 1, monday)
	require.NoError(t, err)
	second, err := svc.Weekly(context.Background(), 1, monday)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDailyEmpty(t *testing.T) {
	svc := NewDashboardService(windowReader(nil))

	dash, err := svc.Daily(context.Background(), 1, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Zero(t, dash.GlycaemicLoad)
	assert.Empty(t, dash.FoodEntries)
	assert.Equal(t, []string{"--"}, dash.LineLabels)
	assert.Equal(t, []float64{0}, dash.LineCarb)
	assert.Equal(t, []float64{0}, dash.LineGL)
	assert.Equal(t, []float64{0}, dash.LineCalories)
}

func TestDailyPerEntrySeries(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	entries := []domain.MealRecord{
		meal(day.Add(7*time.Hour+30*time.Minute), "Toast", "breakfast", 30, 18, 200),
		meal(day.Add(12*time.Hour+15*time.Minute), "", "lunch", 55, 26.4, 480),
	}
	svc := NewDashboardService(windowReader(entries))

	dash, err := svc.Daily(context.Background(), 1, day.Add(10*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 44.0, dash.GlycaemicLoad) // round(18+26.4)
	assert.Equal(t, 85.0, dash.Carbohydrates)
	require.Len(t, dash.FoodEntries, 2)
	assert.Equal(t, FoodEntry{Time: "07:30", Food: "Toast", GL: 18}, dash.FoodEntries[0])
	assert.Equal(t, "Unknown", dash.FoodEntries[1].Food)
	assert.Equal(t, []string{"07:30", "12:15"}, dash.LineLabels)
	assert.Equal(t, []float64{18, 26.4}, dash.LineGL)
}

func TestOverallMonthBuckets(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	entries := []domain.MealRecord{
		meal(time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC), "Bread", "breakfast", 30, 20, 250),
		meal(time.Date(2026, 2, 25, 13, 0, 0, 0, time.UTC), "Rice", "lunch", 50, 28, 400),
		meal(time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC), "Pasta", "dinner", 60, 30, 550),
	}
	svc := NewDashboardService(windowReader(entries))
	svc.now = func() time.Time { return now }

	dash, err := svc.Overall(context.Background(), 1, 30)
	require.NoError(t, err)

	assert.Equal(t, []string{"Feb 26", "Mar 26"}, dash.LineChart.Labels)
	assert.Equal(t, []float64{80, 60}, dash.LineChart.Carb)
	assert.Equal(t, []float64{48, 30}, dash.LineChart.GL)

	require.Len(t, dash.TopGI, 3)
	require.Len(t, dash.TopCarb, 3)
	assert.Equal(t, "Pasta", dash.TopCarb[0].Name)
	assert.Equal(t, 60.0, dash.TopCarb[0].Carbs)
}

func TestOverallClampsDays(t *testing.T) {
	var gotStart, gotEnd time.Time
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	svc := NewDashboardService(mockMealWindow{listFn: func(ctx context.Context, userID uint, start, end time.Time) ([]domain.MealRecord, error) {
		gotStart, gotEnd = start, end
		return nil, nil
	}})
	svc.now = func() time.Time { return now }

	_, err := svc.Overall(context.Background(), 1, 365)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -maxOverallDays), gotStart)
	assert.Equal(t, now, gotEnd)

	_, err = svc.Overall(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -defaultOverallDays), gotStart)
}

func TestMealTypeBreakdown(t *testing.T) {
	t.Run("percentages sum to exactly 100", func(t *testing.T) {
		entries := []domain.MealRecord{
			{MealType: "breakfast", GL: 10},
			{MealType: "lunch", GL: 10},
			{MealType: "dinner", GL: 10},
		}
		labels, values := mealTypeBreakdown(entries)
		assert.Equal(t, []string{"Breakfast", "Lunch", "Dinner"}, labels)
		var sum float64
		for _, v := range values {
			sum += v
		}
		assert.Equal(t, 100.0, sum)
	})

	t.Run("unknown and blank types fold into Other", func(t *testing.T) {
		entries := []domain.MealRecord{
			{MealType: "brunch", GL: 25},
			{MealType: "", GL: 25},
			{MealType: "LUNCH", GL: 50},
		}
		labels, values := mealTypeBreakdown(entries)
		assert.Equal(t, []string{"Lunch", "Other"}, labels)
		assert.Equal(t, []float64{50, 50}, values)
	})

	t.Run("zero GL yields empty breakdown", func(t *testing.T) {
		labels, values := mealTypeBreakdown([]domain.MealRecord{{MealType: "lunch", GL: 0}})
		assert.Empty(t, labels)
		assert.Empty(t, values)
	})
}

func TestRankFoodsDeterministicTies(t *testing.T) {
	entries := []domain.MealRecord{
		{FoodName: "Banana", GI: 55},
		{FoodName: "Apple", GI: 55},
		{FoodName: "Rice", GI: 70},
	}
	ranked := rankFoods(entries, func(e domain.MealRecord) float64 { return e.GI }, 20)
	require.Len(t, ranked, 3)
	assert.Equal(t, "Rice", ranked[0].name)
	assert.Equal(t, "Apple", ranked[1].name)
	assert.Equal(t, "Banana", ranked[2].name)
}
