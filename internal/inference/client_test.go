package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/macrogi/macrogi-server/internal/config"
	apperrors "github.com/macrogi/macrogi-server/internal/errors"
	"github.com/macrogi/macrogi-server/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return NewClient(config.InferenceConfig{BaseURL: baseURL, Timeout: 2 * time.Second})
}

func TestPredictGI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze-food", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "White rice", req["food_name"])

		json.NewEncoder(w).Encode(map[string]interface{}{"gi": 72.4})
	}))
	defer srv.Close()

	gi, err := testClient(srv.URL).PredictGI(context.Background(), "White rice", units.Nutrients{Carbs: 45})
	require.NoError(t, err)
	assert.Equal(t, 72.4, gi)
}

func TestPredictGIModelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "model not loaded"})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).PredictGI(context.Background(), "Bread", units.Nutrients{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestPredictGIBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).PredictGI(context.Background(), "Bread", units.Nutrients{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestForecastBG(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast-bg", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, true, req["explain"])
		assert.Len(t, req["readings"], 2)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"pred_30min": 140.2,
			"pred_60min": 151.8,
			"pred_90min": 147.0,
			"explanations": map[string]interface{}{
				"30min":   map[string]float64{"IOB": -4.2, "carbs": 11.0},
				"summary": "rising after recent carbs",
			},
		})
	}))
	defer srv.Close()

	readings := []ForecastReading{
		{Glucose: 120, Timestamp: time.Now().Add(-5 * time.Minute)},
		{Glucose: 124, Timestamp: time.Now()},
	}
	forecast, err := testClient(srv.URL).ForecastBG(context.Background(), readings, 1)
	require.NoError(t, err)

	assert.Equal(t, 140.2, forecast.Pred30)
	assert.Equal(t, 151.8, forecast.Pred60)
	assert.Equal(t, 147.0, forecast.Pred90)
	assert.Equal(t, "rising after recent carbs", forecast.Summary)
	require.Contains(t, forecast.Explanations, "30min")
	assert.Equal(t, -4.2, forecast.Explanations["30min"]["IOB"])
}

func TestForecastBGTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(config.InferenceConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.ForecastBG(ctx, nil, 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout))
}

func TestExtractNutrients(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scan-food", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		json.NewEncoder(w).Encode(map[string]interface{}{
			"nutrients": map[string]float64{"Carbohydrate": 30, "salt": 0.5},
		})
	}))
	defer srv.Close()

	client := NewOCRClient(config.InferenceConfig{OCRURL: srv.URL, Timeout: 2 * time.Second})
	raw, err := client.ExtractNutrients(context.Background(), []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, 30.0, raw["Carbohydrate"])
	assert.Equal(t, 0.5, raw["salt"])
}

func TestExtractNutrientsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "no table detected"})
	}))
	defer srv.Close()

	client := NewOCRClient(config.InferenceConfig{OCRURL: srv.URL, Timeout: 2 * time.Second})
	_, err := client.ExtractNutrients(context.Background(), []byte("jpeg-bytes"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestForecastBGConnectionRefused(t *testing.T) {
	_, err := testClient("http://127.0.0.1:1").ForecastBG(context.Background(), nil, 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}
