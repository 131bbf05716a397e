// Package inference wraps the external model services: the GI regressor,
// the BG sequence forecaster, and the OCR nutrient extractor. The models
// are black boxes behind an HTTP API; this package owns the typed wire
// contracts and the timeout/degradation policy.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/macrogi/macrogi-server/internal/config"
	"github.com/macrogi/macrogi-server/internal/domain"
	apperrors "github.com/macrogi/macrogi-server/internal/errors"
	"github.com/macrogi/macrogi-server/internal/units"
)

// GIPredictor predicts glycemic index from a nutrient vector
type GIPredictor interface {
	PredictGI(ctx context.Context, foodName string, nutrients units.Nutrients) (float64, error)
}

// BGForecaster predicts glucose 30/60/90 minutes ahead from recent readings
type BGForecaster interface {
	ForecastBG(ctx context.Context, readings []ForecastReading, userID uint) (*domain.Forecast, error)
}

// NutrientExtractor turns a food label image into a raw nutrient mapping
type NutrientExtractor interface {
	ExtractNutrients(ctx context.Context, image []byte) (map[string]float64, error)
}

// ForecastReading is one 5-minute feature row sent to the forecaster
type ForecastReading struct {
	Glucose   float64   `json:"glucose"`
	Insulin   float64   `json:"insulin"`
	Carbs     float64   `json:"carbs"`
	IOB       float64   `json:"IOB"`
	COB       float64   `json:"COB"`
	Timestamp time.Time `json:"timestamp"`
}

// Client talks to the model-serving API over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an inference client with the configured timeout
func NewClient(cfg config.InferenceConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type giRequest struct {
	FoodName  string          `json:"food_name"`
	Nutrients units.Nutrients `json:"nutrients"`
}

type giResponse struct {
	GI    float64 `json:"gi"`
	Error string  `json:"error,omitempty"`
}

// PredictGI sends the nutrient vector to the GI regressor
func (c *Client) PredictGI(ctx context.Context, foodName string, nutrients units.Nutrients) (float64, error) {
	var resp giResponse
	if err := c.postJSON(ctx, "/analyze-food", giRequest{FoodName: foodName, Nutrients: nutrients}, &resp); err != nil {
		return 0, err
	}
	if resp.Error != "" {
		return 0, apperrors.New(apperrors.ErrorTypeExternal, "GI_MODEL", resp.Error)
	}
	return resp.GI, nil
}

type forecastRequest struct {
	UserID   uint              `json:"user_id"`
	Readings []ForecastReading `json:"readings"`
	Explain  bool              `json:"explain"`
}

type forecastResponse struct {
	Pred30       float64                    `json:"pred_30min"`
	Pred60       float64                    `json:"pred_60min"`
	Pred90       float64                    `json:"pred_90min"`
	Explanations map[string]json.RawMessage `json:"explanations,omitempty"`
	Error        string                     `json:"error,omitempty"`
}

// ForecastBG sends recent readings to the sequence model and returns the
// three-horizon prediction with optional per-horizon explanations.
func (c *Client) ForecastBG(ctx context.Context, readings []ForecastReading, userID uint) (*domain.Forecast, error) {
	var resp forecastResponse
	if err := c.postJSON(ctx, "/forecast-bg", forecastRequest{UserID: userID, Readings: readings, Explain: true}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, apperrors.New(apperrors.ErrorTypeExternal, "FORECAST_MODEL", resp.Error)
	}

	forecast := &domain.Forecast{
		Pred30: resp.Pred30,
		Pred60: resp.Pred60,
		Pred90: resp.Pred90,
	}

	// Explanations arrive keyed by horizon label, plus a "summary" string.
	// Contributions are passed through untouched; sign interpretation is a
	// rendering concern.
	if len(resp.Explanations) > 0 {
		forecast.Explanations = make(map[string]map[string]float64)
		for key, raw := range resp.Explanations {
			if key == "summary" {
				var summary string
				if err := json.Unmarshal(raw, &summary); err == nil {
					forecast.Summary = summary
				}
				continue
			}
			var contrib map[string]float64
			if err := json.Unmarshal(raw, &contrib); err != nil {
				continue
			}
			forecast.Explanations[key] = contrib
		}
	}

	return forecast, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return apperrors.NewTimeoutError("inference " + path)
		}
		return apperrors.NewUpstreamError(err, "inference")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.NewUpstreamError(
			fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path), "inference")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewUpstreamError(fmt.Errorf("decode response from %s: %w", path, err), "inference")
	}
	return nil
}
