package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/macrogi/macrogi-server/internal/config"
	apperrors "github.com/macrogi/macrogi-server/internal/errors"
)

// OCRClient talks to the external label-extraction service. The table
// detection and text extraction pipeline is entirely server-side there;
// this client only ships the image and reads back the nutrient mapping.
type OCRClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOCRClient creates an OCR client with the configured timeout
func NewOCRClient(cfg config.InferenceConfig) *OCRClient {
	return &OCRClient{
		baseURL: cfg.OCRURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type ocrResponse struct {
	Nutrients map[string]float64 `json:"nutrients"`
	Error     string             `json:"error,omitempty"`
}

// ExtractNutrients uploads a food label image and returns the raw nutrient
// mapping as extracted; key normalization happens in the units package.
func (c *OCRClient) ExtractNutrients(ctx context.Context, image []byte) (map[string]float64, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "label.jpg")
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := writer.Close(); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scan-food", &body)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstreamError(err, "ocr")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewUpstreamError(fmt.Errorf("unexpected status %d", resp.StatusCode), "ocr")
	}

	var parsed ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewUpstreamError(fmt.Errorf("decode ocr response: %w", err), "ocr")
	}
	if parsed.Error != "" {
		return nil, apperrors.New(apperrors.ErrorTypeExternal, "OCR", parsed.Error)
	}
	return parsed.Nutrients, nil
}
