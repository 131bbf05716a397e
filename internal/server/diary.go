package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/macrogi/macrogi-server/internal/domain"
	apperrors "github.com/macrogi/macrogi-server/internal/errors"
	"github.com/macrogi/macrogi-server/internal/services"
	"github.com/macrogi/macrogi-server/internal/units"
)

// DiaryService is the food diary save/list/delete surface
type DiaryService interface {
	SaveEntry(ctx context.Context, entry *domain.MealRecord) error
	GetUserEntries(ctx context.Context, userID uint, limit int) ([]domain.MealRecord, error)
	NutrientBreakdown(ctx context.Context, userID, entryID uint) ([]services.NutrientRow, error)
	DeleteEntry(ctx context.Context, userID, entryID uint) error
	Analyze(ctx context.Context, foodName string, raw map[string]float64) (*services.FoodAnalysis, error)
	Scan(ctx context.Context, foodName string, image []byte) (*services.FoodAnalysis, error)
}

// DiaryHandler serves the food diary endpoints
type DiaryHandler struct {
	Diary DiaryService
}

type saveEntryRequest struct {
	UserID   uint    `json:"user_id"`
	FoodName string  `json:"foodname"`
	MealType string  `json:"mealtype"`
	Calories float64 `json:"calories"`
	Carbs    float64 `json:"carbs"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
	Sodium   float64 `json:"sodium"`
	Salt     float64 `json:"salt,omitempty"`
	Insulin  float64 `json:"insulin"`
	GI       float64 `json:"gi"`
}

type saveEntryResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// SaveEntry handles POST /api/entries
func (h DiaryHandler) SaveEntry(w http.ResponseWriter, r *http.Request) {
	var req saveEntryRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}

	// labels sometimes report salt instead of sodium
	sodium := req.Sodium
	if sodium == 0 && req.Salt > 0 {
		sodium = units.SaltToSodiumMg(req.Salt)
	}

	entry := &domain.MealRecord{
		UserID:   req.UserID,
		FoodName: req.FoodName,
		MealType: req.MealType,
		Calories: req.Calories,
		Carbs:    req.Carbs,
		Protein:  req.Protein,
		Fat:      req.Fat,
		Fiber:    req.Fiber,
		Sodium:   sodium,
		Insulin:  req.Insulin,
		GI:       req.GI,
	}
	if err := h.Diary.SaveEntry(r.Context(), entry); err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, saveEntryResponse{
		Status:    "success",
		Message:   "Successfully saved to " + entry.MealType + " diary!",
		CreatedAt: entry.Timestamp.UTC().Format(time.RFC3339),
	})
}

type diaryEntryResponse struct {
	ID       uint    `json:"id"`
	FoodName string  `json:"foodname"`
	MealType string  `json:"mealtype"`
	Calories float64 `json:"calories"`
	Carbs    float64 `json:"carbs"`
	GI       float64 `json:"gi"`
	GL       float64 `json:"gl"`
	Insulin  float64 `json:"insulin"`
	Time     string  `json:"created_at"`
}

// ListEntries handles GET /api/entries?user_id=N&limit=50
func (h DiaryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, r, apperrors.NewValidationError("limit must be a positive integer"))
			return
		}
	}

	entries, err := h.Diary.GetUserEntries(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response := make([]diaryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, diaryEntryResponse{
			ID:       entry.ID,
			FoodName: entry.FoodName,
			MealType: entry.MealType,
			Calories: entry.Calories,
			Carbs:    entry.Carbs,
			GI:       entry.GI,
			GL:       entry.GL,
			Insulin:  entry.Insulin,
			Time:     entry.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	render.JSON(w, r, response)
}

type nutrientsResponse struct {
	Nutrients []services.NutrientRow `json:"nutrients"`
}

// Nutrients handles GET /api/entries/{id}/nutrients?user_id=N
func (h DiaryHandler) Nutrients(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entryID, err := urlEntryID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := h.Diary.NutrientBreakdown(r.Context(), userID, entryID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, nutrientsResponse{Nutrients: rows})
}

// DeleteEntry handles DELETE /api/entries/{id}?user_id=N
func (h DiaryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entryID, err := urlEntryID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Diary.DeleteEntry(r.Context(), userID, entryID); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, statusResponse{Status: "success"})
}

type analyzeRequest struct {
	FoodName  string             `json:"food_name"`
	Nutrients map[string]float64 `json:"nutrients"`
}

// Analyze handles POST /api/analyze-food
func (h DiaryHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}
	if len(req.Nutrients) == 0 {
		writeError(w, r, apperrors.NewValidationError("nutrients are required"))
		return
	}

	analysis, err := h.Diary.Analyze(r.Context(), req.FoodName, req.Nutrients)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, analysis)
}

// scans are bounded by the upload size the OCR service accepts
const maxScanUploadBytes = 10 << 20

// ScanFood handles POST /api/scan-food, a multipart image upload
func (h DiaryHandler) ScanFood(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxScanUploadBytes); err != nil {
		writeError(w, r, apperrors.NewValidationError("expected a multipart image upload"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperrors.NewValidationError("image file is required"))
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxScanUploadBytes))
	if err != nil {
		writeError(w, r, apperrors.NewValidationError("could not read uploaded image"))
		return
	}

	analysis, err := h.Diary.Scan(r.Context(), r.FormValue("food_name"), image)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, analysis)
}

func urlEntryID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, apperrors.NewValidationError("entry id must be a positive integer")
	}
	return uint(id), nil
}
