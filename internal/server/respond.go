package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	apperrors "github.com/macrogi/macrogi-server/internal/errors"
	"github.com/macrogi/macrogi-server/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the application error taxonomy onto HTTP statuses and a
// uniform {error} body. Validation problems surface their message; infra
// failures get a generic body. Logging severity follows the error type and
// is handled by the errors package.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.NewHandler(logger.FromContext(r.Context())).Handle(r.Context(), err)

	var status int
	var message string

	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		status = http.StatusBadRequest
		message = userMessage(err)
	case apperrors.ErrorTypeNotFound:
		status = http.StatusNotFound
		message = userMessage(err)
	case apperrors.ErrorTypeInsufficientData:
		status = http.StatusUnprocessableEntity
		message = userMessage(err)
	case apperrors.ErrorTypeExternal, apperrors.ErrorTypeTimeout:
		status = http.StatusServiceUnavailable
		message = "upstream service unavailable"
	default:
		status = http.StatusInternalServerError
		message = "internal server error"
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: message})
}

// userMessage unwraps the AppError message without the internal detail
func userMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
