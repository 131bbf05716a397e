package errors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeValidation, TypeOf(NewValidationError("bad input")))
	assert.Equal(t, ErrorTypeNotFound, TypeOf(ErrUserNotFound))
	assert.Equal(t, ErrorTypeInternal, TypeOf(errors.New("plain")))
	assert.Equal(t, ErrorTypeInternal, TypeOf(nil))
}

func TestIsTypeUnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("resolving params: %w", NewInsufficientDataError("no history"))
	assert.True(t, IsType(err, ErrorTypeInsufficientData))
	assert.False(t, IsType(err, ErrorTypeValidation))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, ErrorTypeDatabase, "DB_ERROR", "query failed")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorTypeDatabase, TypeOf(err))
	assert.Contains(t, err.Error(), "query failed")
}

func TestErrorMessageOmitsInternalWhenAbsent(t *testing.T) {
	err := New(ErrorTypeValidation, "INVALID_INPUT", "user_id is required")
	assert.Equal(t, "validation: user_id is required", err.Error())
}

func TestHandlerLogsBySeverity(t *testing.T) {
	newHandler := func(buf *bytes.Buffer) *Handler {
		return NewHandler(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	ctx := context.Background()

	t.Run("client errors log as warnings", func(t *testing.T) {
		var buf bytes.Buffer
		newHandler(&buf).Handle(ctx, NewValidationError("user_id is required"))

		assert.Contains(t, buf.String(), "level=WARN")
		assert.Contains(t, buf.String(), "Request error")
		assert.Contains(t, buf.String(), "user_id is required")
	})

	t.Run("infra errors log as errors", func(t *testing.T) {
		var buf bytes.Buffer
		newHandler(&buf).Handle(ctx, NewDatabaseError(errors.New("connection reset")))

		assert.Contains(t, buf.String(), "level=ERROR")
		assert.Contains(t, buf.String(), "Critical error")
		assert.Contains(t, buf.String(), "connection reset")
	})

	t.Run("plain errors log as errors", func(t *testing.T) {
		var buf bytes.Buffer
		newHandler(&buf).Handle(ctx, errors.New("something broke"))

		assert.Contains(t, buf.String(), "level=ERROR")
		assert.Contains(t, buf.String(), "something broke")
	})

	t.Run("nil is a no-op", func(t *testing.T) {
		var buf bytes.Buffer
		newHandler(&buf).Handle(ctx, nil)

		assert.Empty(t, buf.String())
	})
}
