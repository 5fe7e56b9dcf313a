package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: code not found", NewNotFoundError("code not found").Error())
	assert.Equal(t,
		"EXTERNAL: rate dataset request failed: context deadline exceeded",
		NewExternalError("rate dataset request failed", context.DeadlineExceeded).Error(),
	)
}

func TestAppError_Unwrap(t *testing.T) {
	err := NewExternalError("rate dataset request failed", context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsTypeAndTypeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"validation", NewValidationError("bad"), ErrorTypeValidation},
		{"internal", NewInternalError("boom", nil), ErrorTypeInternal},
		{"malformed", NewMalformedError("not an array", nil), ErrorTypeMalformed},
		{"wrapped external", fmt.Errorf("lookup: %w", NewExternalError("status 503", nil)), ErrorTypeExternal},
		{"plain error", fmt.Errorf("plain"), ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.err))
		})
	}

	assert.True(t, IsType(NewMalformedError("x", nil), ErrorTypeMalformed))
	assert.False(t, IsType(NewMalformedError("x", nil), ErrorTypeExternal))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeInternal))
}
