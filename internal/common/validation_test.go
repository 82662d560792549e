package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorCollectsFieldErrors(t *testing.T) {
	err := NewValidator().
		Field("series", "", Required).
		Field("last_issued", int64(-1), NonNegative).
		Error()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Contains(t, appErr.Message, "series")
	assert.Contains(t, appErr.Message, "last_issued")
}

func TestValidatorPassesCleanInput(t *testing.T) {
	err := NewValidator().
		Field("series", "HM", Required).
		Field("last_issued", int64(0), NonNegative).
		Field("id", "73a6872f-7c16-4c2a-9d3e-1f87a1f2b0aa", UUID).
		Error()
	assert.NoError(t, err)
}

func TestValidationRules(t *testing.T) {
	assert.Nil(t, Required("f", "value"))
	assert.NotNil(t, Required("f", "   "))
	assert.NotNil(t, Required("f", nil))
	assert.NotNil(t, Required("f", (*string)(nil)))

	assert.Nil(t, NonNegative("f", int64(0)))
	assert.NotNil(t, NonNegative("f", int64(-5)))

	assert.Nil(t, UUID("f", "73a6872f-7c16-4c2a-9d3e-1f87a1f2b0aa"))
	assert.NotNil(t, UUID("f", "not-a-uuid"))
	assert.NotNil(t, UUID("f", 42))
}
