package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_Positive(t *testing.T) {
	v := NewValidator()

	v.Positive("field", -1.0)
	assert.True(t, v.HasErrors())

	v = NewValidator()
	v.Positive("field", 0.0)
	assert.True(t, v.HasErrors())

	v = NewValidator()
	v.Positive("field", 1.0)
	assert.False(t, v.HasErrors())
}

func TestValidator_Symbol(t *testing.T) {
	v := NewValidator()

	v.Symbol("field", "invalid")
	assert.True(t, v.HasErrors())

	v = NewValidator()
	v.Symbol("field", "BTC/USDT")
	assert.False(t, v.HasErrors())

	v = NewValidator()
	v.Symbol("field", "ETH/BTC")
	assert.False(t, v.HasErrors())

	v = NewValidator()
	v.Symbol("field", "btc/usdt") // lowercase should fail
	assert.True(t, v.HasErrors())
}

func TestValidationErrors(t *testing.T) {
	errors := ValidationErrors{}
	assert.False(t, errors.HasErrors())
	assert.Equal(t, "", errors.Error())

	errors = ValidationErrors{
		ValidationError{Field: "field1", Message: "error1"},
	}
	assert.True(t, errors.HasErrors())
	assert.Contains(t, errors.Error(), "field1")

	errors = ValidationErrors{
		ValidationError{Field: "field1", Message: "error1"},
		ValidationError{Field: "field2", Message: "error2"},
	}
	assert.True(t, errors.HasErrors())
	assert.Contains(t, errors.Error(), "field1")
	assert.Contains(t, errors.Error(), "field2")
}
