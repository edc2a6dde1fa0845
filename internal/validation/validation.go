// Package validation provides small, composable input checks shared by the
// components that accept external or computed values before acting on them.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return "validation errors: " + strings.Join(msgs, "; ")
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator provides validation utilities
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// AddError adds a validation error
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// Errors returns all validation errors
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Positive validates that a number is positive
func (v *Validator) Positive(field string, value float64) {
	if value <= 0 {
		v.AddError(field, "must be positive")
	}
}

var symbolRegex = regexp.MustCompile(`^[A-Z]{2,10}/[A-Z]{2,10}$`)

// Symbol validates trading pair symbol format (e.g., BTC/USDT)
func (v *Validator) Symbol(field, value string) {
	if !symbolRegex.MatchString(value) {
		v.AddError(field, "must be a valid symbol (e.g., BTC/USDT)")
	}
}
