package common

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// FieldError represents one failed rule on one field
type FieldError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validator collects field errors
type Validator struct {
	errors []FieldError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]FieldError, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// Optional runs rules only when value is a non-nil pointer.
func (v *Validator) Optional(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	if isNilPointer(value) {
		return v
	}
	return v.Field(fieldName, value, rules...)
}

// Add records a custom failure.
func (v *Validator) Add(fieldName string, value interface{}, message string) *Validator {
	v.errors = append(v.errors, FieldError{Field: fieldName, Value: value, Message: message})
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Error returns a combined error wrapping ErrValidation.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, v.ErrorMessage())
}

// ErrorMessage returns a combined error message as string
func (v *Validator) ErrorMessage() string {
	if !v.HasErrors() {
		return ""
	}

	messages := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *FieldError

// Required - Common validation rules
func Required(fieldName string, value interface{}) *FieldError {
	if value == nil {
		return &FieldError{Field: fieldName, Value: value, Message: "is required"}
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return &FieldError{Field: fieldName, Value: value, Message: "is required"}
		}
	case *string:
		if v == nil || strings.TrimSpace(*v) == "" {
			return &FieldError{Field: fieldName, Value: value, Message: "is required"}
		}
	}
	return nil
}

func MinLength(min int) ValidationRule {
	return func(fieldName string, value interface{}) *FieldError {
		str, ok := asString(value)
		if !ok {
			return nil
		}
		if utf8.RuneCountInString(strings.TrimSpace(str)) < min {
			return &FieldError{
				Field:   fieldName,
				Value:   value,
				Message: fmt.Sprintf("must be at least %d characters", min),
			}
		}
		return nil
	}
}

var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

func CurrencyCode(fieldName string, value interface{}) *FieldError {
	str, ok := asString(value)
	if !ok {
		return &FieldError{Field: fieldName, Value: value, Message: "must be a string"}
	}

	// ISO 4217 currency codes are 3 letters
	if !currencyRegex.MatchString(str) {
		return &FieldError{
			Field:   fieldName,
			Value:   value,
			Message: "must be 3 uppercase letters (ISO 4217)",
		}
	}
	return nil
}

// ISODate requires a YYYY-MM-DD calendar date.
func ISODate(fieldName string, value interface{}) *FieldError {
	str, ok := asString(value)
	if !ok {
		return &FieldError{Field: fieldName, Value: value, Message: "must be a string"}
	}
	if _, err := time.Parse(time.DateOnly, str); err != nil {
		return &FieldError{Field: fieldName, Value: value, Message: "must be a YYYY-MM-DD date"}
	}
	return nil
}

// OneOf requires a string value from the allowed set.
func OneOf(allowed ...string) ValidationRule {
	return func(fieldName string, value interface{}) *FieldError {
		str, ok := asString(value)
		if !ok {
			return &FieldError{Field: fieldName, Value: value, Message: "must be a string"}
		}
		for _, a := range allowed {
			if str == a {
				return nil
			}
		}
		return &FieldError{
			Field:   fieldName,
			Value:   value,
			Message: fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")),
		}
	}
}

// Range requires a number within [min, max].
func Range(min, max float64) ValidationRule {
	return func(fieldName string, value interface{}) *FieldError {
		f, ok := asFloat(value)
		if !ok {
			return &FieldError{Field: fieldName, Value: value, Message: "must be a number"}
		}
		if f < min || f > max {
			return &FieldError{
				Field:   fieldName,
				Value:   f,
				Message: fmt.Sprintf("must be between %g and %g", min, max),
			}
		}
		return nil
	}
}

func asString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	}
	return "", false
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case *float64:
		if v == nil {
			return 0, false
		}
		return *v, true
	case int:
		return float64(v), true
	case *int:
		if v == nil {
			return 0, false
		}
		return float64(*v), true
	}
	return 0, false
}

func isNilPointer(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case *string:
		return v == nil
	case *float64:
		return v == nil
	case *int:
		return v == nil
	}
	return false
}
