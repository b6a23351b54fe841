// Package validation checks request payloads against their `validate` struct
// tags and renders failures for the API error envelope.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// Error is returned by Struct for payloads that fail validation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	if len(msgs) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Details renders the error for the API error envelope.
func (e *Error) Details() map[string]any {
	return map[string]any{"fields": e.Fields}
}

// Struct validates v. Failures are returned as *Error.
func Struct(v any) error {
	err := get().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Fields: []FieldError{{Field: "payload", Tag: "invalid", Message: err.Error()}}}
	}
	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: translate(fe),
		})
	}
	return out
}

func translate(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}
