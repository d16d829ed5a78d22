package settings

import (
	"fmt"
	"strings"
)

// FieldError is one rejected setting
type FieldError struct {
	Field   string
	Value   any
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError bundles every rejected setting of a job
type ValidationError struct {
	errors []FieldError
}

// Errors returns the individual field errors
func (e ValidationError) Errors() []FieldError {
	return e.errors
}

// Fields lists the names of the rejected settings
func (e ValidationError) Fields() []string {
	fields := make([]string, len(e.errors))
	for i, err := range e.errors {
		fields[i] = err.Field
	}
	return fields
}

func (e ValidationError) Error() string {
	if len(e.errors) == 1 {
		return "invalid settings: " + e.errors[0].Error()
	}
	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return "invalid settings: " + strings.Join(msgs, "; ")
}

type validator struct {
	errors []FieldError
}

func (v *validator) add(field, message string, value any) {
	v.errors = append(v.errors, FieldError{Field: field, Value: value, Message: message})
}

func (v *validator) check(field string, value any, err error) {
	if err != nil {
		v.add(field, err.Error(), value)
	}
}

func (v *validator) err() error {
	if len(v.errors) == 0 {
		return nil
	}
	copied := make([]FieldError, len(v.errors))
	copy(copied, v.errors)
	return ValidationError{errors: copied}
}

// joinList renders "a", "a and b", "a, b and c"
func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
