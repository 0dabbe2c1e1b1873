package types

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)

// ValidationError is returned when a mutation is rejected before any state
// changes. errors.Is(err, ErrValidation) holds for every ValidationError.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Field, e.Message, e.Err.Error())
	}

	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrValidation
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

func NewUnknownResidentError(residentId string) *ValidationError {
	return &ValidationError{
		Field:   "resident_id",
		Message: fmt.Sprintf("unknown resident %q", residentId),
		Err:     ErrNotFound,
	}
}
