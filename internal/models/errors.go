package models

import "errors"

// Error taxonomy shared by the service and the command client.
// Anything not wrapping one of these is treated as internal.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// InputError is a validation failure with a client-visible message
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Unwrap lets errors.Is match ErrInvalidInput
func (e *InputError) Unwrap() error { return ErrInvalidInput }

// Invalid builds an InputError
func Invalid(field, message string) error {
	return &InputError{Field: field, Message: message}
}
