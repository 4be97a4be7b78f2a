package models

import "github.com/pkg/errors"

// Common lifecycle errors
var (
	ErrEventNotFound  = errors.New("event not found")
	ErrDuplicateEvent = errors.New("event already exists")
	ErrInvalidEventID = errors.New("event id cannot be empty")
	ErrNotCreator     = errors.New("only the event creator can cancel it")
	ErrEngineStopped  = errors.New("engine is not running")
)

// ValidationCode identifies why a create request was rejected
type ValidationCode string

const (
	MissingName        ValidationCode = "MissingName"
	MissingTime        ValidationCode = "MissingTime"
	InvalidTime        ValidationCode = "InvalidTime"
	PastTime           ValidationCode = "PastTime"
	MinExceedsMax      ValidationCode = "MinExceedsMax"
	InvalidPlayerCount ValidationCode = "InvalidPlayerCount"
)

var validationMessages = map[ValidationCode]string{
	MissingName:        "Missing argument: --name",
	MissingTime:        "Missing argument: --time",
	InvalidTime:        "Invalid start time. Use natural language, e.g. \"Tomorrow at 5:30pm\"",
	PastTime:           "The time specified is in the past!",
	MinExceedsMax:      "Min players can't be greater than max players!",
	InvalidPlayerCount: "Player counts must be non-negative whole numbers",
}

// ValidationError is a user input error on a create request
type ValidationError struct {
	Code ValidationCode
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if msg, ok := validationMessages[e.Code]; ok {
		return msg
	}
	return string(e.Code)
}

// NewValidationError creates a validation error with the given code
func NewValidationError(code ValidationCode) *ValidationError {
	return &ValidationError{Code: code}
}

// IsValidationCode reports whether err is a ValidationError carrying code
func IsValidationCode(err error, code ValidationCode) bool {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Code == code
	}
	return false
}
