package service

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrActivityNotFound indicates the referenced activity does not exist.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrTemplateTooLarge indicates the uploaded template exceeded the configured limit.
	ErrTemplateTooLarge = errors.New("template exceeds maximum allowed size")
)

// ValidationError reports a violated business rule. Reason is safe to show to clients.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(reason string) error {
	return &ValidationError{Reason: reason}
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
