package flow

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected by a step validator.
	ErrValidation = errors.New("flow: invalid input")
	// ErrForbidden is returned when a non-admin starts an admin wizard.
	ErrForbidden = errors.New("flow: admin only")
	// ErrUnknownFlow is returned for an unregistered wizard id.
	ErrUnknownFlow = errors.New("flow: unknown flow")
)

// ValidationError carries the catalog key of the message shown to the user.
type ValidationError struct {
	Key  string
	Args []any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Key)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(key string, args ...any) error {
	return &ValidationError{Key: key, Args: args}
}
