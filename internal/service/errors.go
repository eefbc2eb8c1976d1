package service

import (
	"errors"
	"fmt"

	"github.com/vokorun/runclub/internal/access"
)

// ErrAuthRequired is returned when an action needs a signed-in identity.
var ErrAuthRequired = errors.New("sign in required")

// ErrEventClosed is returned when registering for an event that has ended.
var ErrEventClosed = errors.New("event has ended")

// ErrPermissionDenied matches every *PermissionError.
var ErrPermissionDenied = errors.New("permission denied")

// PermissionError is a denial by the role gate.
type PermissionError struct {
	Action access.Action
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Action)
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// ValidationError reports an invalid field in an event payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
