package bot

import (
	"errors"
	"fmt"
)

// UnknownModeError is returned when a mode has no registered policy.
// It is a configuration error: callers should fail before any run starts.
type UnknownModeError struct {
	Mode Mode
}

// Error implements the error interface.
func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown bot mode %q", string(e.Mode))
}

// IsUnknownMode returns true if err is or wraps an UnknownModeError.
func IsUnknownMode(err error) bool {
	var ume *UnknownModeError
	return errors.As(err, &ume)
}
