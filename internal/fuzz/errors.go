package fuzz

import (
	"errors"
	"fmt"
)

// ConfigError reports a malformed scenario or runner option. It is raised
// before any run starts.
type ConfigError struct {
	// Field identifies the offending scenario or option.
	Field string

	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError returns true if err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// PersistError reports a failed store write. It is only returned in strict
// mode; otherwise persistence failures are logged and swallowed.
type PersistError struct {
	Op    string
	RunID string
	Err   error
}

// Error implements the error interface.
func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s for run %s: %v", e.Op, e.RunID, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistError) Unwrap() error {
	return e.Err
}

// IsPersistError returns true if err is or wraps a PersistError.
func IsPersistError(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}
