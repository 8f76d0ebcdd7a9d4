// Package storage holds the settings helpers shared by cursor store backends,
// sinks and host configuration.
package storage

import (
	"fmt"

	"github.com/gezibash/auditfwd/pkg/errors"
)

// ConfigError reports a bad setting for a named component. It matches
// errors.ErrConfiguration.
type ConfigError struct {
	Backend string
	Field   string
	Value   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Field == "":
		return fmt.Sprintf("%s: %s", e.Backend, e.Message)
	case e.Value == "":
		return fmt.Sprintf("%s: %s: %s", e.Backend, e.Field, e.Message)
	default:
		return fmt.Sprintf("%s: %s=%q: %s", e.Backend, e.Field, e.Value, e.Message)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is errors.ErrConfiguration.
func (e *ConfigError) Is(target error) bool {
	return target == errors.ErrConfiguration
}

// NewConfigError creates a ConfigError for a field validation failure.
func NewConfigError(backend, field, message string) *ConfigError {
	return &ConfigError{Backend: backend, Field: field, Message: message}
}

// NewConfigErrorWithValue creates a ConfigError that includes the invalid value.
func NewConfigErrorWithValue(backend, field, value, message string) *ConfigError {
	return &ConfigError{Backend: backend, Field: field, Value: value, Message: message}
}

// NewConfigErrorWithCause creates a ConfigError with an underlying cause.
func NewConfigErrorWithCause(backend, field, message string, cause error) *ConfigError {
	return &ConfigError{Backend: backend, Field: field, Message: message, Cause: cause}
}

// WithBackend fills in the component name on a ConfigError produced by the
// Get helpers, which do not know it.
func WithBackend(err error, backend string) error {
	if ce, ok := err.(*ConfigError); ok && ce.Backend == "" {
		ce.Backend = backend
	}
	return err
}
