package model

import (
	"errors"
	"fmt"
)

// ConfigError reports a missing or invalid required setting, or a failure to
// claim a startup resource such as a bus name. It is fatal at startup.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a ConfigError for key.
func NewConfigError(key, format string, args ...any) *ConfigError {
	return &ConfigError{Key: key, Err: fmt.Errorf(format, args...)}
}

// TransportError reports a failed remote call. Status is the HTTP status
// when one was received, 0 otherwise. It is retryable.
type TransportError struct {
	Method string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("call %s: %v", e.Method, e.Err)
	case e.Body != "":
		return fmt.Sprintf("call %s: HTTP %d: %s", e.Method, e.Status, e.Body)
	default:
		return fmt.Sprintf("call %s: HTTP %d", e.Method, e.Status)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsRetryable returns true if err is a TransportError and so worth retrying.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsFatal returns true if err is a ConfigError.
func IsFatal(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
