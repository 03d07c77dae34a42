package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBool is wrapped by CastError when a value is not a recognised boolean.
	ErrInvalidBool = errors.New("not a boolean")
	// ErrInvalidLevel is wrapped by CastError when a value is not a known log level.
	ErrInvalidLevel = errors.New("unknown log level")
)

// CastError reports an environment value that cannot be converted to the
// type its setting declares.
type CastError struct {
	Key   string
	Value string
	Type  string
	Err   error
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cannot cast %s=%q to %s: %v", e.Key, e.Value, e.Type, e.Err)
}

func (e *CastError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a structurally invalid setting such as a
// malformed database URL or an empty base directory.
type ConfigurationError struct {
	Key    string
	Value  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("invalid %s", e.Key)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
