package types

import (
	"errors"
	"fmt"
)

// ErrGenerationEmpty is returned when the provider succeeded but produced
// no usable artifact.
var ErrGenerationEmpty = errors.New("generation returned no output")

// ConfigurationError reports a missing or invalid setting required by an
// operation, such as the provider credential.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("configuration: %s is not set", e.Setting)
	}
	return fmt.Sprintf("configuration: %s: %s", e.Setting, e.Reason)
}

// ModelInvocationError wraps a transport or provider failure.
type ModelInvocationError struct {
	Model string
	Err   error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

// PersistenceCorruptionError reports locally stored state that could not be parsed.
type PersistenceCorruptionError struct {
	Path string
	Err  error
}

func (e *PersistenceCorruptionError) Error() string {
	return fmt.Sprintf("corrupt state file %s: %v", e.Path, e.Err)
}

func (e *PersistenceCorruptionError) Unwrap() error { return e.Err }
