// Package fault defines the fatal error taxonomy of the control core.
//
// Every error that stops the control loop is one of TransportError,
// InferenceError or ConfigurationError. Each carries the Stage that failed so
// the process can exit with a diagnostic naming it.
package fault

import (
	"errors"
	"fmt"
)

// Stage names a step of the control cycle (or construction).
type Stage string

const (
	StageConfig Stage = "config"
	StageRead   Stage = "read"
	StageInfer  Stage = "infer"
	StageMap    Stage = "map"
	StageSend   Stage = "send"
)

// TransportError reports a snapshot that could not be read or a command that
// could not be sent. There is no safe corrective action without fresh state.
type TransportError struct {
	Stage Stage
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error at %s: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// InferenceError reports a policy call that failed or returned a malformed
// action. Stage is StageInfer when unset; StageMap marks an action the
// mapper rejected.
type InferenceError struct {
	Stage Stage
	Err   error
}

func (e *InferenceError) stage() Stage {
	if e.Stage == "" {
		return StageInfer
	}
	return e.Stage
}

func (e *InferenceError) Error() string {
	if e.stage() == StageInfer {
		return fmt.Sprintf("inference error: %v", e.Err)
	}
	return fmt.Sprintf("inference error at %s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// ConfigurationError reports static misconfiguration detected at
// construction. Field names the offending configuration key.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Configf builds a ConfigurationError for field with a formatted cause.
func Configf(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Err: fmt.Errorf(format, args...)}
}

// StageOf returns the stage recorded in err, or the empty Stage when err is
// not part of the taxonomy.
func StageOf(err error) Stage {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Stage
	}
	var ie *InferenceError
	if errors.As(err, &ie) {
		return ie.stage()
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return StageConfig
	}
	return ""
}

// IsFatal reports whether err belongs to the fatal taxonomy.
func IsFatal(err error) bool {
	return StageOf(err) != ""
}
