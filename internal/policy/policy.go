// Package policy defines the inference boundary between the control loop and
// a pretrained locomotion policy.
package policy

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/gaitcore/internal/fault"
)

var (
	// ErrShape reports an input or output of the wrong length.
	ErrShape = errors.New("policy shape mismatch")
	// ErrNonFinite reports a NaN or infinite action element.
	ErrNonFinite = errors.New("policy produced non-finite action")
)

// Policy maps a full observation to a raw action. Implementations must be
// deterministic for a given input and must not retain obs.
type Policy interface {
	Infer(obs []float64) ([]float64, error)
}

// Func adapts a plain function to Policy.
type Func func(obs []float64) ([]float64, error)

func (f Func) Infer(obs []float64) ([]float64, error) { return f(obs) }

// Zero returns a policy that always outputs n zeros. With the default action
// mapping it holds the default pose.
func Zero(n int) Policy {
	return Func(func([]float64) ([]float64, error) {
		return make([]float64, n), nil
	})
}

// Checked wraps a Policy and rejects calls whose input or output length is
// wrong or whose output contains NaN/Inf. Every failure is returned as a
// fault.InferenceError.
type Checked struct {
	Policy  Policy
	InSize  int
	OutSize int
}

func (c Checked) Infer(obs []float64) ([]float64, error) {
	if len(obs) != c.InSize {
		return nil, &fault.InferenceError{Err: fmt.Errorf("%w: observation has %d elements, want %d", ErrShape, len(obs), c.InSize)}
	}
	action, err := c.Policy.Infer(obs)
	if err != nil {
		var ie *fault.InferenceError
		if errors.As(err, &ie) {
			return nil, err
		}
		return nil, &fault.InferenceError{Err: err}
	}
	if len(action) != c.OutSize {
		return nil, &fault.InferenceError{Err: fmt.Errorf("%w: action has %d elements, want %d", ErrShape, len(action), c.OutSize)}
	}
	for i, v := range action {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &fault.InferenceError{Err: fmt.Errorf("%w: element %d is %v", ErrNonFinite, i, v)}
		}
	}
	return action, nil
}
