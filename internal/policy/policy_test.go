package policy

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaitcore/internal/fault"
)

func TestCheckedShapes(t *testing.T) {
	t.Parallel()
	echo := Func(func(obs []float64) ([]float64, error) { return obs[:2], nil })

	tests := []struct {
		name    string
		policy  Policy
		in      []float64
		wantErr error
	}{
		{"ok", echo, []float64{1, 2, 3}, nil},
		{"short input", echo, []float64{1, 2}, ErrShape},
		{"wrong output", Func(func([]float64) ([]float64, error) { return []float64{1}, nil }), []float64{1, 2, 3}, ErrShape},
		{"nan", Func(func([]float64) ([]float64, error) { return []float64{math.NaN(), 0}, nil }), []float64{1, 2, 3}, ErrNonFinite},
		{"inf", Func(func([]float64) ([]float64, error) { return []float64{0, math.Inf(-1)}, nil }), []float64{1, 2, 3}, ErrNonFinite},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Checked{Policy: tt.policy, InSize: 3, OutSize: 2}
			out, err := c.Infer(tt.in)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, []float64{1, 2}, out)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			var ie *fault.InferenceError
			assert.True(t, errors.As(err, &ie))
			assert.Equal(t, fault.StageInfer, fault.StageOf(err))
		})
	}
}

func TestCheckedWrapsPolicyError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	c := Checked{Policy: Func(func([]float64) ([]float64, error) { return nil, boom }), InSize: 1, OutSize: 1}
	_, err := c.Infer([]float64{0})
	assert.ErrorIs(t, err, boom)
	assert.True(t, fault.IsFatal(err))
}

func TestZero(t *testing.T) {
	t.Parallel()
	out, err := Zero(12).Infer(make([]float64, 210))
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 12), out)
}
