package observe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(width int, v float64) []float64 {
	s := make([]float64, width)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestStackInitialZeros(t *testing.T) {
	t.Parallel()
	s := NewStack(4, SliceLen)
	full := s.Push(fill(SliceLen, 1))
	require.Len(t, full, 210)
	assert.Equal(t, fill(SliceLen, 1), full[:SliceLen])
	assert.Equal(t, make([]float64, 4*SliceLen), full[SliceLen:])
}

func TestStackFIFO(t *testing.T) {
	t.Parallel()
	const width = 2
	s := NewStack(4, width)
	require.Equal(t, 5, s.Len())

	var full []float64
	for i := 1; i <= 7; i++ {
		full = s.Push(fill(width, float64(i)))
		assert.Len(t, full, 5*width, "push %d", i)
	}
	// push 7 sees current 7 then retained 3,4,5,6
	want := []float64{7, 7, 3, 3, 4, 4, 5, 5, 6, 6}
	if diff := cmp.Diff(full, want); diff != "" {
		t.Errorf("stack mismatch (-got +want):\n%s", diff)
	}
	// after push 7 the oldest retained is 4
	assert.Equal(t, []float64{4, 4}, s.Retained(0))
	assert.Equal(t, []float64{7, 7}, s.Retained(3))
}

func TestStackPushDoesNotAlias(t *testing.T) {
	t.Parallel()
	s := NewStack(1, 2)
	cur := []float64{1, 2}
	full := s.Push(cur)
	cur[0] = 9
	assert.Equal(t, []float64{1, 2}, s.Retained(0))
	full[2] = 5
	assert.Equal(t, []float64{1, 2}, s.Retained(0))
}

func TestStackRejectsWrongWidth(t *testing.T) {
	t.Parallel()
	s := NewStack(4, SliceLen)
	assert.Panics(t, func() { s.Push(make([]float64, 3)) })
}
