package observe

import "fmt"

// Stack is a fixed-depth FIFO of past observation slices.
type Stack struct {
	width int
	depth int
	buf   []float64 // depth*width, oldest first
}

// NewStack returns a stack of depth zero-filled slices of the given width.
func NewStack(depth, width int) *Stack {
	return &Stack{width: width, depth: depth, buf: make([]float64, depth*width)}
}

// Push returns [current, retained oldest..newest] as a new vector of
// (depth+1)*width elements, then evicts the oldest retained slice and
// retains current. Push panics if len(current) != width.
func (s *Stack) Push(current []float64) []float64 {
	if len(current) != s.width {
		panic(fmt.Sprintf("observe: push of %d elements into stack of width %d", len(current), s.width))
	}
	full := make([]float64, (s.depth+1)*s.width)
	copy(full, current)
	copy(full[s.width:], s.buf)

	if s.depth > 0 {
		copy(s.buf, s.buf[s.width:])
		copy(s.buf[(s.depth-1)*s.width:], current)
	}
	return full
}

// Len returns the number of slices in a pushed vector, current included.
func (s *Stack) Len() int { return s.depth + 1 }

// Width returns the slice width.
func (s *Stack) Width() int { return s.width }

// Retained returns a copy of retained slice i, 0 being the oldest.
func (s *Stack) Retained(i int) []float64 {
	out := make([]float64, s.width)
	copy(out, s.buf[i*s.width:(i+1)*s.width])
	return out
}
