// Package control runs the fixed-period perception-to-action cycle.
//
// Each cycle reads one snapshot, updates the angular-velocity smoother,
// builds and stacks the observation, runs the policy (in the run phase only),
// maps the result to a motor command, passes it through the safety guard,
// sends it and sleeps out the rest of the period. The startup ramp is a pure
// function of the cycle counter held in ControlLoopState.
package control

import "github.com/banshee-data/gaitcore/internal/robot"

// Phase is a stage of the startup ramp.
type Phase int

const (
	SoftStart Phase = iota
	FirmStart
	Run
)

func (p Phase) String() string {
	switch p {
	case SoftStart:
		return "STARTUP_SOFT"
	case FirmStart:
		return "STARTUP_FIRM"
	case Run:
		return "RUN"
	default:
		return "UNKNOWN"
	}
}

// Schedule is the gain schedule of the startup ramp.
type Schedule struct {
	// SoftCycles is the number of cycles spent in SoftStart.
	SoftCycles uint64
	// FirmEnd is the last cycle of FirmStart.
	FirmEnd uint64

	Soft, Firm, Run robot.Gains
}

// PhaseFor returns the phase of a 0-based cycle.
func (s Schedule) PhaseFor(cycle uint64) Phase {
	switch {
	case cycle < s.SoftCycles:
		return SoftStart
	case cycle <= s.FirmEnd:
		return FirmStart
	default:
		return Run
	}
}

// Gains returns the gains applied in p.
func (s Schedule) Gains(p Phase) robot.Gains {
	switch p {
	case SoftStart:
		return s.Soft
	case FirmStart:
		return s.Firm
	default:
		return s.Run
	}
}

// ControlLoopState is the cycle counter and the phase it implies. The
// counter only increases.
type ControlLoopState struct {
	Cycle uint64
	Phase Phase
}

// NewControlLoopState returns the state at process start.
func NewControlLoopState(s Schedule) ControlLoopState {
	return ControlLoopState{Phase: s.PhaseFor(0)}
}

// Advance moves to the next cycle and reports whether the phase changed.
func (st *ControlLoopState) Advance(s Schedule) bool {
	st.Cycle++
	next := s.PhaseFor(st.Cycle)
	changed := next != st.Phase
	st.Phase = next
	return changed
}
