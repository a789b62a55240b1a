// Package safety clamps motor commands before they reach the robot.
package safety

import (
	"math"

	"github.com/banshee-data/gaitcore/internal/fault"
	"github.com/banshee-data/gaitcore/internal/robot"
)

// Power levels accepted by PowerGuard.
const (
	MinLevel = 1
	MaxLevel = 10
)

// DefaultMaxTorque is the per-joint torque budget at MaxLevel, in Nm.
const DefaultMaxTorque = 33.5

// Guard clamps cmd given the measured state. It must be applied to every
// command immediately before it is sent.
type Guard interface {
	Protect(cmd robot.Command, snap *robot.Snapshot, level int) robot.Command
}

// ValidateLevel checks a configured power level.
func ValidateLevel(level int) error {
	if level < MinLevel || level > MaxLevel {
		return fault.Configf("power_limit", "must be between %d and %d, got %d", MinLevel, MaxLevel, level)
	}
	return nil
}

// PowerGuard limits the PD torque each motor would produce. The budget is
// level/10 of MaxTorque; a command predicted to exceed it has its target
// position moved until the predicted torque sits on the budget.
type PowerGuard struct {
	MaxTorque float64
}

// NewPowerGuard returns a guard using DefaultMaxTorque.
func NewPowerGuard() *PowerGuard {
	return &PowerGuard{MaxTorque: DefaultMaxTorque}
}

// Budget returns the per-joint torque limit at level. Out of range levels
// are clamped into [MinLevel, MaxLevel].
func (g *PowerGuard) Budget(level int) float64 {
	if level < MinLevel {
		level = MinLevel
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return g.MaxTorque * float64(level) / MaxLevel
}

func (g *PowerGuard) Protect(cmd robot.Command, snap *robot.Snapshot, level int) robot.Command {
	budget := g.Budget(level)
	for s := range cmd.Motors {
		mc := &cmd.Motors[s]
		mc.Tau = clamp(mc.Tau, budget)
		if snap == nil || mc.Kp <= 0 {
			continue
		}
		tau := PredictedTorque(*mc, snap.Motors[s])
		if math.Abs(tau) <= budget {
			continue
		}
		// move the target so the proportional term absorbs the excess
		mc.Q += (math.Copysign(budget, tau) - tau) / mc.Kp
	}
	return cmd
}

// PredictedTorque returns the PD torque mc produces at the measured state ms.
func PredictedTorque(mc robot.MotorCommand, ms robot.MotorState) float64 {
	return mc.Kp*(mc.Q-ms.Q) + mc.Kd*(mc.DQ-ms.DQ) + mc.Tau
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

// Passthrough is a Guard that returns commands unchanged. Only for bench
// tests against simulated robots.
type Passthrough struct{}

func (Passthrough) Protect(cmd robot.Command, _ *robot.Snapshot, _ int) robot.Command { return cmd }
