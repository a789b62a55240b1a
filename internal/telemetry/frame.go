package telemetry

import (
	"time"

	"github.com/banshee-data/gaitcore/internal/robot"
)

// Channel names.
const (
	ChannelBaseAngVel = "base_ang_vel"
	ChannelDofVel     = "dof_vel"
	ChannelDofPos     = "dof_pos"
	ChannelDofTau     = "dof_tau"
	ChannelLinAcc     = "lin_acc"
)

// Channels lists the channel names in publish order.
var Channels = []string{ChannelBaseAngVel, ChannelDofVel, ChannelDofPos, ChannelDofTau, ChannelLinAcc}

// Frame is one telemetry publication. Joint channels are in canonical joint
// order.
type Frame struct {
	Seq  uint64    `json:"seq"`
	Tick uint32    `json:"tick"`
	At   time.Time `json:"at"`

	BaseAngVel [3]float64               `json:"base_ang_vel"`
	DofVel     [robot.NumJoints]float64 `json:"dof_vel"`
	DofPos     [robot.NumJoints]float64 `json:"dof_pos"`
	DofTau     [robot.NumJoints]float64 `json:"dof_tau"`
	LinAcc     [3]float64               `json:"lin_acc"`
}

// NewFrame builds a frame from a cached sample.
func NewFrame(s Sample, m robot.JointMap) Frame {
	snap := &s.Snapshot
	return Frame{
		Seq:        s.Seq,
		Tick:       snap.Tick,
		At:         s.At,
		BaseAngVel: snap.AngularRate,
		DofVel:     snap.Velocities(m),
		DofPos:     snap.Positions(m),
		DofTau:     snap.Torques(m),
		LinAcc:     snap.LinearAccel,
	}
}

// Channel returns the values of a named channel, or nil for an unknown name.
func (f *Frame) Channel(name string) []float64 {
	switch name {
	case ChannelBaseAngVel:
		return f.BaseAngVel[:]
	case ChannelDofVel:
		return f.DofVel[:]
	case ChannelDofPos:
		return f.DofPos[:]
	case ChannelDofTau:
		return f.DofTau[:]
	case ChannelLinAcc:
		return f.LinAcc[:]
	default:
		return nil
	}
}
