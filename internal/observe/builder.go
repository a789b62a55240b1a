// Package observe assembles the per-cycle policy observation and its
// temporal history.
package observe

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/gaitcore/internal/robot"
)

// Slice layout.
const (
	AngVelLen  = 3
	CommandLen = 3
	SliceLen   = AngVelLen + CommandLen + 3*robot.NumJoints

	offAngVel  = 0
	offCommand = offAngVel + AngVelLen
	offPosDiff = offCommand + CommandLen
	offJointDQ = offPosDiff + robot.NumJoints
	offAction  = offJointDQ + robot.NumJoints
)

// Config holds the builder's static tuning.
type Config struct {
	// VelocityGate keeps the angular and joint velocity terms at zero while
	// cycle <= VelocityGate.
	VelocityGate uint64
	// CommandGate keeps the velocity command at zero while cycle <= CommandGate.
	CommandGate uint64

	Scale    robot.Vec3 // forward, lateral, yaw
	Deadband robot.Vec3

	Pose   robot.Pose
	Joints robot.JointMap
}

// Builder maps a snapshot into an ObservationSlice. It keeps no per-cycle
// state.
type Builder struct {
	cfg Config
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// Build returns a fresh 42-element slice: angular velocity, velocity
// command, joint position minus default pose, joint velocity, previous
// action. A short or nil prevAction reads as zeros.
func (b *Builder) Build(snap *robot.Snapshot, angVel robot.Vec3, prevAction []float64, cycle uint64) []float64 {
	out := make([]float64, SliceLen)

	if cycle > b.cfg.VelocityGate {
		copy(out[offAngVel:offCommand], angVel[:])
		dq := snap.Velocities(b.cfg.Joints)
		copy(out[offJointDQ:offAction], dq[:])
	}
	if cycle > b.cfg.CommandGate {
		cmd := b.Command(snap)
		copy(out[offCommand:offPosDiff], cmd[:])
	}

	q := snap.Positions(b.cfg.Joints)
	floats.SubTo(out[offPosDiff:offJointDQ], q[:], b.cfg.Pose[:])

	copy(out[offAction:], prevAction)
	return out
}

// Command decodes the remote-control sticks into a deadbanded
// forward/lateral/yaw velocity command.
func (b *Builder) Command(snap *robot.Snapshot) robot.Vec3 {
	return DecodeCommand(snap.Sticks(), b.cfg.Scale, b.cfg.Deadband)
}

// DecodeCommand scales the stick channels (forward = ly, lateral = -lx,
// yaw = -rx) and zeroes any axis whose magnitude is under its deadband.
// Non-finite channels are zeroed too.
func DecodeCommand(s robot.Sticks, scale, deadband robot.Vec3) robot.Vec3 {
	cmd := robot.Vec3{
		s.LY * scale[0],
		-s.LX * scale[1],
		-s.RX * scale[2],
	}
	for i, v := range cmd {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) < deadband[i] {
			cmd[i] = 0
		}
	}
	return cmd
}

// Views into a built slice, for logging and tests.

func AngularVelocity(s []float64) []float64 { return s[offAngVel:offCommand] }
func VelocityCommand(s []float64) []float64 { return s[offCommand:offPosDiff] }
func PositionDelta(s []float64) []float64   { return s[offPosDiff:offJointDQ] }
func JointVelocity(s []float64) []float64   { return s[offJointDQ:offAction] }
func PreviousAction(s []float64) []float64  { return s[offAction:SliceLen] }
