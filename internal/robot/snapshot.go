package robot

import "time"

// Vec3 is a three-axis quantity (roll/pitch/yaw or x/y/z).
type Vec3 [3]float64

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }

// Scale returns v * k.
func (v Vec3) Scale(k float64) Vec3 { return Vec3{v[0] * k, v[1] * k, v[2] * k} }

// MotorState is the measured state of one motor.
type MotorState struct {
	Q      float64 // position, rad
	DQ     float64 // velocity, rad/s
	TauEst float64 // estimated torque, Nm
}

// RemoteBytes is the size of the raw wireless remote channel.
const RemoteBytes = 40

// Snapshot is one telemetry read from the robot. Motors are in physical slot
// order.
type Snapshot struct {
	Tick        uint32
	Orientation Vec3 // roll, pitch, yaw
	AngularRate Vec3 // gyroscope, rad/s
	LinearAccel Vec3 // accelerometer, m/s^2
	Motors      [NumJoints]MotorState
	Remote      [RemoteBytes]byte

	// ReceivedAt is stamped by the transport when the snapshot arrived.
	ReceivedAt time.Time
}

// Positions returns joint positions in canonical order.
func (s *Snapshot) Positions(m JointMap) [NumJoints]float64 {
	var out [NumJoints]float64
	for i := range out {
		out[i] = s.Motors[m.Slot(i)].Q
	}
	return out
}

// Velocities returns joint velocities in canonical order.
func (s *Snapshot) Velocities(m JointMap) [NumJoints]float64 {
	var out [NumJoints]float64
	for i := range out {
		out[i] = s.Motors[m.Slot(i)].DQ
	}
	return out
}

// Torques returns estimated joint torques in canonical order.
func (s *Snapshot) Torques(m JointMap) [NumJoints]float64 {
	var out [NumJoints]float64
	for i := range out {
		out[i] = s.Motors[m.Slot(i)].TauEst
	}
	return out
}

// Sticks decodes the remote-control stick channels.
func (s *Snapshot) Sticks() Sticks {
	st, _ := DecodeSticks(s.Remote[:])
	return st
}

// MotorCommand is the PD setpoint for one motor.
type MotorCommand struct {
	Q   float64
	DQ  float64
	Kp  float64
	Kd  float64
	Tau float64
}

// Command is one motor-command record with Motors in physical slot order.
type Command struct {
	Motors [NumJoints]MotorCommand
}

// Target returns the commanded positions in canonical order.
func (c *Command) Target(m JointMap) Pose {
	var p Pose
	for i := range p {
		p[i] = c.Motors[m.Slot(i)].Q
	}
	return p
}

// Gains is a proportional/derivative pair for joint position control.
type Gains struct {
	P float64 `json:"p"`
	D float64 `json:"d"`
}
