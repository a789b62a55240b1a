// Package actuate turns policy actions into motor-command records.
package actuate

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/gaitcore/internal/robot"
)

// Config holds the mapping constants.
type Config struct {
	Clip   float64 // actions are clipped to [-Clip, Clip]
	Scale  float64 // radians per action unit
	Pose   robot.Pose
	Joints robot.JointMap
}

// Mapper is stateless apart from its Config.
type Mapper struct {
	cfg Config
}

func NewMapper(cfg Config) *Mapper {
	return &Mapper{cfg: cfg}
}

// Targets returns the clipped, scaled and offset joint targets in canonical
// order.
func (m *Mapper) Targets(action []float64) (robot.Pose, error) {
	var p robot.Pose
	if len(action) != robot.NumJoints {
		return p, fmt.Errorf("action has %d elements, want %d", len(action), robot.NumJoints)
	}
	copy(p[:], action)
	for i := range p {
		if p[i] > m.cfg.Clip {
			p[i] = m.cfg.Clip
		} else if p[i] < -m.cfg.Clip {
			p[i] = -m.cfg.Clip
		}
	}
	floats.Scale(m.cfg.Scale, p[:])
	floats.Add(p[:], m.cfg.Pose[:])
	return p, nil
}

// Map converts a raw action into a command holding the mapped targets and
// gains.
func (m *Mapper) Map(action []float64, gains robot.Gains) (robot.Command, error) {
	p, err := m.Targets(action)
	if err != nil {
		return robot.Command{}, err
	}
	return m.MapPose(p, gains), nil
}

// MapPose builds a command for an explicit canonical pose. Target velocity
// and feed-forward torque are zero. Records are written to the physical slot
// of each joint.
func (m *Mapper) MapPose(p robot.Pose, gains robot.Gains) robot.Command {
	var cmd robot.Command
	for i, q := range p {
		cmd.Motors[m.cfg.Joints.Slot(i)] = robot.MotorCommand{
			Q:  q,
			Kp: gains.P,
			Kd: gains.D,
		}
	}
	return cmd
}

// Pose returns the default pose used as the mapping offset.
func (m *Mapper) Pose() robot.Pose { return m.cfg.Pose }
