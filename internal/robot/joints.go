package robot

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/gaitcore/internal/fault"
)

// NumJoints is the number of actuated joints on the robot.
const NumJoints = 12

// ErrNotBijective is the cause of a ConfigurationError for a joint map that
// does not cover every slot exactly once.
var ErrNotBijective = errors.New("joint map is not a bijection")

// JointName identifies a joint as <leg>_<index>, index 0 = hip, 1 = thigh,
// 2 = knee.
type JointName string

// Joint names.
const (
	FL0 JointName = "FL_0"
	FL1 JointName = "FL_1"
	FL2 JointName = "FL_2"
	FR0 JointName = "FR_0"
	FR1 JointName = "FR_1"
	FR2 JointName = "FR_2"
	RL0 JointName = "RL_0"
	RL1 JointName = "RL_1"
	RL2 JointName = "RL_2"
	RR0 JointName = "RR_0"
	RR1 JointName = "RR_1"
	RR2 JointName = "RR_2"
)

var canonicalJoints = [NumJoints]JointName{
	FL0, FL1, FL2,
	FR0, FR1, FR2,
	RL0, RL1, RL2,
	RR0, RR1, RR2,
}

// CanonicalJoints returns all joint names in canonical order.
func CanonicalJoints() []JointName {
	out := make([]JointName, NumJoints)
	copy(out, canonicalJoints[:])
	return out
}

// CanonicalIndex returns the canonical position of name.
func CanonicalIndex(name JointName) (int, bool) {
	for i, n := range canonicalJoints {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// JointMap is a bijection between canonical joint indices and physical motor
// slots. The zero value is not valid; use NewJointMap or DefaultJointMap.
type JointMap struct {
	slot      [NumJoints]int // canonical index -> physical slot
	canonical [NumJoints]int // physical slot -> canonical index
}

// DefaultSlots is the Go1 motor layout: FR, FL, RR, RL legs.
var DefaultSlots = map[JointName]int{
	FR0: 0, FR1: 1, FR2: 2,
	FL0: 3, FL1: 4, FL2: 5,
	RR0: 6, RR1: 7, RR2: 8,
	RL0: 9, RL1: 10, RL2: 11,
}

// NewJointMap validates slots and builds the map. Every canonical name must be
// present, every slot in [0, NumJoints) must be used exactly once, and no
// unknown names may appear.
func NewJointMap(slots map[JointName]int) (JointMap, error) {
	var m JointMap
	if len(slots) != NumJoints {
		return m, &fault.ConfigurationError{
			Field: "joint_map",
			Err:   fmt.Errorf("%w: %d entries, want %d", ErrNotBijective, len(slots), NumJoints),
		}
	}
	var used [NumJoints]bool
	for i, name := range canonicalJoints {
		s, ok := slots[name]
		if !ok {
			return m, &fault.ConfigurationError{
				Field: "joint_map",
				Err:   fmt.Errorf("%w: missing joint %s", ErrNotBijective, name),
			}
		}
		if s < 0 || s >= NumJoints {
			return m, &fault.ConfigurationError{
				Field: "joint_map",
				Err:   fmt.Errorf("%w: joint %s slot %d out of range", ErrNotBijective, name, s),
			}
		}
		if used[s] {
			return m, &fault.ConfigurationError{
				Field: "joint_map",
				Err:   fmt.Errorf("%w: slot %d assigned twice", ErrNotBijective, s),
			}
		}
		used[s] = true
		m.slot[i] = s
		m.canonical[s] = i
	}
	return m, nil
}

// DefaultJointMap returns the map built from DefaultSlots.
func DefaultJointMap() JointMap {
	m, err := NewJointMap(DefaultSlots)
	if err != nil {
		panic(err)
	}
	return m
}

// Slot returns the physical slot of the joint at canonical index i.
func (m JointMap) Slot(i int) int { return m.slot[i] }

// Canonical returns the canonical index of the joint at physical slot s.
func (m JointMap) Canonical(s int) int { return m.canonical[s] }

// SlotOf returns the physical slot of name.
func (m JointMap) SlotOf(name JointName) (int, bool) {
	i, ok := CanonicalIndex(name)
	if !ok {
		return 0, false
	}
	return m.slot[i], true
}

// Pose is one angle per joint in canonical order, in radians.
type Pose [NumJoints]float64

// DefaultStance is the neutral standing pose: the startup ramp target and the
// reference for joint-position deltas.
var DefaultStance = Pose{
	0.1, 0.8, -1.5,
	-0.1, 0.8, -1.5,
	0.1, 1.0, -1.5,
	-0.1, 1.0, -1.5,
}

// NewPose copies values into a Pose, rejecting the wrong length and
// non-finite angles.
func NewPose(values []float64) (Pose, error) {
	var p Pose
	if len(values) != NumJoints {
		return p, fault.Configf("default_pose", "got %d angles, want %d", len(values), NumJoints)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return p, fault.Configf("default_pose", "angle %d is %v", i, v)
		}
	}
	copy(p[:], values)
	return p, nil
}
