package actuate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaitcore/internal/robot"
)

func newTestMapper() *Mapper {
	return NewMapper(Config{Clip: 100, Scale: 0.25, Pose: robot.DefaultStance, Joints: robot.DefaultJointMap()})
}

func ones() []float64 {
	a := make([]float64, robot.NumJoints)
	for i := range a {
		a[i] = 1
	}
	return a
}

func TestMapAllOnes(t *testing.T) {
	t.Parallel()
	m := newTestMapper()
	gains := robot.Gains{P: 20, D: 5}

	cmd, err := m.Map(ones(), gains)
	require.NoError(t, err)

	jm := robot.DefaultJointMap()
	target := cmd.Target(jm)
	for i, name := range robot.CanonicalJoints() {
		assert.InDelta(t, robot.DefaultStance[i]+0.25, target[i], 1e-12, "joint %s", name)
		mc := cmd.Motors[jm.Slot(i)]
		assert.Equal(t, 20.0, mc.Kp)
		assert.Equal(t, 5.0, mc.Kd)
		assert.Zero(t, mc.DQ)
		assert.Zero(t, mc.Tau)
	}
}

func TestMapWritesPhysicalSlots(t *testing.T) {
	t.Parallel()
	m := newTestMapper()
	action := make([]float64, robot.NumJoints)
	action[0] = 4 // FL_0 -> +1 rad

	cmd, err := m.Map(action, robot.Gains{})
	require.NoError(t, err)
	// FL_0 lives in physical slot 3, FR_0 in slot 0
	assert.InDelta(t, robot.DefaultStance[0]+1, cmd.Motors[3].Q, 1e-12)
	assert.InDelta(t, robot.DefaultStance[3], cmd.Motors[0].Q, 1e-12)
}

func TestMapClips(t *testing.T) {
	t.Parallel()
	m := newTestMapper()
	action := ones()
	action[2] = 1e6
	action[5] = -1e6

	p, err := m.Targets(action)
	require.NoError(t, err)
	assert.InDelta(t, robot.DefaultStance[2]+25, p[2], 1e-9)
	assert.InDelta(t, robot.DefaultStance[5]-25, p[5], 1e-9)
}

func TestMapRejectsLength(t *testing.T) {
	t.Parallel()
	_, err := newTestMapper().Map([]float64{1, 2}, robot.Gains{})
	assert.Error(t, err)
}

func TestMapPoseDefault(t *testing.T) {
	t.Parallel()
	m := newTestMapper()
	cmd := m.MapPose(m.Pose(), robot.Gains{P: 5, D: 1})
	if diff := cmp.Diff(cmd.Target(robot.DefaultJointMap()), robot.DefaultStance); diff != "" {
		t.Errorf("target mismatch (-got +want):\n%s", diff)
	}
}
