package robot

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/gaitcore/internal/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultJointMapIsBijective(t *testing.T) {
	t.Parallel()
	m := DefaultJointMap()

	seen := make(map[int]JointName)
	for i, name := range CanonicalJoints() {
		s := m.Slot(i)
		prev, dup := seen[s]
		require.False(t, dup, "slot %d used by %s and %s", s, prev, name)
		seen[s] = name
		assert.Equal(t, i, m.Canonical(s))
	}
	assert.Len(t, seen, NumJoints)
}

func TestDefaultJointMapLayout(t *testing.T) {
	t.Parallel()
	m := DefaultJointMap()

	cases := map[JointName]int{FR0: 0, FL0: 3, RR2: 8, RL1: 10, FL2: 5}
	for name, want := range cases {
		got, ok := m.SlotOf(name)
		require.True(t, ok)
		assert.Equal(t, want, got, "slot of %s", name)
	}
	_, ok := m.SlotOf("XX_9")
	assert.False(t, ok)
}

func TestNewJointMapRejectsInvalid(t *testing.T) {
	t.Parallel()

	clone := func() map[JointName]int {
		out := make(map[JointName]int, len(DefaultSlots))
		for k, v := range DefaultSlots {
			out[k] = v
		}
		return out
	}

	t.Run("duplicate slot", func(t *testing.T) {
		t.Parallel()
		slots := clone()
		slots[FL0] = 0
		_, err := NewJointMap(slots)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotBijective))
		var ce *fault.ConfigurationError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "joint_map", ce.Field)
	})

	t.Run("missing joint", func(t *testing.T) {
		t.Parallel()
		slots := clone()
		delete(slots, RR1)
		_, err := NewJointMap(slots)
		assert.ErrorIs(t, err, ErrNotBijective)
	})

	t.Run("unknown joint replaces a known one", func(t *testing.T) {
		t.Parallel()
		slots := clone()
		delete(slots, RR1)
		slots["XX_1"] = 7
		_, err := NewJointMap(slots)
		assert.ErrorIs(t, err, ErrNotBijective)
	})

	t.Run("slot out of range", func(t *testing.T) {
		t.Parallel()
		slots := clone()
		slots[RL2] = 12
		_, err := NewJointMap(slots)
		assert.ErrorIs(t, err, ErrNotBijective)
	})
}

func TestNewPose(t *testing.T) {
	t.Parallel()
	p, err := NewPose(DefaultStance[:])
	require.NoError(t, err)
	assert.Equal(t, DefaultStance, p)

	_, err = NewPose([]float64{1, 2, 3})
	var ce *fault.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "default_pose", ce.Field)

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		angles := append([]float64(nil), DefaultStance[:]...)
		angles[7] = bad
		_, err = NewPose(angles)
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "default_pose", ce.Field)
		assert.Contains(t, err.Error(), "angle 7")
	}
}

func TestSnapshotCanonicalOrder(t *testing.T) {
	t.Parallel()
	m := DefaultJointMap()
	var s Snapshot
	for slot := range s.Motors {
		s.Motors[slot] = MotorState{Q: float64(slot), DQ: float64(slot) * 10, TauEst: float64(slot) * 100}
	}

	pos := s.Positions(m)
	vel := s.Velocities(m)
	tau := s.Torques(m)
	// canonical 0 is FL_0 which lives in slot 3; canonical 3 is FR_0 in slot 0.
	assert.Equal(t, 3.0, pos[0])
	assert.Equal(t, 0.0, pos[3])
	assert.Equal(t, 90.0, vel[6])  // RL_0 -> slot 9
	assert.Equal(t, 600.0, tau[9]) // RR_0 -> slot 6
}
