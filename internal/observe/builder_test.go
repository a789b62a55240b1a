package observe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaitcore/internal/robot"
)

func testConfig() Config {
	return Config{
		VelocityGate: 1600,
		CommandGate:  2000,
		Scale:        robot.Vec3{0.6, 0.5, 0.8},
		Deadband:     robot.Vec3{0.1, 0.1, 0.1},
		Pose:         robot.DefaultStance,
		Joints:       robot.DefaultJointMap(),
	}
}

func testSnapshot(t *testing.T) *robot.Snapshot {
	t.Helper()
	snap := &robot.Snapshot{AngularRate: robot.Vec3{0.4, -0.2, 0.3}}
	for s := range snap.Motors {
		snap.Motors[s] = robot.MotorState{Q: 0.01 * float64(s), DQ: 1 + float64(s)}
	}
	require.NoError(t, robot.EncodeSticks(robot.Sticks{LX: 0.5, RX: -0.5, LY: 1}, snap.Remote[:]))
	return snap
}

func TestBuildLength(t *testing.T) {
	t.Parallel()
	b := NewBuilder(testConfig())
	got := b.Build(testSnapshot(t), robot.Vec3{}, nil, 0)
	assert.Len(t, got, 42)
}

func TestVelocityGate(t *testing.T) {
	t.Parallel()
	b := NewBuilder(testConfig())
	snap := testSnapshot(t)

	for _, cycle := range []uint64{0, 1, 99, 1100, 1599, 1600} {
		got := b.Build(snap, snap.AngularRate, nil, cycle)
		assert.Equal(t, []float64{0, 0, 0}, AngularVelocity(got), "cycle %d", cycle)
		assert.Equal(t, make([]float64, 12), JointVelocity(got), "cycle %d", cycle)
	}

	got := b.Build(snap, snap.AngularRate, nil, 1601)
	assert.Equal(t, snap.AngularRate[:], AngularVelocity(got))
	dq := snap.Velocities(robot.DefaultJointMap())
	assert.Equal(t, dq[:], JointVelocity(got))
}

func TestCommandGate(t *testing.T) {
	t.Parallel()
	b := NewBuilder(testConfig())
	snap := testSnapshot(t)

	for _, cycle := range []uint64{0, 1601, 1999, 2000} {
		got := b.Build(snap, robot.Vec3{}, nil, cycle)
		assert.Equal(t, []float64{0, 0, 0}, VelocityCommand(got), "cycle %d", cycle)
	}

	got := b.Build(snap, robot.Vec3{}, nil, 2001)
	assert.InDeltaSlice(t, []float64{0.6, -0.25, 0.4}, VelocityCommand(got), 1e-9)
}

func TestPositionDeltaCanonicalOrder(t *testing.T) {
	t.Parallel()
	b := NewBuilder(testConfig())
	snap := testSnapshot(t)
	got := PositionDelta(b.Build(snap, robot.Vec3{}, nil, 0))

	m := robot.DefaultJointMap()
	for i := 0; i < robot.NumJoints; i++ {
		want := snap.Motors[m.Slot(i)].Q - robot.DefaultStance[i]
		assert.InDelta(t, want, got[i], 1e-12, "joint %s", robot.CanonicalJoints()[i])
	}
	// FL_0 is physical slot 3
	assert.InDelta(t, 0.03-0.1, got[0], 1e-12)
}

func TestPreviousActionCopied(t *testing.T) {
	t.Parallel()
	b := NewBuilder(testConfig())
	prev := make([]float64, 12)
	for i := range prev {
		prev[i] = float64(i) - 6
	}
	got := b.Build(testSnapshot(t), robot.Vec3{}, prev, 0)
	assert.Equal(t, prev, PreviousAction(got))

	prev[0] = 100
	assert.Equal(t, -6.0, PreviousAction(got)[0])
}

func TestDecodeCommandRoundTrip(t *testing.T) {
	t.Parallel()
	scale := robot.Vec3{1, 1, 1}
	deadband := robot.Vec3{0.1, 0.1, 0.1}

	tests := []struct {
		name   string
		sticks robot.Sticks
		want   robot.Vec3
	}{
		{"exact", robot.Sticks{LX: -0.25, RX: -0.75, LY: 0.5}, robot.Vec3{0.5, 0.25, 0.75}},
		{"below deadband", robot.Sticks{LX: 0.0625, RX: -0.03125, LY: 0.09375}, robot.Vec3{}},
		{"mixed", robot.Sticks{LX: 0.05, RX: 0, LY: -1}, robot.Vec3{-1, 0, 0}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf [robot.RemoteBytes]byte
			require.NoError(t, robot.EncodeSticks(tt.sticks, buf[:]))
			decoded, err := robot.DecodeSticks(buf[:])
			require.NoError(t, err)
			assert.Equal(t, tt.want, DecodeCommand(decoded, scale, deadband))
		})
	}
}

func TestDecodeCommandScales(t *testing.T) {
	t.Parallel()
	got := DecodeCommand(robot.Sticks{LX: 1, RX: 1, LY: 1}, robot.Vec3{0.6, 0.5, 0.8}, robot.Vec3{0.1, 0.1, 0.1})
	assert.InDeltaSlice(t, []float64{0.6, -0.5, -0.8}, got[:], 1e-12)

	// 0.15 * 0.6 = 0.09 falls under the forward deadband
	got = DecodeCommand(robot.Sticks{LY: 0.15}, robot.Vec3{0.6, 0.5, 0.8}, robot.Vec3{0.1, 0.1, 0.1})
	assert.Equal(t, 0.0, got[0])
}

func TestCommandIgnoresNonFiniteSticks(t *testing.T) {
	t.Parallel()
	b := NewBuilder(testConfig())
	snap := testSnapshot(t)
	require.NoError(t, robot.EncodeSticks(robot.Sticks{LX: math.Inf(1), RX: -0.5, LY: math.NaN()}, snap.Remote[:]))

	got := b.Build(snap, robot.Vec3{}, nil, 2001)
	assert.InDeltaSlice(t, []float64{0, 0, 0.4}, VelocityCommand(got), 1e-9)

	cmd := DecodeCommand(robot.Sticks{RX: math.Inf(-1)}, testConfig().Scale, testConfig().Deadband)
	assert.Equal(t, robot.Vec3{}, cmd)
}
