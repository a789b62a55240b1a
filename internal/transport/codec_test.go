package transport

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaitcore/internal/robot"
)

// sampleSnapshot uses values exactly representable as float32.
func sampleSnapshot() *robot.Snapshot {
	s := &robot.Snapshot{
		Tick:        4242,
		Orientation: robot.Vec3{0.125, -0.25, 3},
		AngularRate: robot.Vec3{0.5, 0.75, -1},
		LinearAccel: robot.Vec3{0, 0, 9.75},
	}
	for i := range s.Motors {
		s.Motors[i] = robot.MotorState{Q: float64(i) / 8, DQ: -float64(i), TauEst: float64(i) / 2}
	}
	_ = robot.EncodeSticks(robot.Sticks{LX: 0.5, RX: -0.25, LY: 1}, s.Remote[:])
	return s
}

func TestFrameSizes(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 228, StateFrameSize)
	assert.Equal(t, 244, CommandFrameSize)
}

func TestStateFrameRoundTrip(t *testing.T) {
	t.Parallel()
	want := sampleSnapshot()
	frame := EncodeState(want)
	require.Len(t, frame, StateFrameSize)

	got, err := DecodeState(frame)
	require.NoError(t, err)
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("snapshot mismatch (-got +want):\n%s", diff)
	}
}

func TestCommandFrameRoundTrip(t *testing.T) {
	t.Parallel()
	want := &robot.Command{}
	for i := range want.Motors {
		want.Motors[i] = robot.MotorCommand{Q: float64(i) / 4, Kp: 20, Kd: 5}
	}
	got, err := DecodeCommand(EncodeCommand(want))
	require.NoError(t, err)
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("command mismatch (-got +want):\n%s", diff)
	}
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	t.Parallel()
	frame := EncodeState(sampleSnapshot())

	_, err := DecodeState(frame[:len(frame)-1])
	assert.ErrorIs(t, err, ErrFrameLength)
	assert.Equal(t, "length", DropReason(err))

	corrupt := append([]byte(nil), frame...)
	corrupt[10] ^= 0xff
	_, err = DecodeState(corrupt)
	assert.ErrorIs(t, err, ErrChecksum)
	assert.Equal(t, "crc", DropReason(err))

	_, err = DecodeCommand(frame)
	assert.ErrorIs(t, err, ErrFrameLength)
}
