package fake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaitcore/internal/robot"
	"github.com/banshee-data/gaitcore/internal/timeutil"
	"github.com/banshee-data/gaitcore/internal/transport"
)

func TestTickingAdvancesClock(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	tr := New(Ticking(robot.Snapshot{}))
	tr.Clock = clock
	tr.RecvCost = 3 * time.Millisecond

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		snap, err := tr.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(i), snap.Tick)
	}
	assert.Equal(t, start.Add(9*time.Millisecond), clock.Now())
	assert.Equal(t, 3, tr.Reads())
}

func TestSequenceAndSend(t *testing.T) {
	t.Parallel()
	tr := New(Sequence(robot.Snapshot{Tick: 7}))
	ctx := context.Background()

	snap, err := tr.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), snap.Tick)
	_, err = tr.Recv(ctx)
	assert.ErrorIs(t, err, transport.ErrClosed)

	var cmd robot.Command
	cmd.Motors[2].Q = 1.5
	require.NoError(t, tr.Send(ctx, &cmd))
	cmd.Motors[2].Q = 0
	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, 1.5, sent[0].Motors[2].Q)
}

func TestFailAtAndClose(t *testing.T) {
	t.Parallel()
	boom := errors.New("link down")
	tr := New(FailAt(1, boom, Ticking(robot.Snapshot{})))
	ctx := context.Background()

	_, err := tr.Recv(ctx)
	require.NoError(t, err)
	_, err = tr.Recv(ctx)
	assert.ErrorIs(t, err, boom)

	require.NoError(t, tr.Close())
	_, err = tr.Recv(ctx)
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.ErrorIs(t, tr.Send(ctx, &robot.Command{}), transport.ErrClosed)
}

func TestKeepBoundsRetainedCommands(t *testing.T) {
	t.Parallel()
	tr := New(Ticking(robot.Snapshot{}))
	tr.Keep = 3
	ctx := context.Background()

	for i := 0; i < 5000; i++ {
		var cmd robot.Command
		cmd.Motors[0].Q = float64(i)
		require.NoError(t, tr.Send(ctx, &cmd))
	}
	sent := tr.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, []float64{4997, 4998, 4999}, []float64{sent[0].Motors[0].Q, sent[1].Motors[0].Q, sent[2].Motors[0].Q})
}
