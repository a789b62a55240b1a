package robot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSticksRoundTrip(t *testing.T) {
	t.Parallel()
	want := Sticks{LX: 0.25, RX: -0.5, RY: 0.75, LY: 1}

	var buf [RemoteBytes]byte
	require.NoError(t, EncodeSticks(want, buf[:]))

	got, err := DecodeSticks(buf[:])
	require.NoError(t, err)
	assert.Equal(t, want, got)

	s := Snapshot{Remote: buf}
	assert.Equal(t, want, s.Sticks())
}

func TestDecodeSticksShortBuffer(t *testing.T) {
	t.Parallel()
	_, err := DecodeSticks(make([]byte, 23))
	assert.Error(t, err)
	assert.Error(t, EncodeSticks(Sticks{}, make([]byte, 10)))

	_, err = DecodeSticks(make([]byte, 24))
	assert.NoError(t, err)
}
