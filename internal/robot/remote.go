package robot

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Byte offsets of the float32 stick channels in the wireless remote buffer.
const (
	RemoteLXOffset = 4
	RemoteRXOffset = 8
	RemoteRYOffset = 12
	RemoteLYOffset = 20

	// minRemoteBytes is the shortest buffer that holds every channel read.
	minRemoteBytes = RemoteLYOffset + 4
)

// Sticks holds the decoded analog stick channels, each nominally in [-1, 1].
type Sticks struct {
	LX, RX, RY, LY float64
}

// DecodeSticks reads the little-endian float32 stick channels from b.
func DecodeSticks(b []byte) (Sticks, error) {
	if len(b) < minRemoteBytes {
		return Sticks{}, fmt.Errorf("remote buffer too short: %d bytes, need %d", len(b), minRemoteBytes)
	}
	return Sticks{
		LX: readFloat32(b, RemoteLXOffset),
		RX: readFloat32(b, RemoteRXOffset),
		RY: readFloat32(b, RemoteRYOffset),
		LY: readFloat32(b, RemoteLYOffset),
	}, nil
}

// EncodeSticks writes s into b at the channel offsets. b must hold at least
// 24 bytes.
func EncodeSticks(s Sticks, b []byte) error {
	if len(b) < minRemoteBytes {
		return fmt.Errorf("remote buffer too short: %d bytes, need %d", len(b), minRemoteBytes)
	}
	writeFloat32(b, RemoteLXOffset, s.LX)
	writeFloat32(b, RemoteRXOffset, s.RX)
	writeFloat32(b, RemoteRYOffset, s.RY)
	writeFloat32(b, RemoteLYOffset, s.LY)
	return nil
}

func readFloat32(b []byte, off int) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off : off+4])))
}

func writeFloat32(b []byte, off int, v float64) {
	binary.LittleEndian.PutUint32(b[off:off+4], math.Float32bits(float32(v)))
}
