package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/banshee-data/gaitcore/internal/robot"
)

// Bridge frame sizes in bytes. All fields are little-endian; every frame ends
// with the IEEE CRC-32 of the bytes before it.
const (
	StateFrameSize   = 4 + 9*4 + robot.NumJoints*3*4 + robot.RemoteBytes + 4
	CommandFrameSize = robot.NumJoints*5*4 + 4
)

var (
	// ErrFrameLength reports a frame of the wrong size.
	ErrFrameLength = errors.New("bad frame length")
	// ErrChecksum reports a CRC mismatch.
	ErrChecksum = errors.New("bad frame checksum")
)

// DropReason maps a codec error to the label used for dropped-frame
// counters.
func DropReason(err error) string {
	switch {
	case errors.Is(err, ErrFrameLength):
		return "length"
	case errors.Is(err, ErrChecksum):
		return "crc"
	default:
		return "other"
	}
}

type frameWriter struct {
	b   []byte
	off int
}

func (w *frameWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.b[w.off:], v)
	w.off += 4
}

func (w *frameWriter) f32(v float64) { w.u32(math.Float32bits(float32(v))) }

func (w *frameWriter) vec(v robot.Vec3) {
	for _, x := range v {
		w.f32(x)
	}
}

func (w *frameWriter) seal() {
	w.u32(crc32.ChecksumIEEE(w.b[:w.off]))
}

type frameReader struct {
	b   []byte
	off int
}

func (r *frameReader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v
}

func (r *frameReader) f32() float64 { return float64(math.Float32frombits(r.u32())) }

func (r *frameReader) vec() robot.Vec3 {
	return robot.Vec3{r.f32(), r.f32(), r.f32()}
}

func checkFrame(b []byte, size int) error {
	if len(b) != size {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrFrameLength, len(b), size)
	}
	body := b[:size-4]
	want := binary.LittleEndian.Uint32(b[size-4:])
	if got := crc32.ChecksumIEEE(body); got != want {
		return fmt.Errorf("%w: computed %08x, frame carries %08x", ErrChecksum, got, want)
	}
	return nil
}

// EncodeState serialises a snapshot as a state frame. ReceivedAt is not
// carried.
func EncodeState(s *robot.Snapshot) []byte {
	w := &frameWriter{b: make([]byte, StateFrameSize)}
	w.u32(s.Tick)
	w.vec(s.Orientation)
	w.vec(s.AngularRate)
	w.vec(s.LinearAccel)
	for _, m := range s.Motors {
		w.f32(m.Q)
		w.f32(m.DQ)
		w.f32(m.TauEst)
	}
	w.off += copy(w.b[w.off:], s.Remote[:])
	w.seal()
	return w.b
}

// DecodeState parses a state frame.
func DecodeState(b []byte) (*robot.Snapshot, error) {
	if err := checkFrame(b, StateFrameSize); err != nil {
		return nil, err
	}
	r := &frameReader{b: b}
	s := &robot.Snapshot{}
	s.Tick = r.u32()
	s.Orientation = r.vec()
	s.AngularRate = r.vec()
	s.LinearAccel = r.vec()
	for i := range s.Motors {
		s.Motors[i] = robot.MotorState{Q: r.f32(), DQ: r.f32(), TauEst: r.f32()}
	}
	copy(s.Remote[:], b[r.off:r.off+robot.RemoteBytes])
	return s, nil
}

// EncodeCommand serialises a command as a command frame.
func EncodeCommand(c *robot.Command) []byte {
	w := &frameWriter{b: make([]byte, CommandFrameSize)}
	for _, m := range c.Motors {
		w.f32(m.Q)
		w.f32(m.DQ)
		w.f32(m.Kp)
		w.f32(m.Kd)
		w.f32(m.Tau)
	}
	w.seal()
	return w.b
}

// DecodeCommand parses a command frame.
func DecodeCommand(b []byte) (*robot.Command, error) {
	if err := checkFrame(b, CommandFrameSize); err != nil {
		return nil, err
	}
	r := &frameReader{b: b}
	c := &robot.Command{}
	for i := range c.Motors {
		c.Motors[i] = robot.MotorCommand{Q: r.f32(), DQ: r.f32(), Kp: r.f32(), Kd: r.f32(), Tau: r.f32()}
	}
	return c, nil
}
