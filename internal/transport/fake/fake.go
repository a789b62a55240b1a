// Package fake provides a scriptable in-memory Transport for tests and dry
// runs.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/gaitcore/internal/robot"
	"github.com/banshee-data/gaitcore/internal/timeutil"
	"github.com/banshee-data/gaitcore/internal/transport"
)

// Script returns the snapshot for read i (0-based).
type Script func(i int) (*robot.Snapshot, error)

// Ticking returns base on every read with Tick set to i+1.
func Ticking(base robot.Snapshot) Script {
	return func(i int) (*robot.Snapshot, error) {
		s := base
		s.Tick = uint32(i + 1)
		return &s, nil
	}
}

// Sequence returns snaps in order, then transport.ErrClosed.
func Sequence(snaps ...robot.Snapshot) Script {
	return func(i int) (*robot.Snapshot, error) {
		if i >= len(snaps) {
			return nil, transport.ErrClosed
		}
		s := snaps[i]
		return &s, nil
	}
}

// FailAt runs s and returns err from read n onward.
func FailAt(n int, err error, s Script) Script {
	return func(i int) (*robot.Snapshot, error) {
		if i >= n {
			return nil, err
		}
		return s(i)
	}
}

// Transport replays a Script. When Clock is a MockClock, RecvCost is added to
// it on every read so a loop sees simulated processing time.
type Transport struct {
	Script   Script
	Clock    *timeutil.MockClock
	RecvCost time.Duration
	// SendErr, when set, is returned by every Send.
	SendErr error
	// Keep bounds how many of the most recent commands Sent retains. Zero
	// keeps every command.
	Keep int

	mu     sync.Mutex
	reads  int
	sent   []robot.Command
	closed bool
}

var _ transport.Transport = (*Transport)(nil)

// New returns a Transport driven by s.
func New(s Script) *Transport {
	return &Transport{Script: s}
}

func (t *Transport) Recv(ctx context.Context) (*robot.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, transport.ErrClosed
	}
	i := t.reads
	t.reads++
	t.mu.Unlock()

	if t.Clock != nil && t.RecvCost > 0 {
		t.Clock.Advance(t.RecvCost)
	}
	snap, err := t.Script(i)
	if err != nil {
		return nil, err
	}
	if t.Clock != nil {
		snap.ReceivedAt = t.Clock.Now()
	}
	return snap, nil
}

func (t *Transport) Send(_ context.Context, cmd *robot.Command) error {
	if t.SendErr != nil {
		return t.SendErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrClosed
	}
	t.sent = append(t.sent, *cmd)
	if t.Keep > 0 && len(t.sent) > t.Keep {
		n := copy(t.sent, t.sent[len(t.sent)-t.Keep:])
		t.sent = t.sent[:n]
	}
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Sent returns a copy of the retained commands, oldest first.
func (t *Transport) Sent() []robot.Command {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]robot.Command, len(t.sent))
	copy(out, t.sent)
	return out
}

// Reads returns the number of Recv calls that reached the script.
func (t *Transport) Reads() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reads
}
