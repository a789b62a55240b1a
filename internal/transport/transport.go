// Package transport moves telemetry snapshots and motor commands between the
// control loop and the robot bridge.
//
// A Transport is the raw link (UDP, a PCAP replay, or the in-memory fake).
// Reader wraps one with the per-cycle read contract: a bounded wait, stale
// tick detection, and fault.TransportError on every failure.
package transport

import (
	"context"
	"errors"

	"github.com/banshee-data/gaitcore/internal/robot"
)

var (
	// ErrClosed reports a transport that has been closed or has no more data.
	ErrClosed = errors.New("transport closed")
	// ErrTimeout reports a read that waited longer than the receive timeout.
	ErrTimeout = errors.New("snapshot read timed out")
	// ErrStale reports a robot whose tick stopped advancing.
	ErrStale = errors.New("snapshot stale")
	// ErrNoPeer reports a send before the robot address is known.
	ErrNoPeer = errors.New("robot address unknown")
)

// Transport is a bidirectional link to the robot bridge.
type Transport interface {
	// Recv blocks until a snapshot arrives or ctx is done.
	Recv(ctx context.Context) (*robot.Snapshot, error)
	// Send transmits one command record.
	Send(ctx context.Context, cmd *robot.Command) error
	Close() error
}

// FrameStats receives per-frame counters from a transport.
type FrameStats interface {
	AddFrame(bytes int)
	AddDropped(reason string)
}

type noopStats struct{}

func (noopStats) AddFrame(int)      {}
func (noopStats) AddDropped(string) {}
