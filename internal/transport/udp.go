package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/gaitcore/internal/monitoring"
	"github.com/banshee-data/gaitcore/internal/robot"
	"github.com/banshee-data/gaitcore/internal/timeutil"
)

// Socket is the subset of *net.UDPConn used by UDP, so tests can inject a
// socket without a network.
type Socket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
	SetReadDeadline(t time.Time) error
	SetReadBuffer(bytes int) error
	Close() error
	LocalAddr() net.Addr
}

// UDPConfig contains configuration options for the UDP bridge transport.
type UDPConfig struct {
	// ListenAddress is the local address state frames arrive on, e.g. ":8007".
	ListenAddress string
	// RobotAddress is where command frames are sent. When empty the source
	// address of the latest valid state frame is used.
	RobotAddress string
	RcvBuf       int
	// PollInterval bounds each socket read so ctx is checked regularly.
	PollInterval time.Duration
	Stats        FrameStats
	Clock        timeutil.Clock
	// Capture, when set, receives a copy of every valid state frame.
	Capture *CaptureWriter
	// Socket replaces the socket opened from ListenAddress.
	Socket Socket
}

// UDP exchanges bridge frames over a UDP socket.
type UDP struct {
	sock     Socket
	poll     time.Duration
	stats    FrameStats
	clock    timeutil.Clock
	capture  *CaptureWriter
	badFrame *monitoring.Throttle
	buf      []byte

	mu        sync.Mutex
	peer      *net.UDPAddr
	fixedPeer bool
}

// ListenUDP opens the bridge socket.
func ListenUDP(cfg UDPConfig) (*UDP, error) {
	u := &UDP{
		sock:     cfg.Socket,
		poll:     cfg.PollInterval,
		stats:    cfg.Stats,
		clock:    cfg.Clock,
		capture:  cfg.Capture,
		badFrame: monitoring.NewThrottle(time.Second),
		buf:      make([]byte, 2048),
	}
	if u.poll <= 0 {
		u.poll = 100 * time.Millisecond
	}
	if u.stats == nil {
		u.stats = noopStats{}
	}
	if u.clock == nil {
		u.clock = timeutil.RealClock{}
	}

	if cfg.RobotAddress != "" {
		peer, err := net.ResolveUDPAddr("udp", cfg.RobotAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve robot address: %w", err)
		}
		u.peer = peer
		u.fixedPeer = true
	}

	if u.sock == nil {
		addr, err := net.ResolveUDPAddr("udp", cfg.ListenAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
		}
		conn, err := net.ListenUDP("udp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on UDP address: %w", err)
		}
		u.sock = conn
	}

	if cfg.RcvBuf > 0 {
		if err := u.sock.SetReadBuffer(cfg.RcvBuf); err != nil {
			log.Printf("Warning: Failed to set UDP receive buffer size to %d: %v", cfg.RcvBuf, err)
		}
	}
	log.Printf("UDP bridge transport listening on %s", u.sock.LocalAddr())
	return u, nil
}

// LocalAddr returns the bound address.
func (u *UDP) LocalAddr() net.Addr { return u.sock.LocalAddr() }

// drainWait bounds each read that empties the socket queue behind a frame.
const drainWait = 250 * time.Microsecond

// Recv reads until a valid state frame arrives, then drains any frames
// already queued behind it and returns the newest. Malformed frames are
// counted and skipped.
func (u *UDP) Recv(ctx context.Context) (*robot.Snapshot, error) {
	snap, err := u.read(ctx, u.poll, true)
	if err != nil {
		return nil, err
	}
	for {
		newer, err := u.read(ctx, drainWait, false)
		if err != nil || newer == nil {
			// a closed socket or cancelled ctx surfaces on the next Recv
			return snap, nil
		}
		snap = newer
	}
}

// read returns the next valid state frame. With block unset it returns a
// nil snapshot once a read times out.
func (u *UDP) read(ctx context.Context, wait time.Duration, block bool) (*robot.Snapshot, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		deadline := time.Now().Add(wait)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := u.sock.SetReadDeadline(deadline); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("udp set read deadline: %w", err)
		}

		n, addr, err := u.sock.ReadFromUDP(u.buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if !block {
					return nil, nil
				}
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("udp read: %w", err)
		}

		frame := u.buf[:n]
		snap, err := DecodeState(frame)
		if err != nil {
			u.stats.AddDropped(DropReason(err))
			u.badFrame.Logf("dropping frame from %v: %v", addr, err)
			continue
		}
		u.stats.AddFrame(n)
		snap.ReceivedAt = u.clock.Now()

		if u.capture != nil {
			if err := u.capture.WriteFrame(snap.ReceivedAt, frame); err != nil {
				u.badFrame.Logf("capture write failed: %v", err)
			}
		}

		if !u.fixedPeer && addr != nil {
			u.mu.Lock()
			u.peer = addr
			u.mu.Unlock()
		}
		return snap, nil
	}
}

// Send writes one command frame to the robot.
func (u *UDP) Send(ctx context.Context, cmd *robot.Command) error {
	u.mu.Lock()
	peer := u.peer
	u.mu.Unlock()
	if peer == nil {
		return ErrNoPeer
	}
	if _, err := u.sock.WriteToUDP(EncodeCommand(cmd), peer); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("udp write: %w", err)
	}
	return nil
}

func (u *UDP) Close() error {
	return u.sock.Close()
}
