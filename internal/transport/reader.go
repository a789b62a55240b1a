package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/gaitcore/internal/fault"
	"github.com/banshee-data/gaitcore/internal/robot"
)

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	// Timeout bounds each Read. Zero waits until ctx is done.
	Timeout time.Duration
	// MaxStale is the number of consecutive reads that may repeat the
	// previous tick before Read fails with ErrStale. Zero disables the check.
	MaxStale int
}

// Reader is the per-cycle snapshot reader and command writer. It is owned by
// the control loop.
type Reader struct {
	t   Transport
	cfg ReaderConfig

	seen     bool
	lastTick uint32
	repeats  int
}

func NewReader(t Transport, cfg ReaderConfig) *Reader {
	return &Reader{t: t, cfg: cfg}
}

// Read returns the next snapshot. Any failure other than ctx being done is a
// *fault.TransportError at StageRead. When ctx is done Read returns ctx.Err()
// unwrapped so callers can tell shutdown from a broken link.
func (r *Reader) Read(ctx context.Context) (*robot.Snapshot, error) {
	rctx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	snap, err := r.t.Recv(rctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrTimeout, r.cfg.Timeout)
		}
		return nil, &fault.TransportError{Stage: fault.StageRead, Err: err}
	}

	if r.seen && snap.Tick == r.lastTick {
		r.repeats++
		if r.cfg.MaxStale > 0 && r.repeats >= r.cfg.MaxStale {
			return nil, &fault.TransportError{
				Stage: fault.StageRead,
				Err:   fmt.Errorf("%w: tick %d repeated %d times", ErrStale, snap.Tick, r.repeats),
			}
		}
	} else {
		r.repeats = 0
	}
	r.seen = true
	r.lastTick = snap.Tick
	return snap, nil
}

// Write sends cmd. Failures are a *fault.TransportError at StageSend.
func (r *Reader) Write(ctx context.Context, cmd *robot.Command) error {
	if err := r.t.Send(ctx, cmd); err != nil {
		return &fault.TransportError{Stage: fault.StageSend, Err: err}
	}
	return nil
}
