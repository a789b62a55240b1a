package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/gaitcore/internal/robot"
	"github.com/banshee-data/gaitcore/internal/timeutil"
)

// ReplayConfig configures a PCAP replay transport.
type ReplayConfig struct {
	Path string
	// Port filters UDP packets by source or destination port. Zero accepts
	// any UDP packet.
	Port int
	// Realtime paces snapshots by their capture timestamps. Otherwise each
	// Recv returns the next frame immediately.
	Realtime bool
	Stats    FrameStats
	Clock    timeutil.Clock
}

type packetReader interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// Replay feeds recorded state frames from a pcap or pcapng file to the
// control loop. Commands are counted, not transmitted.
type Replay struct {
	path     string
	f        io.Closer
	packets  chan gopacket.Packet
	port     layers.UDPPort
	realtime bool
	stats    FrameStats
	clock    timeutil.Clock

	firstCapture time.Time
	firstWall    time.Time
	frames       int

	mu   sync.Mutex
	sent int
	last robot.Command
}

// paceSlice bounds each realtime pacing sleep so cancellation is noticed.
const paceSlice = 50 * time.Millisecond

var pcapNGMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// OpenReplay opens a capture file. Both classic pcap and pcapng are accepted.
func OpenReplay(cfg ReplayConfig) (*Replay, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %s: %w", cfg.Path, err)
	}
	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}

	var src packetReader
	if bytes.Equal(magic, pcapNGMagic) {
		src, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		src, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to parse capture %s: %w", cfg.Path, err)
	}

	r := &Replay{
		path:     cfg.Path,
		f:        f,
		packets:  gopacket.NewPacketSource(src, src.LinkType()).Packets(),
		port:     layers.UDPPort(cfg.Port),
		realtime: cfg.Realtime,
		stats:    cfg.Stats,
		clock:    cfg.Clock,
	}
	if r.stats == nil {
		r.stats = noopStats{}
	}
	if r.clock == nil {
		r.clock = timeutil.RealClock{}
	}
	log.Printf("Replaying bridge capture %s (link type %s)", cfg.Path, src.LinkType())
	return r, nil
}

// Recv returns the next state frame in the capture. At end of file it
// returns ErrClosed.
func (r *Replay) Recv(ctx context.Context) (*robot.Snapshot, error) {
	for {
		var pkt gopacket.Packet
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case p, ok := <-r.packets:
			if !ok || p == nil {
				log.Printf("Capture %s exhausted after %d frames", r.path, r.frames)
				return nil, ErrClosed
			}
			pkt = p
		}

		udpLayer := pkt.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if r.port != 0 && udp.DstPort != r.port && udp.SrcPort != r.port {
			continue
		}

		snap, err := DecodeState(udp.Payload)
		if err != nil {
			r.stats.AddDropped(DropReason(err))
			continue
		}
		r.stats.AddFrame(len(udp.Payload))

		if err := r.pace(ctx, pkt.Metadata().Timestamp); err != nil {
			return nil, err
		}
		r.frames++
		snap.ReceivedAt = r.clock.Now()
		return snap, nil
	}
}

func (r *Replay) pace(ctx context.Context, captured time.Time) error {
	if !r.realtime {
		return nil
	}
	if r.firstCapture.IsZero() {
		r.firstCapture = captured
		r.firstWall = r.clock.Now()
		return nil
	}
	offset := captured.Sub(r.firstCapture)
	for {
		wait := offset - r.clock.Since(r.firstWall)
		if wait <= 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if wait > paceSlice {
			wait = paceSlice
		}
		r.clock.Sleep(wait)
	}
}

// Send records cmd as the latest command.
func (r *Replay) Send(_ context.Context, cmd *robot.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent++
	r.last = *cmd
	return nil
}

// Sent returns the number of commands sent and the latest one.
func (r *Replay) Sent() (int, robot.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent, r.last
}

func (r *Replay) Close() error {
	return r.f.Close()
}
