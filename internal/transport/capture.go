package transport

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const captureSnapLen = 65536

// CaptureWriter writes bridge frames to a pcap stream as Ethernet/IPv4/UDP
// packets, so a session can be replayed later with OpenReplay.
type CaptureWriter struct {
	mu  sync.Mutex
	w   *pcapgo.Writer
	src *net.UDPAddr
	dst *net.UDPAddr
}

// NewCaptureWriter writes the pcap file header to w. Frames are stamped as
// travelling from src to dst; both must be IPv4.
func NewCaptureWriter(w io.Writer, src, dst *net.UDPAddr) (*CaptureWriter, error) {
	if src.IP.To4() == nil || dst.IP.To4() == nil {
		return nil, fmt.Errorf("capture addresses must be IPv4, got %v -> %v", src, dst)
	}
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(captureSnapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &CaptureWriter{w: pw, src: src, dst: dst}, nil
}

// WriteFrame appends one UDP packet carrying payload.
func (c *CaptureWriter) WriteFrame(ts time.Time, payload []byte) error {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    c.src.IP.To4(),
		DstIP:    c.dst.IP.To4(),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(c.src.Port),
		DstPort: layers.UDPPort(c.dst.Port),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("failed to serialize packet: %w", err)
	}
	data := buf.Bytes()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}, data)
}
