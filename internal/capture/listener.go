// Package capture records telemetry datagrams to a packet capture
// container. It is the recording front half of the ground data system:
// every datagram received on the configured UDP socket is appended to a
// pcap file and, optionally, archived to the telemetry database.
package capture

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/perigee-data/groundcore/internal/monitoring"
	"github.com/perigee-data/groundcore/internal/pcap"
	"github.com/perigee-data/groundcore/internal/timeutil"
	"github.com/perigee-data/groundcore/internal/tlmdb"
)

// Archiver receives every recorded packet. *tlmdb.Store satisfies it.
type Archiver interface {
	InsertPacket(p *tlmdb.Packet) error
}

// Config contains configuration options for a capture Listener.
type Config struct {
	Address     string        // UDP bind address, e.g. ":3076"
	RcvBuf      int           // socket receive buffer, 0 for the OS default
	Path        string        // pcap container to append to
	SnapLen     uint32        // snap length for a newly created container
	LogInterval time.Duration // stats log cadence, default one minute
	Archive     Archiver      // optional packet archive
	SessionID   string        // archive session, required when Archive is set
	Clock       timeutil.Clock
}

// Listener receives telemetry datagrams and appends them to a container.
type Listener struct {
	cfg    Config
	clock  timeutil.Clock
	stats  *Stats
	seq    int64
	stream *pcap.Stream

	mu   sync.Mutex
	addr net.Addr
}

// NewListener creates a capture listener from the provided configuration.
func NewListener(cfg Config) *Listener {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.LogInterval == 0 {
		cfg.LogInterval = time.Minute
	}
	if cfg.SnapLen == 0 {
		cfg.SnapLen = pcap.DefaultSnapLen
	}
	return &Listener{cfg: cfg, clock: clock, stats: &Stats{}}
}

// Stats returns the listener's packet counters.
func (l *Listener) Stats() *Stats { return l.stats }

// Addr returns the bound socket address, or nil before Run has opened the
// socket. Useful when the configured address requests an ephemeral port.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr
}

// Run listens for datagrams until the context is cancelled. The container
// and socket are released on every exit path.
func (l *Listener) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", l.cfg.Address, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.cfg.Address, err)
	}
	defer conn.Close()

	if l.cfg.RcvBuf > 0 {
		if err := conn.SetReadBuffer(l.cfg.RcvBuf); err != nil {
			monitoring.Logf("Warning: failed to set UDP receive buffer to %d: %v", l.cfg.RcvBuf, err)
		}
	}

	stream, err := pcap.Append(l.cfg.Path, pcap.WithSnapLen(l.cfg.SnapLen), pcap.WithClock(l.clock))
	if err != nil {
		return fmt.Errorf("failed to open container %s: %w", l.cfg.Path, err)
	}
	defer stream.Close()
	l.stream = stream

	l.mu.Lock()
	l.addr = conn.LocalAddr()
	l.mu.Unlock()

	monitoring.Logf("capture listener started on %s, recording to %s (snaplen %d)",
		conn.LocalAddr(), l.cfg.Path, stream.Header().SnapLen)

	go l.logStatsPeriodically(ctx)

	buffer := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("capture listener stopping due to context cancellation")
			return ctx.Err()
		default:
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

			n, _, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				monitoring.Logf("UDP read error: %v", err)
				continue
			}

			if err := l.record(buffer[:n]); err != nil {
				l.stats.AddDropped()
				monitoring.Logf("Error recording packet: %v", err)
			}
		}
	}
}

func (l *Listener) record(payload []byte) error {
	stored, err := l.stream.Write(payload)
	if err != nil {
		return err
	}

	l.stats.AddPacket(stored)
	if stored < len(payload) {
		l.stats.AddTruncated()
	}

	if l.cfg.Archive != nil {
		err := l.cfg.Archive.InsertPacket(&tlmdb.Packet{
			SessionID: l.cfg.SessionID,
			Seq:       l.seq,
			Timestamp: l.clock.Now().UTC(),
			InclLen:   uint32(stored),
			OrigLen:   uint32(len(payload)),
			Payload:   payload[:stored],
		})
		if err != nil {
			return fmt.Errorf("archive insert failed: %w", err)
		}
	}
	l.seq++

	return nil
}

func (l *Listener) logStatsPeriodically(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.LogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats()
		}
	}
}
