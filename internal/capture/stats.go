package capture

import (
	"sync"

	"github.com/perigee-data/groundcore/internal/monitoring"
)

// Stats tracks packet counters for a capture run.
type Stats struct {
	mu        sync.Mutex
	packets   int64
	bytes     int64
	truncated int64
	dropped   int64
}

// AddPacket records one received datagram and the payload bytes stored.
func (s *Stats) AddPacket(n int) {
	s.mu.Lock()
	s.packets++
	s.bytes += int64(n)
	s.mu.Unlock()
}

// AddTruncated records a datagram longer than the container snap length.
func (s *Stats) AddTruncated() {
	s.mu.Lock()
	s.truncated++
	s.mu.Unlock()
}

// AddDropped records a datagram that could not be recorded.
func (s *Stats) AddDropped() {
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() (packets, bytes, truncated, dropped int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packets, s.bytes, s.truncated, s.dropped
}

// LogStats writes a one-line counter summary to the process log.
func (s *Stats) LogStats() {
	packets, bytes, truncated, dropped := s.Snapshot()
	monitoring.Logf("capture stats: %d packets, %d bytes stored, %d truncated, %d dropped",
		packets, bytes, truncated, dropped)
}
