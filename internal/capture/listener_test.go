package capture

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perigee-data/groundcore/internal/monitoring"
	"github.com/perigee-data/groundcore/internal/pcap"
	"github.com/perigee-data/groundcore/internal/tlmdb"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// memoryArchive collects inserted packets without a database.
type memoryArchive struct {
	packets []tlmdb.Packet
}

func (m *memoryArchive) InsertPacket(p *tlmdb.Packet) error {
	cp := *p
	cp.Payload = append([]byte(nil), p.Payload...)
	m.packets = append(m.packets, cp)
	return nil
}

func waitForAddr(t *testing.T, l *Listener) net.Addr {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if addr := l.Addr(); addr != nil {
			return addr
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("listener did not bind in time")
	return nil
}

func readAll(t *testing.T, path string) [][]byte {
	t.Helper()
	s, err := pcap.Open(path)
	require.NoError(t, err)
	defer s.Close()

	var payloads [][]byte
	for {
		_, payload, err := s.Read()
		if err == io.EOF {
			return payloads
		}
		require.NoError(t, err)
		payloads = append(payloads, payload)
	}
}

func TestListenerRecordsDatagrams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")
	archive := &memoryArchive{}

	l := NewListener(Config{
		Address:   "127.0.0.1:0",
		Path:      path,
		Archive:   archive,
		SessionID: "test-session",
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	addr := waitForAddr(t, l)

	conn, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	sent := [][]byte{
		[]byte("telemetry frame 1"),
		[]byte("telemetry frame 2"),
		[]byte("telemetry frame 3"),
	}
	for _, p := range sent {
		_, err := conn.Write(p)
		require.NoError(t, err)
	}

	// wait for the datagrams to be recorded before stopping
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if packets, _, _, _ := l.Stats().Snapshot(); packets == int64(len(sent)) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	err = <-done
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, sent, readAll(t, path))

	require.Len(t, archive.packets, len(sent))
	for i, p := range archive.packets {
		assert.Equal(t, "test-session", p.SessionID)
		assert.Equal(t, int64(i), p.Seq)
		assert.Equal(t, sent[i], p.Payload)
	}
}

func TestListenerTruncatesToSnapLen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")

	l := NewListener(Config{
		Address: "127.0.0.1:0",
		Path:    path,
		SnapLen: 8,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	addr := waitForAddr(t, l)
	conn, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("0123456789abcdef"))
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if packets, _, _, _ := l.Stats().Snapshot(); packets == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done

	payloads := readAll(t, path)
	require.Len(t, payloads, 1)
	assert.Equal(t, []byte("01234567"), payloads[0])

	_, _, truncated, _ := l.Stats().Snapshot()
	assert.Equal(t, int64(1), truncated)
}

func TestListenerBadAddress(t *testing.T) {
	t.Parallel()

	l := NewListener(Config{Address: "not-an-address", Path: "unused.pcap"})
	err := l.Run(context.Background())
	assert.Error(t, err)
}
