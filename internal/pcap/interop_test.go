package pcap

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perigee-data/groundcore/internal/timeutil"
)

// Containers written here must stay bit-compatible with the public
// libpcap format, so gopacket's pure-Go reader is the interop oracle.
func TestGopacketReadsOurContainers(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "interop.pcap")
	at := time.Date(2025, time.June, 1, 12, 0, 0, 500000000, time.UTC)
	payloads := [][]byte{
		[]byte("frame a"),
		[]byte("frame b with more bytes"),
	}
	writeContainer(t, path, payloads, WithClock(timeutil.NewMockClock(at)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)
	assert.Equal(t, uint32(DefaultSnapLen), r.Snaplen())
	assert.Equal(t, layers.LinkType(DefaultNetwork), r.LinkType())

	for i, want := range payloads {
		data, ci, err := r.ReadPacketData()
		require.NoError(t, err, "record %d", i)
		assert.Equal(t, want, data)
		assert.Equal(t, len(want), ci.CaptureLength)
		assert.Equal(t, len(want), ci.Length)
		assert.True(t, at.Equal(ci.Timestamp.UTC()))
	}

	_, _, err = r.ReadPacketData()
	assert.Equal(t, io.EOF, err)
}

func TestWeReadGopacketContainers(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "interop.pcap")
	at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	f, err := os.Create(path)
	require.NoError(t, err)
	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(DefaultSnapLen, layers.LinkType(DefaultNetwork)))

	payload := []byte("written by gopacket")
	ci := gopacket.CaptureInfo{
		Timestamp:     at,
		CaptureLength: len(payload),
		Length:        len(payload),
	}
	require.NoError(t, w.WritePacket(ci, payload))
	require.NoError(t, f.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	header, got, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, uint32(len(payload)), header.OrigLen)
	assert.True(t, at.Equal(header.Timestamp()))

	_, _, err = s.Read()
	assert.Equal(t, io.EOF, err)
}
