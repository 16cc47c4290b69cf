// Package pcap reads and writes libpcap-format capture files: a 24-byte
// global header followed by length-prefixed, timestamped records. The
// on-disk layout is bit-compatible with the public libpcap file format so
// containers written here open in third-party capture tooling and vice
// versa.
//
// Byte order is negotiated from the magic number on open: a byte-swapped
// magic marks a container written on a foreign-order host and every
// subsequent header field is swapped on read. Containers written here are
// always little-endian.
package pcap

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/perigee-data/groundcore/internal/timeutil"
)

// Magic numbers recognized in the global header. The swapped forms mark a
// container written with the opposite byte order; the "nanos" variants are
// the nanosecond-resolution flavor of the format.
const (
	Magic             = 0xA1B2C3D4
	MagicNanos        = 0xA1B23C4D
	magicSwapped      = 0xD4C3B2A1
	magicNanosSwapped = 0x4D3CB2A1
)

const (
	globalHeaderLen = 24
	packetHeaderLen = 16

	// DefaultSnapLen is the default maximum payload bytes retained per
	// record; longer payloads are truncated on write.
	DefaultSnapLen = 65535

	// DefaultNetwork is the default link-type tag (LINKTYPE_USER0).
	DefaultNetwork = 147
)

// GlobalHeader is the one-per-container file header, written once at
// creation and read once at open.
type GlobalHeader struct {
	MagicNumber  uint32
	VersionMajor uint16
	VersionMinor uint16
	ThisZone     int32
	SigFigs      uint32
	SnapLen      uint32
	Network      uint32
}

// NewGlobalHeader returns a global header with the standard defaults:
// format version 2.4, snap length 65535, link type 147.
func NewGlobalHeader() *GlobalHeader {
	return &GlobalHeader{
		MagicNumber:  Magic,
		VersionMajor: 2,
		VersionMinor: 4,
		ThisZone:     0,
		SigFigs:      0,
		SnapLen:      DefaultSnapLen,
		Network:      DefaultNetwork,
	}
}

func (h *GlobalHeader) marshal(order binary.ByteOrder) []byte {
	b := make([]byte, globalHeaderLen)
	order.PutUint32(b[0:4], h.MagicNumber)
	order.PutUint16(b[4:6], h.VersionMajor)
	order.PutUint16(b[6:8], h.VersionMinor)
	order.PutUint32(b[8:12], uint32(h.ThisZone))
	order.PutUint32(b[12:16], h.SigFigs)
	order.PutUint32(b[16:20], h.SnapLen)
	order.PutUint32(b[20:24], h.Network)
	return b
}

// readGlobalHeader reads and byte-order-detects a global header. A header
// shorter than its fixed size reports io.EOF: the container is incomplete
// and holds no records.
func readGlobalHeader(r io.Reader) (*GlobalHeader, binary.ByteOrder, error) {
	var b [globalHeaderLen]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, nil, err
	}

	// Try little-endian first; a swapped magic means the writer used the
	// opposite order.
	var order binary.ByteOrder = binary.LittleEndian
	switch binary.LittleEndian.Uint32(b[0:4]) {
	case Magic, MagicNanos:
	case magicSwapped, magicNanosSwapped:
		order = binary.BigEndian
	default:
		return nil, nil, fmt.Errorf("not a pcap file: bad magic 0x%08X", binary.LittleEndian.Uint32(b[0:4]))
	}

	h := &GlobalHeader{
		MagicNumber:  order.Uint32(b[0:4]),
		VersionMajor: order.Uint16(b[4:6]),
		VersionMinor: order.Uint16(b[6:8]),
		ThisZone:     int32(order.Uint32(b[8:12])),
		SigFigs:      order.Uint32(b[12:16]),
		SnapLen:      order.Uint32(b[16:20]),
		Network:      order.Uint32(b[20:24]),
	}
	return h, order, nil
}

// PacketHeader is the 16-byte per-record header. Field byte order is fixed
// by the global header of the containing file.
type PacketHeader struct {
	TsSec   uint32 // capture timestamp, whole seconds
	TsUsec  uint32 // capture timestamp, microseconds
	InclLen uint32 // payload bytes stored = min(OrigLen, SnapLen)
	OrigLen uint32 // true payload length before truncation
}

// Timestamp returns the capture timestamp as a UTC time.Time.
func (h *PacketHeader) Timestamp() time.Time {
	return time.Unix(int64(h.TsSec), int64(h.TsUsec)*1000).UTC()
}

func (h *PacketHeader) marshal(order binary.ByteOrder) []byte {
	b := make([]byte, packetHeaderLen)
	order.PutUint32(b[0:4], h.TsSec)
	order.PutUint32(b[4:8], h.TsUsec)
	order.PutUint32(b[8:12], h.InclLen)
	order.PutUint32(b[12:16], h.OrigLen)
	return b
}

// Stream is one open capture container. A Stream is either readable or
// writable depending on how it was opened, and is not safe for concurrent
// use; interleaved readers and writers need independent Streams on the
// same file.
type Stream struct {
	f        *os.File
	header   *GlobalHeader
	order    binary.ByteOrder
	clock    timeutil.Clock
	writable bool
}

// Option configures a Stream at open time.
type Option func(*Stream)

// WithClock overrides the wall clock used to stamp written records.
func WithClock(c timeutil.Clock) Option {
	return func(s *Stream) { s.clock = c }
}

// WithSnapLen sets the snap length of a newly created container. It has
// no effect on Open or on Append to a non-empty file.
func WithSnapLen(n uint32) Option {
	return func(s *Stream) { s.header.SnapLen = n }
}

// WithNetwork sets the link-type tag of a newly created container.
func WithNetwork(n uint32) Option {
	return func(s *Stream) { s.header.Network = n }
}

// Open opens an existing container for sequential reading. The global
// header is read immediately and its magic number determines the byte
// order applied to every record header.
func Open(name string) (*Stream, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	header, order, err := readGlobalHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read global header of %s: %w", name, err)
	}

	return &Stream{f: f, header: header, order: order, clock: timeutil.RealClock{}}, nil
}

// Create creates (or truncates) a container for writing. The global
// header is written immediately, before any records.
func Create(name string, opts ...Option) (*Stream, error) {
	s := &Stream{
		header:   NewGlobalHeader(),
		order:    binary.LittleEndian,
		clock:    timeutil.RealClock{},
		writable: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(s.header.marshal(s.order)); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write global header of %s: %w", name, err)
	}

	s.f = f
	return s, nil
}

// Append opens a container for appending. A new or empty destination gets
// a fresh global header, exactly like Create. A non-empty destination
// keeps its existing header, and appended records adopt the container's
// detected byte order and snap length so one file never mixes orders.
func Append(name string, opts ...Option) (*Stream, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	s := &Stream{
		f:        f,
		header:   NewGlobalHeader(),
		order:    binary.LittleEndian,
		clock:    timeutil.RealClock{},
		writable: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	if info.Size() == 0 {
		if _, err := f.Write(s.header.marshal(s.order)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write global header of %s: %w", name, err)
		}
		return s, nil
	}

	header, order, err := readGlobalHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read global header of %s: %w", name, err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}

	s.header = header
	s.order = order
	return s, nil
}

// Header returns the container's global header.
func (s *Stream) Header() *GlobalHeader { return s.header }

// ByteOrder returns the container's detected byte order.
func (s *Stream) ByteOrder() binary.ByteOrder { return s.order }

// Read returns the next record's header and payload. It reports io.EOF at
// the end of the container, including a header truncated mid-record: an
// incomplete header is the normal termination signal, not an error. A
// payload shorter than its header's InclLen reports io.ErrUnexpectedEOF.
func (s *Stream) Read() (*PacketHeader, []byte, error) {
	var b [packetHeaderLen]byte
	if _, err := io.ReadFull(s.f, b[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, nil, err
	}

	header := &PacketHeader{
		TsSec:   s.order.Uint32(b[0:4]),
		TsUsec:  s.order.Uint32(b[4:8]),
		InclLen: s.order.Uint32(b[8:12]),
		OrigLen: s.order.Uint32(b[12:16]),
	}

	payload := make([]byte, header.InclLen)
	if _, err := io.ReadFull(s.f, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, nil, fmt.Errorf("record truncated before %d payload bytes: %w", header.InclLen, err)
	}

	return header, payload, nil
}

// Write appends one record stamped with the current wall-clock time.
// Payloads longer than the container's snap length are truncated; the
// number of payload bytes actually written is returned.
func (s *Stream) Write(p []byte) (int, error) {
	now := s.clock.Now().UTC()
	header := &PacketHeader{
		TsSec:   uint32(now.Unix()),
		TsUsec:  uint32(now.Nanosecond() / 1000),
		InclLen: uint32(len(p)),
		OrigLen: uint32(len(p)),
	}
	if header.InclLen > s.header.SnapLen {
		header.InclLen = s.header.SnapLen
	}
	return s.writeRecord(header, p)
}

// WriteRecord appends one record with a caller-supplied header, keeping
// its timestamp and original length. InclLen is recomputed from the
// payload and the container's snap length.
func (s *Stream) WriteRecord(header *PacketHeader, p []byte) error {
	h := *header
	h.InclLen = uint32(len(p))
	if h.InclLen > s.header.SnapLen {
		h.InclLen = s.header.SnapLen
	}
	_, err := s.writeRecord(&h, p)
	return err
}

func (s *Stream) writeRecord(header *PacketHeader, p []byte) (int, error) {
	if !s.writable {
		return 0, fmt.Errorf("container is open read-only")
	}

	if _, err := s.f.Write(header.marshal(s.order)); err != nil {
		return 0, fmt.Errorf("failed to write packet header: %w", err)
	}
	if _, err := s.f.Write(p[:header.InclLen]); err != nil {
		return 0, fmt.Errorf("failed to write payload: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return 0, err
	}
	return int(header.InclLen), nil
}

// Close releases the underlying file. No operations are valid afterward.
func (s *Stream) Close() error {
	return s.f.Close()
}

// Query scans src sequentially and copies every record whose capture
// timestamp falls within [start, end] into a newly created dst, keeping
// each record's original timestamp. It returns the number of records
// copied. The destination inherits the source's snap length and link
// type.
func Query(src, dst string, start, end time.Time) (int, error) {
	in, err := Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := Create(dst, WithSnapLen(in.Header().SnapLen), WithNetwork(in.Header().Network))
	if err != nil {
		return 0, err
	}
	defer out.Close()

	copied := 0
	for {
		header, payload, err := in.Read()
		if err == io.EOF {
			return copied, nil
		}
		if err != nil {
			return copied, err
		}

		ts := header.Timestamp()
		if ts.Before(start) || ts.After(end) {
			continue
		}
		if err := out.WriteRecord(header, payload); err != nil {
			return copied, err
		}
		copied++
	}
}
