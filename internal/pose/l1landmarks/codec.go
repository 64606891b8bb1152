package l1landmarks

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

/*
Landmark datagram layout (little-endian, 420 bytes):

	offset  size  field
	0       4     magic "PLMK"
	4       1     version (1)
	5       1     flags (bit 0: points are normalized screen coordinates)
	6       2     point count (always 33)
	8       8     sequence number
	16      8     capture timestamp, unix nanoseconds
	24      396   33 × (x, y, z) float32

One datagram carries exactly one frame; the tracker process sends one per
inference result. The same encoding is used for recorded frames.
*/

const (
	DATAGRAM_MAGIC   = "PLMK"
	DATAGRAM_VERSION = 1
	HEADER_SIZE      = 24
	POINT_SIZE       = 12
	DATAGRAM_SIZE    = HEADER_SIZE + Count*POINT_SIZE

	// FlagNormalized marks points as normalized screen coordinates that
	// still need projecting (see Projector).
	FlagNormalized uint8 = 1 << 0
)

var (
	// ErrShortDatagram is returned when a payload is smaller than DATAGRAM_SIZE.
	ErrShortDatagram = errors.New("short landmark datagram")
	// ErrBadMagic is returned when a payload does not start with DATAGRAM_MAGIC.
	ErrBadMagic = errors.New("bad landmark datagram magic")
	// ErrVersion is returned for an unsupported datagram version.
	ErrVersion = errors.New("unsupported landmark datagram version")
)

// AppendDatagram appends the wire encoding of f to dst.
func AppendDatagram(dst []byte, f *Frame, flags uint8) []byte {
	var hdr [HEADER_SIZE]byte
	copy(hdr[0:4], DATAGRAM_MAGIC)
	hdr[4] = DATAGRAM_VERSION
	hdr[5] = flags
	binary.LittleEndian.PutUint16(hdr[6:8], Count)
	binary.LittleEndian.PutUint64(hdr[8:16], f.Seq)
	var ts int64
	if !f.Timestamp.IsZero() {
		ts = f.Timestamp.UnixNano()
	}
	binary.LittleEndian.PutUint64(hdr[16:24], uint64(ts))
	dst = append(dst, hdr[:]...)

	for _, p := range f.Points {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(p.X)))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(p.Y)))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(p.Z)))
	}
	return dst
}

// DecodeDatagram parses one landmark datagram. The returned frame has
// passed boundary validation.
func DecodeDatagram(b []byte) (Frame, uint8, error) {
	var f Frame
	if len(b) < HEADER_SIZE {
		return f, 0, fmt.Errorf("%w: %d bytes", ErrShortDatagram, len(b))
	}
	if string(b[0:4]) != DATAGRAM_MAGIC {
		return f, 0, fmt.Errorf("%w: %q", ErrBadMagic, b[0:4])
	}
	if b[4] != DATAGRAM_VERSION {
		return f, 0, fmt.Errorf("%w: %d", ErrVersion, b[4])
	}
	flags := b[5]
	if n := binary.LittleEndian.Uint16(b[6:8]); n != Count {
		return f, 0, fmt.Errorf("%w: got %d, want %d", ErrLandmarkCount, n, Count)
	}
	if len(b) < DATAGRAM_SIZE {
		return f, 0, fmt.Errorf("%w: %d bytes, want %d", ErrShortDatagram, len(b), DATAGRAM_SIZE)
	}

	f.Seq = binary.LittleEndian.Uint64(b[8:16])
	if ts := int64(binary.LittleEndian.Uint64(b[16:24])); ts != 0 {
		f.Timestamp = time.Unix(0, ts)
	}

	off := HEADER_SIZE
	for i := range f.Points {
		f.Points[i] = r3.Vec{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off+4:]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off+8:]))),
		}
		off += POINT_SIZE
	}
	if err := f.Validate(); err != nil {
		return f, flags, err
	}
	return f, flags, nil
}

// Parser turns datagrams into frames, projecting normalized points into
// screen space with its Projector.
type Parser struct {
	projector Projector
	// ForceProject projects every frame regardless of the datagram flag, for
	// trackers that send normalized points without marking them.
	ForceProject bool

	lastSeq uint64
	gaps    uint64
}

// NewParser creates a Parser that projects normalized datagrams with p.
func NewParser(p Projector) *Parser {
	return &Parser{projector: p}
}

// ParseDatagram decodes and, when flagged, projects one datagram.
func (p *Parser) ParseDatagram(b []byte) (Frame, error) {
	f, flags, err := DecodeDatagram(b)
	if err != nil {
		return f, err
	}
	if p.ForceProject || flags&FlagNormalized != 0 {
		p.projector.ProjectFrame(&f)
	}
	if p.lastSeq != 0 && f.Seq > p.lastSeq+1 {
		p.gaps += f.Seq - p.lastSeq - 1
	}
	p.lastSeq = f.Seq
	return f, nil
}

// SequenceGaps returns how many sequence numbers were skipped by the sender
// or lost in transit.
func (p *Parser) SequenceGaps() uint64 {
	return p.gaps
}
