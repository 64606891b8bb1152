package visualiser

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/posetrack/internal/pose/l2joints"
	"github.com/banshee-data/posetrack/internal/pose/l4retarget"
	"google.golang.org/protobuf/encoding/protowire"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

/*
Messages are encoded in protobuf wire format without generated code:

	message StreamRequest {
	  string client_id = 1;
	  double max_rate  = 2; // frames per second, 0 = every frame
	}

	message SkeletonFrame {
	  string session_id     = 1;
	  uint64 seq            = 2;
	  int64  timestamp_ns   = 3;
	  repeated double root      = 4 [packed = true]; // x, y, z
	  repeated double forward   = 5 [packed = true]; // x, y, z
	  repeated double rotations = 6 [packed = true]; // w, x, y, z per joint slot
	}
*/

// ErrMalformedFrame is returned when a decoded frame has the wrong shape.
var ErrMalformedFrame = errors.New("malformed skeleton frame")

// StreamRequest opens a skeleton stream.
type StreamRequest struct {
	ClientID string
	// MaxRate caps frames per second for this client; zero sends every frame.
	MaxRate float64
}

// Marshal encodes the request.
func (r *StreamRequest) Marshal() ([]byte, error) {
	var b []byte
	if r.ClientID != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, r.ClientID)
	}
	if r.MaxRate != 0 {
		b = protowire.AppendTag(b, 2, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(r.MaxRate))
	}
	return b, nil
}

// Unmarshal decodes the request, skipping unknown fields.
func (r *StreamRequest) Unmarshal(b []byte) error {
	*r = StreamRequest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			r.ClientID = v
			b = b[n:]
		case num == 2 && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			r.MaxRate = math.Float64frombits(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

// SkeletonFrame is one retargeted pose on the wire.
type SkeletonFrame struct {
	SessionID   string
	Seq         uint64
	TimestampNs int64
	Root        []float64
	Forward     []float64
	Rotations   []float64
}

// FrameFromSnapshot converts a snapshot into its wire form.
func FrameFromSnapshot(s *l4retarget.Snapshot) *SkeletonFrame {
	f := &SkeletonFrame{
		SessionID: s.SessionID,
		Seq:       s.Seq,
		Root:      []float64{s.RootPosition.X, s.RootPosition.Y, s.RootPosition.Z},
		Forward:   []float64{s.Forward.X, s.Forward.Y, s.Forward.Z},
		Rotations: make([]float64, 0, 4*l2joints.Count),
	}
	if !s.Timestamp.IsZero() {
		f.TimestampNs = s.Timestamp.UnixNano()
	}
	for _, q := range s.Rotations {
		f.Rotations = append(f.Rotations, q.Real, q.Imag, q.Jmag, q.Kmag)
	}
	return f
}

// Snapshot converts the frame back into a snapshot.
func (f *SkeletonFrame) Snapshot() (l4retarget.Snapshot, error) {
	var s l4retarget.Snapshot
	if len(f.Root) != 3 || len(f.Forward) != 3 {
		return s, fmt.Errorf("%w: root has %d values, forward has %d", ErrMalformedFrame, len(f.Root), len(f.Forward))
	}
	if len(f.Rotations) != 4*l2joints.Count {
		return s, fmt.Errorf("%w: %d rotation values, want %d", ErrMalformedFrame, len(f.Rotations), 4*l2joints.Count)
	}
	s.SessionID = f.SessionID
	s.Seq = f.Seq
	if f.TimestampNs != 0 {
		s.Timestamp = time.Unix(0, f.TimestampNs)
	}
	s.RootPosition = r3.Vec{X: f.Root[0], Y: f.Root[1], Z: f.Root[2]}
	s.Forward = r3.Vec{X: f.Forward[0], Y: f.Forward[1], Z: f.Forward[2]}
	for j := range s.Rotations {
		r := f.Rotations[4*j:]
		s.Rotations[j] = quat.Number{Real: r[0], Imag: r[1], Jmag: r[2], Kmag: r[3]}
	}
	return s, nil
}

// Marshal encodes the frame.
func (f *SkeletonFrame) Marshal() ([]byte, error) {
	b := make([]byte, 0, 64+8*(len(f.Root)+len(f.Forward)+len(f.Rotations)))
	if f.SessionID != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, f.SessionID)
	}
	if f.Seq != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, f.Seq)
	}
	if f.TimestampNs != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(f.TimestampNs))
	}
	b = appendPackedDoubles(b, 4, f.Root)
	b = appendPackedDoubles(b, 5, f.Forward)
	b = appendPackedDoubles(b, 6, f.Rotations)
	return b, nil
}

// Unmarshal decodes the frame, skipping unknown fields.
func (f *SkeletonFrame) Unmarshal(b []byte) error {
	*f = SkeletonFrame{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		var err error
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.SessionID = v
			b = b[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.Seq = v
			b = b[n:]
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.TimestampNs = int64(v)
			b = b[n:]
		case num == 4:
			f.Root, b, err = consumeDoubles(f.Root, typ, b)
		case num == 5:
			f.Forward, b, err = consumeDoubles(f.Forward, typ, b)
		case num == 6:
			f.Rotations, b, err = consumeDoubles(f.Rotations, typ, b)
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func appendPackedDoubles(b []byte, num protowire.Number, vals []float64) []byte {
	if len(vals) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(8*len(vals)))
	for _, v := range vals {
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

// consumeDoubles reads a repeated double in either packed or unpacked form.
func consumeDoubles(dst []float64, typ protowire.Type, b []byte) ([]float64, []byte, error) {
	switch typ {
	case protowire.Fixed64Type:
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return dst, b, protowire.ParseError(n)
		}
		return append(dst, math.Float64frombits(v)), b[n:], nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return dst, b, protowire.ParseError(n)
		}
		if len(packed)%8 != 0 {
			return dst, b, fmt.Errorf("%w: packed doubles of %d bytes", ErrMalformedFrame, len(packed))
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeFixed64(packed)
			dst = append(dst, math.Float64frombits(v))
			packed = packed[m:]
		}
		return dst, b[n:], nil
	default:
		return dst, b, fmt.Errorf("%w: wire type %d for repeated double", ErrMalformedFrame, typ)
	}
}
