package l1landmarks

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func sampleFrame() Frame {
	return Frame{
		Seq:       42,
		Timestamp: time.Unix(1700000000, 123456000),
		Points:    TPose(),
	}
}

func TestDatagram_RoundTrip(t *testing.T) {
	in := sampleFrame()
	b := AppendDatagram(nil, &in, 0)
	require.Len(t, b, DATAGRAM_SIZE)

	out, flags, err := DecodeDatagram(b)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), flags)
	assert.Equal(t, in.Seq, out.Seq)
	assert.True(t, in.Timestamp.Equal(out.Timestamp))

	// float32 on the wire
	if diff := cmp.Diff(in.Points, out.Points, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
}

func TestDatagram_ZeroTimestamp(t *testing.T) {
	in := Frame{Seq: 1}
	out, _, err := DecodeDatagram(AppendDatagram(nil, &in, 0))
	require.NoError(t, err)
	assert.True(t, out.Timestamp.IsZero())
}

func TestDecodeDatagram_Errors(t *testing.T) {
	f := sampleFrame()
	good := AppendDatagram(nil, &f, 0)

	corrupt := func(mut func(b []byte) []byte) []byte {
		b := append([]byte(nil), good...)
		return mut(b)
	}

	tests := []struct {
		name    string
		payload []byte
		wantErr error
	}{
		{"empty", nil, ErrShortDatagram},
		{"header only", good[:HEADER_SIZE], ErrShortDatagram},
		{"truncated points", good[:DATAGRAM_SIZE-1], ErrShortDatagram},
		{"bad magic", corrupt(func(b []byte) []byte { b[0] = 'X'; return b }), ErrBadMagic},
		{"bad version", corrupt(func(b []byte) []byte { b[4] = 9; return b }), ErrVersion},
		{"wrong count", corrupt(func(b []byte) []byte {
			binary.LittleEndian.PutUint16(b[6:8], 32)
			return b
		}), ErrLandmarkCount},
		{"nan coordinate", corrupt(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[HEADER_SIZE+5*POINT_SIZE+4:], math.Float32bits(float32(math.NaN())))
			return b
		}), ErrNonFinite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeDatagram(tt.payload)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestDecodeDatagram_TrailingBytesIgnored(t *testing.T) {
	f := sampleFrame()
	b := append(AppendDatagram(nil, &f, 0), 0xde, 0xad)
	_, _, err := DecodeDatagram(b)
	assert.NoError(t, err)
}

func TestParser_ProjectsNormalized(t *testing.T) {
	var f Frame
	for i := range f.Points {
		f.Points[i] = r3.Vec{X: 0.5, Y: 0.5, Z: 0}
	}
	f.Points[Nose] = r3.Vec{X: 0.75, Y: 0.25, Z: -0.1}
	f.Seq = 1

	p := NewParser(DefaultProjector())
	out, err := p.ParseDatagram(AppendDatagram(nil, &f, FlagNormalized))
	require.NoError(t, err)

	assert.InDelta(t, 0, out.Points[LeftHip].X, 1e-9)
	assert.InDelta(t, 0, out.Points[LeftHip].Y, 1e-9)
	assert.InDelta(t, 160, out.Points[Nose].X, 1e-4)
	assert.InDelta(t, 120, out.Points[Nose].Y, 1e-4)
	assert.InDelta(t, -64, out.Points[Nose].Z, 1e-4)
}

func TestParser_LeavesWorldFramesAlone(t *testing.T) {
	f := sampleFrame()
	p := NewParser(DefaultProjector())
	out, err := p.ParseDatagram(AppendDatagram(nil, &f, 0))
	require.NoError(t, err)
	assert.InDelta(t, f.Points[Nose].Y, out.Points[Nose].Y, 1e-6)
}

func TestParser_SequenceGaps(t *testing.T) {
	p := NewParser(DefaultProjector())
	for _, seq := range []uint64{1, 2, 5, 6, 10} {
		f := sampleFrame()
		f.Seq = seq
		_, err := p.ParseDatagram(AppendDatagram(nil, &f, 0))
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(5), p.SequenceGaps())
}

func TestParser_ForceProject(t *testing.T) {
	var f Frame
	for i := range f.Points {
		f.Points[i] = r3.Vec{X: 1, Y: 1}
	}
	p := NewParser(Projector{Width: 100, Height: 50, DepthScale: 1})
	p.ForceProject = true
	out, err := p.ParseDatagram(AppendDatagram(nil, &f, 0))
	require.NoError(t, err)
	assert.InDelta(t, 50, out.Points[Nose].X, 1e-9)
	assert.InDelta(t, -25, out.Points[Nose].Y, 1e-9)
}
