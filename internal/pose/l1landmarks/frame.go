package l1landmarks

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/posetrack/internal/pose/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// Landmark indices of the 33-point body topology emitted by the tracker.
// The numbering is an external contract and must not be reordered.
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32

	// Count is the number of landmarks in every frame.
	Count = 33
)

var (
	// ErrLandmarkCount is returned when a frame does not carry exactly Count points.
	ErrLandmarkCount = errors.New("wrong landmark count")
	// ErrNonFinite is returned when a landmark coordinate is NaN or infinite.
	ErrNonFinite = errors.New("non-finite landmark coordinate")
)

// Frame is one tracker output: Count points in tracker index order.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Points    [Count]r3.Vec
}

// NewFrame validates points and copies them into a Frame.
func NewFrame(seq uint64, ts time.Time, points []r3.Vec) (Frame, error) {
	f := Frame{Seq: seq, Timestamp: ts}
	if len(points) != Count {
		return f, fmt.Errorf("%w: got %d, want %d", ErrLandmarkCount, len(points), Count)
	}
	copy(f.Points[:], points)
	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}

// Validate checks that every coordinate is finite.
func (f *Frame) Validate() error {
	for i, p := range f.Points {
		if !geom.IsFinite(p) {
			return fmt.Errorf("%w: landmark %d = %v", ErrNonFinite, i, p)
		}
	}
	return nil
}

// Scaled returns a copy of f with every point multiplied by s.
func (f Frame) Scaled(s float64) Frame {
	for i := range f.Points {
		f.Points[i] = r3.Scale(s, f.Points[i])
	}
	return f
}

// Translated returns a copy of f with every point moved by d.
func (f Frame) Translated(d r3.Vec) Frame {
	for i := range f.Points {
		f.Points[i] = r3.Add(f.Points[i], d)
	}
	return f
}

// FrameSink receives frames from a source. Publish must not block.
type FrameSink interface {
	Publish(f Frame)
}
