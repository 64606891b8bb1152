package l1landmarks

import (
	"math"
	"time"

	"github.com/banshee-data/posetrack/internal/pose/geom"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// TPose returns a standing subject with arms out to the sides, in metres,
// facing +Z with the subject's left hand on -X.
func TPose() [Count]r3.Vec {
	var p [Count]r3.Vec
	left := map[int]r3.Vec{
		LeftEyeInner:  {X: -0.015, Y: 1.63, Z: 0.085},
		LeftEye:       {X: -0.032, Y: 1.63, Z: 0.08},
		LeftEyeOuter:  {X: -0.048, Y: 1.63, Z: 0.07},
		LeftEar:       {X: -0.075, Y: 1.60, Z: 0},
		MouthLeft:     {X: -0.025, Y: 1.54, Z: 0.085},
		LeftShoulder:  {X: -0.20, Y: 1.42, Z: 0},
		LeftElbow:     {X: -0.48, Y: 1.42, Z: 0},
		LeftWrist:     {X: -0.74, Y: 1.42, Z: 0},
		LeftPinky:     {X: -0.82, Y: 1.41, Z: -0.03},
		LeftIndex:     {X: -0.84, Y: 1.42, Z: 0.02},
		LeftThumb:     {X: -0.78, Y: 1.43, Z: 0.05},
		LeftHip:       {X: -0.10, Y: 0.95, Z: 0},
		LeftKnee:      {X: -0.11, Y: 0.52, Z: 0.01},
		LeftAnkle:     {X: -0.12, Y: 0.09, Z: 0},
		LeftHeel:      {X: -0.12, Y: 0.05, Z: -0.05},
		LeftFootIndex: {X: -0.13, Y: 0.02, Z: 0.15},
	}
	for i, v := range left {
		p[i] = v
		p[mirror(i)] = r3.Vec{X: -v.X, Y: v.Y, Z: v.Z}
	}
	p[Nose] = r3.Vec{Y: 1.58, Z: 0.10}
	return p
}

// mirror returns the landmark on the other side of the body. Left and
// right landmarks alternate except for the eye and mouth groups.
func mirror(i int) int {
	switch {
	case i >= LeftEyeInner && i <= LeftEyeOuter:
		return i + 3
	case i >= RightEyeInner && i <= RightEyeOuter:
		return i - 3
	case i == Nose:
		return Nose
	case (i-LeftEar)%2 == 0:
		return i + 1
	default:
		return i - 1
	}
}

// Generator produces a deterministic stream of frames for demos and tests:
// a T-posed subject that sways both arms and turns slowly about the vertical
// axis.
type Generator struct {
	// Origin offsets every point; a tracker rarely reports the hips at zero.
	Origin r3.Vec
	// Scale multiplies every point after posing.
	Scale float64
	// SwayAmplitude is the peak arm rotation in radians.
	SwayAmplitude float64
	// TurnRate is the body yaw rate in radians per second.
	TurnRate float64
	// Period is the time between frames.
	Period time.Duration

	start time.Time
	seq   uint64
	base  [Count]r3.Vec
}

// NewGenerator returns a Generator with a gentle default motion at 30 Hz.
func NewGenerator(start time.Time) *Generator {
	return &Generator{
		Scale:         1,
		SwayAmplitude: 0.6,
		TurnRate:      0.2,
		Period:        time.Second / 30,
		start:         start,
		base:          TPose(),
	}
}

// Next returns the next frame in the sequence.
func (g *Generator) Next() Frame {
	g.seq++
	elapsed := time.Duration(g.seq-1) * g.Period
	return g.At(g.seq, elapsed)
}

// At renders the frame at the given elapsed time without advancing the
// sequence.
func (g *Generator) At(seq uint64, elapsed time.Duration) Frame {
	t := elapsed.Seconds()
	sway := g.SwayAmplitude * math.Sin(2*math.Pi*0.5*t)
	yaw := geom.AxisAngle(geom.Up, g.TurnRate*t)

	pts := g.base
	leftArm := []int{LeftElbow, LeftWrist, LeftPinky, LeftIndex, LeftThumb}
	rightArm := []int{RightElbow, RightWrist, RightPinky, RightIndex, RightThumb}
	rotateAbout(&pts, pts[LeftShoulder], geom.AxisAngle(r3.Vec{Z: 1}, sway), leftArm)
	rotateAbout(&pts, pts[RightShoulder], geom.AxisAngle(r3.Vec{Z: 1}, -sway), rightArm)

	hip := geom.Midpoint(pts[LeftHip], pts[RightHip])
	scale := g.Scale
	if scale == 0 {
		scale = 1
	}
	for i := range pts {
		local := r3.Sub(pts[i], hip)
		pts[i] = r3.Add(r3.Add(r3.Scale(scale, geom.Rotate(yaw, local)), hip), g.Origin)
	}

	return Frame{
		Seq:       seq,
		Timestamp: g.start.Add(elapsed),
		Points:    pts,
	}
}

func rotateAbout(pts *[Count]r3.Vec, pivot r3.Vec, q quat.Number, idx []int) {
	for _, i := range idx {
		pts[i] = r3.Add(pivot, geom.Rotate(q, r3.Sub(pts[i], pivot)))
	}
}
