package l4retarget

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/posetrack/internal/pose"
	"github.com/banshee-data/posetrack/internal/pose/geom"
	"github.com/banshee-data/posetrack/internal/pose/l2joints"
	"github.com/banshee-data/posetrack/internal/pose/l3rig"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultPositionScale converts tracker units into rig units for the root.
const DefaultPositionScale = 0.01

// ErrDegenerateBindPose is returned when the bind pose gives a joint no
// usable look direction or up reference.
var ErrDegenerateBindPose = errors.New("degenerate bind pose")

// Config holds the retargeter's tunables.
type Config struct {
	// PositionScale multiplies the smoothed hip position into the root.
	PositionScale float64
}

// DefaultConfig returns the standard retargeter settings.
func DefaultConfig() Config {
	return Config{PositionScale: DefaultPositionScale}
}

// Stats counts frames where a reference had to be held.
type Stats struct {
	Frames uint64 `json:"frames"`
	// ForwardHolds counts frames whose hip triangle was degenerate.
	ForwardHolds uint64 `json:"forward_holds"`
	// UpHolds counts joint evaluations that reused the previous up.
	UpHolds uint64 `json:"up_holds"`
	// LookHolds counts joint evaluations that kept the previous rotation.
	LookHolds uint64 `json:"look_holds"`
}

// Retargeter turns smoothed joint positions into world rotations for a
// calibrated skeleton.
type Retargeter struct {
	cfg   Config
	sk    *l2joints.Skeleton
	rules [l2joints.Count]*rule

	forward r3.Vec
	prevUp  [l2joints.Count]r3.Vec
	stats   Stats
}

// Calibrate writes the rig's bind pose into sk and computes every driven
// joint's calibration inverse. It fails if the rig is invalid, the bind
// geometry is degenerate or sk has already been calibrated.
func Calibrate(sk *l2joints.Skeleton, rig *l3rig.Rig, cfg Config) (*Retargeter, error) {
	if sk.Calibrated() {
		return nil, l2joints.ErrAlreadyCalibrated
	}
	if err := rig.Validate(); err != nil {
		return nil, err
	}
	if cfg.PositionScale == 0 {
		cfg.PositionScale = DefaultPositionScale
	}

	bind := func(id l2joints.JointID) r3.Vec { return rig.Joints[id].Position }
	forward, ok := bodyForward(bind)
	if !ok {
		return nil, fmt.Errorf("%w: hip and upper legs are collinear", ErrDegenerateBindPose)
	}

	r := &Retargeter{cfg: cfg, sk: sk, rules: ruleTable(sk), forward: forward}
	for i := range sk.Joints {
		s := &sk.Joints[i]
		bp := rig.Joints[i]
		s.BindPosition = bp.Position
		s.BindRotation = bp.Rotation
		s.LocalOffset = bp.LocalOffset
		s.Rotation = bp.Rotation
		s.Inverse = geom.Identity

		rl := r.rules[i]
		if rl == nil {
			continue
		}
		look, up, upOK := rl.eval(bind, s.ID, s.Child, forward)
		if _, ok := geom.Normalize(look); !ok {
			return nil, fmt.Errorf("%w: %s has no %s look direction", ErrDegenerateBindPose, s.ID, rl.name)
		}
		if !upOK {
			return nil, fmt.Errorf("%w: %s has no %s up reference", ErrDegenerateBindPose, s.ID, rl.name)
		}
		s.Inverse = geom.Inverse(geom.LookRotation(look, up))
		r.prevUp[i] = up
	}

	hip := rig.Joints[l2joints.Hip].Position
	sk.Anchor = r3.Vec{X: hip.X, Z: hip.Z}
	sk.BindForward = forward
	sk.RootPosition = sk.Anchor
	if err := sk.MarkCalibrated(); err != nil {
		return nil, err
	}
	pose.Opsf("calibrated rig %q: anchor=%v forward=%v", rig.Name, sk.Anchor, forward)
	return r, nil
}

// Skeleton returns the calibrated skeleton.
func (r *Retargeter) Skeleton() *l2joints.Skeleton { return r.sk }

// Forward returns the body forward used for the last frame.
func (r *Retargeter) Forward() r3.Vec { return r.forward }

// Stats returns the hold counters.
func (r *Retargeter) Stats() Stats { return r.stats }

// Apply computes the root position and the rotation of every driven joint
// from the skeleton's smoothed positions. Joints without a rule keep their
// bind rotation.
func (r *Retargeter) Apply() {
	sk := r.sk
	r.stats.Frames++

	cur := sk.Pos
	if f, ok := bodyForward(cur); ok {
		r.forward = f
	} else {
		r.stats.ForwardHolds++
		pose.Diagf("degenerate hip triangle, holding forward %v", r.forward)
	}

	sk.RootPosition = r3.Add(r3.Scale(r.cfg.PositionScale, sk.Pos(l2joints.Hip)), sk.Anchor)

	for i, rl := range r.rules {
		if rl == nil {
			continue
		}
		s := &sk.Joints[i]
		look, up, upOK := rl.eval(cur, s.ID, s.Child, r.forward)
		if !upOK {
			up = r.prevUp[i]
			r.stats.UpHolds++
		} else {
			r.prevUp[i] = up
		}
		// The held up can still lie along the bone; keep the rotation then.
		if _, ok := geom.Normalize(look); !ok || geom.Parallel(look, up) {
			r.stats.LookHolds++
			continue
		}
		s.Rotation = geom.Compose(geom.LookRotation(look, up), s.Inverse, s.BindRotation)
	}
}

// Snapshot is the per-frame output handed to renderers: one world rotation
// per joint slot plus the root position.
type Snapshot struct {
	SessionID    string
	Seq          uint64
	Timestamp    time.Time
	RootPosition r3.Vec
	Forward      r3.Vec
	Rotations    [l2joints.Count]quat.Number
}

// Capture copies the current output of the skeleton.
func (r *Retargeter) Capture(seq uint64, ts time.Time) Snapshot {
	return Snapshot{
		Seq:          seq,
		Timestamp:    ts,
		RootPosition: r.sk.RootPosition,
		Forward:      r.forward,
		Rotations:    r.sk.Rotations(),
	}
}
