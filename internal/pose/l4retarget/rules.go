package l4retarget

import (
	"github.com/banshee-data/posetrack/internal/pose/geom"
	"github.com/banshee-data/posetrack/internal/pose/l2joints"
	"gonum.org/v1/gonum/spatial/r3"
)

// positions reads one joint position, either from the bind pose during
// calibration or from the smoothed skeleton at runtime.
type positions func(l2joints.JointID) r3.Vec

// basisFunc returns the look direction and up reference of a joint. upOK
// is false when the up reference is degenerate this frame.
type basisFunc func(pos positions, id, child l2joints.JointID, forward r3.Vec) (look, up r3.Vec, upOK bool)

// rule is the single definition of how a joint is oriented. Calibration
// and per-frame evaluation both call basis, so they always agree on the
// reference frame.
type rule struct {
	name  string
	basis basisFunc
}

// eval runs basis and rejects an up reference that lies along the look
// direction, which leaves the roll about the bone undefined.
func (r *rule) eval(pos positions, id, child l2joints.JointID, forward r3.Vec) (look, up r3.Vec, upOK bool) {
	look, up, upOK = r.basis(pos, id, child, forward)
	if upOK && geom.Parallel(look, up) {
		upOK = false
	}
	return look, up, upOK
}

// childRule points the bone from the joint towards its child with the body
// forward as the up reference.
var childRule = rule{
	name: "child",
	basis: func(pos positions, id, child l2joints.JointID, forward r3.Vec) (r3.Vec, r3.Vec, bool) {
		return r3.Sub(pos(id), pos(child)), forward, true
	},
}

// hipRule faces the body forward, upright in the world.
var hipRule = rule{
	name: "hip",
	basis: func(_ positions, _, _ l2joints.JointID, forward r3.Vec) (r3.Vec, r3.Vec, bool) {
		return forward, geom.Up, true
	},
}

// headRule looks along the nose with the face plane normal as up.
var headRule = rule{
	name: "head",
	basis: func(pos positions, _, _ l2joints.JointID, _ r3.Vec) (r3.Vec, r3.Vec, bool) {
		look := r3.Sub(pos(l2joints.Nose), pos(l2joints.Head))
		up, ok := geom.TriangleNormal(pos(l2joints.Nose), pos(l2joints.RightEye), pos(l2joints.LeftEye))
		return look, up, ok
	},
}

// handRule looks from the middle finger to the thumb with the hand plane
// normal as up. The triangle winding is mirrored between sides so both
// normals point out of the back of the hand.
func handRule(hand, middle, thumb l2joints.JointID, left bool) rule {
	return rule{
		name: hand.String(),
		basis: func(pos positions, _, _ l2joints.JointID, _ r3.Vec) (r3.Vec, r3.Vec, bool) {
			look := r3.Sub(pos(thumb), pos(middle))
			var up r3.Vec
			var ok bool
			if left {
				up, ok = geom.TriangleNormal(pos(hand), pos(middle), pos(thumb))
			} else {
				up, ok = geom.TriangleNormal(pos(hand), pos(thumb), pos(middle))
			}
			return look, up, ok
		},
	}
}

// overrides replace the child rule for joints whose orientation is not
// captured by a single child.
var overrides = map[l2joints.JointID]rule{
	l2joints.Hip:       hipRule,
	l2joints.Head:      headRule,
	l2joints.LeftHand:  handRule(l2joints.LeftHand, l2joints.LeftHandMiddle, l2joints.LeftHandThumb, true),
	l2joints.RightHand: handRule(l2joints.RightHand, l2joints.RightHandMiddle, l2joints.RightHandThumb, false),
}

// ruleTable resolves the rule for every slot of a skeleton: an override if
// one exists, the child rule for joints with a child, nothing otherwise.
func ruleTable(sk *l2joints.Skeleton) [l2joints.Count]*rule {
	var t [l2joints.Count]*rule
	for i := range sk.Joints {
		id := l2joints.JointID(i)
		if r, ok := overrides[id]; ok {
			r := r
			t[i] = &r
			continue
		}
		if sk.Joints[i].Child != l2joints.None {
			r := childRule
			t[i] = &r
		}
	}
	return t
}

// bodyForward is the unit normal of the hip and upper-leg triangle.
func bodyForward(pos positions) (r3.Vec, bool) {
	return geom.TriangleNormal(pos(l2joints.Hip), pos(l2joints.LeftUpLeg), pos(l2joints.RightUpLeg))
}
