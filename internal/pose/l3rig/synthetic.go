package l3rig

import (
	"github.com/banshee-data/posetrack/internal/pose/geom"
	"github.com/banshee-data/posetrack/internal/pose/l1landmarks"
	"github.com/banshee-data/posetrack/internal/pose/l2joints"
	"gonum.org/v1/gonum/spatial/r3"
)

// attachTo places joints without a landmark or derivation on a neighbour.
var attachTo = map[l2joints.JointID]l2joints.JointID{
	l2joints.Spine2:           l2joints.Spine1,
	l2joints.HeadTop:          l2joints.Head,
	l2joints.LeftForeArmTwist: l2joints.LeftForeArm,
	l2joints.LeftHandThumb1:   l2joints.LeftHandThumb,
	l2joints.LeftHandThumb3:   l2joints.LeftHandThumb,
	l2joints.LeftHandIndex1:   l2joints.LeftHandMiddle,
	l2joints.LeftHandIndex2:   l2joints.LeftHandMiddle,
	l2joints.LeftHandIndex3:   l2joints.LeftHandMiddle,
	l2joints.LeftHandMiddle2:  l2joints.LeftHandMiddle,
	l2joints.LeftHandMiddle3:  l2joints.LeftHandMiddle,
	l2joints.LeftHandRing1:    l2joints.LeftHand,
	l2joints.LeftHandRing2:    l2joints.LeftHand,
	l2joints.LeftHandRing3:    l2joints.LeftHand,
	l2joints.LeftHandPinky1:   l2joints.LeftHand,
	l2joints.LeftHandPinky2:   l2joints.LeftHand,
	l2joints.LeftHandPinky3:   l2joints.LeftHand,
	l2joints.RightHandThumb1:  l2joints.RightHandThumb,
	l2joints.RightHandThumb3:  l2joints.RightHandThumb,
	l2joints.RightHandIndex1:  l2joints.RightHandMiddle,
	l2joints.RightHandIndex2:  l2joints.RightHandMiddle,
	l2joints.RightHandIndex3:  l2joints.RightHandMiddle,
	l2joints.RightHandMiddle2: l2joints.RightHandMiddle,
	l2joints.RightHandMiddle3: l2joints.RightHandMiddle,
	l2joints.RightHandRing1:   l2joints.RightHand,
	l2joints.RightHandRing2:   l2joints.RightHand,
	l2joints.RightHandRing3:   l2joints.RightHand,
	l2joints.RightHandPinky1:  l2joints.RightHand,
	l2joints.RightHandPinky2:  l2joints.RightHand,
	l2joints.RightHandPinky3:  l2joints.RightHand,
}

// FromLandmarks builds a rig whose bind positions are the joints derived
// from points, with zero local offsets. Bind rotations are a fixed,
// per-joint twist so rotation handling is visible; feeding points back in
// as a frame reproduces the bind pose exactly.
func FromLandmarks(name string, points [l1landmarks.Count]r3.Vec) *Rig {
	pos := l2joints.JointsFromLandmarks(&points)
	for j, to := range attachTo {
		pos[j] = pos[to]
	}

	rig := &Rig{Name: name}
	axis := r3.Vec{X: 1, Y: 2, Z: 3}
	for i := range rig.Joints {
		rig.Joints[i] = BindPose{
			Position: pos[i],
			Rotation: geom.AxisAngle(axis, 0.05*float64(i)),
		}
	}
	return rig
}

// TPoseRig is FromLandmarks applied to the standard T-pose.
func TPoseRig() *Rig {
	return FromLandmarks("tpose", l1landmarks.TPose())
}
