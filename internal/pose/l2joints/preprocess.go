package l2joints

import (
	"github.com/banshee-data/posetrack/internal/pose/geom"
	"github.com/banshee-data/posetrack/internal/pose/l1landmarks"
	"gonum.org/v1/gonum/spatial/r3"
)

// Preprocess maps frame f into the skeleton's joint slots, derives the
// joints the tracker does not report and smooths every slot through sm.
// Slots that are neither observed nor derived hold their local offset.
//
// f must already have passed boundary validation; nothing is checked here.
func Preprocess(sk *Skeleton, f *l1landmarks.Frame, sm *Smoother) {
	var raw [Count]r3.Vec
	for i := range raw {
		raw[i] = sk.Joints[i].LocalOffset
	}
	for _, j := range observedOrder {
		raw[j] = r3.Add(f.Points[landmarkSources[j]], sk.Joints[j].LocalOffset)
	}
	DeriveJoints(&raw)

	smoothed := sm.Smooth(&raw)
	for i := range sk.Joints {
		sk.Joints[i].Raw = raw[i]
		sk.Joints[i].Position = smoothed[i]
	}
}

// DeriveJoints fills Hip, Spine, Spine1, Neck and Head from the observed
// joints in p. Each step only reads values written before it.
func DeriveJoints(p *[Count]r3.Vec) {
	legCenter := geom.Midpoint(p[LeftUpLeg], p[RightUpLeg])
	neck := geom.Midpoint(p[LeftShoulder], p[RightShoulder])

	spine := geom.Midpoint(legCenter, neck)
	p[Spine] = spine
	p[Spine1] = geom.Midpoint(spine, neck)
	p[Neck] = neck

	p[Hip] = geom.Midpoint(spine, legCenter)

	// Project the nose onto the neck-to-ears axis. Without a usable axis
	// the head sits on the neck.
	earCenter := geom.Midpoint(p[LeftEar], p[RightEar])
	headDir, ok := geom.Normalize(r3.Sub(earCenter, neck))
	if !ok {
		p[Head] = neck
		return
	}
	noseVec := r3.Sub(p[Nose], neck)
	p[Head] = r3.Add(neck, r3.Scale(r3.Dot(headDir, noseVec), headDir))
}

// JointsFromLandmarks returns the unsmoothed joint positions for a landmark
// set with zero local offsets. Slots without a source stay at the origin.
func JointsFromLandmarks(points *[l1landmarks.Count]r3.Vec) [Count]r3.Vec {
	var p [Count]r3.Vec
	for _, j := range observedOrder {
		p[j] = points[landmarkSources[j]]
	}
	DeriveJoints(&p)
	return p
}
