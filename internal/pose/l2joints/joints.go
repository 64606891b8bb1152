package l2joints

import (
	"errors"
	"fmt"

	"github.com/banshee-data/posetrack/internal/pose/l1landmarks"
)

// JointID addresses one of the Count canonical rig joints. The numbering
// matches the humanoid rig layout and is stored in recordings; do not
// reorder.
type JointID int

// None marks a joint without a child.
const None JointID = -1

const (
	Hip JointID = iota
	Spine
	Spine1
	Spine2
	Neck
	Head
	HeadTop
	LeftShoulder
	LeftForeArm
	LeftHand
	LeftHandThumb1
	LeftHandThumb2
	LeftHandThumb3
	LeftHandIndex1
	LeftHandIndex2
	LeftHandIndex3
	LeftHandMiddle1
	LeftHandMiddle2
	LeftHandMiddle3
	LeftHandRing1
	LeftHandRing2
	LeftHandRing3
	LeftHandPinky1
	LeftHandPinky2
	LeftHandPinky3
	LeftForeArmTwist
	RightShoulder
	RightForeArm
	RightHand
	RightHandIndex1
	RightHandIndex2
	RightHandIndex3
	RightHandPinky1
	RightHandPinky2
	RightHandPinky3
	RightHandMiddle1
	RightHandMiddle2
	RightHandMiddle3
	RightHandRing1
	RightHandRing2
	RightHandRing3
	RightHandThumb1
	RightHandThumb2
	RightHandThumb3
	LeftUpLeg
	LeftLeg
	LeftFoot
	LeftToe
	RightUpLeg
	RightLeg
	RightFoot
	RightToe
	Nose
	LeftEar
	RightEar
	LeftEye
	RightEye

	// Count is the number of joint slots in every skeleton.
	Count = iota
)

// The tracked finger joints. The tracker's thumb landmark drives the middle
// thumb bone and its index landmark drives the first middle-finger bone.
const (
	LeftHandThumb   = LeftHandThumb2
	LeftHandMiddle  = LeftHandMiddle1
	RightHandThumb  = RightHandThumb2
	RightHandMiddle = RightHandMiddle1
)

var jointNames = [Count]string{
	"Hip", "Spine", "Spine1", "Spine2", "Neck", "Head", "HeadTop",
	"LeftShoulder", "LeftForeArm", "LeftHand",
	"LeftHandThumb1", "LeftHandThumb2", "LeftHandThumb3",
	"LeftHandIndex1", "LeftHandIndex2", "LeftHandIndex3",
	"LeftHandMiddle1", "LeftHandMiddle2", "LeftHandMiddle3",
	"LeftHandRing1", "LeftHandRing2", "LeftHandRing3",
	"LeftHandPinky1", "LeftHandPinky2", "LeftHandPinky3",
	"LeftForeArmTwist",
	"RightShoulder", "RightForeArm", "RightHand",
	"RightHandIndex1", "RightHandIndex2", "RightHandIndex3",
	"RightHandPinky1", "RightHandPinky2", "RightHandPinky3",
	"RightHandMiddle1", "RightHandMiddle2", "RightHandMiddle3",
	"RightHandRing1", "RightHandRing2", "RightHandRing3",
	"RightHandThumb1", "RightHandThumb2", "RightHandThumb3",
	"LeftUpLeg", "LeftLeg", "LeftFoot", "LeftToe",
	"RightUpLeg", "RightLeg", "RightFoot", "RightToe",
	"Nose", "LeftEar", "RightEar", "LeftEye", "RightEye",
}

// ErrUnknownJoint is returned by ParseJointID for names outside the rig.
var ErrUnknownJoint = errors.New("unknown joint")

// Valid reports whether j addresses a slot.
func (j JointID) Valid() bool {
	return j >= 0 && j < Count
}

func (j JointID) String() string {
	if j == None {
		return "None"
	}
	if !j.Valid() {
		return fmt.Sprintf("JointID(%d)", int(j))
	}
	return jointNames[j]
}

// ParseJointID maps a rig joint name back to its ID.
func ParseJointID(name string) (JointID, error) {
	for i, n := range jointNames {
		if n == name {
			return JointID(i), nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownJoint, name)
}

// landmarkSources maps each tracker-observed joint to its landmark index.
var landmarkSources = map[JointID]int{
	Nose:            l1landmarks.Nose,
	LeftEar:         l1landmarks.LeftEar,
	RightEar:        l1landmarks.RightEar,
	LeftEye:         l1landmarks.LeftEye,
	RightEye:        l1landmarks.RightEye,
	LeftShoulder:    l1landmarks.LeftShoulder,
	LeftForeArm:     l1landmarks.LeftElbow,
	LeftHand:        l1landmarks.LeftWrist,
	LeftHandMiddle:  l1landmarks.LeftIndex,
	LeftHandThumb:   l1landmarks.LeftThumb,
	RightShoulder:   l1landmarks.RightShoulder,
	RightForeArm:    l1landmarks.RightElbow,
	RightHand:       l1landmarks.RightWrist,
	RightHandMiddle: l1landmarks.RightIndex,
	RightHandThumb:  l1landmarks.RightThumb,
	LeftUpLeg:       l1landmarks.LeftHip,
	LeftLeg:         l1landmarks.LeftKnee,
	LeftFoot:        l1landmarks.LeftAnkle,
	LeftToe:         l1landmarks.LeftFootIndex,
	RightUpLeg:      l1landmarks.RightHip,
	RightLeg:        l1landmarks.RightKnee,
	RightFoot:       l1landmarks.RightAnkle,
	RightToe:        l1landmarks.RightFootIndex,
}

// observedOrder lists the observed joints in slot order so iteration is
// deterministic.
var observedOrder = func() []JointID {
	out := make([]JointID, 0, len(landmarkSources))
	for j := JointID(0); j < Count; j++ {
		if _, ok := landmarkSources[j]; ok {
			out = append(out, j)
		}
	}
	return out
}()

// LandmarkSource returns the landmark index feeding joint j.
func LandmarkSource(j JointID) (int, bool) {
	i, ok := landmarkSources[j]
	return i, ok
}

// ObservedJoints returns the joints copied straight from landmarks.
func ObservedJoints() []JointID {
	return append([]JointID(nil), observedOrder...)
}

// DerivedJoints are computed from observed joints each frame.
var DerivedJoints = []JointID{Hip, Spine, Spine1, Neck, Head}

// DefaultChildren returns the bone hierarchy of the humanoid rig: the spine
// chain and one chain per limb. Head and hands have bespoke rotation rules
// and are leaves here.
func DefaultChildren() [Count]JointID {
	var c [Count]JointID
	for i := range c {
		c[i] = None
	}
	c[Hip] = Spine
	c[Spine] = Spine1
	c[Spine1] = Neck
	c[Neck] = Head

	c[LeftShoulder] = LeftForeArm
	c[LeftForeArm] = LeftHand
	c[RightShoulder] = RightForeArm
	c[RightForeArm] = RightHand

	c[LeftUpLeg] = LeftLeg
	c[LeftLeg] = LeftFoot
	c[LeftFoot] = LeftToe
	c[RightUpLeg] = RightLeg
	c[RightLeg] = RightFoot
	c[RightFoot] = RightToe
	return c
}
