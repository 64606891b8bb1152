package l2joints

import (
	"errors"
	"fmt"

	"github.com/banshee-data/posetrack/internal/pose/geom"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidHierarchy is returned when a child table is out of range, cyclic
// or shares a child between two parents.
var ErrInvalidHierarchy = errors.New("invalid joint hierarchy")

// ErrAlreadyCalibrated is returned when calibration data would be written a
// second time.
var ErrAlreadyCalibrated = errors.New("skeleton already calibrated")

// JointSlot is one rig joint. Calibration fields are written once by the
// retargeter; Raw, Position and Rotation change every frame.
type JointSlot struct {
	ID    JointID
	Child JointID

	// LocalOffset converts a tracker position into rig-local space.
	LocalOffset  r3.Vec
	BindPosition r3.Vec
	BindRotation quat.Number
	// Inverse undoes the bind-pose look rotation for this joint's rule.
	Inverse quat.Number

	Raw      r3.Vec // this frame, before smoothing
	Position r3.Vec // smoothed
	Rotation quat.Number
}

// Skeleton owns the joint arena for one session.
type Skeleton struct {
	Joints [Count]JointSlot

	// Anchor is the bind hip position on the ground plane (y = 0).
	Anchor r3.Vec
	// BindForward is the body facing direction of the bind pose.
	BindForward r3.Vec
	// RootPosition is the world position of the hip after the last frame.
	RootPosition r3.Vec

	calibrated bool
}

// NewSkeleton builds an uncalibrated skeleton from a child table. Every
// child must be a valid slot other than its parent, no slot may be the child
// of two parents and following children must never loop.
func NewSkeleton(children [Count]JointID) (*Skeleton, error) {
	if err := ValidateChildren(children); err != nil {
		return nil, err
	}
	s := &Skeleton{}
	for i := range s.Joints {
		s.Joints[i] = JointSlot{
			ID:           JointID(i),
			Child:        children[i],
			BindRotation: geom.Identity,
			Inverse:      geom.Identity,
			Rotation:     geom.Identity,
		}
	}
	return s, nil
}

// ValidateChildren checks a child table against the hierarchy rules.
func ValidateChildren(children [Count]JointID) error {
	var parent [Count]JointID
	for i := range parent {
		parent[i] = None
	}
	for i, c := range children {
		if c == None {
			continue
		}
		if !c.Valid() {
			return fmt.Errorf("%w: %s has out-of-range child %d", ErrInvalidHierarchy, JointID(i), int(c))
		}
		if c == JointID(i) {
			return fmt.Errorf("%w: %s is its own child", ErrInvalidHierarchy, c)
		}
		if parent[c] != None {
			return fmt.Errorf("%w: %s is a child of both %s and %s", ErrInvalidHierarchy, c, parent[c], JointID(i))
		}
		parent[c] = JointID(i)
	}
	for start := range children {
		steps := 0
		for j := children[start]; j != None; j = children[j] {
			if steps++; steps > Count {
				return fmt.Errorf("%w: cycle through %s", ErrInvalidHierarchy, JointID(start))
			}
		}
	}
	return nil
}

// Slot returns the slot for id.
func (s *Skeleton) Slot(id JointID) *JointSlot {
	return &s.Joints[id]
}

// Pos returns the smoothed position of id.
func (s *Skeleton) Pos(id JointID) r3.Vec {
	return s.Joints[id].Position
}

// Positions returns the smoothed positions of every slot.
func (s *Skeleton) Positions() [Count]r3.Vec {
	var out [Count]r3.Vec
	for i := range s.Joints {
		out[i] = s.Joints[i].Position
	}
	return out
}

// Rotations returns the output rotation of every slot.
func (s *Skeleton) Rotations() [Count]quat.Number {
	var out [Count]quat.Number
	for i := range s.Joints {
		out[i] = s.Joints[i].Rotation
	}
	return out
}

// Calibrated reports whether MarkCalibrated has been called.
func (s *Skeleton) Calibrated() bool {
	return s.calibrated
}

// MarkCalibrated freezes the calibration fields. A second call fails.
func (s *Skeleton) MarkCalibrated() error {
	if s.calibrated {
		return ErrAlreadyCalibrated
	}
	s.calibrated = true
	return nil
}
