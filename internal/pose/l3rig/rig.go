// Package l3rig owns Layer 3 (Rig) of the pose data model: the bind pose of
// the humanoid rig that skeleton calibration reads once at startup.
//
// A rig is normally loaded from a JSON export of the avatar's rest pose.
// FromLandmarks builds one from a landmark set for demos and tests.
package l3rig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/posetrack/internal/pose/geom"
	"github.com/banshee-data/posetrack/internal/pose/l2joints"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// maxRigFileBytes bounds rig files read from disk.
const maxRigFileBytes = 1 << 20

var (
	// ErrMissingJoint is returned when a rig does not define every slot.
	ErrMissingJoint = errors.New("rig is missing a bind-pose joint")
	// ErrInvalidBindPose is returned for non-finite positions or zero rotations.
	ErrInvalidBindPose = errors.New("invalid bind pose")
)

// BindPose is the rest-pose state of one joint in world space.
type BindPose struct {
	Position    r3.Vec
	Rotation    quat.Number
	LocalOffset r3.Vec
}

// Rig is a complete bind pose, one entry per joint slot.
type Rig struct {
	Name   string
	Joints [l2joints.Count]BindPose
}

// Joint returns the bind pose of id.
func (r *Rig) Joint(id l2joints.JointID) BindPose {
	return r.Joints[id]
}

type jointJSON struct {
	Joint       string      `json:"joint"`
	Position    [3]float64  `json:"position"`
	Rotation    [4]float64  `json:"rotation"` // x, y, z, w
	LocalOffset *[3]float64 `json:"local_offset,omitempty"`
}

type rigJSON struct {
	Name   string      `json:"name"`
	Joints []jointJSON `json:"joints"`
}

// Parse decodes a rig from r. Every joint slot must appear exactly once.
func Parse(r io.Reader) (*Rig, error) {
	var doc rigJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse rig: %w", err)
	}

	rig := &Rig{Name: doc.Name}
	var seen [l2joints.Count]bool
	for _, j := range doc.Joints {
		id, err := l2joints.ParseJointID(j.Joint)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			return nil, fmt.Errorf("joint %s listed twice", id)
		}
		seen[id] = true
		bp := BindPose{
			Position: r3.Vec{X: j.Position[0], Y: j.Position[1], Z: j.Position[2]},
			Rotation: quat.Number{Imag: j.Rotation[0], Jmag: j.Rotation[1], Kmag: j.Rotation[2], Real: j.Rotation[3]},
		}
		if j.LocalOffset != nil {
			bp.LocalOffset = r3.Vec{X: j.LocalOffset[0], Y: j.LocalOffset[1], Z: j.LocalOffset[2]}
		}
		rig.Joints[id] = bp
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingJoint, l2joints.JointID(i))
		}
	}
	if err := rig.Validate(); err != nil {
		return nil, err
	}
	return rig, nil
}

// Load reads a rig JSON file.
func Load(path string) (*Rig, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".json" {
		return nil, fmt.Errorf("rig file must have .json extension, got %q", ext)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rig file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat rig file: %w", err)
	}
	if info.Size() > maxRigFileBytes {
		return nil, fmt.Errorf("rig file too large: %d bytes (max %d)", info.Size(), maxRigFileBytes)
	}
	rig, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if rig.Name == "" {
		rig.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return rig, nil
}

// Validate checks every bind pose and normalizes rotations in place.
func (r *Rig) Validate() error {
	for i := range r.Joints {
		bp := &r.Joints[i]
		id := l2joints.JointID(i)
		if !geom.IsFinite(bp.Position) || !geom.IsFinite(bp.LocalOffset) {
			return fmt.Errorf("%w: %s has a non-finite position", ErrInvalidBindPose, id)
		}
		n := quat.Abs(bp.Rotation)
		if !(n > 1e-9) || math.IsInf(n, 0) {
			return fmt.Errorf("%w: %s has rotation %v", ErrInvalidBindPose, id, bp.Rotation)
		}
		bp.Rotation = quat.Scale(1/n, bp.Rotation)
	}
	return nil
}

// Write encodes r in the format Parse reads.
func (r *Rig) Write(w io.Writer) error {
	doc := rigJSON{Name: r.Name, Joints: make([]jointJSON, 0, l2joints.Count)}
	for i, bp := range r.Joints {
		j := jointJSON{
			Joint:    l2joints.JointID(i).String(),
			Position: [3]float64{bp.Position.X, bp.Position.Y, bp.Position.Z},
			Rotation: [4]float64{bp.Rotation.Imag, bp.Rotation.Jmag, bp.Rotation.Kmag, bp.Rotation.Real},
		}
		if bp.LocalOffset != (r3.Vec{}) {
			off := [3]float64{bp.LocalOffset.X, bp.LocalOffset.Y, bp.LocalOffset.Z}
			j.LocalOffset = &off
		}
		doc.Joints = append(doc.Joints, j)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
