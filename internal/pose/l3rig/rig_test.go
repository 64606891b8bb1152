package l3rig

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/posetrack/internal/pose/geom"
	"github.com/banshee-data/posetrack/internal/pose/l1landmarks"
	"github.com/banshee-data/posetrack/internal/pose/l2joints"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func encode(t *testing.T, r *Rig) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf))
	return buf.String()
}

func TestWriteParse(t *testing.T) {
	in := TPoseRig()
	in.Joints[l2joints.LeftHand].LocalOffset = r3.Vec{X: 0.01}

	out, err := Parse(strings.NewReader(encode(t, in)))
	require.NoError(t, err)
	if diff := cmp.Diff(in, out, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("rig mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	full := encode(t, TPoseRig())

	tests := []struct {
		name    string
		doc     string
		wantErr error
		wantMsg string
	}{
		{"duplicate joint", strings.Replace(full, `"joint": "RightEye"`, `"joint": "LeftEye"`, 1), nil, "listed twice"},
		{"unknown joint", strings.Replace(full, `"joint": "RightEye"`, `"joint": "ThirdEye"`, 1), l2joints.ErrUnknownJoint, ""},
		{"no joints", `{"name":"empty","joints":[]}`, ErrMissingJoint, ""},
		{"unknown field", `{"name":"x","bones":[]}`, nil, "unknown field"},
		{"not json", `joints:`, nil, "failed to parse rig"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	r := TPoseRig()
	r.Joints[l2joints.Spine].Rotation = quat.Number{Real: 2}
	require.NoError(t, r.Validate())
	assert.Equal(t, geom.Identity, r.Joints[l2joints.Spine].Rotation, "rotations are normalized")

	r.Joints[l2joints.Spine].Rotation = quat.Number{}
	assert.True(t, errors.Is(r.Validate(), ErrInvalidBindPose))

	r = TPoseRig()
	r.Joints[l2joints.LeftFoot].Position.Y = math.NaN()
	assert.True(t, errors.Is(r.Validate(), ErrInvalidBindPose))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "avatar.json")
	rig := TPoseRig()
	rig.Name = ""
	require.NoError(t, os.WriteFile(path, []byte(encode(t, rig)), 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "avatar", got.Name)

	_, err = Load(filepath.Join(dir, "avatar.yaml"))
	assert.ErrorContains(t, err, ".json")

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestFromLandmarks(t *testing.T) {
	pts := l1landmarks.TPose()
	r := FromLandmarks("demo", pts)
	require.NoError(t, r.Validate())

	assert.Equal(t, pts[l1landmarks.LeftWrist], r.Joint(l2joints.LeftHand).Position)
	assert.Equal(t, r.Joint(l2joints.LeftHand).Position, r.Joint(l2joints.LeftHandPinky2).Position)
	assert.Equal(t, r.Joint(l2joints.Head).Position, r.Joint(l2joints.HeadTop).Position)
	assert.Equal(t, geom.Identity, r.Joint(l2joints.Hip).Rotation)
	assert.Greater(t, geom.Angle(geom.Identity, r.Joint(l2joints.RightEye).Rotation), 1.0)

	for i, bp := range r.Joints {
		assert.Equal(t, r3.Vec{}, bp.LocalOffset, "joint %d", i)
	}
}
