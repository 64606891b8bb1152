package l2joints

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJointID_NamesRoundTrip(t *testing.T) {
	require.Equal(t, 57, Count)
	seen := map[string]bool{}
	for j := JointID(0); j < Count; j++ {
		name := j.String()
		require.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true

		got, err := ParseJointID(name)
		require.NoError(t, err)
		assert.Equal(t, j, got)
	}
	assert.Equal(t, "None", None.String())
	assert.Equal(t, "JointID(99)", JointID(99).String())

	_, err := ParseJointID("Tail")
	assert.True(t, errors.Is(err, ErrUnknownJoint))
}

func TestJointID_FixedIndices(t *testing.T) {
	tests := []struct {
		id   JointID
		want int
	}{
		{Hip, 0}, {Spine, 1}, {Spine1, 2}, {Neck, 4}, {Head, 5},
		{LeftShoulder, 7}, {LeftForeArm, 8}, {LeftHand, 9},
		{LeftHandThumb, 11}, {LeftHandMiddle, 16},
		{RightShoulder, 26}, {RightForeArm, 27}, {RightHand, 28},
		{RightHandMiddle, 35}, {RightHandThumb, 42},
		{LeftUpLeg, 44}, {LeftToe, 47}, {RightUpLeg, 48}, {RightToe, 51},
		{Nose, 52}, {LeftEar, 53}, {RightEar, 54}, {LeftEye, 55}, {RightEye, 56},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, int(tt.id), tt.id.String())
	}
}

func TestLandmarkSources_ConsumedIndices(t *testing.T) {
	var got []int
	for _, j := range ObservedJoints() {
		i, ok := LandmarkSource(j)
		require.True(t, ok)
		got = append(got, i)
	}
	sort.Ints(got)
	want := []int{0, 2, 5, 7, 8, 11, 12, 13, 14, 15, 16, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 31, 32}
	assert.Equal(t, want, got)

	_, ok := LandmarkSource(Hip)
	assert.False(t, ok, "hip is derived")
}

func TestDefaultChildren_Chains(t *testing.T) {
	c := DefaultChildren()
	require.NoError(t, ValidateChildren(c))

	chains := [][]JointID{
		{Hip, Spine, Spine1, Neck, Head},
		{LeftShoulder, LeftForeArm, LeftHand},
		{RightShoulder, RightForeArm, RightHand},
		{LeftUpLeg, LeftLeg, LeftFoot, LeftToe},
		{RightUpLeg, RightLeg, RightFoot, RightToe},
	}
	for _, chain := range chains {
		for i := 0; i+1 < len(chain); i++ {
			assert.Equal(t, chain[i+1], c[chain[i]], "child of %s", chain[i])
		}
		assert.Equal(t, None, c[chain[len(chain)-1]], "%s is a leaf", chain[len(chain)-1])
	}
}
