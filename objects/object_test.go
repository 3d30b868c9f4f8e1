package objects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-skywatch/types"
)

func floatPtr(v float64) *float64 { return &v }

func classPtr(v types.ClassificationOption) *types.ClassificationOption { return &v }

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(types.CreateObjectRequest{
		Type:     "zeppelin",
		Position: []float64{34.8, 31.5, 0},
	}, nil)
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestNewRejectsBadPosition(t *testing.T) {
	kinds := []string{"star", "arrow", "jet", "plane", "drone", "bird"}
	for _, kind := range kinds {
		_, err := New(types.CreateObjectRequest{
			Type:     kind,
			Position: []float64{34.8, 31.5},
			Rotation: floatPtr(0),
		}, nil)
		assert.ErrorIs(t, err, ErrInvalidObjectData, "kind %s", kind)
	}
}

func TestNewAppliesRotationOffsets(t *testing.T) {
	cases := []struct {
		kind     string
		input    float64
		expected float64
	}{
		{"bird", 45, -45},
		{"plane", 45, 135},
		{"arrow", 45, 45},
		{"jet", 45, 45},
		{"drone", 45, 45},
	}

	for _, tc := range cases {
		obj, err := New(types.CreateObjectRequest{
			Type:     tc.kind,
			Position: []float64{34.8, 31.5, 1000},
			Rotation: floatPtr(tc.input),
		}, nil)
		require.NoError(t, err, "kind %s", tc.kind)
		require.NotNil(t, obj.Rotation)
		assert.Equal(t, tc.expected, *obj.Rotation, "kind %s", tc.kind)
	}
}

func TestNewDefaultsRotationToOffset(t *testing.T) {
	obj, err := New(types.CreateObjectRequest{
		Type:     "bird",
		Position: []float64{34.8, 31.5, 1000},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, -90.0, *obj.Rotation)
}

func TestNewStarHasNoRotation(t *testing.T) {
	obj, err := New(types.CreateObjectRequest{
		Type:     "star",
		Position: []float64{34.8, 31.5, 0},
		Rotation: floatPtr(33),
	}, nil)
	require.NoError(t, err)
	assert.Nil(t, obj.Rotation)
}

func TestNewAppliesDefaults(t *testing.T) {
	obj, err := New(types.CreateObjectRequest{
		Type:     "star",
		Position: []float64{34.8, 31.5, 0},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 30.0, obj.Size)
	assert.Zero(t, obj.Speed)
	assert.NotNil(t, obj.Plots)
	assert.NotNil(t, obj.RadarDetections)
}

func TestColorPalette(t *testing.T) {
	cases := map[types.ClassificationOption]string{
		types.ClassBird:        "#FFA500",
		types.ClassHelicopter:  "#0000FF",
		types.ClassPlane:       "#FFC0CB",
		types.ClassJet:         "#FFFF00",
		types.ClassDrone:       "#FF0000",
		types.ClassRocket:      "#800080",
		types.ClassUnknownFast: "#d92727",
		types.ClassUnknown:     "#40E0D0",
		types.ClassRadarPoint:  "#40E0D0",
	}
	for option, expected := range cases {
		got := Color(&types.Classification{CurrentIdentification: classPtr(option)})
		assert.Equal(t, expected, got, "option %s", option)
	}
}

func TestColorDefaults(t *testing.T) {
	assert.Equal(t, "#d92727", Color(nil))
	assert.Equal(t, "#d92727", Color(&types.Classification{}))
	assert.Equal(t, "#d92727", Color(&types.Classification{
		CurrentIdentification: classPtr(types.ClassificationOption("blimp")),
	}))
}

func TestDataIncludesDerivedFields(t *testing.T) {
	obj, err := New(types.CreateObjectRequest{
		ID:       "target-7",
		Type:     "drone",
		Position: []float64{34.8, 31.5, 2000},
		Rotation: floatPtr(10),
		Classification: &types.Classification{
			CurrentIdentification: classPtr(types.ClassDrone),
		},
	}, []string{"north"})
	require.NoError(t, err)

	data := obj.Data()
	assert.Equal(t, "#FF0000", data.Color)
	assert.Equal(t, []string{"north"}, data.RadarDetections)
	assert.Equal(t, "drone", data.Type)
}
