package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rly/ndx-pose/internal/apperrors"
	"github.com/rly/ndx-pose/internal/builder"
)

func TestLoadDeclaresEveryType(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ndx-pose", s.Namespace.Name)
	assert.Equal(t, Version, s.Namespace.Version)
	assert.Equal(t, []string{
		"Skeleton", "Skeletons", "PoseEstimationSeries", "PoseEstimation",
		"SkeletonInstance", "SkeletonInstances", "TrainingFrame",
		"TrainingFrames", "SourceVideos", "PoseTraining",
	}, s.Types())

	again, err := Load()
	require.NoError(t, err)
	assert.Same(t, s, again)

	pe, ok := s.Type("PoseEstimation")
	require.True(t, ok)
	assert.Equal(t, "PoseEstimation", pe.DefaultName)
	_, ok = s.Type("NWBFile")
	assert.False(t, ok)
}

func TestRawReturnsEmbeddedFiles(t *testing.T) {
	b, err := Raw(ExtensionsFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), "neurodata_type_def: PoseTraining")

	_, err = Raw("spec/missing.yaml")
	assert.Error(t, err)
}

func TestQuantity(t *testing.T) {
	tests := []struct {
		q        Quantity
		required bool
		many     bool
	}{
		{"", true, false},
		{"?", false, false},
		{"*", false, true},
		{"+", true, true},
		{"zero_or_many", false, true},
		{"3", true, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.q), func(t *testing.T) {
			assert.Equal(t, tt.required, tt.q.Required())
			assert.Equal(t, tt.many, tt.q.Many())
		})
	}
}

func TestLayoutFor(t *testing.T) {
	tests := []struct {
		version string
		want    Layout
		wantErr bool
	}{
		{"0.1.1", LayoutInline, false},
		{"0.1.0", LayoutInline, false},
		{"v0.2.0", LayoutSkeleton, false},
		{"0.2.0", LayoutSkeleton, false},
		{"0.3.0", 0, true},
		{"1.0.0", 0, true},
		{"0.0.1", 0, true},
		{"garbage", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got, err := LayoutFor(tt.version)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperrors.ErrVersion), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare("0.1.1", "0.2.0"))
	assert.Equal(t, 0, Compare("v0.2.0", "0.2.0"))
	assert.Equal(t, 1, Compare("0.2.1", Version))
}

// validTree returns a small file with a skeleton, a pose estimation that
// links to it and one device.
func validTree() *builder.Group {
	root := builder.NewGroup("root")
	root.EnsureGroup("general/devices").
		AddGroup(builder.NewTypedGroup("camera", "Device", "core", "d1"))
	mod := root.EnsureGroup("processing/behavior")

	sks := mod.AddGroup(builder.NewTypedGroup("Skeletons", "Skeletons", NamespaceName, "s0"))
	sk := sks.AddGroup(builder.NewTypedGroup("mouse", "Skeleton", NamespaceName, "s1"))
	sk.AddDataset(builder.TextArray("nodes", []string{"nose", "tail"}))
	sk.AddDataset(builder.Uint8Pairs("edges", [][2]uint8{{0, 1}}))

	pe := mod.AddGroup(builder.NewTypedGroup("PoseEstimation", "PoseEstimation", NamespaceName, "p1"))
	pe.AddLink("skeleton", "/processing/behavior/Skeletons/mouse")
	pe.AddLink("camera", "/general/devices/camera")

	nose := pe.AddGroup(builder.NewTypedGroup("nose", "PoseEstimationSeries", NamespaceName, "p2"))
	data := nose.AddDataset(builder.Float64Tensor("data", []int{2, 2}, []float64{1, 2, 3, 4}))
	data.SetAttr("unit", "pixels")
	nose.AddDataset(builder.Float64Array("timestamps", []float64{0, 1}))

	tail := pe.AddGroup(builder.NewTypedGroup("tail", "PoseEstimationSeries", NamespaceName, "p3"))
	tail.AddDataset(builder.Float64Tensor("data", []int{2, 2}, []float64{1, 2, 3, 4}))
	tail.AddLink("timestamps", "/processing/behavior/PoseEstimation/nose/timestamps")
	return root
}

func TestValidateAcceptsWellFormedTree(t *testing.T) {
	assert.NoError(t, Validate(validTree()))
}

func TestValidateReportsViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(root *builder.Group)
		want   string
	}{
		{
			name: "missing required dataset",
			mutate: func(root *builder.Group) {
				sk := root.EnsureGroup("processing/behavior/Skeletons/mouse")
				sk.Datasets = sk.Datasets[1:]
			},
			want: `missing dataset "nodes"`,
		},
		{
			name: "wrong element kind",
			mutate: func(root *builder.Group) {
				sk := root.EnsureGroup("processing/behavior/Skeletons/mouse")
				sk.Datasets[0] = builder.Float64Array("nodes", []float64{1, 2})
			},
			want: "expected text data",
		},
		{
			name: "broken link",
			mutate: func(root *builder.Group) {
				pe := root.EnsureGroup("processing/behavior/PoseEstimation")
				pe.Link("skeleton").Target = "/processing/behavior/Skeletons/rat"
			},
			want: `link "skeleton" is broken`,
		},
		{
			name: "link to wrong type",
			mutate: func(root *builder.Group) {
				pe := root.EnsureGroup("processing/behavior/PoseEstimation")
				pe.Link("skeleton").Target = "/general/devices/camera"
			},
			want: "expected a Skeleton",
		},
		{
			name: "broken timestamps link",
			mutate: func(root *builder.Group) {
				tail := root.EnsureGroup("processing/behavior/PoseEstimation/tail")
				tail.Link("timestamps").Target = "/nowhere"
			},
			want: `link "timestamps" does not resolve to a dataset`,
		},
		{
			name: "wrong type in named slot",
			mutate: func(root *builder.Group) {
				mod := root.EnsureGroup("processing/behavior")
				pt := mod.AddGroup(builder.NewTypedGroup("PoseTraining", "PoseTraining", NamespaceName, "t1"))
				pt.AddGroup(builder.NewTypedGroup("training_frames", "Skeletons", NamespaceName, "t2"))
			},
			want: "expected a TrainingFrames",
		},
		{
			name: "too many unnamed skeletons",
			mutate: func(root *builder.Group) {
				pe := root.EnsureGroup("processing/behavior/PoseEstimation")
				for _, n := range []string{"a", "b"} {
					sk := pe.AddGroup(builder.NewTypedGroup(n, "Skeleton", NamespaceName, n))
					sk.AddDataset(builder.TextArray("nodes", nil))
					sk.AddDataset(builder.Uint8Pairs("edges", nil))
				}
			},
			want: "expected at most one Skeleton",
		},
		{
			name: "unknown type",
			mutate: func(root *builder.Group) {
				root.AddGroup(builder.NewTypedGroup("x", "Keypoints", NamespaceName, "x"))
			},
			want: `unknown type "Keypoints"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := validTree()
			tt.mutate(root)
			err := Validate(root)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrStructure))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSummary(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ndx-pose 0.2.0 (10 types)", s.Summary())
}
