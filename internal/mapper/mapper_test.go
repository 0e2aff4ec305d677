package mapper_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rly/ndx-pose/internal/apperrors"
	"github.com/rly/ndx-pose/internal/builder"
	"github.com/rly/ndx-pose/internal/container"
	"github.com/rly/ndx-pose/internal/mapper"
	"github.com/rly/ndx-pose/internal/pose"
	"github.com/rly/ndx-pose/internal/pose/posetest"
	"github.com/rly/ndx-pose/internal/schema"
)

func estimationIn(t *testing.T, f *container.File) *pose.PoseEstimation {
	t.Helper()
	m, err := f.ProcessingModule("behavior")
	require.NoError(t, err)
	obj, err := m.Get("PoseEstimation")
	require.NoError(t, err)
	pe, ok := obj.(*pose.PoseEstimation)
	require.True(t, ok, "got %T", obj)
	return pe
}

func objectIDs(t *testing.T, f *container.File) map[string]string {
	t.Helper()
	ids := map[string]string{}
	require.NoError(t, container.Walk(f, func(o container.Object) error {
		ids[container.Path(o)] = o.ObjectID()
		return nil
	}))
	return ids
}

func TestReadLegacyNodesEdges(t *testing.T) {
	rec := &pose.Recorder{}
	f, err := mapper.Construct(nodesEdgesTree("0.1.1"), mapper.NewTypeMap(), mapper.WithNotifier(rec))
	require.NoError(t, err)
	assert.Empty(t, rec.Notices())
	assert.Equal(t, "0.1.1", f.SchemaVersion)
	assert.Equal(t, "identifier", f.Identifier)

	pe := estimationIn(t, f)
	assert.Equal(t, "pe-0", pe.ObjectID())
	assert.Equal(t, dlcScorer, pe.Scorer)
	assert.Equal(t, "DeepLabCut", pe.SourceSoftware)
	assert.Equal(t, "2.2b8", pe.SourceSoftwareVersion)

	sk := pe.Skeleton()
	require.NotNil(t, sk)
	assert.True(t, pe.OwnsSkeleton())
	assert.Equal(t, pose.LegacySkeletonName, sk.Name())
	assert.Equal(t, legacyPosePath+"/subject", container.Path(sk))
	assert.Equal(t, []string{"front_left_paw", "front_right_paw"}, sk.Nodes)
	assert.Equal(t, [][2]uint8{{0, 1}}, sk.Edges)
	assert.Equal(t, sk.Nodes, pe.Nodes())

	left, err := pe.Series("front_left_paw")
	require.NoError(t, err)
	right, err := pe.Series("front_right_paw")
	require.NoError(t, err)
	assert.Same(t, left, right.TimestampsFrom())
	ts, err := right.ResolvedTimestamps()
	require.NoError(t, err)
	require.Len(t, ts, 100)
	assert.Same(t, &left.Timestamps()[0], &ts[0])
	assert.Equal(t, softmax, right.ConfidenceDefinition)
	assert.Equal(t, 100, right.Frames())
}

func TestReadLegacySkeletonIDIsStable(t *testing.T) {
	types := mapper.NewTypeMap()
	first, err := mapper.Construct(nodesEdgesTree("0.1.1"), types)
	require.NoError(t, err)
	second, err := mapper.Construct(nodesEdgesTree("0.1.1"), types)
	require.NoError(t, err)

	sk := estimationIn(t, first).Skeleton()
	require.NotNil(t, sk)
	assert.NotEqual(t, "pe-0", sk.ObjectID())
	assert.Equal(t, sk.ObjectID(), estimationIn(t, second).Skeleton().ObjectID())
	assert.Equal(t, objectIDs(t, first), objectIDs(t, second))
}

func TestReadLegacyNoCameras(t *testing.T) {
	rec := &pose.Recorder{}
	f, err := mapper.Construct(noCamerasTree("0.1.1"), mapper.NewTypeMap(), mapper.WithNotifier(rec))
	require.NoError(t, err)
	assert.Empty(t, rec.Notices())

	pe := estimationIn(t, f)
	assert.Nil(t, pe.Skeleton())
	assert.Empty(t, pe.Devices)
	assert.Empty(t, pe.AllSeries())
	assert.Equal(t, []string{"camera1.mp4", "camera2.mp4"}, pe.OriginalVideos)
	assert.Equal(t, []string{"camera1_labeled.mp4", "camera2_labeled.mp4"}, pe.LabeledVideos)
	assert.Equal(t, [][2]uint16{{640, 480}, {1024, 768}}, pe.Dimensions)
}

func TestLegacyIsRewrittenInCurrentLayout(t *testing.T) {
	types := mapper.NewTypeMap()
	f, err := mapper.Construct(nodesEdgesTree("0.1.1"), types)
	require.NoError(t, err)

	tree, err := mapper.Build(f, types)
	require.NoError(t, err)
	assert.Equal(t, schema.Version, tree.AttrString(mapper.AttrPoseVersion))
	require.NoError(t, schema.Validate(tree))

	peg := group(tree, legacyPosePath)
	assert.Nil(t, peg.Dataset("nodes"))
	assert.Nil(t, peg.Dataset("edges"))
	sk := peg.Group(pose.LegacySkeletonName)
	require.NotNil(t, sk)
	assert.Equal(t, "Skeleton", sk.TypeName())

	again, err := mapper.Construct(tree, types)
	require.NoError(t, err)
	pe := estimationIn(t, again)
	assert.True(t, pe.OwnsSkeleton())
	assert.Equal(t, []string{"front_left_paw", "front_right_paw"}, pe.Nodes())
	assert.Equal(t, objectIDs(t, f), objectIDs(t, again))
}

func TestRoundTripPreservesTree(t *testing.T) {
	scene := posetest.MockScene(t)
	types := mapper.NewTypeMap()

	tree, err := mapper.Build(scene.File, types)
	require.NoError(t, err)
	require.NoError(t, schema.Validate(tree))

	read, err := mapper.Construct(tree, types)
	require.NoError(t, err)
	assert.Equal(t, schema.Version, read.SchemaVersion)
	assert.True(t, read.SessionStartTime.Equal(scene.File.SessionStartTime))

	again, err := mapper.Build(read, types)
	require.NoError(t, err)
	if diff := cmp.Diff(tree, again, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("tree changed across a round trip (-want +got):\n%s", diff)
	}
	assert.Equal(t, objectIDs(t, scene.File), objectIDs(t, read))
}

func TestRoundTripResolvesLinksToSharedObjects(t *testing.T) {
	scene := posetest.MockScene(t)
	types := mapper.NewTypeMap()
	tree, err := mapper.Build(scene.File, types)
	require.NoError(t, err)
	read, err := mapper.Construct(tree, types)
	require.NoError(t, err)

	pe := estimationIn(t, read)
	series := pe.AllSeries()
	require.Len(t, series, 2)
	assert.Same(t, series[0], series[1].TimestampsFrom())
	ts, err := series[1].ResolvedTimestamps()
	require.NoError(t, err)
	assert.Same(t, &series[0].Timestamps()[0], &ts[0])

	m, err := read.ProcessingModule("behavior")
	require.NoError(t, err)
	obj, err := m.Get(scene.Training.Name())
	require.NoError(t, err)
	training := obj.(*pose.PoseTraining)

	sk, err := training.Skeletons().Get(scene.Skeleton.Name())
	require.NoError(t, err)
	assert.Same(t, sk, pe.Skeleton())
	assert.False(t, pe.OwnsSkeleton())
	assert.Same(t, read.Subject(), sk.Subject)

	video, err := training.SourceVideos().Get(scene.Video.Name())
	require.NoError(t, err)
	require.Len(t, pe.OriginalVideosSeries, 1)
	assert.Same(t, video, pe.OriginalVideosSeries[0])

	devices := read.Devices()
	require.Len(t, devices, 1)
	require.Len(t, pe.Devices, 1)
	assert.Same(t, devices[0], pe.Devices[0])

	for _, frame := range training.TrainingFrames().All() {
		for _, inst := range frame.SkeletonInstances().All() {
			assert.Same(t, sk, inst.Skeleton)
		}
		if frame.SourceVideo != nil {
			assert.Same(t, video, frame.SourceVideo)
			require.NotNil(t, frame.SourceVideoFrameIndex)
			assert.Equal(t, uint64(10), *frame.SourceVideoFrameIndex)
		} else {
			require.NotNil(t, frame.SourceFrame)
			assert.Equal(t, scene.Frame.Name(), frame.SourceFrame.Name())
			assert.Equal(t, scene.Frame.Data, frame.SourceFrame.Data)
		}
	}
}

func TestRemappedFieldsAreStoredOnDatasets(t *testing.T) {
	scene := posetest.MockScene(t)
	tree, err := mapper.Build(scene.File, mapper.NewTypeMap())
	require.NoError(t, err)

	peg := group(tree, container.Path(scene.Estimation))
	sw := peg.Dataset("source_software")
	require.NotNil(t, sw)
	assert.Equal(t, "2.3.8", sw.AttrString("version"))

	first := scene.Estimation.AllSeries()[0]
	sg := group(tree, container.Path(first))
	conf := sg.Dataset("confidence")
	require.NotNil(t, conf)
	assert.Equal(t, first.ConfidenceDefinition, conf.AttrString("definition"))

	require.NoError(t, builder.Walk(tree, func(path string, g *builder.Group) error {
		for _, r := range mapper.Remaps {
			_, ok := g.Attr(r.Field)
			assert.False(t, ok, "%s carries %s as a group attribute", path, r.Field)
		}
		return nil
	}))
}

func TestBuildRejectsLinksOutsideFile(t *testing.T) {
	f := posetest.File()
	m, err := f.CreateProcessingModule("behavior", "processed behavioral data")
	require.NoError(t, err)
	loose := posetest.MockSkeleton(t, "", nil, nil)
	pe := posetest.MockPoseEstimation(t, posetest.EstimationArgs{File: f, Skeleton: loose})
	require.NoError(t, m.Add(pe))

	_, err = mapper.Build(f, mapper.NewTypeMap())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrLink), "got %v", err)
}

func TestDefinitionWithoutConfidenceIsRejected(t *testing.T) {
	_, err := pose.NewPoseEstimationSeries(pose.SeriesArgs{
		Name:                 "nose",
		Data:                 posetest.Arange(3, 2),
		ReferenceFrame:       "(0,0) is the top left corner",
		ConfidenceDefinition: softmax,
		Time:                 pose.TimeBase{Rate: 30},
	}, pose.User())
	assert.True(t, errors.Is(err, apperrors.ErrStructure), "got %v", err)

	f := posetest.File()
	m, err := f.CreateProcessingModule("behavior", "")
	require.NoError(t, err)
	s, err := pose.NewPoseEstimationSeries(pose.SeriesArgs{
		Name:           "nose",
		Data:           posetest.Arange(3, 2),
		ReferenceFrame: "(0,0) is the top left corner",
		Time:           pose.TimeBase{Rate: 30},
	}, pose.User())
	require.NoError(t, err)
	pe, err := pose.NewPoseEstimation(pose.PoseEstimationArgs{Series: []*pose.PoseEstimationSeries{s}}, pose.User())
	require.NoError(t, err)
	require.NoError(t, m.Add(pe))

	s.ConfidenceDefinition = softmax
	_, err = mapper.Build(f, mapper.NewTypeMap())
	assert.True(t, errors.Is(err, apperrors.ErrStructure), "got %v", err)
}

func TestRateTimedSeriesRoundTrip(t *testing.T) {
	f := posetest.File()
	m, err := f.CreateProcessingModule("behavior", "")
	require.NoError(t, err)
	owner := posetest.MockPoseEstimationSeries(t, posetest.SeriesArgs{Time: pose.TimeBase{Rate: 30, StartingTime: 1.5}})
	follower := posetest.MockPoseEstimationSeries(t, posetest.SeriesArgs{Time: pose.TimeBase{From: owner}})
	pe, err := pose.NewPoseEstimation(pose.PoseEstimationArgs{
		Series: []*pose.PoseEstimationSeries{owner, follower},
	}, pose.User())
	require.NoError(t, err)
	require.NoError(t, m.Add(pe))

	types := mapper.NewTypeMap()
	tree, err := mapper.Build(f, types)
	require.NoError(t, err)
	read, err := mapper.Construct(tree, types)
	require.NoError(t, err)

	for _, s := range estimationIn(t, read).AllSeries() {
		rate, start, ok := s.Rate()
		assert.True(t, ok, s.Name())
		assert.Equal(t, 30.0, rate)
		assert.Equal(t, 1.5, start)
	}
}

func TestConstructRejectsBadTrees(t *testing.T) {
	tests := []struct {
		name string
		tree func() *builder.Group
		kind error
	}{
		{
			name: "missing version",
			tree: func() *builder.Group {
				root := noCamerasTree("0.1.1")
				delete(root.Attributes, mapper.AttrPoseVersion)
				return root
			},
			kind: apperrors.ErrStructure,
		},
		{
			name: "newer version",
			tree: func() *builder.Group { return noCamerasTree("0.3.0") },
			kind: apperrors.ErrVersion,
		},
		{
			name: "inline nodes in current layout",
			tree: func() *builder.Group { return nodesEdgesTree(schema.Version) },
			kind: apperrors.ErrVersion,
		},
		{
			name: "inline nodes and a skeleton link",
			tree: func() *builder.Group {
				root := nodesEdgesTree("0.1.1")
				group(root, legacyPosePath).AddLink("skeleton", "/processing/behavior/Skeletons/mouse")
				return root
			},
			kind: apperrors.ErrVersion,
		},
		{
			name: "edges without nodes",
			tree: func() *builder.Group {
				root := nodesEdgesTree("0.1.1")
				pe := group(root, legacyPosePath)
				var kept []*builder.Dataset
				for _, d := range pe.Datasets {
					if d.Name != "nodes" {
						kept = append(kept, d)
					}
				}
				pe.Datasets = kept
				return root
			},
			kind: apperrors.ErrStructure,
		},
		{
			name: "skeleton group in legacy layout",
			tree: func() *builder.Group {
				root := noCamerasTree("0.1.1")
				group(root, legacyPosePath).AddGroup(skeletonGroup("subject"))
				return root
			},
			kind: apperrors.ErrVersion,
		},
		{
			name: "timestamp links form a cycle",
			tree: func() *builder.Group {
				root := nodesEdgesTree("0.1.1")
				left := group(root, legacyPosePath+"/front_left_paw")
				var kept []*builder.Dataset
				for _, d := range left.Datasets {
					if d.Name != "timestamps" {
						kept = append(kept, d)
					}
				}
				left.Datasets = kept
				left.AddLink("timestamps", legacyPosePath+"/front_right_paw/timestamps")
				return root
			},
			kind: apperrors.ErrLink,
		},
		{
			name: "link target outside the hierarchy",
			tree: func() *builder.Group {
				root := noCamerasTree(schema.Version)
				root.EnsureGroup("scratch").AddGroup(skeletonGroup("mouse"))
				group(root, legacyPosePath).AddLink("skeleton", "/scratch/mouse")
				return root
			},
			kind: apperrors.ErrStructure,
		},
		{
			name: "dangling link",
			tree: func() *builder.Group {
				root := noCamerasTree(schema.Version)
				group(root, legacyPosePath).AddLink("skeleton", "/processing/behavior/Skeletons/mouse")
				return root
			},
			kind: apperrors.ErrStructure,
		},
		{
			name: "unknown type",
			tree: func() *builder.Group {
				root := noCamerasTree("0.1.1")
				group(root, "/processing/behavior").AddGroup(
					builder.NewTypedGroup("x", "Keypoints", "ndx-pose", "x"))
				return root
			},
			kind: apperrors.ErrStructure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mapper.Construct(tt.tree(), mapper.NewTypeMap())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestSchemaAndMappersAgree(t *testing.T) {
	spec, err := schema.Load()
	require.NoError(t, err)
	types := mapper.NewTypeMap()

	for _, typ := range spec.Types() {
		_, err := types.Lookup(typ)
		assert.NoError(t, err, "declared type %s has no mapper", typ)
	}

	for _, r := range mapper.Remaps {
		def, ok := spec.Type(r.Type)
		require.True(t, ok, r.Type)
		var found bool
		for _, ds := range def.Datasets {
			if ds.Name != r.Dataset {
				continue
			}
			for _, a := range ds.Attributes {
				found = found || a.Name == r.Attr
			}
		}
		assert.True(t, found, "%s has no %s/@%s", r.Type, r.Dataset, r.Attr)
	}

	assert.Contains(t, types.Types(), "RGBImage")
	_, err = types.Lookup("Keypoints")
	assert.True(t, errors.Is(err, apperrors.ErrStructure))
}
