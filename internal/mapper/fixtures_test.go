package mapper_test

import (
	"github.com/rly/ndx-pose/internal/builder"
	"github.com/rly/ndx-pose/internal/mapper"
	"github.com/rly/ndx-pose/internal/pose/posetest"
)

// Trees laid out the way ndx-pose 0.1.1 wrote them.

const (
	legacyPosePath = "/processing/behavior/PoseEstimation"
	softmax        = "Softmax output of the deep neural network."
	dlcScorer      = "DLC_resnet50_openfieldOct30shuffle1_1600"
)

func fileTree(version string) *builder.Group {
	root := builder.NewTypedGroup("root", "NWBFile", "core", "file-0")
	root.SetAttr(mapper.AttrPoseVersion, version)
	root.SetAttr(mapper.AttrNWBVersion, "2.5.0")
	root.SetAttr(mapper.AttrIdentifier, "identifier")
	root.SetAttr(mapper.AttrSessionDescription, "session_description")
	root.SetAttr(mapper.AttrSessionStartTime, "2024-01-02T03:04:05Z")
	return root
}

func behaviorModule(root *builder.Group) *builder.Group {
	m := builder.NewTypedGroup("behavior", "ProcessingModule", "core", "pm-0")
	m.SetAttr("description", "processed behavioral data")
	return root.EnsureGroup("processing").AddGroup(m)
}

func estimationGroup(module *builder.Group) *builder.Group {
	pe := module.AddGroup(builder.NewTypedGroup("PoseEstimation", "PoseEstimation", "ndx-pose", "pe-0"))
	pe.AddDataset(builder.TextScalar("description", "Estimated positions of front paws using DeepLabCut."))
	pe.AddDataset(builder.TextScalar("scorer", dlcScorer))
	sw := pe.AddDataset(builder.TextScalar("source_software", "DeepLabCut"))
	sw.SetAttr("version", "2.2b8")
	return pe
}

// seriesGroup returns a 100-frame series. A non-empty link replaces the
// timestamps dataset.
func seriesGroup(name string, cols int, link string) *builder.Group {
	g := builder.NewTypedGroup(name, "PoseEstimationSeries", "ndx-pose", "id-"+name)
	g.SetAttr("description", "Marker placed around fingers of "+name+".")
	g.SetAttr("comments", "no comments")
	data := g.AddDataset(builder.Float64Tensor("data", []int{100, cols}, posetest.Linspace(0, 1, 100*cols)))
	data.SetAttr("unit", "pixels")
	data.SetAttr("conversion", 1.0)
	data.SetAttr("resolution", -1.0)
	data.SetAttr("offset", 0.0)
	g.AddDataset(builder.TextScalar("reference_frame", "(0,0,0) corresponds to ..."))
	conf := g.AddDataset(builder.Float64Array("confidence", posetest.Linspace(0, 1, 100)))
	conf.SetAttr("definition", softmax)
	if link == "" {
		g.AddDataset(builder.Float64Array("timestamps", posetest.Linspace(0, 10, 100)))
	} else {
		g.AddLink("timestamps", link)
	}
	return g
}

// nodesEdgesTree holds a PoseEstimation with inline nodes and edges and two
// series, the second sharing the timestamps of the first.
func nodesEdgesTree(version string) *builder.Group {
	root := fileTree(version)
	pe := estimationGroup(behaviorModule(root))
	pe.AddDataset(builder.TextArray("nodes", []string{"front_left_paw", "front_right_paw"}))
	pe.AddDataset(builder.Uint8Pairs("edges", [][2]uint8{{0, 1}}))
	pe.AddGroup(seriesGroup("front_left_paw", 3, ""))
	pe.AddGroup(seriesGroup("front_right_paw", 2, legacyPosePath+"/front_left_paw/timestamps"))
	return root
}

// noCamerasTree holds a PoseEstimation with video metadata for two videos,
// no devices, no series and no skeleton.
func noCamerasTree(version string) *builder.Group {
	root := fileTree(version)
	pe := estimationGroup(behaviorModule(root))
	pe.AddDataset(builder.TextArray("original_videos", []string{"camera1.mp4", "camera2.mp4"}))
	pe.AddDataset(builder.TextArray("labeled_videos", []string{"camera1_labeled.mp4", "camera2_labeled.mp4"}))
	pe.AddDataset(builder.Uint16Pairs("dimensions", [][2]uint16{{640, 480}, {1024, 768}}))
	return root
}

func skeletonGroup(name string) *builder.Group {
	g := builder.NewTypedGroup(name, "Skeleton", "ndx-pose", "sk-"+name)
	g.AddDataset(builder.TextArray("nodes", []string{"a", "b"}))
	g.AddDataset(builder.Uint8Pairs("edges", [][2]uint8{{0, 1}}))
	return g
}

func group(root *builder.Group, path string) *builder.Group {
	n, err := builder.Resolve(root, path)
	if err != nil || n.Group == nil {
		panic("fixture has no group at " + path)
	}
	return n.Group
}
