// Package posetest builds small, valid pose objects for tests. Every builder
// fills unset fields with defaults and fails the test on construction errors.
package posetest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/rly/ndx-pose/internal/container"
	"github.com/rly/ndx-pose/internal/pose"
)

var (
	namesMu sync.Mutex
	names   = map[string]int{}
)

// uniqueName returns base, then base2, base3 and so on.
func uniqueName(base string) string {
	namesMu.Lock()
	defer namesMu.Unlock()
	names[base]++
	if n := names[base]; n > 1 {
		return fmt.Sprintf("%s%d", base, n)
	}
	return base
}

func fatalIf(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("posetest: %v", err)
	}
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n == 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// Arange returns a rows x cols matrix filled with 0, 1, 2, ... row-major.
func Arange(rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = float64(i)
	}
	return mat.NewDense(rows, cols, data)
}

// File returns an empty file with a fixed identifier.
func File() *container.File {
	return container.NewFile("EXAMPLE_ID", "session_description", time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))
}

// SeriesArgs overrides MockPoseEstimationSeries defaults.
type SeriesArgs struct {
	Name                 string
	Data                 *mat.Dense
	Time                 pose.TimeBase
	Confidence           []float64
	ConfidenceDefinition string
	Construction         *pose.Construction
}

// MockPoseEstimationSeries returns a 10x3 series with one timestamp and one
// confidence value per frame.
func MockPoseEstimationSeries(t testing.TB, args SeriesArgs) *pose.PoseEstimationSeries {
	t.Helper()
	data := args.Data
	if data == nil {
		data = Arange(10, 3)
	}
	rows, _ := data.Dims()
	tb := args.Time
	if tb.Timestamps == nil && tb.From == nil && tb.Rate == 0 {
		tb.Timestamps = Linspace(0, 10, rows)
	}
	confidence := args.Confidence
	if confidence == nil {
		confidence = Linspace(0, 1, rows)
	}
	def := args.ConfidenceDefinition
	if def == "" {
		def = "Softmax output of the deep neural network."
	}
	name := args.Name
	if name == "" {
		name = uniqueName("PoseEstimationSeries")
	}
	v, err := pose.NewPoseEstimationSeries(pose.SeriesArgs{
		Name:                 name,
		Description:          "A description.",
		Data:                 data,
		ReferenceFrame:       "(0,0,0) corresponds to ...",
		Unit:                 pose.DefaultSeriesUnit,
		Confidence:           confidence,
		ConfidenceDefinition: def,
		Time:                 tb,
	}, construction(args.Construction))
	fatalIf(t, err)
	return v
}

// MockSkeleton returns a skeleton. With nodes and edges both nil it has
// three nodes joined in a chain.
func MockSkeleton(t testing.TB, name string, nodes []string, edges [][2]uint8) *pose.Skeleton {
	t.Helper()
	if nodes == nil && edges == nil {
		nodes = []string{"node1", "node2", "node3"}
		edges = [][2]uint8{{0, 1}, {1, 2}}
	}
	if name == "" {
		name = uniqueName("Skeleton")
	}
	v, err := pose.NewSkeleton(pose.SkeletonArgs{Name: name, Nodes: nodes, Edges: edges}, pose.User())
	fatalIf(t, err)
	return v
}

// InstanceArgs overrides MockSkeletonInstance defaults.
type InstanceArgs struct {
	Name           string
	ID             *uint64
	NodeLocations  *mat.Dense
	NodeVisibility []bool
	Skeleton       *pose.Skeleton
}

// MockSkeletonInstance returns an instance with id 10, all nodes visible,
// and a matching skeleton when none is given.
func MockSkeletonInstance(t testing.TB, args InstanceArgs) *pose.SkeletonInstance {
	t.Helper()
	n := 3
	switch {
	case args.NodeLocations != nil:
		n, _ = args.NodeLocations.Dims()
	case args.NodeVisibility != nil:
		n = len(args.NodeVisibility)
	case args.Skeleton != nil:
		n = len(args.Skeleton.Nodes)
	}
	sk := args.Skeleton
	if sk == nil {
		nodes := make([]string, n)
		for i := range nodes {
			nodes[i] = fmt.Sprintf("node%d", i)
		}
		sk = MockSkeleton(t, "", nodes, [][2]uint8{{0, 1}})
	}
	locations := args.NodeLocations
	if locations == nil {
		locations = Arange(n, 2)
	}
	visibility := args.NodeVisibility
	if visibility == nil {
		visibility = make([]bool, n)
		for i := range visibility {
			visibility[i] = true
		}
	}
	id := args.ID
	if id == nil {
		id = Uint(10)
	}
	name := args.Name
	if name == "" {
		name = uniqueName(pose.DefaultInstanceName)
	}
	v, err := pose.NewSkeletonInstance(pose.SkeletonInstanceArgs{
		Name:           name,
		ID:             id,
		NodeLocations:  locations,
		NodeVisibility: visibility,
		Skeleton:       sk,
	}, pose.User())
	fatalIf(t, err)
	return v
}

// MockSkeletonInstances wraps instances in a collection, creating one
// default instance when none are given.
func MockSkeletonInstances(t testing.TB, instances ...*pose.SkeletonInstance) *pose.SkeletonInstances {
	t.Helper()
	if len(instances) == 0 {
		instances = []*pose.SkeletonInstance{MockSkeletonInstance(t, InstanceArgs{})}
	}
	v, err := pose.NewSkeletonInstances("", instances...)
	fatalIf(t, err)
	return v
}

// MockSourceVideo returns a 30 Hz external video with one file.
func MockSourceVideo(t testing.TB, name string) *container.ImageSeries {
	t.Helper()
	if name == "" {
		name = uniqueName("ImageSeries")
	}
	v := container.NewImageSeries(name, []string{"path/to/camera1.mp4"}, 30.0)
	v.Description = "Training video used to train the pose estimation model."
	v.Unit = "NA"
	v.Dimension = []uint32{640, 480}
	if err := v.Validate(); err != nil {
		t.Fatalf("posetest: %v", err)
	}
	return v
}

// MockSourceFrame returns a small RGB image.
func MockSourceFrame(t testing.TB, name string) *container.Image {
	t.Helper()
	if name == "" {
		name = uniqueName("RGBImage")
	}
	data := Linspace(0, 1, 4*3*3)
	v, err := container.NewImage(name, []int{4, 3, 3}, data)
	fatalIf(t, err)
	return v
}

// TrainingFrameArgs overrides MockTrainingFrame defaults.
type TrainingFrameArgs struct {
	Name                  string
	Annotator             string
	Instances             *pose.SkeletonInstances
	SourceVideo           *container.ImageSeries
	SourceFrame           *container.Image
	SourceVideoFrameIndex *uint64
}

// MockTrainingFrame returns a frame annotated by "Awesome Possum". Without a
// source frame it links a new mock video at index 10.
func MockTrainingFrame(t testing.TB, args TrainingFrameArgs) *pose.TrainingFrame {
	t.Helper()
	name := args.Name
	if name == "" {
		name = uniqueName("TrainingFrame")
	}
	annotator := args.Annotator
	if annotator == "" {
		annotator = "Awesome Possum"
	}
	instances := args.Instances
	if instances == nil {
		instances = MockSkeletonInstances(t)
	}
	video := args.SourceVideo
	index := args.SourceVideoFrameIndex
	if video == nil && args.SourceFrame == nil {
		video = MockSourceVideo(t, "")
	}
	if index == nil && video != nil {
		index = Uint(10)
	}
	v, err := pose.NewTrainingFrame(pose.TrainingFrameArgs{
		Name:                  name,
		Annotator:             annotator,
		Instances:             instances,
		SourceVideo:           video,
		SourceFrame:           args.SourceFrame,
		SourceVideoFrameIndex: index,
	}, pose.User())
	fatalIf(t, err)
	return v
}

// EstimationArgs overrides MockPoseEstimation defaults.
type EstimationArgs struct {
	Name     string
	File     *container.File
	Skeleton *pose.Skeleton
	Series   []*pose.PoseEstimationSeries
	Notifier pose.Notifier
}

// MockPoseEstimation returns a PoseEstimation with two series sharing one
// time base, one camera attached to args.File (or a new file) and matching
// video metadata.
func MockPoseEstimation(t testing.TB, args EstimationArgs) *pose.PoseEstimation {
	t.Helper()
	f := args.File
	if f == nil {
		f = File()
	}
	camera, err := f.CreateDevice(uniqueName("camera"), "camera used to record the video", "Acme")
	fatalIf(t, err)
	sk := args.Skeleton
	if sk == nil {
		sk = MockSkeleton(t, "", nil, nil)
	}
	series := args.Series
	if series == nil {
		first := MockPoseEstimationSeries(t, SeriesArgs{})
		second := MockPoseEstimationSeries(t, SeriesArgs{Time: pose.TimeBase{From: first}})
		series = []*pose.PoseEstimationSeries{first, second}
	}
	c := pose.User().WithNotifier(args.Notifier)
	v, err := pose.NewPoseEstimation(pose.PoseEstimationArgs{
		Name:                  args.Name,
		Series:                series,
		Description:           "Estimated positions of front paws using DeepLabCut.",
		Scorer:                "DLC_resnet50_openfieldOct30shuffle1_1600",
		SourceSoftware:        "DeepLabCut",
		SourceSoftwareVersion: "2.3.8",
		Dimensions:            [][2]uint16{{640, 480}},
		Devices:               []*container.Device{camera},
		Skeleton:              sk,
	}, c)
	fatalIf(t, err)
	return v
}

// Uint returns a pointer to v.
func Uint(v uint64) *uint64 { return &v }

func construction(c *pose.Construction) pose.Construction {
	if c == nil {
		return pose.User()
	}
	return *c
}
