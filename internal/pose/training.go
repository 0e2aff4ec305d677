package pose

import (
	"github.com/rly/ndx-pose/internal/apperrors"
	"github.com/rly/ndx-pose/internal/container"
)

// TrainingFrame is one annotated frame of ground truth.
type TrainingFrame struct {
	container.Base
	Annotator             string
	SourceVideo           *container.ImageSeries
	SourceFrame           *container.Image
	SourceVideoFrameIndex *uint64

	instances *SkeletonInstances
}

// TrainingFrameArgs are the inputs to NewTrainingFrame. A nil Instances gets
// an empty default collection.
type TrainingFrameArgs struct {
	Name                  string
	Annotator             string
	Instances             *SkeletonInstances
	SourceVideo           *container.ImageSeries
	SourceFrame           *container.Image
	SourceVideoFrameIndex *uint64
}

// NewTrainingFrame takes ownership of args.Instances.
//
// For user-constructed frames, giving both a source video and a source frame
// is a conflict, and a frame index without a source video is reported as
// deprecated usage.
func NewTrainingFrame(args TrainingFrameArgs, c Construction) (*TrainingFrame, error) {
	if args.Name == "" {
		return nil, apperrors.New(apperrors.ErrStructure, "", "training frame name is required")
	}
	tf := &TrainingFrame{
		Base:                  container.NewBase(args.Name),
		Annotator:             args.Annotator,
		SourceVideo:           args.SourceVideo,
		SourceFrame:           args.SourceFrame,
		SourceVideoFrameIndex: args.SourceVideoFrameIndex,
	}
	path := container.Path(tf)

	if !c.deserialized() {
		if tf.SourceVideo != nil && tf.SourceFrame != nil {
			return nil, apperrors.New(apperrors.ErrConflict, path, "source_video and source_frame are mutually exclusive")
		}
		if tf.SourceVideoFrameIndex != nil && tf.SourceVideo == nil {
			c.deprecated(path, "source_video_frame_index is only meaningful together with source_video.")
		}
	}

	instances := args.Instances
	if instances == nil {
		var err error
		if instances, err = NewSkeletonInstances(""); err != nil {
			return nil, err
		}
	}
	if err := instances.SetParent(tf); err != nil {
		return nil, err
	}
	tf.instances = instances
	return tf, nil
}

func (tf *TrainingFrame) TypeName() string  { return "TrainingFrame" }
func (tf *TrainingFrame) Namespace() string { return container.NamespacePose }

// SkeletonInstances returns the owned instance collection.
func (tf *TrainingFrame) SkeletonInstances() *SkeletonInstances { return tf.instances }

func (tf *TrainingFrame) Children() []container.Object {
	return []container.Object{tf.instances}
}

// TrainingFrames is the collection of frames in a PoseTraining.
type TrainingFrames struct {
	container.Base
	items *container.Collection[*TrainingFrame]
}

// NewTrainingFrames returns a collection holding frames. An empty name uses
// the default "training_frames".
func NewTrainingFrames(name string, frames ...*TrainingFrame) (*TrainingFrames, error) {
	if name == "" {
		name = DefaultName("TrainingFrame", true)
	}
	s := &TrainingFrames{Base: container.NewBase(name)}
	s.items = container.NewCollection[*TrainingFrame](s)
	if err := s.items.Add(frames...); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TrainingFrames) TypeName() string  { return "TrainingFrames" }
func (s *TrainingFrames) Namespace() string { return container.NamespacePose }

// Add inserts frames. Names must be unique.
func (s *TrainingFrames) Add(frames ...*TrainingFrame) error { return s.items.Add(frames...) }

// Get returns the frame called name.
func (s *TrainingFrames) Get(name string) (*TrainingFrame, error) { return s.items.Get(name) }

// All returns frames in insertion order.
func (s *TrainingFrames) All() []*TrainingFrame { return s.items.All() }

// Len returns the member count.
func (s *TrainingFrames) Len() int { return s.items.Len() }

func (s *TrainingFrames) Children() []container.Object { return s.items.Objects() }

// SourceVideos is the collection of videos that training frames came from.
type SourceVideos struct {
	container.Base
	items *container.Collection[*container.ImageSeries]
}

// NewSourceVideos returns a collection holding videos. An empty name uses
// the default "source_videos".
func NewSourceVideos(name string, videos ...*container.ImageSeries) (*SourceVideos, error) {
	if name == "" {
		name = DefaultName("SourceVideo", true)
	}
	s := &SourceVideos{Base: container.NewBase(name)}
	s.items = container.NewCollection[*container.ImageSeries](s)
	if err := s.items.Add(videos...); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SourceVideos) TypeName() string  { return "SourceVideos" }
func (s *SourceVideos) Namespace() string { return container.NamespacePose }

// Add inserts videos. Names must be unique.
func (s *SourceVideos) Add(videos ...*container.ImageSeries) error { return s.items.Add(videos...) }

// Get returns the video called name.
func (s *SourceVideos) Get(name string) (*container.ImageSeries, error) { return s.items.Get(name) }

// All returns videos in insertion order.
func (s *SourceVideos) All() []*container.ImageSeries { return s.items.All() }

// Len returns the member count.
func (s *SourceVideos) Len() int { return s.items.Len() }

func (s *SourceVideos) Children() []container.Object { return s.items.Objects() }

// DefaultTrainingName is used when PoseTrainingArgs.Name is empty.
const DefaultTrainingName = "PoseTraining"

// PoseTraining groups ground-truth frames and the videos they came from.
type PoseTraining struct {
	container.Base
	skeletons      *Skeletons
	trainingFrames *TrainingFrames
	sourceVideos   *SourceVideos
}

// PoseTrainingArgs are the inputs to NewPoseTraining. Every collection is
// optional.
type PoseTrainingArgs struct {
	Name           string
	Skeletons      *Skeletons
	TrainingFrames *TrainingFrames
	SourceVideos   *SourceVideos
}

// NewPoseTraining takes ownership of the given collections.
func NewPoseTraining(args PoseTrainingArgs, _ Construction) (*PoseTraining, error) {
	name := args.Name
	if name == "" {
		name = DefaultTrainingName
	}
	pt := &PoseTraining{Base: container.NewBase(name)}
	var children []container.Object
	for _, child := range []container.Object{args.Skeletons, args.TrainingFrames, args.SourceVideos} {
		if isNil(child) {
			continue
		}
		if p := child.Parent(); p != nil {
			return nil, apperrors.New(apperrors.ErrConflict, container.Path(child),
				"%s already belongs to %s", child.TypeName(), container.Path(p))
		}
		children = append(children, child)
	}
	for _, child := range children {
		if err := child.SetParent(pt); err != nil {
			return nil, err
		}
	}
	pt.skeletons = args.Skeletons
	pt.trainingFrames = args.TrainingFrames
	pt.sourceVideos = args.SourceVideos
	return pt, nil
}

func (pt *PoseTraining) TypeName() string  { return "PoseTraining" }
func (pt *PoseTraining) Namespace() string { return container.NamespacePose }

func (pt *PoseTraining) Skeletons() *Skeletons           { return pt.skeletons }
func (pt *PoseTraining) TrainingFrames() *TrainingFrames { return pt.trainingFrames }
func (pt *PoseTraining) SourceVideos() *SourceVideos     { return pt.sourceVideos }

func (pt *PoseTraining) Children() []container.Object {
	var out []container.Object
	if pt.skeletons != nil {
		out = append(out, pt.skeletons)
	}
	if pt.trainingFrames != nil {
		out = append(out, pt.trainingFrames)
	}
	if pt.sourceVideos != nil {
		out = append(out, pt.sourceVideos)
	}
	return out
}

// isNil catches typed nil pointers stored in an interface.
func isNil(o container.Object) bool {
	switch v := o.(type) {
	case nil:
		return true
	case *Skeletons:
		return v == nil
	case *TrainingFrames:
		return v == nil
	case *SourceVideos:
		return v == nil
	}
	return false
}
