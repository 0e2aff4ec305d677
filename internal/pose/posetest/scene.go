package posetest

import (
	"testing"

	"github.com/rly/ndx-pose/internal/container"
	"github.com/rly/ndx-pose/internal/pose"
)

// Scene is a file with every pose type attached to it.
type Scene struct {
	File       *container.File
	Module     *container.ProcessingModule
	Subject    *container.Subject
	Skeleton   *pose.Skeleton
	Video      *container.ImageSeries
	Frame      *container.Image
	Estimation *pose.PoseEstimation
	Training   *pose.PoseTraining
}

// MockScene builds a "behavior" processing module holding training images,
// a PoseTraining (skeletons, two training frames and a source video) and a
// PoseEstimation linked to the training skeleton, the camera and the video.
func MockScene(t testing.TB) *Scene {
	t.Helper()
	f := File()
	subject := container.NewSubject("mouse-1")
	subject.Species = "Mus musculus"
	subject.Sex = "F"
	fatalIf(t, f.SetSubject(subject))

	module, err := f.CreateProcessingModule("behavior", "processed behavioral data")
	fatalIf(t, err)

	sk := MockSkeleton(t, "", []string{"front_left_paw", "front_right_paw", "nose"}, [][2]uint8{{0, 2}, {1, 2}})
	sk.Subject = subject
	skeletons, err := pose.NewSkeletons("", sk)
	fatalIf(t, err)

	video := MockSourceVideo(t, "")
	frame := MockSourceFrame(t, "")
	images := container.NewImages(uniqueName("training_images"), "frames used for training")
	fatalIf(t, images.Add(frame))

	fromVideo := MockTrainingFrame(t, TrainingFrameArgs{
		Instances:   MockSkeletonInstances(t, MockSkeletonInstance(t, InstanceArgs{Skeleton: sk})),
		SourceVideo: video,
	})
	fromImage := MockTrainingFrame(t, TrainingFrameArgs{
		Instances: MockSkeletonInstances(t,
			MockSkeletonInstance(t, InstanceArgs{Skeleton: sk}),
			MockSkeletonInstance(t, InstanceArgs{Skeleton: sk, ID: Uint(11)}),
		),
		SourceFrame: frame,
	})
	frames, err := pose.NewTrainingFrames("", fromVideo, fromImage)
	fatalIf(t, err)
	videos, err := pose.NewSourceVideos("", video)
	fatalIf(t, err)
	training, err := pose.NewPoseTraining(pose.PoseTrainingArgs{
		Skeletons:      skeletons,
		TrainingFrames: frames,
		SourceVideos:   videos,
	}, pose.User())
	fatalIf(t, err)

	pe := MockPoseEstimation(t, EstimationArgs{File: f, Skeleton: sk})
	pe.OriginalVideosSeries = []*container.ImageSeries{video}

	fatalIf(t, module.Add(images, training, pe))
	return &Scene{
		File:       f,
		Module:     module,
		Subject:    subject,
		Skeleton:   sk,
		Video:      video,
		Frame:      frame,
		Estimation: pe,
		Training:   training,
	}
}
