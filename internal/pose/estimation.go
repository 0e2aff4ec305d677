package pose

import (
	"slices"

	"github.com/rly/ndx-pose/internal/apperrors"
	"github.com/rly/ndx-pose/internal/container"
)

// DefaultEstimationName is used when PoseEstimationArgs.Name is empty.
const DefaultEstimationName = "PoseEstimation"

// LegacySkeletonName names the skeleton synthesized from inline nodes/edges.
const LegacySkeletonName = "subject"

// User-facing notices.
const (
	MsgNodesEdgesDeprecated = "The 'nodes' and 'edges' constructor arguments are deprecated. " +
		"Please use the 'skeleton' argument instead. These will be removed in a future release."
	MsgDeviceNotAttached    = "All devices linked to from a PoseEstimation object must be added to the NWBFile first."
	MsgOriginalVideosCount  = "The number of original videos should equal the number of camera devices."
	MsgLabeledVideosCount   = "The number of labeled videos should equal the number of camera devices."
	MsgDimensionsCount      = "The number of dimensions should equal the number of camera devices."
	MsgVideoPathsDeprecated = "The 'original_videos' and 'labeled_videos' path lists are deprecated. " +
		"Please use 'original_videos_series' and 'labeled_videos_series' instead."
)

// PoseEstimation is the output of one run of a pose-estimation tool: one
// series per keypoint plus provenance.
type PoseEstimation struct {
	container.Base
	Description           string
	Scorer                string
	SourceSoftware        string
	SourceSoftwareVersion string
	OriginalVideos        []string
	LabeledVideos         []string
	Dimensions            [][2]uint16
	OriginalVideosSeries  []*container.ImageSeries
	LabeledVideosSeries   []*container.ImageSeries
	Devices               []*container.Device

	series   *container.Collection[*PoseEstimationSeries]
	skeleton *Skeleton
	// ownsSkeleton is set when the skeleton was synthesized from nodes/edges.
	ownsSkeleton bool
}

// PoseEstimationArgs are the inputs to NewPoseEstimation.
//
// Nodes and Edges are the legacy alternative to Skeleton. A nil slice means
// "not given"; an empty non-nil slice is a given, empty list.
type PoseEstimationArgs struct {
	Name                  string
	Series                []*PoseEstimationSeries
	Description           string
	Scorer                string
	SourceSoftware        string
	SourceSoftwareVersion string
	OriginalVideos        []string
	LabeledVideos         []string
	Dimensions            [][2]uint16
	OriginalVideosSeries  []*container.ImageSeries
	LabeledVideosSeries   []*container.ImageSeries
	Devices               []*container.Device
	Skeleton              *Skeleton
	// EmbedSkeleton stores Skeleton inside the PoseEstimation instead of
	// linking to it. The read path sets it for files whose skeleton group is
	// a child of the PoseEstimation group.
	EmbedSkeleton bool

	// Deprecated: use Skeleton.
	Nodes []string
	// Deprecated: use Skeleton.
	Edges [][2]uint8
}

// NewPoseEstimation normalizes legacy inputs into a skeleton and applies the
// link and count rules. Under FromStorage the device guard, count checks and
// deprecation notices are skipped.
func NewPoseEstimation(args PoseEstimationArgs, c Construction) (*PoseEstimation, error) {
	name := args.Name
	if name == "" {
		name = DefaultEstimationName
	}
	pe := &PoseEstimation{
		Base:                  container.NewBase(name),
		Description:           args.Description,
		Scorer:                args.Scorer,
		SourceSoftware:        args.SourceSoftware,
		SourceSoftwareVersion: args.SourceSoftwareVersion,
		OriginalVideos:        args.OriginalVideos,
		LabeledVideos:         args.LabeledVideos,
		Dimensions:            args.Dimensions,
		OriginalVideosSeries:  args.OriginalVideosSeries,
		LabeledVideosSeries:   args.LabeledVideosSeries,
		Devices:               args.Devices,
		skeleton:              args.Skeleton,
	}
	pe.series = container.NewCollection[*PoseEstimationSeries](pe)
	path := container.Path(pe)

	legacy := args.Nodes != nil || args.Edges != nil
	if legacy && args.Skeleton != nil {
		return nil, apperrors.New(apperrors.ErrConflict, path,
			"skeleton and nodes/edges cannot both be given; use skeleton")
	}
	if legacy {
		if args.Nodes == nil {
			return nil, apperrors.New(apperrors.ErrConflict, path, "edges given without nodes")
		}
		c.deprecated(path, MsgNodesEdgesDeprecated)
		sk, err := NewSkeleton(SkeletonArgs{Name: LegacySkeletonName, Nodes: args.Nodes, Edges: args.Edges}, c)
		if err != nil {
			return nil, err
		}
		if err := sk.SetParent(pe); err != nil {
			return nil, err
		}
		pe.skeleton = sk
		pe.ownsSkeleton = true
	} else if args.EmbedSkeleton && args.Skeleton != nil {
		if err := args.Skeleton.SetParent(pe); err != nil {
			return nil, err
		}
		pe.ownsSkeleton = true
	}

	if args.OriginalVideos != nil && args.OriginalVideosSeries != nil {
		return nil, apperrors.New(apperrors.ErrConflict, path,
			"original_videos and original_videos_series cannot both be given")
	}
	if args.LabeledVideos != nil && args.LabeledVideosSeries != nil {
		return nil, apperrors.New(apperrors.ErrConflict, path,
			"labeled_videos and labeled_videos_series cannot both be given")
	}

	if !c.deserialized() {
		for _, d := range args.Devices {
			if d == nil || !container.Attached(d) {
				return nil, apperrors.New(apperrors.ErrLink, path, "%s", MsgDeviceNotAttached)
			}
		}
		if args.OriginalVideos != nil || args.LabeledVideos != nil {
			c.deprecated(path, MsgVideoPathsDeprecated)
		}
		if err := pe.checkCounts(c); err != nil {
			return nil, err
		}
	}

	if err := pe.AddSeries(args.Series...); err != nil {
		return nil, err
	}
	return pe, nil
}

func (pe *PoseEstimation) checkCounts(c Construction) error {
	path := container.Path(pe)
	devices := len(pe.Devices)
	checks := []struct {
		given bool
		n     int
		msg   string
	}{
		{pe.OriginalVideos != nil || pe.OriginalVideosSeries != nil, len(pe.OriginalVideos) + len(pe.OriginalVideosSeries), MsgOriginalVideosCount},
		{pe.LabeledVideos != nil || pe.LabeledVideosSeries != nil, len(pe.LabeledVideos) + len(pe.LabeledVideosSeries), MsgLabeledVideosCount},
		{pe.Dimensions != nil, len(pe.Dimensions), MsgDimensionsCount},
	}
	for _, chk := range checks {
		if chk.given && chk.n != devices {
			if err := c.countMismatch(path, chk.msg); err != nil {
				return err
			}
		}
	}
	return nil
}

func (pe *PoseEstimation) TypeName() string  { return "PoseEstimation" }
func (pe *PoseEstimation) Namespace() string { return container.NamespacePose }

// Skeleton returns the linked or synthesized skeleton, or nil.
func (pe *PoseEstimation) Skeleton() *Skeleton { return pe.skeleton }

// OwnsSkeleton reports whether the skeleton was synthesized from legacy
// nodes/edges and is stored inside this object.
func (pe *PoseEstimation) OwnsSkeleton() bool { return pe.ownsSkeleton }

// Nodes is a read-only view of Skeleton().Nodes.
func (pe *PoseEstimation) Nodes() []string {
	if pe.skeleton == nil {
		return nil
	}
	return slices.Clone(pe.skeleton.Nodes)
}

// Edges is a read-only view of Skeleton().Edges.
func (pe *PoseEstimation) Edges() [][2]uint8 {
	if pe.skeleton == nil {
		return nil
	}
	return slices.Clone(pe.skeleton.Edges)
}

// SetNodes always fails; nodes belong to the skeleton.
func (pe *PoseEstimation) SetNodes([]string) error {
	return apperrors.New(apperrors.ErrReadOnly, container.Path(pe),
		"nodes cannot be set directly; set the skeleton instead")
}

// SetEdges always fails; edges belong to the skeleton.
func (pe *PoseEstimation) SetEdges([][2]uint8) error {
	return apperrors.New(apperrors.ErrReadOnly, container.Path(pe),
		"edges cannot be set directly; set the skeleton instead")
}

// AddSeries inserts series. Names must be unique and must not collide with
// a skeleton stored inside this object.
func (pe *PoseEstimation) AddSeries(series ...*PoseEstimationSeries) error {
	if pe.ownsSkeleton {
		for _, s := range series {
			if s != nil && s.Name() == pe.skeleton.Name() {
				return apperrors.New(apperrors.ErrDuplicateName, container.Path(pe),
					"series %q has the same name as the skeleton stored in %s", s.Name(), pe.Name())
			}
		}
	}
	return pe.series.Add(series...)
}

// CreateSeries builds a series and adds it.
func (pe *PoseEstimation) CreateSeries(args SeriesArgs, c Construction) (*PoseEstimationSeries, error) {
	s, err := NewPoseEstimationSeries(args, c)
	if err != nil {
		return nil, err
	}
	if err := pe.AddSeries(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Series returns the series called name.
func (pe *PoseEstimation) Series(name string) (*PoseEstimationSeries, error) {
	return pe.series.Get(name)
}

// AllSeries returns series in insertion order.
func (pe *PoseEstimation) AllSeries() []*PoseEstimationSeries {
	return pe.series.All()
}

func (pe *PoseEstimation) Children() []container.Object {
	out := pe.series.Objects()
	if pe.ownsSkeleton {
		out = append(out, pe.skeleton)
	}
	return out
}
