package mapper

import (
	"github.com/rly/ndx-pose/internal/apperrors"
	"github.com/rly/ndx-pose/internal/builder"
	"github.com/rly/ndx-pose/internal/container"
	"github.com/rly/ndx-pose/internal/pose"
)

type skeletonMapper struct{}

func (skeletonMapper) Types() []string { return []string{"Skeleton"} }

func (skeletonMapper) Build(w *Writer, obj container.Object) (*builder.Group, error) {
	s := obj.(*pose.Skeleton)
	g := w.Typed(s)
	g.AddDataset(builder.TextArray("nodes", s.Nodes))
	g.AddDataset(builder.Uint8Pairs("edges", s.Edges))
	if s.Subject != nil {
		if err := w.AddLink(g, s, s.Subject, "subject"); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (skeletonMapper) Construct(r *Reader, path string, g *builder.Group) (container.Object, error) {
	nodes, err := optionalStrings(g, "nodes")
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		return nil, missing(path, "dataset", "nodes")
	}
	args := pose.SkeletonArgs{Name: g.Name, Nodes: nodes}
	if d := g.Dataset("edges"); d != nil {
		if args.Edges, err = narrowPairs[uint8](path, d); err != nil {
			return nil, err
		}
	}
	subject, _, err := linkAs[*container.Subject](r, path, g, "subject")
	if err != nil {
		return nil, err
	}
	args.Subject = subject
	return pose.NewSkeleton(args, r.Construction())
}

type seriesMapper struct{}

func (seriesMapper) Types() []string { return []string{"PoseEstimationSeries"} }

func (seriesMapper) Build(w *Writer, obj container.Object) (*builder.Group, error) {
	s := obj.(*pose.PoseEstimationSeries)
	path := container.Path(s)
	g := w.Typed(s)
	g.SetAttr("description", s.Description)
	g.SetAttr("comments", s.Comments)

	if s.Data == nil {
		return nil, apperrors.New(apperrors.ErrShape, path, "data is required")
	}
	data := g.AddDataset(builder.MatrixDataset("data", s.Data))
	data.SetAttr("unit", s.Unit)
	data.SetAttr("conversion", s.Conversion)
	data.SetAttr("resolution", s.Resolution)
	data.SetAttr("offset", s.Offset)

	if s.ReferenceFrame != "" {
		g.AddDataset(builder.TextScalar("reference_frame", s.ReferenceFrame))
	}
	if s.Confidence != nil {
		g.AddDataset(builder.Float64Array("confidence", s.Confidence))
		if s.ConfidenceDefinition != "" {
			putRemapped(g, "PoseEstimationSeries", "confidence_definition", s.ConfidenceDefinition)
		}
	} else if s.ConfidenceDefinition != "" {
		return nil, apperrors.New(apperrors.ErrStructure, path,
			"confidence_definition is stored on the confidence dataset and cannot be written without confidence values")
	}

	if err := writeTimeBase(w, g, s); err != nil {
		return nil, err
	}
	return g, nil
}

// writeTimeBase stores explicit timestamps as a dataset and shared
// timestamps as a link to the dataset of the series they come from. A
// series sharing a rate-timed base gets its own copy of the rate.
func writeTimeBase(w *Writer, g *builder.Group, s *pose.PoseEstimationSeries) error {
	if from := s.TimestampsFrom(); from != nil {
		owner, err := s.TimeOwner()
		if err != nil {
			return err
		}
		if owner.Timestamps() != nil {
			p, err := w.LinkPath(s, from, "timestamps")
			if err != nil {
				return err
			}
			g.AddLink("timestamps", builder.Join(p, "timestamps"))
			return nil
		}
		s = owner
	}
	if ts := s.Timestamps(); ts != nil {
		g.AddDataset(builder.Float64Array("timestamps", ts))
		return nil
	}
	rate, start, ok := s.Rate()
	if !ok {
		return apperrors.New(apperrors.ErrStructure, container.Path(s), "series has no time base")
	}
	st := g.AddDataset(builder.Float64Scalar("starting_time", start))
	st.SetAttr("rate", rate)
	return nil
}

func (seriesMapper) Construct(r *Reader, path string, g *builder.Group) (container.Object, error) {
	d, err := requireDataset(r.root, path, g, "data")
	if err != nil {
		return nil, err
	}
	data, err := d.Matrix()
	if err != nil {
		return nil, err
	}
	args := pose.SeriesArgs{
		Name:                 g.Name,
		Description:          g.AttrString("description"),
		Comments:             g.AttrString("comments"),
		Data:                 data,
		Unit:                 attrString(d.Attributes, "unit", ""),
		ConfidenceDefinition: getRemapped(g, "PoseEstimationSeries", "confidence_definition"),
	}
	if args.ReferenceFrame, err = optionalText(g, "reference_frame"); err != nil {
		return nil, err
	}
	if c := g.Dataset("confidence"); c != nil {
		if args.Confidence, err = c.Float64s(); err != nil {
			return nil, err
		}
	}

	switch {
	case g.Link("timestamps") != nil:
		target := g.Link("timestamps").Target
		ownerPath, ok := ownerOf(target, "timestamps")
		if !ok {
			return nil, apperrors.New(apperrors.ErrStructure, path, "timestamps link %q does not point at a timestamps dataset", target)
		}
		from, err := objectAs[*pose.PoseEstimationSeries](r, ownerPath)
		if err != nil {
			return nil, err
		}
		args.Time.From = from
	case g.Dataset("timestamps") != nil:
		if args.Time.Timestamps, err = g.Dataset("timestamps").Float64s(); err != nil {
			return nil, err
		}
	case g.Dataset("starting_time") != nil:
		st := g.Dataset("starting_time")
		if args.Time.StartingTime, err = scalarFloat(st); err != nil {
			return nil, err
		}
		args.Time.Rate = attrFloat(st.Attributes, "rate", 0)
	}

	s, err := pose.NewPoseEstimationSeries(args, r.Construction())
	if err != nil {
		return nil, err
	}
	s.Conversion = attrFloat(d.Attributes, "conversion", 1)
	s.Resolution = attrFloat(d.Attributes, "resolution", -1)
	s.Offset = attrFloat(d.Attributes, "offset", 0)
	return s, nil
}

type estimationMapper struct{}

func (estimationMapper) Types() []string { return []string{"PoseEstimation"} }

func (estimationMapper) Build(w *Writer, obj container.Object) (*builder.Group, error) {
	pe := obj.(*pose.PoseEstimation)
	g := w.Typed(pe)

	if pe.Description != "" {
		g.AddDataset(builder.TextScalar("description", pe.Description))
	}
	if pe.OriginalVideos != nil {
		g.AddDataset(builder.TextArray("original_videos", pe.OriginalVideos))
	}
	if pe.LabeledVideos != nil {
		g.AddDataset(builder.TextArray("labeled_videos", pe.LabeledVideos))
	}
	if pe.Dimensions != nil {
		g.AddDataset(builder.Uint16Pairs("dimensions", pe.Dimensions))
	}
	if pe.Scorer != "" {
		g.AddDataset(builder.TextScalar("scorer", pe.Scorer))
	}
	if pe.SourceSoftware != "" || pe.SourceSoftwareVersion != "" {
		g.AddDataset(builder.TextScalar("source_software", pe.SourceSoftware))
		if pe.SourceSoftwareVersion != "" {
			putRemapped(g, "PoseEstimation", "source_software_version", pe.SourceSoftwareVersion)
		}
	}

	for _, s := range pe.AllSeries() {
		sg, err := w.Child(s)
		if err != nil {
			return nil, err
		}
		g.AddGroup(sg)
	}

	if sk := pe.Skeleton(); sk != nil {
		if pe.OwnsSkeleton() {
			sg, err := w.Child(sk)
			if err != nil {
				return nil, err
			}
			g.AddGroup(sg)
		} else if err := w.AddLink(g, pe, sk, "skeleton"); err != nil {
			return nil, err
		}
	}

	for _, d := range pe.Devices {
		if g.Has(d.Name()) {
			return nil, apperrors.New(apperrors.ErrConflict, container.Path(pe),
				"device %q has the same name as another member", d.Name())
		}
		if err := w.AddLink(g, pe, d, d.Name()); err != nil {
			return nil, err
		}
	}

	for _, vs := range []struct {
		name   string
		series []*container.ImageSeries
	}{
		{"original_videos_series", pe.OriginalVideosSeries},
		{"labeled_videos_series", pe.LabeledVideosSeries},
	} {
		if vs.series == nil {
			continue
		}
		vg := g.AddGroup(builder.NewGroup(vs.name))
		for _, v := range vs.series {
			if vg.Has(v.Name()) {
				return nil, apperrors.New(apperrors.ErrDuplicateName, builder.Join(container.Path(pe), vs.name),
					"video %q is listed twice", v.Name())
			}
			if err := w.AddLink(vg, pe, v, v.Name()); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

func (estimationMapper) Construct(r *Reader, path string, g *builder.Group) (container.Object, error) {
	args := pose.PoseEstimationArgs{
		Name:                  g.Name,
		SourceSoftwareVersion: getRemapped(g, "PoseEstimation", "source_software_version"),
	}
	var err error
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"description", &args.Description},
		{"scorer", &args.Scorer},
		{"source_software", &args.SourceSoftware},
	} {
		if *f.dst, err = optionalText(g, f.name); err != nil {
			return nil, err
		}
	}
	if args.OriginalVideos, err = optionalStrings(g, "original_videos"); err != nil {
		return nil, err
	}
	if args.LabeledVideos, err = optionalStrings(g, "labeled_videos"); err != nil {
		return nil, err
	}
	if d := g.Dataset("dimensions"); d != nil {
		if args.Dimensions, err = narrowPairs[uint16](path, d); err != nil {
			return nil, err
		}
	}

	for _, c := range g.Groups {
		if c.TypeName() != "PoseEstimationSeries" {
			continue
		}
		s, err := objectAs[*pose.PoseEstimationSeries](r, builder.Join(path, c.Name))
		if err != nil {
			return nil, err
		}
		args.Series = append(args.Series, s)
	}

	if err := readSkeleton(r, path, g, &args); err != nil {
		return nil, err
	}

	for _, l := range g.Links {
		if l.Name == "skeleton" {
			continue
		}
		d, _, err := linkAs[*container.Device](r, path, g, l.Name)
		if err != nil {
			return nil, err
		}
		args.Devices = append(args.Devices, d)
	}

	if vg := g.Group("original_videos_series"); vg != nil {
		if args.OriginalVideosSeries, err = linkedAs[*container.ImageSeries](r, builder.Join(path, vg.Name), vg); err != nil {
			return nil, err
		}
	}
	if vg := g.Group("labeled_videos_series"); vg != nil {
		if args.LabeledVideosSeries, err = linkedAs[*container.ImageSeries](r, builder.Join(path, vg.Name), vg); err != nil {
			return nil, err
		}
	}

	pe, err := pose.NewPoseEstimation(args, r.Construction())
	if err != nil {
		return nil, err
	}
	if args.Nodes != nil {
		if id := g.AttrString(builder.AttrObjectID); id != "" {
			pe.Skeleton().SetObjectID(legacySkeletonID(id))
		}
	}
	return pe, nil
}

type instanceMapper struct{}

func (instanceMapper) Types() []string { return []string{"SkeletonInstance"} }

func (instanceMapper) Build(w *Writer, obj container.Object) (*builder.Group, error) {
	si := obj.(*pose.SkeletonInstance)
	if err := si.Validate(); err != nil {
		return nil, err
	}
	g := w.Typed(si)
	if si.ID != nil {
		g.AddDataset(builder.Uint64Scalar("id", *si.ID))
	}
	g.AddDataset(builder.MatrixDataset("node_locations", si.NodeLocations))
	if si.NodeVisibility != nil {
		g.AddDataset(builder.BoolArray("node_visibility", si.NodeVisibility))
	}
	if err := w.AddLink(g, si, si.Skeleton, "skeleton"); err != nil {
		return nil, err
	}
	return g, nil
}

func (instanceMapper) Construct(r *Reader, path string, g *builder.Group) (container.Object, error) {
	args := pose.SkeletonInstanceArgs{Name: g.Name}
	var err error
	if args.ID, err = optionalUint64(g, "id"); err != nil {
		return nil, err
	}
	d := g.Dataset("node_locations")
	if d == nil {
		return nil, missing(path, "dataset", "node_locations")
	}
	if args.NodeLocations, err = d.Matrix(); err != nil {
		return nil, err
	}
	if v := g.Dataset("node_visibility"); v != nil {
		if args.NodeVisibility, err = v.Bools(); err != nil {
			return nil, err
		}
	}
	sk, ok, err := linkAs[*pose.Skeleton](r, path, g, "skeleton")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, missing(path, "link", "skeleton")
	}
	args.Skeleton = sk
	return pose.NewSkeletonInstance(args, r.Construction())
}

type trainingFrameMapper struct{}

func (trainingFrameMapper) Types() []string { return []string{"TrainingFrame"} }

func (trainingFrameMapper) Build(w *Writer, obj container.Object) (*builder.Group, error) {
	tf := obj.(*pose.TrainingFrame)
	g := w.Typed(tf)
	if tf.Annotator != "" {
		g.SetAttr("annotator", tf.Annotator)
	}
	if tf.SourceVideoFrameIndex != nil {
		g.AddDataset(builder.Uint64Scalar("source_video_frame_index", *tf.SourceVideoFrameIndex))
	}
	instances := tf.SkeletonInstances()
	if err := fixedName(tf, instances, "skeleton_instances"); err != nil {
		return nil, err
	}
	ig, err := w.Child(instances)
	if err != nil {
		return nil, err
	}
	g.AddGroup(ig)
	if tf.SourceVideo != nil {
		if err := w.AddLink(g, tf, tf.SourceVideo, "source_video"); err != nil {
			return nil, err
		}
	}
	if tf.SourceFrame != nil {
		if err := w.AddLink(g, tf, tf.SourceFrame, "source_frame"); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (trainingFrameMapper) Construct(r *Reader, path string, g *builder.Group) (container.Object, error) {
	args := pose.TrainingFrameArgs{Name: g.Name, Annotator: g.AttrString("annotator")}
	var err error
	if args.SourceVideoFrameIndex, err = optionalUint64(g, "source_video_frame_index"); err != nil {
		return nil, err
	}
	if g.Group("skeleton_instances") == nil {
		return nil, missing(path, "group", "skeleton_instances")
	}
	if args.Instances, err = objectAs[*pose.SkeletonInstances](r, builder.Join(path, "skeleton_instances")); err != nil {
		return nil, err
	}
	if args.SourceVideo, _, err = linkAs[*container.ImageSeries](r, path, g, "source_video"); err != nil {
		return nil, err
	}
	if args.SourceFrame, _, err = linkAs[*container.Image](r, path, g, "source_frame"); err != nil {
		return nil, err
	}
	return pose.NewTrainingFrame(args, r.Construction())
}

type trainingMapper struct{}

func (trainingMapper) Types() []string { return []string{"PoseTraining"} }

func (trainingMapper) Build(w *Writer, obj container.Object) (*builder.Group, error) {
	pt := obj.(*pose.PoseTraining)
	if tf := pt.TrainingFrames(); tf != nil {
		if err := fixedName(pt, tf, "training_frames"); err != nil {
			return nil, err
		}
	}
	if sv := pt.SourceVideos(); sv != nil {
		if err := fixedName(pt, sv, "source_videos"); err != nil {
			return nil, err
		}
	}
	g := w.Typed(pt)
	children, err := w.Children(pt.Children())
	if err != nil {
		return nil, err
	}
	g.Groups = append(g.Groups, children...)
	return g, nil
}

func (trainingMapper) Construct(r *Reader, path string, g *builder.Group) (container.Object, error) {
	args := pose.PoseTrainingArgs{Name: g.Name}
	for _, c := range g.Groups {
		p := builder.Join(path, c.Name)
		var err error
		switch c.TypeName() {
		case "Skeletons":
			args.Skeletons, err = objectAs[*pose.Skeletons](r, p)
		case "TrainingFrames":
			args.TrainingFrames, err = objectAs[*pose.TrainingFrames](r, p)
		case "SourceVideos":
			args.SourceVideos, err = objectAs[*pose.SourceVideos](r, p)
		default:
			err = apperrors.New(apperrors.ErrStructure, p, "unexpected %q in PoseTraining", c.TypeName())
		}
		if err != nil {
			return nil, err
		}
	}
	return pose.NewPoseTraining(args, r.Construction())
}

// Collection mappers. Each stores its members as child groups in order.

type skeletonsMapper struct{}

func (skeletonsMapper) Types() []string { return []string{"Skeletons"} }

func (skeletonsMapper) Build(w *Writer, obj container.Object) (*builder.Group, error) {
	return buildMembers(w, obj.(*pose.Skeletons))
}

func (skeletonsMapper) Construct(r *Reader, path string, g *builder.Group) (container.Object, error) {
	members, err := membersAs[*pose.Skeleton](r, path, g)
	if err != nil {
		return nil, err
	}
	return pose.NewSkeletons(g.Name, members...)
}

type instancesMapper struct{}

func (instancesMapper) Types() []string { return []string{"SkeletonInstances"} }

func (instancesMapper) Build(w *Writer, obj container.Object) (*builder.Group, error) {
	return buildMembers(w, obj.(*pose.SkeletonInstances))
}

func (instancesMapper) Construct(r *Reader, path string, g *builder.Group) (container.Object, error) {
	members, err := membersAs[*pose.SkeletonInstance](r, path, g)
	if err != nil {
		return nil, err
	}
	return pose.NewSkeletonInstances(g.Name, members...)
}

type trainingFramesMapper struct{}

func (trainingFramesMapper) Types() []string { return []string{"TrainingFrames"} }

func (trainingFramesMapper) Build(w *Writer, obj container.Object) (*builder.Group, error) {
	return buildMembers(w, obj.(*pose.TrainingFrames))
}

func (trainingFramesMapper) Construct(r *Reader, path string, g *builder.Group) (container.Object, error) {
	members, err := membersAs[*pose.TrainingFrame](r, path, g)
	if err != nil {
		return nil, err
	}
	return pose.NewTrainingFrames(g.Name, members...)
}

type sourceVideosMapper struct{}

func (sourceVideosMapper) Types() []string { return []string{"SourceVideos"} }

func (sourceVideosMapper) Build(w *Writer, obj container.Object) (*builder.Group, error) {
	return buildMembers(w, obj.(*pose.SourceVideos))
}

func (sourceVideosMapper) Construct(r *Reader, path string, g *builder.Group) (container.Object, error) {
	members, err := membersAs[*container.ImageSeries](r, path, g)
	if err != nil {
		return nil, err
	}
	return pose.NewSourceVideos(g.Name, members...)
}

func buildMembers(w *Writer, c container.Container) (*builder.Group, error) {
	g := w.Typed(c)
	children, err := w.Children(c.Children())
	if err != nil {
		return nil, err
	}
	g.Groups = append(g.Groups, children...)
	return g, nil
}
