package mapper

import (
	"github.com/rly/ndx-pose/internal/apperrors"
	"github.com/rly/ndx-pose/internal/builder"
	"github.com/rly/ndx-pose/internal/container"
)

// Mappers for the NWB core collaborators. Only the fields the pose types
// need are stored.

type deviceMapper struct{}

func (deviceMapper) Types() []string { return []string{"Device"} }

func (deviceMapper) Build(w *Writer, obj container.Object) (*builder.Group, error) {
	d := obj.(*container.Device)
	g := w.Typed(d)
	g.SetAttr("description", d.Description)
	g.SetAttr("manufacturer", d.Manufacturer)
	return g, nil
}

func (deviceMapper) Construct(_ *Reader, _ string, g *builder.Group) (container.Object, error) {
	return container.NewDevice(g.Name, g.AttrString("description"), g.AttrString("manufacturer")), nil
}

type subjectMapper struct{}

func (subjectMapper) Types() []string { return []string{"Subject"} }

func (subjectMapper) Build(w *Writer, obj container.Object) (*builder.Group, error) {
	s := obj.(*container.Subject)
	g := w.Typed(s)
	for _, f := range []struct{ name, value string }{
		{"subject_id", s.SubjectID},
		{"species", s.Species},
		{"sex", s.Sex},
		{"age", s.Age},
		{"description", s.Description},
	} {
		if f.value != "" {
			g.AddDataset(builder.TextScalar(f.name, f.value))
		}
	}
	return g, nil
}

func (subjectMapper) Construct(_ *Reader, _ string, g *builder.Group) (container.Object, error) {
	s := container.NewSubject("")
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"subject_id", &s.SubjectID},
		{"species", &s.Species},
		{"sex", &s.Sex},
		{"age", &s.Age},
		{"description", &s.Description},
	} {
		v, err := optionalText(g, f.name)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	return s, nil
}

type imageSeriesMapper struct{}

func (imageSeriesMapper) Types() []string { return []string{"ImageSeries"} }

func (imageSeriesMapper) Build(w *Writer, obj container.Object) (*builder.Group, error) {
	s := obj.(*container.ImageSeries)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	g := w.Typed(s)
	g.SetAttr("description", s.Description)
	g.SetAttr("unit", s.Unit)
	g.AddDataset(builder.TextScalar("format", s.Format))
	if s.ExternalFile != nil {
		ef := g.AddDataset(builder.TextArray("external_file", s.ExternalFile))
		ef.SetAttr("starting_frame", s.StartingFrame)
	}
	if s.Dimension != nil {
		g.AddDataset(builder.Uint32Array("dimension", s.Dimension))
	}
	st := g.AddDataset(builder.Float64Scalar("starting_time", s.StartingTime))
	st.SetAttr("rate", s.Rate)
	return g, nil
}

func (imageSeriesMapper) Construct(_ *Reader, path string, g *builder.Group) (container.Object, error) {
	files, err := optionalStrings(g, "external_file")
	if err != nil {
		return nil, err
	}
	s := container.NewImageSeries(g.Name, files, 0)
	s.Description = g.AttrString("description")
	s.Unit = g.AttrString("unit")
	if s.Format, err = optionalText(g, "format"); err != nil {
		return nil, err
	}
	if ef := g.Dataset("external_file"); ef != nil {
		if sf := attrUint64s(ef.Attributes, "starting_frame"); sf != nil {
			s.StartingFrame = sf
		}
	}
	if d := g.Dataset("dimension"); d != nil {
		v, err := d.Uint64s()
		if err != nil {
			return nil, err
		}
		s.Dimension = make([]uint32, len(v))
		for i, x := range v {
			s.Dimension[i] = uint32(x)
		}
	}
	if st := g.Dataset("starting_time"); st != nil {
		if s.StartingTime, err = scalarFloat(st); err != nil {
			return nil, err
		}
		s.Rate = attrFloat(st.Attributes, "rate", 0)
	}
	if len(s.StartingFrame) != len(s.ExternalFile) {
		return nil, apperrors.New(apperrors.ErrStructure, path,
			"starting_frame has %d entries, external_file has %d", len(s.StartingFrame), len(s.ExternalFile))
	}
	return s, nil
}

type imageMapper struct{}

func (imageMapper) Types() []string { return []string{"GrayscaleImage", "RGBImage", "RGBAImage"} }

func (imageMapper) Build(w *Writer, obj container.Object) (*builder.Group, error) {
	img := obj.(*container.Image)
	if err := img.Validate(); err != nil {
		return nil, err
	}
	g := w.Typed(img)
	g.SetAttr("description", img.Description)
	data := g.AddDataset(builder.Float64Tensor("data", img.Shape, img.Data))
	data.SetAttr("resolution", img.Resolution)
	return g, nil
}

func (imageMapper) Construct(_ *Reader, path string, g *builder.Group) (container.Object, error) {
	d := g.Dataset("data")
	if d == nil {
		return nil, missing(path, "dataset", "data")
	}
	v, err := d.Float64s()
	if err != nil {
		return nil, err
	}
	img, err := container.NewImage(g.Name, append([]int(nil), d.Shape...), v)
	if err != nil {
		return nil, err
	}
	img.Description = g.AttrString("description")
	img.Resolution = attrFloat(d.Attributes, "resolution", -1)
	return img, nil
}

type imagesMapper struct{}

func (imagesMapper) Types() []string { return []string{"Images"} }

func (imagesMapper) Build(w *Writer, obj container.Object) (*builder.Group, error) {
	s := obj.(*container.Images)
	g := w.Typed(s)
	g.SetAttr("description", s.Description)
	children, err := w.Children(s.Children())
	if err != nil {
		return nil, err
	}
	g.Groups = append(g.Groups, children...)
	return g, nil
}

func (imagesMapper) Construct(r *Reader, path string, g *builder.Group) (container.Object, error) {
	s := container.NewImages(g.Name, g.AttrString("description"))
	imgs, err := membersAs[*container.Image](r, path, g)
	if err != nil {
		return nil, err
	}
	if err := s.Add(imgs...); err != nil {
		return nil, err
	}
	return s, nil
}

type processingModuleMapper struct{}

func (processingModuleMapper) Types() []string { return []string{"ProcessingModule"} }

func (processingModuleMapper) Build(w *Writer, obj container.Object) (*builder.Group, error) {
	m := obj.(*container.ProcessingModule)
	g := w.Typed(m)
	g.SetAttr("description", m.Description)
	children, err := w.Children(m.Children())
	if err != nil {
		return nil, err
	}
	g.Groups = append(g.Groups, children...)
	return g, nil
}

func (processingModuleMapper) Construct(r *Reader, path string, g *builder.Group) (container.Object, error) {
	m := container.NewProcessingModule(g.Name, g.AttrString("description"))
	objs, err := membersAs[container.Object](r, path, g)
	if err != nil {
		return nil, err
	}
	if err := m.Add(objs...); err != nil {
		return nil, err
	}
	return m, nil
}
