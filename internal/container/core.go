package container

import (
	"github.com/rly/ndx-pose/internal/apperrors"
)

// Device is a piece of acquisition hardware, typically a camera.
type Device struct {
	Base
	Description  string
	Manufacturer string
}

// NewDevice returns an unattached device.
func NewDevice(name, description, manufacturer string) *Device {
	return &Device{Base: NewBase(name), Description: description, Manufacturer: manufacturer}
}

func (d *Device) TypeName() string  { return "Device" }
func (d *Device) Namespace() string { return NamespaceCore }

// Subject identifies the animal a file describes. Its name is always "subject".
type Subject struct {
	Base
	SubjectID   string
	Species     string
	Sex         string
	Age         string
	Description string
}

// NewSubject returns an unattached subject.
func NewSubject(subjectID string) *Subject {
	return &Subject{Base: NewBase("subject"), SubjectID: subjectID}
}

func (s *Subject) TypeName() string  { return "Subject" }
func (s *Subject) Namespace() string { return NamespaceCore }

// ImageSeries is a video. Only external-file storage is modeled.
type ImageSeries struct {
	Base
	Description   string
	Unit          string
	Format        string
	ExternalFile  []string
	StartingFrame []uint64
	Dimension     []uint32
	Rate          float64
	StartingTime  float64
}

// NewImageSeries returns an external-format video series starting at frame 0
// of every file.
func NewImageSeries(name string, externalFile []string, rate float64) *ImageSeries {
	return &ImageSeries{
		Base:          NewBase(name),
		Description:   "no description",
		Unit:          "n.a.",
		Format:        "external",
		ExternalFile:  externalFile,
		StartingFrame: make([]uint64, len(externalFile)),
		Rate:          rate,
	}
}

func (s *ImageSeries) TypeName() string  { return "ImageSeries" }
func (s *ImageSeries) Namespace() string { return NamespaceCore }

// Validate checks that every external file has a starting frame.
func (s *ImageSeries) Validate() error {
	if s.Format == "external" && len(s.ExternalFile) == 0 {
		return apperrors.New(apperrors.ErrShape, Path(s), "external format requires at least one external_file")
	}
	if len(s.StartingFrame) != len(s.ExternalFile) {
		return apperrors.New(apperrors.ErrShape, Path(s),
			"starting_frame has %d entries, external_file has %d", len(s.StartingFrame), len(s.ExternalFile))
	}
	return nil
}

// Image is a single still frame, stored row-major with Shape (height, width)
// for grayscale or (height, width, channels) for color.
type Image struct {
	Base
	Description string
	Resolution  float64
	Shape       []int
	Data        []float64
}

// NewImage validates shape against data length.
func NewImage(name string, shape []int, data []float64) (*Image, error) {
	img := &Image{Base: NewBase(name), Shape: shape, Data: data, Resolution: -1}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// TypeName follows the channel count: GrayscaleImage, RGBImage or RGBAImage.
func (img *Image) TypeName() string {
	if len(img.Shape) == 3 {
		if img.Shape[2] == 4 {
			return "RGBAImage"
		}
		return "RGBImage"
	}
	return "GrayscaleImage"
}

func (img *Image) Namespace() string { return NamespaceCore }

// Validate checks rank, channel count and element count.
func (img *Image) Validate() error {
	switch len(img.Shape) {
	case 2:
	case 3:
		if c := img.Shape[2]; c != 3 && c != 4 {
			return apperrors.New(apperrors.ErrShape, Path(img), "color images need 3 or 4 channels, got %d", c)
		}
	default:
		return apperrors.New(apperrors.ErrShape, Path(img), "image rank must be 2 or 3, got %d", len(img.Shape))
	}
	n := 1
	for _, d := range img.Shape {
		n *= d
	}
	if n != len(img.Data) {
		return apperrors.New(apperrors.ErrShape, Path(img), "shape %v needs %d values, got %d", img.Shape, n, len(img.Data))
	}
	return nil
}

// Images is a named set of Image objects.
type Images struct {
	Base
	Description string

	images *Collection[*Image]
}

// NewImages returns an empty set.
func NewImages(name, description string) *Images {
	s := &Images{Base: NewBase(name), Description: description}
	s.images = NewCollection[*Image](s)
	return s
}

func (s *Images) TypeName() string  { return "Images" }
func (s *Images) Namespace() string { return NamespaceCore }

// Add attaches images. Names must be unique.
func (s *Images) Add(imgs ...*Image) error { return s.images.Add(imgs...) }

// Get returns the image called name.
func (s *Images) Get(name string) (*Image, error) { return s.images.Get(name) }

// All returns images in insertion order.
func (s *Images) All() []*Image { return s.images.All() }

func (s *Images) Children() []Object { return s.images.Objects() }
