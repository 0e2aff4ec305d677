package container

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rly/ndx-pose/internal/apperrors"
)

func newTestFile() *File {
	return NewFile("EXAMPLE_ID", "session", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
}

func TestPathsFollowNWBLayout(t *testing.T) {
	f := newTestFile()
	cam, err := f.CreateDevice("camera1", "left camera", "Acme")
	require.NoError(t, err)
	require.NoError(t, f.SetSubject(NewSubject("mouse-1")))
	mod, err := f.CreateProcessingModule("behavior", "processed behavioral data")
	require.NoError(t, err)
	imgs := NewImages("source_frames", "")
	require.NoError(t, mod.Add(imgs))
	img, err := NewImage("frame0", []int{2, 2}, []float64{0, 1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, imgs.Add(img))

	assert.Equal(t, "/", Path(f))
	assert.Equal(t, "/general/devices/camera1", Path(cam))
	assert.Equal(t, "/general/subject", Path(f.Subject()))
	assert.Equal(t, "/processing/behavior", Path(mod))
	assert.Equal(t, "/processing/behavior/source_frames/frame0", Path(img))

	got, ok := Find(f, "/processing/behavior/source_frames/frame0")
	require.True(t, ok)
	assert.Same(t, img, got)
}

func TestAttachment(t *testing.T) {
	f := newTestFile()
	loose := NewDevice("camera2", "", "")
	assert.False(t, Attached(loose))
	assert.Equal(t, "/camera2", Path(loose))

	require.NoError(t, f.AddDevice(loose))
	assert.True(t, Attached(loose))
	assert.True(t, SameFile(loose, f))
	assert.False(t, SameFile(loose, newTestFile()))
}

func TestCollectionRejectsDuplicatesAtomically(t *testing.T) {
	m := NewProcessingModule("behavior", "")
	a := NewDevice("a", "", "")
	require.NoError(t, m.Add(a))

	b := NewDevice("b", "", "")
	dup := NewDevice("a", "", "")
	err := m.Add(b, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDuplicateName))

	assert.Len(t, m.Children(), 1)
	assert.Nil(t, b.Parent(), "rejected batch must not adopt any member")

	err = m.Add(NewDevice("c", "", ""), NewDevice("c", "", ""))
	assert.True(t, errors.Is(err, apperrors.ErrDuplicateName))
	assert.Len(t, m.Children(), 1)
}

func TestCollectionRejectsOwnedChild(t *testing.T) {
	m1 := NewProcessingModule("m1", "")
	m2 := NewProcessingModule("m2", "")
	d := NewDevice("d", "", "")
	require.NoError(t, m1.Add(d))

	err := m2.Add(d)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.Empty(t, m2.Children())
}

func TestCollectionRejectsUnadoptableItemsAtomically(t *testing.T) {
	m := NewProcessingModule("behavior", "")
	d := NewDevice("d", "", "")

	err := m.Add(d, newTestFile())
	assert.True(t, errors.Is(err, apperrors.ErrConflict), "got %v", err)
	assert.Empty(t, m.Children())
	assert.Nil(t, d.Parent())

	err = m.Add(d, nil)
	assert.True(t, errors.Is(err, apperrors.ErrStructure), "got %v", err)
	var missing *Device
	err = m.Add(d, missing)
	assert.True(t, errors.Is(err, apperrors.ErrStructure), "got %v", err)
	assert.Empty(t, m.Children())
	assert.Nil(t, d.Parent())

	require.NoError(t, m.Add(d))
	assert.Len(t, m.Children(), 1)
}

func TestCollectionOrderAndLookup(t *testing.T) {
	m := NewProcessingModule("m", "")
	c := NewCollection[*Device](m)
	require.NoError(t, c.Add(NewDevice("z", "", ""), NewDevice("a", "", ""), NewDevice("m", "", "")))

	assert.Equal(t, []string{"z", "a", "m"}, c.Names())
	assert.Equal(t, 3, c.Len())
	assert.True(t, c.Has("a"))

	d, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", d.Name())

	_, err = c.Get("missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestFileHasOneSubject(t *testing.T) {
	f := newTestFile()
	require.NoError(t, f.SetSubject(NewSubject("a")))
	err := f.SetSubject(NewSubject("b"))
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestImageValidation(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
		n     int
		typ   string
		ok    bool
	}{
		{"grayscale", []int{4, 3}, 12, "GrayscaleImage", true},
		{"rgb", []int{2, 2, 3}, 12, "RGBImage", true},
		{"rgba", []int{1, 2, 4}, 8, "RGBAImage", true},
		{"two channels", []int{2, 2, 2}, 8, "", false},
		{"rank one", []int{4}, 4, "", false},
		{"short data", []int{2, 2}, 3, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := NewImage("img", tt.shape, make([]float64, tt.n))
			if !tt.ok {
				assert.True(t, errors.Is(err, apperrors.ErrShape))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.typ, img.TypeName())
		})
	}
}

func TestImageSeriesValidate(t *testing.T) {
	s := NewImageSeries("video", []string{"a.mp4", "b.mp4"}, 30)
	require.NoError(t, s.Validate())

	s.StartingFrame = []uint64{0}
	assert.True(t, errors.Is(s.Validate(), apperrors.ErrShape))

	empty := NewImageSeries("empty", nil, 30)
	assert.True(t, errors.Is(empty.Validate(), apperrors.ErrShape))
}

func TestObjectIDPreserved(t *testing.T) {
	d := NewDevice("d", "", "")
	assert.Len(t, d.ObjectID(), 36)

	d.SetObjectID("")
	assert.Len(t, d.ObjectID(), 36)

	d.SetObjectID("fixed")
	assert.Equal(t, "fixed", d.ObjectID())
}

func TestDescribeListsEveryObject(t *testing.T) {
	f := newTestFile()
	_, err := f.CreateDevice("camera1", "", "")
	require.NoError(t, err)
	_, err = f.CreateProcessingModule("behavior", "")
	require.NoError(t, err)

	var buf bytes.Buffer
	Describe(&buf, f)
	out := buf.String()
	assert.Contains(t, out, "/general/devices/camera1")
	assert.Contains(t, out, "ProcessingModule")
	assert.Contains(t, out, "NWBFile")
}
