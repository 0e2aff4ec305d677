package builder

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/rly/ndx-pose/internal/apperrors"
)

// Dtype names the element type of a dataset.
type Dtype string

const (
	Float64 Dtype = "float64"
	Uint8   Dtype = "uint8"
	Uint16  Dtype = "uint16"
	Uint32  Dtype = "uint32"
	Uint64  Dtype = "uint64"
	Bool    Dtype = "bool"
	Text    Dtype = "text"
)

// Dataset is a typed array. Data holds a flat row-major slice whose Go type
// matches Dtype ([]float64, []uint8, []uint16, []uint32, []uint64, []bool or
// []string). A nil Shape marks a scalar holding exactly one element.
type Dataset struct {
	Name       string
	Dtype      Dtype
	Shape      []int
	Data       any
	Attributes map[string]any
}

// SetAttr stores an attribute on the dataset.
func (d *Dataset) SetAttr(key string, v any) {
	if d.Attributes == nil {
		d.Attributes = map[string]any{}
	}
	d.Attributes[key] = v
}

// AttrString returns a string attribute, or "".
func (d *Dataset) AttrString(key string) string {
	s, _ := d.Attributes[key].(string)
	return s
}

// Scalar reports whether the dataset holds a single value.
func (d *Dataset) Scalar() bool { return d.Shape == nil }

// Len returns the number of elements.
func (d *Dataset) Len() int {
	switch v := d.Data.(type) {
	case []float64:
		return len(v)
	case []uint8:
		return len(v)
	case []uint16:
		return len(v)
	case []uint32:
		return len(v)
	case []uint64:
		return len(v)
	case []bool:
		return len(v)
	case []string:
		return len(v)
	}
	return 0
}

// Check verifies that Data matches Dtype and that Shape accounts for every
// element.
func (d *Dataset) Check() error {
	ok := false
	switch d.Data.(type) {
	case []float64:
		ok = d.Dtype == Float64
	case []uint8:
		ok = d.Dtype == Uint8
	case []uint16:
		ok = d.Dtype == Uint16
	case []uint32:
		ok = d.Dtype == Uint32
	case []uint64:
		ok = d.Dtype == Uint64
	case []bool:
		ok = d.Dtype == Bool
	case []string:
		ok = d.Dtype == Text
	}
	if !ok {
		return apperrors.New(apperrors.ErrStructure, d.Name, "data of type %T does not match dtype %s", d.Data, d.Dtype)
	}
	want := 1
	for _, n := range d.Shape {
		want *= n
	}
	if got := d.Len(); got != want {
		return apperrors.New(apperrors.ErrShape, d.Name, "shape %v needs %d elements, got %d", d.Shape, want, got)
	}
	return nil
}

func (d *Dataset) typeErr(want Dtype) error {
	return apperrors.New(apperrors.ErrStructure, d.Name, "expected %s data, found %s", want, d.Dtype)
}

// Float64s returns float data.
func (d *Dataset) Float64s() ([]float64, error) {
	v, ok := d.Data.([]float64)
	if !ok {
		return nil, d.typeErr(Float64)
	}
	return v, nil
}

// Strings returns text data.
func (d *Dataset) Strings() ([]string, error) {
	v, ok := d.Data.([]string)
	if !ok {
		return nil, d.typeErr(Text)
	}
	return v, nil
}

// Bools returns boolean data.
func (d *Dataset) Bools() ([]bool, error) {
	v, ok := d.Data.([]bool)
	if !ok {
		return nil, d.typeErr(Bool)
	}
	return v, nil
}

// Uint64s returns unsigned data widened to uint64.
func (d *Dataset) Uint64s() ([]uint64, error) {
	switch v := d.Data.(type) {
	case []uint64:
		return v, nil
	case []uint32:
		out := make([]uint64, len(v))
		for i, x := range v {
			out[i] = uint64(x)
		}
		return out, nil
	case []uint16:
		out := make([]uint64, len(v))
		for i, x := range v {
			out[i] = uint64(x)
		}
		return out, nil
	case []uint8:
		out := make([]uint64, len(v))
		for i, x := range v {
			out[i] = uint64(x)
		}
		return out, nil
	}
	return nil, d.typeErr(Uint64)
}

// Text returns a scalar text value.
func (d *Dataset) Text() (string, error) {
	v, err := d.Strings()
	if err != nil {
		return "", err
	}
	if len(v) != 1 {
		return "", apperrors.New(apperrors.ErrShape, d.Name, "expected a scalar, found %d values", len(v))
	}
	return v[0], nil
}

// Matrix returns 2-D float data as a matrix.
func (d *Dataset) Matrix() (*mat.Dense, error) {
	v, err := d.Float64s()
	if err != nil {
		return nil, err
	}
	if len(d.Shape) != 2 {
		return nil, apperrors.New(apperrors.ErrShape, d.Name, "expected a 2-D dataset, found shape %v", d.Shape)
	}
	if d.Shape[0] == 0 {
		return nil, apperrors.New(apperrors.ErrShape, d.Name, "matrix has no rows")
	}
	return mat.NewDense(d.Shape[0], d.Shape[1], v), nil
}

// Pairs returns an (N, 2) unsigned dataset as pairs.
func (d *Dataset) Pairs() ([][2]uint64, error) {
	v, err := d.Uint64s()
	if err != nil {
		return nil, err
	}
	if len(d.Shape) != 2 || d.Shape[1] != 2 {
		return nil, apperrors.New(apperrors.ErrShape, d.Name, "expected shape (N, 2), found %v", d.Shape)
	}
	out := make([][2]uint64, d.Shape[0])
	for i := range out {
		out[i] = [2]uint64{v[2*i], v[2*i+1]}
	}
	return out, nil
}

// TextScalar returns a scalar text dataset.
func TextScalar(name, v string) *Dataset {
	return &Dataset{Name: name, Dtype: Text, Data: []string{v}}
}

// Float64Scalar returns a scalar float dataset.
func Float64Scalar(name string, v float64) *Dataset {
	return &Dataset{Name: name, Dtype: Float64, Data: []float64{v}}
}

// Uint64Scalar returns a scalar unsigned dataset.
func Uint64Scalar(name string, v uint64) *Dataset {
	return &Dataset{Name: name, Dtype: Uint64, Data: []uint64{v}}
}

// TextArray returns a 1-D text dataset.
func TextArray(name string, v []string) *Dataset {
	return &Dataset{Name: name, Dtype: Text, Shape: []int{len(v)}, Data: v}
}

// Float64Array returns a 1-D float dataset. The slice is not copied.
func Float64Array(name string, v []float64) *Dataset {
	return &Dataset{Name: name, Dtype: Float64, Shape: []int{len(v)}, Data: v}
}

// Uint64Array returns a 1-D unsigned dataset.
func Uint64Array(name string, v []uint64) *Dataset {
	return &Dataset{Name: name, Dtype: Uint64, Shape: []int{len(v)}, Data: v}
}

// Uint32Array returns a 1-D unsigned dataset.
func Uint32Array(name string, v []uint32) *Dataset {
	return &Dataset{Name: name, Dtype: Uint32, Shape: []int{len(v)}, Data: v}
}

// BoolArray returns a 1-D boolean dataset.
func BoolArray(name string, v []bool) *Dataset {
	return &Dataset{Name: name, Dtype: Bool, Shape: []int{len(v)}, Data: v}
}

// Float64Tensor returns an N-D float dataset.
func Float64Tensor(name string, shape []int, v []float64) *Dataset {
	return &Dataset{Name: name, Dtype: Float64, Shape: append([]int(nil), shape...), Data: v}
}

// MatrixDataset flattens m row-major into a 2-D float dataset.
func MatrixDataset(name string, m *mat.Dense) *Dataset {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, m.RawRowView(i)...)
	}
	return &Dataset{Name: name, Dtype: Float64, Shape: []int{r, c}, Data: data}
}

// Uint8Pairs returns an (N, 2) uint8 dataset.
func Uint8Pairs(name string, v [][2]uint8) *Dataset {
	data := make([]uint8, 0, 2*len(v))
	for _, p := range v {
		data = append(data, p[0], p[1])
	}
	return &Dataset{Name: name, Dtype: Uint8, Shape: []int{len(v), 2}, Data: data}
}

// Uint16Pairs returns an (N, 2) uint16 dataset.
func Uint16Pairs(name string, v [][2]uint16) *Dataset {
	data := make([]uint16, 0, 2*len(v))
	for _, p := range v {
		data = append(data, p[0], p[1])
	}
	return &Dataset{Name: name, Dtype: Uint16, Shape: []int{len(v), 2}, Data: data}
}

// Describe returns "name dtype shape" for logs.
func (d *Dataset) Describe() string {
	return fmt.Sprintf("%s %s %v", d.Name, d.Dtype, d.Shape)
}
