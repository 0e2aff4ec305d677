package mapper

import (
	"math"

	"github.com/rly/ndx-pose/internal/apperrors"
	"github.com/rly/ndx-pose/internal/builder"
)

func missing(path, what, name string) error {
	return apperrors.New(apperrors.ErrStructure, path, "missing %s %q", what, name)
}

// requireDataset returns the dataset called name, following a link if the
// slot holds one.
func requireDataset(root *builder.Group, path string, g *builder.Group, name string) (*builder.Dataset, error) {
	d, err := optionalDataset(root, path, g, name)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, missing(path, "dataset", name)
	}
	return d, nil
}

func optionalDataset(root *builder.Group, path string, g *builder.Group, name string) (*builder.Dataset, error) {
	if d := g.Dataset(name); d != nil {
		return d, nil
	}
	l := g.Link(name)
	if l == nil {
		return nil, nil
	}
	n, err := builder.Resolve(root, l.Target)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStructure, builder.Join(path, name), err, "cannot resolve link")
	}
	if n.Dataset == nil {
		return nil, apperrors.New(apperrors.ErrStructure, builder.Join(path, name), "link points at a group")
	}
	return n.Dataset, nil
}

// optionalText reads a scalar text dataset, or "" when it is absent.
func optionalText(g *builder.Group, name string) (string, error) {
	d := g.Dataset(name)
	if d == nil {
		return "", nil
	}
	return d.Text()
}

// optionalStrings reads a text array. A nil result means the dataset is
// absent; a present, empty dataset yields an empty non-nil slice.
func optionalStrings(g *builder.Group, name string) ([]string, error) {
	d := g.Dataset(name)
	if d == nil {
		return nil, nil
	}
	v, err := d.Strings()
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = []string{}
	}
	return v, nil
}

func optionalUint64(g *builder.Group, name string) (*uint64, error) {
	d := g.Dataset(name)
	if d == nil {
		return nil, nil
	}
	v, err := d.Uint64s()
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, apperrors.New(apperrors.ErrShape, name, "expected a scalar, found %d values", len(v))
	}
	return &v[0], nil
}

func scalarFloat(d *builder.Dataset) (float64, error) {
	v, err := d.Float64s()
	if err != nil {
		return 0, err
	}
	if len(v) != 1 {
		return 0, apperrors.New(apperrors.ErrShape, d.Name, "expected a scalar, found %d values", len(v))
	}
	return v[0], nil
}

// narrowPairs converts stored unsigned pairs to a narrower element type,
// failing on values that do not fit.
func narrowPairs[T uint8 | uint16](path string, d *builder.Dataset) ([][2]T, error) {
	pairs, err := d.Pairs()
	if err != nil {
		return nil, err
	}
	var limit uint64 = math.MaxUint16
	if _, ok := any(T(0)).(uint8); ok {
		limit = math.MaxUint8
	}
	out := make([][2]T, len(pairs))
	for i, p := range pairs {
		if p[0] > limit || p[1] > limit {
			return nil, apperrors.New(apperrors.ErrShape, builder.Join(path, d.Name),
				"row %d (%d, %d) exceeds %d", i, p[0], p[1], limit)
		}
		out[i] = [2]T{T(p[0]), T(p[1])}
	}
	return out, nil
}

// attrFloat reads a numeric attribute of any stored width.
func attrFloat(attrs map[string]any, key string, def float64) float64 {
	switch v := attrs[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case int:
		return float64(v)
	}
	return def
}

func attrString(attrs map[string]any, key, def string) string {
	if s, ok := attrs[key].(string); ok {
		return s
	}
	return def
}

func attrUint64s(attrs map[string]any, key string) []uint64 {
	v, _ := attrs[key].([]uint64)
	return v
}
