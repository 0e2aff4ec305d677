package sqlite

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/rly/ndx-pose/internal/builder"
)

// Attribute value types as recorded in attributes.vtype.
const (
	vtypeString   = "string"
	vtypeFloat64  = "float64"
	vtypeInt64    = "int64"
	vtypeUint64   = "uint64"
	vtypeBool     = "bool"
	vtypeUint64s  = "uint64[]"
	vtypeFloat64s = "float64[]"
	vtypeStrings  = "string[]"
)

// encodeData serializes dataset elements. Float data uses the gonum vector
// encoding so NaN and infinities survive; everything else is JSON.
func encodeData(d *builder.Dataset) ([]byte, error) {
	if v, ok := d.Data.([]float64); ok {
		if len(v) == 0 {
			return []byte{}, nil
		}
		return mat.NewVecDense(len(v), v).MarshalBinary()
	}
	if d.Data == nil {
		return nil, fmt.Errorf("dataset %s has no data", d.Name)
	}
	return json.Marshal(d.Data)
}

func decodeData(dtype builder.Dtype, blob []byte) (any, error) {
	switch dtype {
	case builder.Float64:
		if len(blob) == 0 {
			return []float64{}, nil
		}
		var v mat.VecDense
		if err := v.UnmarshalBinary(blob); err != nil {
			return nil, fmt.Errorf("failed to decode float data: %w", err)
		}
		return v.RawVector().Data, nil
	case builder.Uint8:
		return decodeJSON[[]uint8](blob)
	case builder.Uint16:
		return decodeJSON[[]uint16](blob)
	case builder.Uint32:
		return decodeJSON[[]uint32](blob)
	case builder.Uint64:
		return decodeJSON[[]uint64](blob)
	case builder.Bool:
		return decodeJSON[[]bool](blob)
	case builder.Text:
		return decodeJSON[[]string](blob)
	}
	return nil, fmt.Errorf("unknown dtype %q", dtype)
}

func decodeJSON[T any](blob []byte) (any, error) {
	var v T
	if err := json.Unmarshal(blob, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return v, nil
}

func encodeShape(shape []int) (*string, error) {
	if shape == nil {
		return nil, nil
	}
	b, err := json.Marshal(shape)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shape: %w", err)
	}
	s := string(b)
	return &s, nil
}

func decodeShape(s *string) ([]int, error) {
	if s == nil {
		return nil, nil
	}
	shape := []int{}
	if err := json.Unmarshal([]byte(*s), &shape); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shape: %w", err)
	}
	return shape, nil
}

// encodeAttr returns the vtype tag and text form of an attribute value.
// Floats use strconv so NaN and infinities are kept exactly.
func encodeAttr(v any) (vtype, value string, err error) {
	switch x := v.(type) {
	case string:
		return vtypeString, x, nil
	case float64:
		return vtypeFloat64, strconv.FormatFloat(x, 'g', -1, 64), nil
	case float32:
		return vtypeFloat64, strconv.FormatFloat(float64(x), 'g', -1, 64), nil
	case int:
		return vtypeInt64, strconv.FormatInt(int64(x), 10), nil
	case int64:
		return vtypeInt64, strconv.FormatInt(x, 10), nil
	case uint64:
		return vtypeUint64, strconv.FormatUint(x, 10), nil
	case bool:
		return vtypeBool, strconv.FormatBool(x), nil
	case []uint64:
		b, err := json.Marshal(x)
		return vtypeUint64s, string(b), err
	case []float64:
		b, err := json.Marshal(x)
		return vtypeFloat64s, string(b), err
	case []string:
		b, err := json.Marshal(x)
		return vtypeStrings, string(b), err
	}
	return "", "", fmt.Errorf("unsupported attribute type %T", v)
}

func decodeAttr(vtype, value string) (any, error) {
	switch vtype {
	case vtypeString:
		return value, nil
	case vtypeFloat64:
		return strconv.ParseFloat(value, 64)
	case vtypeInt64:
		return strconv.ParseInt(value, 10, 64)
	case vtypeUint64:
		return strconv.ParseUint(value, 10, 64)
	case vtypeBool:
		return strconv.ParseBool(value)
	case vtypeUint64s:
		return decodeJSON[[]uint64]([]byte(value))
	case vtypeFloat64s:
		return decodeJSON[[]float64]([]byte(value))
	case vtypeStrings:
		return decodeJSON[[]string]([]byte(value))
	}
	return nil, fmt.Errorf("unknown attribute type %q", vtype)
}
