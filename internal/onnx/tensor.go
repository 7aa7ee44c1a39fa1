package onnx

import (
	"fmt"
	"math"
	"strings"
)

type TensorDType string

const (
	DTypeFloat32 TensorDType = "float32"
	DTypeInt64   TensorDType = "int64"
)

// Tensor is a dense, row-major host tensor exchanged with ONNX Runtime.
type Tensor struct {
	dtype TensorDType
	shape []int64
	data  any
}

func NewTensor[T ~int64 | ~float32](data []T, shape []int64) (*Tensor, error) {
	if err := validateShapeAgainstData(shape, len(data)); err != nil {
		return nil, err
	}

	t := &Tensor{shape: append([]int64(nil), shape...)}

	var zero T
	switch any(zero).(type) {
	case float32:
		converted := make([]float32, len(data))
		for i, v := range data {
			converted[i] = float32(v)
		}
		t.dtype, t.data = DTypeFloat32, converted
	case int64:
		converted := make([]int64, len(data))
		for i, v := range data {
			converted[i] = int64(v)
		}
		t.dtype, t.data = DTypeInt64, converted
	default:
		return nil, fmt.Errorf("unsupported tensor data type %T", zero)
	}

	return t, nil
}

// NewSequenceTensor packs an index sequence as a [1, len(seq)] tensor of the
// requested dtype. Keras graphs exported without an explicit input dtype take
// float32 indices; graphs with an integer Input take int64.
func NewSequenceTensor(seq []int64, dtype TensorDType) (*Tensor, error) {
	shape := []int64{1, int64(len(seq))}

	switch dtype {
	case DTypeInt64:
		return NewTensor(seq, shape)
	case DTypeFloat32:
		asFloat := make([]float32, len(seq))
		for i, v := range seq {
			asFloat[i] = float32(v)
		}

		return NewTensor(asFloat, shape)
	default:
		return nil, fmt.Errorf("unsupported tensor dtype %q", dtype)
	}
}

// NewZeroTensor builds a zero-filled tensor from manifest metadata. Symbolic
// dimensions resolve to 1.
func NewZeroTensor(dtype string, shape []any) (*Tensor, error) {
	canonical, err := CanonicalDType(dtype)
	if err != nil {
		return nil, err
	}
	resolvedShape, err := resolveShape(shape)
	if err != nil {
		return nil, err
	}
	count, err := elementCount(resolvedShape)
	if err != nil {
		return nil, err
	}

	switch canonical {
	case DTypeFloat32:
		return NewTensor(make([]float32, count), resolvedShape)
	case DTypeInt64:
		return NewTensor(make([]int64, count), resolvedShape)
	default:
		return nil, fmt.Errorf("unsupported tensor dtype %q", canonical)
	}
}

func (t *Tensor) DType() TensorDType {
	return t.dtype
}

func (t *Tensor) Shape() []int64 {
	return append([]int64(nil), t.shape...)
}

func (t *Tensor) Data() any {
	switch v := t.data.(type) {
	case []float32:
		return append([]float32(nil), v...)
	case []int64:
		return append([]int64(nil), v...)
	default:
		return nil
	}
}

func ExtractFloat32(t *Tensor) ([]float32, error) {
	if t == nil {
		return nil, fmt.Errorf("expected float32 tensor, got nil")
	}
	data, ok := t.data.([]float32)
	if !ok {
		return nil, fmt.Errorf("expected float32 tensor, got %s", t.dtype)
	}
	return append([]float32(nil), data...), nil
}

func ExtractInt64(t *Tensor) ([]int64, error) {
	if t == nil {
		return nil, fmt.Errorf("expected int64 tensor, got nil")
	}
	data, ok := t.data.([]int64)
	if !ok {
		return nil, fmt.Errorf("expected int64 tensor, got %s", t.dtype)
	}
	return append([]int64(nil), data...), nil
}

// CanonicalDType maps ONNX/manifest dtype spellings to a TensorDType.
func CanonicalDType(raw string) (TensorDType, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.TrimPrefix(normalized, "tensor(")
	normalized = strings.TrimSuffix(normalized, ")")
	switch normalized {
	case "float", "float32":
		return DTypeFloat32, nil
	case "int64", "long":
		return DTypeInt64, nil
	default:
		return "", fmt.Errorf("unsupported tensor dtype %q", raw)
	}
}

func resolveShape(shape []any) ([]int64, error) {
	out := make([]int64, len(shape))
	for i, dim := range shape {
		n, symbolic, err := shapeDim(dim)
		if err != nil {
			return nil, fmt.Errorf("shape[%d]: %w", i, err)
		}
		if symbolic {
			n = 1
		}
		out[i] = n
	}
	return out, nil
}

// shapeDim decodes one manifest dimension. JSON numbers arrive as float64;
// strings are symbolic (dynamic) dimensions.
func shapeDim(dim any) (n int64, symbolic bool, err error) {
	switch v := dim.(type) {
	case float64:
		if v < 1 || v != math.Trunc(v) {
			return 0, false, fmt.Errorf("%v is not a positive integer", v)
		}
		return int64(v), false, nil
	case int:
		if v < 1 {
			return 0, false, fmt.Errorf("%d is not positive", v)
		}
		return int64(v), false, nil
	case int64:
		if v < 1 {
			return 0, false, fmt.Errorf("%d is not positive", v)
		}
		return v, false, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, false, fmt.Errorf("empty symbolic dimension")
		}
		return 0, true, nil
	default:
		return 0, false, fmt.Errorf("unsupported dimension type %T", dim)
	}
}

func validateShapeAgainstData(shape []int64, dataLen int) error {
	count, err := elementCount(shape)
	if err != nil {
		return err
	}
	if count != dataLen {
		return fmt.Errorf("shape %v expects %d elements, got %d", shape, count, dataLen)
	}
	return nil
}

func elementCount(shape []int64) (int, error) {
	if len(shape) == 0 {
		return 1, nil
	}
	count := int64(1)
	for i, dim := range shape {
		if dim < 1 {
			return 0, fmt.Errorf("shape[%d]=%d is not positive", i, dim)
		}
		if count > math.MaxInt64/dim {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}
		count *= dim
	}
	if count > int64(math.MaxInt) {
		return 0, fmt.Errorf("shape %v exceeds platform int capacity", shape)
	}
	return int(count), nil
}
