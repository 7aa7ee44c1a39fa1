//go:build !windows && !(js && wasm)

package onnx

import (
	"context"
	"errors"
	"fmt"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

// Runner owns the ORT runtime, environment and session of one graph.
type Runner struct {
	name    string
	runtime *ort.Runtime
	env     *ort.Env
	session *ort.Session
}

// NewRunner dlopens the ORT library and opens meta.Path. Partially created
// handles are released on failure.
func NewRunner(meta Session, cfg RunnerConfig) (*Runner, error) {
	if cfg.APIVersion == 0 {
		cfg.APIVersion = DefaultAPIVersion
	}

	r := &Runner{name: meta.Name}

	var err error
	if r.runtime, err = ort.NewRuntime(cfg.LibraryPath, cfg.APIVersion); err != nil {
		return nil, fmt.Errorf("ort runtime for %q: %w", meta.Name, err)
	}

	if r.env, err = r.runtime.NewEnv("aidetect-"+meta.Name, ort.LoggingLevelWarning); err != nil {
		r.Close()
		return nil, fmt.Errorf("ort env for %q: %w", meta.Name, err)
	}

	if r.session, err = r.runtime.NewSession(r.env, meta.Path, nil); err != nil {
		r.Close()
		return nil, fmt.Errorf("ort session for %q (%s): %w", meta.Name, meta.Path, err)
	}

	return r, nil
}

// Run feeds the named host tensors to the graph and copies every output
// back to host memory.
func (r *Runner) Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	if r.session == nil {
		return nil, fmt.Errorf("run %q: runner is closed", r.name)
	}

	feeds := make(valueSet, len(inputs))
	defer feeds.close()

	for name, t := range inputs {
		v, err := TensorToORT(r.runtime, t)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		feeds[name] = v
	}

	fetched, err := r.session.Run(ctx, feeds)
	if err != nil {
		return nil, fmt.Errorf("run %q: %w", r.name, err)
	}

	outputs := valueSet(fetched)
	defer outputs.close()

	return outputs.toHost()
}

// Close releases the session, environment and runtime. Safe to call more
// than once.
func (r *Runner) Close() {
	if r.session != nil {
		r.session.Close()
		r.session = nil
	}

	if r.env != nil {
		r.env.Close()
		r.env = nil
	}

	if r.runtime != nil {
		_ = r.runtime.Close()
		r.runtime = nil
	}
}

// Name returns the graph name from the manifest.
func (r *Runner) Name() string {
	return r.name
}

// TensorToORT copies a host tensor into an ORT value owned by the caller.
func TensorToORT(runtime *ort.Runtime, t *Tensor) (*ort.Value, error) {
	if t == nil {
		return nil, errors.New("nil tensor")
	}

	switch data := t.Data().(type) {
	case []float32:
		return ort.NewTensorValue(runtime, data, t.Shape())
	case []int64:
		return ort.NewTensorValue(runtime, data, t.Shape())
	default:
		return nil, fmt.Errorf("unsupported tensor dtype %T", data)
	}
}

// valueSet is a batch of named ORT values released together.
type valueSet map[string]*ort.Value

func (vs valueSet) close() {
	for _, v := range vs {
		if v != nil {
			v.Close()
		}
	}
}

func (vs valueSet) toHost() (map[string]*Tensor, error) {
	out := make(map[string]*Tensor, len(vs))
	for name, v := range vs {
		t, err := ortToTensor(v)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}
		out[name] = t
	}

	return out, nil
}

func ortToTensor(v *ort.Value) (*Tensor, error) {
	elemType, err := v.GetTensorElementType()
	if err != nil {
		return nil, fmt.Errorf("get element type: %w", err)
	}

	switch elemType {
	case ort.ONNXTensorElementDataTypeFloat:
		data, shape, err := ort.GetTensorData[float32](v)
		if err != nil {
			return nil, err
		}
		return NewTensor(data, shape)
	case ort.ONNXTensorElementDataTypeInt64:
		data, shape, err := ort.GetTensorData[int64](v)
		if err != nil {
			return nil, err
		}
		return NewTensor(data, shape)
	default:
		return nil, fmt.Errorf("unsupported ORT element type %d", elemType)
	}
}
