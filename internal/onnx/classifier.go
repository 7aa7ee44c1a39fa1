package onnx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// RunnerConfig holds ORT library settings for creating runners.
type RunnerConfig struct {
	LibraryPath string
	APIVersion  uint32
}

// GraphRunner is the minimal runner contract the classifier needs. *Runner
// satisfies it; tests substitute fakes.
type GraphRunner interface {
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	Name() string
	Close()
}

// Classifier runs a single-input, single-output sequence classification
// graph: [1, maxLen] token indices in, one sigmoid probability out.
type Classifier struct {
	runner     GraphRunner
	inputName  string
	inputDType TensorDType
	outputName string
	maxLen     int
}

// NewClassifier opens an ORT session for the named manifest graph.
func NewClassifier(sm *SessionManager, graph string, maxLen int, cfg RunnerConfig) (*Classifier, error) {
	session, ok := sm.Session(graph)
	if !ok {
		return nil, fmt.Errorf("graph %q not found in manifest (have %s)", graph, strings.Join(sm.Names(), ", "))
	}

	if err := checkSession(session, maxLen); err != nil {
		return nil, err
	}

	runner, err := NewRunner(session, cfg)
	if err != nil {
		return nil, err
	}

	c, err := NewClassifierWithRunner(runner, session, maxLen)
	if err != nil {
		runner.Close()
		return nil, err
	}

	return c, nil
}

// NewClassifierWithRunner builds a Classifier around an existing runner using
// the session metadata for input/output names and dtype.
func NewClassifierWithRunner(runner GraphRunner, session Session, maxLen int) (*Classifier, error) {
	if err := checkSession(session, maxLen); err != nil {
		return nil, err
	}

	dtype, err := CanonicalDType(session.Inputs[0].DType)
	if err != nil {
		return nil, fmt.Errorf("graph %q input %q: %w", session.Name, session.Inputs[0].Name, err)
	}

	return &Classifier{
		runner:     runner,
		inputName:  session.Inputs[0].Name,
		inputDType: dtype,
		outputName: session.Outputs[0].Name,
		maxLen:     maxLen,
	}, nil
}

func checkSession(session Session, maxLen int) error {
	if maxLen < 1 {
		return fmt.Errorf("max sequence length must be >= 1, got %d", maxLen)
	}

	if len(session.Inputs) != 1 {
		return fmt.Errorf("graph %q: expected 1 input, manifest lists %d", session.Name, len(session.Inputs))
	}

	if len(session.Outputs) == 0 {
		return fmt.Errorf("graph %q: manifest lists no outputs", session.Name)
	}

	in := session.Inputs[0]
	if len(in.Shape) != 2 {
		return fmt.Errorf("graph %q input %q: expected rank 2 [batch, seq], got %v", session.Name, in.Name, in.Shape)
	}

	n, symbolic, err := shapeDim(in.Shape[1])
	if err != nil {
		return fmt.Errorf("graph %q input %q: %w", session.Name, in.Name, err)
	}

	if !symbolic && n != int64(maxLen) {
		return fmt.Errorf("graph %q input %q expects sequence length %d, configured %d", session.Name, in.Name, n, maxLen)
	}

	return nil
}

// Classify runs one forward pass and returns the probability that the text
// is AI-generated.
func (c *Classifier) Classify(ctx context.Context, padded []int64) (float64, error) {
	if len(padded) != c.maxLen {
		return 0, fmt.Errorf("classify: sequence length %d, want %d", len(padded), c.maxLen)
	}

	input, err := NewSequenceTensor(padded, c.inputDType)
	if err != nil {
		return 0, fmt.Errorf("classify: %w", err)
	}

	outputs, err := c.runner.Run(ctx, map[string]*Tensor{c.inputName: input})
	if err != nil {
		return 0, fmt.Errorf("classify: %w", err)
	}

	out, ok := outputs[c.outputName]
	if !ok {
		return 0, fmt.Errorf("classify: graph %q returned no %q output", c.runner.Name(), c.outputName)
	}

	return Probability(out)
}

// MaxLen returns the fixed input length.
func (c *Classifier) MaxLen() int { return c.maxLen }

// Close releases the underlying session.
func (c *Classifier) Close() {
	if c.runner != nil {
		c.runner.Close()
	}
}

// ErrProbabilityRange is returned when a model output is not in [0, 1].
var ErrProbabilityRange = errors.New("probability out of range")

// Probability reads the first element of a float32 output tensor as a
// probability.
func Probability(t *Tensor) (float64, error) {
	data, err := ExtractFloat32(t)
	if err != nil {
		return 0, fmt.Errorf("classify: %w", err)
	}

	if len(data) == 0 {
		return 0, errors.New("classify: empty output tensor")
	}

	p := float64(data[0])
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("classify: %w: %v", ErrProbabilityRange, p)
	}

	return p, nil
}
