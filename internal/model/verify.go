package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/example/go-aidetect/internal/onnx"
)

type VerifyOptions struct {
	ManifestPath  string
	ORTLibrary    string
	ORTAPIVersion uint32
	Stdout        io.Writer
	Stderr        io.Writer
}

// smokeCase is one manifest graph with zero-filled tensors for every input.
type smokeCase struct {
	session onnx.Session
	inputs  map[string]*onnx.Tensor
}

// runSmoke is swapped out in tests that have no ONNX Runtime.
var runSmoke = smokeAll

// VerifyONNX loads the manifest, builds zero inputs for every graph and runs
// each graph once. A PASS or FAIL line is written per graph.
func VerifyONNX(ctx context.Context, opts VerifyOptions) error {
	if opts.ManifestPath == "" {
		return errors.New("manifest path is required")
	}

	if opts.ORTAPIVersion == 0 {
		opts.ORTAPIVersion = onnx.DefaultAPIVersion
	}

	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	sm, err := onnx.NewSessionManager(opts.ManifestPath)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	sessions := sm.Sessions()
	cases := make([]smokeCase, 0, len(sessions))

	for _, s := range sessions {
		inputs, err := zeroInputs(s)
		if err != nil {
			return err
		}

		cases = append(cases, smokeCase{session: s, inputs: inputs})
	}

	return runSmoke(ctx, cases, opts)
}

func zeroInputs(s onnx.Session) (map[string]*onnx.Tensor, error) {
	inputs := make(map[string]*onnx.Tensor, len(s.Inputs))

	for _, in := range s.Inputs {
		t, err := onnx.NewZeroTensor(in.DType, in.Shape)
		if err != nil {
			return nil, fmt.Errorf("session %q input %q invalid: %w", s.Name, in.Name, err)
		}

		inputs[in.Name] = t
	}

	return inputs, nil
}

func smokeAll(ctx context.Context, cases []smokeCase, opts VerifyOptions) error {
	cfg := onnx.RunnerConfig{LibraryPath: opts.ORTLibrary, APIVersion: opts.ORTAPIVersion}

	var failed []string

	for _, c := range cases {
		start := time.Now()
		if err := c.run(ctx, cfg); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "FAIL %s: %v\n", c.session.Name, err)
			failed = append(failed, c.session.Name)

			continue
		}

		_, _ = fmt.Fprintf(opts.Stdout, "PASS %s (%s)\n", c.session.Name, time.Since(start).Round(time.Millisecond))
	}

	if len(failed) > 0 {
		return fmt.Errorf("verify failed for %d session(s): %s", len(failed), strings.Join(failed, ", "))
	}

	return nil
}

func (c smokeCase) run(ctx context.Context, cfg onnx.RunnerConfig) error {
	runner, err := onnx.NewRunner(c.session, cfg)
	if err != nil {
		return err
	}
	defer runner.Close()

	outputs, err := runner.Run(ctx, c.inputs)
	if err != nil {
		return fmt.Errorf("run inference: %w", err)
	}

	for _, want := range c.session.Outputs {
		if outputs[want.Name] == nil {
			return fmt.Errorf("missing output %q", want.Name)
		}
	}

	return nil
}
