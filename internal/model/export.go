package model

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// ExportOptions drives the Keras → ONNX conversion helper.
type ExportOptions struct {
	KerasModel string // .h5 or SavedModel directory
	VocabPath  string // pickled word2idx from training
	OutDir     string
	MaxSeqLen  int
	Opset      int
	PythonBin  string
	Stdout     io.Writer
	Stderr     io.Writer
}

const exportScript = "scripts/export_onnx.py"

// ExportONNX converts the trained Keras model with tf2onnx and writes
// classifier.onnx, manifest.json and word2idx.json into OutDir.
func ExportONNX(opts ExportOptions) error {
	if opts.KerasModel == "" {
		return errors.New("keras model path is required")
	}
	if opts.OutDir == "" {
		return errors.New("out dir is required")
	}
	if opts.MaxSeqLen <= 0 {
		opts.MaxSeqLen = 450
	}
	if opts.Opset <= 0 {
		opts.Opset = 13
	}
	if opts.PythonBin == "" {
		opts.PythonBin = "python3"
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	if err := validateExportTooling(opts.PythonBin); err != nil {
		return err
	}

	scriptPath, err := resolveScriptPath(filepath.FromSlash(exportScript))
	if err != nil {
		return fmt.Errorf("resolve export helper: %w", err)
	}

	args := []string{
		scriptPath,
		"--model", opts.KerasModel,
		"--out-dir", opts.OutDir,
		"--max-len", strconv.Itoa(opts.MaxSeqLen),
		"--opset", strconv.Itoa(opts.Opset),
	}
	if opts.VocabPath != "" {
		args = append(args, "--vocab", opts.VocabPath)
	}

	cmd := exec.Command(opts.PythonBin, args...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run ONNX export helper: %w", err)
	}

	return nil
}

func validateExportTooling(pythonBin string) error {
	if _, err := exec.LookPath(pythonBin); err != nil {
		return fmt.Errorf("python interpreter %q not found: %w", pythonBin, err)
	}

	check := exec.Command(pythonBin, "-c", "import tensorflow, tf2onnx")
	check.Stdout = io.Discard
	check.Stderr = os.Stderr
	if err := check.Run(); err != nil {
		return fmt.Errorf("python tooling dependencies missing for export (need tensorflow, tf2onnx): %w", err)
	}
	return nil
}

func resolveScriptPath(rel string) (string, error) {
	if rel == "" {
		return "", errors.New("script path is required")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	paths := []string{
		filepath.Join(cwd, rel),
		filepath.Join(cwd, "..", "..", rel),
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Clean(p), nil
		}
	}

	return "", fmt.Errorf("script %q not found from %s", rel, cwd)
}
