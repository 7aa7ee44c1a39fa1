// Package doctor provides environment preflight checks for aidetect.
package doctor

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// CheckFunc returns a short detail string on success.
type CheckFunc func() (string, error)

// Config holds injectable dependencies for each doctor check. A nil check is
// reported as skipped.
type Config struct {
	// Runtime resolves the ONNX Runtime shared library. Nil for the
	// tfserving backend.
	Runtime CheckFunc
	// Manifest loads the graph manifest and finds the classifier graph.
	Manifest CheckFunc
	// Vocabulary loads the vocabulary and checks its sentinels.
	Vocabulary CheckFunc
	// Serving probes the TensorFlow Serving model status endpoint.
	Serving CheckFunc
	// PythonVersion returns the Python version used by the export helper.
	PythonVersion VersionFunc
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	check(&res, w, "onnx runtime", cfg.Runtime)
	check(&res, w, "model manifest", cfg.Manifest)
	check(&res, w, "vocabulary", cfg.Vocabulary)
	check(&res, w, "serving endpoint", cfg.Serving)

	// ---- Python (export helper only) --------------------------------------
	if cfg.PythonVersion == nil {
		fmt.Fprintf(w, "%s python version: skipped\n", PassMark)
	} else {
		pyVer, err := cfg.PythonVersion()
		if err != nil {
			res.fail(fmt.Sprintf("python version: %v", err))
			fmt.Fprintf(w, "%s python version: not found (%v)\n", FailMark, err)
		} else if pyErr := checkPythonVersion(pyVer); pyErr != nil {
			res.fail(fmt.Sprintf("python version: %v", pyErr))
			fmt.Fprintf(w, "%s python version %s: %v\n", FailMark, pyVer, pyErr)
		} else {
			fmt.Fprintf(w, "%s python version: %s\n", PassMark, pyVer)
		}
	}

	return res
}

func check(res *Result, w io.Writer, name string, fn CheckFunc) {
	if fn == nil {
		fmt.Fprintf(w, "%s %s: skipped\n", PassMark, name)
		return
	}

	detail, err := fn()
	if err != nil {
		res.fail(fmt.Sprintf("%s: %v", name, err))
		fmt.Fprintf(w, "%s %s: %v\n", FailMark, name, err)
		return
	}

	fmt.Fprintf(w, "%s %s: %s\n", PassMark, name, detail)
}

// checkPythonVersion returns an error if ver is outside [3.9, 3.13), the
// range TensorFlow and tf2onnx support.
func checkPythonVersion(ver string) error {
	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}
	if major != 3 {
		return fmt.Errorf("requires Python 3, got %d", major)
	}
	if minor < 9 {
		return fmt.Errorf("requires Python >=3.9, got 3.%d", minor)
	}
	if minor >= 13 {
		return fmt.Errorf("requires Python <3.13, got 3.%d", minor)
	}
	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(ver, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}
	return major, minor, nil
}
