// Package testutil provides shared skip helpers and fixtures for tests.
//
// Each Require helper calls t.Skip with a clear human-readable reason when the
// named prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    lib := testutil.RequireONNXRuntime(t)
//	    model := testutil.RequireClassifierModel(t)
//	    ...
//	}
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located and returns its path otherwise. It checks (in order): the
// AIDETECT_ORT_LIB env var, then ORT_LIBRARY_PATH, then common system
// library paths.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	for _, env := range []string{"AIDETECT_ORT_LIB", "ORT_LIBRARY_PATH"} {
		if p := os.Getenv(env); p != "" {
			// #nosec G703 -- Integration tests intentionally accept explicit env-provided local library paths.
			if _, err := os.Stat(p); err == nil {
				return p
			}

			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)
			return ""
		}
	}

	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	tb.Skip("ONNX Runtime shared library not found; set AIDETECT_ORT_LIB or ORT_LIBRARY_PATH")
	return ""
}

// RequireClassifierModel skips the test unless AIDETECT_TEST_MODEL points at
// an exported classifier .onnx file, and returns that path.
func RequireClassifierModel(tb testing.TB) string {
	tb.Helper()

	p := os.Getenv("AIDETECT_TEST_MODEL")
	if p == "" {
		tb.Skip("no classifier model available; set AIDETECT_TEST_MODEL")
		return ""
	}

	if _, err := os.Stat(p); err != nil {
		tb.Skipf("classifier model not found at AIDETECT_TEST_MODEL=%q", p)
		return ""
	}

	return p
}

// DefaultVocab is a small word-to-index table with both sentinels.
func DefaultVocab() map[string]int64 {
	return map[string]int64{"<PAD>": 0, "<UNK>": 1, "hello": 2, "world": 3}
}

// WriteVocab writes entries as word2idx.json under dir (a fresh temp dir when
// dir is empty) and returns the file path.
func WriteVocab(tb testing.TB, dir string, entries map[string]int64) string {
	tb.Helper()

	if dir == "" {
		dir = tb.TempDir()
	}

	if entries == nil {
		entries = DefaultVocab()
	}

	data, err := json.Marshal(entries)
	if err != nil {
		tb.Fatalf("marshal vocab: %v", err)
	}

	path := filepath.Join(dir, "word2idx.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write vocab: %v", err)
	}

	return path
}
