package testutil_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-aidetect/internal/testutil"
)

func TestRequireONNXRuntime_SkipsWhenAbsent(t *testing.T) {
	t.Setenv("AIDETECT_ORT_LIB", "/nonexistent/libonnxruntime.so")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	if got := testutil.RequireONNXRuntime(fakeT); got != "" {
		t.Errorf("want empty path, got %q", got)
	}
	if !skipped {
		t.Error("expected RequireONNXRuntime to skip when library is absent")
	}
}

func TestRequireONNXRuntime_ReturnsEnvPath(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")
	if err := os.WriteFile(lib, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AIDETECT_ORT_LIB", "")
	t.Setenv("ORT_LIBRARY_PATH", lib)

	fakeT := &skipTracker{TB: t, onSkip: func() { t.Error("unexpected skip") }}
	if got := testutil.RequireONNXRuntime(fakeT); got != lib {
		t.Errorf("got %q, want %q", got, lib)
	}
}

func TestRequireClassifierModel_SkipsWhenUnset(t *testing.T) {
	t.Setenv("AIDETECT_TEST_MODEL", "")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireClassifierModel(fakeT)
	if !skipped {
		t.Error("expected RequireClassifierModel to skip when unset")
	}
}

func TestRequireClassifierModel_SkipsWhenMissing(t *testing.T) {
	t.Setenv("AIDETECT_TEST_MODEL", filepath.Join(t.TempDir(), "missing.onnx"))

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireClassifierModel(fakeT)
	if !skipped {
		t.Error("expected RequireClassifierModel to skip when file is missing")
	}
}

func TestWriteVocab(t *testing.T) {
	path := testutil.WriteVocab(t, "", nil)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	var got map[string]int64
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got["<PAD>"] != 0 || got["<UNK>"] != 1 || got["world"] != 3 {
		t.Errorf("unexpected vocab: %v", got)
	}
}

// skipTracker is a minimal testing.TB implementation that intercepts Skip calls.
type skipTracker struct {
	testing.TB
	onSkip func()
}

func (s *skipTracker) Helper() {}

func (s *skipTracker) Skip(_ ...any) { s.onSkip() }

func (s *skipTracker) Skipf(_ string, _ ...any) {
	s.onSkip()
	// Do NOT call s.TB.Skip; that would skip the outer test.
}
