package detect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/go-aidetect/internal/config"
	"github.com/example/go-aidetect/internal/testutil"
	"github.com/example/go-aidetect/internal/vocab"
)

func writeVocab(t *testing.T) string {
	t.Helper()

	return testutil.WriteVocab(t, "", map[string]int64{"<PAD>": 0, "<UNK>": 1, "hello": 2})
}

func TestLoadTFServingBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[[0.91]]}`))
	}))
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Paths.VocabPath = writeVocab(t)
	cfg.Classifier.Backend = "tf-serving"
	cfg.Classifier.ServingURL = srv.URL

	d, err := Load(cfg)
	require.NoError(t, err)
	t.Cleanup(d.Close)

	assert.Equal(t, Info{Backend: config.BackendTFServing, VocabSize: 3, MaxSeqLen: 450}, d.Info())

	pred, err := d.Analyze(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, LabelAI, pred.Label)
	assert.InDelta(t, 91.0, pred.Confidence, 1e-9)
}

func TestLoadErrors(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Classifier.Backend = "torch"

		_, err := Load(cfg)
		assert.Error(t, err)
	})

	t.Run("missing vocabulary", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Paths.VocabPath = filepath.Join(t.TempDir(), "missing.json")
		cfg.Classifier.Backend = config.BackendTFServing
		cfg.Classifier.ServingURL = "http://127.0.0.1:1"

		_, err := Load(cfg)

		var loadErr *vocab.LoadError
		assert.ErrorAs(t, err, &loadErr)
	})

	t.Run("tfserving without url", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Paths.VocabPath = writeVocab(t)
		cfg.Classifier.Backend = config.BackendTFServing
		cfg.Classifier.ServingURL = ""

		_, err := Load(cfg)
		assert.Error(t, err)
	})

	t.Run("onnx without runtime", func(t *testing.T) {
		t.Setenv("AIDETECT_ORT_LIB", "")
		t.Setenv("ORT_LIBRARY_PATH", "")

		cfg := config.DefaultConfig()
		cfg.Paths.VocabPath = writeVocab(t)
		cfg.Runtime.ORTLibraryPath = filepath.Join(t.TempDir(), "missing.so")

		_, err := Load(cfg)
		assert.Error(t, err)
	})
}
