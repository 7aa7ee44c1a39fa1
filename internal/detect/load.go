package detect

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/example/go-aidetect/internal/config"
	"github.com/example/go-aidetect/internal/onnx"
	"github.com/example/go-aidetect/internal/tfserving"
	"github.com/example/go-aidetect/internal/vocab"
)

// Load builds a Detector from configuration: the vocabulary and the
// configured classifier backend. Callers own the result and must Close it.
func Load(cfg config.Config) (*Detector, error) {
	start := time.Now()

	backend, err := config.NormalizeBackend(cfg.Classifier.Backend)
	if err != nil {
		return nil, err
	}

	v, err := vocab.LoadCached(cfg.Paths.VocabPath)
	if err != nil {
		return nil, err
	}

	c, err := LoadClassifier(cfg, backend)
	if err != nil {
		return nil, err
	}

	d, err := New(v, c, cfg.Classifier.MaxSeqLen, backend)
	if err != nil {
		c.Close()
		return nil, err
	}

	slog.Info("detector loaded",
		"backend", backend,
		"vocab_path", cfg.Paths.VocabPath,
		"vocab_size", v.Size(),
		"max_seq_len", cfg.Classifier.MaxSeqLen,
		"duration", time.Since(start),
	)

	return d, nil
}

// LoadClassifier opens the classifier for a normalized backend name.
func LoadClassifier(cfg config.Config, backend string) (Classifier, error) {
	switch backend {
	case config.BackendONNX:
		info, err := onnx.Bootstrap(cfg.Runtime)
		if err != nil {
			return nil, fmt.Errorf("onnx runtime: %w", err)
		}

		sm, err := onnx.NewSessionManager(cfg.Paths.ManifestPath)
		if err != nil {
			return nil, err
		}

		slog.Debug("onnx runtime", "library", info.LibraryPath, "version", info.Version)

		c, err := onnx.NewClassifier(sm, cfg.Classifier.Graph, cfg.Classifier.MaxSeqLen, onnx.RunnerConfig{
			LibraryPath: info.LibraryPath,
			APIVersion:  cfg.Runtime.ORTAPIVersion,
		})
		if err != nil {
			return nil, err
		}

		return c, nil
	case config.BackendTFServing:
		c, err := tfserving.New(cfg.Classifier.ServingURL, cfg.Classifier.ServingModel, cfg.Classifier.MaxSeqLen)
		if err != nil {
			return nil, err
		}

		return c, nil
	default:
		return nil, fmt.Errorf("unsupported backend %q", backend)
	}
}
