package config

import (
	"fmt"
	"strings"
)

const (
	BackendONNX      = "onnx"
	BackendTFServing = "tfserving"
)

func NormalizeBackend(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	if backend == "" {
		backend = BackendONNX
	}
	switch backend {
	case BackendONNX, BackendTFServing:
		return backend, nil
	case "ort", "onnxruntime":
		return BackendONNX, nil
	case "tf-serving", "tensorflow-serving":
		return BackendTFServing, nil
	default:
		return "", fmt.Errorf(
			"invalid backend %q (expected %s|%s)",
			raw,
			BackendONNX,
			BackendTFServing,
		)
	}
}
