package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/example/go-aidetect/internal/config"
	"github.com/example/go-aidetect/internal/doctor"
	"github.com/example/go-aidetect/internal/model"
	"github.com/example/go-aidetect/internal/onnx"
	"github.com/example/go-aidetect/internal/tfserving"
	"github.com/example/go-aidetect/internal/vocab"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var (
		verify     bool
		exportTool bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime and model checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			backend, err := config.NormalizeBackend(cfg.Classifier.Backend)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "backend: %s\n", backend)

			dcfg := buildDoctorConfig(cmd.Context(), cfg, backend)
			if exportTool {
				dcfg.PythonVersion = probePythonVersion
			}

			result := doctor.Run(dcfg, out)

			//nolint:nestif // Keep doctor verify status reporting in one place with explicit skip/fail messaging.
			if !verify || backend != config.BackendONNX {
				_, _ = fmt.Fprintf(out, "%s model verify: skipped\n", doctor.PassMark)
			} else {
				verifyErr := model.VerifyONNX(cmd.Context(), model.VerifyOptions{
					ManifestPath:  cfg.Paths.ManifestPath,
					ORTLibrary:    cfg.Runtime.ORTLibraryPath,
					ORTAPIVersion: cfg.Runtime.ORTAPIVersion,
					Stdout:        out,
					Stderr:        cmd.ErrOrStderr(),
				})
				if verifyErr != nil {
					result.AddFailure(fmt.Sprintf("model verify: %v", verifyErr))
					_, _ = fmt.Fprintf(out, "%s model verify: %v\n", doctor.FailMark, verifyErr)
				} else {
					_, _ = fmt.Fprintf(out, "%s model verify: ok\n", doctor.PassMark)
				}
			}

			if result.Failed() {
				for _, f := range result.Failures() {
					// #nosec G705 -- Writes plain diagnostic text to stderr for CLI output, not HTML rendering.
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Also smoke-run every graph in the ONNX manifest")
	cmd.Flags().BoolVar(&exportTool, "export-tooling", false, "Also check the Python toolchain used by 'model export'")

	return cmd
}

// buildDoctorConfig wires the checks that apply to backend.
func buildDoctorConfig(ctx context.Context, cfg config.Config, backend string) doctor.Config {
	dcfg := doctor.Config{
		Vocabulary: func() (string, error) {
			v, err := vocab.Load(cfg.Paths.VocabPath)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d entries (%s)", v.Size(), cfg.Paths.VocabPath), nil
		},
	}

	switch backend {
	case config.BackendONNX:
		dcfg.Runtime = func() (string, error) {
			info, err := onnx.DetectRuntime(cfg.Runtime)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s (%s)", info.LibraryPath, info.Version), nil
		}
		dcfg.Manifest = func() (string, error) {
			sm, err := onnx.NewSessionManager(cfg.Paths.ManifestPath)
			if err != nil {
				return "", err
			}
			s, ok := sm.Session(cfg.Classifier.Graph)
			if !ok {
				return "", fmt.Errorf("graph %q not found in %s", cfg.Classifier.Graph, cfg.Paths.ManifestPath)
			}
			return fmt.Sprintf("graph %q (%s)", s.Name, s.Path), nil
		}
	case config.BackendTFServing:
		dcfg.Serving = func() (string, error) {
			c, err := tfserving.New(cfg.Classifier.ServingURL, cfg.Classifier.ServingModel, cfg.Classifier.MaxSeqLen)
			if err != nil {
				return "", err
			}

			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			if err := c.Ping(pingCtx); err != nil {
				return "", err
			}
			return fmt.Sprintf("model %q at %s", cfg.Classifier.ServingModel, cfg.Classifier.ServingURL), nil
		}
	}

	return dcfg
}

// probePythonVersion tries python3 then python and returns the version string.
func probePythonVersion() (string, error) {
	for _, bin := range []string{"python3", "python"} {
		out, err := exec.CommandContext(context.Background(), bin, "--version").Output()
		if err != nil {
			continue
		}
		// Output is e.g. "Python 3.11.4\n"
		raw := strings.TrimSpace(string(out))

		raw = strings.TrimPrefix(raw, "Python ")
		if raw != "" {
			return raw, nil
		}
	}

	return "", errors.New("python3/python not found on PATH")
}
