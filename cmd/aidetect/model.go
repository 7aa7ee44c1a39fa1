package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/example/go-aidetect/internal/model"
	"github.com/spf13/cobra"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Model acquisition, conversion and verification commands",
	}

	cmd.AddCommand(newModelDownloadCmd())
	cmd.AddCommand(newModelBundleCmd())
	cmd.AddCommand(newModelVerifyCmd())
	cmd.AddCommand(newModelExportCmd())
	return cmd
}

func newModelDownloadCmd() *cobra.Command {
	var (
		hfRepo   string
		revision string
		files    []string
		outDir   string
		hfToken  string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download classifier artifacts from Hugging Face",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if hfToken == "" {
				hfToken = os.Getenv("HF_TOKEN")
			}

			err := model.Download(cmd.Context(), model.DownloadOptions{
				Repo:     hfRepo,
				Revision: revision,
				Files:    files,
				OutDir:   outDir,
				HFToken:  hfToken,
				Stdout:   cmd.OutOrStdout(),
				Stderr:   cmd.ErrOrStderr(),
			})
			if err == nil {
				return nil
			}

			var denied *model.AccessDeniedError
			if hfToken == "" && errors.As(err, &denied) {
				return fmt.Errorf("model download failed: %w\nhint: set --hf-token or HF_TOKEN for gated repositories", err)
			}

			return fmt.Errorf("model download failed: %w", err)
		},
	}

	cmd.Flags().StringVar(&hfRepo, "hf-repo", "", "Hugging Face model repository (owner/name)")
	cmd.Flags().StringVar(&revision, "revision", model.DefaultRevision, "Repository revision")
	cmd.Flags().StringSliceVar(&files, "files", model.DefaultFiles, "Files to fetch")
	cmd.Flags().StringVar(&outDir, "out-dir", "models/onnx", "Directory where model files are stored")
	cmd.Flags().StringVar(&hfToken, "hf-token", "", "Hugging Face token (falls back to HF_TOKEN env var)")

	return cmd
}

func newModelBundleCmd() *cobra.Command {
	var (
		source string
		sha    string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Download and extract a prebuilt classifier bundle",
		Long: "Download a prebuilt bundle (zip/tar.gz), verify its checksum, extract it and\n" +
			"validate that manifest.json, its graph files and a vocabulary load.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := model.DownloadBundle(cmd.Context(), model.BundleOptions{
				Source: source,
				SHA256: sha,
				OutDir: outDir,
				Stdout: cmd.OutOrStdout(),
			})
			if err != nil {
				return fmt.Errorf("download bundle failed: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&source, "bundle-url", "", "Bundle URL or local path (http(s), file:// or plain path)")
	cmd.Flags().StringVar(&sha, "sha256", "", "Expected SHA256 for the archive (optional)")
	cmd.Flags().StringVar(&outDir, "out-dir", "models/onnx", "Output directory for the extracted bundle")

	return cmd
}

func newModelVerifyCmd() *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Smoke-run every graph in the ONNX manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if manifestPath == "" {
				manifestPath = cfg.Paths.ManifestPath
			}

			err = model.VerifyONNX(cmd.Context(), model.VerifyOptions{
				ManifestPath:  manifestPath,
				ORTLibrary:    cfg.Runtime.ORTLibraryPath,
				ORTAPIVersion: cfg.Runtime.ORTAPIVersion,
				Stdout:        cmd.OutOrStdout(),
				Stderr:        cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("model verify failed: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Path to ONNX manifest.json (default: configured manifest)")

	return cmd
}

func newModelExportCmd() *cobra.Command {
	var (
		kerasModel string
		vocabPath  string
		outDir     string
		opset      int
		pythonBin  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Convert the trained Keras classifier to ONNX",
		Long: "Convert the trained Keras classifier to ONNX and write classifier.onnx,\n" +
			"manifest.json and word2idx.json.\n\n" +
			"This is a tooling command and requires Python with tensorflow and tf2onnx.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			err = model.ExportONNX(model.ExportOptions{
				KerasModel: kerasModel,
				VocabPath:  vocabPath,
				OutDir:     outDir,
				MaxSeqLen:  cfg.Classifier.MaxSeqLen,
				Opset:      opset,
				PythonBin:  pythonBin,
				Stdout:     cmd.OutOrStdout(),
				Stderr:     cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf(
					"model export failed: %w\nhint: this command requires Python tooling (tensorflow, tf2onnx)",
					err,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kerasModel, "keras-model", "", "Trained Keras model (.h5 file or SavedModel directory)")
	cmd.Flags().StringVar(&vocabPath, "vocab-pickle", "", "Pickled word2idx from training (optional)")
	cmd.Flags().StringVar(&outDir, "out-dir", "models/onnx", "Directory for ONNX output files")
	cmd.Flags().IntVar(&opset, "opset", 13, "ONNX opset version")
	cmd.Flags().StringVar(&pythonBin, "python-bin", "python3", "Python interpreter for the export helper")

	return cmd
}
