package model

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/go-aidetect/internal/onnx"
	"github.com/example/go-aidetect/internal/vocab"
)

// BundleOptions describes a release archive (.zip or .tar.gz) holding
// manifest.json, the graph files it lists and a vocabulary.
type BundleOptions struct {
	Source     string // http(s) URL, file:// URL or local path
	SHA256     string
	OutDir     string
	HTTPClient *http.Client
	Stdout     io.Writer
}

// vocabNames are the vocabulary filenames a bundle may carry, in lookup order.
var vocabNames = []string{"word2idx.json", "word2idx.yaml", "word2idx.yml", "word2idx.txt"}

// DownloadBundle fetches, checksum-verifies and extracts a bundle, then checks
// that the extracted manifest and vocabulary load.
func DownloadBundle(ctx context.Context, opts BundleOptions) error {
	if opts.OutDir == "" {
		return errors.New("out dir is required")
	}

	source := strings.TrimSpace(opts.Source)
	if source == "" {
		return errors.New("bundle source is required")
	}

	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 0}
	}

	checksum := strings.ToLower(strings.TrimSpace(opts.SHA256))
	if checksum != "" && !isSHA256Hex(checksum) {
		return fmt.Errorf("invalid sha256 checksum %q", checksum)
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("create out dir: %w", err)
	}

	archive, actual, err := fetchBundle(ctx, opts.HTTPClient, source)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(archive) }()

	if checksum != "" && checksum != actual {
		return fmt.Errorf("bundle checksum mismatch: expected %s got %s", checksum, actual)
	}

	_, _ = fmt.Fprintf(opts.Stdout, "downloaded bundle (%s) sha256=%s\n", source, actual)

	if err := extractBundle(archive, source, opts.OutDir); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(opts.Stdout, "extracted bundle into %s\n", opts.OutDir)

	vocabPath, err := VerifyBundleDir(opts.OutDir)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(opts.Stdout, "verified manifest and vocabulary (%s)\n", filepath.Base(vocabPath))

	return nil
}

// VerifyBundleDir loads dir/manifest.json and the first vocabulary file
// found, returning the vocabulary path.
func VerifyBundleDir(dir string) (string, error) {
	if _, err := onnx.NewSessionManager(filepath.Join(dir, "manifest.json")); err != nil {
		return "", err
	}

	for _, name := range vocabNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}

		if _, err := vocab.Load(p); err != nil {
			return "", err
		}

		return p, nil
	}

	return "", fmt.Errorf("bundle in %s has no vocabulary (want one of %s)", dir, strings.Join(vocabNames, ", "))
}

func fetchBundle(ctx context.Context, client *http.Client, source string) (string, string, error) {
	var reader io.ReadCloser

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return "", "", fmt.Errorf("build bundle request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return "", "", fmt.Errorf("bundle download failed: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_ = resp.Body.Close()
			return "", "", fmt.Errorf("bundle download failed: %s", resp.Status)
		}

		reader = resp.Body
	} else {
		local := strings.TrimPrefix(source, "file://")

		fh, err := os.Open(local)
		if err != nil {
			return "", "", fmt.Errorf("open local bundle %q: %w", local, err)
		}

		reader = fh
	}
	defer func() { _ = reader.Close() }()

	tmpFile, err := os.CreateTemp("", "aidetect-bundle-*")
	if err != nil {
		return "", "", fmt.Errorf("create temp bundle file: %w", err)
	}

	tmpPath := tmpFile.Name()
	h := sha256.New()

	if _, err := io.Copy(io.MultiWriter(tmpFile, h), reader); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)

		return "", "", fmt.Errorf("write temp bundle file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", "", fmt.Errorf("close temp bundle file: %w", err)
	}

	return tmpPath, hex.EncodeToString(h.Sum(nil)), nil
}

// extractBundle picks the format from the source name, falling back to
// trying zip then tar.gz.
func extractBundle(archive, source, outDir string) error {
	name := strings.ToLower(source)
	switch {
	case strings.HasSuffix(name, ".zip"):
		return extractZip(archive, outDir)
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return extractTarGz(archive, outDir)
	}

	if err := extractZip(archive, outDir); err == nil {
		return nil
	}

	if err := extractTarGz(archive, outDir); err == nil {
		return nil
	}

	return fmt.Errorf("unsupported bundle format for %s (expected .zip or .tar.gz/.tgz)", source)
}

func extractZip(archive, outDir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("open zip bundle: %w", err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		target, err := safeExtractPath(outDir, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", target, err)
			}

			continue
		}

		src, err := f.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", f.Name, err)
		}

		err = writeEntry(target, src)
		_ = src.Close()

		if err != nil {
			return fmt.Errorf("extract zip entry %s: %w", f.Name, err)
		}
	}

	return nil
}

func extractTarGz(archive, outDir string) error {
	fh, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("open tar.gz bundle: %w", err)
	}
	defer func() { _ = fh.Close() }()

	gz, err := gzip.NewReader(fh)
	if err != nil {
		return fmt.Errorf("open gzip reader: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		target, err := safeExtractPath(outDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr); err != nil {
				return fmt.Errorf("extract tar entry %s: %w", hdr.Name, err)
			}
		}
	}
}

func writeEntry(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	dst, err := os.Create(target)
	if err != nil {
		return err
	}

	//nolint:gosec // Archive is checksum-verified before extraction when a checksum is given.
	if _, err := io.Copy(dst, r); err != nil {
		_ = dst.Close()
		return err
	}

	return dst.Close()
}

func safeExtractPath(baseDir, entryName string) (string, error) {
	cleaned := filepath.Clean(strings.TrimPrefix(entryName, "/"))
	target := filepath.Join(baseDir, cleaned)

	base := filepath.Clean(baseDir) + string(os.PathSeparator)
	if !strings.HasPrefix(filepath.Clean(target)+string(os.PathSeparator), base) {
		return "", fmt.Errorf("unsafe archive path traversal attempt: %q", entryName)
	}

	return target, nil
}
