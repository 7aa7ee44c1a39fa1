package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DefaultHubURL is the Hugging Face hub base URL.
const DefaultHubURL = "https://huggingface.co"

type DownloadOptions struct {
	Repo       string
	Revision   string
	Files      []string
	OutDir     string
	HFToken    string
	BaseURL    string
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// AccessDeniedError is returned when the hub answers 401 or 403.
type AccessDeniedError struct {
	Repo string
	Msg  string
}

func (e *AccessDeniedError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("access denied for %s", e.Repo)
}

type lockManifest struct {
	Repo      string                `json:"repo"`
	Generated string                `json:"generated"`
	Files     map[string]lockRecord `json:"files"`
}

type lockRecord struct {
	Revision string `json:"revision"`
	SHA256   string `json:"sha256"`
}

const lockFileName = "download-manifest.lock.json"

var shaHexPattern = regexp.MustCompile(`(?i)^[a-f0-9]{64}$`)

// Download fetches the artifact set into OutDir, verifying each file against
// its SHA-256 and recording the result in a lock manifest. Files whose local
// copy already matches are skipped.
func Download(ctx context.Context, opts DownloadOptions) error {
	if opts.OutDir == "" {
		return errors.New("out dir is required")
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultHubURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 0}
	}

	manifest, err := ArtifactManifest(opts.Repo, opts.Revision, opts.Files)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("create out dir: %w", err)
	}

	lockPath := filepath.Join(opts.OutDir, lockFileName)
	lock := readLockManifest(lockPath)
	lock.Repo = manifest.Repo
	lock.Generated = time.Now().UTC().Format(time.RFC3339)

	f := fetcher{client: opts.HTTPClient, baseURL: opts.BaseURL, repo: manifest.Repo, token: opts.HFToken}

	for _, file := range manifest.Files {
		expected := strings.ToLower(file.SHA256)
		if expected == "" {
			if lr, ok := lock.Files[file.Filename]; ok && lr.Revision == file.Revision && isSHA256Hex(lr.SHA256) {
				expected = strings.ToLower(lr.SHA256)
			} else {
				expected, err = f.resolveChecksum(ctx, file)
				if err != nil {
					return err
				}
			}
		}

		localPath := filepath.Join(opts.OutDir, filepath.FromSlash(file.Filename))
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return fmt.Errorf("create local subdir: %w", err)
		}

		if ok, err := existingMatches(localPath, expected); err != nil {
			return err
		} else if ok {
			fmt.Fprintf(opts.Stdout, "skip %s (checksum match)\n", file.Filename)
			lock.Files[file.Filename] = lockRecord{Revision: file.Revision, SHA256: expected}
			continue
		}

		fmt.Fprintf(opts.Stdout, "download %s@%s -> %s\n", file.Filename, file.Revision, localPath)
		actual, err := f.download(ctx, file, localPath, opts.Stdout)
		if err != nil {
			return err
		}
		if actual != expected {
			_ = os.Remove(localPath)
			return fmt.Errorf("checksum mismatch for %s: expected %s got %s", file.Filename, expected, actual)
		}
		fmt.Fprintf(opts.Stdout, "verified %s (sha256=%s)\n", file.Filename, actual)
		lock.Files[file.Filename] = lockRecord{Revision: file.Revision, SHA256: expected}
	}

	if err := writeLockManifest(lockPath, lock); err != nil {
		return err
	}
	fmt.Fprintf(opts.Stdout, "wrote lock manifest: %s\n", lockPath)
	return nil
}

type fetcher struct {
	client  *http.Client
	baseURL string
	repo    string
	token   string
}

func (f fetcher) resolveURL(file ModelFile) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", f.baseURL, f.repo, file.Revision, file.Filename)
}

func (f fetcher) newRequest(ctx context.Context, method string, file ModelFile) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, f.resolveURL(file), nil)
	if err != nil {
		return nil, err
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	return req, nil
}

func (f fetcher) accessDenied() error {
	return &AccessDeniedError{
		Repo: f.repo,
		Msg:  fmt.Sprintf("access denied for %s; provide HF_TOKEN or --hf-token", f.repo),
	}
}

func (f fetcher) resolveChecksum(ctx context.Context, file ModelFile) (string, error) {
	req, err := f.newRequest(ctx, http.MethodHead, file)
	if err != nil {
		return "", fmt.Errorf("build metadata request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("metadata request failed for %s: %w", file.Filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", f.accessDenied()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 399 {
		return "", fmt.Errorf("metadata request failed for %s: %s", file.Filename, resp.Status)
	}

	for _, key := range []string{"X-Linked-Etag", "Etag"} {
		if v := normalizeETag(resp.Header.Get(key)); isSHA256Hex(v) {
			return strings.ToLower(v), nil
		}
	}

	return "", fmt.Errorf("unable to resolve sha256 metadata for %s; file may not be stored with LFS", file.Filename)
}

func (f fetcher) download(ctx context.Context, file ModelFile, outPath string, stdout io.Writer) (string, error) {
	req, err := f.newRequest(ctx, http.MethodGet, file)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", f.accessDenied()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("download failed for %s: %s", file.Filename, resp.Status)
	}

	return writeVerified(resp.Body, outPath, resp.ContentLength, stdout)
}

// writeVerified streams r into outPath through a temp file, printing progress
// at most every 700ms, and returns the SHA-256 of what was written.
func writeVerified(r io.Reader, outPath string, total int64, stdout io.Writer) (string, error) {
	tmp := outPath + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	h := sha256.New()
	pw := &progressWriter{out: stdout, total: total, last: time.Now()}

	if _, err := io.Copy(io.MultiWriter(fh, h, pw), r); err != nil {
		_ = fh.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("download read failed: %w", err)
	}

	if err := fh.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("move temp file into place: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

type progressWriter struct {
	out     io.Writer
	total   int64
	written int64
	last    time.Time
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if time.Since(p.last) > 700*time.Millisecond {
		if p.total > 0 {
			pct := float64(p.written) * 100 / float64(p.total)
			fmt.Fprintf(p.out, "  progress: %.1f%% (%d/%d bytes)\n", pct, p.written, p.total)
		} else {
			fmt.Fprintf(p.out, "  progress: %d bytes\n", p.written)
		}
		p.last = time.Now()
	}
	return len(b), nil
}

func existingMatches(path, expected string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat existing file: %w", err)
	}
	if fi.IsDir() {
		return false, fmt.Errorf("expected file at %s, found directory", path)
	}
	actual, err := fileSHA256(path)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

func normalizeETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, "\"")
}

func isSHA256Hex(v string) bool {
	return shaHexPattern.MatchString(v)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func readLockManifest(path string) lockManifest {
	out := lockManifest{Files: map[string]lockRecord{}}

	b, err := os.ReadFile(path)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return lockManifest{Files: map[string]lockRecord{}}
	}
	if out.Files == nil {
		out.Files = map[string]lockRecord{}
	}
	return out
}

func writeLockManifest(path string, lock lockManifest) error {
	b, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lock manifest: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write lock manifest: %w", err)
	}
	return nil
}
