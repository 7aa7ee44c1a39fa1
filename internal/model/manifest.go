package model

import (
	"errors"
	"strings"
)

// DefaultRevision is used when no revision is given.
const DefaultRevision = "main"

// DefaultFiles is the artifact set the server needs: the exported graph, its
// manifest and the vocabulary.
var DefaultFiles = []string{"classifier.onnx", "manifest.json", "word2idx.json"}

type Manifest struct {
	Repo  string      `json:"repo"`
	Files []ModelFile `json:"files"`
}

type ModelFile struct {
	Filename string `json:"filename"`
	Revision string `json:"revision"`
	SHA256   string `json:"sha256"`
}

// ArtifactManifest lists files to fetch from repo at revision. Checksums are
// left empty and resolved from hub metadata or a previous lock file.
func ArtifactManifest(repo, revision string, files []string) (Manifest, error) {
	repo = strings.Trim(strings.TrimSpace(repo), "/")
	if repo == "" {
		return Manifest{}, errors.New("repo is required")
	}

	if strings.Count(repo, "/") != 1 {
		return Manifest{}, errors.New("repo must be in owner/name form")
	}

	if revision == "" {
		revision = DefaultRevision
	}

	if len(files) == 0 {
		files = DefaultFiles
	}

	m := Manifest{Repo: repo, Files: make([]ModelFile, 0, len(files))}
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		m.Files = append(m.Files, ModelFile{Filename: f, Revision: revision})
	}

	if len(m.Files) == 0 {
		return Manifest{}, errors.New("no files to download")
	}

	return m, nil
}
