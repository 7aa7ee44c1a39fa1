package onnx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// NodeInfo is one graph input or output as declared in manifest.json.
// Shape entries are numbers for fixed dims and strings for symbolic ones.
type NodeInfo struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
	Shape []any  `json:"shape"`
}

// Session describes one ONNX graph listed in the manifest.
type Session struct {
	Name     string     `json:"name"`
	Filename string     `json:"filename"`
	Inputs   []NodeInfo `json:"inputs"`
	Outputs  []NodeInfo `json:"outputs"`

	// Path is Filename resolved against the manifest directory.
	Path string `json:"-"`
}

func (s Session) clone() Session {
	s.Inputs = slices.Clone(s.Inputs)
	s.Outputs = slices.Clone(s.Outputs)
	return s
}

// SessionManager holds the graphs declared by a manifest in file order. It
// is read-only after construction.
type SessionManager struct {
	graphs []Session
}

// NewSessionManager reads manifest.json and checks every listed graph: a
// unique name, an existing file and supported node dtypes. Relative
// filenames resolve against the manifest directory.
func NewSessionManager(manifestPath string) (*SessionManager, error) {
	if manifestPath == "" {
		return nil, errors.New("manifest path is required")
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read ONNX manifest: %w", err)
	}

	var manifest struct {
		Graphs []Session `json:"graphs"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode ONNX manifest: %w", err)
	}

	if len(manifest.Graphs) == 0 {
		return nil, errors.New("ONNX manifest has no graphs")
	}

	baseDir := filepath.Dir(manifestPath)
	seen := make(map[string]bool, len(manifest.Graphs))

	for i := range manifest.Graphs {
		g := &manifest.Graphs[i]

		if err := g.resolve(baseDir); err != nil {
			return nil, err
		}

		if seen[g.Name] {
			return nil, fmt.Errorf("duplicate session name %q in manifest", g.Name)
		}
		seen[g.Name] = true

		slog.Debug("loaded ONNX session",
			"name", g.Name,
			"path", g.Path,
			"inputs", nodeNames(g.Inputs),
			"outputs", nodeNames(g.Outputs),
		)
	}

	return &SessionManager{graphs: manifest.Graphs}, nil
}

func (s *Session) resolve(baseDir string) error {
	if s.Name == "" {
		return errors.New("manifest graph has empty name")
	}

	if s.Filename == "" {
		return fmt.Errorf("manifest graph %q has empty filename", s.Name)
	}

	s.Path = s.Filename
	if !filepath.IsAbs(s.Path) {
		s.Path = filepath.Join(baseDir, s.Path)
	}
	s.Path = filepath.Clean(s.Path)

	if _, err := os.Stat(s.Path); err != nil {
		return fmt.Errorf("session file for %q: %w", s.Name, err)
	}

	for _, nodes := range [][]NodeInfo{s.Inputs, s.Outputs} {
		for _, n := range nodes {
			if n.Name == "" {
				return fmt.Errorf("graph %q has a node with empty name", s.Name)
			}
			if _, err := CanonicalDType(n.DType); err != nil {
				return fmt.Errorf("graph %q node %q: %w", s.Name, n.Name, err)
			}
		}
	}

	return nil
}

// Session returns a copy of the named graph.
func (m *SessionManager) Session(name string) (Session, bool) {
	for _, s := range m.graphs {
		if s.Name == name {
			return s.clone(), true
		}
	}

	return Session{}, false
}

// Sessions returns copies of all graphs in manifest order.
func (m *SessionManager) Sessions() []Session {
	out := make([]Session, len(m.graphs))
	for i, s := range m.graphs {
		out[i] = s.clone()
	}

	return out
}

// Names lists graph names in manifest order.
func (m *SessionManager) Names() []string {
	names := make([]string, len(m.graphs))
	for i, s := range m.graphs {
		names[i] = s.Name
	}

	return names
}

func nodeNames(nodes []NodeInfo) string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}

	return strings.Join(names, ",")
}
