// Package vocab loads the frozen word-level vocabulary that the classifier
// was trained with. A Vocabulary is immutable once loaded and safe for
// concurrent reads.
package vocab

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Reserved tokens every vocabulary must carry.
const (
	UnknownToken = "<UNK>"
	PadToken     = "<PAD>"
)

// ErrMissingSentinel is wrapped by LoadError when <UNK> or <PAD> is absent.
var ErrMissingSentinel = errors.New("missing sentinel token")

// LoadError reports a vocabulary artifact that is missing, corrupt, or
// malformed. The pipeline cannot run without a valid vocabulary.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load vocabulary %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Vocabulary maps tokens to the integer indices the model was trained on.
type Vocabulary struct {
	index   map[string]int64
	unknown int64
	pad     int64
}

// New builds a Vocabulary from a token → index mapping. The mapping is copied.
func New(index map[string]int64) (*Vocabulary, error) {
	unk, ok := index[UnknownToken]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrMissingSentinel, UnknownToken)
	}

	pad, ok := index[PadToken]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrMissingSentinel, PadToken)
	}

	copied := make(map[string]int64, len(index))
	for tok, idx := range index {
		if idx < 0 {
			return nil, fmt.Errorf("token %q has negative index %d", tok, idx)
		}
		copied[tok] = idx
	}

	return &Vocabulary{index: copied, unknown: unk, pad: pad}, nil
}

// Lookup returns the index of token, or the <UNK> index when it is absent.
func (v *Vocabulary) Lookup(token string) int64 {
	if idx, ok := v.index[token]; ok {
		return idx
	}

	return v.unknown
}

// Contains reports whether token has its own entry.
func (v *Vocabulary) Contains(token string) bool {
	_, ok := v.index[token]
	return ok
}

// UnknownIndex returns the index of <UNK>.
func (v *Vocabulary) UnknownIndex() int64 { return v.unknown }

// PadIndex returns the index of <PAD>.
func (v *Vocabulary) PadIndex() int64 { return v.pad }

// Size returns the number of entries, sentinels included.
func (v *Vocabulary) Size() int { return len(v.index) }

// Load reads a vocabulary artifact. The format is chosen by extension:
// .json (object of token → index), .yaml/.yml (mapping of token → index) or
// .txt (one token per line, 0-based line number is the index).
func Load(path string) (*Vocabulary, error) {
	if path == "" {
		return nil, &LoadError{Path: path, Err: errors.New("path is required")}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var index map[string]int64
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		index, err = decodeJSON(data)
	case ".yaml", ".yml":
		index, err = decodeYAML(data)
	case ".txt":
		index, err = decodeLines(data)
	default:
		err = fmt.Errorf("unsupported vocabulary format %q (want .json|.yaml|.yml|.txt)", ext)
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	v, err := New(index)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	return v, nil
}

func decodeJSON(data []byte) (map[string]int64, error) {
	var index map[string]int64
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if index == nil {
		return nil, errors.New("decode json: vocabulary is null")
	}

	return index, nil
}

func decodeYAML(data []byte) (map[string]int64, error) {
	var index map[string]int64
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if index == nil {
		return nil, errors.New("decode yaml: vocabulary is empty")
	}

	return index, nil
}

func decodeLines(data []byte) (map[string]int64, error) {
	index := make(map[string]int64, 1024)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var line int64
	for scanner.Scan() {
		tok := strings.TrimRight(scanner.Text(), "\r")
		if _, dup := index[tok]; dup {
			return nil, fmt.Errorf("line %d: duplicate token %q", line+1, tok)
		}
		index[tok] = line
		line++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	if line == 0 {
		return nil, errors.New("vocabulary file is empty")
	}

	return index, nil
}

var (
	cacheMu sync.Mutex
	cache   = map[string]*Vocabulary{}
)

// LoadCached loads the vocabulary at path once per process and returns the
// same instance on later calls with an equivalent path. Failed loads are not
// cached.
func LoadCached(path string) (*Vocabulary, error) {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if v, ok := cache[key]; ok {
		return v, nil
	}

	v, err := Load(path)
	if err != nil {
		return nil, err
	}
	cache[key] = v

	return v, nil
}
