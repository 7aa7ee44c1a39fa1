// Package detect runs the text → probability → label pipeline.
package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/go-aidetect/internal/sequence"
	"github.com/example/go-aidetect/internal/text"
)

// Classifier turns a padded index sequence into P(AI).
type Classifier interface {
	Classify(ctx context.Context, padded []int64) (float64, error)
	Close()
}

// Vocabulary is the subset of *vocab.Vocabulary the pipeline needs.
type Vocabulary interface {
	sequence.Lookuper
	Contains(token string) bool
	PadIndex() int64
	Size() int
}

// Info summarizes a loaded detector.
type Info struct {
	Backend   string `json:"backend"`
	VocabSize int    `json:"vocab_size"`
	MaxSeqLen int    `json:"max_seq_len"`
}

// Detector holds the read-only state shared by all requests.
type Detector struct {
	vocab      Vocabulary
	classifier Classifier
	maxLen     int
	backend    string
}

func New(v Vocabulary, c Classifier, maxLen int, backend string) (*Detector, error) {
	if v == nil {
		return nil, errors.New("vocabulary is required")
	}

	if c == nil {
		return nil, errors.New("classifier is required")
	}

	if maxLen < 1 {
		return nil, fmt.Errorf("max sequence length must be >= 1, got %d", maxLen)
	}

	return &Detector{vocab: v, classifier: c, maxLen: maxLen, backend: backend}, nil
}

// Preprocess validates and converts raw text into the padded sequence fed
// to the classifier, along with input stats.
func (d *Detector) Preprocess(raw string) ([]int64, Stats, error) {
	if err := text.Validate(raw); err != nil {
		return nil, Stats{}, err
	}

	tokens := text.Tokenize(text.Normalize(raw))
	encoded := sequence.Encode(tokens, d.vocab)

	stats := Stats{
		WordCount: len(strings.Fields(raw)),
		Tokens:    len(tokens),
		Truncated: len(tokens) > d.maxLen,
	}
	stats.ShortText = stats.WordCount < ShortTextWords

	for _, tok := range tokens {
		if !d.vocab.Contains(tok) {
			stats.UnknownTokens++
		}
	}

	return sequence.Pad(encoded, d.maxLen, d.vocab.PadIndex()), stats, nil
}

// Analyze classifies raw text. Empty or whitespace-only text returns
// text.ErrEmptyText without calling the classifier.
func (d *Detector) Analyze(ctx context.Context, raw string) (Prediction, error) {
	padded, stats, err := d.Preprocess(raw)
	if err != nil {
		return Prediction{}, err
	}

	p, err := d.classifier.Classify(ctx, padded)
	if err != nil {
		return Prediction{}, fmt.Errorf("classify: %w", err)
	}

	pred := Decide(p)
	pred.Stats = stats

	return pred, nil
}

func (d *Detector) Info() Info {
	return Info{Backend: d.backend, VocabSize: d.vocab.Size(), MaxSeqLen: d.maxLen}
}

// Close releases the classifier.
func (d *Detector) Close() {
	if d.classifier != nil {
		d.classifier.Close()
	}
}
