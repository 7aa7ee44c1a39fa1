// Package sequence turns token lists into the fixed-length index sequences
// the classifier consumes.
package sequence

// DefaultMaxLen is the sequence length the classifier was trained with.
const DefaultMaxLen = 450

// Lookuper resolves a token to its vocabulary index, falling back to the
// unknown-token index for tokens the vocabulary does not contain.
type Lookuper interface {
	Lookup(token string) int64
}

// Encode maps every token to its vocabulary index. The result has the same
// length as tokens.
func Encode(tokens []string, vocab Lookuper) []int64 {
	out := make([]int64, len(tokens))
	for i, tok := range tokens {
		out[i] = vocab.Lookup(tok)
	}

	return out
}

// Pad returns a new slice of exactly maxLen entries. Longer input keeps its
// first maxLen entries; shorter input is followed by padIndex. The model was
// trained on prefix-truncated sequences, so the tail is what gets dropped.
func Pad(encoded []int64, maxLen int, padIndex int64) []int64 {
	if maxLen < 0 {
		maxLen = 0
	}

	out := make([]int64, maxLen)
	n := copy(out, encoded)
	for i := n; i < maxLen; i++ {
		out[i] = padIndex
	}

	return out
}
