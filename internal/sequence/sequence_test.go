package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type mapVocab map[string]int64

func (m mapVocab) Lookup(token string) int64 {
	if idx, ok := m[token]; ok {
		return idx
	}

	return 1
}

func TestEncode(t *testing.T) {
	vocab := mapVocab{"the": 7, "cat": 8}

	tests := []struct {
		name   string
		tokens []string
		want   []int64
	}{
		{name: "known tokens", tokens: []string{"the", "cat"}, want: []int64{7, 8}},
		{name: "unknown tokens map to unk", tokens: []string{"the", "dog"}, want: []int64{7, 1}},
		{name: "empty", tokens: []string{}, want: []int64{}},
		{name: "nil", tokens: nil, want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.tokens, vocab))
		})
	}
}

func TestPad_ShorterIsRightPadded(t *testing.T) {
	got := Pad([]int64{5, 6, 7}, 6, 0)
	assert.Equal(t, []int64{5, 6, 7, 0, 0, 0}, got)
}

func TestPad_LongerKeepsPrefix(t *testing.T) {
	got := Pad([]int64{1, 2, 3, 4, 5, 6}, 4, 0)
	assert.Equal(t, []int64{1, 2, 3, 4}, got)
}

func TestPad_ExactLengthUnchanged(t *testing.T) {
	got := Pad([]int64{9, 8, 7}, 3, 0)
	assert.Equal(t, []int64{9, 8, 7}, got)
}

func TestPad_EmptyInputIsAllPadding(t *testing.T) {
	got := Pad(nil, 5, 3)
	assert.Equal(t, []int64{3, 3, 3, 3, 3}, got)
}

func TestPad_NonPositiveMaxLen(t *testing.T) {
	assert.Empty(t, Pad([]int64{1, 2}, 0, 0))
	assert.Empty(t, Pad([]int64{1, 2}, -3, 0))
}

func TestPad_DoesNotAliasInput(t *testing.T) {
	in := []int64{1, 2, 3, 4}
	out := Pad(in, 2, 0)
	out[0] = 42

	assert.Equal(t, int64(1), in[0])
}

func TestPad_LengthAlwaysMaxLen(t *testing.T) {
	for inLen := 0; inLen <= 2*DefaultMaxLen; inLen += 37 {
		in := make([]int64, inLen)
		for i := range in {
			in[i] = int64(i + 10)
		}

		out := Pad(in, DefaultMaxLen, 0)
		if !assert.Len(t, out, DefaultMaxLen, "input length %d", inLen) {
			continue
		}

		if inLen >= DefaultMaxLen {
			assert.Equal(t, in[:DefaultMaxLen], out, "input length %d", inLen)
			continue
		}

		assert.Equal(t, in, out[:inLen], "input length %d", inLen)
		for i := inLen; i < DefaultMaxLen; i++ {
			assert.Equal(t, int64(0), out[i], "input length %d position %d", inLen, i)
		}
	}
}
