package classify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorizer_FitAndTransform(t *testing.T) {
	corpus := []string{
		"the cat sat on the mat",
		"the dog chased the cat",
		"stocks rallied on earnings",
	}
	v := FitVectorizer(corpus)
	require.Positive(t, v.NumFeatures())

	x := v.Transform(corpus)
	rows, cols := x.Dims()
	assert.Equal(t, len(corpus), rows)
	assert.Equal(t, v.NumFeatures(), cols)

	// every non-empty row is L2-normalized
	for i := 0; i < rows; i++ {
		var norm float64
		for j := 0; j < cols; j++ {
			norm += x.At(i, j) * x.At(i, j)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9, "row %d", i)
	}
}

func TestVectorizer_UnseenTermsIgnored(t *testing.T) {
	v := FitVectorizer([]string{"cat dog", "dog bird"})

	x := v.Transform([]string{"quantum entanglement"})
	_, cols := x.Dims()
	for j := 0; j < cols; j++ {
		assert.Zero(t, x.At(0, j))
	}
}

func TestVectorizer_RareTermWeighsMore(t *testing.T) {
	v := FitVectorizer([]string{"common rare", "common other", "common thing"})
	assert.Greater(t, v.idf[v.vocab["rare"]], v.idf[v.vocab["common"]])
}

func TestTokenize(t *testing.T) {
	tbl := []struct {
		in  string
		out []string
	}{
		{"Hello, World!", []string{"hello", "world"}},
		{"a b cd", []string{"cd"}}, // single-char tokens dropped
		{"foo-bar_baz", []string{"foo", "bar", "baz"}},
		{"2024 release", []string{"2024", "release"}},
		{"", nil},
	}
	for _, tt := range tbl {
		if tt.out == nil {
			assert.Empty(t, tokenize(tt.in), tt.in)
			continue
		}
		assert.Equal(t, tt.out, tokenize(tt.in), tt.in)
	}
}
