package classify

import (
	"math"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/mat"
)

// Vectorizer turns documents into L2-normalized TF-IDF rows over a
// vocabulary learned from the training corpus. Terms unseen at fit time are
// ignored at transform time.
type Vectorizer struct {
	vocab map[string]int
	idf   []float64
}

// FitVectorizer learns vocabulary and inverse document frequencies from the corpus
func FitVectorizer(corpus []string) *Vectorizer {
	v := &Vectorizer{vocab: make(map[string]int)}

	docFreq := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]struct{})
		for _, term := range tokenize(doc) {
			if _, ok := v.vocab[term]; !ok {
				v.vocab[term] = len(v.vocab)
			}
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				docFreq[term]++
			}
		}
	}

	// smoothed idf, every term behaves as if seen in one extra document
	n := float64(len(corpus))
	v.idf = make([]float64, len(v.vocab))
	for term, idx := range v.vocab {
		v.idf[idx] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}
	return v
}

// NumFeatures returns the vocabulary size
func (v *Vectorizer) NumFeatures() int {
	return len(v.vocab)
}

// Transform produces the TF-IDF matrix for the given documents, one
// L2-normalized row per document
func (v *Vectorizer) Transform(docs []string) *mat.Dense {
	res := mat.NewDense(len(docs), len(v.vocab), nil)
	for i, doc := range docs {
		row := res.RawRowView(i)
		for _, term := range tokenize(doc) {
			if idx, ok := v.vocab[term]; ok {
				row[idx]++
			}
		}
		var norm float64
		for j, tf := range row {
			row[j] = tf * v.idf[j]
			norm += row[j] * row[j]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range row {
				row[j] /= norm
			}
		}
	}
	return res
}

// tokenize lowercases and splits on non-alphanumeric runes, dropping
// single-character tokens
func tokenize(doc string) []string {
	fields := strings.FieldsFunc(strings.ToLower(doc), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) > 1 {
			terms = append(terms, f)
		}
	}
	return terms
}
