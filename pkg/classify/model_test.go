package classify

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papyrus-app/papyrus/pkg/domain"
)

// topicCorpus builds n docs per topic, two clearly distinct vocabularies
func topicCorpus(n int) (docs []string, labels []int) {
	for i := 0; i < n; i++ {
		docs = append(docs, fmt.Sprintf("cats kittens purring whiskers adorable feline photo number %d", i))
		labels = append(labels, 1)
	}
	for i := 0; i < n; i++ {
		docs = append(docs, fmt.Sprintf("stocks markets earnings quarterly revenue finance report number %d", i))
		labels = append(labels, 0)
	}
	return docs, labels
}

func TestModel_TrainEmbeddings_BelowMinimum(t *testing.T) {
	m := NewModel(Params{MinCorpusSize: 5, Seed: 1})
	assert.False(t, m.TrainEmbeddings([]string{"one doc", "two doc"}))
	assert.False(t, m.EmbeddingTrained())
}

func TestModel_TrainEmbeddings_FrozenOnceFit(t *testing.T) {
	m := NewModel(Params{MinCorpusSize: 4, MaxComponents: 3, Seed: 1})
	docs, _ := topicCorpus(5)

	require.True(t, m.TrainEmbeddings(docs))
	require.True(t, m.EmbeddingTrained())

	// a new corpus with fresh vocabulary changes nothing
	more := make([]string, len(docs))
	copy(more, docs)
	more = append(more, "weather forecast sunny rain", "football match result")
	require.True(t, m.TrainEmbeddings(more))

	// under the frozen vocabulary the two all-new docs are indistinguishable,
	// both reduce to empty term vectors
	x, ok := m.Embed([]string{"weather forecast sunny rain", "football match result"})
	require.True(t, ok)
	_, cols := x.Dims()
	for j := 0; j < cols; j++ {
		assert.InDelta(t, x.At(0, j), x.At(1, j), 1e-12)
	}
}

func TestModel_TrainEmbeddings_NoUsableTerms(t *testing.T) {
	// a big enough corpus can still carry zero signal: markup stripped by the
	// sanitizer, punctuation and single-char tokens all discarded
	m := NewModel(Params{MinCorpusSize: 25, Seed: 1})
	docs := make([]string, 25)
	for i := range docs {
		docs[i] = "<img src='x'/> ! ? a b c"
	}

	assert.False(t, m.TrainEmbeddings(docs))
	assert.False(t, m.EmbeddingTrained())
	assert.InDelta(t, AmbivalentProb, m.Predict("anything"), 1e-9)
}

func TestModel_Predict_UntrainedIsAmbivalent(t *testing.T) {
	m := NewModel(Params{Seed: 1})
	assert.InDelta(t, AmbivalentProb, m.Predict("anything at all"), 1e-9)
	assert.False(t, m.ClassifierTrained())
}

func TestModel_TrainClassifier_RequiresEmbedding(t *testing.T) {
	m := NewModel(Params{Seed: 1})
	err := m.TrainClassifier([]string{"a doc", "b doc"}, []int{1, 0})
	require.Error(t, err)
}

func TestModel_FullCycle(t *testing.T) {
	m := NewModel(Params{MinCorpusSize: 4, Seed: 42})
	docs, labels := topicCorpus(8)

	require.True(t, m.TrainEmbeddings(docs))
	require.NoError(t, m.TrainClassifier(docs, labels))
	require.True(t, m.ClassifierTrained())

	liked := m.Predict("adorable kittens purring photo")
	unliked := m.Predict("quarterly earnings revenue report")
	assert.Greater(t, liked, unliked)
	assert.Greater(t, liked, 0.5)
	assert.Less(t, unliked, 0.5)
}

func TestModel_TrainClassifier_SingleClass(t *testing.T) {
	m := NewModel(Params{MinCorpusSize: 4, Seed: 1})
	docs, _ := topicCorpus(5)
	require.True(t, m.TrainEmbeddings(docs))

	err := m.TrainClassifier(docs[:4], []int{1, 1, 1, 1})
	require.Error(t, err)
	assert.False(t, m.ClassifierTrained())
}

func TestModel_SanitizesMarkup(t *testing.T) {
	m := NewModel(Params{MinCorpusSize: 2, Seed: 1})
	docs := []string{
		"<p>cats <b>kittens</b> purring</p>",
		"<div>stocks markets earnings</div>",
		"plain words about nothing",
	}
	require.True(t, m.TrainEmbeddings(docs))

	// markup tags never make it into the vocabulary
	m.mu.Lock()
	_, hasDiv := m.vectorizer.vocab["div"]
	_, hasCats := m.vectorizer.vocab["cats"]
	m.mu.Unlock()
	assert.False(t, hasDiv)
	assert.True(t, hasCats)
}

func TestModel_Reset(t *testing.T) {
	m := NewModel(Params{MinCorpusSize: 4, Seed: 42})
	docs, labels := topicCorpus(8)
	require.True(t, m.TrainEmbeddings(docs))
	require.NoError(t, m.TrainClassifier(docs, labels))

	m.Reset()
	assert.False(t, m.EmbeddingTrained())
	assert.False(t, m.ClassifierTrained())
	assert.InDelta(t, AmbivalentProb, m.Predict("adorable kittens"), 1e-9)

	// trainable again from scratch
	require.True(t, m.TrainEmbeddings(docs))
}

func TestModel_VisualizeWritesPlot(t *testing.T) {
	plotFile := filepath.Join(t.TempDir(), "embeddings.png")
	m := NewModel(Params{MinCorpusSize: 4, Seed: 42, Visualize: true, PlotFile: plotFile})
	docs, labels := topicCorpus(8)

	require.True(t, m.TrainEmbeddings(docs))
	require.NoError(t, m.TrainClassifier(docs, labels))
	assert.FileExists(t, plotFile)
}

func TestBuildTrainingSet(t *testing.T) {
	liked := []domain.Article{
		{Title: "cats", Description: "kittens"},
		{Title: "", Description: ""}, // no signal, excluded
		{Title: "only title", Description: ""},
	}
	unliked := []domain.Article{
		{Title: "stocks", Description: "earnings"},
		{Title: "", Description: "only description"},
	}

	texts, labels := BuildTrainingSet(liked, unliked)
	require.Len(t, texts, 4)
	assert.Equal(t, []int{1, 1, 0, 0}, labels)
	assert.Equal(t, "kittens cats", texts[0])
}
