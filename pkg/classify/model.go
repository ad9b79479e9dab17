package classify

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/go-pkgz/lgr"
	"github.com/microcosm-cc/bluemonday"
	"gonum.org/v1/gonum/mat"

	"github.com/papyrus-app/papyrus/pkg/domain"
)

// AmbivalentProb is the neutral score every article gets while no
// classifier exists. Never an error, never an omission.
const AmbivalentProb = 0.5

// Params configures the model component
type Params struct {
	MinCorpusSize int    // below this TrainEmbeddings reports insufficient data
	MaxComponents int    // dimensionality reduction upper bound
	Visualize     bool   // dump an embedding scatterplot when the classifier trains
	PlotFile      string
	Seed          int64 // 0 means unseeded, used by tests for determinism
}

// Model owns all process-wide classifier state: the fitted vectorizer, the
// dimensionality reduction and the SVM. Raw fitted objects never leave this
// component; everything happens under one mutex so refresh-and-retrain
// cycles can't observe a half-trained model.
type Model struct {
	mu       sync.Mutex
	params   Params
	rng      *rand.Rand
	sanitize *bluemonday.Policy

	vectorizer *Vectorizer
	pca        *PCA
	svm        *SVM
}

// NewModel creates an untrained model
func NewModel(params Params) *Model {
	if params.MinCorpusSize == 0 {
		params.MinCorpusSize = 25
	}
	if params.MaxComponents == 0 {
		params.MaxComponents = 100
	}
	seed := params.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	return &Model{
		params:   params,
		rng:      rand.New(rand.NewSource(seed)), //nolint:gosec // non-cryptographic
		sanitize: bluemonday.StrictPolicy(),
	}
}

// TrainEmbeddings fits the vectorizer and the reduction on the corpus.
// Reports false when the corpus is below the minimum size. Once fit it is
// a no-op returning true: the embedding space stays frozen until an
// explicit Reset, more text alone never triggers a retrain.
func (m *Model) TrainEmbeddings(corpus []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(corpus) < m.params.MinCorpusSize {
		return false
	}
	if m.vectorizer != nil && m.pca != nil {
		return true
	}

	cleaned := make([]string, len(corpus))
	for i, doc := range corpus {
		cleaned[i] = m.sanitize.Sanitize(doc)
	}

	vectorizer := FitVectorizer(cleaned)
	if vectorizer.NumFeatures() == 0 {
		// all documents sanitized/tokenized away, nothing to embed
		lgr.Printf("[WARN] embedding corpus of %d documents has no usable terms", len(corpus))
		return false
	}
	x := vectorizer.Transform(cleaned)

	pca, err := FitPCA(x, m.params.MaxComponents)
	if err != nil {
		lgr.Printf("[WARN] embedding reduction failed: %v", err)
		return false
	}

	m.vectorizer = vectorizer
	m.pca = pca
	lgr.Printf("[INFO] embedding trained on %d documents, %d terms, %d components",
		len(corpus), vectorizer.NumFeatures(), pca.NumComponents())
	return true
}

// Embed maps texts into the fitted embedding space. The second return is
// false before a successful TrainEmbeddings.
func (m *Model) Embed(texts []string) (*mat.Dense, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedLocked(texts)
}

func (m *Model) embedLocked(texts []string) (*mat.Dense, bool) {
	if m.vectorizer == nil || m.pca == nil {
		return nil, false
	}

	cleaned := make([]string, len(texts))
	for i, doc := range texts {
		cleaned[i] = m.sanitize.Sanitize(doc)
	}
	return m.pca.Transform(m.vectorizer.Transform(cleaned)), true
}

// TrainClassifier embeds the labeled texts and fits the SVM. Requires a
// fitted embedding; both classes must be present in labels.
func (m *Model) TrainClassifier(texts []string, labels []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	x, ok := m.embedLocked(texts)
	if !ok {
		return fmt.Errorf("embedding not trained")
	}

	if m.params.Visualize {
		if err := plotEmbeddings(x, labels, m.params.PlotFile); err != nil {
			lgr.Printf("[WARN] embedding plot failed: %v", err) // diagnostic only, never fatal
		}
	}

	svm, err := TrainSVM(x, labels, m.rng)
	if err != nil {
		return fmt.Errorf("train svm: %w", err)
	}

	m.svm = svm
	lgr.Printf("[INFO] classifier trained on %d examples", len(labels))
	return nil
}

// Predict scores one text with the probability of the "liked" class.
// Falls back to the ambivalent 0.5 while the model is untrained.
func (m *Model) Predict(text string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.svm == nil {
		return AmbivalentProb
	}

	x, ok := m.embedLocked([]string{text})
	if !ok {
		return AmbivalentProb
	}
	return m.svm.PredictProb(x.RawRowView(0))
}

// ClassifierTrained reports whether an SVM is fitted
func (m *Model) ClassifierTrained() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.svm != nil
}

// EmbeddingTrained reports whether the embedding transform is fitted
func (m *Model) EmbeddingTrained() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vectorizer != nil && m.pca != nil
}

// Reset drops all fitted state, the only way back to UNTRAINED
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectorizer = nil
	m.pca = nil
	m.svm = nil
}

// BuildTrainingSet turns liked articles plus a balanced unliked sample into
// classifier inputs. Articles lacking both description and title are
// excluded, they carry no signal. The unliked slice is expected to be
// pre-sampled to roughly the liked count.
func BuildTrainingSet(liked, unliked []domain.Article) (texts []string, labels []int) {
	for _, a := range liked {
		if a.Description == "" && a.Title == "" {
			continue
		}
		texts = append(texts, a.Text())
		labels = append(labels, 1)
	}
	for _, a := range unliked {
		if a.Description == "" && a.Title == "" {
			continue
		}
		texts = append(texts, a.Text())
		labels = append(labels, 0)
	}
	return texts, labels
}
