package classify

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// SVM is an RBF-kernel support vector classifier trained with sequential
// minimal optimization, with a Platt-scaled probability output for the
// "liked" class.
type SVM struct {
	x      *mat.Dense // training inputs, rows referenced by alpha
	y      []float64  // labels in {-1, +1}
	alpha  []float64
	b      float64
	gamma  float64
	plattA float64
	plattB float64
}

const (
	svmC         = 1.0
	svmTolerance = 1e-3
	svmMaxPasses = 5
)

// TrainSVM fits the classifier on embeddings x with binary labels
// (1 liked, 0 unliked). Both classes must be present.
func TrainSVM(x *mat.Dense, labels []int, rng *rand.Rand) (*SVM, error) {
	rows, cols := x.Dims()
	if rows != len(labels) {
		return nil, fmt.Errorf("got %d rows for %d labels", rows, len(labels))
	}

	var pos, neg int
	y := make([]float64, rows)
	for i, l := range labels {
		if l == 1 {
			y[i] = 1
			pos++
		} else {
			y[i] = -1
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return nil, fmt.Errorf("training set needs both classes, got %d liked and %d unliked", pos, neg)
	}

	s := &SVM{
		x:     mat.DenseCopyOf(x),
		y:     y,
		alpha: make([]float64, rows),
		gamma: scaleGamma(x, cols),
	}

	// precomputed kernel matrix, the training sets here are small
	k := make([][]float64, rows)
	for i := range k {
		k[i] = make([]float64, rows)
		for j := 0; j <= i; j++ {
			v := s.rbf(s.x.RawRowView(i), s.x.RawRowView(j))
			k[i][j] = v
			k[j][i] = v
		}
	}

	s.smo(k, rng)
	s.fitPlatt(k, pos, neg)
	return s, nil
}

// PredictProb returns the probability of the "liked" class for one embedding
func (s *SVM) PredictProb(x []float64) float64 {
	f := s.decision(x)
	return 1 / (1 + math.Exp(s.plattA*f+s.plattB))
}

// decision computes the raw margin for one embedding
func (s *SVM) decision(x []float64) float64 {
	f := s.b
	for i, a := range s.alpha {
		if a > 0 {
			f += a * s.y[i] * s.rbf(s.x.RawRowView(i), x)
		}
	}
	return f
}

func (s *SVM) rbf(a, b []float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return math.Exp(-s.gamma * d)
}

// scaleGamma reproduces the 1/(n_features * var) heuristic
func scaleGamma(x *mat.Dense, cols int) float64 {
	rows, _ := x.Dims()
	n := float64(rows * cols)

	var sum, sumSq float64
	for i := 0; i < rows; i++ {
		for _, v := range x.RawRowView(i) {
			sum += v
			sumSq += v * v
		}
	}
	variance := sumSq/n - (sum/n)*(sum/n)
	if variance <= 0 {
		return 1
	}
	return 1 / (float64(cols) * variance)
}

// smo runs simplified sequential minimal optimization over the precomputed
// kernel matrix
func (s *SVM) smo(k [][]float64, rng *rand.Rand) {
	n := len(s.y)

	errFn := func(i int) float64 {
		f := s.b
		for j := 0; j < n; j++ {
			if s.alpha[j] > 0 {
				f += s.alpha[j] * s.y[j] * k[i][j]
			}
		}
		return f - s.y[i]
	}

	passes := 0
	for passes < svmMaxPasses {
		changed := 0
		for i := 0; i < n; i++ {
			ei := errFn(i)
			if !((s.y[i]*ei < -svmTolerance && s.alpha[i] < svmC) || (s.y[i]*ei > svmTolerance && s.alpha[i] > 0)) {
				continue
			}

			j := rng.Intn(n - 1)
			if j >= i {
				j++
			}
			ej := errFn(j)

			ai, aj := s.alpha[i], s.alpha[j]

			var lo, hi float64
			if s.y[i] != s.y[j] {
				lo = math.Max(0, aj-ai)
				hi = math.Min(svmC, svmC+aj-ai)
			} else {
				lo = math.Max(0, ai+aj-svmC)
				hi = math.Min(svmC, ai+aj)
			}
			if lo == hi {
				continue
			}

			eta := 2*k[i][j] - k[i][i] - k[j][j]
			if eta >= 0 {
				continue
			}

			ajNew := aj - s.y[j]*(ei-ej)/eta
			ajNew = math.Min(hi, math.Max(lo, ajNew))
			if math.Abs(ajNew-aj) < 1e-5 {
				continue
			}

			aiNew := ai + s.y[i]*s.y[j]*(aj-ajNew)

			b1 := s.b - ei - s.y[i]*(aiNew-ai)*k[i][i] - s.y[j]*(ajNew-aj)*k[i][j]
			b2 := s.b - ej - s.y[i]*(aiNew-ai)*k[i][j] - s.y[j]*(ajNew-aj)*k[j][j]
			switch {
			case aiNew > 0 && aiNew < svmC:
				s.b = b1
			case ajNew > 0 && ajNew < svmC:
				s.b = b2
			default:
				s.b = (b1 + b2) / 2
			}

			s.alpha[i], s.alpha[j] = aiNew, ajNew
			changed++
		}

		if changed == 0 {
			passes++
		} else {
			passes = 0
		}
	}
}

// fitPlatt fits the probability sigmoid on training decision values using
// the Lin-Weng-Keerthi Newton iteration
func (s *SVM) fitPlatt(k [][]float64, pos, neg int) {
	n := len(s.y)

	// decision values over the training set
	dec := make([]float64, n)
	for i := 0; i < n; i++ {
		f := s.b
		for j := 0; j < n; j++ {
			if s.alpha[j] > 0 {
				f += s.alpha[j] * s.y[j] * k[i][j]
			}
		}
		dec[i] = f
	}

	// regularized targets
	hiTarget := (float64(pos) + 1) / (float64(pos) + 2)
	loTarget := 1 / (float64(neg) + 2)
	t := make([]float64, n)
	for i := range t {
		if s.y[i] > 0 {
			t[i] = hiTarget
		} else {
			t[i] = loTarget
		}
	}

	a, b := 0.0, math.Log((float64(neg)+1)/(float64(pos)+1))
	const (
		maxIter = 100
		minStep = 1e-10
		sigma   = 1e-12
	)

	fval := 0.0
	for i := 0; i < n; i++ {
		fApB := dec[i]*a + b
		if fApB >= 0 {
			fval += t[i]*fApB + math.Log1p(math.Exp(-fApB))
		} else {
			fval += (t[i]-1)*fApB + math.Log1p(math.Exp(fApB))
		}
	}

	for iter := 0; iter < maxIter; iter++ {
		h11, h22, h21, g1, g2 := sigma, sigma, 0.0, 0.0, 0.0
		for i := 0; i < n; i++ {
			fApB := dec[i]*a + b
			var p, q float64
			if fApB >= 0 {
				p = math.Exp(-fApB) / (1 + math.Exp(-fApB))
				q = 1 / (1 + math.Exp(-fApB))
			} else {
				p = 1 / (1 + math.Exp(fApB))
				q = math.Exp(fApB) / (1 + math.Exp(fApB))
			}
			d2 := p * q
			h11 += dec[i] * dec[i] * d2
			h22 += d2
			h21 += dec[i] * d2
			d1 := t[i] - p
			g1 += dec[i] * d1
			g2 += d1
		}

		if math.Abs(g1) < 1e-5 && math.Abs(g2) < 1e-5 {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		stepSize := 1.0
		for stepSize >= minStep {
			newA := a + stepSize*dA
			newB := b + stepSize*dB

			newF := 0.0
			for i := 0; i < n; i++ {
				fApB := dec[i]*newA + newB
				if fApB >= 0 {
					newF += t[i]*fApB + math.Log1p(math.Exp(-fApB))
				} else {
					newF += (t[i]-1)*fApB + math.Log1p(math.Exp(fApB))
				}
			}

			if newF < fval+1e-4*stepSize*gd {
				a, b, fval = newA, newB, newF
				break
			}
			stepSize /= 2
		}
		if stepSize < minStep {
			break
		}
	}

	s.plattA, s.plattB = a, b
}
