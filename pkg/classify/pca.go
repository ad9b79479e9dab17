package classify

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PCA reduces TF-IDF rows to a fixed number of principal components.
// Components are the right singular vectors of the mean-centered input, so
// the reduction can never exceed the rank of what it was fit on.
type PCA struct {
	mean       []float64
	components *mat.Dense // nFeatures x nComponents
	n          int
}

// FitPCA computes up to maxComponents principal components of X. The
// effective count is min(nSamples-1, nFeatures-1, maxComponents).
func FitPCA(x *mat.Dense, maxComponents int) (*PCA, error) {
	rows, cols := x.Dims()

	n := min(rows-1, cols-1, maxComponents)
	if n < 1 {
		return nil, fmt.Errorf("input %dx%d too small for reduction", rows, cols)
	}

	p := &PCA{n: n, mean: make([]float64, cols)}
	for j := 0; j < cols; j++ {
		col := mat.Col(nil, j, x)
		var sum float64
		for _, v := range col {
			sum += v
		}
		p.mean[j] = sum / float64(rows)
	}

	centered := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			centered.Set(i, j, x.At(i, j)-p.mean[j])
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return nil, fmt.Errorf("svd factorization failed")
	}

	var v mat.Dense
	svd.VTo(&v)
	p.components = mat.DenseCopyOf(v.Slice(0, cols, 0, n))
	return p, nil
}

// NumComponents returns the fitted component count
func (p *PCA) NumComponents() int {
	return p.n
}

// Transform projects rows of X onto the fitted components
func (p *PCA) Transform(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()

	centered := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			centered.Set(i, j, x.At(i, j)-p.mean[j])
		}
	}

	var res mat.Dense
	res.Mul(centered, p.components)
	return &res
}
