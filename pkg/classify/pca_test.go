package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestPCA_ComponentBounds(t *testing.T) {
	x := mat.NewDense(5, 10, nil)
	for i := 0; i < 5; i++ {
		for j := 0; j < 10; j++ {
			x.Set(i, j, float64(i*j%7))
		}
	}

	p, err := FitPCA(x, 100)
	require.NoError(t, err)
	assert.Equal(t, 4, p.NumComponents(), "capped by samples-1")

	p, err = FitPCA(x, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, p.NumComponents(), "capped by max")
}

func TestPCA_TooSmall(t *testing.T) {
	_, err := FitPCA(mat.NewDense(1, 5, nil), 10)
	require.Error(t, err)

	_, err = FitPCA(mat.NewDense(5, 1, nil), 10)
	require.Error(t, err)
}

func TestPCA_TransformDims(t *testing.T) {
	x := mat.NewDense(6, 8, nil)
	for i := 0; i < 6; i++ {
		for j := 0; j < 8; j++ {
			x.Set(i, j, float64((i+1)*(j+2)%5))
		}
	}

	p, err := FitPCA(x, 3)
	require.NoError(t, err)

	res := p.Transform(x)
	rows, cols := res.Dims()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 3, cols)

	// single new row projects into the same space
	res = p.Transform(mat.NewDense(1, 8, []float64{1, 0, 2, 0, 3, 0, 4, 0}))
	rows, cols = res.Dims()
	assert.Equal(t, 1, rows)
	assert.Equal(t, 3, cols)
}

func TestPCA_CentersOnMean(t *testing.T) {
	// identical rows have zero variance, projection of the mean is the origin
	data := []float64{2, 4, 6}
	x := mat.NewDense(4, 3, nil)
	for i := 0; i < 3; i++ {
		x.SetRow(i, data)
	}
	x.SetRow(3, []float64{3, 5, 7})

	p, err := FitPCA(x, 2)
	require.NoError(t, err)

	mean := mat.NewDense(1, 3, []float64{2.25, 4.25, 6.25})
	res := p.Transform(mean)
	_, cols := res.Dims()
	for j := 0; j < cols; j++ {
		assert.InDelta(t, 0, res.At(0, j), 1e-9)
	}
}
