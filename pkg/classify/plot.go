package classify

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// plotEmbeddings writes a 2-D scatter of the first two embedding components
// colored by label. Purely observational, nothing reads it back.
func plotEmbeddings(x *mat.Dense, labels []int, file string) error {
	_, cols := x.Dims()
	if cols < 2 {
		return fmt.Errorf("need at least 2 components, got %d", cols)
	}

	var liked, unliked plotter.XYs
	for i, l := range labels {
		pt := plotter.XY{X: x.At(i, 0), Y: x.At(i, 1)}
		if l == 1 {
			liked = append(liked, pt)
		} else {
			unliked = append(unliked, pt)
		}
	}

	p := plot.New()
	p.Title.Text = "PCA of Article Features"
	p.X.Label.Text = "First Principal Component"
	p.Y.Label.Text = "Second Principal Component"

	unlikedScatter, err := plotter.NewScatter(unliked)
	if err != nil {
		return fmt.Errorf("unliked scatter: %w", err)
	}
	unlikedScatter.GlyphStyle.Color = color.RGBA{R: 70, G: 130, B: 200, A: 160}

	likedScatter, err := plotter.NewScatter(liked)
	if err != nil {
		return fmt.Errorf("liked scatter: %w", err)
	}
	likedScatter.GlyphStyle.Color = color.RGBA{R: 220, G: 120, B: 40, A: 160}

	p.Add(unlikedScatter, likedScatter)
	p.Legend.Add("Unliked", unlikedScatter)
	p.Legend.Add("Liked", likedScatter)

	if err := p.Save(10*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
