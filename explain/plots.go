package explain

import (
	"image/color"
	"math/rand/v2"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/harvestlab/cropml/pkg/errors"
)

// SaveImportancePlot renders the global importance ranking as a bar
// chart, most important feature first.
func (a *Attribution) SaveImportancePlot(path string) error {
	ranking := a.Importance()

	p := plot.New()
	p.Title.Text = "Mean |attribution| per feature"
	p.Y.Label.Text = "mean |attribution|"

	values := make(plotter.Values, len(ranking))
	names := make([]string, len(ranking))
	for i, fi := range ranking {
		values[i] = fi.MeanAbs
		names[i] = fi.Name
	}

	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return errors.Wrap(err, "cropml: importance plot failed")
	}
	bars.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = -0.6
	p.X.Tick.Label.XAlign = -0.5

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrap(err, "cropml: importance plot failed")
	}
	return nil
}

// SaveBeeswarmPlot renders every per-observation attribution as a point.
// Features stack on the Y axis in importance order; points jitter
// vertically so dense regions stay readable.
func (a *Attribution) SaveBeeswarmPlot(path string) error {
	ranking := a.Importance()
	rowOf := make(map[string]int, len(ranking))
	names := make([]string, len(ranking))
	for rank, fi := range ranking {
		// Most important at the top.
		row := len(ranking) - 1 - rank
		rowOf[fi.Name] = row
		names[row] = fi.Name
	}

	nObs, nFeatures := a.Values.Dims()
	pts := make(plotter.XYs, 0, nObs*nFeatures)
	rng := rand.New(rand.NewPCG(1, 1))
	for j := 0; j < nFeatures; j++ {
		row := float64(rowOf[a.FeatureNames[j]])
		for i := 0; i < nObs; i++ {
			pts = append(pts, plotter.XY{
				X: a.Values.At(i, j),
				Y: row + (rng.Float64()-0.5)*0.6,
			})
		}
	}

	p := plot.New()
	p.Title.Text = "Attribution distribution per feature"
	p.X.Label.Text = "attribution"

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "cropml: beeswarm plot failed")
	}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	scatter.GlyphStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 180}
	p.Add(scatter)
	p.NominalY(names...)

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrap(err, "cropml: beeswarm plot failed")
	}
	return nil
}

// SaveWaterfallPlot renders one observation's decomposition: the running
// total from the base value to the prediction, one bar per feature in
// magnitude order.
func (a *Attribution) SaveWaterfallPlot(path string, obs int) error {
	steps, err := a.Waterfall(obs)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = "Prediction decomposition"
	p.Y.Label.Text = "running prediction"

	cumulative := make(plotter.Values, len(steps)+1)
	names := make([]string, len(steps)+1)
	cumulative[0] = a.BaseValue
	names[0] = "base"
	for i, s := range steps {
		cumulative[i+1] = s.Cumulative
		names[i+1] = s.Name
	}

	bars, err := plotter.NewBarChart(cumulative, vg.Points(16))
	if err != nil {
		return errors.Wrap(err, "cropml: waterfall plot failed")
	}
	bars.Color = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = -0.6
	p.X.Tick.Label.XAlign = -0.5

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrap(err, "cropml: waterfall plot failed")
	}
	return nil
}
