package NavierStokes2D

import (
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotScaling saves Krylov iterations and solve time against ndofs. The time figure goes next to file
// with "_time" appended to the base name, the format follows the extension.
func PlotScaling(results []ScalingResult, file string) (err error) {
	var (
		ext      = filepath.Ext(file)
		timeFile = strings.TrimSuffix(file, ext) + "_time" + ext
	)
	if ext == "" {
		return fmt.Errorf("plot file %s needs an extension naming the format", file)
	}
	if err = scalingPlot(results, "Krylov iterations", file, func(rep Report) float64 {
		return float64(rep.Summary.KrylovIterations)
	}); err != nil {
		return
	}
	return scalingPlot(results, "solve time [s]", timeFile, func(rep Report) float64 {
		return rep.SolveTime.Seconds()
	})
}

func scalingPlot(results []ScalingResult, ylabel, file string, value func(rep Report) float64) (err error) {
	p := plot.New()
	p.Title.Text = "PCD scaling, backward facing step"
	p.X.Label.Text = "ndofs"
	p.Y.Label.Text = ylabel
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Legend.Top = true

	var lines []interface{}
	for _, res := range results {
		if len(res.Reports) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(res.Reports))
		for i, rep := range res.Reports {
			xys[i].X = float64(rep.NDofs)
			xys[i].Y = value(rep)
		}
		lines = append(lines, res.Case.Label(), xys)
	}
	if len(lines) == 0 {
		return fmt.Errorf("no results to plot")
	}
	if err = plotutil.AddLinePoints(p, lines...); err != nil {
		return
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, file)
}
