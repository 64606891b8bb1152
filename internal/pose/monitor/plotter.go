package monitor

import (
	"fmt"
	"image/color"
	"io"
	"math"

	sqlite "github.com/banshee-data/posetrack/internal/pose/storage/sqlite"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var axisColors = [3]color.Color{
	color.RGBA{R: 220, G: 50, B: 47, A: 255},
	color.RGBA{R: 133, G: 153, B: 0, A: 255},
	color.RGBA{R: 38, G: 139, B: 210, A: 255},
}

// PlotRootTrace renders a recorded root trajectory as a PNG: one line per
// axis against frame sequence.
func PlotRootTrace(w io.Writer, title string, samples []sqlite.RootSample) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Root position"

	axes := [3]plotter.XYs{}
	for i := range axes {
		axes[i] = make(plotter.XYs, 0, len(samples))
	}
	for _, s := range samples {
		x := float64(s.Seq)
		for i, v := range [3]float64{s.Root.X, s.Root.Y, s.Root.Z} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			axes[i] = append(axes[i], plotter.XY{X: x, Y: v})
		}
	}

	for i, name := range [3]string{"x", "y", "z"} {
		if len(axes[i]) == 0 {
			continue
		}
		line, err := plotter.NewLine(axes[i])
		if err != nil {
			return err
		}
		line.Color = axisColors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write plot: %w", err)
	}
	return nil
}
