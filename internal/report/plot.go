package report

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/spectra.report/internal/fsutil"
)

const scatterTitle = "Labeled spectra (2-D embedding)"

// WriteScatterPNG renders d as a PNG scatter plot with one series per class.
func WriteScatterPNG(fsys fsutil.FileSystem, path string, d DimReduc) error {
	p := plot.New()
	p.Title.Text = scatterTitle
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	order, groups := d.byClass()
	colors := generateColors(len(order))
	for i, label := range order {
		pts := make(plotter.XYs, 0, len(groups[label]))
		for _, j := range groups[label] {
			pts = append(pts, plotter.XY{X: d.X[j], Y: d.Y[j]})
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("failed to build scatter for %s: %w", d.className(label), err)
		}
		s.GlyphStyle.Color = colors[i]
		s.GlyphStyle.Radius = vg.Points(2.5)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add(d.className(label), s)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	w, err := p.WriterTo(8*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return fsutil.WriteFileAtomic(fsys, path, buf.Bytes(), 0o644)
}

// WriteScatterHTML renders d as a self-contained go-echarts page.
func WriteScatterHTML(fsys fsutil.FileSystem, path string, d DimReduc) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: scatterTitle, Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: scatterTitle, Subtitle: fmt.Sprintf("spectra=%d classes=%d", len(d.Labels), len(d.Classes))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "x", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "y", NameLocation: "middle", NameGap: 30}),
	)

	order, groups := d.byClass()
	for _, label := range order {
		data := make([]opts.ScatterData, 0, len(groups[label]))
		for _, j := range groups[label] {
			data = append(data, opts.ScatterData{Value: []interface{}{d.X[j], d.Y[j]}})
		}
		scatter.AddSeries(d.className(label), data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	return fsutil.WriteFileAtomic(fsys, path, buf.Bytes(), 0o644)
}

// generateColors spreads n hues evenly around the colour wheel.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64
	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		q := l + s - l*s
		if l < 0.5 {
			q = l * (1 + s)
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
