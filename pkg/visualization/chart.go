package visualization

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"centerlinemetrics/pkg/table"
)

// Options controls how a metrics table is charted
type Options struct {
	// XColumn and YColumn name the table columns plotted on each axis
	XColumn string
	YColumn string

	// Unit is appended to the axis titles, e.g. "Distance (mm)"
	Unit string

	// Color is the series color as RGB components in [0, 1]
	Color [3]float64

	// Width and Height are the image size in inches (PNG) or pixels/100 (HTML)
	Width  float64
	Height float64
}

// DefaultOptions plots Diameter against Distance in millimeters
func DefaultOptions() Options {
	return Options{
		XColumn: table.DistanceColumn,
		YColumn: table.DiameterColumn,
		Unit:    "mm",
		Color:   [3]float64{0, 0.6, 1.0},
		Width:   10,
		Height:  5,
	}
}

// Chart renders diameter/distance plots for metrics tables
type Chart struct {
	opts Options
}

// NewChart creates a chart renderer, filling unset options from DefaultOptions
func NewChart(o Options) *Chart {
	def := DefaultOptions()
	if o.XColumn == "" {
		o.XColumn = def.XColumn
	}
	if o.YColumn == "" {
		o.YColumn = def.YColumn
	}
	if o.Width <= 0 {
		o.Width = def.Width
	}
	if o.Height <= 0 {
		o.Height = def.Height
	}
	return &Chart{opts: o}
}

func (c *Chart) axisTitle(column string) string {
	if c.opts.Unit == "" {
		return column
	}
	return fmt.Sprintf("%s (%s)", column, c.opts.Unit)
}

func (c *Chart) rgba() color.RGBA {
	ch := func(v float64) uint8 {
		return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
	}
	return color.RGBA{R: ch(c.opts.Color[0]), G: ch(c.opts.Color[1]), B: ch(c.opts.Color[2]), A: 255}
}

// Plot builds a gonum plot with a single unmarked series named after the table
func (c *Chart) Plot(t *table.Table) (*plot.Plot, error) {
	xs, ys, err := t.XY(c.opts.XColumn, c.opts.YColumn)
	if err != nil {
		return nil, err
	}
	if len(xs) == 0 {
		return nil, fmt.Errorf("table %q has no rows to plot", t.Name)
	}

	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i] = plotter.XY{X: xs[i], Y: ys[i]}
	}

	p := plot.New()
	p.Title.Text = t.Name
	p.X.Label.Text = c.axisTitle(c.opts.XColumn)
	p.Y.Label.Text = c.axisTitle(c.opts.YColumn)
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("create line: %w", err)
	}
	line.Color = c.rgba()
	line.Width = vg.Points(1.5)
	p.Add(line)

	if t.Name != "" {
		p.Legend.Add(t.Name, line)
		p.Legend.Top = true
	}
	return p, nil
}

// WritePNG renders the plot of t as PNG to w
func (c *Chart) WritePNG(w io.Writer, t *table.Table) error {
	p, err := c.Plot(t)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(vg.Length(c.opts.Width)*vg.Inch, vg.Length(c.opts.Height)*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// SavePNG writes the plot of t to path. The format follows the file
// extension (png, svg, pdf, ...) as supported by gonum/plot.
func (c *Chart) SavePNG(path string, t *table.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create plot directory: %w", err)
	}
	p, err := c.Plot(t)
	if err != nil {
		return err
	}
	if err := p.Save(vg.Length(c.opts.Width)*vg.Inch, vg.Length(c.opts.Height)*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// RenderHTML writes an interactive go-echarts page plotting t
func (c *Chart) RenderHTML(w io.Writer, t *table.Table) error {
	xs, ys, err := t.XY(c.opts.XColumn, c.opts.YColumn)
	if err != nil {
		return err
	}

	data := make([]opts.LineData, len(xs))
	for i := range xs {
		data[i] = opts.LineData{Value: []interface{}{xs[i], ys[i]}}
	}

	rgb := c.rgba()
	seriesColor := fmt.Sprintf("rgb(%d,%d,%d)", rgb.R, rgb.G, rgb.B)
	name := t.Name
	if strings.TrimSpace(name) == "" {
		name = c.opts.YColumn
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Centerline metrics",
			Width:     fmt.Sprintf("%dpx", int(c.opts.Width*100)),
			Height:    fmt.Sprintf("%dpx", int(c.opts.Height*100)),
		}),
		charts.WithTitleOpts(opts.Title{Title: name, Subtitle: fmt.Sprintf("points=%d", len(xs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: c.axisTitle(c.opts.XColumn), NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: c.axisTitle(c.opts.YColumn), NameLocation: "middle", NameGap: 40}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.AddSeries(name, data,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: seriesColor, Width: 1.5}),
	)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
