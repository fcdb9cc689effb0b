package pipeline

import (
	"bytes"
	"fmt"
	"image/color"
	"strings"

	"curve-analyzer/derive"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Chart axis names. Each is a numeric column of the enriched table.
const (
	AxisPoint      = "point"
	AxisPosition   = "position"
	AxisForce      = "force"
	AxisElapsedMS  = "elapsed_ms"
	AxisVelocity   = "velocity"
	AxisVelocityMA = "velocity_ma"
)

// DefaultChartAxes are rendered when no axes are requested.
var DefaultChartAxes = []ChartAxes{
	{X: AxisPosition, Y: AxisForce},
	{X: AxisElapsedMS, Y: AxisVelocity},
}

var axisLabels = map[string]string{
	AxisPoint:      "Point",
	AxisPosition:   "Position",
	AxisForce:      "Force",
	AxisElapsedMS:  "Elapsed (ms)",
	AxisVelocity:   "Velocity (position/s)",
	AxisVelocityMA: "Smoothed velocity (position/s)",
}

var (
	lineColor   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	smoothColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// ParseChartAxes reads "x:y" pairs separated by commas, e.g.
// "position:force,elapsed_ms:velocity".
func ParseChartAxes(pairs string) ([]ChartAxes, error) {
	var out []ChartAxes
	for _, pair := range strings.Split(pairs, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		x, y, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("chart axes %q: expected x:y", pair)
		}
		axes := ChartAxes{X: strings.TrimSpace(x), Y: strings.TrimSpace(y)}
		if err := axes.validate(); err != nil {
			return nil, err
		}
		out = append(out, axes)
	}
	return out, nil
}

func (a ChartAxes) validate() error {
	if _, ok := axisLabels[a.X]; !ok {
		return fmt.Errorf("unknown chart axis %q", a.X)
	}
	if _, ok := axisLabels[a.Y]; !ok {
		return fmt.Errorf("unknown chart axis %q", a.Y)
	}
	return nil
}

// ChartName is the artifact file name for one record chart.
func ChartName(recordIndex int, axes ChartAxes) string {
	return fmt.Sprintf("record_%03d_%s_vs_%s.png", recordIndex, axes.X, axes.Y)
}

// renderCharts draws one PNG per record and axes pair. Records with fewer
// than two plottable points are skipped.
func renderCharts(records []derive.EnrichedRecord, axes []ChartAxes) (map[string][]byte, error) {
	if len(axes) == 0 {
		axes = DefaultChartAxes
	}
	out := make(map[string][]byte, len(records)*len(axes))
	for _, a := range axes {
		if err := a.validate(); err != nil {
			return nil, err
		}
	}
	for _, rec := range records {
		for _, a := range axes {
			pts := chartPoints(rec, a)
			if len(pts) < 2 {
				continue
			}
			png, err := renderChart(rec, a, pts)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", ChartName(rec.Index, a), err)
			}
			out[ChartName(rec.Index, a)] = png
		}
	}
	return out, nil
}

func renderChart(rec derive.EnrichedRecord, a ChartAxes, pts plotter.XYs) ([]byte, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %s vs %s", rec.Header, axisLabels[a.Y], axisLabels[a.X])
	p.X.Label.Text = axisLabels[a.X]
	p.Y.Label.Text = axisLabels[a.Y]
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = lineColor
	p.Add(line)
	p.Legend.Add(a.Y, line)

	// Overlay the smoothed series on velocity charts.
	if a.Y == AxisVelocity && rec.Smoothed {
		smooth := chartPoints(rec, ChartAxes{X: a.X, Y: AxisVelocityMA})
		if len(smooth) >= 2 {
			ma, err := plotter.NewLine(smooth)
			if err != nil {
				return nil, err
			}
			ma.Color = smoothColor
			ma.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			p.Add(ma)
			p.Legend.Add(fmt.Sprintf("%s (window %d)", AxisVelocityMA, rec.SmoothingWindow), ma)
		}
	}

	c := vgimg.PngCanvas{Canvas: vgimg.New(8*vg.Inch, 5*vg.Inch)}
	p.Draw(draw.New(c))
	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// chartPoints collects the samples where both axes have a value.
func chartPoints(rec derive.EnrichedRecord, a ChartAxes) plotter.XYs {
	pts := make(plotter.XYs, 0, len(rec.Samples))
	for _, s := range rec.Samples {
		x, okX := axisValue(s, a.X)
		y, okY := axisValue(s, a.Y)
		if okX && okY {
			pts = append(pts, plotter.XY{X: x, Y: y})
		}
	}
	return pts
}

func axisValue(s derive.EnrichedSample, axis string) (float64, bool) {
	switch axis {
	case AxisPoint:
		return float64(s.Point), true
	case AxisPosition:
		return s.Position, true
	case AxisForce:
		return s.Force, true
	case AxisElapsedMS:
		if s.ElapsedMS == nil {
			return 0, false
		}
		return float64(*s.ElapsedMS), true
	case AxisVelocity:
		if s.Velocity == nil {
			return 0, false
		}
		return *s.Velocity, true
	case AxisVelocityMA:
		if s.VelocityMA == nil {
			return 0, false
		}
		return *s.VelocityMA, true
	default:
		return 0, false
	}
}
