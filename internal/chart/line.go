// Package chart renders the dashboard's time series as SVG line charts.
package chart

import (
	"fmt"
	"html"
	"io"
	"math"
	"time"

	"BrentView/pkg/util"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 400

	ColorHistorical = "8884d8"
	ColorForecast   = "82ca9d"
	ColorVolatility = "ff7300"
)

var gridColor = drawing.ColorFromHex("cccccc")

// Point is one plotted value at a calendar date (YYYY-MM-DD).
type Point struct {
	Date  string
	Value float64
}

// Line is a named series drawn in one color, given as a hex triplet.
type Line struct {
	Name   string
	Color  string
	Points []Point
}

// Options sets the canvas.
type Options struct {
	Width  int
	Height int
	YLabel string
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	return o
}

// RenderLine draws lines as an SVG chart with a dashed grid and a legend.
// Every point is plotted in the given order. Lines without points are
// skipped; when none are left an empty frame is drawn.
func RenderLine(w io.Writer, opts Options, lines ...Line) error {
	opts = opts.withDefaults()

	series := make([]gochart.Series, 0, len(lines))
	xr := newBounds()
	yr := newBounds()
	for _, ln := range lines {
		if len(ln.Points) == 0 {
			continue
		}
		ts, err := toTimeSeries(ln)
		if err != nil {
			return err
		}
		for i, t := range ts.XValues {
			xr.add(float64(t.UnixNano()))
			yr.add(ts.YValues[i])
		}
		series = append(series, ts)
	}

	if len(series) == 0 {
		return renderEmpty(w, opts, lines)
	}

	xMin, xMax := xr.padded(float64(24 * time.Hour))
	yMin, yMax := yr.padded(0)

	grid := gochart.Style{
		StrokeColor:     gridColor,
		StrokeWidth:     1,
		StrokeDashArray: []float64{3, 3},
	}

	graph := gochart.Chart{
		Width:  opts.Width,
		Height: opts.Height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: gochart.XAxis{
			ValueFormatter: dateFormatter,
			Range:          &gochart.ContinuousRange{Min: xMin, Max: xMax},
			GridMajorStyle: grid,
		},
		YAxis: gochart.YAxis{
			Name:           opts.YLabel,
			Range:          &gochart.ContinuousRange{Min: yMin, Max: yMax},
			GridMajorStyle: grid,
		},
		Series: series,
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}

	if err := graph.Render(gochart.SVG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func toTimeSeries(ln Line) (gochart.TimeSeries, error) {
	xs := make([]time.Time, len(ln.Points))
	ys := make([]float64, len(ln.Points))
	for i, p := range ln.Points {
		t, ok := util.ParseDate(p.Date)
		if !ok {
			return gochart.TimeSeries{}, fmt.Errorf("series %s: point %d: invalid date %q", ln.Name, i, p.Date)
		}
		xs[i] = t
		ys[i] = p.Value
	}

	style := gochart.Style{
		StrokeColor: drawing.ColorFromHex(ln.Color),
		StrokeWidth: 2,
	}
	// a single point has no segment to stroke
	if len(ln.Points) == 1 {
		style.DotColor = style.StrokeColor
		style.DotWidth = 4
	}

	return gochart.TimeSeries{
		Name:    ln.Name,
		Style:   style,
		XValues: xs,
		YValues: ys,
	}, nil
}

func dateFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return util.FormatDate(time.Unix(0, int64(f)))
	}
	return ""
}

// bounds tracks the extent of one axis.
type bounds struct {
	min, max float64
}

func newBounds() *bounds {
	return &bounds{min: math.Inf(1), max: math.Inf(-1)}
}

func (b *bounds) add(v float64) {
	b.min = math.Min(b.min, v)
	b.max = math.Max(b.max, v)
}

// padded widens a degenerate range so a single value can be drawn. With
// minPad 0 the pad is 5% of the span, or of the value itself when flat.
func (b *bounds) padded(minPad float64) (float64, float64) {
	span := b.max - b.min
	pad := span * 0.05
	if span == 0 {
		pad = math.Max(math.Abs(b.max)*0.05, 1)
	}
	if minPad > 0 {
		if span > 0 {
			return b.min, b.max
		}
		pad = minPad
	}
	return b.min - pad, b.max + pad
}

// renderEmpty draws the bare frame and legend. go-chart refuses to render a
// chart without data.
func renderEmpty(w io.Writer, opts Options, lines []Line) error {
	_, err := fmt.Fprintf(w,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`+
			`<rect x="40" y="20" width="%d" height="%d" fill="none" stroke="#cccccc" stroke-dasharray="3 3"/>`,
		opts.Width, opts.Height, opts.Width-60, opts.Height-60)
	if err != nil {
		return err
	}
	for i, ln := range lines {
		_, err = fmt.Fprintf(w,
			`<rect x="%d" y="%d" width="10" height="10" fill="#%s"/><text x="%d" y="%d" font-size="12">%s</text>`,
			50, 30+i*16, html.EscapeString(ln.Color), 66, 39+i*16, html.EscapeString(ln.Name))
		if err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, `<text x="%d" y="%d" text-anchor="middle" fill="#999999">No data</text></svg>`,
		opts.Width/2, opts.Height/2)
	return err
}
