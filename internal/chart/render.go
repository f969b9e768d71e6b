package chart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vincent-petithory/dataurl"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Image formats accepted by ToImageURL.
const (
	FormatSVG = "svg"
	FormatPNG = "png"
)

// Default image size in pixels.
const (
	DefaultWidth  = 1024
	DefaultHeight = 512
)

// ErrUnsupportedFormat is returned for image formats other than svg and png.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// RenderedView is a successfully rendered chart.
type RenderedView interface {
	Title() string
	Spec() *Spec
	// Source returns the Vega-Lite document as received.
	Source() json.RawMessage
	// Compiled returns the normalized series as indented JSON.
	Compiled() ([]byte, error)
	// ToImageURL renders the chart and returns it as a data: URL.
	ToImageURL(ctx context.Context, format string) (string, error)
}

// Renderer turns a chart specification into a RenderedView.
type Renderer interface {
	Render(ctx context.Context, raw json.RawMessage) (RenderedView, error)
}

// ImageRenderer compiles specs and draws them with go-chart.
type ImageRenderer struct {
	Width  int
	Height int
}

// NewImageRenderer returns a renderer with the default image size.
func NewImageRenderer() *ImageRenderer {
	return &ImageRenderer{Width: DefaultWidth, Height: DefaultHeight}
}

// Render compiles raw. Compilation errors are returned as *CompileError.
func (r *ImageRenderer) Render(ctx context.Context, raw json.RawMessage) (RenderedView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spec, err := Compile(raw)
	if err != nil {
		return nil, err
	}
	return &View{
		spec:   spec,
		source: append(json.RawMessage(nil), raw...),
		width:  r.Width,
		height: r.Height,
	}, nil
}

// View is the RenderedView produced by ImageRenderer.
type View struct {
	spec   *Spec
	source json.RawMessage
	width  int
	height int
}

// NewView wraps an already compiled spec.
func NewView(spec *Spec, source json.RawMessage) *View {
	return &View{spec: spec, source: source, width: DefaultWidth, height: DefaultHeight}
}

// Title returns the chart title.
func (v *View) Title() string { return v.spec.Title }

// Spec returns the compiled chart.
func (v *View) Spec() *Spec { return v.spec }

// Source returns the original Vega-Lite document.
func (v *View) Source() json.RawMessage { return v.source }

// Compiled returns the compiled chart as indented JSON.
func (v *View) Compiled() ([]byte, error) {
	return json.MarshalIndent(v.spec, "", "  ")
}

// ToImageURL draws the chart and returns a base64 data URL.
func (v *View) ToImageURL(ctx context.Context, format string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		provider gochart.RendererProvider
		mime     string
	)
	switch strings.ToLower(format) {
	case FormatSVG:
		provider, mime = gochart.SVG, "image/svg+xml"
	case FormatPNG:
		provider, mime = gochart.PNG, "image/png"
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	ch := v.buildChart()
	var buf bytes.Buffer
	if err := ch.Render(provider, &buf); err != nil {
		return "", fmt.Errorf("rendering %s image: %w", format, err)
	}
	return dataurl.New(buf.Bytes(), mime).String(), nil
}

func (v *View) buildChart() gochart.Chart {
	series := make([]gochart.Series, 0, len(v.spec.Series))
	minY, maxY := math.Inf(1), math.Inf(-1)

	for i, s := range v.spec.Series {
		if len(s.Points) == 0 {
			continue
		}
		style := seriesStyle(s.Mark, gochart.GetDefaultColor(i))
		ys := make([]float64, 0, len(s.Points)+1)
		for _, p := range s.Points {
			ys = append(ys, p.Y)
			minY = math.Min(minY, p.Y)
			maxY = math.Max(maxY, p.Y)
		}

		if v.spec.XAxis == AxisTemporal {
			times := make([]time.Time, 0, len(s.Points)+1)
			for _, p := range s.Points {
				times = append(times, p.Time)
			}
			// A single point has no x range; pad it so the axis can be drawn.
			if len(times) == 1 {
				times = append(times, times[0].Add(time.Hour))
				ys = append(ys, ys[0])
			}
			series = append(series, gochart.TimeSeries{Name: s.Name, XValues: times, YValues: ys, Style: style})
			continue
		}

		xs := make([]float64, 0, len(s.Points)+1)
		for _, p := range s.Points {
			xs = append(xs, p.X)
		}
		if len(xs) == 1 {
			xs = append(xs, xs[0]+1)
			ys = append(ys, ys[0])
		}
		series = append(series, gochart.ContinuousSeries{Name: s.Name, XValues: xs, YValues: ys, Style: style})
	}

	yAxis := gochart.YAxis{Name: v.spec.YTitle}
	if minY == maxY {
		yAxis.Range = &gochart.ContinuousRange{Min: minY - 1, Max: maxY + 1}
	}

	xAxis := gochart.XAxis{Name: v.spec.XTitle}
	if v.spec.XAxis == AxisTemporal {
		xAxis.ValueFormatter = gochart.TimeDateValueFormatter
	}
	if v.spec.XAxis == AxisOrdinal && len(v.spec.Categories) > 0 {
		ticks := make([]gochart.Tick, 0, len(v.spec.Categories))
		for i, label := range v.spec.Categories {
			ticks = append(ticks, gochart.Tick{Value: float64(i), Label: label})
		}
		xAxis.Ticks = ticks
	}

	ch := gochart.Chart{
		Title:      v.spec.Title,
		Width:      v.width,
		Height:     v.height,
		Background: gochart.Style{Padding: gochart.Box{Top: 24, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      xAxis,
		YAxis:      yAxis,
		Series:     series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	return ch
}

// seriesStyle draws points-only marks as dots and everything else as lines.
func seriesStyle(mark string, col drawing.Color) gochart.Style {
	switch mark {
	case "point", "circle", "square", "tick":
		return gochart.Style{StrokeWidth: 0, DotWidth: 4, DotColor: col}
	case "area":
		return gochart.Style{StrokeWidth: 2, StrokeColor: col, FillColor: col.WithAlpha(64)}
	default:
		return gochart.Style{StrokeWidth: 2, StrokeColor: col}
	}
}
