// Package chart renders 7-day price sparklines.
package chart

import (
	"errors"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/iho/coinwallet/internal/domain"
)

// Format is an output image format.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/svg+xml"
}

var ErrNotEnoughPoints = errors.New("sparkline needs at least two points")

var (
	risingColor  = drawing.Color{R: 22, G: 163, B: 74, A: 255}
	fallingColor = drawing.Color{R: 220, G: 38, B: 38, A: 255}
)

// Options sizes the rendered image.
type Options struct {
	Width  int
	Height int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 240
	}
	if o.Height <= 0 {
		o.Height = 64
	}
	return o
}

// RenderSparkline draws md's sparkline without axes or grid. The line is
// green when the series ends at or above where it started.
func RenderSparkline(w io.Writer, md *domain.MarketData, format Format, opts Options) error {
	if len(md.Sparkline) < 2 {
		return ErrNotEnoughPoints
	}
	opts = opts.withDefaults()

	xs := make([]float64, len(md.Sparkline))
	ys := make([]float64, len(md.Sparkline))
	minY, maxY := md.Sparkline[0].InexactFloat64(), md.Sparkline[0].InexactFloat64()
	for i, p := range md.Sparkline {
		xs[i] = float64(i)
		ys[i] = p.InexactFloat64()
		minY = min(minY, ys[i])
		maxY = max(maxY, ys[i])
	}
	if minY == maxY {
		minY, maxY = minY-1, maxY+1
	}

	color := risingColor
	if abs, _ := md.SparklineChange(); abs.IsNegative() {
		color = fallingColor
	}

	graph := chart.Chart{
		Width:  opts.Width,
		Height: opts.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 4, Left: 4, Right: 4, Bottom: 4},
		},
		XAxis: chart.XAxis{Style: chart.Hidden()},
		YAxis: chart.YAxis{
			Style: chart.Hidden(),
			Range: &chart.ContinuousRange{Min: minY, Max: maxY},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    md.Symbol,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: color,
					StrokeWidth: 1.5,
					FillColor:   color.WithAlpha(40),
				},
			},
		},
	}

	renderer := chart.SVG
	if format == FormatPNG {
		renderer = chart.PNG
	}
	if err := graph.Render(renderer, w); err != nil {
		return fmt.Errorf("failed to render sparkline: %w", err)
	}
	return nil
}
