package tui

import (
	"math"
	"strings"

	"github.com/NimbleMarkets/ntcharts/sparkline"
)

// Sparkline draws values as a one-row bar chart width cells wide. Longer
// inputs are downsampled by averaging buckets. Bars grow from zero, or from
// the lowest value when the series goes negative.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	values = downsample(values, width)

	lo := math.Inf(1)
	for _, v := range values {
		lo = math.Min(lo, v)
	}
	if lo < 0 {
		shifted := make([]float64, len(values))
		for i, v := range values {
			shifted[i] = v - lo
		}
		values = shifted
	}

	sl := sparkline.New(width, 1)
	sl.PushAll(values)
	sl.Draw()
	return strings.TrimRight(sl.View(), "\n")
}

func downsample(values []float64, width int) []float64 {
	if len(values) <= width {
		return values
	}
	out := make([]float64, width)
	for i := range out {
		start := i * len(values) / width
		end := (i + 1) * len(values) / width
		sum := 0.0
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}
