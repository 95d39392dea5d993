// Package chart provides pure transforms that turn raw numeric series into
// chart-ready structures: binned histograms, normalized point coordinates,
// option payoff curves, and stable rank/filter helpers.
package chart

import (
	"errors"
	"math"
)

// ErrEmptySeries is returned by transforms that cannot produce output from an
// empty input. Callers render a placeholder instead of a chart.
var ErrEmptySeries = errors.New("chart: empty series")

// DefaultBinCount is used when BinHistogram is called with binCount <= 0.
const DefaultBinCount = 20

// Histogram holds equal-width binned counts over a series' value range.
// Edges[i] is the left edge of bin i; Counts[i] is the number of samples in
// the half-open interval [Edges[i], Edges[i]+step), with the last bin closed
// on the right.
type Histogram struct {
	Edges  []float64 `json:"edges"`
	Counts []int     `json:"counts"`
}

// BinHistogram buckets a numeric series into binCount equal-width bins
// spanning [min, max]. A constant series collapses into bin 0 (the width is
// floored at 1 so the step is never zero). Counts always sum to len(series).
func BinHistogram(series []float64, binCount int) (Histogram, error) {
	if len(series) == 0 {
		return Histogram{}, ErrEmptySeries
	}
	if binCount <= 0 {
		binCount = DefaultBinCount
	}

	lo, hi := series[0], series[0]
	for _, v := range series[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	width := hi - lo
	if width < 1 {
		width = 1
	}
	step := width / float64(binCount)

	h := Histogram{
		Edges:  make([]float64, binCount),
		Counts: make([]int, binCount),
	}
	for i := range h.Edges {
		h.Edges[i] = lo + float64(i)*step
	}
	for _, v := range series {
		idx := int(math.Floor((v - lo) / step))
		// Clamp to absorb float rounding at the max value.
		if idx < 0 {
			idx = 0
		}
		if idx >= binCount {
			idx = binCount - 1
		}
		h.Counts[idx]++
	}
	return h, nil
}
