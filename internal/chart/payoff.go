package chart

import "math"

// OptionType selects the payoff formula for ComputePayoffSeries.
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// Defaults for ComputePayoffSeries when the caller passes zero values.
const (
	DefaultPayoffRange   = 0.4
	DefaultPayoffSamples = 80
)

// ComputePayoffSeries generates the profit/loss at expiry for a single long
// option across sampleCount evenly spaced underlying prices spanning
// [max(0.01, s0*(1-pctRange)), s0*(1+pctRange)]. The result feeds
// NormalizePoints for payoff-diagram rendering. A non-positive spot yields
// nil.
func ComputePayoffSeries(s0 float64, typ OptionType, strike, premium, pctRange float64, sampleCount int) []float64 {
	if s0 <= 0 || math.IsInf(s0, 0) || math.IsNaN(s0) {
		return nil
	}
	if pctRange <= 0 {
		pctRange = DefaultPayoffRange
	}
	if sampleCount <= 0 {
		sampleCount = DefaultPayoffSamples
	}

	lo := s0 * (1 - pctRange)
	if lo < 0.01 {
		lo = 0.01
	}
	hi := s0 * (1 + pctRange)

	step := 0.0
	if sampleCount > 1 {
		step = (hi - lo) / float64(sampleCount-1)
	}

	out := make([]float64, sampleCount)
	for i := range out {
		s := lo + float64(i)*step
		var intrinsic float64
		if typ == Put {
			intrinsic = math.Max(0, strike-s)
		} else {
			intrinsic = math.Max(0, s-strike)
		}
		out[i] = intrinsic - premium
	}
	return out
}
