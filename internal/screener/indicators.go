package screener

import "math"

// EMA returns the exponential moving average of values with the given span,
// seeded from the first value (alpha = 2/(span+1), no adjust).
func EMA(values []float64, span int) []float64 {
	if len(values) == 0 || span < 1 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI14 computes the 14-period Wilder RSI of a close series. It needs at
// least 20 samples; shorter input returns NaN.
func RSI14(closes []float64) float64 {
	if len(closes) < 20 {
		return math.NaN()
	}
	const alpha = 1.0 / 14

	var avgUp, avgDown float64
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		up := math.Max(delta, 0)
		down := math.Max(-delta, 0)
		if i == 1 {
			avgUp, avgDown = up, down
			continue
		}
		avgUp = alpha*up + (1-alpha)*avgUp
		avgDown = alpha*down + (1-alpha)*avgDown
	}

	var rs float64
	if avgDown > 0 {
		rs = avgUp / avgDown
	}
	return 100 - 100/(1+rs)
}

// Momentum is the fractional return over the last n bars, 0 when the series
// is too short.
func Momentum(closes []float64, n int) float64 {
	if len(closes) <= n || n < 1 {
		return 0
	}
	base := closes[len(closes)-1-n]
	if base == 0 {
		return 0
	}
	return closes[len(closes)-1]/base - 1
}

// ProbUpOverHorizon estimates the probability that a stock finishes above
// today's price after horizon trading days, from the mean and standard
// deviation of its daily log returns. Zero dispersion yields 0.5.
func ProbUpOverHorizon(closes []float64, horizon int) float64 {
	if len(closes) < 2 || horizon < 1 {
		return 0.5
	}
	var rets []float64
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 && closes[i] > 0 {
			rets = append(rets, math.Log(closes[i]/closes[i-1]))
		}
	}
	if len(rets) == 0 {
		return 0.5
	}

	var sum float64
	for _, r := range rets {
		sum += r
	}
	mean := sum / float64(len(rets))
	var sq float64
	for _, r := range rets {
		d := r - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(rets)))

	muT := mean * float64(horizon)
	sigT := std * math.Sqrt(float64(horizon))
	if sigT <= 0 {
		return 0.5
	}
	return 0.5 * (1 - math.Erf((-muT/sigT)/math.Sqrt2))
}
