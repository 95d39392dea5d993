// Package options loads option chains, enriches contracts with
// Black-Scholes analytics, and selects educational long-option candidates.
package options

import "math"

var sqrt2 = math.Sqrt(2)

// NormCDF is the standard normal cumulative distribution function.
func NormCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/sqrt2))
}

// D1 computes the Black-Scholes d1 term. Degenerate inputs (non-positive
// spot, strike, vol, or time) yield NaN.
func D1(s, k, t, r, sigma float64) float64 {
	if s <= 0 || k <= 0 || sigma <= 0 || t <= 0 {
		return math.NaN()
	}
	return (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / (sigma * math.Sqrt(t))
}

// D2 computes d2 from d1.
func D2(d1, sigma, t float64) float64 {
	if math.IsNaN(d1) || sigma <= 0 || t <= 0 {
		return math.NaN()
	}
	return d1 - sigma*math.Sqrt(t)
}

// CallDelta is the Black-Scholes delta of a long call.
func CallDelta(s, k, t, r, sigma float64) float64 {
	return NormCDF(D1(s, k, t, r, sigma))
}

// PutDelta is the Black-Scholes delta of a long put.
func PutDelta(s, k, t, r, sigma float64) float64 {
	return CallDelta(s, k, t, r, sigma) - 1
}

// ProbAboveStrike is the risk-neutral probability that the underlying
// finishes above the strike at expiry, N(d2).
func ProbAboveStrike(s, k, t, r, sigma float64) float64 {
	d1 := D1(s, k, t, r, sigma)
	return NormCDF(D2(d1, sigma, t))
}

// CallPrice is the Black-Scholes value of a European call.
func CallPrice(s, k, t, r, sigma float64) float64 {
	d1 := D1(s, k, t, r, sigma)
	d2 := D2(d1, sigma, t)
	if math.IsNaN(d1) {
		return math.NaN()
	}
	return s*NormCDF(d1) - k*math.Exp(-r*t)*NormCDF(d2)
}

// PutPrice is the Black-Scholes value of a European put, via put-call parity.
func PutPrice(s, k, t, r, sigma float64) float64 {
	c := CallPrice(s, k, t, r, sigma)
	if math.IsNaN(c) {
		return math.NaN()
	}
	return c - s + k*math.Exp(-r*t)
}
