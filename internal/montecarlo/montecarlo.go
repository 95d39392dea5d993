// Package montecarlo simulates geometric-Brownian-motion price paths and
// summarises the resulting terminal distributions.
package montecarlo

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// TradingDaysPerYear is the day-count convention for annualising returns.
const TradingDaysPerYear = 252

// DefaultPaths is the path count used when Config.NPaths is zero.
const DefaultPaths = 2000

// Config parameterises a GBM simulation. Mu and Sigma are annualised.
type Config struct {
	S0      float64
	Mu      float64
	Sigma   float64
	Days    int
	NPaths  int
	Seed    *int64   // nil: seed 42, deterministic by default
	Barrier *float64 // optional touch barrier
}

// Result holds simulation output.
type Result struct {
	TerminalPrices []float64
	ProbTouch      float64 // populated only when a barrier was set
	HasBarrier     bool
}

// ErrBadConfig is returned for non-positive spot, days, or paths.
var ErrBadConfig = errors.New("montecarlo: invalid simulation config")

// Simulate runs cfg.NPaths GBM paths of cfg.Days daily steps and returns the
// terminal prices. With a barrier set, ProbTouch is the fraction of paths
// that touched it: at or above for a barrier above spot, at or below for a
// barrier below.
func Simulate(cfg Config) (Result, error) {
	if cfg.S0 <= 0 || cfg.Days <= 0 {
		return Result{}, ErrBadConfig
	}
	nPaths := cfg.NPaths
	if nPaths <= 0 {
		nPaths = DefaultPaths
	}

	seed := int64(42)
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	dt := 1.0 / TradingDaysPerYear
	drift := (cfg.Mu - 0.5*cfg.Sigma*cfg.Sigma) * dt
	vol := cfg.Sigma * math.Sqrt(dt)

	res := Result{
		TerminalPrices: make([]float64, nPaths),
		HasBarrier:     cfg.Barrier != nil,
	}

	touched := 0
	for p := 0; p < nPaths; p++ {
		price := cfg.S0
		hit := false
		for t := 0; t < cfg.Days; t++ {
			price *= math.Exp(drift + vol*rng.NormFloat64())
			if cfg.Barrier != nil && !hit {
				b := *cfg.Barrier
				if (b >= cfg.S0 && price >= b) || (b < cfg.S0 && price <= b) {
					hit = true
				}
			}
		}
		res.TerminalPrices[p] = price
		if hit {
			touched++
		}
	}

	if cfg.Barrier != nil {
		res.ProbTouch = float64(touched) / float64(nPaths)
	}
	return res, nil
}

// Percentiles computes the qth percentiles (0-100) of xs using linear
// interpolation between order statistics. An empty input yields NaNs.
func Percentiles(xs []float64, qs ...float64) []float64 {
	out := make([]float64, len(qs))
	if len(xs) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	n := len(sorted)
	for i, q := range qs {
		pos := q / 100 * float64(n-1)
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		if lo < 0 {
			lo = 0
		}
		if hi >= n {
			hi = n - 1
		}
		frac := pos - float64(lo)
		out[i] = sorted[lo] + frac*(sorted[hi]-sorted[lo])
	}
	return out
}

// EstimateAnnualized derives annualised drift and volatility from a series
// of daily closes via log returns. It needs at least two closes.
func EstimateAnnualized(closes []float64) (mu, sigma float64, err error) {
	rets, err := LogReturns(closes)
	if err != nil {
		return 0, 0, err
	}
	m, s := meanStd(rets)
	return m * TradingDaysPerYear, s * math.Sqrt(TradingDaysPerYear), nil
}

// LogReturns computes ln(c[i]/c[i-1]) for consecutive closes, skipping
// non-positive prices.
func LogReturns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, errors.New("montecarlo: need at least two closes")
	}
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		rets = append(rets, math.Log(closes[i]/closes[i-1]))
	}
	if len(rets) == 0 {
		return nil, errors.New("montecarlo: no valid returns")
	}
	return rets, nil
}

// meanStd returns the mean and population standard deviation.
func meanStd(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		d := x - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(xs)))
	return mean, std
}
