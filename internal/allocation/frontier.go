// Package allocation samples random long-only portfolios and reports the
// best risk-adjusted allocations over user-supplied return and covariance
// estimates.
package allocation

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"quantassist/internal/chart"
)

// DefaultSamples is the number of random portfolios drawn per request.
const DefaultSamples = 5000

// TopCount is how many portfolios the response keeps, best Sharpe first.
const TopCount = 25

// ErrBadInput is returned when the inputs are not a consistent n-asset
// problem.
var ErrBadInput = errors.New("allocation: tickers, returns, and covariance sizes disagree")

// Request describes the assets to allocate across.
type Request struct {
	Tickers    []string    `json:"tickers"`
	ExpReturns []float64   `json:"exp_returns"`
	Cov        [][]float64 `json:"cov"`
	Seed       *int64      `json:"seed,omitempty"`
}

// Portfolio is one sampled allocation with its risk/return stats.
type Portfolio struct {
	Weights []float64 `json:"weights"`
	Mu      float64   `json:"mu"`
	Vol     float64   `json:"vol"`
	Sharpe  float64   `json:"sharpe"`
}

// Response holds the best sampled portfolios.
type Response struct {
	Top []Portfolio `json:"top"`
}

// EfficientFrontier draws uniform random long-only weight vectors, scores
// each by expected return, volatility, and Sharpe ratio, and returns the
// top allocations by Sharpe.
func EfficientFrontier(req Request) (Response, error) {
	n := len(req.Tickers)
	if n == 0 || len(req.ExpReturns) != n || len(req.Cov) != n {
		return Response{}, ErrBadInput
	}
	for _, row := range req.Cov {
		if len(row) != n {
			return Response{}, ErrBadInput
		}
	}

	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	grid := make([]Portfolio, 0, DefaultSamples)
	for i := 0; i < DefaultSamples; i++ {
		w := dirichletUniform(rng, n)
		mu := dot(w, req.ExpReturns)
		vol := math.Sqrt(quadForm(w, req.Cov))
		sharpe := 0.0
		if vol > 0 {
			sharpe = mu / vol
		}
		grid = append(grid, Portfolio{Weights: w, Mu: mu, Vol: vol, Sharpe: sharpe})
	}

	top := chart.RankTopK(grid, func(p Portfolio) float64 { return p.Sharpe }, TopCount)
	return Response{Top: top}, nil
}

// dirichletUniform samples a flat Dirichlet weight vector: n unit-rate
// exponentials normalised to sum to one.
func dirichletUniform(rng *rand.Rand, n int) []float64 {
	w := make([]float64, n)
	var sum float64
	for i := range w {
		w[i] = rng.ExpFloat64()
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// quadForm computes w' C w.
func quadForm(w []float64, cov [][]float64) float64 {
	var s float64
	for i := range w {
		for j := range w {
			s += w[i] * cov[i][j] * w[j]
		}
	}
	return s
}
