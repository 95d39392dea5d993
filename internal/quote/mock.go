package quote

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"
)

// MockProvider serves deterministic synthetic data so the whole API works
// without upstream credentials. Series are seeded per symbol, so repeated
// fetches of the same symbol return identical history.
type MockProvider struct{}

// NewMockProvider creates a MockProvider.
func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string { return "mock" }

// mockChanges are the fixed intraday changes served for batch quotes,
// keyed by symbol. Symbols not listed get a seeded pseudo-random change.
var mockChanges = map[string]float64{
	"XLK":  1.23,
	"XLV":  0.88,
	"XLF":  0.65,
	"XLE":  -0.12,
	"XLY":  0.41,
	"XLP":  0.10,
	"XLI":  0.33,
	"XLB":  -0.05,
	"XLU":  -0.28,
	"XLC":  0.95,
	"XLRE": 0.07,
}

func symbolRand(symbol string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func (p *MockProvider) QuoteBatch(_ context.Context, symbols []string) ([]Quote, error) {
	quotes := make([]Quote, 0, len(symbols))
	for _, sym := range symbols {
		rng := symbolRand(sym)
		chg, ok := mockChanges[sym]
		if !ok {
			chg = rng.Float64()*4 - 2
		}
		quotes = append(quotes, Quote{
			Symbol:        sym,
			Price:         50 + rng.Float64()*200,
			ChangePercent: chg,
			Name:          sym,
		})
	}
	return quotes, nil
}

func (p *MockProvider) DayGainers(_ context.Context, count int) ([]Mover, error) {
	movers := []Mover{
		{Ticker: "MOCK", Price: 100.0, ChangePct: "+5.26%", Name: "Mock Industries"},
		{Ticker: "FAKE", Price: 50.0, ChangePct: "+4.10%", Name: "Fake Holdings"},
		{Ticker: "TEST", Price: 25.0, ChangePct: "+3.85%", Name: "Test Corp"},
		{Ticker: "DEMO", Price: 12.5, ChangePct: "+2.04%", Name: "Demo Systems"},
		{Ticker: "SMPL", Price: 8.2, ChangePct: "+1.41%", Name: "Sample Labs"},
	}
	if count > 0 && count < len(movers) {
		movers = movers[:count]
	}
	return movers, nil
}

// DailySeries generates a seeded random walk of business-day closes: 160
// bars at ±2% daily moves starting from 100, mimicking the shape of real
// history without any network access.
func (p *MockProvider) DailySeries(_ context.Context, symbol string, days int) (Series, error) {
	n := 160
	if days > 0 && days < n {
		n = days
	}
	if n < 2 {
		n = 2
	}

	rng := symbolRand(symbol)
	s := Series{
		Symbol:     symbol,
		Timestamps: make([]int64, n),
		Closes:     make([]float64, n),
		Volumes:    make([]int64, n),
	}

	price := 100.0
	day := time.Now().UTC().AddDate(0, 0, -n)
	for i := 0; i < n; i++ {
		price *= 1 + (rng.Float64()*0.04 - 0.02)
		s.Timestamps[i] = day.AddDate(0, 0, i).Unix()
		s.Closes[i] = price
		s.Volumes[i] = 500_000 + rng.Int63n(4_500_000)
	}
	return s, nil
}

func (p *MockProvider) News(_ context.Context, symbol string, limit int) ([]Headline, error) {
	if limit <= 0 {
		limit = 4
	}
	headlines := []Headline{
		{Symbol: symbol, Title: fmt.Sprintf("%s beats synthetic earnings estimates", symbol), Publisher: "Mock Wire"},
		{Symbol: symbol, Title: fmt.Sprintf("Analysts debate %s outlook", symbol), Publisher: "Placeholder Press"},
	}
	if limit < len(headlines) {
		headlines = headlines[:limit]
	}
	return headlines, nil
}
