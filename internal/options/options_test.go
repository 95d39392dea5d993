package options

import (
	"context"
	"math"
	"testing"
	"time"

	"quantassist/internal/quote"
)

func TestNormCDF(t *testing.T) {
	if got := NormCDF(0); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("NormCDF(0) = %v, want 0.5", got)
	}
	if got := NormCDF(1.96); math.Abs(got-0.975) > 1e-3 {
		t.Errorf("NormCDF(1.96) = %v, want ~0.975", got)
	}
	if got := NormCDF(-1.96); math.Abs(got-0.025) > 1e-3 {
		t.Errorf("NormCDF(-1.96) = %v, want ~0.025", got)
	}
}

func TestDeltaBounds(t *testing.T) {
	cd := CallDelta(100, 100, 0.1, 0, 0.3)
	if cd <= 0 || cd >= 1 {
		t.Errorf("CallDelta = %v, want in (0, 1)", cd)
	}
	pd := PutDelta(100, 100, 0.1, 0, 0.3)
	if pd <= -1 || pd >= 0 {
		t.Errorf("PutDelta = %v, want in (-1, 0)", pd)
	}
	if math.Abs(cd-pd-1) > 1e-12 {
		t.Errorf("call - put delta = %v, want 1", cd-pd)
	}
}

func TestDegenerateInputsYieldNaN(t *testing.T) {
	if !math.IsNaN(D1(0, 100, 0.1, 0, 0.3)) {
		t.Error("D1 with zero spot not NaN")
	}
	if !math.IsNaN(D1(100, 100, 0, 0, 0.3)) {
		t.Error("D1 with zero time not NaN")
	}
	if !math.IsNaN(ProbAboveStrike(100, 100, 0.1, 0, 0)) {
		t.Error("ProbAboveStrike with zero vol not NaN")
	}
}

func TestProbAboveStrikeMonotoneInStrike(t *testing.T) {
	low := ProbAboveStrike(100, 80, 0.1, 0, 0.3)
	mid := ProbAboveStrike(100, 100, 0.1, 0, 0.3)
	high := ProbAboveStrike(100, 120, 0.1, 0, 0.3)
	if !(low > mid && mid > high) {
		t.Errorf("prob not decreasing in strike: %v %v %v", low, mid, high)
	}
}

func TestCallPriceIntrinsicFloor(t *testing.T) {
	// Deep ITM with tiny vol approaches intrinsic value.
	got := CallPrice(150, 100, 0.05, 0, 0.01)
	if math.Abs(got-50) > 0.5 {
		t.Errorf("deep ITM call price = %v, want ~50", got)
	}
	// Deep OTM is worth ~nothing.
	if got := CallPrice(50, 100, 0.05, 0, 0.01); got > 0.01 {
		t.Errorf("deep OTM call price = %v, want ~0", got)
	}
}

func futureExpiry(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")
}

func TestEnrichContracts(t *testing.T) {
	expiry := futureExpiry(30)
	rows := []RawContract{
		{Strike: 100, Bid: 2.4, Ask: 2.6, IV: 0.3},
		{Strike: 0, Bid: 1, Ask: 1, IV: 0.3},   // invalid strike dropped
		{Strike: 110, Bid: 0, Ask: 0, Last: 0}, // no premium dropped
	}

	calls := EnrichContracts(105, expiry, rows, true)
	if len(calls) != 1 {
		t.Fatalf("got %d enriched contracts, want 1", len(calls))
	}
	c := calls[0]
	if c.Type != "CALL" {
		t.Errorf("Type = %q, want CALL", c.Type)
	}
	if math.Abs(c.MidPrice-2.5) > 1e-9 {
		t.Errorf("MidPrice = %v, want 2.5 (bid/ask mid)", c.MidPrice)
	}
	if math.Abs(c.Breakeven-102.5) > 1e-9 {
		t.Errorf("Breakeven = %v, want 102.5", c.Breakeven)
	}
	if c.Delta <= 0 || c.Delta >= 1 {
		t.Errorf("Delta = %v, want in (0, 1)", c.Delta)
	}

	puts := EnrichContracts(105, expiry, rows[:1], false)
	if len(puts) != 1 {
		t.Fatalf("got %d enriched puts, want 1", len(puts))
	}
	if puts[0].Breakeven != 97.5 {
		t.Errorf("put Breakeven = %v, want 97.5", puts[0].Breakeven)
	}
}

func TestPickByTargetDelta(t *testing.T) {
	contracts := []Contract{
		{Strike: 90, Delta: 0.70},
		{Strike: 100, Delta: 0.50},
		{Strike: 110, Delta: 0.27},
		{Strike: 120, Delta: 0.10},
	}
	got := PickByTargetDelta(contracts, 0.25)
	if got == nil || got.Strike != 110 {
		t.Errorf("picked %+v, want strike 110", got)
	}
	if PickByTargetDelta(nil, 0.25) != nil {
		t.Error("empty list did not yield nil")
	}
}

func TestMockChainProviderWindow(t *testing.T) {
	p := NewMockChainProvider(func(_ context.Context, _ string) (float64, error) {
		return 200, nil
	})

	book, err := p.LoadChain(context.Background(), "AAPL", 7, 45)
	if err != nil {
		t.Fatalf("LoadChain returned error: %v", err)
	}
	if book.Price != 200 {
		t.Errorf("Price = %v, want 200", book.Price)
	}
	if len(book.Chains) != 2 {
		t.Fatalf("got %d chains, want 2 (14 and 30 DTE)", len(book.Chains))
	}
	for _, ch := range book.Chains {
		if ch.DTE < 7 || ch.DTE > 45 {
			t.Errorf("chain DTE %d outside window", ch.DTE)
		}
		if len(ch.Calls) != len(mockStrikeSteps) || len(ch.Puts) != len(mockStrikeSteps) {
			t.Errorf("chain has %d calls / %d puts, want %d each", len(ch.Calls), len(ch.Puts), len(mockStrikeSteps))
		}
	}

	// Window that excludes everything produces a note, not an error.
	book, err = p.LoadChain(context.Background(), "AAPL", 60, 90)
	if err != nil {
		t.Fatalf("LoadChain returned error: %v", err)
	}
	if len(book.Chains) != 0 || book.Note == "" {
		t.Errorf("out-of-window chain = %d chains, note %q", len(book.Chains), book.Note)
	}
}

func newTestEngine() *Engine {
	data := quote.NewMockProvider()
	spot := func(ctx context.Context, symbol string) (float64, error) {
		s, err := data.DailySeries(ctx, symbol, 365)
		if err != nil {
			return 0, err
		}
		return s.Closes[len(s.Closes)-1], nil
	}
	return NewEngine(NewMockChainProvider(spot), data, nil)
}

func TestBestTrades(t *testing.T) {
	e := newTestEngine()
	resp, err := e.BestTrades(context.Background(), BestTradesRequest{
		Symbol:      "aapl",
		BuyingPower: 5000,
	})
	if err != nil {
		t.Fatalf("BestTrades returned error: %v", err)
	}
	if resp.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", resp.Symbol)
	}
	if resp.TargetAbsDelta != 0.25 || resp.MinDTE != 7 || resp.MaxDTE != 45 {
		t.Errorf("defaults not applied: %+v", resp)
	}
	if len(resp.Candidates) == 0 {
		t.Fatal("no candidates returned")
	}
	if len(resp.Candidates) > 8 {
		t.Errorf("got %d candidates, want <= 8", len(resp.Candidates))
	}
	// Sorted by delta distance.
	for i := 1; i < len(resp.Candidates); i++ {
		di := math.Abs(math.Abs(resp.Candidates[i-1].Delta) - 0.25)
		dj := math.Abs(math.Abs(resp.Candidates[i].Delta) - 0.25)
		if di > dj+1e-12 {
			t.Errorf("candidates not sorted by delta distance at %d", i)
		}
	}
}

func TestSimulatePL(t *testing.T) {
	e := newTestEngine()
	sim, err := e.SimulatePL(context.Background(), "AAPL", 100, 100, 5, 30, "CALL")
	if err != nil {
		t.Fatalf("SimulatePL returned error: %v", err)
	}
	if sim.P5 > sim.P50 || sim.P50 > sim.P95 {
		t.Errorf("percentiles not ordered: %+v", sim)
	}
	// A long option can never lose more than the premium.
	if sim.P5 < -5 {
		t.Errorf("P5 = %v, below the -premium floor", sim.P5)
	}
	if sim.ProbProfit < 0 || sim.ProbProfit > 1 {
		t.Errorf("ProbProfit = %v, want in [0, 1]", sim.ProbProfit)
	}
}

func TestPortfolioSuggestions(t *testing.T) {
	e := newTestEngine()
	resp, err := e.PortfolioSuggestions(context.Background(), SuggestionsRequest{
		BuyingPower: 100000,
		Positions:   []Position{{Symbol: "AAPL"}, {Symbol: "NVDA"}, {Symbol: "aapl"}},
	})
	if err != nil {
		t.Fatalf("PortfolioSuggestions returned error: %v", err)
	}
	if len(resp.Suggestions) == 0 {
		t.Fatal("no suggestions returned")
	}
	if len(resp.Suggestions) > 3 {
		t.Errorf("got %d suggestions, want <= 3", len(resp.Suggestions))
	}
	for _, s := range resp.Suggestions {
		if s.Contract == nil {
			t.Fatal("suggestion without contract")
		}
		if s.CostEstimate > 100000 {
			t.Errorf("unaffordable suggestion: %v", s.CostEstimate)
		}
		if len(s.Reasoning) == 0 {
			t.Error("suggestion without reasoning")
		}
		if len(s.Payoff) == 0 {
			t.Error("suggestion without payoff curve")
		}
	}
}

func TestPortfolioSuggestionsEmptyPositions(t *testing.T) {
	e := newTestEngine()
	resp, err := e.PortfolioSuggestions(context.Background(), SuggestionsRequest{BuyingPower: 1000})
	if err != nil {
		t.Fatalf("PortfolioSuggestions returned error: %v", err)
	}
	if len(resp.Suggestions) != 0 {
		t.Errorf("got %d suggestions for empty positions, want 0", len(resp.Suggestions))
	}
}
