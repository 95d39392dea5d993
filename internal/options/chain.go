package options

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RawContract is one unenriched chain row as delivered by a provider.
type RawContract struct {
	Strike float64
	Bid    float64
	Ask    float64
	Last   float64
	IV     float64
}

// Chain holds one expiry's calls and puts.
type Chain struct {
	Expiry string // YYYY-MM-DD
	DTE    int
	Calls  []RawContract
	Puts   []RawContract
}

// Book is the full chain response for a symbol: underlying price plus the
// chains inside the requested DTE window. Note carries a human-readable
// degradation message (rate limits, empty data) without failing the request.
type Book struct {
	Price  float64
	Chains []Chain
	Note   string
}

// ChainProvider fetches option chains for a symbol within a DTE window.
type ChainProvider interface {
	LoadChain(ctx context.Context, symbol string, minDTE, maxDTE int) (Book, error)
}

// SpotFunc returns the current underlying price for a symbol.
type SpotFunc func(ctx context.Context, symbol string) (float64, error)

// MockChainProvider synthesises a plausible chain around the live spot:
// two expiries with strikes spanning ±15% and premiums priced at
// Black-Scholes theoretical value with a small bid/ask spread. It stands in
// for a real chain feed when no options API token is configured.
type MockChainProvider struct {
	Spot SpotFunc
}

// NewMockChainProvider creates a MockChainProvider fed by the given spot
// lookup.
func NewMockChainProvider(spot SpotFunc) *MockChainProvider {
	return &MockChainProvider{Spot: spot}
}

// mockDTEs are the synthetic expiries generated per chain, in days out.
var mockDTEs = []int{14, 30}

// mockStrikeSteps are strike offsets as a fraction of spot.
var mockStrikeSteps = []float64{0.85, 0.90, 0.95, 1.00, 1.05, 1.10, 1.15}

func (p *MockChainProvider) LoadChain(ctx context.Context, symbol string, minDTE, maxDTE int) (Book, error) {
	spot, err := p.Spot(ctx, symbol)
	if err != nil {
		return Book{}, fmt.Errorf("mock chain spot for %s: %w", symbol, err)
	}
	if spot <= 0 {
		return Book{}, fmt.Errorf("mock chain: non-positive spot for %s", symbol)
	}

	book := Book{Price: spot}
	today := time.Now().UTC()

	for _, dte := range mockDTEs {
		if dte < minDTE || dte > maxDTE {
			continue
		}
		t := float64(dte) / 365
		ch := Chain{
			Expiry: today.AddDate(0, 0, dte).Format("2006-01-02"),
			DTE:    dte,
		}
		for i, step := range mockStrikeSteps {
			k := math.Round(spot*step*100) / 100
			iv := 0.25 + 0.02*float64(i%3) // mild smile
			call := CallPrice(spot, k, t, 0, iv)
			put := PutPrice(spot, k, t, 0, iv)
			ch.Calls = append(ch.Calls, RawContract{
				Strike: k,
				Bid:    roundCents(call * 0.97),
				Ask:    roundCents(call * 1.03),
				IV:     iv,
			})
			ch.Puts = append(ch.Puts, RawContract{
				Strike: k,
				Bid:    roundCents(put * 0.97),
				Ask:    roundCents(put * 1.03),
				IV:     iv,
			})
		}
		book.Chains = append(book.Chains, ch)
	}

	if len(book.Chains) == 0 {
		book.Note = "no expiries inside the requested DTE window"
	}
	return book, nil
}

func roundCents(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Round(v*100) / 100
}
