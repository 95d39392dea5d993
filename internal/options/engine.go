package options

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"quantassist/internal/chart"
	"quantassist/internal/montecarlo"
	"quantassist/internal/quote"
)

// Contract is an enriched option candidate.
type Contract struct {
	Expiry    string  `json:"expiry"`
	Type      string  `json:"type"` // CALL or PUT
	Strike    float64 `json:"strike"`
	MidPrice  float64 `json:"mid_price"`
	IV        float64 `json:"iv"`
	Delta     float64 `json:"delta"`
	ProbAbove float64 `json:"prob_finish_above_strike"`
	Breakeven float64 `json:"breakeven"`
}

// PLSummary summarises a simulated option P/L distribution.
type PLSummary struct {
	P5         float64 `json:"pl_p5"`
	P50        float64 `json:"pl_p50"`
	P95        float64 `json:"pl_p95"`
	ProbProfit float64 `json:"prob_profit"`
}

// BestTradesRequest selects candidates for a single symbol.
type BestTradesRequest struct {
	Symbol         string
	BuyingPower    float64
	TargetAbsDelta float64
	MinDTE         int
	MaxDTE         int
	Limit          int
}

// BestTradesResponse is the candidate list plus underlying context.
type BestTradesResponse struct {
	Symbol         string     `json:"symbol"`
	Price          float64    `json:"price"`
	TargetAbsDelta float64    `json:"target_abs_delta"`
	MinDTE         int        `json:"min_dte"`
	MaxDTE         int        `json:"max_dte"`
	Note           string     `json:"note,omitempty"`
	Candidates     []Contract `json:"candidates"`
}

// Position is one holding in a portfolio-suggestions request.
type Position struct {
	Symbol    string   `json:"symbol"`
	Shares    float64  `json:"shares"`
	CostBasis *float64 `json:"cost_basis,omitempty"`
}

// SuggestionsRequest asks for long-option ideas sized to buying power.
type SuggestionsRequest struct {
	BuyingPower float64    `json:"buying_power"`
	Goal        string     `json:"goal"`
	Positions   []Position `json:"positions"`
}

// Suggestion is one idea with its simulated P/L and reasoning.
type Suggestion struct {
	Symbol       string     `json:"symbol"`
	UnderPrice   float64    `json:"under_price"`
	Contract     *Contract  `json:"suggestion"`
	CostEstimate float64    `json:"cost_estimate"`
	Sim          *PLSummary `json:"sim,omitempty"`
	Reasoning    []string   `json:"reasoning"`
	Note         string     `json:"note,omitempty"`

	// Payoff is the at-expiry P/L curve over a spot range around the
	// underlying, for the dashboard's payoff chart.
	Payoff []float64 `json:"payoff,omitempty"`
}

// SuggestionsResponse is the ranked idea list.
type SuggestionsResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
	Note        string       `json:"note,omitempty"`
}

// Engine wires chain loading, enrichment, selection, and simulation.
type Engine struct {
	chains ChainProvider
	data   quote.Provider
	log    *slog.Logger
}

// NewEngine creates an options Engine.
func NewEngine(chains ChainProvider, data quote.Provider, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{chains: chains, data: data, log: log}
}

// EnrichContracts converts raw chain rows into analytics-bearing candidates.
// Rows with no usable premium or strike are dropped.
func EnrichContracts(s float64, expiry string, rows []RawContract, isCall bool) []Contract {
	expiryDate, err := time.Parse("2006-01-02", expiry)
	if err != nil {
		return nil
	}
	t := float64(int(time.Until(expiryDate).Hours()/24)) / 365
	if t < 1.0/365 {
		t = 1.0 / 365
	}
	const r = 0.0 // short-dated, rate ignored

	out := make([]Contract, 0, len(rows))
	for _, row := range rows {
		premium := row.Last
		if row.Bid > 0 || row.Ask > 0 {
			premium = (row.Bid + row.Ask) / 2
		}
		sigma := math.Max(row.IV, 1e-6)
		if !(s > 0 && row.Strike > 0 && premium > 0) {
			continue
		}

		c := Contract{
			Expiry:    expiry,
			Strike:    row.Strike,
			MidPrice:  premium,
			IV:        sigma,
			ProbAbove: ProbAboveStrike(s, row.Strike, t, r, sigma),
		}
		if isCall {
			c.Type = "CALL"
			c.Delta = CallDelta(s, row.Strike, t, r, sigma)
			c.Breakeven = row.Strike + premium
		} else {
			c.Type = "PUT"
			c.Delta = PutDelta(s, row.Strike, t, r, sigma)
			c.Breakeven = row.Strike - premium
		}
		if math.IsNaN(c.Delta) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// PickByTargetDelta returns the contract whose |delta| is closest to the
// target, or nil for an empty list.
func PickByTargetDelta(contracts []Contract, target float64) *Contract {
	var best *Contract
	bestDist := math.Inf(1)
	for i := range contracts {
		d := math.Abs(math.Abs(contracts[i].Delta) - target)
		if d < bestDist {
			bestDist = d
			best = &contracts[i]
		}
	}
	return best
}

// sortByDeltaDistance orders candidates by closeness to the target delta,
// breaking ties on the earlier expiry.
func sortByDeltaDistance(cs []Contract, target float64) {
	sort.SliceStable(cs, func(i, j int) bool {
		di := math.Abs(math.Abs(cs[i].Delta) - target)
		dj := math.Abs(math.Abs(cs[j].Delta) - target)
		if di != dj {
			return di < dj
		}
		return cs[i].Expiry < cs[j].Expiry
	})
}

// BestTrades returns real option candidates near the target |delta| within
// the DTE window, filtered by single-contract affordability. If nothing is
// affordable the closest candidates are returned anyway.
func (e *Engine) BestTrades(ctx context.Context, req BestTradesRequest) (BestTradesResponse, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.TargetAbsDelta == 0 {
		req.TargetAbsDelta = 0.25
	}
	if req.MinDTE == 0 {
		req.MinDTE = 7
	}
	if req.MaxDTE == 0 {
		req.MaxDTE = 45
	}
	if req.Limit <= 0 {
		req.Limit = 8
	}

	book, err := e.chains.LoadChain(ctx, symbol, req.MinDTE, req.MaxDTE)
	if err != nil {
		return BestTradesResponse{}, fmt.Errorf("loading chain for %s: %w", symbol, err)
	}

	resp := BestTradesResponse{
		Symbol:         symbol,
		Price:          book.Price,
		TargetAbsDelta: req.TargetAbsDelta,
		MinDTE:         req.MinDTE,
		MaxDTE:         req.MaxDTE,
		Note:           book.Note,
		Candidates:     []Contract{},
	}
	if len(book.Chains) == 0 {
		return resp, nil
	}

	pickAll := func(affordableOnly bool) []Contract {
		var out []Contract
		for _, ch := range book.Chains {
			calls := EnrichContracts(book.Price, ch.Expiry, ch.Calls, true)
			puts := EnrichContracts(book.Price, ch.Expiry, ch.Puts, false)
			for _, c := range []*Contract{
				PickByTargetDelta(calls, req.TargetAbsDelta),
				PickByTargetDelta(puts, req.TargetAbsDelta),
			} {
				if c == nil {
					continue
				}
				if affordableOnly && c.MidPrice*100 > req.BuyingPower {
					continue
				}
				out = append(out, *c)
			}
		}
		return out
	}

	candidates := pickAll(true)
	if len(candidates) == 0 {
		candidates = pickAll(false)
	}

	sortByDeltaDistance(candidates, req.TargetAbsDelta)
	if len(candidates) > req.Limit {
		candidates = candidates[:req.Limit]
	}
	resp.Candidates = candidates
	return resp, nil
}

// SimulatePL runs a seeded GBM simulation of the option's P/L at expiry,
// with drift and volatility estimated from a year of daily closes.
func (e *Engine) SimulatePL(ctx context.Context, symbol string, s, strike, premium float64, days int, typ string) (*PLSummary, error) {
	if s <= 0 || strike <= 0 || days <= 0 {
		return nil, fmt.Errorf("simulate %s: invalid inputs", symbol)
	}

	hist, err := e.data.DailySeries(ctx, symbol, 365)
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", symbol, err)
	}
	mu, sigma, err := montecarlo.EstimateAnnualized(hist.Closes)
	if err != nil {
		return nil, err
	}

	res, err := montecarlo.Simulate(montecarlo.Config{
		S0:    s,
		Mu:    mu,
		Sigma: sigma,
		Days:  days,
	})
	if err != nil {
		return nil, err
	}

	payoffs := make([]float64, len(res.TerminalPrices))
	profitable := 0
	for i, st := range res.TerminalPrices {
		var intrinsic float64
		if strings.EqualFold(typ, "PUT") {
			intrinsic = math.Max(strike-st, 0)
		} else {
			intrinsic = math.Max(st-strike, 0)
		}
		payoffs[i] = intrinsic - premium
		if payoffs[i] > 0 {
			profitable++
		}
	}

	ps := montecarlo.Percentiles(payoffs, 5, 50, 95)
	return &PLSummary{
		P5:         ps[0],
		P50:        ps[1],
		P95:        ps[2],
		ProbProfit: float64(profitable) / float64(len(payoffs)),
	}, nil
}

// PortfolioSuggestions builds up to three long-option ideas from the user's
// positions and buying power, each with a Monte-Carlo P/L summary.
func (e *Engine) PortfolioSuggestions(ctx context.Context, req SuggestionsRequest) (SuggestionsResponse, error) {
	const targetDelta = 0.25

	seen := map[string]bool{}
	var symbols []string
	for _, p := range req.Positions {
		sym := strings.ToUpper(strings.TrimSpace(p.Symbol))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		symbols = append(symbols, sym)
	}

	var out []Suggestion
	var topNote string
	for _, sym := range symbols {
		book, err := e.chains.LoadChain(ctx, sym, 7, 45)
		if err != nil {
			e.log.Warn("loading chain", "symbol", sym, "error", err)
			continue
		}
		if book.Note != "" && topNote == "" {
			topNote = book.Note
		}
		if book.Price <= 0 || len(book.Chains) == 0 {
			continue
		}

		var ideas []Contract
		for _, ch := range book.Chains {
			calls := EnrichContracts(book.Price, ch.Expiry, ch.Calls, true)
			puts := EnrichContracts(book.Price, ch.Expiry, ch.Puts, false)
			for _, c := range []*Contract{
				PickByTargetDelta(calls, targetDelta),
				PickByTargetDelta(puts, targetDelta),
			} {
				if c != nil && c.MidPrice*100 <= req.BuyingPower {
					ideas = append(ideas, *c)
				}
			}
		}
		if len(ideas) == 0 {
			continue
		}
		sortByDeltaDistance(ideas, targetDelta)
		if len(ideas) > 2 {
			ideas = ideas[:2]
		}

		for _, c := range ideas {
			days := daysUntil(c.Expiry)
			sim, err := e.SimulatePL(ctx, sym, book.Price, c.Strike, c.MidPrice, days, c.Type)
			if err != nil {
				e.log.Warn("simulating option P/L", "symbol", sym, "error", err)
			}
			contract := c
			out = append(out, Suggestion{
				Symbol:       sym,
				UnderPrice:   book.Price,
				Contract:     &contract,
				CostEstimate: math.Round(c.MidPrice*100*100) / 100,
				Sim:          sim,
				Reasoning:    reasoningFor(&contract),
				Note:         "Educational example only. Not financial advice.",
				Payoff: chart.ComputePayoffSeries(book.Price, chart.OptionType(c.Type),
					c.Strike, c.MidPrice, chart.DefaultPayoffRange, chart.DefaultPayoffSamples),
			})
		}
	}

	// Best ideas across all symbols: closest to target delta, earliest expiry.
	sort.SliceStable(out, func(i, j int) bool {
		di := math.Abs(math.Abs(out[i].Contract.Delta) - targetDelta)
		dj := math.Abs(math.Abs(out[j].Contract.Delta) - targetDelta)
		if di != dj {
			return di < dj
		}
		return out[i].Contract.Expiry < out[j].Contract.Expiry
	})
	if len(out) > 3 {
		out = out[:3]
	}
	if out == nil {
		out = []Suggestion{}
	}
	return SuggestionsResponse{Suggestions: out, Note: topNote}, nil
}

// OptionIdea returns the single best affordable idea for a symbol, used by
// the sector-ideas screener. Returns nil when the chain has nothing
// affordable.
func (e *Engine) OptionIdea(ctx context.Context, symbol string, buyingPower float64) (*Suggestion, error) {
	resp, err := e.PortfolioSuggestions(ctx, SuggestionsRequest{
		BuyingPower: buyingPower,
		Positions:   []Position{{Symbol: symbol}},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Suggestions) == 0 {
		return nil, nil
	}
	return &resp.Suggestions[0], nil
}

func daysUntil(expiry string) int {
	d, err := time.Parse("2006-01-02", expiry)
	if err != nil {
		return 1
	}
	days := int(time.Until(d).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return days
}

func reasoningFor(c *Contract) []string {
	if c.Type == "CALL" {
		return []string{
			"Directional long CALL near 0.25 delta (balanced risk/reward).",
			"Breakeven = strike + premium; benefits from upside moves.",
			"Risk limited to paid premium.",
			fmt.Sprintf("Risk-neutral P(S_T > K) = %.1f%%.", c.ProbAbove*100),
		}
	}
	return []string{
		"Directional long PUT near 0.25 delta (balanced risk/reward).",
		"Breakeven = strike - premium; benefits from downside moves.",
		"Risk limited to paid premium.",
		fmt.Sprintf("Risk-neutral P(S_T < K) = %.1f%%.", (1-c.ProbAbove)*100),
	}
}
