package screener

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"quantassist/internal/chart"
	"quantassist/internal/options"
	"quantassist/internal/quote"
)

// sectorETFs maps GICS sector names to their SPDR sector ETF.
var sectorETFs = map[string]string{
	"Materials":              "XLB",
	"Energy":                 "XLE",
	"Technology":             "XLK",
	"Consumer Discretionary": "XLY",
	"Consumer Staples":       "XLP",
	"Health Care":            "XLV",
	"Industrials":            "XLI",
	"Financials":             "XLF",
	"Utilities":              "XLU",
	"Communication Services": "XLC",
	"Real Estate":            "XLRE",
}

// sectorUniverse lists liquid large-caps per sector for idea generation.
var sectorUniverse = map[string][]string{
	"Technology":             {"AAPL", "MSFT", "NVDA", "AMD", "AVGO", "CRM", "ADBE", "QCOM"},
	"Communication Services": {"META", "GOOGL", "NFLX", "DIS"},
	"Consumer Discretionary": {"AMZN", "TSLA", "HD", "NKE"},
	"Consumer Staples":       {"WMT", "COST", "PEP", "PG"},
	"Health Care":            {"LLY", "UNH", "JNJ", "MRK", "PFE"},
	"Industrials":            {"CAT", "BA", "UNP", "GE"},
	"Financials":             {"JPM", "BAC", "V", "MA", "GS"},
	"Energy":                 {"XOM", "CVX", "SLB"},
	"Materials":              {"LIN", "APD", "FCX"},
	"Utilities":              {"NEE", "DUK", "SO"},
	"Real Estate":            {"PLD", "AMT", "EQIX"},
}

// Service implements the market screener: sector performance, top movers,
// symbol scans, and sector trade ideas.
type Service struct {
	data    quote.Provider
	options *options.Engine
	log     *slog.Logger
}

// NewService creates a screener Service.
func NewService(data quote.Provider, opts *options.Engine, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{data: data, options: opts, log: log}
}

// SectorsResponse reports live percent change per sector.
type SectorsResponse struct {
	Changes map[string]string `json:"Rank A: Real-Time Performance"`
	AsOf    string            `json:"as_of"`
}

// Sectors returns live sector performance via the SPDR ETF change percents.
func (s *Service) Sectors(ctx context.Context) (SectorsResponse, error) {
	etfs := make([]string, 0, len(sectorETFs))
	for _, etf := range sectorETFs {
		etfs = append(etfs, etf)
	}
	sort.Strings(etfs)

	quotes, err := s.data.QuoteBatch(ctx, etfs)
	if err != nil {
		return SectorsResponse{}, fmt.Errorf("sector ETF quotes: %w", err)
	}
	bySymbol := make(map[string]float64, len(quotes))
	for _, q := range quotes {
		bySymbol[q.Symbol] = q.ChangePercent
	}

	out := SectorsResponse{
		Changes: map[string]string{},
		AsOf:    time.Now().UTC().Format("2006-01-02T15:04:05Z"),
	}
	for name, etf := range sectorETFs {
		chg, ok := bySymbol[etf]
		if !ok {
			continue
		}
		out.Changes[name] = fmt.Sprintf("%.2f%%", chg)
	}
	return out, nil
}

// TopMoversResponse is the day-gainers list.
type TopMoversResponse struct {
	TopGainers []quote.Mover `json:"top_gainers"`
	Note       string        `json:"note,omitempty"`
}

// TopMovers returns up to twelve of the day's biggest gainers. Provider
// failures degrade to an empty list with a note instead of an error.
func (s *Service) TopMovers(ctx context.Context) TopMoversResponse {
	gainers, err := s.data.DayGainers(ctx, 24)
	if err != nil {
		s.log.Warn("fetching day gainers", "error", err)
		return TopMoversResponse{TopGainers: []quote.Mover{}, Note: "top gainers unavailable"}
	}
	if len(gainers) > 12 {
		gainers = gainers[:12]
	}
	return TopMoversResponse{TopGainers: gainers}
}

// ScanRequest configures a symbol scan.
type ScanRequest struct {
	Symbols        []string
	MinVolume      int64
	IncludeHistory bool
	HistoryDays    int
}

// Signals are the boolean screen outcomes for one symbol.
type Signals struct {
	TrendUp        bool `json:"trend_up"`
	Oversold       bool `json:"oversold"`
	Overbought     bool `json:"overbought"`
	MeetsMinVolume bool `json:"meets_min_volume"`
}

// ScanRow is one scanned symbol with indicators and composite score.
type ScanRow struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Volume        int64     `json:"volume"`
	EMAShort      float64   `json:"ema_short"`
	EMALong       float64   `json:"ema_long"`
	RSI           float64   `json:"rsi"`
	Mom5D         float64   `json:"mom_5d"`
	VolumeRankPct float64   `json:"volume_rank_pct"`
	Signals       Signals   `json:"signals"`
	Score         float64   `json:"score"`
	Closes        []float64 `json:"closes,omitempty"`
	Volumes       []int64   `json:"volumes,omitempty"`

	// Spark holds the close history projected into sparkline drawing
	// coordinates, ready for the dashboard to render.
	Spark []chart.Point `json:"spark,omitempty"`
}

// Sparkline viewport, matching the dashboard's row charts.
const (
	sparkWidth  = 100
	sparkHeight = 28
)

// ScanResponse holds scored scan rows, best first.
type ScanResponse struct {
	Results []ScanRow `json:"results"`
	Note    string    `json:"note,omitempty"`
}

// Scan computes trend, momentum, and RSI indicators for each requested
// symbol and ranks them by composite score. Symbols whose history cannot be
// fetched are skipped.
func (s *Service) Scan(ctx context.Context, req ScanRequest) (ScanResponse, error) {
	if req.MinVolume < 0 {
		req.MinVolume = 0
	}
	if req.HistoryDays == 0 {
		req.HistoryDays = 180
	}
	if req.HistoryDays < 30 {
		req.HistoryDays = 30
	}
	if req.HistoryDays > 400 {
		req.HistoryDays = 400
	}
	fetchDays := req.HistoryDays
	if fetchDays < 60 {
		fetchDays = 60
	}

	var rows []ScanRow
	for _, raw := range req.Symbols {
		sym := strings.ToUpper(strings.TrimSpace(raw))
		if sym == "" {
			continue
		}
		series, err := s.data.DailySeries(ctx, sym, fetchDays)
		if err != nil {
			s.log.Warn("scan history", "symbol", sym, "error", err)
			continue
		}
		if len(series.Closes) == 0 {
			continue
		}

		closes := series.Closes
		price := closes[len(closes)-1]
		var volume int64
		if len(series.Volumes) > 0 {
			volume = series.Volumes[len(series.Volumes)-1]
		}

		ema12 := last(EMA(closes, 12))
		ema26 := last(EMA(closes, 26))
		rsi := RSI14(closes)
		if math.IsNaN(rsi) {
			rsi = 50
		}
		mom5d := Momentum(closes, 5)

		score := 0.0
		if ema12 > ema26 {
			score += 0.4
		}
		if mom5d > 0 {
			score += 0.3
		}
		score += 0.3 * math.Max(0, 1-math.Abs(rsi-50)/50)

		row := ScanRow{
			Symbol:        sym,
			Price:         price,
			Volume:        volume,
			EMAShort:      ema12,
			EMALong:       ema26,
			RSI:           rsi,
			Mom5D:         mom5d,
			VolumeRankPct: 0.5,
			Signals: Signals{
				TrendUp:        ema12 > ema26,
				Oversold:       rsi < 35,
				Overbought:     rsi > 65,
				MeetsMinVolume: volume >= req.MinVolume,
			},
			Score: score,
		}
		if req.IncludeHistory {
			row.Closes = roundTail(closes, req.HistoryDays)
			row.Volumes = tailInt64(series.Volumes, req.HistoryDays)
			row.Spark = chart.NormalizePoints(row.Closes, sparkWidth, sparkHeight)
		}
		rows = append(rows, row)
	}

	ranked := chart.RankTopK(rows, func(r ScanRow) float64 { return r.Score }, len(rows))
	if ranked == nil {
		ranked = []ScanRow{}
	}
	return ScanResponse{Results: ranked}, nil
}

// Idea is one sector trade idea, either an option contract or a plain share
// buy when options are unavailable or unaffordable.
type Idea struct {
	Symbol         string             `json:"symbol"`
	Mode           string             `json:"mode"` // OPTION or SHARES
	UnderPrice     float64            `json:"under_price"`
	Contract       *options.Contract  `json:"suggestion,omitempty"`
	CostEstimate   float64            `json:"cost_estimate,omitempty"`
	Sim            *options.PLSummary `json:"sim,omitempty"`
	Reasoning      []string           `json:"reasoning,omitempty"`
	Explanation    string             `json:"explanation,omitempty"`
	ThoughtProcess []string           `json:"thought_process,omitempty"`
	Confidence     int                `json:"confidence"`
	ProbUp20D      float64            `json:"share_probability_up_20d,omitempty"`
	Note           string             `json:"note,omitempty"`
}

// SectorIdeasResponse is the click-through payload for one sector.
type SectorIdeasResponse struct {
	Sector string           `json:"sector"`
	Ideas  []Idea           `json:"ideas"`
	News   []quote.Headline `json:"news"`
	Note   string           `json:"note,omitempty"`
}

// SectorIdeas returns up to three trade ideas for a sector plus related
// headlines. Option ideas come first; when fewer than three are affordable
// the list is topped up with share-buy ideas.
func (s *Service) SectorIdeas(ctx context.Context, sector string, buyingPower float64) (SectorIdeasResponse, error) {
	sector = strings.TrimSpace(sector)
	tickers := sectorUniverse[sector]
	if len(tickers) == 0 {
		return SectorIdeasResponse{
			Sector: sector,
			Ideas:  []Idea{},
			News:   []quote.Headline{},
			Note:   "Unknown or unsupported sector.",
		}, nil
	}

	var ideas []Idea
	if s.options != nil {
		for _, t := range tickers {
			sug, err := s.options.OptionIdea(ctx, t, buyingPower)
			if err != nil {
				s.log.Warn("sector option idea", "symbol", t, "error", err)
				continue
			}
			if sug == nil || sug.Contract == nil {
				continue
			}
			ideas = append(ideas, Idea{
				Symbol:       sug.Symbol,
				Mode:         "OPTION",
				UnderPrice:   sug.UnderPrice,
				Contract:     sug.Contract,
				CostEstimate: sug.CostEstimate,
				Sim:          sug.Sim,
				Reasoning:    sug.Reasoning,
				Confidence:   optionConfidence(sug.Sim),
				Note:         sug.Note,
			})
			if len(ideas) >= 6 {
				break
			}
		}
	}

	if len(ideas) < 3 {
		ideas = s.topUpWithShares(ctx, tickers, ideas)
	}

	sort.SliceStable(ideas, func(i, j int) bool {
		if ideas[i].Confidence != ideas[j].Confidence {
			return ideas[i].Confidence > ideas[j].Confidence
		}
		mi, mj := medianPL(ideas[i].Sim), medianPL(ideas[j].Sim)
		if mi != mj {
			return mi > mj
		}
		return ideas[i].ProbUp20D > ideas[j].ProbUp20D
	})
	if len(ideas) > 3 {
		ideas = ideas[:3]
	}
	if ideas == nil {
		ideas = []Idea{}
	}

	var symbols []string
	for _, i := range ideas {
		symbols = append(symbols, i.Symbol)
	}
	return SectorIdeasResponse{
		Sector: sector,
		Ideas:  ideas,
		News:   s.newsFor(ctx, symbols, 4),
	}, nil
}

// topUpWithShares appends share-buy ideas for tickers not already covered,
// until three ideas exist or the universe is exhausted.
func (s *Service) topUpWithShares(ctx context.Context, tickers []string, ideas []Idea) []Idea {
	have := map[string]bool{}
	for _, i := range ideas {
		have[i.Symbol] = true
	}
	for _, t := range tickers {
		if len(ideas) >= 3 {
			break
		}
		if have[t] {
			continue
		}
		series, err := s.data.DailySeries(ctx, t, 365)
		if err != nil || len(series.Closes) < 60 {
			continue
		}
		pUp := ProbUpOverHorizon(series.Closes, 20)
		conf := int(math.Max(30, math.Min(80, pUp*100)))
		ideas = append(ideas, Idea{
			Symbol:     t,
			Mode:       "SHARES",
			UnderPrice: series.Closes[len(series.Closes)-1],
			Explanation: fmt.Sprintf("This is a share buy idea. Over ~20 trading days, "+
				"based on last year's moves, there's about a %.1f%% "+
				"chance it ends higher than today.", pUp*100),
			ThoughtProcess: []string{
				"Fallback to shares due to thin/expensive options or rate limits.",
				"Used 1-year daily returns to estimate 20-day probability of gain.",
			},
			Confidence: conf,
			ProbUp20D:  pUp,
		})
		have[t] = true
	}
	return ideas
}

func (s *Service) newsFor(ctx context.Context, symbols []string, limit int) []quote.Headline {
	out := []quote.Headline{}
	for i, sym := range symbols {
		if i >= 3 {
			break
		}
		headlines, err := s.data.News(ctx, sym, limit)
		if err != nil {
			s.log.Warn("fetching news", "symbol", sym, "error", err)
			continue
		}
		if len(headlines) > 2 {
			headlines = headlines[:2]
		}
		out = append(out, headlines...)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// optionConfidence maps a simulated profit probability to the same 30..80
// confidence band share ideas use, defaulting to the midpoint without a sim.
func optionConfidence(sim *options.PLSummary) int {
	if sim == nil {
		return 50
	}
	return int(math.Max(30, math.Min(80, sim.ProbProfit*100)))
}

func medianPL(sim *options.PLSummary) float64 {
	if sim == nil {
		return -9999
	}
	return sim.P50
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}

func roundTail(xs []float64, n int) []float64 {
	if len(xs) > n {
		xs = xs[len(xs)-n:]
	}
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = math.Round(v*100) / 100
	}
	return out
}

func tailInt64(xs []int64, n int) []int64 {
	if len(xs) > n {
		xs = xs[len(xs)-n:]
	}
	out := make([]int64, len(xs))
	copy(out, xs)
	return out
}
