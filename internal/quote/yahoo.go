package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"quantassist/internal/util"
)

const yahooUserAgent = "Mozilla/5.0 (compatible; QuantAssistant/1.0)"

// YahooProvider implements Provider using the public Yahoo Finance JSON
// endpoints. Calls are rate limited and retried on 429.
type YahooProvider struct {
	client  *http.Client
	limiter *util.RateLimiter
}

// NewYahooProvider creates a YahooProvider with sane timeouts and a shared
// per-minute rate limit across all endpoints.
func NewYahooProvider(requestsPerMinute int) *YahooProvider {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &YahooProvider{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: util.NewRateLimiter(requestsPerMinute),
	}
}

func (p *YahooProvider) Name() string { return "yahoo" }

// getJSON performs a rate-limited GET with retries and decodes the response
// into out. 429 responses are retried with backoff like any other failure.
func (p *YahooProvider) getJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	return util.Retry(ctx, 3, 500*time.Millisecond, func() error {
		u := rawURL
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", yahooUserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("yahoo fetch: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("yahoo read body: %w", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("yahoo: 429 too many requests")
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("yahoo: status %d", resp.StatusCode)
		}
		return json.Unmarshal(body, out)
	})
}

// --- batch quotes ---

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string  `json:"symbol"`
			RegularMarketPrice         float64 `json:"regularMarketPrice"`
			RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
			ShortName                  string  `json:"shortName"`
			LongName                   string  `json:"longName"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

func (p *YahooProvider) QuoteBatch(ctx context.Context, symbols []string) ([]Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	if len(symbols) > 50 {
		symbols = symbols[:50]
	}

	var resp yahooQuoteResponse
	params := url.Values{"symbols": {strings.Join(symbols, ",")}}
	if err := p.getJSON(ctx, "https://query2.finance.yahoo.com/v7/finance/quote", params, &resp); err != nil {
		return nil, err
	}

	quotes := make([]Quote, 0, len(resp.QuoteResponse.Result))
	for _, r := range resp.QuoteResponse.Result {
		name := r.ShortName
		if name == "" {
			name = r.LongName
		}
		quotes = append(quotes, Quote{
			Symbol:        r.Symbol,
			Price:         r.RegularMarketPrice,
			ChangePercent: r.RegularMarketChangePercent,
			Name:          name,
		})
	}
	return quotes, nil
}

// --- predefined day-gainers screener ---

type yahooScreenerResponse struct {
	Finance struct {
		Result []struct {
			Quotes []struct {
				Symbol                     string  `json:"symbol"`
				RegularMarketPrice         float64 `json:"regularMarketPrice"`
				RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
				ShortName                  string  `json:"shortName"`
				LongName                   string  `json:"longName"`
			} `json:"quotes"`
		} `json:"result"`
	} `json:"finance"`
}

func (p *YahooProvider) DayGainers(ctx context.Context, count int) ([]Mover, error) {
	if count <= 0 {
		count = 24
	}

	var resp yahooScreenerResponse
	params := url.Values{
		"count":  {fmt.Sprintf("%d", count)},
		"scrIds": {"day_gainers"},
	}
	if err := p.getJSON(ctx, "https://query1.finance.yahoo.com/v1/finance/screener/predefined/saved", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Finance.Result) == 0 {
		return nil, nil
	}

	var movers []Mover
	for _, q := range resp.Finance.Result[0].Quotes {
		// Skip foreign listings with dotted symbols.
		if q.Symbol == "" || strings.Contains(q.Symbol, ".") {
			continue
		}
		name := q.ShortName
		if name == "" {
			name = q.LongName
		}
		if name == "" {
			name = q.Symbol
		}
		movers = append(movers, Mover{
			Ticker:    q.Symbol,
			Price:     q.RegularMarketPrice,
			ChangePct: fmt.Sprintf("%.2f%%", q.RegularMarketChangePercent),
			Name:      name,
		})
	}
	return movers, nil
}

// --- daily series via the chart endpoint ---

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []any `json:"close"`
					Volume []any `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// toFloat converts a JSON chart value to float64. Nulls become 0, which the
// caller skips as a missing bar.
func toFloat(v any) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}

// chartRange maps a day count to the coarse range buckets the chart endpoint
// accepts.
func chartRange(days int) string {
	switch {
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	case days <= 180:
		return "6mo"
	case days <= 365:
		return "1y"
	default:
		return "2y"
	}
}

func (p *YahooProvider) DailySeries(ctx context.Context, symbol string, days int) (Series, error) {
	var resp yahooChartResponse
	u := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s", url.PathEscape(symbol))
	params := url.Values{
		"interval": {"1d"},
		"range":    {chartRange(days)},
	}
	if err := p.getJSON(ctx, u, params, &resp); err != nil {
		return Series{}, err
	}
	if resp.Chart.Error != nil {
		return Series{}, fmt.Errorf("yahoo chart: %s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return Series{}, fmt.Errorf("yahoo chart: no data for %s", symbol)
	}

	result := resp.Chart.Result[0]
	q := result.Indicators.Quote[0]

	s := Series{Symbol: symbol}
	for i, ts := range result.Timestamp {
		if i >= len(q.Close) {
			break
		}
		c := toFloat(q.Close[i])
		if c == 0 {
			continue // null bar (holiday, halted)
		}
		var v float64
		if i < len(q.Volume) {
			v = toFloat(q.Volume[i])
		}
		s.Timestamps = append(s.Timestamps, ts)
		s.Closes = append(s.Closes, c)
		s.Volumes = append(s.Volumes, int64(v))
	}

	if len(s.Closes) == 0 {
		return Series{}, fmt.Errorf("yahoo chart: empty series for %s", symbol)
	}

	// The chart endpoint returns oldest-first already; keep it that way but
	// trim to the requested day count.
	if !sort.SliceIsSorted(s.Timestamps, func(i, j int) bool { return s.Timestamps[i] < s.Timestamps[j] }) {
		sortSeries(&s)
	}
	if days > 0 && len(s.Closes) > days {
		n := len(s.Closes)
		s.Timestamps = s.Timestamps[n-days:]
		s.Closes = s.Closes[n-days:]
		s.Volumes = s.Volumes[n-days:]
	}
	return s, nil
}

func sortSeries(s *Series) {
	idx := make([]int, len(s.Timestamps))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return s.Timestamps[idx[a]] < s.Timestamps[idx[b]] })

	ts := make([]int64, len(idx))
	cl := make([]float64, len(idx))
	vol := make([]int64, len(idx))
	for i, j := range idx {
		ts[i], cl[i], vol[i] = s.Timestamps[j], s.Closes[j], s.Volumes[j]
	}
	s.Timestamps, s.Closes, s.Volumes = ts, cl, vol
}

// --- news search ---

type yahooSearchResponse struct {
	News []struct {
		Title     string `json:"title"`
		Publisher string `json:"publisher"`
		Link      string `json:"link"`
	} `json:"news"`
}

func (p *YahooProvider) News(ctx context.Context, symbol string, limit int) ([]Headline, error) {
	if limit <= 0 {
		limit = 4
	}

	var resp yahooSearchResponse
	params := url.Values{
		"q":         {symbol},
		"newsCount": {fmt.Sprintf("%d", limit)},
	}
	if err := p.getJSON(ctx, "https://query2.finance.yahoo.com/v1/finance/search", params, &resp); err != nil {
		return nil, err
	}

	var out []Headline
	for _, n := range resp.News {
		if len(out) >= limit {
			break
		}
		out = append(out, Headline{
			Symbol:    symbol,
			Title:     n.Title,
			Publisher: n.Publisher,
			URL:       n.Link,
		})
	}
	return out, nil
}
