package quote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// AlpacaProvider serves daily history from the Alpaca market-data API and
// delegates the endpoints Alpaca has no equivalent for (batch change quotes,
// the day-gainers screener, news search) to a fallback provider.
type AlpacaProvider struct {
	client   *marketdata.Client
	fallback Provider
}

// NewAlpacaProvider creates an AlpacaProvider with the given credentials.
// fallback handles quotes, gainers, and news; it must not be nil.
func NewAlpacaProvider(apiKey, apiSecret, dataURL string, fallback Provider) *AlpacaProvider {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaProvider{
		client:   marketdata.NewClient(opts),
		fallback: fallback,
	}
}

func (p *AlpacaProvider) Name() string { return "alpaca" }

func (p *AlpacaProvider) QuoteBatch(ctx context.Context, symbols []string) ([]Quote, error) {
	return p.fallback.QuoteBatch(ctx, symbols)
}

func (p *AlpacaProvider) DayGainers(ctx context.Context, count int) ([]Mover, error) {
	return p.fallback.DayGainers(ctx, count)
}

func (p *AlpacaProvider) News(ctx context.Context, symbol string, limit int) ([]Headline, error) {
	return p.fallback.News(ctx, symbol, limit)
}

// DailySeries fetches daily IEX-feed bars going back far enough to cover the
// requested day count including weekends and holidays.
func (p *AlpacaProvider) DailySeries(ctx context.Context, symbol string, days int) (Series, error) {
	if ctx.Err() != nil {
		return Series{}, ctx.Err()
	}
	if days <= 0 {
		days = 180
	}

	symbol = strings.ToUpper(symbol)
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -(days*7/5 + 10)) // calendar days per trading day

	bars, err := p.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      "iex",
	})
	if err != nil {
		return Series{}, fmt.Errorf("alpaca GetBars %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return Series{}, fmt.Errorf("alpaca: no bars for %s", symbol)
	}

	s := Series{Symbol: symbol}
	for _, b := range bars {
		s.Timestamps = append(s.Timestamps, b.Timestamp.Unix())
		s.Closes = append(s.Closes, b.Close)
		s.Volumes = append(s.Volumes, int64(b.Volume))
	}
	if len(s.Closes) > days {
		n := len(s.Closes)
		s.Timestamps = s.Timestamps[n-days:]
		s.Closes = s.Closes[n-days:]
		s.Volumes = s.Volumes[n-days:]
	}
	return s, nil
}
