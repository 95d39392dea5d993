// Package quote fetches market data (batch quotes, day gainers, daily price
// history, and headlines) from upstream providers behind a single interface.
package quote

import "context"

// Quote is a single symbol's latest price and intraday change.
type Quote struct {
	Symbol        string
	Price         float64
	ChangePercent float64
	Name          string
}

// Mover is one row of a top-gainers list.
type Mover struct {
	Ticker    string  `json:"ticker"`
	Price     float64 `json:"price"`
	ChangePct string  `json:"change_percentage"`
	Name      string  `json:"name"`
}

// Series is daily close/volume history for a symbol, oldest first.
type Series struct {
	Symbol     string
	Timestamps []int64 // Unix seconds
	Closes     []float64
	Volumes    []int64
}

// Headline is a single news item attached to a symbol.
type Headline struct {
	Symbol    string `json:"symbol"`
	Title     string `json:"title"`
	Publisher string `json:"publisher"`
	URL       string `json:"url,omitempty"`
}

// Provider fetches market data from an upstream source.
type Provider interface {
	// QuoteBatch returns latest quotes for up to 50 symbols in one call.
	QuoteBatch(ctx context.Context, symbols []string) ([]Quote, error)

	// DayGainers returns today's top gaining US equities.
	DayGainers(ctx context.Context, count int) ([]Mover, error)

	// DailySeries returns up to days daily bars of close/volume history.
	DailySeries(ctx context.Context, symbol string, days int) (Series, error)

	// News returns recent headlines mentioning the symbol.
	News(ctx context.Context, symbol string, limit int) ([]Headline, error)

	// Name identifies the provider in logs.
	Name() string
}
