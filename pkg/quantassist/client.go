// Package quantassist provides a Go SDK for the quantassist-server API.
package quantassist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quantassist/internal/allocation"
	"quantassist/internal/httpapi"
	"quantassist/internal/options"
	"quantassist/internal/screener"
)

// Client calls the quantassist-server HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an API client for the given base URL, e.g.
// "http://localhost:8000".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	var body struct {
		OK bool `json:"ok"`
	}
	if err := c.get(ctx, "/health", nil, &body); err != nil {
		return err
	}
	if !body.OK {
		return fmt.Errorf("quantassist: server reports not ok")
	}
	return nil
}

// Sectors retrieves live sector performance.
func (c *Client) Sectors(ctx context.Context) (screener.SectorsResponse, error) {
	var out screener.SectorsResponse
	err := c.get(ctx, "/api/screener/sectors", nil, &out)
	return out, err
}

// TopMovers retrieves the day's biggest gainers.
func (c *Client) TopMovers(ctx context.Context) (screener.TopMoversResponse, error) {
	var out screener.TopMoversResponse
	err := c.get(ctx, "/api/screener/top-movers", nil, &out)
	return out, err
}

// Scan screens the given symbols with default thresholds.
func (c *Client) Scan(ctx context.Context, symbols []string, historyDays int) (screener.ScanResponse, error) {
	q := url.Values{"symbols": {strings.Join(symbols, ",")}}
	if historyDays > 0 {
		q.Set("history_days", strconv.Itoa(historyDays))
	}
	var out screener.ScanResponse
	err := c.get(ctx, "/api/screener/scan", q, &out)
	return out, err
}

// SectorIdeas retrieves trade ideas for a sector.
func (c *Client) SectorIdeas(ctx context.Context, sector string, buyingPower float64) (screener.SectorIdeasResponse, error) {
	q := url.Values{
		"sector":       {sector},
		"buying_power": {strconv.FormatFloat(buyingPower, 'f', -1, 64)},
	}
	var out screener.SectorIdeasResponse
	err := c.get(ctx, "/api/screener/sector-ideas", q, &out)
	return out, err
}

// BestTrades retrieves option candidates for a symbol with server defaults
// for delta target and DTE window.
func (c *Client) BestTrades(ctx context.Context, symbol string, buyingPower float64) (options.BestTradesResponse, error) {
	q := url.Values{
		"symbol":       {symbol},
		"buying_power": {strconv.FormatFloat(buyingPower, 'f', -1, 64)},
	}
	var out options.BestTradesResponse
	err := c.get(ctx, "/api/options/best-trades", q, &out)
	return out, err
}

// PortfolioSuggestions requests long-option ideas for a portfolio.
func (c *Client) PortfolioSuggestions(ctx context.Context, req options.SuggestionsRequest) (options.SuggestionsResponse, error) {
	var out options.SuggestionsResponse
	err := c.post(ctx, "/api/options/portfolio-suggestions", req, &out)
	return out, err
}

// MonteCarlo runs a price simulation for a symbol.
func (c *Client) MonteCarlo(ctx context.Context, req httpapi.MonteCarloRequest) (httpapi.MonteCarloResponse, error) {
	var out httpapi.MonteCarloResponse
	err := c.post(ctx, "/api/simulator/monte-carlo", req, &out)
	return out, err
}

// EfficientFrontier samples portfolio allocations.
func (c *Client) EfficientFrontier(ctx context.Context, req allocation.Request) (allocation.Response, error) {
	var out allocation.Response
	err := c.post(ctx, "/api/allocation/efficient-frontier", req, &out)
	return out, err
}

// Watchlist retrieves the watched symbols.
func (c *Client) Watchlist(ctx context.Context) ([]string, error) {
	var out httpapi.WatchlistResponse
	if err := c.get(ctx, "/api/watchlist", nil, &out); err != nil {
		return nil, err
	}
	return out.Symbols, nil
}

// AddToWatchlist adds a symbol to the watchlist.
func (c *Client) AddToWatchlist(ctx context.Context, symbol string) error {
	return c.do(ctx, http.MethodPut, "/api/watchlist/"+url.PathEscape(symbol), nil, nil)
}

// RemoveFromWatchlist removes a symbol from the watchlist.
func (c *Client) RemoveFromWatchlist(ctx context.Context, symbol string) error {
	return c.do(ctx, http.MethodDelete, "/api/watchlist/"+url.PathEscape(symbol), nil, nil)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	p := path
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	return c.do(ctx, http.MethodGet, p, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf *bytes.Buffer
	if body != nil {
		buf = &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("quantassist: encoding request: %w", err)
		}
	}

	var reqBody io.Reader = http.NoBody
	if buf != nil {
		reqBody = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("quantassist: %s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("quantassist: %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
