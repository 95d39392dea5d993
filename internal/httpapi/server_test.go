package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quantassist/internal/options"
	"quantassist/internal/prefs"
	"quantassist/internal/quote"
	"quantassist/internal/screener"
)

// countingProvider wraps a Provider and counts QuoteBatch calls so cache
// behavior is observable.
type countingProvider struct {
	quote.Provider
	quoteBatchCalls atomic.Int64
}

func (c *countingProvider) QuoteBatch(ctx context.Context, symbols []string) ([]quote.Quote, error) {
	c.quoteBatchCalls.Add(1)
	return c.Provider.QuoteBatch(ctx, symbols)
}

func newTestServer(t *testing.T, cacheTTL time.Duration) (*Server, *countingProvider) {
	t.Helper()
	data := &countingProvider{Provider: quote.NewMockProvider()}
	spot := func(ctx context.Context, symbol string) (float64, error) {
		s, err := data.DailySeries(ctx, symbol, 365)
		if err != nil {
			return 0, err
		}
		return s.Closes[len(s.Closes)-1], nil
	}
	engine := options.NewEngine(options.NewMockChainProvider(spot), data, nil)
	scr := screener.NewService(data, engine, nil)
	return NewServer(scr, engine, data, prefs.NewMemoryStore(), cacheTTL, nil), data
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, 0)
	rec := get(t, s.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]bool
	decode(t, rec, &body)
	if !body["ok"] {
		t.Errorf("body = %v, want ok:true", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, 0)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/api/screener/sectors", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header")
	}
}

func TestSectors(t *testing.T) {
	s, _ := newTestServer(t, 0)
	rec := get(t, s.Handler(), "/api/screener/sectors")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body screener.SectorsResponse
	decode(t, rec, &body)
	if body.Changes["Technology"] != "1.23%" {
		t.Errorf("Technology = %q, want 1.23%%", body.Changes["Technology"])
	}
}

func TestSectorsCached(t *testing.T) {
	s, data := newTestServer(t, time.Minute)
	h := s.Handler()
	get(t, h, "/api/screener/sectors")
	get(t, h, "/api/screener/sectors")
	if calls := data.quoteBatchCalls.Load(); calls != 1 {
		t.Errorf("QuoteBatch called %d times with warm cache, want 1", calls)
	}
}

func TestScan(t *testing.T) {
	s, _ := newTestServer(t, 0)
	h := s.Handler()

	rec := get(t, h, "/api/screener/scan")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing symbols status = %d, want 400", rec.Code)
	}

	rec = get(t, h, "/api/screener/scan?symbols=AAPL,MSFT&history_days=90")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body screener.ScanResponse
	decode(t, rec, &body)
	if len(body.Results) != 2 {
		t.Errorf("got %d results, want 2", len(body.Results))
	}

	rec = get(t, h, "/api/screener/scan?symbols=AAPL&min_volume=abc")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad min_volume status = %d, want 400", rec.Code)
	}
}

func TestSectorIdeas(t *testing.T) {
	s, _ := newTestServer(t, 0)
	h := s.Handler()

	rec := get(t, h, "/api/screener/sector-ideas")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing sector status = %d, want 400", rec.Code)
	}

	rec = get(t, h, "/api/screener/sector-ideas?sector=Technology&buying_power=100000")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body screener.SectorIdeasResponse
	decode(t, rec, &body)
	if len(body.Ideas) == 0 || len(body.Ideas) > 3 {
		t.Errorf("got %d ideas, want 1..3", len(body.Ideas))
	}
}

func TestBestTrades(t *testing.T) {
	s, _ := newTestServer(t, 0)
	h := s.Handler()

	rec := get(t, h, "/api/options/best-trades")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing symbol status = %d, want 400", rec.Code)
	}

	rec = get(t, h, "/api/options/best-trades?symbol=AAPL&target_abs_delta=0.9")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out-of-range delta status = %d, want 400", rec.Code)
	}

	rec = get(t, h, "/api/options/best-trades?symbol=AAPL&buying_power=5000")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body options.BestTradesResponse
	decode(t, rec, &body)
	if body.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", body.Symbol)
	}
	if len(body.Candidates) == 0 || len(body.Candidates) > 8 {
		t.Errorf("got %d candidates, want 1..8", len(body.Candidates))
	}
}

func TestPortfolioSuggestions(t *testing.T) {
	s, _ := newTestServer(t, 0)
	h := s.Handler()

	rec := post(t, h, "/api/options/portfolio-suggestions", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}

	rec = post(t, h, "/api/options/portfolio-suggestions",
		`{"buying_power": 100000, "positions": [{"symbol": "AAPL", "shares": 10}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body options.SuggestionsResponse
	decode(t, rec, &body)
	if len(body.Suggestions) == 0 {
		t.Error("no suggestions returned")
	}
}

func TestMonteCarlo(t *testing.T) {
	s, _ := newTestServer(t, 0)
	h := s.Handler()

	rec := post(t, h, "/api/simulator/monte-carlo", `{"days": 30}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing symbol status = %d, want 400", rec.Code)
	}

	rec = post(t, h, "/api/simulator/monte-carlo", `{"symbol": "AAPL", "days": 20, "n_paths": 500}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body MonteCarloResponse
	decode(t, rec, &body)
	if len(body.TerminalPrices) != 500 {
		t.Errorf("got %d terminal prices, want 500", len(body.TerminalPrices))
	}
	if body.ProbTouch != nil {
		t.Error("prob_touch set without a barrier")
	}
	if !(body.Summary.P5 <= body.Summary.P50 && body.Summary.P50 <= body.Summary.P95) {
		t.Errorf("summary percentiles not ordered: %+v", body.Summary)
	}
	var total int
	for _, c := range body.Histogram.Counts {
		total += c
	}
	if total != len(body.TerminalPrices) {
		t.Errorf("histogram counts sum to %d, want %d", total, len(body.TerminalPrices))
	}

	rec = post(t, h, "/api/simulator/monte-carlo", `{"symbol": "AAPL", "days": 20, "n_paths": 500, "barrier": 1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("barrier run status = %d, want 200", rec.Code)
	}
	decode(t, rec, &body)
	if body.ProbTouch == nil {
		t.Error("prob_touch missing with barrier set")
	}
}

func TestEfficientFrontier(t *testing.T) {
	s, _ := newTestServer(t, 0)
	h := s.Handler()

	rec := post(t, h, "/api/allocation/efficient-frontier", `{"tickers": []}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty request status = %d, want 400", rec.Code)
	}

	rec = post(t, h, "/api/allocation/efficient-frontier",
		`{"tickers": ["A", "B"], "exp_returns": [0.1, 0.05], "cov": [[0.04, 0.01], [0.01, 0.02]], "seed": 3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Top []struct {
			Weights []float64 `json:"weights"`
			Sharpe  float64   `json:"sharpe"`
		} `json:"top"`
	}
	decode(t, rec, &body)
	if len(body.Top) != 25 {
		t.Errorf("got %d portfolios, want 25", len(body.Top))
	}
}

func TestWatchlistCRUD(t *testing.T) {
	s, _ := newTestServer(t, 0)
	h := s.Handler()

	rec := get(t, h, "/api/watchlist")
	var body WatchlistResponse
	decode(t, rec, &body)
	if len(body.Symbols) != 0 {
		t.Errorf("fresh watchlist = %v, want empty", body.Symbols)
	}

	for _, sym := range []string{"aapl", "NVDA"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("PUT", "/api/watchlist/"+sym, nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("PUT %s status = %d, want 204", sym, rec.Code)
		}
	}

	rec = get(t, h, "/api/watchlist")
	decode(t, rec, &body)
	if len(body.Symbols) != 2 || body.Symbols[0] != "AAPL" || body.Symbols[1] != "NVDA" {
		t.Errorf("watchlist = %v, want [AAPL NVDA]", body.Symbols)
	}

	del := httptest.NewRecorder()
	h.ServeHTTP(del, httptest.NewRequest("DELETE", "/api/watchlist/AAPL", nil))
	if del.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", del.Code)
	}

	rec = get(t, h, "/api/watchlist")
	decode(t, rec, &body)
	if len(body.Symbols) != 1 || body.Symbols[0] != "NVDA" {
		t.Errorf("after delete, watchlist = %v, want [NVDA]", body.Symbols)
	}
}

func TestPreferences(t *testing.T) {
	s, _ := newTestServer(t, 0)
	h := s.Handler()

	rec := get(t, h, "/api/preferences/theme")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unset preference status = %d, want 404", rec.Code)
	}

	put := httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/api/preferences/theme", strings.NewReader(`{"value": "dark"}`))
	h.ServeHTTP(put, req)
	if put.Code != http.StatusNoContent {
		t.Fatalf("PUT status = %d, want 204", put.Code)
	}

	rec = get(t, h, "/api/preferences/theme")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}
	var body PreferenceResponse
	decode(t, rec, &body)
	if body.Key != "theme" || body.Value != "dark" {
		t.Errorf("preference = %+v, want theme=dark", body)
	}
}

func TestStreamBroadcast(t *testing.T) {
	s, _ := newTestServer(t, 0)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing stream: %v", err)
	}
	defer conn.Close()

	// Wait for the hub to register the client before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for s.Hub().ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with hub")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.Hub().Broadcast([]byte(`{"tick": 1}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading broadcast: %v", err)
	}
	if string(msg) != `{"tick": 1}` {
		t.Errorf("got message %q", msg)
	}
}

func TestStreamReplaysLatestOnConnect(t *testing.T) {
	s, _ := newTestServer(t, 0)
	s.Hub().Broadcast([]byte(`{"snapshot": true}`))

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing stream: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading replay: %v", err)
	}
	if string(msg) != `{"snapshot": true}` {
		t.Errorf("got message %q", msg)
	}
}
