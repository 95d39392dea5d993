// Package httpapi serves the Quant Assistant dashboard HTTP API.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quantassist/internal/allocation"
	"quantassist/internal/chart"
	"quantassist/internal/montecarlo"
	"quantassist/internal/options"
	"quantassist/internal/prefs"
	"quantassist/internal/quote"
	"quantassist/internal/screener"
)

// Server serves the dashboard HTTP API.
type Server struct {
	screener *screener.Service
	engine   *options.Engine
	data     quote.Provider
	settings prefs.Store
	log      *slog.Logger

	cache *ttlCache
	hub   *Hub
}

// NewServer creates a dashboard API server. cacheTTL <= 0 disables response
// caching.
func NewServer(
	scr *screener.Service,
	engine *options.Engine,
	data quote.Provider,
	settings prefs.Store,
	cacheTTL time.Duration,
	log *slog.Logger,
) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		screener: scr,
		engine:   engine,
		data:     data,
		settings: settings,
		log:      log,
		cache:    newTTLCache(cacheTTL),
		hub:      NewHub(log),
	}
}

// Hub exposes the websocket hub so background jobs can push snapshots.
func (s *Server) Hub() *Hub { return s.hub }

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	mux.HandleFunc("GET /api/screener/sectors", s.handleSectors)
	mux.HandleFunc("GET /api/screener/top-movers", s.handleTopMovers)
	mux.HandleFunc("GET /api/screener/scan", s.handleScan)
	mux.HandleFunc("GET /api/screener/sector-ideas", s.handleSectorIdeas)

	mux.HandleFunc("GET /api/options/best-trades", s.handleBestTrades)
	mux.HandleFunc("POST /api/options/portfolio-suggestions", s.handleSuggestions)

	mux.HandleFunc("POST /api/simulator/monte-carlo", s.handleMonteCarlo)
	mux.HandleFunc("POST /api/allocation/efficient-frontier", s.handleFrontier)

	mux.HandleFunc("GET /api/watchlist", s.handleGetWatchlist)
	mux.HandleFunc("PUT /api/watchlist/{symbol}", s.handleAddWatchlist)
	mux.HandleFunc("DELETE /api/watchlist/{symbol}", s.handleRemoveWatchlist)

	mux.HandleFunc("GET /api/preferences/{key}", s.handleGetPreference)
	mux.HandleFunc("PUT /api/preferences/{key}", s.handleSetPreference)

	mux.HandleFunc("GET /api/stream", s.handleStream)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// queryFloat parses a float query param, falling back to def when absent.
func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"message": "Quant Assistant API"})
}

func (s *Server) handleSectors(w http.ResponseWriter, r *http.Request) {
	if v, ok := s.cache.get("sectors"); ok {
		writeJSON(w, v)
		return
	}
	resp, err := s.screener.Sectors(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "sector data unavailable")
		return
	}
	s.cache.set("sectors", resp)
	writeJSON(w, resp)
}

func (s *Server) handleTopMovers(w http.ResponseWriter, r *http.Request) {
	if v, ok := s.cache.get("top-movers"); ok {
		writeJSON(w, v)
		return
	}
	// TopMovers degrades to an empty list with a note, never an error.
	resp := s.screener.TopMovers(r.Context())
	s.cache.set("top-movers", resp)
	writeJSON(w, resp)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if strings.TrimSpace(raw) == "" {
		writeError(w, http.StatusBadRequest, "symbols required")
		return
	}
	minVolume, err := queryInt(r, "min_volume", 1_000_000)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	includeHistory, err := queryInt(r, "include_history", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	historyDays, err := queryInt(r, "history_days", 180)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.screener.Scan(r.Context(), screener.ScanRequest{
		Symbols:        strings.Split(raw, ","),
		MinVolume:      int64(minVolume),
		IncludeHistory: includeHistory != 0,
		HistoryDays:    historyDays,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, "scan failed")
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleSectorIdeas(w http.ResponseWriter, r *http.Request) {
	sector := r.URL.Query().Get("sector")
	if strings.TrimSpace(sector) == "" {
		writeError(w, http.StatusBadRequest, "sector required")
		return
	}
	buyingPower, err := queryFloat(r, "buying_power", 3000)
	if err != nil || buyingPower < 0 {
		writeError(w, http.StatusBadRequest, "invalid buying_power")
		return
	}

	resp, err := s.screener.SectorIdeas(r.Context(), sector, buyingPower)
	if err != nil {
		writeError(w, http.StatusBadGateway, "sector ideas unavailable")
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleBestTrades(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	buyingPower, err := queryFloat(r, "buying_power", 5000)
	if err != nil || buyingPower < 0 {
		writeError(w, http.StatusBadRequest, "invalid buying_power")
		return
	}
	targetDelta, err := queryFloat(r, "target_abs_delta", 0.25)
	if err != nil || targetDelta < 0.05 || targetDelta > 0.5 {
		writeError(w, http.StatusBadRequest, "invalid target_abs_delta")
		return
	}
	minDTE, err := queryInt(r, "min_dte", 7)
	if err != nil || minDTE < 1 {
		writeError(w, http.StatusBadRequest, "invalid min_dte")
		return
	}
	maxDTE, err := queryInt(r, "max_dte", 45)
	if err != nil || maxDTE < 5 {
		writeError(w, http.StatusBadRequest, "invalid max_dte")
		return
	}
	limit, err := queryInt(r, "limit", 8)
	if err != nil || limit < 1 || limit > 20 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	resp, err := s.engine.BestTrades(r.Context(), options.BestTradesRequest{
		Symbol:         symbol,
		BuyingPower:    buyingPower,
		TargetAbsDelta: targetDelta,
		MinDTE:         minDTE,
		MaxDTE:         maxDTE,
		Limit:          limit,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, "option chain unavailable")
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	var req options.SuggestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BuyingPower < 0 {
		writeError(w, http.StatusBadRequest, "invalid buying_power")
		return
	}

	resp, err := s.engine.PortfolioSuggestions(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "suggestions unavailable")
		return
	}
	writeJSON(w, resp)
}

// MonteCarloRequest is the simulator request body.
type MonteCarloRequest struct {
	Symbol  string   `json:"symbol"`
	Days    int      `json:"days"`
	NPaths  int      `json:"n_paths"`
	Barrier *float64 `json:"barrier,omitempty"`
}

// MonteCarloSummary reports the terminal-price percentiles and the estimated
// drift/volatility used for the simulation.
type MonteCarloSummary struct {
	P5       float64 `json:"p5"`
	P50      float64 `json:"p50"`
	P95      float64 `json:"p95"`
	MuAnn    float64 `json:"mu_ann"`
	SigmaAnn float64 `json:"sigma_ann"`
}

// MonteCarloResponse is the simulator payload: raw terminal prices plus a
// pre-binned histogram for charting.
type MonteCarloResponse struct {
	TerminalPrices []float64         `json:"terminal_prices"`
	ProbTouch      *float64          `json:"prob_touch,omitempty"`
	Summary        MonteCarloSummary `json:"summary"`
	Histogram      chart.Histogram   `json:"histogram"`
}

func (s *Server) handleMonteCarlo(w http.ResponseWriter, r *http.Request) {
	var req MonteCarloRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	if req.Days <= 0 {
		req.Days = 30
	}
	if req.NPaths <= 0 {
		req.NPaths = montecarlo.DefaultPaths
	}

	series, err := s.data.DailySeries(r.Context(), strings.ToUpper(req.Symbol), 1250)
	if err != nil || len(series.Closes) == 0 {
		writeError(w, http.StatusBadGateway, "price history unavailable")
		return
	}
	mu, sigma, err := montecarlo.EstimateAnnualized(series.Closes)
	if err != nil {
		writeError(w, http.StatusBadGateway, "insufficient history")
		return
	}

	res, err := montecarlo.Simulate(montecarlo.Config{
		S0:      series.Closes[len(series.Closes)-1],
		Mu:      mu,
		Sigma:   sigma,
		Days:    req.Days,
		NPaths:  req.NPaths,
		Barrier: req.Barrier,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ps := montecarlo.Percentiles(res.TerminalPrices, 5, 50, 95)
	hist, err := chart.BinHistogram(res.TerminalPrices, chart.DefaultBinCount)
	if err != nil {
		writeError(w, http.StatusBadGateway, "simulation produced no paths")
		return
	}

	resp := MonteCarloResponse{
		TerminalPrices: res.TerminalPrices,
		Summary: MonteCarloSummary{
			P5:       ps[0],
			P50:      ps[1],
			P95:      ps[2],
			MuAnn:    mu,
			SigmaAnn: sigma,
		},
		Histogram: hist,
	}
	if res.HasBarrier {
		pt := res.ProbTouch
		resp.ProbTouch = &pt
	}
	writeJSON(w, resp)
}

func (s *Server) handleFrontier(w http.ResponseWriter, r *http.Request) {
	var req allocation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := allocation.EfficientFrontier(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, resp)
}

// WatchlistResponse lists the watched symbols.
type WatchlistResponse struct {
	Symbols []string `json:"symbols"`
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.settings.Watchlist(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read watchlist")
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, WatchlistResponse{Symbols: symbols})
}

func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if err := s.settings.AddSymbol(r.Context(), symbol); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to add %s", symbol))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if err := s.settings.RemoveSymbol(r.Context(), symbol); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to remove %s", symbol))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreferenceResponse is one stored key/value pair.
type PreferenceResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleGetPreference(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, ok, err := s.settings.GetPreference(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read preference")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("preference %s not set", key))
		return
	}
	writeJSON(w, PreferenceResponse{Key: key, Value: value})
}

func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.settings.SetPreference(r.Context(), key, body.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store preference")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
