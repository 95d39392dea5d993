// Package refresh runs the background jobs that keep the dashboard warm: a
// cron-driven snapshot recorder and a configurable sub-minute push loop.
package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"quantassist/internal/chart"
	"quantassist/internal/poll"
	"quantassist/internal/prefs"
	"quantassist/internal/quote"
	"quantassist/internal/screener"
	"quantassist/internal/store"
)

// Broadcaster receives serialized snapshots for fan-out to connected
// dashboard clients.
type Broadcaster interface {
	Broadcast(msg []byte)
}

// Snapshot is the periodic dashboard payload.
type Snapshot struct {
	AsOf          string                     `json:"as_of"`
	Sectors       screener.SectorsResponse   `json:"sectors"`
	LeadingSector string                     `json:"leading_sector,omitempty"`
	TopGainers    screener.TopMoversResponse `json:"top_movers"`
	Watchlist     []quote.Quote              `json:"watchlist"`
}

// Recorder periodically assembles dashboard snapshots, pushes them to the
// stream hub, and persists watchlist history to the series store.
type Recorder struct {
	data     quote.Provider
	screener *screener.Service
	series   *store.SeriesStore
	settings prefs.Store
	hub      Broadcaster
	log      *slog.Logger

	cron   *cron.Cron
	poller *poll.Scheduler
}

// NewRecorder creates a Recorder. series may be nil to skip persistence.
func NewRecorder(
	data quote.Provider,
	scr *screener.Service,
	series *store.SeriesStore,
	settings prefs.Store,
	hub Broadcaster,
	log *slog.Logger,
) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		data:     data,
		screener: scr,
		series:   series,
		settings: settings,
		hub:      hub,
		log:      log,
		cron:     cron.New(),
	}
}

// Start registers the snapshot job on the cron spec and begins the quote
// push loop. An immediate snapshot is taken so clients connecting right
// after startup see data.
func (r *Recorder) Start(cronSpec string, pushEnabled bool, pushInterval time.Duration) error {
	if _, err := r.cron.AddFunc(cronSpec, r.SnapshotNow); err != nil {
		return fmt.Errorf("registering snapshot job: %w", err)
	}
	r.cron.Start()

	r.poller = poll.New(r.pushQuotes, pushInterval, pushEnabled)
	r.poller.Start()

	go r.SnapshotNow()
	r.log.Info("refresh jobs started", "cron", cronSpec, "push_enabled", pushEnabled, "push_interval", pushInterval)
	return nil
}

// Stop halts the cron schedule and the push loop. In-flight jobs complete.
func (r *Recorder) Stop() {
	if r.poller != nil {
		r.poller.Stop()
	}
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info("refresh jobs stopped")
}

// SetPush reconfigures the quote push loop at runtime.
func (r *Recorder) SetPush(enabled bool, interval time.Duration) {
	if r.poller == nil {
		return
	}
	r.poller.SetInterval(interval)
	r.poller.SetEnabled(enabled)
}

// SnapshotNow assembles and broadcasts a full dashboard snapshot, then
// persists watchlist history.
func (r *Recorder) SnapshotNow() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap := Snapshot{AsOf: time.Now().UTC().Format(time.RFC3339)}

	sectors, err := r.screener.Sectors(ctx)
	if err != nil {
		r.log.Warn("snapshot sectors", "error", err)
	} else {
		snap.Sectors = sectors
		snap.LeadingSector = leadingSector(sectors.Changes)
	}
	snap.TopGainers = r.screener.TopMovers(ctx)

	symbols := r.watchlistSymbols(ctx)
	if len(symbols) > 0 {
		quotes, err := r.data.QuoteBatch(ctx, symbols)
		if err != nil {
			r.log.Warn("snapshot watchlist quotes", "error", err)
		} else {
			snap.Watchlist = quotes
		}
	}

	r.broadcast(snap)
	r.persistWatchlist(ctx, symbols)
}

// pushQuotes broadcasts a lightweight watchlist-only update between full
// snapshots.
func (r *Recorder) pushQuotes() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	symbols := r.watchlistSymbols(ctx)
	if len(symbols) == 0 {
		return
	}
	quotes, err := r.data.QuoteBatch(ctx, symbols)
	if err != nil {
		r.log.Warn("pushing watchlist quotes", "error", err)
		return
	}

	msg, err := json.Marshal(map[string]any{
		"as_of":     time.Now().UTC().Format(time.RFC3339),
		"watchlist": quotes,
	})
	if err != nil {
		r.log.Error("encoding quote push", "error", err)
		return
	}
	r.hub.Broadcast(msg)
}

// leadingSector returns the sector with the highest percent change.
// Malformed change strings rank last.
func leadingSector(changes map[string]string) string {
	type row struct {
		name string
		chg  float64
	}
	rows := make([]row, 0, len(changes))
	for name, raw := range changes {
		rows = append(rows, row{name: name, chg: chart.ParsePercent(raw)})
	}
	top := chart.RankTopK(rows, func(r row) float64 { return r.chg }, 1)
	if len(top) == 0 {
		return ""
	}
	return top[0].name
}

func (r *Recorder) watchlistSymbols(ctx context.Context) []string {
	symbols, err := r.settings.Watchlist(ctx)
	if err != nil {
		r.log.Warn("reading watchlist", "error", err)
		return nil
	}
	return symbols
}

func (r *Recorder) broadcast(snap Snapshot) {
	msg, err := json.Marshal(snap)
	if err != nil {
		r.log.Error("encoding snapshot", "error", err)
		return
	}
	r.hub.Broadcast(msg)
}

// persistWatchlist writes recent daily history for each watched symbol so
// the screener can serve it while providers are down.
func (r *Recorder) persistWatchlist(ctx context.Context, symbols []string) {
	if r.series == nil {
		return
	}
	for _, sym := range symbols {
		if r.series.HasFresh(sym, 12*time.Hour) {
			continue
		}
		series, err := r.data.DailySeries(ctx, sym, 365)
		if err != nil {
			r.log.Warn("fetching history for snapshot", "symbol", sym, "error", err)
			continue
		}
		if err := r.series.WriteSeries(ctx, series); err != nil {
			r.log.Warn("persisting history", "symbol", sym, "error", err)
		}
	}
}
