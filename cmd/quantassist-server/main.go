package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"quantassist/internal/config"
	"quantassist/internal/httpapi"
	"quantassist/internal/options"
	"quantassist/internal/prefs"
	"quantassist/internal/quote"
	"quantassist/internal/refresh"
	"quantassist/internal/screener"
	"quantassist/internal/store"
	"quantassist/internal/util"
)

func main() {
	// Local development credentials, ignored when absent.
	godotenv.Load()

	cfgPath := "config/quantassist.yaml"
	if p := os.Getenv("QUANTASSIST_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	// Market data provider: deterministic mock unless credentials are set.
	var data quote.Provider
	if cfg.MockOnly() {
		data = quote.NewMockProvider()
	} else {
		var base quote.Provider = quote.NewYahooProvider(60)
		if cfg.Providers.AlpacaKey != "" && cfg.Providers.AlpacaSecret != "" {
			base = quote.NewAlpacaProvider(
				cfg.Providers.AlpacaKey,
				cfg.Providers.AlpacaSecret,
				cfg.Providers.AlpacaDataURL,
				base,
			)
		}
		data = base
	}
	logger.Info("market data provider selected", "provider", data.Name())

	// Settings store: SQLite under the data dir unless configured elsewhere.
	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(cfg.Storage.DataDir, "settings.db")
	}
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0o755); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}
	settings, err := prefs.NewSQLiteStore(sqlitePath)
	if err != nil {
		log.Fatalf("opening settings store: %v", err)
	}
	defer settings.Close()

	seriesStore := store.NewSeriesStore(cfg.Storage.DataDir)

	// Option chains are synthesized around the live spot price.
	spot := func(ctx context.Context, symbol string) (float64, error) {
		s, err := data.DailySeries(ctx, symbol, 30)
		if err != nil {
			return 0, err
		}
		if len(s.Closes) == 0 {
			return 0, fmt.Errorf("no history for %s", symbol)
		}
		return s.Closes[len(s.Closes)-1], nil
	}
	engine := options.NewEngine(options.NewMockChainProvider(spot), data, logger)
	scr := screener.NewService(data, engine, logger)

	srv := httpapi.NewServer(scr, engine, data, settings,
		time.Duration(cfg.Cache.TTLSeconds)*time.Second, logger)

	recorder := refresh.NewRecorder(data, scr, seriesStore, settings, srv.Hub(), logger)
	if err := recorder.Start(
		cfg.Refresh.SnapshotCron,
		cfg.Refresh.PushEnabled,
		time.Duration(cfg.Refresh.PushInterval)*time.Millisecond,
	); err != nil {
		log.Fatalf("starting refresh jobs: %v", err)
	}
	defer recorder.Stop()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info("quantassist server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
