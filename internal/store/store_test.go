package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"quantassist/internal/quote"
)

func TestSeriesPath(t *testing.T) {
	s := NewSeriesStore("/data")
	got := s.seriesPath("aapl")
	want := filepath.Join("/data", "snapshots", "AAPL.parquet")
	if got != want {
		t.Errorf("seriesPath = %s, want %s", got, want)
	}
}

func TestWriteReadSeries(t *testing.T) {
	s := NewSeriesStore(t.TempDir())
	ctx := context.Background()

	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	series := quote.Series{
		Symbol:     "aapl",
		Timestamps: []int64{base.Unix(), base.AddDate(0, 0, 1).Unix(), base.AddDate(0, 0, 2).Unix()},
		Closes:     []float64{190.5, 192.1, 191.3},
		Volumes:    []int64{1_000_000, 1_200_000, 900_000},
	}
	if err := s.WriteSeries(ctx, series); err != nil {
		t.Fatalf("WriteSeries: %v", err)
	}

	got, err := s.ReadSeries(ctx, "AAPL", 0)
	if err != nil {
		t.Fatalf("ReadSeries: %v", err)
	}
	if got.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", got.Symbol)
	}
	if len(got.Closes) != 3 || got.Closes[1] != 192.1 {
		t.Errorf("Closes = %v", got.Closes)
	}
	if len(got.Timestamps) != 3 || got.Timestamps[0] != base.Unix() {
		t.Errorf("Timestamps = %v", got.Timestamps)
	}
	if got.Volumes[2] != 900_000 {
		t.Errorf("Volumes = %v", got.Volumes)
	}
}

func TestWriteSeriesMergesByTimestamp(t *testing.T) {
	s := NewSeriesStore(t.TempDir())
	ctx := context.Background()

	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	first := quote.Series{
		Symbol:     "MSFT",
		Timestamps: []int64{base.Unix(), base.AddDate(0, 0, 1).Unix()},
		Closes:     []float64{400, 401},
		Volumes:    []int64{1, 2},
	}
	if err := s.WriteSeries(ctx, first); err != nil {
		t.Fatalf("first WriteSeries: %v", err)
	}

	// Overlapping write: revises day two, appends day three.
	second := quote.Series{
		Symbol:     "MSFT",
		Timestamps: []int64{base.AddDate(0, 0, 1).Unix(), base.AddDate(0, 0, 2).Unix()},
		Closes:     []float64{405, 410},
		Volumes:    []int64{3, 4},
	}
	if err := s.WriteSeries(ctx, second); err != nil {
		t.Fatalf("second WriteSeries: %v", err)
	}

	got, err := s.ReadSeries(ctx, "MSFT", 0)
	if err != nil {
		t.Fatalf("ReadSeries: %v", err)
	}
	if len(got.Closes) != 3 {
		t.Fatalf("got %d bars after merge, want 3", len(got.Closes))
	}
	wantCloses := []float64{400, 405, 410}
	for i, w := range wantCloses {
		if got.Closes[i] != w {
			t.Errorf("Closes[%d] = %v, want %v", i, got.Closes[i], w)
		}
	}
}

func TestReadSeriesTrimsToDays(t *testing.T) {
	s := NewSeriesStore(t.TempDir())
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := quote.Series{Symbol: "NVDA"}
	for i := 0; i < 10; i++ {
		series.Timestamps = append(series.Timestamps, base.AddDate(0, 0, i).Unix())
		series.Closes = append(series.Closes, float64(100+i))
		series.Volumes = append(series.Volumes, int64(i))
	}
	if err := s.WriteSeries(ctx, series); err != nil {
		t.Fatalf("WriteSeries: %v", err)
	}

	got, err := s.ReadSeries(ctx, "NVDA", 4)
	if err != nil {
		t.Fatalf("ReadSeries: %v", err)
	}
	if len(got.Closes) != 4 {
		t.Fatalf("got %d bars, want 4", len(got.Closes))
	}
	if got.Closes[0] != 106 || got.Closes[3] != 109 {
		t.Errorf("trimmed Closes = %v, want most recent four", got.Closes)
	}
}

func TestReadSeriesMissingFile(t *testing.T) {
	s := NewSeriesStore(t.TempDir())
	if _, err := s.ReadSeries(context.Background(), "NOPE", 10); err == nil {
		t.Error("expected error for missing snapshot")
	}
}

func TestHasFreshAndListSymbols(t *testing.T) {
	s := NewSeriesStore(t.TempDir())
	ctx := context.Background()

	if s.HasFresh("AAPL", time.Hour) {
		t.Error("HasFresh true before any write")
	}

	series := quote.Series{
		Symbol:     "AAPL",
		Timestamps: []int64{time.Now().Unix()},
		Closes:     []float64{190},
		Volumes:    []int64{1},
	}
	if err := s.WriteSeries(ctx, series); err != nil {
		t.Fatalf("WriteSeries: %v", err)
	}

	if !s.HasFresh("aapl", time.Hour) {
		t.Error("HasFresh false right after write")
	}
	if s.HasFresh("AAPL", -time.Second) {
		t.Error("HasFresh true with negative max age")
	}

	symbols, err := s.ListSymbols()
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 1 || symbols[0] != "AAPL" {
		t.Errorf("ListSymbols = %v, want [AAPL]", symbols)
	}
}
