// Package store persists daily close snapshots as Parquet files so the
// dashboard can serve history while upstream providers are down or rate
// limited.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"quantassist/internal/quote"
)

// SeriesRecord is the Parquet schema for one daily close.
type SeriesRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// SeriesStore reads and writes per-symbol daily history under a data
// directory. Layout: <DataDir>/snapshots/<SYMBOL>.parquet
type SeriesStore struct {
	DataDir string
}

// NewSeriesStore creates a SeriesStore rooted at the given data directory.
func NewSeriesStore(dataDir string) *SeriesStore {
	return &SeriesStore{DataDir: dataDir}
}

// WriteSeries merges the series into the symbol's snapshot file,
// deduplicating by timestamp with incoming bars winning.
func (s *SeriesStore) WriteSeries(_ context.Context, series quote.Series) error {
	if len(series.Closes) == 0 {
		return nil
	}

	incoming := make([]SeriesRecord, 0, len(series.Closes))
	for i, c := range series.Closes {
		rec := SeriesRecord{Symbol: strings.ToUpper(series.Symbol), Close: c}
		if i < len(series.Timestamps) {
			rec.Timestamp = series.Timestamps[i] * 1000
		}
		if i < len(series.Volumes) {
			rec.Volume = series.Volumes[i]
		}
		incoming = append(incoming, rec)
	}

	path := s.seriesPath(series.Symbol)
	existing, _ := readParquetFile[SeriesRecord](path)
	merged := mergeSeriesRecords(existing, incoming)

	if err := writeParquetFile(path, merged); err != nil {
		return fmt.Errorf("writing snapshot for %s: %w", series.Symbol, err)
	}
	return nil
}

// ReadSeries loads the symbol's snapshot, trimmed to the most recent days
// bars. Missing files return an error so callers can fall through to a live
// provider.
func (s *SeriesStore) ReadSeries(_ context.Context, symbol string, days int) (quote.Series, error) {
	records, err := readParquetFile[SeriesRecord](s.seriesPath(symbol))
	if err != nil {
		return quote.Series{}, fmt.Errorf("reading snapshot for %s: %w", symbol, err)
	}
	if days > 0 && len(records) > days {
		records = records[len(records)-days:]
	}

	out := quote.Series{Symbol: strings.ToUpper(symbol)}
	for _, r := range records {
		out.Timestamps = append(out.Timestamps, r.Timestamp/1000)
		out.Closes = append(out.Closes, r.Close)
		out.Volumes = append(out.Volumes, r.Volume)
	}
	return out, nil
}

// HasFresh reports whether the symbol's snapshot exists and was written
// within maxAge.
func (s *SeriesStore) HasFresh(symbol string, maxAge time.Duration) bool {
	info, err := os.Stat(s.seriesPath(symbol))
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) <= maxAge
}

// ListSymbols lists all symbols with a snapshot on disk.
func (s *SeriesStore) ListSymbols() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "snapshots"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".parquet") {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(name, ".parquet"))
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (s *SeriesStore) seriesPath(symbol string) string {
	return filepath.Join(s.DataDir, "snapshots", strings.ToUpper(symbol)+".parquet")
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeSeriesRecords deduplicates by timestamp, preferring incoming records,
// and returns the result in timestamp order.
func mergeSeriesRecords(existing, incoming []SeriesRecord) []SeriesRecord {
	seen := make(map[int64]SeriesRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]SeriesRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
