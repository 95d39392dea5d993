// Package prefs persists user settings: named preferences and the
// watchlist shown on the dashboard.
package prefs

import "context"

// Store is the persistence port for user settings. Implementations must be
// safe for concurrent use.
type Store interface {
	// GetPreference returns the stored value for key, or ok=false when unset.
	GetPreference(ctx context.Context, key string) (value string, ok bool, err error)
	// SetPreference stores value under key, replacing any previous value.
	SetPreference(ctx context.Context, key, value string) error
	// AllPreferences returns every stored key/value pair.
	AllPreferences(ctx context.Context) (map[string]string, error)

	// Watchlist returns the watched symbols in insertion order.
	Watchlist(ctx context.Context) ([]string, error)
	// AddSymbol adds a symbol to the watchlist; adding an existing symbol
	// is a no-op.
	AddSymbol(ctx context.Context, symbol string) error
	// RemoveSymbol deletes a symbol from the watchlist; removing an absent
	// symbol is a no-op.
	RemoveSymbol(ctx context.Context, symbol string) error

	Close() error
}
