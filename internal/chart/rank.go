package chart

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// RankTopK returns the top k rows sorted descending by key. The sort is
// stable: rows with equal keys keep their input order. A NaN key ranks below
// every other key. The input slice is not mutated.
func RankTopK[T any](rows []T, key func(T) float64, k int) []T {
	out := make([]T, len(rows))
	copy(out, rows)

	rank := func(t T) float64 {
		v := key(t)
		if math.IsNaN(v) {
			return math.Inf(-1)
		}
		return v
	}

	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i]) > rank(out[j])
	})

	if k < 0 {
		k = 0
	}
	if k > len(out) {
		k = len(out)
	}
	return out[:k]
}

// ParsePercent parses a percentage string like "1.23%" or "+5.26%" into its
// numeric value. Malformed input yields NaN; callers filter with
// math.IsNaN / IsInf rather than handling an error.
func ParsePercent(raw string) float64 {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
