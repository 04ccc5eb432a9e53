package repository

import (
	"sort"
	"strings"
	"time"
)

// Horizon represents a forecast lookahead duration.
type Horizon string

const (
	H1h  Horizon = "1h"
	H4h  Horizon = "4h"
	H24h Horizon = "24h"
	H7d  Horizon = "7d"
)

var horizonHours = map[Horizon]int{
	H1h:  1,
	H4h:  4,
	H24h: 24,
	H7d:  24 * 7,
}

// IsValidHorizon returns true if h is a supported horizon.
func IsValidHorizon(h Horizon) bool {
	_, ok := horizonHours[h]
	return ok
}

// Hours returns the horizon length in hours, or 0 for unknown horizons.
func (h Horizon) Hours() int { return horizonHours[h] }

// Duration returns the horizon as a time.Duration.
func (h Horizon) Duration() time.Duration {
	return time.Duration(h.Hours()) * time.Hour
}

// DefaultHorizons returns all supported horizons, shortest first.
func DefaultHorizons() []Horizon {
	return []Horizon{H1h, H4h, H24h, H7d}
}

// NormalizeHorizons deduplicates while preserving request order. Unknown
// entries are reported in the second return value.
func NormalizeHorizons(raw []string) ([]Horizon, []string) {
	seen := make(map[Horizon]bool, len(raw))
	out := make([]Horizon, 0, len(raw))
	var unknown []string
	for _, s := range raw {
		h := Horizon(strings.ToLower(strings.TrimSpace(s)))
		if !IsValidHorizon(h) {
			unknown = append(unknown, s)
			continue
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out, unknown
}

// CacheKeyHorizons renders the horizon set in a canonical (sorted) order so
// that requests differing only in horizon order share a cache entry.
func CacheKeyHorizons(hs []Horizon) string {
	cp := make([]string, len(hs))
	for i, h := range hs {
		cp[i] = string(h)
	}
	sort.Slice(cp, func(i, j int) bool {
		return Horizon(cp[i]).Hours() < Horizon(cp[j]).Hours()
	})
	return strings.Join(cp, ",")
}
