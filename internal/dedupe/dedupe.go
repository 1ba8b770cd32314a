// Package dedupe collapses records with identical content fingerprints.
package dedupe

import (
	"fmt"
	"sort"

	"declink/internal/record"
)

// Strategy selects how duplicates are collapsed.
type Strategy string

const (
	// StrategySorted orders the output by fingerprint.
	StrategySorted Strategy = "sorted"
	// StrategyFirstSeen keeps input order.
	StrategyFirstSeen Strategy = "first_seen"
)

// ParseStrategy validates a configured strategy name. Empty means sorted.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategySorted:
		return StrategySorted, nil
	case StrategyFirstSeen:
		return StrategyFirstSeen, nil
	}
	return "", fmt.Errorf("unknown dedupe strategy %q", s)
}

// Apply runs the strategy.
func Apply(s Strategy, recs []*record.Record) []*record.Record {
	if s == StrategyFirstSeen {
		return FirstSeen(recs)
	}
	return Sorted(recs)
}

// Sorted stable-sorts a copy of recs by fingerprint and keeps the first
// record of every run of equal fingerprints.
func Sorted(recs []*record.Record) []*record.Record {
	rs := append([]*record.Record(nil), recs...)
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Hash < rs[j].Hash })
	out := make([]*record.Record, 0, len(rs))
	for i, r := range rs {
		if i > 0 && r.Hash == rs[i-1].Hash {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FirstSeen keeps the first record of every fingerprint in input order.
func FirstSeen(recs []*record.Record) []*record.Record {
	seen := make(map[string]struct{}, len(recs))
	out := make([]*record.Record, 0, len(recs))
	for _, r := range recs {
		if _, ok := seen[r.Hash]; ok {
			continue
		}
		seen[r.Hash] = struct{}{}
		out = append(out, r)
	}
	return out
}
