// Package group clusters linked records for manual review.
package group

import (
	"sort"

	"declink/internal/record"
)

// Kind names the signal a group was formed on.
type Kind string

const (
	KindName      Kind = "name"
	KindLink      Kind = "link"
	KindUnmatched Kind = "unmatched"
)

// Group is a non-empty ordered set of records sharing a key. The unmatched
// group has an empty key.
type Group struct {
	Kind    Kind
	Key     string
	Records []*record.Record
}

// Stats counts what each grouping pass did.
type Stats struct {
	Input       int
	NameGroups  int
	NameRecords int
	Attached    int
	LinkGroups  int
	LinkRecords int
	Unmatched   int
}

// Groups is the total number of output groups.
func (s Stats) Groups() int {
	n := s.NameGroups + s.LinkGroups
	if s.Unmatched > 0 {
		n++
	}
	return n
}

// ByNameAndLink groups records in three passes: by repeated normalized
// name, then by attaching the rest to a name group that already holds their
// link, then by link among the orphans. Orphans without a link end up in a
// trailing unmatched group. Every record lands in exactly one group.
func ByNameAndLink(recs []*record.Record) ([]Group, Stats) {
	st := Stats{Input: len(recs)}

	names := make(map[string]int, len(recs))
	for _, r := range recs {
		names[r.NameNormalized]++
	}

	var groups []Group
	byName := make(map[string]int)
	var rest []*record.Record
	for _, r := range recs {
		if r.NameNormalized == "" || names[r.NameNormalized] < 2 {
			rest = append(rest, r)
			continue
		}
		i, ok := byName[r.NameNormalized]
		if !ok {
			i = len(groups)
			byName[r.NameNormalized] = i
			groups = append(groups, Group{Kind: KindName, Key: r.NameNormalized})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	st.NameGroups = len(groups)
	st.NameRecords = len(recs) - len(rest)

	// First name group, in creation order, that holds each link.
	linked := make(map[string]int)
	for i, g := range groups {
		for _, r := range g.Records {
			if _, ok := linked[r.Link]; !ok && r.Link != "" {
				linked[r.Link] = i
			}
		}
	}
	var orphans, unmatched []*record.Record
	for _, r := range rest {
		if r.Link == "" {
			unmatched = append(unmatched, r)
			continue
		}
		if i, ok := linked[r.Link]; ok {
			groups[i].Records = append(groups[i].Records, r)
			st.Attached++
			continue
		}
		orphans = append(orphans, r)
	}

	links := runs(orphans, 1)
	st.LinkGroups = len(links)
	st.LinkRecords = len(orphans)
	groups = append(groups, links...)

	if len(unmatched) > 0 {
		groups = append(groups, Group{Kind: KindUnmatched, Records: unmatched})
		st.Unmatched = len(unmatched)
	}
	return groups, st
}

// ByLink groups records by link, sorted by link, keeping groups of at least
// minSize records. Records with an empty link form their own group like any
// other key.
func ByLink(recs []*record.Record, minSize int) []Group {
	return runs(recs, minSize)
}

func runs(recs []*record.Record, minSize int) []Group {
	sorted := append([]*record.Record(nil), recs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Link < sorted[j].Link })

	var out []Group
	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && sorted[end].Link == sorted[start].Link {
			end++
		}
		if end-start >= minSize {
			out = append(out, Group{Kind: KindLink, Key: sorted[start].Link, Records: sorted[start:end:end]})
		}
		start = end
	}
	return out
}

// Records flattens groups back into one slice.
func Records(groups []Group) []*record.Record {
	var out []*record.Record
	for _, g := range groups {
		out = append(out, g.Records...)
	}
	return out
}
