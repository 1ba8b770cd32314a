// Package report renders the Markdown profile of a processing run.
package report

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"declink/internal/group"
	"declink/internal/record"
)

const topN = 10

// Count is a value with its number of occurrences.
type Count struct {
	Value string
	N     int
}

// Output is a written artifact.
type Output struct {
	Kind  string
	Path  string
	Bytes int64
}

// Stat fills Bytes from the file on disk. Errors leave it at zero.
func (o Output) Stat() Output {
	if fi, err := os.Stat(o.Path); err == nil {
		o.Bytes = fi.Size()
	}
	return o
}

// Records holds the counts derived from accepted records.
type Records struct {
	Accepted            int
	Unlinked            int
	Ambiguous           int
	NotFoundInUserTasks int
	Troublesome         int
	DuplicateHashes     int
	TopAmbiguous        []Count
}

// Collect counts the linkage outcomes of recs.
func Collect(recs []*record.Record) Records {
	r := Records{Accepted: len(recs)}
	hashes := make(map[string]int, len(recs))
	ambiguous := make(map[string]int)
	for _, rec := range recs {
		if rec.Link == "" {
			r.Unlinked++
		}
		if rec.Ambiguous {
			r.Ambiguous++
			ambiguous[rec.Link]++
		}
		if rec.NotFoundInUserTasks {
			r.NotFoundInUserTasks++
		}
		if rec.NameTroublesome {
			r.Troublesome++
		}
		hashes[rec.Hash]++
	}
	for _, n := range hashes {
		if n > 1 {
			r.DuplicateHashes += n - 1
		}
	}
	r.TopAmbiguous = top(ambiguous, topN)
	return r
}

// Summary is everything a run reports.
type Summary struct {
	RunID     string
	Started   time.Time
	Finished  time.Time
	Source    string
	Tasks     string
	UserTasks string

	ReferenceTasks   int
	ReferenceBuckets int
	DuplicateTasks   int
	Users            int
	UserFiles        int

	RowsRead int
	Invalid  map[string]int
	Records  Records

	DedupeStrategy string
	Deduped        int

	Groups *group.Stats

	Outputs []Output
}

// InvalidTotal sums invalid rows over every reason.
func (s Summary) InvalidTotal() int {
	n := 0
	for _, v := range s.Invalid {
		n += v
	}
	return n
}

func num(v int) string { return humanize.Comma(int64(v)) }

// Build renders s as Markdown.
func Build(s Summary) string {
	lines := []string{
		"# declink run profile",
		"",
	}
	if s.RunID != "" {
		lines = append(lines, fmt.Sprintf("- Run: `%s`", s.RunID))
	}
	if !s.Started.IsZero() {
		lines = append(lines, fmt.Sprintf("- Started: %s", s.Started.Format("2006-01-02 15:04:05")))
		if !s.Finished.IsZero() {
			lines = append(lines, fmt.Sprintf("- Duration: %s", s.Finished.Sub(s.Started).Round(time.Millisecond)))
		}
	}
	lines = append(lines,
		"",
		"## Inputs",
		fmt.Sprintf("- Source: `%s`", s.Source),
		fmt.Sprintf("- Tasks: `%s` (%s tasks, %s prefix buckets, %s repeated names)",
			s.Tasks, num(s.ReferenceTasks), num(s.ReferenceBuckets), num(s.DuplicateTasks)),
		fmt.Sprintf("- User tasks: `%s` (%s users, %s files)", s.UserTasks, num(s.Users), num(s.UserFiles)),
		"",
		"## Linking",
		fmt.Sprintf("- Rows read: %s", num(s.RowsRead)),
		fmt.Sprintf("- Accepted: %s", num(s.Records.Accepted)),
		fmt.Sprintf("- Invalid: %s", num(s.InvalidTotal())),
	)
	reasons := make([]string, 0, len(s.Invalid))
	for k := range s.Invalid {
		reasons = append(reasons, k)
	}
	sort.Strings(reasons)
	for _, k := range reasons {
		lines = append(lines, fmt.Sprintf("  - `%s`: %s", k, num(s.Invalid[k])))
	}
	lines = append(lines,
		fmt.Sprintf("- Unlinked (kept, empty link): %s", num(s.Records.Unlinked)),
		fmt.Sprintf("- Ambiguous links: %s", num(s.Records.Ambiguous)),
		fmt.Sprintf("- Not found in user tasks: %s", num(s.Records.NotFoundInUserTasks)),
		fmt.Sprintf("- Troublesome names: %s", num(s.Records.Troublesome)),
		fmt.Sprintf("- Repeated fingerprints: %s", num(s.Records.DuplicateHashes)),
		"",
	)

	if len(s.Records.TopAmbiguous) > 0 {
		lines = append(lines, fmt.Sprintf("## Ambiguous links (top %d)", topN))
		for _, c := range s.Records.TopAmbiguous {
			lines = append(lines, fmt.Sprintf("- `%s`: %s", c.Value, num(c.N)))
		}
		lines = append(lines, "")
	}

	lines = append(lines, "## Deduplication")
	if s.DedupeStrategy == "" {
		lines = append(lines, "- Disabled")
	} else {
		lines = append(lines,
			fmt.Sprintf("- Strategy: `%s`", s.DedupeStrategy),
			fmt.Sprintf("- Dropped: %s", num(s.Deduped)),
		)
	}
	lines = append(lines, "")

	if g := s.Groups; g != nil {
		lines = append(lines,
			"## Grouping",
			fmt.Sprintf("- Groups: %s", num(g.Groups())),
			fmt.Sprintf("- By name: %s groups, %s records", num(g.NameGroups), num(g.NameRecords)),
			fmt.Sprintf("- Attached by link: %s records", num(g.Attached)),
			fmt.Sprintf("- By link: %s groups, %s records", num(g.LinkGroups), num(g.LinkRecords)),
			fmt.Sprintf("- Unmatched: %s records", num(g.Unmatched)),
			"",
		)
	}

	if len(s.Outputs) > 0 {
		lines = append(lines, "## Outputs")
		for _, o := range s.Outputs {
			lines = append(lines, fmt.Sprintf("- %s: `%s` (%s)", o.Kind, o.Path, humanize.Bytes(uint64(o.Bytes))))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func top(counts map[string]int, n int) []Count {
	items := make([]Count, 0, len(counts))
	for k, v := range counts {
		items = append(items, Count{Value: k, N: v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].N == items[j].N {
			return items[i].Value < items[j].Value
		}
		return items[i].N > items[j].N
	})
	if len(items) > n {
		items = items[:n]
	}
	return items
}
