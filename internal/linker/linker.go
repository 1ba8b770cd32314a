// Package linker links cleaned declarant rows to reference tasks by fuzzy
// filename similarity and computes their content fingerprints.
package linker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/cespare/xxhash/v2"

	"declink/internal/normalize"
	"declink/internal/record"
	"declink/internal/taskindex"
)

// DefaultMinUnlinkedName is the shortest name that lets a row without a
// task bucket survive unlinked.
const DefaultMinUnlinkedName = 10

const (
	nameFragments   = 3
	fingerprintJoin = ":"
)

// Reason classifies a rejected row.
type Reason string

const (
	ReasonNoIdentity   Reason = "no_identity"
	ReasonNoLinkSignal Reason = "no_link_signal"
)

// ErrInvalidRow matches every *ValidationError.
var ErrInvalidRow = errors.New("invalid row")

// ValidationError rejects a single row; the batch continues.
type ValidationError struct {
	Line   int
	Reason Reason
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonNoIdentity:
		return fmt.Sprintf("line %d: neither name nor filename present", e.Line)
	case ReasonNoLinkSignal:
		return fmt.Sprintf("line %d: no task candidates and name too short", e.Line)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidRow }

// Options tune a Linker.
type Options struct {
	// MinUnlinkedName defaults to DefaultMinUnlinkedName.
	MinUnlinkedName int
	// Metric defaults to Jaro-Winkler.
	Metric strutil.StringMetric
}

// Linker resolves rows against a global reference and per-user indices.
// It is read-only after construction.
type Linker struct {
	schema  record.Schema
	ref     *taskindex.Reference
	users   taskindex.UserIndex
	minName int
	metric  strutil.StringMetric
}

// New returns a Linker. users may be nil.
func New(schema record.Schema, ref *taskindex.Reference, users taskindex.UserIndex, opts Options) *Linker {
	if opts.MinUnlinkedName <= 0 {
		opts.MinUnlinkedName = DefaultMinUnlinkedName
	}
	if opts.Metric == nil {
		opts.Metric = metrics.NewJaroWinkler()
	}
	if ref == nil {
		ref = &taskindex.Reference{Index: taskindex.NewIndex(), Counts: taskindex.Counter{}}
	}
	return &Linker{schema: schema, ref: ref, users: users, minName: opts.MinUnlinkedName, metric: opts.Metric}
}

// Link normalizes a cleaned row and augments it with its task link and
// fingerprint. cells is not modified. A rejected row yields a
// *ValidationError.
func (l *Linker) Link(line int, cells []string) (*record.Record, error) {
	rec := &record.Record{Line: line, Cells: widen(cells, l.width())}
	name := rec.Cells[l.schema.Name]
	filename := rec.Cells[l.schema.Filename]
	if name == "" && filename == "" {
		return nil, &ValidationError{Line: line, Reason: ReasonNoIdentity}
	}

	name = normalize.CapWords(name)
	filename = normalize.Filename(filename)
	email := normalize.Email(rec.Cells[l.schema.Email])
	rec.Cells[l.schema.Name] = name
	rec.Cells[l.schema.Filename] = filename
	rec.Cells[l.schema.Email] = email

	fragments := strings.Split(normalize.Name(name), " ")
	for i, f := range fragments {
		fragments[i] = normalize.TitleCase(f)
	}
	if len(fragments) > nameFragments {
		rec.NameNormalized = strings.Join(fragments[:nameFragments], " ")
	} else {
		rec.NameNormalized = strings.Join(fragments, " ")
	}
	rec.NameTroublesome = len(fragments) != nameFragments
	rec.NotFoundInUserTasks = true

	prefix := taskindex.Prefix(filename)
	source := l.ref.Index
	if ix, ok := l.users.Lookup(email); ok && ix.Has(prefix) {
		// Beta tasks are missing from the user file; those fall back to the
		// global list.
		source = ix
		rec.NotFoundInUserTasks = false
	}

	if candidates, ok := source.Candidates(prefix); ok {
		rec.Link = l.best(filename, candidates).Task
	} else if utf8.RuneCountInString(name) < l.minName {
		return nil, &ValidationError{Line: line, Reason: ReasonNoLinkSignal}
	}

	if rec.Link != "" {
		rec.Ambiguous = l.ref.Counts.Ambiguous(normalize.Filename(rec.Link))
	}
	rec.Hash = l.Fingerprint(rec)
	return rec, nil
}

// best returns the candidate with the highest similarity. Equal scores
// prefer the greater task string; full ties keep the earlier entry.
func (l *Linker) best(filename string, candidates []taskindex.Entry) taskindex.Entry {
	best := candidates[0]
	bestScore := strutil.Similarity(filename, best.Filename, l.metric)
	for _, c := range candidates[1:] {
		score := strutil.Similarity(filename, c.Filename, l.metric)
		if score > bestScore || (score == bestScore && c.Task > best.Task) {
			best, bestScore = c, score
		}
	}
	return best
}

// Fingerprint hashes the semantically meaningful cells of rec together with
// its link and normalized name.
func (l *Linker) Fingerprint(rec *record.Record) string {
	parts := make([]string, 0, len(rec.Cells)+2)
	for i, c := range rec.Cells {
		if l.schema.Hashable(i) {
			parts = append(parts, c)
		}
	}
	parts = append(parts, rec.Link, rec.NameNormalized)
	return strconv.FormatUint(xxhash.Sum64String(strings.Join(parts, fingerprintJoin)), 16)
}

func (l *Linker) width() int {
	w := l.schema.Filename
	if l.schema.Email > w {
		w = l.schema.Email
	}
	if l.schema.Name > w {
		w = l.schema.Name
	}
	return w + 1
}

func widen(cells []string, width int) []string {
	n := len(cells)
	if n < width {
		n = width
	}
	out := make([]string, n)
	copy(out, cells)
	return out
}

// Result separates accepted records from rejected ones.
type Result struct {
	Accepted []*record.Record
	Invalid  []record.Invalid
}

// Reasons counts rejected rows per reason.
func (r Result) Reasons() map[string]int {
	out := make(map[string]int)
	for _, inv := range r.Invalid {
		out[inv.Reason]++
	}
	return out
}

// LinkAll links every row. clean is applied to each raw row first; rejected
// rows keep their raw cells. Lines are numbered from 1.
func (l *Linker) LinkAll(rows [][]string, clean func([]string) []string) Result {
	var res Result
	for i, raw := range rows {
		cells := raw
		if clean != nil {
			cells = clean(raw)
		}
		rec, err := l.Link(i+1, cells)
		if err != nil {
			var verr *ValidationError
			reason := "invalid"
			if errors.As(err, &verr) {
				reason = string(verr.Reason)
			}
			res.Invalid = append(res.Invalid, record.Invalid{Line: i + 1, Reason: reason, Cells: raw})
			continue
		}
		res.Accepted = append(res.Accepted, rec)
	}
	return res
}
