// Package taskindex builds prefix-bucketed lookups over reference task
// filenames, globally from the reference list and per user from the
// JSON-lines assignment file.
package taskindex

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"declink/internal/normalize"
)

// PrefixLength is the bucket key length in characters. Surnames, which make
// up most filenames, are rarely shorter.
const PrefixLength = 3

// ErrMalformedLine marks a user task line that cannot be decoded.
var ErrMalformedLine = errors.New("malformed user task line")

// ErrBadEncoding marks a task file line that is not valid UTF-8.
var ErrBadEncoding = errors.New("invalid UTF-8")

// Entry is one reference task.
type Entry struct {
	Filename string // normalized
	Task     string // original, trimmed
}

// Index maps a filename prefix to its candidates in insertion order.
type Index struct {
	buckets map[string][]Entry
	size    int
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{buckets: make(map[string][]Entry)}
}

// Add normalizes task and appends it to its prefix bucket.
func (ix *Index) Add(task string) Entry {
	task = strings.TrimSpace(task)
	e := Entry{Filename: normalize.Filename(task), Task: task}
	key := Prefix(e.Filename)
	ix.buckets[key] = append(ix.buckets[key], e)
	ix.size++
	return e
}

// Candidates returns the bucket for prefix. ok is false when the index has
// no such bucket.
func (ix *Index) Candidates(prefix string) (entries []Entry, ok bool) {
	if ix == nil {
		return nil, false
	}
	entries, ok = ix.buckets[prefix]
	return entries, ok
}

// Has reports whether a bucket exists for prefix.
func (ix *Index) Has(prefix string) bool {
	_, ok := ix.Candidates(prefix)
	return ok
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return ix.size
}

// Buckets returns the number of distinct prefixes.
func (ix *Index) Buckets() int {
	if ix == nil {
		return 0
	}
	return len(ix.buckets)
}

// Prefix returns the bucket key of a normalized filename.
func Prefix(filename string) string {
	return normalize.Prefix(filename, PrefixLength)
}

// Counter counts normalized task filenames across the reference list.
type Counter map[string]int

// Count returns how often filename occurs.
func (c Counter) Count(filename string) int {
	return c[filename]
}

// Ambiguous reports whether filename names more than one reference task.
func (c Counter) Ambiguous(filename string) bool {
	return c[filename] > 1
}

// Duplicates returns the number of filenames occurring more than once.
func (c Counter) Duplicates() int {
	n := 0
	for _, v := range c {
		if v > 1 {
			n++
		}
	}
	return n
}

// Reference is the global task list.
type Reference struct {
	Index  *Index
	Counts Counter
}

// ParseReference reads one task per line; blank lines are skipped.
func ParseReference(r io.Reader) (*Reference, error) {
	ref := &Reference{Index: NewIndex(), Counts: Counter{}}
	sc := newScanner(r)
	n := 0
	for sc.Scan() {
		n++
		if !utf8.Valid(sc.Bytes()) {
			return nil, fmt.Errorf("tasks line %d: %w", n, ErrBadEncoding)
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		e := ref.Index.Add(line)
		ref.Counts[e.Filename]++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}
	return ref, nil
}

// LoadReference parses the reference task file at path.
func LoadReference(path string) (*Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseReference(f)
}

// UserIndex holds one Index per normalized email.
type UserIndex map[string]*Index

// Lookup returns the index of email, normalizing it first.
func (u UserIndex) Lookup(email string) (*Index, bool) {
	ix, ok := u[normalize.Email(email)]
	return ix, ok
}

// Tasks returns the total number of user task entries.
func (u UserIndex) Tasks() int {
	n := 0
	for _, ix := range u {
		n += ix.Len()
	}
	return n
}

type userTasksLine struct {
	Email *string   `json:"email"`
	Files *[]string `json:"files"`
}

// ParseUserTasks reads JSON lines of the form {"email": ..., "files": [...]}.
// Repeated emails accumulate into the same index.
func ParseUserTasks(r io.Reader) (UserIndex, error) {
	users := UserIndex{}
	sc := newScanner(r)
	n := 0
	for sc.Scan() {
		n++
		if !utf8.Valid(sc.Bytes()) {
			return nil, fmt.Errorf("user tasks line %d: %w", n, ErrBadEncoding)
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ut userTasksLine
		if err := json.Unmarshal([]byte(line), &ut); err != nil {
			return nil, fmt.Errorf("%w %d: %v", ErrMalformedLine, n, err)
		}
		if ut.Email == nil {
			return nil, fmt.Errorf("%w %d: missing email", ErrMalformedLine, n)
		}
		if ut.Files == nil {
			return nil, fmt.Errorf("%w %d: missing files", ErrMalformedLine, n)
		}
		email := normalize.Email(*ut.Email)
		ix, ok := users[email]
		if !ok {
			ix = NewIndex()
			users[email] = ix
		}
		for _, task := range *ut.Files {
			ix.Add(task)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read user tasks: %w", err)
	}
	return users, nil
}

// LoadUserTasks parses the JSON-lines user task file at path.
func LoadUserTasks(path string) (UserIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseUserTasks(f)
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	buf := make([]byte, 0, 1024*1024)
	sc.Buffer(buf, 20*1024*1024)
	return sc
}
