// Package record holds the positional schema of a declarant filing row and
// the accepted Record the linker produces from it.
//
// Column positions only live in Schema; everything downstream addresses
// cells through its named roles.
package record

import (
	"fmt"
	"sort"
	"strconv"
)

// Derived column names, serialized after the kept source columns in this order.
const (
	ColLink                = "link"
	ColHash                = "hash"
	ColNotFoundInUserTasks = "not_found_in_user_tasks"
	ColAmbiguous           = "ambiguous"
	ColNameNormalized      = "name_normalized"
	ColNameTroublesome     = "name_troublesome"
)

// DerivedColumns lists the derived header in output order.
var DerivedColumns = []string{
	ColLink, ColHash, ColNotFoundInUserTasks, ColAmbiguous, ColNameNormalized, ColNameTroublesome,
}

// Role selects the cleaning rules for one column.
type Role int

const (
	RoleText Role = iota
	RoleBoolean
	RoleYear
	RoleCapitalized
)

func (r Role) String() string {
	switch r {
	case RoleBoolean:
		return "boolean"
	case RoleYear:
		return "year"
	case RoleCapitalized:
		return "capitalized"
	default:
		return "text"
	}
}

// Schema maps named column roles to source column indices.
type Schema struct {
	Filename    int   `yaml:"filename"`
	Email       int   `yaml:"email"`
	Name        int   `yaml:"name"`
	Boolean     []int `yaml:"boolean"`
	Capitalize  []int `yaml:"capitalize"`
	Year        []int `yaml:"year"`
	NonHashable []int `yaml:"non_hashable"`
	Drop        []int `yaml:"drop"`
}

// DefaultSchema returns the column layout of the declarant spreadsheet.
func DefaultSchema() Schema {
	return Schema{
		Filename:   1,
		Email:      4,
		Name:       11,
		Boolean:    []int{2, 313, 315},
		Capitalize: []int{13, 14},
		Year: []int{
			3, 187, 191, 195, 199, 203, 207, 211, 215, 219, 223, 227, 231, 235, 239,
			243, 245, 247, 249, 251, 253, 255, 257, 259, 261, 263, 265, 267, 269, 271,
		},
		NonHashable: []int{0, 1, 2, 3, 4, 312, 313, 314, 315, 316, 317},
		Drop:        []int{5, 6, 7, 8, 9, 10},
	}
}

// Role returns the cleaning role of column i. Boolean wins over year, year
// over capitalized.
func (s Schema) Role(i int) Role {
	switch {
	case contains(s.Boolean, i):
		return RoleBoolean
	case contains(s.Year, i):
		return RoleYear
	case contains(s.Capitalize, i):
		return RoleCapitalized
	default:
		return RoleText
	}
}

// Hashable reports whether column i takes part in the fingerprint.
func (s Schema) Hashable(i int) bool {
	return !contains(s.NonHashable, i) && !contains(s.Drop, i)
}

// Validate checks that the identifying columns are set and that no index is
// negative.
func (s Schema) Validate() error {
	for name, i := range map[string]int{"filename": s.Filename, "email": s.Email, "name": s.Name} {
		if i < 0 {
			return fmt.Errorf("column %s: negative index %d", name, i)
		}
		if contains(s.Drop, i) {
			return fmt.Errorf("column %s: index %d is also dropped", name, i)
		}
	}
	for _, list := range [][]int{s.Boolean, s.Capitalize, s.Year, s.NonHashable, s.Drop} {
		for _, i := range list {
			if i < 0 {
				return fmt.Errorf("negative column index %d", i)
			}
		}
	}
	return nil
}

// Layout projects cells for output by removing dropped columns.
func (s Schema) Layout() Layout {
	drop := make(map[int]bool, len(s.Drop))
	for _, i := range s.Drop {
		drop[i] = true
	}
	return Layout{drop: drop}
}

// Record is one accepted row with its derived linkage fields.
type Record struct {
	Line                int
	Cells               []string
	Link                string
	Hash                string
	NotFoundInUserTasks bool
	Ambiguous           bool
	NameNormalized      string
	NameTroublesome     bool
}

// Cell returns cell i or "" for short rows.
func (r *Record) Cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

// Derived returns the derived fields in DerivedColumns order.
func (r *Record) Derived() []string {
	return []string{
		r.Link,
		r.Hash,
		strconv.FormatBool(r.NotFoundInUserTasks),
		strconv.FormatBool(r.Ambiguous),
		r.NameNormalized,
		strconv.FormatBool(r.NameTroublesome),
	}
}

// Invalid is a rejected row kept for operator inspection.
type Invalid struct {
	Line   int
	Reason string
	Cells  []string
}

// Layout drops configured columns from rows on their way out.
type Layout struct {
	drop map[int]bool
}

// Header projects the source header and appends the derived column names.
func (l Layout) Header(source []string) []string {
	return append(l.Project(source), DerivedColumns...)
}

// Project removes dropped columns from cells.
func (l Layout) Project(cells []string) []string {
	out := make([]string, 0, len(cells))
	for i, c := range cells {
		if l.drop[i] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Row renders a record as kept source cells followed by its derived fields.
func (l Layout) Row(r *Record) []string {
	return append(l.Project(r.Cells), r.Derived()...)
}

// Rows renders every record.
func (l Layout) Rows(recs []*Record) [][]string {
	out := make([][]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, l.Row(r))
	}
	return out
}

// Decode reads records back from a processed table written with Layout.Row.
// Source cells are the columns in front of the derived block.
func Decode(header []string, rows [][]string) ([]*Record, error) {
	pos := make(map[string]int, len(DerivedColumns))
	for i, h := range header {
		for _, d := range DerivedColumns {
			if h == d {
				pos[d] = i
			}
		}
	}
	for _, d := range DerivedColumns {
		if _, ok := pos[d]; !ok {
			return nil, fmt.Errorf("processed header lacks %q column", d)
		}
	}
	start := len(header)
	for _, i := range pos {
		if i < start {
			start = i
		}
	}

	recs := make([]*Record, 0, len(rows))
	for n, row := range rows {
		get := func(col string) string {
			if i := pos[col]; i < len(row) {
				return row[i]
			}
			return ""
		}
		cells := row
		if len(cells) > start {
			cells = cells[:start]
		}
		recs = append(recs, &Record{
			Line:                n + 1,
			Cells:               append([]string(nil), cells...),
			Link:                get(ColLink),
			Hash:                get(ColHash),
			NotFoundInUserTasks: get(ColNotFoundInUserTasks) == "true",
			Ambiguous:           get(ColAmbiguous) == "true",
			NameNormalized:      get(ColNameNormalized),
			NameTroublesome:     get(ColNameTroublesome) == "true",
		})
	}
	return recs, nil
}

// DecodedHeader returns the source part of a processed header.
func DecodedHeader(header []string) []string {
	for i, h := range header {
		if h == ColLink {
			return append([]string(nil), header[:i]...)
		}
	}
	return append([]string(nil), header...)
}

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Columns returns a sorted copy of idx without duplicates.
func Columns(idx ...int) []int {
	seen := make(map[int]struct{}, len(idx))
	out := make([]int, 0, len(idx))
	for _, i := range idx {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
