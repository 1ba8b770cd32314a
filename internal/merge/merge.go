// Package merge folds the manually reviewed exports of the review workbook
// back into one table.
package merge

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"declink/internal/tabular"
)

var (
	// ErrRowCount is returned when movables has more rows than original.
	ErrRowCount = errors.New("movables has more rows than original")
	// ErrUnknownGroup is returned for a positions row naming a group the
	// original does not have.
	ErrUnknownGroup = errors.New("unknown group")
)

// Options name the columns merged from each file.
type Options struct {
	GroupColumn     string
	Marker          string
	Extra           []string
	PositionColumns []string
	Delimiter       rune
	// MovablesEncoding is the byte encoding of the movables file.
	MovablesEncoding encoding.Encoding
	Logger           *log.Logger
}

// DefaultOptions returns the layout of the review workbook exports.
func DefaultOptions() Options {
	return Options{
		GroupColumn:      "Номер групи",
		Marker:           "ОБЩ",
		Extra:            []string{"Результат сверки машин"},
		PositionColumns:  []string{"Регіон", "Структура", "Посада"},
		Delimiter:        ';',
		MovablesEncoding: charmap.Windows1251,
	}
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.New(io.Discard)
}

func (o Options) movable(col string) bool {
	if o.Marker != "" && strings.Contains(col, o.Marker) {
		return true
	}
	for _, e := range o.Extra {
		if col == e {
			return true
		}
	}
	return false
}

// Movables copies the marker columns of movables row i onto original row i.
// Original rows without a movables counterpart are kept unchanged. Neither
// input is modified.
func Movables(original, movables tabular.Table, opts Options) (tabular.Table, error) {
	if len(movables.Rows) > len(original.Rows) {
		return tabular.Table{}, fmt.Errorf("%w: %d > %d", ErrRowCount, len(movables.Rows), len(original.Rows))
	}
	var cols []string
	for _, h := range movables.Headers {
		if opts.movable(h) {
			cols = append(cols, h)
		}
	}
	out := tabular.Table{Path: original.Path, Headers: union(original.Headers, cols)}
	for i, row := range original.Rows {
		merged := clone(row)
		if i < len(movables.Rows) {
			for _, c := range cols {
				merged[c] = movables.Rows[i][c]
			}
		}
		out.Rows = append(out.Rows, merged)
	}
	opts.logger().Info("Merged movables", "rows", len(movables.Rows), "columns", len(cols))
	return out, nil
}

// Positions copies the position columns of each positions row onto every
// original row of the same group. Groups are emitted in positions order and
// repeated group numbers are skipped. Original groups that positions never
// names are dropped and returned.
func Positions(original, positions tabular.Table, opts Options) (tabular.Table, []string, error) {
	var order []string
	byGroup := make(map[string][]map[string]string)
	for _, row := range original.Rows {
		g := row[opts.GroupColumn]
		if _, ok := byGroup[g]; !ok {
			order = append(order, g)
		}
		byGroup[g] = append(byGroup[g], row)
	}

	out := tabular.Table{Path: original.Path, Headers: union(original.Headers, opts.PositionColumns)}
	used := make(map[string]bool)
	for n, pos := range positions.Rows {
		g := pos[opts.GroupColumn]
		if used[g] {
			continue
		}
		rows, ok := byGroup[g]
		if !ok {
			return tabular.Table{}, nil, fmt.Errorf("%w %q on positions row %d", ErrUnknownGroup, g, n+1)
		}
		for _, row := range rows {
			merged := clone(row)
			for _, c := range opts.PositionColumns {
				merged[c] = pos[c]
			}
			out.Rows = append(out.Rows, merged)
		}
		used[g] = true
	}

	var dropped []string
	for _, g := range order {
		if !used[g] {
			dropped = append(dropped, g)
		}
	}
	opts.logger().Info("Merged positions", "groups", len(used), "rows", len(out.Rows))
	return out, dropped, nil
}

// Result reports a merge.
type Result struct {
	Rows    int
	Columns int
	Dropped []string
}

// Files merges the three exports and writes the result to out.
func Files(originalPath, movablesPath, positionsPath, out string, opts Options) (Result, error) {
	logger := opts.logger()
	delim := tabular.WithDelimiter(defaultDelimiter(opts.Delimiter))

	logger.Info("Reading the file", "path", originalPath)
	original, err := tabular.ReadTable(originalPath, delim)
	if err != nil {
		return Result{}, err
	}
	logger.Info("Reading the file", "path", movablesPath)
	movOpts := []tabular.Option{delim}
	if opts.MovablesEncoding != nil {
		movOpts = append(movOpts, tabular.WithEncoding(opts.MovablesEncoding))
	}
	movables, err := tabular.ReadTable(movablesPath, movOpts...)
	if err != nil {
		return Result{}, err
	}
	logger.Info("Reading the file", "path", positionsPath)
	positions, err := tabular.ReadTable(positionsPath, delim)
	if err != nil {
		return Result{}, err
	}

	merged, err := Movables(original, movables, opts)
	if err != nil {
		return Result{}, err
	}
	merged, dropped, err := Positions(merged, positions, opts)
	if err != nil {
		return Result{}, err
	}
	if len(dropped) > 0 {
		logger.Warn("Groups missing from positions were dropped", "count", len(dropped))
	}
	if err := tabular.WriteTable(out, merged.Headers, merged.Rows, delim); err != nil {
		return Result{}, err
	}
	logger.Info("Result was written", "path", out)
	return Result{Rows: len(merged.Rows), Columns: len(merged.Headers), Dropped: dropped}, nil
}

func defaultDelimiter(r rune) rune {
	if r == 0 {
		return ';'
	}
	return r
}

func union(base, extra []string) []string {
	out := append([]string(nil), base...)
	seen := make(map[string]bool, len(base)+len(extra))
	for _, h := range base {
		seen[h] = true
	}
	for _, h := range extra {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

func clone(row map[string]string) map[string]string {
	out := make(map[string]string, len(row)+4)
	for k, v := range row {
		out[k] = v
	}
	return out
}
