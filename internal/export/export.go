// Package export writes grouped rows into a paginated review workbook.
package export

import (
	"io"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"

	"declink/internal/tabular"
)

const (
	DefaultGroupColumn = "Номер групи"
	sheetPrefix        = "Book"
	borderColor        = "808080"
	mismatchColor      = "FF0000"
)

// Options control the workbook layout. Column indices address the row cells,
// not counting the leading group-number column. Row cells are always written
// as strings so filenames and codes are never reinterpreted as numbers.
type Options struct {
	Sheets      int
	Highlight   []int
	GroupColumn string
	Logger      *log.Logger
}

// Paginate splits n groups over sheets pages as evenly as possible. The
// first n%sheets pages get one extra group. Each page is a [start, end)
// range.
func Paginate(n, sheets int) [][2]int {
	if sheets < 1 {
		sheets = 1
	}
	per, extra := n/sheets, n%sheets
	out := make([][2]int, sheets)
	start := 0
	for i := range out {
		size := per
		if i < extra {
			size++
		}
		out[i] = [2]int{start, start + size}
		start += size
	}
	return out
}

// Mismatches marks every cell in an eligible column whose value differs from
// the value of another row in that column. Short rows read as "".
func Mismatches(rows [][]string, cols []int) [][]bool {
	out := make([][]bool, len(rows))
	for i, row := range rows {
		out[i] = make([]bool, len(row))
	}
	for _, c := range cols {
		for i, row := range rows {
			if c < 0 || c >= len(row) {
				continue
			}
			for j, other := range rows {
				if i != j && cell(other, c) != row[c] {
					out[i][c] = true
					break
				}
			}
		}
	}
	return out
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// Write renders groups into an XLSX workbook at path. Every group becomes a
// bordered block of rows followed by an empty row.
func Write(path string, header []string, groups [][][]string, opts Options) error {
	if opts.Sheets < 1 {
		opts.Sheets = 1
	}
	if opts.GroupColumn == "" {
		opts.GroupColumn = DefaultGroupColumn
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	f := excelize.NewFile()
	defer f.Close()

	w := &sheetWriter{f: f, styles: make(map[styleKey]int)}
	width := len(header)
	for _, g := range groups {
		for _, r := range g {
			if len(r) > width {
				width = len(r)
			}
		}
	}

	number := 0
	for i, page := range Paginate(len(groups), opts.Sheets) {
		name := sheetPrefix + strconv.Itoa(i+1)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return err
		}
		w.sheet = name
		w.row = 1
		if err := w.header(opts.GroupColumn, header); err != nil {
			return err
		}
		for _, rows := range groups[page[0]:page[1]] {
			number++
			if err := w.group(number, rows, width, Mismatches(rows, opts.Highlight)); err != nil {
				return err
			}
		}
		logger.Info("Wrote sheet", "sheet", name, "rows", w.row-1, "groups", page[1]-page[0])
	}

	return save(f, path)
}

func save(f *excelize.File, path string) error {
	return tabular.Atomic(path, func(w io.Writer) error { return f.Write(w) })
}

type styleKey struct {
	top, bottom, left, right, fill bool
}

type sheetWriter struct {
	f      *excelize.File
	sheet  string
	row    int
	styles map[styleKey]int
}

func (w *sheetWriter) header(groupColumn string, header []string) error {
	if err := w.set(1, groupColumn); err != nil {
		return err
	}
	for i, h := range header {
		if err := w.set(i+2, h); err != nil {
			return err
		}
	}
	w.row++
	return nil
}

func (w *sheetWriter) group(number int, rows [][]string, width int, mismatch [][]bool) error {
	for i, r := range rows {
		edge := styleKey{top: i == 0, bottom: i == len(rows)-1}
		name, err := w.cell(1, styleKey{top: edge.top, bottom: edge.bottom, left: true})
		if err != nil {
			return err
		}
		if err := w.f.SetCellInt(w.sheet, name, number); err != nil {
			return err
		}
		for c := 0; c < width; c++ {
			k := edge
			k.right = c == width-1
			k.fill = c < len(mismatch[i]) && mismatch[i][c]
			name, err := w.cell(c+2, k)
			if err != nil {
				return err
			}
			if err := w.f.SetCellStr(w.sheet, name, cell(r, c)); err != nil {
				return err
			}
		}
		w.row++
	}
	// Blank separator row.
	w.row++
	return nil
}

// cell styles column col of the current row and returns its name.
func (w *sheetWriter) cell(col int, k styleKey) (string, error) {
	name, err := excelize.CoordinatesToCellName(col, w.row)
	if err != nil {
		return "", err
	}
	id, err := w.style(k)
	if err != nil {
		return "", err
	}
	return name, w.f.SetCellStyle(w.sheet, name, name, id)
}

func (w *sheetWriter) set(col int, v string) error {
	name, err := excelize.CoordinatesToCellName(col, w.row)
	if err != nil {
		return err
	}
	return w.f.SetCellStr(w.sheet, name, v)
}

func (w *sheetWriter) style(k styleKey) (int, error) {
	if id, ok := w.styles[k]; ok {
		return id, nil
	}
	s := &excelize.Style{}
	for _, b := range []struct {
		on   bool
		side string
	}{{k.top, "top"}, {k.bottom, "bottom"}, {k.left, "left"}, {k.right, "right"}} {
		if b.on {
			s.Border = append(s.Border, excelize.Border{Type: b.side, Color: borderColor, Style: 1})
		}
	}
	if k.fill {
		s.Fill = excelize.Fill{Type: "pattern", Color: []string{mismatchColor}, Pattern: 1}
	}
	id, err := w.f.NewStyle(s)
	if err != nil {
		return 0, err
	}
	w.styles[k] = id
	return id, nil
}
