package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestPaginate(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 3}, {3, 5}, {5, 7}}, Paginate(7, 3))
	assert.Equal(t, [][2]int{{0, 1}, {1, 1}, {1, 1}}, Paginate(1, 3))
	assert.Equal(t, [][2]int{{0, 4}}, Paginate(4, 0))

	for n := 0; n < 40; n++ {
		for sheets := 1; sheets < 12; sheets++ {
			pages := Paginate(n, sheets)
			require.Len(t, pages, sheets)
			next := 0
			for _, p := range pages {
				require.Equal(t, next, p[0])
				size := p[1] - p[0]
				assert.True(t, size == n/sheets || size == n/sheets+1)
				next = p[1]
			}
			assert.Equal(t, n, next)
		}
	}
}

func TestMismatches(t *testing.T) {
	rows := [][]string{
		{"a", "1", "x"},
		{"a", "2", "x"},
		{"a", "1"},
	}
	got := Mismatches(rows, []int{0, 1, 2})
	assert.Equal(t, [][]bool{
		{false, true, true},
		{false, true, true},
		{false, true},
	}, got)

	got = Mismatches(rows, []int{0})
	assert.Equal(t, [][]bool{{false, false, false}, {false, false, false}, {false, false}}, got)

	assert.Equal(t, [][]bool{{false}}, Mismatches([][]string{{"solo"}}, []int{0}))
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	header := []string{"file", "value"}
	groups := [][][]string{
		{{"007", "1"}, {"007", "2"}},
		{{"b", "x"}},
		{{"c", "y"}, {"c", "y"}},
	}
	require.NoError(t, Write(path, header, groups, Options{Sheets: 2, Highlight: []int{1}}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Book1", "Book2"}, f.GetSheetList())

	get := func(sheet, cell string) string {
		v, err := f.GetCellValue(sheet, cell)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, DefaultGroupColumn, get("Book1", "A1"))
	assert.Equal(t, "file", get("Book1", "B1"))
	assert.Equal(t, "1", get("Book1", "A2"))
	assert.Equal(t, "007", get("Book1", "B2"))
	assert.Equal(t, "2", get("Book1", "C3"))
	assert.Equal(t, "", get("Book1", "B4"))
	assert.Equal(t, "2", get("Book1", "A5"))
	assert.Equal(t, "b", get("Book1", "B5"))

	assert.Equal(t, DefaultGroupColumn, get("Book2", "A1"))
	assert.Equal(t, "3", get("Book2", "A2"))
	assert.Equal(t, "c", get("Book2", "B3"))

	fill := func(sheet, cell string) bool {
		id, err := f.GetCellStyle(sheet, cell)
		require.NoError(t, err)
		st, err := f.GetStyle(id)
		require.NoError(t, err)
		return len(st.Fill.Color) > 0
	}
	assert.True(t, fill("Book1", "C2"))
	assert.True(t, fill("Book1", "C3"))
	assert.False(t, fill("Book1", "B2"))
	assert.False(t, fill("Book2", "C2"))
}

func TestWriteEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, Write(path, []string{"a"}, nil, Options{GroupColumn: "N"}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Book1"}, f.GetSheetList())
	v, err := f.GetCellValue("Book1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "N", v)
}

func TestWriteLeavesOnlyWorkbook(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "review")
	path := filepath.Join(dir, "out.xlsx")
	require.NoError(t, Write(path, []string{"a"}, [][][]string{{{"x"}}}, Options{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.xlsx", entries[0].Name())
}
