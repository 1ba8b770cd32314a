package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaRole(t *testing.T) {
	s := DefaultSchema()
	assert.Equal(t, RoleBoolean, s.Role(2))
	assert.Equal(t, RoleYear, s.Role(3))
	assert.Equal(t, RoleCapitalized, s.Role(13))
	assert.Equal(t, RoleText, s.Role(11))
	assert.Equal(t, "year", s.Role(187).String())
}

func TestSchemaHashable(t *testing.T) {
	s := DefaultSchema()
	assert.False(t, s.Hashable(0))
	assert.False(t, s.Hashable(7))
	assert.False(t, s.Hashable(315))
	assert.True(t, s.Hashable(11))
	assert.True(t, s.Hashable(318))
}

func TestSchemaValidate(t *testing.T) {
	require.NoError(t, DefaultSchema().Validate())

	s := DefaultSchema()
	s.Name = 6
	assert.Error(t, s.Validate())

	s = DefaultSchema()
	s.Year = append(s.Year, -1)
	assert.Error(t, s.Validate())
}

func TestLayoutRowAndDecode(t *testing.T) {
	s := Schema{Filename: 0, Email: 1, Name: 3, Drop: []int{2}}
	l := s.Layout()

	header := l.Header([]string{"file", "email", "skip", "name"})
	assert.Equal(t, []string{"file", "email", "name", ColLink, ColHash, ColNotFoundInUserTasks,
		ColAmbiguous, ColNameNormalized, ColNameTroublesome}, header)

	rec := &Record{
		Cells:               []string{"ivanenko", "a@b.c", "x", "Іваненко Олена"},
		Link:                "tasks/ivanenko.pdf",
		Hash:                "abc",
		NotFoundInUserTasks: true,
		NameNormalized:      "Іваненко Олена",
		NameTroublesome:     true,
	}
	row := l.Row(rec)
	assert.Equal(t, []string{"ivanenko", "a@b.c", "Іваненко Олена", "tasks/ivanenko.pdf", "abc",
		"true", "false", "Іваненко Олена", "true"}, row)

	recs, err := Decode(header, [][]string{row})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	got := recs[0]
	assert.Equal(t, []string{"ivanenko", "a@b.c", "Іваненко Олена"}, got.Cells)
	assert.Equal(t, rec.Link, got.Link)
	assert.Equal(t, rec.Hash, got.Hash)
	assert.True(t, got.NotFoundInUserTasks)
	assert.False(t, got.Ambiguous)
	assert.True(t, got.NameTroublesome)
	assert.Equal(t, 1, got.Line)

	assert.Equal(t, []string{"file", "email", "name"}, DecodedHeader(header))
}

func TestDecodeRequiresDerivedColumns(t *testing.T) {
	_, err := Decode([]string{"file", "link"}, nil)
	assert.Error(t, err)
}

func TestRecordCell(t *testing.T) {
	r := &Record{Cells: []string{"a"}}
	assert.Equal(t, "a", r.Cell(0))
	assert.Equal(t, "", r.Cell(5))
	assert.Equal(t, "", r.Cell(-1))
}

func TestColumns(t *testing.T) {
	assert.Equal(t, []int{1, 2, 5}, Columns(5, 1, 2, 5))
}
