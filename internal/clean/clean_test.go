package clean

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"declink/internal/record"
)

func TestCellText(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"123,4 грн", "123.40"},
		{"500", "500.00"},
		{"12 345,67", "12345.67"},
		{"1 000 грн.", "1000.00"},
		{"007.5", "7.50"},
		{"123.456", "123.456"},
		{"1, 2", "1, 2"},
		{"0", ""},
		{"Прочерк", ""},
		{"ПРОЧЕРК", ""},
		{"—", ""},
		{"- -", "- -"},
		{"--–", ""},
		{"  a \n b\t\tc ", "a ; b c"},
		{"a  b", "a b"},
		{"(Приховано)", "приховано"},
		{"[ПРИХОВАНО]", "приховано"},
		{`"приховано"`, "приховано"},
		{"Приховано", "приховано"},
		{"п'ять", "п’ять"},
		{"п`ять", "п’ять"},
		{"O'Brien", "O'Brien"},
		{"мiсто", "місто"},
		{"Kyiv", "Kyiv"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Cell(tc.in, record.RoleText), "Cell(%q)", tc.in)
	}
}

func TestCellBoolean(t *testing.T) {
	assert.Equal(t, "true", Cell("так", record.RoleBoolean))
	assert.Equal(t, "false", Cell("", record.RoleBoolean))
	assert.Equal(t, "false", Cell(" 0 ", record.RoleBoolean))
	assert.Equal(t, "false", Cell("---", record.RoleBoolean))
}

func TestCellYear(t *testing.T) {
	assert.Equal(t, "1999", Cell("'99", record.RoleYear))
	assert.Equal(t, "2003", Cell("2003", record.RoleYear))
	assert.Equal(t, "2003", Cell("03", record.RoleYear))
	assert.Equal(t, "2030", Cell("30 р.", record.RoleYear))
	assert.Equal(t, "2015", Cell("2015 рік", record.RoleYear))
	assert.Equal(t, "", Cell("невідомо", record.RoleYear))
	// Long values are not treated as years.
	assert.Equal(t, "приблизно з 1999 року", Cell("приблизно з 1999 року", record.RoleYear))
}

func TestCleanerYearPivot(t *testing.T) {
	c := New(record.Schema{}, 50)
	assert.Equal(t, "2045", c.Cell("45", record.RoleYear))
	assert.Equal(t, "1951", c.Cell("51", record.RoleYear))

	c = New(record.Schema{}, 120)
	assert.Equal(t, "1999", c.Cell("99", record.RoleYear))
}

func TestCellCapitalized(t *testing.T) {
	assert.Equal(t, "Київ", Cell("київ", record.RoleCapitalized))
	assert.Equal(t, "ЛЬВІВ", Cell("ЛЬВІВ", record.RoleCapitalized))
	assert.Equal(t, "", Cell("-", record.RoleCapitalized))
}

func TestCleanerRow(t *testing.T) {
	schema := record.Schema{Boolean: []int{0}, Year: []int{1}, Capitalize: []int{2}}
	c := New(schema, DefaultYearPivot)

	raw := []string{"x", "'15", "одеса", "100"}
	got := c.Row(raw)
	assert.Equal(t, []string{"true", "2015", "Одеса", "100.00"}, got)
	assert.Equal(t, "x", raw[0], "input must not be modified")
}
