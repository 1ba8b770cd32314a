// Package clean repairs per-cell data quality issues of manually filled
// declarant spreadsheets: placeholders, booleans, years, money-looking
// decimals and common quote/letter substitutions.
package clean

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"declink/internal/normalize"
	"declink/internal/record"
)

// DefaultYearPivot splits two-digit years: values up to the pivot belong to
// the 2000s, values above it to the 1900s.
const DefaultYearPivot = 30

const (
	redacted     = "приховано"
	placeholder  = "прочерк"
	maxYearChars = 10
)

var (
	reWhitespace   = regexp.MustCompile(`[\s\v\x{1c}-\x{1f}\x{85}\p{Z}]+`)
	reRedacted     = regexp.MustCompile(`(?i)["(-\[]приховано[")-\]]`)
	reCurrency     = regexp.MustCompile(`грн?\.?$`)
	reDecimalComma = regexp.MustCompile(`(\d+),(\d+)`)
	reMoney        = regexp.MustCompile(`\d+\.\d{1,2}`)
	reApostrophe   = regexp.MustCompile("([^a-zA-Z\\d_])[\"'`*]([^a-zA-Z\\d_])")
	reLatinI       = regexp.MustCompile(`([^a-zA-Z\d_])[1i]([^a-zA-Z\d_])`)
)

// Cleaner cleans rows according to the roles a schema assigns to columns.
type Cleaner struct {
	schema record.Schema
	pivot  int
}

// New returns a Cleaner for schema. A pivot outside 0..99 falls back to
// DefaultYearPivot.
func New(schema record.Schema, yearPivot int) *Cleaner {
	if yearPivot < 0 || yearPivot > 99 {
		yearPivot = DefaultYearPivot
	}
	return &Cleaner{schema: schema, pivot: yearPivot}
}

// Row returns a cleaned copy of cells. Every column is kept.
func (c *Cleaner) Row(cells []string) []string {
	out := make([]string, len(cells))
	for i, v := range cells {
		out[i] = c.Cell(v, c.schema.Role(i))
	}
	return out
}

// Cell cleans a single value for the given role.
func (c *Cleaner) Cell(v string, role record.Role) string {
	v = strings.ReplaceAll(v, "\n", ";")
	v = reWhitespace.ReplaceAllString(v, " ")
	v = strings.TrimSpace(v)
	if isPlaceholder(v) {
		v = ""
	}

	if role == record.RoleBoolean {
		return strconv.FormatBool(v != "")
	}
	if v == "" {
		return v
	}
	if role == record.RoleCapitalized {
		v = normalize.UpperFirst(v)
	}

	v = reRedacted.ReplaceAllString(v, redacted)
	if v == "Приховано" {
		v = redacted
	}

	if role == record.RoleYear && utf8.RuneCountInString(v) <= maxYearChars {
		v = c.year(v)
	} else {
		v = money(v)
	}

	v = reApostrophe.ReplaceAllString(v, "${1}’${2}")
	v = reLatinI.ReplaceAllString(v, "${1}і${2}")
	return v
}

// Cell cleans v with the default year pivot.
func Cell(v string, role record.Role) string {
	return (&Cleaner{pivot: DefaultYearPivot}).Cell(v, role)
}

func (c *Cleaner) year(v string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, v)
	if len(digits) != 2 {
		return digits
	}
	if n, err := strconv.Atoi(digits); err == nil && n > c.pivot {
		return "19" + digits
	}
	return "20" + digits
}

func money(v string) string {
	v = reCurrency.ReplaceAllString(v, "")
	v = strings.TrimRightFunc(v, unicode.IsSpace)
	if onlyNumeric(v) && !strings.Contains(v, ", ") {
		v = strings.ReplaceAll(v, " ", "")
	}
	v = reDecimalComma.ReplaceAllString(v, "${1}.${2}")
	v = reMoney.ReplaceAllStringFunc(v, func(m string) string {
		d, err := decimal.NewFromString(m)
		if err != nil {
			return m
		}
		return d.StringFixed(2)
	})
	if v != "" && allDigits(v) {
		v += ".00"
	}
	return v
}

func isPlaceholder(v string) bool {
	if v == "0" || strings.EqualFold(v, placeholder) {
		return true
	}
	for _, r := range v {
		if r != '-' && r != '–' && r != '—' {
			return false
		}
	}
	return true
}

func onlyNumeric(v string) bool {
	for _, r := range v {
		if !unicode.IsDigit(r) && r != ',' && r != '.' && r != ' ' {
			return false
		}
	}
	return true
}

func allDigits(v string) bool {
	for _, r := range v {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
