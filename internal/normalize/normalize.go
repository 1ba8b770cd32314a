// Package normalize canonicalizes the noisy identifiers found in declarant
// filings (filenames, emails and person names) into comparable forms.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	reParenthesized = regexp.MustCompile(`\([^)]*\)`)
	reSpaces        = regexp.MustCompile(`\s+`)
	nameSeparators  = strings.NewReplacer(";", " ", ".", " ", ",", " ", "?", " ")
	fileSuffixes    = []string{".pdf", ".dekl"}
)

// Filename reduces a manually entered or reference filename to its
// comparison form: trimmed, spaces as underscores, lowercased, last path
// segment only, without .pdf/.dekl extensions and trailing dots.
// Filename(Filename(s)) == Filename(s) for every s.
func Filename(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ToLower(s)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	for {
		prev := s
		s = strings.TrimSpace(s)
		for _, suffix := range fileSuffixes {
			s = strings.TrimSuffix(s, suffix)
		}
		s = strings.TrimRight(s, ".")
		if s == prev {
			return s
		}
	}
}

// Email lowercases, trims and removes every space.
func Email(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(strings.ToLower(s)), " ", "")
}

// Name strips punctuation and parenthesized remarks from a full name and
// collapses whitespace.
func Name(s string) string {
	s = nameSeparators.Replace(s)
	s = reParenthesized.ReplaceAllString(s, "")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// TitleCase capitalizes every hyphen-delimited part of every word:
// "іваненко-петренко олена" -> "Іваненко-Петренко Олена".
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		parts := strings.Split(w, "-")
		for j, p := range parts {
			parts[j] = Capitalize(p)
		}
		words[i] = strings.Join(parts, "-")
	}
	return strings.Join(words, " ")
}

// CapWords capitalizes every whitespace-delimited word and joins the words
// with single spaces.
func CapWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = Capitalize(w)
	}
	return strings.Join(words, " ")
}

// Capitalize uppercases the first letter and lowercases the rest.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	first, size := utf8.DecodeRuneInString(s)
	return cases.Upper(language.Ukrainian).String(string(first)) +
		cases.Lower(language.Ukrainian).String(s[size:])
}

// UpperFirst uppercases the first letter and leaves the rest untouched.
func UpperFirst(s string) string {
	if s == "" {
		return s
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + s[size:]
}

// Prefix returns the first n characters of s.
func Prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
