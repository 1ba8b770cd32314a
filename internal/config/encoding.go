package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Encoding resolves a configured byte encoding. "" and "utf-8" mean none.
func Encoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "windows-1251", "cp1251":
		return charmap.Windows1251, nil
	case "koi8-u":
		return charmap.KOI8U, nil
	case "iso-8859-5":
		return charmap.ISO8859_5, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}
