// Package tabular reads and writes the delimited text files exchanged with
// the review spreadsheets.
package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// ErrBadEncoding is returned for UTF-8 input that does not decode.
var ErrBadEncoding = errors.New("invalid UTF-8")

var bom = []byte{0xEF, 0xBB, 0xBF}

type options struct {
	comma rune
	enc   encoding.Encoding
	bom   bool
}

// Option configures a read or write.
type Option func(*options)

// WithDelimiter sets the field delimiter. Default ','.
func WithDelimiter(r rune) Option {
	return func(o *options) { o.comma = r }
}

// WithEncoding reads and writes bytes in a legacy single-byte encoding, for
// example charmap.Windows1251.
func WithEncoding(enc encoding.Encoding) Option {
	return func(o *options) { o.enc = enc }
}

// WithBOM prefixes written UTF-8 files with a byte order mark.
func WithBOM() Option {
	return func(o *options) { o.bom = true }
}

func build(opts []Option) options {
	o := options{comma: ','}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Read loads a file into its header and data rows. Rows may be ragged.
func Read(path string, opts ...Option) ([]string, [][]string, error) {
	o := build(opts)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if o.enc != nil {
		if b, err = o.enc.NewDecoder().Bytes(b); err != nil {
			return nil, nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !utf8.Valid(b) {
		return nil, nil, fmt.Errorf("%s: %w", path, ErrBadEncoding)
	}
	b = bytes.TrimPrefix(b, bom)

	r := csv.NewReader(bytes.NewReader(b))
	r.Comma = o.comma
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%s: missing header row", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", path, err)
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

// Table is a file whose rows are keyed by header name.
type Table struct {
	Path    string
	Headers []string
	Rows    []map[string]string
}

// ReadTable loads a file into rows keyed by header. Missing trailing cells
// read as "".
func ReadTable(path string, opts ...Option) (Table, error) {
	header, recs, err := Read(path, opts...)
	if err != nil {
		return Table{}, err
	}
	rows := make([]map[string]string, 0, len(recs))
	for _, rec := range recs {
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return Table{Path: path, Headers: header, Rows: rows}, nil
}

// Write replaces path with header and rows. The content goes to a temporary
// file in the same directory first and is renamed into place on success.
func Write(path string, header []string, rows [][]string, opts ...Option) error {
	return atomically(path, build(opts), func(w io.Writer, comma rune) error {
		if err := writeRecord(w, header, comma); err != nil {
			return err
		}
		for _, rec := range rows {
			if err := writeRecord(w, rec, comma); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteTable writes rows keyed by field name in fields order.
func WriteTable(path string, fields []string, rows []map[string]string, opts ...Option) error {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		rec := make([]string, len(fields))
		for i, f := range fields {
			rec[i] = row[f]
		}
		out = append(out, rec)
	}
	return Write(path, fields, out, opts...)
}

// Atomic writes path through fill. The content goes to a temporary file in
// the same directory, which is renamed into place only when fill succeeds,
// so a failing write leaves any previous file untouched.
func Atomic(path string, fill func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	bw := bufio.NewWriter(f)
	if err := fill(bw); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func atomically(path string, o options, fill func(io.Writer, rune) error) error {
	return Atomic(path, func(w io.Writer) error {
		if o.enc == nil {
			if o.bom {
				if _, err := w.Write(bom); err != nil {
					return err
				}
			}
			return fill(w, o.comma)
		}
		enc := transform.NewWriter(w, o.enc.NewEncoder())
		if err := fill(enc, o.comma); err != nil {
			return err
		}
		return enc.Close()
	})
}

// writeRecord quotes only fields that need it and ends rows with CRLF, the
// dialect the review spreadsheets are exported in.
func writeRecord(w io.Writer, rec []string, comma rune) error {
	sep := string(comma)
	for i, field := range rec {
		if i > 0 {
			if _, err := io.WriteString(w, sep); err != nil {
				return err
			}
		}
		if strings.ContainsAny(field, sep+"\"\n\r") {
			field = `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
		}
		if _, err := io.WriteString(w, field); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
