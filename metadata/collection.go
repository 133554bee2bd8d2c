// Package metadata reads a row-per-sample sheet (CSV, header row naming the
// fields) and serves exact-match lookups against it. Every column gets a
// declared value kind, inferred once from the data, so that downstream
// attribute merges are schema'd rather than open-ended.
package metadata

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// Kind is the declared scalar kind of one sheet column.
type Kind uint8

const (
	// KindString columns hold free-form text.
	KindString Kind = iota
	// KindInt columns hold integers only.
	KindInt
	// KindFloat columns hold numbers, at least one of them non-integer.
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	}
	return "string"
}

// Value is one scalar cell of the sheet, together with its column's kind.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
}

// String renders the value the way it appeared in the sheet.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	}
	return v.Str
}

// Row is one sample's record: field name -> typed scalar, with the sheet's
// column order preserved in Fields.
type Row struct {
	Fields []string
	values map[string]Value
}

// Value returns the typed scalar for the named field.
func (r Row) Value(field string) (Value, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Len returns the number of fields in the row. A zero Row has no fields.
func (r Row) Len() int { return len(r.Fields) }

// Collection is an in-memory sample sheet.
type Collection struct {
	path   string
	fields []string
	kinds  []Kind
	rows   [][]string
}

// New reads and parses the sheet at path. Transparently decompresses
// gzipped sheets.
func New(ctx context.Context, path string) (*Collection, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "metadata: open %s", path)
	}
	defer in.Close(ctx) // nolint: errcheck
	var body io.Reader = in.Reader(ctx)
	if u, compressed := compress.NewReaderPath(body, path); compressed {
		body = u
	}
	cr := csv.NewReader(body)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "metadata: parse %s", path)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("metadata: %s: empty sheet", path)
	}
	c := &Collection{path: path, fields: records[0], rows: records[1:]}
	c.kinds = inferKinds(c.fields, c.rows)
	return c, nil
}

// inferKinds declares a kind per column: KindInt if every value parses as an
// integer, KindFloat if every value parses as a number, KindString otherwise.
func inferKinds(fields []string, rows [][]string) []Kind {
	kinds := make([]Kind, len(fields))
	for col := range fields {
		kind := KindInt
		for _, row := range rows {
			if col >= len(row) {
				continue
			}
			s := strings.TrimSpace(row[col])
			if s == "" {
				continue
			}
			if kind == KindInt {
				if _, err := strconv.ParseInt(s, 10, 64); err == nil {
					continue
				}
				kind = KindFloat
			}
			if kind == KindFloat {
				if _, err := strconv.ParseFloat(s, 64); err == nil {
					continue
				}
				kind = KindString
				break
			}
		}
		kinds[col] = kind
	}
	return kinds
}

// Fields returns the sheet's column names in order.
func (c *Collection) Fields() []string { return c.fields }

// Kind returns the declared kind of the named field.
func (c *Collection) Kind(field string) Kind {
	for i, f := range c.fields {
		if f == field {
			return c.kinds[i]
		}
	}
	return KindString
}

// Where returns the rows whose field column exactly matches value. Zero,
// one, or many rows may match; the caller decides which cardinalities are
// acceptable.
func (c *Collection) Where(field, value string) []Row {
	col := -1
	for i, f := range c.fields {
		if f == field {
			col = i
			break
		}
	}
	if col < 0 {
		return nil
	}
	var out []Row
	for _, raw := range c.rows {
		if col >= len(raw) || raw[col] != value {
			continue
		}
		row := Row{values: make(map[string]Value, len(c.fields))}
		for i, f := range c.fields {
			if i >= len(raw) {
				break
			}
			row.Fields = append(row.Fields, f)
			row.values[f] = parseValue(raw[i], c.kinds[i])
		}
		out = append(out, row)
	}
	return out
}

func parseValue(s string, kind Kind) Value {
	switch kind {
	case KindInt:
		n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		return Value{Kind: KindInt, Int: n}
	case KindFloat:
		f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return Value{Kind: KindFloat, Float: f}
	}
	return Value{Kind: KindString, Str: s}
}
