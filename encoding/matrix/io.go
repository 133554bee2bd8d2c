// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package matrix

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
)

const (
	layerNamesHeader = "LayerNames"
	trailerVersion   = 1
)

const (
	tagRowAttr = byte(iota + 1)
	tagColAttr
	tagLayer
)

func init() {
	recordiozstd.Init()
}

// record is the wire-level unit: one attribute table column or one full
// layer per recordio record.
type record struct {
	tag   byte
	attr  *Attr
	layer *Layer
}

func marshalRecord(scratch []byte, v interface{}) ([]byte, error) {
	rec := v.(*record)
	t := scratch[:0]
	t = append(t, rec.tag)
	switch rec.tag {
	case tagRowAttr, tagColAttr:
		a := rec.attr
		t = appendString(t, a.Name)
		t = append(t, byte(a.Kind))
		switch a.Kind {
		case AttrInt:
			t = appendUvarint(t, uint64(len(a.Ints)))
			for _, n := range a.Ints {
				// zigzag, so negative coordinates stay small.
				t = appendUvarint(t, uint64((n<<1)^(n>>63)))
			}
		case AttrFloat:
			t = appendFloat64s(t, a.Floats)
		default:
			t = appendUvarint(t, uint64(len(a.Strings)))
			for _, s := range a.Strings {
				t = appendString(t, s)
			}
		}
	case tagLayer:
		l := rec.layer
		t = appendString(t, l.Name)
		t = appendUvarint(t, uint64(len(l.Data)))
		for _, row := range l.Data {
			t = appendFloat32s(t, row)
		}
	default:
		return nil, errors.E("matrix: unknown record tag", int(rec.tag))
	}
	return t, nil
}

func unmarshalRecord(in []byte) (interface{}, error) {
	if len(in) == 0 {
		return nil, errors.E("matrix: empty record")
	}
	rec := &record{tag: in[0]}
	r := wireReader{in: in[1:]}
	switch rec.tag {
	case tagRowAttr, tagColAttr:
		a := &Attr{Name: r.string()}
		if len(r.in) == 0 && r.err == nil {
			return nil, errors.E("matrix: truncated attribute record")
		}
		if r.err == nil {
			a.Kind = AttrKind(r.in[0])
			r.in = r.in[1:]
		}
		switch a.Kind {
		case AttrInt:
			n := int(r.uvarint())
			a.Ints = make([]int64, 0, n)
			for i := 0; i < n && r.err == nil; i++ {
				u := r.uvarint()
				a.Ints = append(a.Ints, int64(u>>1)^-int64(u&1))
			}
		case AttrFloat:
			a.Floats = r.float64s()
		default:
			n := int(r.uvarint())
			a.Strings = make([]string, 0, n)
			for i := 0; i < n && r.err == nil; i++ {
				a.Strings = append(a.Strings, r.string())
			}
		}
		rec.attr = a
	case tagLayer:
		l := &Layer{Name: r.string()}
		n := int(r.uvarint())
		l.Data = make([][]float32, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			l.Data = append(l.Data, r.float32s())
		}
		rec.layer = l
	default:
		return nil, errors.E("matrix: unknown record tag", int(rec.tag))
	}
	if r.err != nil {
		return nil, r.err
	}
	return rec, nil
}

func trailer(numRecords int) []byte {
	var buffer bytes.Buffer
	if err := binary.Write(&buffer, binary.LittleEndian, int64(trailerVersion)); err != nil {
		panic("couldn't write trailer version")
	}
	if err := binary.Write(&buffer, binary.LittleEndian, int64(numRecords)); err != nil {
		panic("couldn't write record count to trailer")
	}
	return buffer.Bytes()
}

func parseTrailer(t []byte) (int64, error) {
	r := bytes.NewReader(t)
	var version, numRecords int64
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, err
	}
	if version != trailerVersion {
		return 0, errors.E("matrix: unrecognized trailer version", version)
	}
	if err := binary.Read(r, binary.LittleEndian, &numRecords); err != nil {
		return 0, err
	}
	return numRecords, nil
}

// WriteTo writes m to out in recordio form.
func WriteTo(out io.Writer, m *Matrix) error {
	if err := m.Validate(); err != nil {
		return err
	}
	w := recordio.NewWriter(out, recordio.WriterOpts{
		Marshal:      marshalRecord,
		Transformers: []string{recordiozstd.Name},
	})
	layerNames := make([]string, len(m.Layers))
	for i, l := range m.Layers {
		layerNames[i] = l.Name
	}
	w.AddHeader(layerNamesHeader, strings.Join(layerNames, "\000"))
	w.AddHeader(recordio.KeyTrailer, true)
	n := 0
	for i := range m.RowAttrs {
		w.Append(&record{tag: tagRowAttr, attr: &m.RowAttrs[i]})
		n++
	}
	for i := range m.ColAttrs {
		w.Append(&record{tag: tagColAttr, attr: &m.ColAttrs[i]})
		n++
	}
	for i := range m.Layers {
		w.Append(&record{tag: tagLayer, layer: &m.Layers[i]})
		n++
	}
	w.SetTrailer(trailer(n))
	return w.Finish()
}

// ReadFrom reads a matrix written by WriteTo.
func ReadFrom(rs io.ReadSeeker) (*Matrix, error) {
	scanner := recordio.NewScanner(rs, recordio.ScannerOpts{
		Unmarshal: unmarshalRecord,
	})
	if len(scanner.Trailer()) != 0 {
		if _, err := parseTrailer(scanner.Trailer()); err != nil {
			return nil, err
		}
	}
	var layerNames []string
	for _, kv := range scanner.Header() {
		switch kv.Key {
		case layerNamesHeader:
			layerNames = strings.Split(kv.Value.(string), "\000")
		}
	}
	m := &Matrix{}
	for scanner.Scan() {
		rec := scanner.Get().(*record)
		switch rec.tag {
		case tagRowAttr:
			m.RowAttrs = append(m.RowAttrs, *rec.attr)
		case tagColAttr:
			m.ColAttrs = append(m.ColAttrs, *rec.attr)
		case tagLayer:
			m.Layers = append(m.Layers, *rec.layer)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	// The writer lays layers out in header order; a reordered or incomplete
	// file is corrupt.
	if len(layerNames) != len(m.Layers) {
		return nil, errors.E("matrix: layer count mismatch with header")
	}
	for i, name := range layerNames {
		if m.Layers[i].Name != name {
			return nil, errors.E("matrix: layer order mismatch with header")
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Write persists m at path.
func Write(ctx context.Context, path string, m *Matrix) (err error) {
	var dst file.File
	if dst, err = file.Create(ctx, path); err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, dst, &err)
	return WriteTo(dst.Writer(ctx), m)
}

// Read loads the matrix artifact at path.
func Read(ctx context.Context, path string) (m *Matrix, err error) {
	var src file.File
	if src, err = file.Open(ctx, path); err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, src, &err)
	return ReadFrom(src.Reader(ctx))
}
