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

// Package matrix reads and writes the multi-layer count-matrix artifact: one
// primary genes x cells float32 matrix, named auxiliary layers of identical
// shape, a typed row-attribute table and a typed column-attribute table. The
// container is recordio with zstd block compression.
package matrix

import (
	"encoding/binary"
	"math"

	"github.com/grailbio/base/errors"
)

// Ext is the filename extension of the persisted artifact.
const Ext = ".matrix.rio"

// AttrKind is the declared scalar kind of an attribute column.
type AttrKind uint8

const (
	// AttrString attributes hold one string per entry.
	AttrString AttrKind = iota
	// AttrInt attributes hold one integer per entry.
	AttrInt
	// AttrFloat attributes hold one float per entry.
	AttrFloat
)

// Attr is one named attribute: a value per row (gene) or per column (cell).
// Exactly one of Strings/Ints/Floats is populated, per Kind.
type Attr struct {
	Name    string
	Kind    AttrKind
	Strings []string
	Ints    []int64
	Floats  []float64
}

// Len returns the number of entries in the attribute.
func (a *Attr) Len() int {
	switch a.Kind {
	case AttrInt:
		return len(a.Ints)
	case AttrFloat:
		return len(a.Floats)
	}
	return len(a.Strings)
}

// Layer is one named genes x cells matrix.
type Layer struct {
	Name string
	Data [][]float32 // Data[gene][cell]
}

// Matrix is the in-memory form of the artifact. Layers[0] is the primary
// matrix; the rest are auxiliary layers of identical shape.
type Matrix struct {
	RowAttrs []Attr
	ColAttrs []Attr
	Layers   []Layer
}

// Rows returns the number of genes.
func (m *Matrix) Rows() int {
	if len(m.Layers) == 0 {
		return 0
	}
	return len(m.Layers[0].Data)
}

// Cols returns the number of cells.
func (m *Matrix) Cols() int {
	if m.Rows() == 0 {
		return 0
	}
	return len(m.Layers[0].Data[0])
}

// Layer returns the named layer, or nil.
func (m *Matrix) Layer(name string) *Layer {
	for i := range m.Layers {
		if m.Layers[i].Name == name {
			return &m.Layers[i]
		}
	}
	return nil
}

// Validate checks the shape invariants: every layer is rows x cols, every
// row attribute has one entry per row, every column attribute one entry per
// column.
func (m *Matrix) Validate() error {
	if len(m.Layers) == 0 {
		return errors.E("matrix: no layers")
	}
	rows, cols := m.Rows(), m.Cols()
	for _, l := range m.Layers {
		if len(l.Data) != rows {
			return errors.E("matrix: layer", l.Name, "row count mismatch")
		}
		for _, row := range l.Data {
			if len(row) != cols {
				return errors.E("matrix: layer", l.Name, "column count mismatch")
			}
		}
	}
	for i := range m.RowAttrs {
		if m.RowAttrs[i].Len() != rows {
			return errors.E("matrix: row attribute", m.RowAttrs[i].Name, "length mismatch")
		}
	}
	for i := range m.ColAttrs {
		if m.ColAttrs[i].Len() != cols {
			return errors.E("matrix: column attribute", m.ColAttrs[i].Name, "length mismatch")
		}
	}
	return nil
}

// Wire helpers shared by the marshal and unmarshal paths. All integers are
// uvarints; strings are length-prefixed; float32s are little-endian IEEE
// words.

func appendUvarint(b []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(b, tmp[:n]...)
}

func appendString(b []byte, s string) []byte {
	b = appendUvarint(b, uint64(len(s)))
	return append(b, s...)
}

func appendFloat32s(b []byte, v []float32) []byte {
	b = appendUvarint(b, uint64(len(v)))
	var tmp [4]byte
	for _, f := range v {
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(f))
		b = append(b, tmp[:]...)
	}
	return b
}

func appendFloat64s(b []byte, v []float64) []byte {
	b = appendUvarint(b, uint64(len(v)))
	var tmp [8]byte
	for _, f := range v {
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(f))
		b = append(b, tmp[:]...)
	}
	return b
}

type wireReader struct {
	in  []byte
	err error
}

func (r *wireReader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.in)
	if n <= 0 {
		r.err = errors.E("matrix: truncated record")
		return 0
	}
	r.in = r.in[n:]
	return v
}

func (r *wireReader) string() string {
	n := int(r.uvarint())
	if r.err != nil {
		return ""
	}
	if n > len(r.in) {
		r.err = errors.E("matrix: truncated string")
		return ""
	}
	s := string(r.in[:n])
	r.in = r.in[n:]
	return s
}

func (r *wireReader) float64s() []float64 {
	n := int(r.uvarint())
	if r.err != nil {
		return nil
	}
	if n*8 > len(r.in) {
		r.err = errors.E("matrix: truncated float vector")
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(r.in[i*8:]))
	}
	r.in = r.in[n*8:]
	return out
}

func (r *wireReader) float32s() []float32 {
	n := int(r.uvarint())
	if r.err != nil {
		return nil
	}
	if n*4 > len(r.in) {
		r.err = errors.E("matrix: truncated float vector")
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(r.in[i*4:]))
	}
	r.in = r.in[n*4:]
	return out
}
