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

// Package mapstats reads and writes the per-gene structural-statistics
// artifact: for each gene, a 3 x intervals read-count matrix
// (junction5/inside/junction3) plus the interval type, length, and
// valid-intron arrays, all in the gene's own interval order. One recordio
// record per gene group.
package mapstats

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
)

// Ext is the filename extension of the persisted artifact.
const Ext = ".mapstats.rio"

const trailerVersion = 1

func init() {
	recordiozstd.Init()
}

// Row indices of the per-interval read-count matrix.
const (
	RowJunction5 = iota
	RowInside
	RowJunction3
	NumRows
)

// GeneStats is one gene's group: the read-count matrix and the three
// per-interval arrays. All slices have one entry per interval.
type GeneStats struct {
	Accession string
	// Reads[RowJunction5][j] counts reads on interval j's 5' junction, and
	// so on for RowInside and RowJunction3.
	Reads       [NumRows][]uint32
	Types       []string // three-character interval type codes
	Lengths     []uint32 // |end - start| per interval
	ValidIntron []bool
}

// NumIntervals returns the interval count of the group.
func (s *GeneStats) NumIntervals() int { return len(s.Types) }

func (s *GeneStats) validate() error {
	n := len(s.Types)
	for r := 0; r < NumRows; r++ {
		if len(s.Reads[r]) != n {
			return errors.E("mapstats:", s.Accession, ": read-count row length mismatch")
		}
	}
	if len(s.Lengths) != n || len(s.ValidIntron) != n {
		return errors.E("mapstats:", s.Accession, ": interval array length mismatch")
	}
	return nil
}

func marshalGeneStats(scratch []byte, v interface{}) ([]byte, error) {
	s := v.(*GeneStats)
	if err := s.validate(); err != nil {
		return nil, err
	}
	t := scratch[:0]
	t = appendString(t, s.Accession)
	t = appendUvarint(t, uint64(s.NumIntervals()))
	for r := 0; r < NumRows; r++ {
		for _, c := range s.Reads[r] {
			t = appendUvarint(t, uint64(c))
		}
	}
	for _, code := range s.Types {
		t = appendString(t, code)
	}
	for _, l := range s.Lengths {
		t = appendUvarint(t, uint64(l))
	}
	for _, b := range s.ValidIntron {
		if b {
			t = append(t, 1)
		} else {
			t = append(t, 0)
		}
	}
	return t, nil
}

func unmarshalGeneStats(in []byte) (interface{}, error) {
	r := wireReader{in: in}
	s := &GeneStats{Accession: r.string()}
	n := int(r.uvarint())
	for row := 0; row < NumRows; row++ {
		s.Reads[row] = make([]uint32, n)
		for j := 0; j < n; j++ {
			s.Reads[row][j] = uint32(r.uvarint())
		}
	}
	s.Types = make([]string, n)
	for j := 0; j < n; j++ {
		s.Types[j] = r.string()
	}
	s.Lengths = make([]uint32, n)
	for j := 0; j < n; j++ {
		s.Lengths[j] = uint32(r.uvarint())
	}
	s.ValidIntron = make([]bool, n)
	if r.err == nil {
		if len(r.in) < n {
			r.err = errors.E("mapstats: truncated valid-intron array")
		} else {
			for j := 0; j < n; j++ {
				s.ValidIntron[j] = r.in[j] != 0
			}
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return s, nil
}

func trailer(numGenes int) []byte {
	var buffer bytes.Buffer
	if err := binary.Write(&buffer, binary.LittleEndian, int64(trailerVersion)); err != nil {
		panic("couldn't write trailer version")
	}
	if err := binary.Write(&buffer, binary.LittleEndian, int64(numGenes)); err != nil {
		panic("couldn't write gene count to trailer")
	}
	return buffer.Bytes()
}

func parseTrailer(t []byte) (int64, error) {
	r := bytes.NewReader(t)
	var version, numGenes int64
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, err
	}
	if version != trailerVersion {
		return 0, errors.E("mapstats: unrecognized trailer version", version)
	}
	if err := binary.Read(r, binary.LittleEndian, &numGenes); err != nil {
		return 0, err
	}
	return numGenes, nil
}

// WriteTo writes the per-gene groups to out, preserving order.
func WriteTo(out io.Writer, stats []GeneStats) error {
	w := recordio.NewWriter(out, recordio.WriterOpts{
		Marshal:      marshalGeneStats,
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(recordio.KeyTrailer, true)
	for i := range stats {
		w.Append(&stats[i])
	}
	w.SetTrailer(trailer(len(stats)))
	return w.Finish()
}

// ReadFrom reads the groups written by WriteTo.
func ReadFrom(rs io.ReadSeeker) (stats []GeneStats, err error) {
	scanner := recordio.NewScanner(rs, recordio.ScannerOpts{
		Unmarshal: unmarshalGeneStats,
	})
	if len(scanner.Trailer()) != 0 {
		var numGenes int64
		if numGenes, err = parseTrailer(scanner.Trailer()); err != nil {
			return nil, err
		}
		stats = make([]GeneStats, 0, numGenes)
	}
	for scanner.Scan() {
		stats = append(stats, *scanner.Get().(*GeneStats))
	}
	return stats, scanner.Err()
}

// Write persists the groups at path.
func Write(ctx context.Context, path string, stats []GeneStats) (err error) {
	var dst file.File
	if dst, err = file.Create(ctx, path); err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, dst, &err)
	return WriteTo(dst.Writer(ctx), stats)
}

// Read loads the artifact at path.
func Read(ctx context.Context, path string) (stats []GeneStats, err error) {
	var src file.File
	if src, err = file.Open(ctx, path); err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, src, &err)
	return ReadFrom(src.Reader(ctx))
}

// Wire helpers, shared with nothing: the format is tiny.

func appendUvarint(b []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(b, tmp[:n]...)
}

func appendString(b []byte, s string) []byte {
	b = appendUvarint(b, uint64(len(s)))
	return append(b, s...)
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
		r.err = errors.E("mapstats: truncated record")
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
		r.err = errors.E("mapstats: truncated string")
		return ""
	}
	s := string(r.in[:n])
	r.in = r.in[n:]
	return s
}
