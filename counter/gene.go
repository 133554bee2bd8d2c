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

// Package counter defines the gene/interval data model shared between the
// aggregation pipeline and the molecule-counting engine. The engine owns and
// populates these objects; the pipeline only reads them after Count returns.
package counter

// IntervalType classifies a genomic sub-region of a gene.
type IntervalType uint8

const (
	// IvlUnknown is a catch-all for intervals the engine could not classify.
	IvlUnknown IntervalType = iota
	// IvlExon is an annotated exon.
	IvlExon
	// IvlIntron is an annotated intron.
	IvlIntron
)

// intervalTypeCodes are the fixed-width codes persisted in the
// structural-statistics artifact.
var intervalTypeCodes = [...]string{"unk", "exo", "int"}

// Code returns the three-character code for t.
func (t IntervalType) Code() string {
	if int(t) >= len(intervalTypeCodes) {
		return intervalTypeCodes[IvlUnknown]
	}
	return intervalTypeCodes[t]
}

func (t IntervalType) String() string { return t.Code() }

// IntervalTypeFromCode is the inverse of IntervalType.Code.
func IntervalTypeFromCode(code string) IntervalType {
	for i, c := range intervalTypeCodes {
		if c == code {
			return IntervalType(i)
		}
	}
	return IvlUnknown
}

// Interval is one exon or intron of a gene, together with the read evidence
// the engine accumulated for it. Junction5 and Junction3 count reads spanning
// the 5' and 3' junctions of the interval; Inside counts reads fully
// contained in it.
type Interval struct {
	Type            IntervalType
	Start, End      int
	SureValidIntron bool
	Junction5       uint32
	Inside          uint32
	Junction3       uint32
}

// Len returns |End-Start|.
func (ivl *Interval) Len() uint32 {
	if ivl.End >= ivl.Start {
		return uint32(ivl.End - ivl.Start)
	}
	return uint32(ivl.Start - ivl.End)
}

// Gene holds the identity of one gene, its ordered intervals, and the
// per-cell molecule-count vectors filled in by the engine during Count.
//
// The three count vectors and ReadStartsFromEnd are created during interval
// loading, mutated during counting, and read-only afterwards. All three
// vectors have one entry per cell, in the final cell order.
type Gene struct {
	GeneID   string
	GeneName string
	Chrom    string
	Strand   byte // '+' or '-'
	Start    int
	End      int

	Ivls []Interval

	Spliced   []uint32
	Unspliced []uint32
	Ambiguous []uint32

	// ReadStartsFromEnd[i] counts reads whose start maps i bases upstream of
	// the transcript's locus end (3' => 5').
	ReadStartsFromEnd []uint32
}

// TrEnd returns the annotated transcript end: the 3'-most genomic
// coordinate in transcription order.
func (g *Gene) TrEnd() int {
	if g.Strand == '-' {
		return g.Start
	}
	return g.End
}

// DeducedTrEnd estimates the transcript end from the read-start profile: the
// annotated end shifted inward by the offset of the first position where any
// read starts. With no read evidence it falls back to the annotated end.
func (g *Gene) DeducedTrEnd() int {
	for i, c := range g.ReadStartsFromEnd {
		if c > 0 {
			if g.Strand == '-' {
				return g.Start + i
			}
			return g.End - i
		}
	}
	return g.TrEnd()
}

// lastExon returns the exon that is last in transcription order, or nil if
// the gene has no exon.
func (g *Gene) lastExon() *Interval {
	if g.Strand == '-' {
		for i := range g.Ivls {
			if g.Ivls[i].Type == IvlExon {
				return &g.Ivls[i]
			}
		}
		return nil
	}
	for i := len(g.Ivls) - 1; i >= 0; i-- {
		if g.Ivls[i].Type == IvlExon {
			return &g.Ivls[i]
		}
	}
	return nil
}

// LastExonLength returns the length of the exon that is last in
// transcription order, or 0 if the gene has no exon.
func (g *Gene) LastExonLength() uint32 {
	ivl := g.lastExon()
	if ivl == nil {
		return 0
	}
	return ivl.Len()
}

// LastExonCounts returns the read count on the junction entering the last
// exon and the read count inside it.
func (g *Gene) LastExonCounts() (lastJunction, lastExon uint32) {
	ivl := g.lastExon()
	if ivl == nil {
		return 0, 0
	}
	if g.Strand == '-' {
		return ivl.Junction3, ivl.Inside
	}
	return ivl.Junction5, ivl.Inside
}
