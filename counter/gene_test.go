package counter

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestIntervalTypeCodes(t *testing.T) {
	expect.EQ(t, IvlExon.Code(), "exo")
	expect.EQ(t, IvlIntron.Code(), "int")
	expect.EQ(t, IvlUnknown.Code(), "unk")
	expect.EQ(t, IntervalType(200).Code(), "unk")
	expect.EQ(t, IntervalTypeFromCode("exo"), IvlExon)
	expect.EQ(t, IntervalTypeFromCode("int"), IvlIntron)
	expect.EQ(t, IntervalTypeFromCode("zzz"), IvlUnknown)
}

func TestIntervalLen(t *testing.T) {
	ivl := Interval{Start: 100, End: 180}
	expect.EQ(t, ivl.Len(), uint32(80))
	ivl = Interval{Start: 180, End: 100}
	expect.EQ(t, ivl.Len(), uint32(80))
}

func plusGene() *Gene {
	return &Gene{
		GeneID:   "ENSG1",
		GeneName: "G1",
		Chrom:    "chr1",
		Strand:   '+',
		Start:    1000,
		End:      2000,
		Ivls: []Interval{
			{Type: IvlExon, Start: 1000, End: 1100, Junction5: 3, Inside: 7, Junction3: 2},
			{Type: IvlIntron, Start: 1100, End: 1800, SureValidIntron: true, Inside: 1},
			{Type: IvlExon, Start: 1800, End: 2000, Junction5: 5, Inside: 11, Junction3: 0},
		},
		ReadStartsFromEnd: []uint32{0, 0, 4, 1, 0},
	}
}

func minusGene() *Gene {
	g := plusGene()
	g.Strand = '-'
	return g
}

func TestTrEnd(t *testing.T) {
	expect.EQ(t, plusGene().TrEnd(), 2000)
	expect.EQ(t, minusGene().TrEnd(), 1000)
}

func TestDeducedTrEnd(t *testing.T) {
	// The first read start is 2 bases in from the locus end.
	expect.EQ(t, plusGene().DeducedTrEnd(), 1998)
	expect.EQ(t, minusGene().DeducedTrEnd(), 1002)

	g := plusGene()
	g.ReadStartsFromEnd = []uint32{0, 0, 0}
	expect.EQ(t, g.DeducedTrEnd(), 2000)
	g.ReadStartsFromEnd = nil
	expect.EQ(t, g.DeducedTrEnd(), 2000)
}

func TestLastExon(t *testing.T) {
	g := plusGene()
	expect.EQ(t, g.LastExonLength(), uint32(200))
	j, e := g.LastExonCounts()
	expect.EQ(t, j, uint32(5))
	expect.EQ(t, e, uint32(11))

	g = minusGene()
	expect.EQ(t, g.LastExonLength(), uint32(100))
	j, e = g.LastExonCounts()
	expect.EQ(t, j, uint32(2))
	expect.EQ(t, e, uint32(7))

	g = &Gene{Ivls: []Interval{{Type: IvlIntron, Start: 0, End: 10}}}
	expect.EQ(t, g.LastExonLength(), uint32(0))
	j, e = g.LastExonCounts()
	expect.EQ(t, j, uint32(0))
	expect.EQ(t, e, uint32(0))
}
