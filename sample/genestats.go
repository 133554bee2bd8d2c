package sample

import (
	"github.com/grailbio/velo/counter"
	"github.com/grailbio/velo/encoding/mapstats"
)

// AggregateGeneStats reshapes each gene's interval evidence into its
// structural-statistics group: the 3 x intervals read-count matrix plus the
// type, length, and valid-intron arrays, in the gene's own interval order.
// Pure collection, no numeric transformation.
func AggregateGeneStats(genes []*counter.Gene) []mapstats.GeneStats {
	stats := make([]mapstats.GeneStats, len(genes))
	for i, g := range genes {
		s := &stats[i]
		s.Accession = g.GeneID
		n := len(g.Ivls)
		for r := 0; r < mapstats.NumRows; r++ {
			s.Reads[r] = make([]uint32, n)
		}
		s.Types = make([]string, n)
		s.Lengths = make([]uint32, n)
		s.ValidIntron = make([]bool, n)
		for j := range g.Ivls {
			ivl := &g.Ivls[j]
			s.Reads[mapstats.RowJunction5][j] = ivl.Junction5
			s.Reads[mapstats.RowInside][j] = ivl.Inside
			s.Reads[mapstats.RowJunction3][j] = ivl.Junction3
			s.Types[j] = ivl.Type.Code()
			s.Lengths[j] = ivl.Len()
			s.ValidIntron[j] = ivl.SureValidIntron
		}
	}
	return stats
}

// LastExonRow is one line of the legacy flat summary: the gene's 3'-end
// bookkeeping plus the read-start profile truncated to the last exon.
type LastExonRow struct {
	GeneName      string
	GeneID        string
	AnnotatedEnd  int
	DeducedEnd    int
	LastExonLen   uint32
	LastJunction  uint32
	LastExonCount uint32
	Profile       []uint32 // 3' => 5', one entry per base of the last exon
}

// LastExonSummary derives the legacy summary rows, one per gene, in gene
// order.
func LastExonSummary(genes []*counter.Gene) []LastExonRow {
	rows := make([]LastExonRow, len(genes))
	for i, g := range genes {
		lastJunction, lastExon := g.LastExonCounts()
		exonLen := g.LastExonLength()
		profile := g.ReadStartsFromEnd
		if int(exonLen) < len(profile) {
			profile = profile[:exonLen]
		}
		rows[i] = LastExonRow{
			GeneName:      g.GeneName,
			GeneID:        g.GeneID,
			AnnotatedEnd:  g.TrEnd(),
			DeducedEnd:    g.DeducedTrEnd(),
			LastExonLen:   exonLen,
			LastJunction:  lastJunction,
			LastExonCount: lastExon,
			Profile:       profile,
		}
	}
	return rows
}
