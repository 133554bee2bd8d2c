package sample

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/velo/counter"
	"github.com/grailbio/velo/encoding/mapstats"
	"github.com/grailbio/velo/encoding/matrix"
	"github.com/grailbio/velo/metadata"
)

// Layer names of the count-matrix artifact. LayerMatrix is the primary
// matrix, the elementwise sum of the other three.
const (
	LayerMatrix    = "matrix"
	LayerSpliced   = "spliced"
	LayerUnspliced = "unspliced"
	LayerAmbiguous = "ambiguous"
)

// LastExonFile is the fixed name of the legacy flat summary.
const LastExonFile = "lastexon_counts.tab"

func countsToRow(counts []uint32, cols int) []float32 {
	row := make([]float32, cols)
	for i := 0; i < cols && i < len(counts); i++ {
		row[i] = float32(counts[i])
	}
	return row
}

// BuildMatrix assembles the multi-layer count matrix: row attributes from
// gene identity, column attributes from the cell ids plus the broadcast
// sample metadata, and the three count layers with their elementwise total
// as the primary matrix. A fully zero total signals a likely upstream
// misconfiguration; it is logged but the matrix is still produced.
func BuildMatrix(genes []*counter.Gene, cellIDs []string, meta metadata.Row) *matrix.Matrix {
	rows, cols := len(genes), len(cellIDs)

	geneNames := make([]string, rows)
	accessions := make([]string, rows)
	chroms := make([]string, rows)
	strands := make([]string, rows)
	starts := make([]int64, rows)
	ends := make([]int64, rows)
	for i, g := range genes {
		geneNames[i] = g.GeneName
		accessions[i] = g.GeneID
		chroms[i] = g.Chrom
		strands[i] = string(g.Strand)
		starts[i] = int64(g.Start)
		ends[i] = int64(g.End)
	}

	m := &matrix.Matrix{
		RowAttrs: []matrix.Attr{
			{Name: "Gene", Kind: matrix.AttrString, Strings: geneNames},
			{Name: "Accession", Kind: matrix.AttrString, Strings: accessions},
			{Name: "Chromosome", Kind: matrix.AttrString, Strings: chroms},
			{Name: "Strand", Kind: matrix.AttrString, Strings: strands},
			{Name: "Start", Kind: matrix.AttrInt, Ints: starts},
			{Name: "End", Kind: matrix.AttrInt, Ints: ends},
		},
		ColAttrs: []matrix.Attr{
			{Name: "CellID", Kind: matrix.AttrString, Strings: cellIDs},
		},
	}
	for _, field := range meta.Fields {
		v, _ := meta.Value(field)
		m.ColAttrs = append(m.ColAttrs, broadcastAttr(field, v, cols))
	}

	total := matrix.Layer{Name: LayerMatrix, Data: make([][]float32, rows)}
	spliced := matrix.Layer{Name: LayerSpliced, Data: make([][]float32, rows)}
	unspliced := matrix.Layer{Name: LayerUnspliced, Data: make([][]float32, rows)}
	ambiguous := matrix.Layer{Name: LayerAmbiguous, Data: make([][]float32, rows)}
	empty := true
	for i, g := range genes {
		spliced.Data[i] = countsToRow(g.Spliced, cols)
		unspliced.Data[i] = countsToRow(g.Unspliced, cols)
		ambiguous.Data[i] = countsToRow(g.Ambiguous, cols)
		totalRow := make([]float32, cols)
		for c := 0; c < cols; c++ {
			totalRow[c] = spliced.Data[i][c] + unspliced.Data[i][c] + ambiguous.Data[i][c]
			if totalRow[c] != 0 {
				empty = false
			}
		}
		total.Data[i] = totalRow
	}
	if empty {
		log.Error.Printf("the output matrix is empty, check the input")
	}
	m.Layers = []matrix.Layer{total, spliced, unspliced, ambiguous}
	return m
}

func broadcastAttr(name string, v metadata.Value, cols int) matrix.Attr {
	switch v.Kind {
	case metadata.KindInt:
		ints := make([]int64, cols)
		for i := range ints {
			ints[i] = v.Int
		}
		return matrix.Attr{Name: name, Kind: matrix.AttrInt, Ints: ints}
	case metadata.KindFloat:
		floats := make([]float64, cols)
		for i := range floats {
			floats[i] = v.Float
		}
		return matrix.Attr{Name: name, Kind: matrix.AttrFloat, Floats: floats}
	}
	strs := make([]string, cols)
	for i := range strs {
		strs[i] = v.Str
	}
	return matrix.Attr{Name: name, Kind: matrix.AttrString, Strings: strs}
}

// WriteLastExonSummary writes the legacy tab-separated summary, one row per
// gene, the trailing columns being the variable-length read-start profile.
func WriteLastExonSummary(ctx context.Context, path string, rows []LastExonRow) (err error) {
	var dst file.File
	if dst, err = file.Create(ctx, path); err != nil {
		return errors.E(err, "create summary", path)
	}
	defer file.CloseAndReport(ctx, dst, &err)
	w := tsv.NewWriter(dst.Writer(ctx))
	w.WriteString("GeneName\tGeneID\tAnnotatedTrEnd\tDeducedTrEnd\tLastExonLen\tLastJunctionCount\tLastExonCount\tFromEndReadProfile(3'=>5')...")
	if err = w.EndLine(); err != nil {
		return err
	}
	for i := range rows {
		r := &rows[i]
		w.WriteString(r.GeneName)
		w.WriteString(r.GeneID)
		w.WriteString(strconv.Itoa(r.AnnotatedEnd))
		w.WriteString(strconv.Itoa(r.DeducedEnd))
		w.WriteUint32(r.LastExonLen)
		w.WriteUint32(r.LastJunction)
		w.WriteUint32(r.LastExonCount)
		for _, c := range r.Profile {
			w.WriteUint32(c)
		}
		if err = w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteOutputs persists all three artifacts under the resolved output
// folder.
func WriteOutputs(ctx context.Context, id Identity, genes []*counter.Gene, cellIDs []string, meta metadata.Row) error {
	log.Debug.Printf("saving 3' junction/exon read counts")
	summaryPath := filepath.Join(id.OutputFolder, LastExonFile)
	if err := WriteLastExonSummary(ctx, summaryPath, LastExonSummary(genes)); err != nil {
		return err
	}

	log.Debug.Printf("collecting gene structural info statistics")
	statsPath := filepath.Join(id.OutputFolder, id.SampleID+mapstats.Ext)
	if err := mapstats.Write(ctx, statsPath, AggregateGeneStats(genes)); err != nil {
		return err
	}
	log.Debug.Printf("mapping statistics have been saved to %s", statsPath)

	outPath := filepath.Join(id.OutputFolder, id.SampleID+matrix.Ext)
	log.Debug.Printf("generating output file %s", outPath)
	m := BuildMatrix(genes, cellIDs, meta)
	if err := matrix.Write(ctx, outPath, m); err != nil {
		return err
	}
	return nil
}
