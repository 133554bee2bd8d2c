package sample

import (
	"bufio"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// ReadValidBarcodes reads a pre-validated barcode list, one barcode per
// line, plain or gzipped, and returns the bare barcodes (numeric suffix
// stripped) in file order. That order becomes the authoritative column
// order of every output. An empty file yields zero cells; the empty-matrix
// condition is flagged later, at output assembly.
func ReadValidBarcodes(ctx context.Context, path string) (bcs []string, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open barcode file", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	body := in.Reader(ctx)
	scanner := bufio.NewScanner(body)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, errors.E(err, "decompress barcode file", path)
		}
		defer gz.Close() // nolint: errcheck
		scanner = bufio.NewScanner(gz)
	}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		bcs = append(bcs, StripBarcodeSuffix(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(err, "read barcode file", path)
	}
	return bcs, nil
}

// StripBarcodeSuffix removes the fixed "-N" suffix 10x-style barcode lists
// carry; the bare barcode is the indexing key everywhere.
func StripBarcodeSuffix(bc string) string {
	if dash := strings.IndexByte(bc, '-'); dash >= 0 {
		return bc[:dash]
	}
	return bc
}

// BarcodeIndex assigns each bare barcode its zero-based file-order index.
func BarcodeIndex(bcs []string) map[string]int {
	idx := make(map[string]int, len(bcs))
	for i, bc := range bcs {
		idx[bc] = i
	}
	return idx
}

// DiscoveredBarcodes orders the engine's barcode table by its assigned
// index, ties broken by barcode string so the final order is stable across
// runs of the same input.
func DiscoveredBarcodes(idx map[string]int) []string {
	bcs := make([]string, 0, len(idx))
	for bc := range idx {
		bcs = append(bcs, bc)
	}
	sort.Slice(bcs, func(i, j int) bool {
		if idx[bcs[i]] != idx[bcs[j]] {
			return idx[bcs[i]] < idx[bcs[j]]
		}
		return bcs[i] < bcs[j]
	})
	return bcs
}

// CellIDs renders the final composite cell identifiers, one per barcode, in
// the given order.
func CellIDs(sampleID string, bcs []string) []string {
	ids := make([]string, len(bcs))
	for i, bc := range bcs {
		ids[i] = fmt.Sprintf("%s:%s-1", sampleID, bc)
	}
	return ids
}
