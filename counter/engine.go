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
package counter

import (
	"context"
	"fmt"
	"io"
)

// CountOpts controls one Count pass. The writers, when non-nil, receive the
// individual reads classified into each category, one SAM-formatted line per
// read. They are only used in debug runs.
type CountOpts struct {
	SureIntrons io.Writer
	SureExons   io.Writer
	MaybeExons  io.Writer
	Others      io.Writer
	Chimeras    io.Writer
}

// Engine is the molecule-counting engine run once per sample. The pipeline
// drives it through the sequence ReadGenes, optionally ReadRepeats,
// MarkUpIntrons, Count; after Count returns, Genes and BarcodeIndex are
// read-only.
type Engine interface {
	// ReadGenes loads the gene/interval definitions from an interval file and
	// returns the number of intervals read.
	ReadGenes(ctx context.Context, path string) (int, error)
	// ReadRepeats loads a repeat mask and returns the number of masked
	// intervals.
	ReadRepeats(ctx context.Context, path string) (int, error)
	// MarkUpIntrons scans the alignments once to decide which annotated
	// introns are supported by the library.
	MarkUpIntrons(ctx context.Context, bamPath string) error
	// Count performs the molecule counting pass.
	Count(ctx context.Context, bamPath string, opts CountOpts) error

	// FilterMode reports whether a pre-validated barcode index was supplied
	// at construction. When false, barcodes were accepted as discovered
	// during Count and BarcodeIndex holds the engine's own assignment.
	FilterMode() bool
	// Genes returns the loaded genes in interval-file order.
	Genes() []*Gene
	// BarcodeIndex maps bare barcode to column index. The mapping must be
	// stable across runs of the same input (index order, ties broken by
	// barcode string).
	BarcodeIndex() map[string]int
}

// Factory creates an Engine for one sample. valid maps bare barcode to
// column index when the barcode list was pre-validated; it is nil in
// discovered mode.
type Factory func(valid map[string]int) Engine

var defaultFactory Factory

// RegisterEngine installs the engine implementation linked into this binary.
// Meant to be called from an init function, in the manner of database/sql
// drivers.
func RegisterEngine(f Factory) {
	defaultFactory = f
}

// EngineRegistered reports whether an engine implementation is linked into
// this binary.
func EngineRegistered() bool { return defaultFactory != nil }

// NewEngine creates an engine using the registered factory.
func NewEngine(valid map[string]int) (Engine, error) {
	if defaultFactory == nil {
		return nil, fmt.Errorf("counter: no counting engine is linked into this binary")
	}
	return defaultFactory(valid), nil
}
