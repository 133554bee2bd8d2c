package sample

import (
	"context"
	"errors"

	"github.com/grailbio/base/log"
	"github.com/grailbio/velo/metadata"
)

// ErrAmbiguousMetadata is returned when the sample sheet has more than one
// row for the sample: per-cell metadata cannot be merged unambiguously.
var ErrAmbiguousMetadata = errors.New("sample: multiple sample sheet rows match the sample id")

// LookupSampleMetadata resolves the sample's sheet row. An empty tablePath
// or an absent row yields an empty row (the latter is logged, not fatal);
// more than one matching row aborts the pipeline.
func LookupSampleMetadata(ctx context.Context, tablePath, keyField, sampleID string) (metadata.Row, error) {
	if tablePath == "" {
		return metadata.Row{}, nil
	}
	coll, err := metadata.New(ctx, tablePath)
	if err != nil {
		return metadata.Row{}, err
	}
	rows := coll.Where(keyField, sampleID)
	switch len(rows) {
	case 0:
		log.Error.Printf("sample id %s not found in sample sheet %s", sampleID, tablePath)
		return metadata.Row{}, nil
	case 1:
		log.Debug.Printf("collecting column attributes from %s", tablePath)
		return rows[0], nil
	}
	log.Error.Printf("sample id %s has %d rows in sample sheet %s", sampleID, len(rows), tablePath)
	return metadata.Row{}, ErrAmbiguousMetadata
}
