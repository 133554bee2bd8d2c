// Package sample runs the per-sample aggregation pipeline: it resolves the
// sample's identity, reconciles the cell barcode list, drives the external
// counting engine, merges sample-sheet metadata, and assembles the persisted
// outputs (count-matrix artifact, structural statistics, legacy summary).
package sample

// Opts configures one pipeline run.
type Opts struct {
	// SampleID identifies the sample. When empty, an id is generated from the
	// bam file name plus a random suffix.
	SampleID string
	// OutputFolder is where all outputs land. When empty, a subdirectory
	// named OutputDirName next to the bam file is used.
	OutputFolder string
	// BCFile is an optional list of pre-validated cell barcodes, one per
	// line, plain or gzipped. When empty, barcodes are accepted as discovered
	// by the engine during counting.
	BCFile string
	// MetadataTable is an optional sample sheet; requires an explicit
	// SampleID.
	MetadataTable string
	// MetadataKeyField is the sheet column matched against SampleID.
	MetadataKeyField string
	// RepMask is an optional repeat-mask interval file.
	RepMask string
	// Debug also dumps the classified reads into per-category SAM files.
	Debug bool

	// OutputDirName is the fixed subdirectory name used when OutputFolder is
	// not given.
	OutputDirName string
	// IDSuffixLen is the length of the random id suffix.
	IDSuffixLen int
}

// DefaultOpts sets the default values of Opts.
var DefaultOpts = Opts{
	MetadataKeyField: "SampleID",
	OutputDirName:    "velo",
	IDSuffixLen:      5,
}
