package sample

import (
	"context"
	"os"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/velo/counter"
)

// debugDumps holds the per-category read dump files of a debug run.
type debugDumps struct {
	files []*os.File
	opts  counter.CountOpts
}

func openDebugDumps(id Identity) (*debugDumps, error) {
	d := &debugDumps{}
	open := func(suffix string) *os.File {
		path := filepath.Join(id.OutputFolder, id.SampleID+suffix)
		f, err := os.Create(path)
		if err != nil {
			d.close() // nolint: errcheck
			return nil
		}
		d.files = append(d.files, f)
		return f
	}
	d.opts.SureIntrons = open("_sure_introns.sam")
	d.opts.SureExons = open("_sure_exon.sam")
	d.opts.MaybeExons = open("_maybe_exon.sam")
	d.opts.Others = open("_not_exon_not_intron.sam")
	d.opts.Chimeras = open("_chimeras.sam")
	if len(d.files) != 5 {
		return nil, errors.E("create debug read dumps under", id.OutputFolder)
	}
	return d, nil
}

func (d *debugDumps) close() error {
	e := errors.Once{}
	for _, f := range d.files {
		e.Set(f.Close())
	}
	return e.Err()
}

// Run executes the whole per-sample pipeline: identity resolution, barcode
// reconciliation, the engine's counting passes, metadata merge, and output
// assembly. The pipeline is strictly sequential within one sample; output
// assembly starts only after Count has fully completed.
func Run(ctx context.Context, bamPath, ivlPath string, newEngine counter.Factory, opts Opts) error {
	id, err := ResolveIdentity(bamPath, opts)
	if err != nil {
		return err
	}

	var validBCs []string
	var validIdx map[string]int
	if opts.BCFile != "" {
		if validBCs, err = ReadValidBarcodes(ctx, opts.BCFile); err != nil {
			return err
		}
		validIdx = BarcodeIndex(validBCs)
		log.Debug.Printf("read %d cell barcodes from %s", len(validBCs), opts.BCFile)
	} else {
		log.Debug.Printf("cell barcodes will be determined while reading the bam file")
	}

	engine := newEngine(validIdx)
	nIvls, err := engine.ReadGenes(ctx, ivlPath)
	if err != nil {
		return err
	}
	log.Debug.Printf("read %d intervals for %d genes from %s", nIvls, len(engine.Genes()), ivlPath)
	if opts.RepMask != "" {
		nRep, err := engine.ReadRepeats(ctx, opts.RepMask)
		if err != nil {
			return err
		}
		log.Debug.Printf("read %d repeat intervals to mask from %s", nRep, opts.RepMask)
	}

	log.Debug.Printf("marking up introns")
	if err = engine.MarkUpIntrons(ctx, bamPath); err != nil {
		return err
	}

	countOpts := counter.CountOpts{}
	if opts.Debug {
		log.Debug.Printf("counting molecules and writing read dumps")
		dumps, err := openDebugDumps(id)
		if err != nil {
			return err
		}
		countOpts = dumps.opts
		countErr := engine.Count(ctx, bamPath, countOpts)
		if err := dumps.close(); err != nil && countErr == nil {
			countErr = err
		}
		if countErr != nil {
			return countErr
		}
	} else {
		log.Debug.Printf("counting molecules")
		if err = engine.Count(ctx, bamPath, countOpts); err != nil {
			return err
		}
	}

	// In discovered mode the engine's own table, sorted by its index
	// assignment, is authoritative for the final column order.
	bcs := validBCs
	if !engine.FilterMode() {
		bcs = DiscoveredBarcodes(engine.BarcodeIndex())
	}
	cellIDs := CellIDs(id.SampleID, bcs)
	if len(cellIDs) > 0 {
		log.Debug.Printf("example of barcode: %s and cell_id: %s", bcs[0], cellIDs[0])
	}

	meta, err := LookupSampleMetadata(ctx, opts.MetadataTable, opts.MetadataKeyField, id.SampleID)
	if err != nil {
		return err
	}

	if err := WriteOutputs(ctx, id, engine.Genes(), cellIDs, meta); err != nil {
		return err
	}
	log.Debug.Printf("terminated successfully")
	return nil
}
