package main

//
// velo converts per-molecule read-count evidence into persisted per-sample
// datasets, and coordinates running that pipeline across many samples.
//
//   velo run BAMFILE IVLFILE        run the pipeline on one sample
//   velo run10x SAMPLEFOLDER IVLFILE  same, on a Chromium sample folder
//   velo multi PARENTFOLDER IVLFILE   dispatch workers over many samples
//   velo view MATRIXFILE            dump a count-matrix artifact as TSV
//
// The molecule-counting engine itself is linked in separately and registers
// itself with the counter package.

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/velo/counter"
	"github.com/grailbio/velo/dispatch"
	"github.com/grailbio/velo/encoding/matrix"
	"github.com/grailbio/velo/sample"
	"v.io/x/lib/cmdline"
)

func engineFactory() (counter.Factory, error) {
	if !counter.EngineRegistered() {
		return nil, fmt.Errorf("no counting engine is linked into this binary")
	}
	return func(valid map[string]int) counter.Engine {
		engine, err := counter.NewEngine(valid)
		if err != nil {
			log.Panicf("%v", err)
		}
		return engine
	}, nil
}

func newCmdRun() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "run",
		Short:    "Run the counting pipeline on a single sample",
		ArgsName: "bamfile ivlfile",
	}
	opts := sample.DefaultOpts
	cmd.Flags.StringVar(&opts.SampleID, "sampleid", "", "Sample name used in cell ids and output file names. Default: bam file base name plus a random suffix")
	cmd.Flags.StringVar(&opts.OutputFolder, "outputfolder", "", "Folder receiving the output files. Default: a 'velo' subdirectory next to the bam file")
	cmd.Flags.StringVar(&opts.BCFile, "bcfile", "", "Valid barcode list, one barcode per line, plain or gzipped. If unset, barcodes are accepted as discovered during counting")
	cmd.Flags.StringVar(&opts.MetadataTable, "metadatatable", "", "Sample sheet (csv, row per sample) merged into the column attributes; requires -sampleid")
	cmd.Flags.StringVar(&opts.RepMask, "repmask", "", "Repeat intervals to mask, sorted by chromosome, strand, position")
	cmd.Flags.BoolVar(&opts.Debug, "debug", false, "Also dump the classified reads into per-category .sam files")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("run takes bamfile and ivlfile arguments, but got %v", argv)
		}
		factory, err := engineFactory()
		if err != nil {
			return err
		}
		ctx := vcontext.Background()
		return sample.Run(ctx, argv[0], argv[1], factory, opts)
	})
	return cmd
}

func newCmdRun10x() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "run10x",
		Short:    "Run the counting pipeline on one Chromium sample folder",
		ArgsName: "samplefolder ivlfile",
	}
	opts := sample.DefaultOpts
	bcFile := cmd.Flags.String("bcfile", "", "Valid barcode list. Default: outs/barcodes.tsv.gz inside the sample folder, when present")
	cmd.Flags.StringVar(&opts.MetadataTable, "metadatatable", "", "Sample sheet (csv, row per sample) merged into the column attributes")
	cmd.Flags.StringVar(&opts.RepMask, "repmask", "", "Repeat intervals to mask, sorted by chromosome, strand, position")
	cmd.Flags.BoolVar(&opts.Debug, "debug", false, "Also dump the classified reads into per-category .sam files")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("run10x takes samplefolder and ivlfile arguments, but got %v", argv)
		}
		folder, ivlPath := argv[0], argv[1]
		opts.SampleID = filepath.Base(filepath.Clean(folder))
		opts.OutputFolder = filepath.Join(folder, opts.OutputDirName)
		bamPath := filepath.Join(folder, "outs", "possorted_genome_bam.bam")
		opts.BCFile = *bcFile
		if opts.BCFile == "" {
			if bc := filepath.Join(folder, "outs", "barcodes.tsv.gz"); fileExists(bc) {
				opts.BCFile = bc
			}
		}
		factory, err := engineFactory()
		if err != nil {
			return err
		}
		ctx := vcontext.Background()
		return sample.Run(ctx, bamPath, ivlPath, factory, opts)
	})
	return cmd
}

func newCmdMulti() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "multi",
		Short:    "Run the counting pipeline on multiple Chromium samples in parallel",
		ArgsName: "parentfolder ivlfile",
	}
	opts := dispatch.DefaultOpts
	waitSec := cmd.Flags.Int("w", int(dispatch.DefaultOpts.Delay/time.Second), "Delay in seconds between launches of single-sample workers")
	cmd.Flags.IntVar(&opts.MaxLaunch, "n", dispatch.DefaultOpts.MaxLaunch, "Number of worker processes to launch in this invocation")
	cmd.Flags.StringVar(&opts.Pattern, "pattern", dispatch.DefaultOpts.Pattern, "Directory-name glob identifying candidate samples under the parent folder")
	cmd.Flags.StringVar(&opts.LogFolder, "logfolder", "", "Folder receiving the per-sample log files. Default: the parent folder")
	cmd.Flags.StringVar(&opts.MetadataTable, "metadatatable", "", "Sample sheet forwarded to every worker")
	cmd.Flags.StringVar(&opts.RepMask, "repmask", "", "Repeat mask forwarded to every worker")
	cmd.Flags.BoolVar(&opts.Debug, "debug", false, "Forward -debug to every worker")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("multi takes parentfolder and ivlfile arguments, but got %v", argv)
		}
		opts.Delay = time.Duration(*waitSec) * time.Second
		ctx := vcontext.Background()
		jobs, err := dispatch.Dispatch(ctx, argv[0], argv[1], opts)
		for _, job := range jobs {
			log.Printf("%s: %s", job.SampleID, job.State)
		}
		return err
	})
	return cmd
}

func newCmdView() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "view",
		Short:    "Dump one layer of a count-matrix artifact as TSV",
		ArgsName: "matrixfile",
	}
	layer := cmd.Flags.String("layer", sample.LayerMatrix, "Layer to dump")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("view takes one matrixfile argument, but got %v", argv)
		}
		ctx := vcontext.Background()
		m, err := matrix.Read(ctx, argv[0])
		if err != nil {
			return err
		}
		return matrix.WriteTSV(m, *layer, env.Stdout)
	})
	return cmd
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "velo",
			Short:    "Aggregate per-molecule count evidence into per-sample datasets",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdRun(),
				newCmdRun10x(),
				newCmdMulti(),
				newCmdView(),
			},
		})
}
