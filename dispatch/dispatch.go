// Package dispatch fans the per-sample pipeline out over a directory of
// candidate samples. Claiming a sample is the atomic creation of its output
// subdirectory; a claim that fails because another dispatcher got there
// first is an accepted race, not an error. Launched workers are independent
// processes: the dispatcher never waits on, monitors, or reaps them.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/velo/encoding/matrix"
)

// State records what the dispatcher did with one candidate sample.
type State int

const (
	// Launched means a worker process was started for the sample.
	Launched State = iota
	// LaunchFailed means the claim succeeded but the worker process could
	// not be started; the failure is recorded in the sample's log file.
	LaunchFailed
	// SkippedClaimed means another dispatcher claimed the sample between our
	// directory listing and our claim attempt.
	SkippedClaimed
	// SkippedDone means the sample already has a completed artifact or an
	// existing launch log.
	SkippedDone
)

func (s State) String() string {
	switch s {
	case Launched:
		return "launched"
	case LaunchFailed:
		return "launch-failed"
	case SkippedClaimed:
		return "skipped-claimed"
	case SkippedDone:
		return "skipped-done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Job is the record of one candidate sample, retained so callers can
// inspect what was launched even though no active supervision happens.
type Job struct {
	SampleID  string
	SampleDir string
	OutputDir string
	LogPath   string
	State     State
	// PID of the worker process, when State is Launched.
	PID int
}

// Opts configures one dispatch invocation.
type Opts struct {
	// Pattern is the directory-name glob that identifies candidate samples
	// under the parent folder.
	Pattern string
	// OutputDirName is the per-sample output subdirectory whose creation
	// claims the sample.
	OutputDirName string
	// MaxLaunch caps the number of workers started in this invocation.
	MaxLaunch int
	// Delay is the fixed pause after each launch before the next candidate
	// is evaluated.
	Delay time.Duration
	// LogFolder receives one combined-output log file per launched sample.
	// Empty means the parent folder.
	LogFolder string
	// Worker is the argv prefix of the per-sample worker; the dispatcher
	// appends its own flags and the sample folder and interval file.
	Worker []string
	// MetadataTable, RepMask, and Debug are forwarded to the worker.
	MetadataTable string
	RepMask       string
	Debug         bool
}

// DefaultOpts sets the default values of Opts.
var DefaultOpts = Opts{
	Pattern:       "10X*",
	OutputDirName: "velo",
	MaxLaunch:     5,
	Delay:         20 * time.Second,
	Worker:        []string{"velo", "run10x"},
}

// Dispatch walks the candidate sample directories under parent in sorted
// order and launches one worker per unclaimed, uncompleted sample, up to
// opts.MaxLaunch. It returns a record per evaluated candidate.
func Dispatch(ctx context.Context, parent, ivlPath string, opts Opts) ([]Job, error) {
	logFolder := opts.LogFolder
	if logFolder == "" {
		logFolder = parent
	}
	if err := os.MkdirAll(logFolder, 0777); err != nil {
		return nil, errors.E(err, "create log folder", logFolder)
	}
	candidates, err := filepath.Glob(filepath.Join(parent, opts.Pattern))
	if err != nil {
		return nil, errors.E(err, "list candidates under", parent)
	}
	sort.Strings(candidates)

	log.Debug.Printf("attempting to start %d processes", opts.MaxLaunch)
	var jobs []Job
	launched := 0
	for _, dir := range candidates {
		if err := ctx.Err(); err != nil {
			return jobs, err
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		job := Job{
			SampleID:  filepath.Base(dir),
			SampleDir: dir,
			OutputDir: filepath.Join(dir, opts.OutputDirName),
		}
		job.LogPath = filepath.Join(logFolder, "nohup_"+job.SampleID+".out")

		if done(job.OutputDir) || exists(job.LogPath) {
			log.Debug.Printf("skipping %s, appears already running or run", job.SampleID)
			job.State = SkippedDone
			jobs = append(jobs, job)
			continue
		}

		if err := os.Mkdir(job.OutputDir, 0777); err != nil {
			if os.IsExist(err) {
				// Another dispatcher, now or in a previous run, already
				// claimed this sample. Move on.
				log.Debug.Printf("%s has already been claimed, skipping", job.SampleID)
				job.State = SkippedClaimed
				jobs = append(jobs, job)
				continue
			}
			return jobs, errors.E(err, "claim sample", job.SampleID)
		}

		launch(&job, dir, ivlPath, opts)
		jobs = append(jobs, job)
		if job.State == Launched {
			launched++
			if launched >= opts.MaxLaunch {
				log.Debug.Printf("done")
				break
			}
			time.Sleep(opts.Delay)
		}
	}
	return jobs, nil
}

// done reports whether the output directory already holds a completed
// count-matrix artifact.
func done(outputDir string) bool {
	matches, err := filepath.Glob(filepath.Join(outputDir, "*"+matrix.Ext))
	return err == nil && len(matches) > 0
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// launch starts the worker for one claimed sample, redirecting its combined
// output to the job's log file. A failure to start is written to that log
// and recorded on the job; it never stops the dispatch loop.
func launch(job *Job, sampleDir, ivlPath string, opts Opts) {
	argv := append([]string(nil), opts.Worker...)
	if opts.MetadataTable != "" {
		argv = append(argv, "-metadatatable="+opts.MetadataTable)
	}
	if opts.RepMask != "" {
		argv = append(argv, "-repmask="+opts.RepMask)
	}
	if opts.Debug {
		argv = append(argv, "-debug")
	}
	argv = append(argv, sampleDir, ivlPath)

	logFile, err := os.Create(job.LogPath)
	if err != nil {
		log.Error.Printf("%s: create log file: %v", job.SampleID, err)
		job.State = LaunchFailed
		return
	}
	defer logFile.Close() // nolint: errcheck

	log.Debug.Printf("running the command %v > %s", argv, job.LogPath)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	// A new process group, so terminal signals aimed at the dispatcher do
	// not reach the workers.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(logFile, "launch failed: %v\n", err)
		job.State = LaunchFailed
		return
	}
	job.State = Launched
	job.PID = cmd.Process.Pid
	// Fire and forget: release the handle so the child is not reaped by us.
	_ = cmd.Process.Release()
}
