package sample

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	baseerrors "github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// ErrConfiguration is returned when a metadata merge is requested without an
// explicit sample id: the lookup key must come from the caller, not be
// invented here.
var ErrConfiguration = errors.New("sample: metadata table requires an explicit sample id")

// Identity is the resolved sample id and output location of one run.
type Identity struct {
	SampleID     string
	OutputFolder string
}

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	idRandMu sync.Mutex
	idRand   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func randomSuffix(n int) string {
	idRandMu.Lock()
	defer idRandMu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = idAlphabet[idRand.Intn(len(idAlphabet))]
	}
	return string(b)
}

// ResolveIdentity derives the sample id and output folder when not given
// explicitly, and creates the output folder. Folder creation is idempotent
// and tolerates racing pipeline instances targeting sibling samples.
func ResolveIdentity(bamPath string, opts Opts) (Identity, error) {
	id := Identity{SampleID: opts.SampleID, OutputFolder: opts.OutputFolder}
	if id.SampleID == "" {
		if opts.MetadataTable != "" {
			return Identity{}, ErrConfiguration
		}
		base := filepath.Base(bamPath)
		if dot := strings.IndexByte(base, '.'); dot >= 0 {
			base = base[:dot]
		}
		id.SampleID = base + "_" + randomSuffix(opts.IDSuffixLen)
		log.Debug.Printf("no sample id specified, the sample will be called %s", id.SampleID)
	}
	if id.OutputFolder == "" {
		id.OutputFolder = filepath.Join(filepath.Dir(bamPath), opts.OutputDirName)
		log.Debug.Printf("no output folder specified, find output files inside %s", id.OutputFolder)
	}
	if err := os.MkdirAll(id.OutputFolder, 0777); err != nil {
		return Identity{}, baseerrors.E(err, "create output folder", id.OutputFolder)
	}
	return id, nil
}
