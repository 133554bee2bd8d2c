package sample

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func TestResolveIdentityExplicit(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	opts := DefaultOpts
	opts.SampleID = "mysample"
	opts.OutputFolder = filepath.Join(tmp, "out")
	id, err := ResolveIdentity(filepath.Join(tmp, "a.bam"), opts)
	assert.NoError(t, err)
	expect.EQ(t, id.SampleID, "mysample")
	expect.EQ(t, id.OutputFolder, opts.OutputFolder)
	expect.True(t, isDir(opts.OutputFolder))
}

func TestResolveIdentityGenerated(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	bam := filepath.Join(tmp, "10X53_1.sorted.bam")
	id, err := ResolveIdentity(bam, DefaultOpts)
	assert.NoError(t, err)

	// Basename up to the first dot, then "_" and five alphanumerics.
	expect.True(t, strings.HasPrefix(id.SampleID, "10X53_1_"), "got %s", id.SampleID)
	suffix := strings.TrimPrefix(id.SampleID, "10X53_1_")
	expect.EQ(t, len(suffix), DefaultOpts.IDSuffixLen)
	for _, c := range suffix {
		expect.True(t, strings.ContainsRune(idAlphabet, c), "bad suffix char %c", c)
	}

	expect.EQ(t, id.OutputFolder, filepath.Join(tmp, DefaultOpts.OutputDirName))
	expect.True(t, isDir(id.OutputFolder))

	id2, err := ResolveIdentity(bam, DefaultOpts)
	assert.NoError(t, err)
	expect.NEQ(t, id2.SampleID, id.SampleID)
}

func TestResolveIdentityRequiresIDForMetadata(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	opts := DefaultOpts
	opts.MetadataTable = filepath.Join(tmp, "sheet.csv")
	_, err := ResolveIdentity(filepath.Join(tmp, "a.bam"), opts)
	expect.EQ(t, err, ErrConfiguration)
}
