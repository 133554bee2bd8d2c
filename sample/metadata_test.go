package sample

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestLookupSampleMetadata(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	sheet := filepath.Join(tmp, "sheet.csv")
	assert.NoError(t, ioutil.WriteFile(sheet, []byte(
		"SampleID,Tissue,Passage\nS1,liver,3\nS2,brain,7\nS2,brain,8\n"), 0600))

	// No sheet configured: empty row, no error.
	row, err := LookupSampleMetadata(ctx, "", "SampleID", "S1")
	assert.NoError(t, err)
	expect.EQ(t, row.Len(), 0)

	// Exactly one row: the sample's record.
	row, err = LookupSampleMetadata(ctx, sheet, "SampleID", "S1")
	assert.NoError(t, err)
	expect.EQ(t, row.Fields, []string{"SampleID", "Tissue", "Passage"})
	v, ok := row.Value("Passage")
	assert.True(t, ok)
	expect.EQ(t, v.Int, int64(3))

	// Absent sample: logged, empty row, no error.
	row, err = LookupSampleMetadata(ctx, sheet, "SampleID", "S9")
	assert.NoError(t, err)
	expect.EQ(t, row.Len(), 0)

	// Ambiguous sample: hard error.
	_, err = LookupSampleMetadata(ctx, sheet, "SampleID", "S2")
	expect.EQ(t, err, ErrAmbiguousMetadata)

	// Unreadable sheet: hard error.
	_, err = LookupSampleMetadata(ctx, filepath.Join(tmp, "absent.csv"), "SampleID", "S1")
	expect.NotNil(t, err)
}
