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
package mapstats

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func testStats() []GeneStats {
	return []GeneStats{
		{
			Accession: "ENSG1",
			Reads: [NumRows][]uint32{
				{3, 0, 5},
				{7, 1, 11},
				{2, 0, 0},
			},
			Types:       []string{"exo", "int", "exo"},
			Lengths:     []uint32{100, 700, 200},
			ValidIntron: []bool{false, true, false},
		},
		{
			Accession: "ENSG2",
			Reads: [NumRows][]uint32{
				{9},
				{4},
				{6},
			},
			Types:       []string{"exo"},
			Lengths:     []uint32{350},
			ValidIntron: []bool{false},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	want := testStats()
	var buf bytes.Buffer
	assert.NoError(t, WriteTo(&buf, want))
	got, err := ReadFrom(bytes.NewReader(buf.Bytes()))
	assert.NoError(t, err)
	expect.EQ(t, got, want)
	expect.EQ(t, got[0].NumIntervals(), 3)
	expect.EQ(t, got[1].NumIntervals(), 1)
}

func TestRoundTripEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, WriteTo(&buf, nil))
	got, err := ReadFrom(bytes.NewReader(buf.Bytes()))
	assert.NoError(t, err)
	expect.EQ(t, len(got), 0)
}

func TestRoundTripFile(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := filepath.Join(tmp, "sample"+Ext)
	want := testStats()
	assert.NoError(t, Write(ctx, path, want))
	got, err := Read(ctx, path)
	assert.NoError(t, err)
	expect.EQ(t, got, want)
}

func TestWriteRejectsRaggedGroup(t *testing.T) {
	bad := testStats()
	bad[0].Lengths = bad[0].Lengths[:2]
	var buf bytes.Buffer
	expect.NotNil(t, WriteTo(&buf, bad))
}
