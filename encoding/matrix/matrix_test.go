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
package matrix

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func testMatrix() *Matrix {
	return &Matrix{
		RowAttrs: []Attr{
			{Name: "Gene", Kind: AttrString, Strings: []string{"G1", "G2"}},
			{Name: "Start", Kind: AttrInt, Ints: []int64{1000, -5}},
			{Name: "Score", Kind: AttrFloat, Floats: []float64{0.5, 1.25}},
		},
		ColAttrs: []Attr{
			{Name: "CellID", Kind: AttrString, Strings: []string{"s:AAA-1", "s:CCC-1", "s:GGG-1"}},
		},
		Layers: []Layer{
			{Name: "matrix", Data: [][]float32{{1, 2, 3}, {4, 5, 6}}},
			{Name: "spliced", Data: [][]float32{{1, 0, 3}, {0, 5, 0}}},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	want := testMatrix()
	var buf bytes.Buffer
	assert.NoError(t, WriteTo(&buf, want))
	got, err := ReadFrom(bytes.NewReader(buf.Bytes()))
	assert.NoError(t, err)
	expect.EQ(t, got, want)
	expect.EQ(t, got.Rows(), 2)
	expect.EQ(t, got.Cols(), 3)
	expect.EQ(t, got.Layer("spliced").Data[1][1], float32(5))
	expect.Nil(t, got.Layer("absent"))
}

func TestRoundTripFile(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := filepath.Join(tmp, "sample"+Ext)
	want := testMatrix()
	assert.NoError(t, Write(ctx, path, want))
	got, err := Read(ctx, path)
	assert.NoError(t, err)
	expect.EQ(t, got, want)
}

func TestValidate(t *testing.T) {
	expect.NotNil(t, (&Matrix{}).Validate())

	m := testMatrix()
	m.Layers[1].Data = m.Layers[1].Data[:1]
	expect.HasSubstr(t, m.Validate().Error(), "row count mismatch")

	m = testMatrix()
	m.Layers[0].Data[1] = m.Layers[0].Data[1][:2]
	expect.HasSubstr(t, m.Validate().Error(), "column count mismatch")

	m = testMatrix()
	m.RowAttrs[0].Strings = append(m.RowAttrs[0].Strings, "G3")
	expect.HasSubstr(t, m.Validate().Error(), "row attribute")

	m = testMatrix()
	m.ColAttrs[0].Strings = m.ColAttrs[0].Strings[:2]
	expect.HasSubstr(t, m.Validate().Error(), "column attribute")
}

func TestWriteRejectsInvalid(t *testing.T) {
	m := testMatrix()
	m.RowAttrs[1].Ints = nil
	var buf bytes.Buffer
	expect.NotNil(t, WriteTo(&buf, m))
	expect.EQ(t, buf.Len(), 0)
}

func TestWriteTSV(t *testing.T) {
	m := &Matrix{
		RowAttrs: []Attr{
			{Name: "Gene", Kind: AttrString, Strings: []string{"G1", "G2"}},
			{Name: "Start", Kind: AttrInt, Ints: []int64{10, 20}},
		},
		ColAttrs: []Attr{
			{Name: "CellID", Kind: AttrString, Strings: []string{"c0", "c1"}},
		},
		Layers: []Layer{{Name: "matrix", Data: [][]float32{{1, 0}, {2.5, 3}}}},
	}
	var buf bytes.Buffer
	assert.NoError(t, WriteTSV(m, "matrix", &buf))
	expect.EQ(t, buf.String(),
		"Gene\tStart\tc0\tc1\n"+
			"G1\t10\t1\t0\n"+
			"G2\t20\t2.5\t3\n")

	expect.NotNil(t, WriteTSV(m, "absent", &buf))
}
