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
	"io"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// WriteTSV renders one layer of m as TSV for eyeballing: the row-attribute
// columns followed by one column per cell, headed by the first column
// attribute (CellID by convention).
func WriteTSV(m *Matrix, layerName string, w io.Writer) (err error) {
	layer := m.Layer(layerName)
	if layer == nil {
		return errors.E("matrix: no layer named", layerName)
	}
	var cellHeads []string
	if len(m.ColAttrs) > 0 && m.ColAttrs[0].Kind == AttrString {
		cellHeads = m.ColAttrs[0].Strings
	}
	out := tsv.NewWriter(w)
	for i := range m.RowAttrs {
		out.WriteString(m.RowAttrs[i].Name)
	}
	for c := 0; c < m.Cols(); c++ {
		if c < len(cellHeads) {
			out.WriteString(cellHeads[c])
		} else {
			out.WriteString("cell" + strconv.Itoa(c))
		}
	}
	if err = out.EndLine(); err != nil {
		return err
	}
	for r := 0; r < m.Rows(); r++ {
		for i := range m.RowAttrs {
			a := &m.RowAttrs[i]
			switch a.Kind {
			case AttrInt:
				out.WriteString(strconv.FormatInt(a.Ints[r], 10))
			case AttrFloat:
				out.WriteString(strconv.FormatFloat(a.Floats[r], 'g', -1, 64))
			default:
				out.WriteString(a.Strings[r])
			}
		}
		for _, v := range layer.Data[r] {
			out.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
		if err = out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}
