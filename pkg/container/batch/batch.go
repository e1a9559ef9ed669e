// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package batch

import (
	"github.com/matrixorigin/hashrelation/pkg/common/moerr"
	"github.com/matrixorigin/hashrelation/pkg/container/vector"
)

// Batch represents a part of a relationship: a list of attributes and
// one column vector per attribute, all of the same length.
type Batch struct {
	// Attrs column name list
	Attrs []string
	// Vecs col data
	Vecs []*vector.Vector
}

func New(attrs []string) *Batch {
	return &Batch{
		Attrs: attrs,
		Vecs:  make([]*vector.Vector, len(attrs)),
	}
}

func NewWithSize(n int) *Batch {
	return &Batch{
		Vecs: make([]*vector.Vector, n),
	}
}

func (bat *Batch) SetVector(i int32, vec *vector.Vector) {
	bat.Vecs[i] = vec
}

func (bat *Batch) GetVector(i int32) *vector.Vector {
	return bat.Vecs[i]
}

func (bat *Batch) VectorCount() int {
	return len(bat.Vecs)
}

func (bat *Batch) RowCount() int {
	if len(bat.Vecs) == 0 {
		return 0
	}
	return bat.Vecs[0].Length()
}

func (bat *Batch) IsEmpty() bool {
	return bat.RowCount() == 0
}

// Sanity verifies that all column vectors agree on the row count.
func (bat *Batch) Sanity() error {
	for i, vec := range bat.Vecs {
		if vec == nil {
			return moerr.NewInvalidInputNoCtx("batch column %d is nil", i)
		}
		if vec.Length() != bat.RowCount() {
			return moerr.NewInvalidInputNoCtx(
				"batch column %d has %d rows, want %d", i, vec.Length(), bat.RowCount())
		}
	}
	return nil
}
