// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashmap

import (
	"fmt"
	"testing"

	"github.com/matrixorigin/hashrelation/pkg/container/types"
	"github.com/matrixorigin/hashrelation/pkg/container/vector"
	"github.com/stretchr/testify/require"
)

func TestKeyEncoderLengthPrefixInjective(t *testing.T) {
	// ("ab","c") and ("a","bc") concatenate identically; the length
	// prefix must keep them apart
	var e KeyEncoder
	k1 := append([]byte{}, e.EncodeRow([]*vector.Vector{
		strVec(t, []string{"ab"}, nil), strVec(t, []string{"c"}, nil)}, 0)...)
	k2 := e.EncodeRow([]*vector.Vector{
		strVec(t, []string{"a"}, nil), strVec(t, []string{"bc"}, nil)}, 0)
	require.NotEqual(t, k1, k2)
}

func TestKeyEncoderNullDistinctFromValue(t *testing.T) {
	var e KeyEncoder
	null := append([]byte{}, e.EncodeRow([]*vector.Vector{
		int64Vec(t, []int64{0}, []bool{true})}, 0)...)
	zero := e.EncodeRow([]*vector.Vector{
		int64Vec(t, []int64{0}, nil)}, 0)
	require.NotEqual(t, null, zero)
}

func TestKeyEncoderRowsMatchSingle(t *testing.T) {
	vecs := []*vector.Vector{
		int64Vec(t, []int64{1, 2, 3}, []bool{false, true, false}),
		strVec(t, []string{"x", "yy", ""}, nil),
	}
	var e KeyEncoder
	keys := make([][]byte, 3)
	e.EncodeRows(vecs, 0, 3, keys)
	group := make([][]byte, 3)
	for i := range group {
		group[i] = append([]byte{}, keys[i]...)
	}
	var single KeyEncoder
	for i := 0; i < 3; i++ {
		require.Equal(t, group[i], single.EncodeRow(vecs, i))
	}
}

// Exhaustive small-alphabet check: rows agree on the composite key iff
// every column agrees on both value and nullness.
func TestCompositeKeySmallAlphabet(t *testing.T) {
	type cell struct {
		val  int64
		str  string
		net  bool // int column null
		nest bool // string column null
	}
	var cells []cell
	for _, v := range []int64{0, 1, 2} {
		for _, s := range []string{"a", "b"} {
			for _, nv := range []bool{false, true} {
				for _, ns := range []bool{false, true} {
					cells = append(cells, cell{v, s, nv, ns})
				}
			}
		}
	}

	// canonical identity of a row: null columns lose their value
	ident := func(c cell) string {
		v, s := fmt.Sprint(c.val), c.str
		if c.net {
			v = "?"
		}
		if c.nest {
			s = "?"
		}
		return v + "|" + s
	}

	// append every combination twice
	rows := append(append([]cell{}, cells...), cells...)
	ints := make([]int64, len(rows))
	strs := make([]string, len(rows))
	intNulls := make([]bool, len(rows))
	strNulls := make([]bool, len(rows))
	ref := make(map[string][]RowLocation)
	for i, c := range rows {
		ints[i], strs[i], intNulls[i], strNulls[i] = c.val, c.str, c.net, c.nest
		ref[ident(c)] = append(ref[ident(c)], RowLocation{0, uint32(i)})
	}

	r, err := NewHashRelation([]types.Type{int64Type, varcharType}, nil, nil)
	require.NoError(t, err)
	defer r.Free()
	keyVecs := []*vector.Vector{
		int64Vec(t, ints, intNulls),
		strVec(t, strs, strNulls),
	}
	require.NoError(t, r.AppendKeyColumn(keyVecs, nil))

	// composite keys encode per-column nullness instead of using the
	// null bucket
	require.Equal(t, HashNewKey, r.GetNull())
	require.Empty(t, r.NullRows())

	for i, c := range rows {
		locs, ok := r.Get(keyVecs, i)
		require.True(t, ok)
		require.Equal(t, ref[ident(c)], locs, "row %d (%s)", i, ident(c))
	}
}
