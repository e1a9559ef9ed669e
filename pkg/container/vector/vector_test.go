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

package vector

import (
	"testing"

	"github.com/matrixorigin/hashrelation/pkg/container/types"
	"github.com/stretchr/testify/require"
)

func TestFixedAppendAndGet(t *testing.T) {
	v := New(types.New(types.T_int64, 0, 0))
	require.NoError(t, AppendList(v, []int64{7, -1, 0}, []bool{false, false, true}))

	require.Equal(t, 3, v.Length())
	require.Equal(t, int64(7), GetFixedAt[int64](v, 0))
	require.Equal(t, int64(-1), GetFixedAt[int64](v, 1))
	require.False(t, v.IsNull(0))
	require.True(t, v.IsNull(2))
	require.Equal(t, []int64{7, -1, 0}, GetFixedVectorValues[int64](v))
}

func TestStringAppendAndGet(t *testing.T) {
	v := New(types.New(types.T_varchar, 0, 0))
	require.NoError(t, AppendStringList(v, []string{"a", "", "abc"}, []bool{false, true, false}))

	require.Equal(t, 3, v.Length())
	require.Equal(t, []byte("a"), v.GetBytes(0))
	require.Equal(t, "abc", v.GetString(2))
	require.True(t, v.IsNull(1))
}

func TestMarshalRoundTrip(t *testing.T) {
	fixed := New(types.New(types.T_int32, 0, 0))
	require.NoError(t, AppendList(fixed, []int32{1, 2, 3}, []bool{false, true, false}))
	str := New(types.New(types.T_varchar, 0, 0))
	require.NoError(t, AppendStringList(str, []string{"x", "yy"}, nil))

	for _, v := range []*Vector{fixed, str} {
		data, err := v.MarshalBinary()
		require.NoError(t, err)

		var v2 Vector
		require.NoError(t, v2.UnmarshalBinary(data))
		require.Equal(t, v.Length(), v2.Length())
		require.Equal(t, v.GetType().Oid, v2.GetType().Oid)
		for i := 0; i < v.Length(); i++ {
			require.Equal(t, v.IsNull(uint64(i)), v2.IsNull(uint64(i)))
		}
	}
}
