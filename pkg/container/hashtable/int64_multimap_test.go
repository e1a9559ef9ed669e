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

package hashtable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInt64InsertAndFind(t *testing.T) {
	var ht Int64MultiMap
	require.NoError(t, ht.Init(nil, 0, 0, 8))
	defer ht.Free()

	ref := make(map[uint64][]uint64)
	for i := uint64(0); i < 3000; i++ {
		key := i % 300
		require.NoError(t, ht.Insert(key, payloadOf(i)))
		ref[key] = append(ref[key], i)
	}

	require.Equal(t, uint64(300), ht.Cardinality())
	require.Equal(t, uint64(3000), ht.RowCount())

	for key, want := range ref {
		b := ht.Find(key)
		require.False(t, b.IsEmpty())
		require.Equal(t, want, collect(b), "bucket of %d", key)
	}
	require.True(t, ht.Find(1<<40).IsEmpty())
}

func TestInt64ZeroKey(t *testing.T) {
	var ht Int64MultiMap
	require.NoError(t, ht.Init(nil, 0, 0, 8))
	defer ht.Free()

	// key 0 must behave like any other key; occupancy is tracked by
	// the key record offset, not the key value
	require.NoError(t, ht.Insert(0, payloadOf(10)))
	require.NoError(t, ht.Insert(0, payloadOf(11)))
	require.NoError(t, ht.Insert(1, payloadOf(12)))

	require.Equal(t, []uint64{10, 11}, collect(ht.Find(0)))
	require.Equal(t, []uint64{12}, collect(ht.Find(1)))
	require.Equal(t, uint64(2), ht.Cardinality())
}

func TestInt64GrowPreservesAssociations(t *testing.T) {
	var ht Int64MultiMap
	require.NoError(t, ht.Init(nil, 0, 0, 8))
	defer ht.Free()

	const distinct = 40000
	for i := uint64(0); i < distinct; i++ {
		require.NoError(t, ht.Insert(i, payloadOf(i*2)))
	}
	require.NoError(t, ht.GrowAndRehash())

	for i := uint64(0); i < distinct; i++ {
		require.Equal(t, []uint64{i * 2}, collect(ht.Find(i)))
	}
}

func TestInt64InsertBatch(t *testing.T) {
	var ht Int64MultiMap
	require.NoError(t, ht.Init(nil, 0, 0, 8))
	defer ht.Free()

	n := 512
	hashes := make([]uint64, n)
	keys := make([]uint64, n)
	payloads := make([][]byte, n)
	zs := make([]int64, n)
	for i := 0; i < n; i++ {
		keys[i] = uint64(i % 16)
		payloads[i] = payloadOf(uint64(i))
		zs[i] = 1
	}
	zs[0] = 0

	require.NoError(t, ht.InsertBatch(hashes, keys, payloads, zs))
	require.Equal(t, uint64(n-1), ht.RowCount())

	buckets := make([]Bucket, n)
	ht.FindBatch(hashes, keys, buckets, nil)
	var want []uint64
	for j := 16; j < n; j += 16 {
		want = append(want, uint64(j))
	}
	require.Equal(t, want, collect(buckets[16]))
}

func TestInt64AttachRoundTrip(t *testing.T) {
	var ht Int64MultiMap
	require.NoError(t, ht.Init(nil, 0, 0, 8))
	defer ht.Free()

	for i := uint64(0); i < 100; i++ {
		require.NoError(t, ht.Insert(i%10, payloadOf(i)))
	}

	regions, err := ht.ExportRegions()
	require.NoError(t, err)

	var view Int64MultiMap
	require.NoError(t, view.AttachRegions(regions))
	for i := uint64(0); i < 10; i++ {
		require.Equal(t, collect(ht.Find(i)), collect(view.Find(i)))
	}
	require.Panics(t, func() {
		_ = view.Insert(99, payloadOf(0))
	})
	view.Free()

	// exporter unaffected by the view's lifecycle
	require.Equal(t, uint64(10), ht.Cardinality())
}

func TestInt64MarshalRoundTrip(t *testing.T) {
	var ht Int64MultiMap
	require.NoError(t, ht.Init(nil, 0, 0, 8))
	defer ht.Free()

	for i := uint64(0); i < 5000; i++ {
		require.NoError(t, ht.Insert(i%500, payloadOf(i)))
	}

	data, err := ht.MarshalBinary()
	require.NoError(t, err)

	var ht2 Int64MultiMap
	require.NoError(t, ht2.UnmarshalBinary(data, nil))
	defer ht2.Free()

	require.Equal(t, ht.Cardinality(), ht2.Cardinality())
	for i := uint64(0); i < 500; i++ {
		require.Equal(t, collect(ht.Find(i)), collect(ht2.Find(i)))
	}
}
