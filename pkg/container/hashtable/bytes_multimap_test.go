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
	"fmt"
	"testing"

	"github.com/matrixorigin/hashrelation/pkg/common/malloc"
	"github.com/matrixorigin/hashrelation/pkg/common/moerr"
	"github.com/matrixorigin/hashrelation/pkg/container/types"
	"github.com/stretchr/testify/require"
)

func payloadOf(i uint64) []byte {
	return types.EncodeFixed(i)
}

func collect(b Bucket) []uint64 {
	var vs []uint64
	b.ForEach(func(p []byte) bool {
		vs = append(vs, types.DecodeFixed[uint64](p))
		return true
	})
	return vs
}

func TestBytesInsertAndFind(t *testing.T) {
	var ht BytesMultiMap
	require.NoError(t, ht.Init(nil, 0, 0, 8))
	defer ht.Free()

	ref := make(map[string][]uint64)
	for i := uint64(0); i < 1000; i++ {
		key := []byte(fmt.Sprintf("key-%d", i%100))
		require.NoError(t, ht.Insert(key, payloadOf(i)))
		ref[string(key)] = append(ref[string(key)], i)
	}

	require.Equal(t, uint64(100), ht.Cardinality())
	require.Equal(t, uint64(1000), ht.RowCount())

	for key, want := range ref {
		b := ht.Find([]byte(key))
		require.False(t, b.IsEmpty())
		require.Equal(t, len(want), b.Count())
		require.Equal(t, want, collect(b), "bucket of %s", key)
	}

	require.True(t, ht.Find([]byte("missing")).IsEmpty())
}

func TestBytesInsertBatch(t *testing.T) {
	var ht BytesMultiMap
	require.NoError(t, ht.Init(nil, 0, 0, 8))
	defer ht.Free()

	n := 256
	states := make([][3]uint64, n)
	keys := make([][]byte, n)
	payloads := make([][]byte, n)
	zs := make([]int64, n)
	for i := 0; i < n; i++ {
		keys[i] = []byte(fmt.Sprintf("k%d", i%10))
		payloads[i] = payloadOf(uint64(i))
		zs[i] = 1
	}
	// rows marked zero are skipped entirely
	zs[3] = 0
	zs[7] = 0

	require.NoError(t, ht.InsertBatch(states, keys, payloads, zs))
	require.Equal(t, uint64(n-2), ht.RowCount())

	buckets := make([]Bucket, n)
	ht.FindBatch(states, keys, buckets, nil)
	for i := 0; i < 10; i++ {
		var want []uint64
		for j := i; j < n; j += 10 {
			if zs[j] != 0 {
				want = append(want, uint64(j))
			}
		}
		require.Equal(t, want, collect(buckets[i]))
	}
}

func TestBytesGrowPreservesAssociations(t *testing.T) {
	var ht BytesMultiMap
	require.NoError(t, ht.Init(nil, 0, 0, 8))
	defer ht.Free()

	// enough distinct keys to force several resizes past the initial
	// 1024-cell array
	const distinct = 50000
	for i := uint64(0); i < distinct; i++ {
		require.NoError(t, ht.Insert([]byte(fmt.Sprintf("key-%d", i)), payloadOf(i)))
	}
	require.Equal(t, uint64(distinct), ht.Cardinality())

	require.NoError(t, ht.GrowAndRehash())

	for i := uint64(0); i < distinct; i++ {
		b := ht.Find([]byte(fmt.Sprintf("key-%d", i)))
		require.Equal(t, []uint64{i}, collect(b))
	}
}

func TestBytesCapacityExceeded(t *testing.T) {
	var ht BytesMultiMap
	require.NoError(t, ht.Init(nil, 0, 1<<14, 8))
	defer ht.Free()

	var err error
	for i := uint64(0); i < 1<<14; i++ {
		if err = ht.Insert([]byte(fmt.Sprintf("key-%d", i)), payloadOf(i)); err != nil {
			break
		}
	}
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrCapacityExceeded))
}

func TestBytesCapacityClampsToMaxBytes(t *testing.T) {
	// A budget between two doublings: growth must clamp the last step
	// to maxBytes instead of failing at the previous power of two.
	const maxBytes = 96 << 10

	var ht BytesMultiMap
	require.NoError(t, ht.Init(nil, 0, maxBytes, 8))
	defer ht.Free()

	var err error
	for i := uint64(0); err == nil; i++ {
		err = ht.Insert([]byte(fmt.Sprintf("key-%07d", i)), payloadOf(i))
	}
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrCapacityExceeded))
	require.Greater(t, ht.hdr.cursor, uint64(64<<10))
	require.Equal(t, uint64(maxBytes), ht.hdr.bytesCap)
}

func TestBytesAttachRoundTrip(t *testing.T) {
	allocator := malloc.NewGoAllocator()

	var ht BytesMultiMap
	require.NoError(t, ht.Init(allocator, 0, 0, 8))
	defer ht.Free()

	for i := uint64(0); i < 500; i++ {
		require.NoError(t, ht.Insert([]byte(fmt.Sprintf("key-%d", i%50)), payloadOf(i)))
	}

	regions, err := ht.ExportRegions()
	require.NoError(t, err)

	var view BytesMultiMap
	require.NoError(t, view.AttachRegions(regions))

	for i := uint64(0); i < 50; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		require.Equal(t, collect(ht.Find(key)), collect(view.Find(key)))
	}
	require.True(t, view.Find([]byte("missing")).IsEmpty())

	// the attached view owns nothing, so freeing it must not release
	// the exporter's buffers
	inuse := malloc.InuseCount(allocator)
	view.Free()
	require.Equal(t, inuse, malloc.InuseCount(allocator))
	require.Equal(t, []uint64{0, 50, 100, 150, 200, 250, 300, 350, 400, 450},
		collect(ht.Find([]byte("key-0"))))
}

func TestBytesAttachRejectsBadHeader(t *testing.T) {
	var ht BytesMultiMap
	require.NoError(t, ht.Init(nil, 0, 0, 8))
	defer ht.Free()

	regions, err := ht.ExportRegions()
	require.NoError(t, err)
	regions[0].Size = 1

	var view BytesMultiMap
	require.Error(t, view.AttachRegions(regions))
}

func TestBytesInsertIntoAttachedPanics(t *testing.T) {
	var ht BytesMultiMap
	require.NoError(t, ht.Init(nil, 0, 0, 8))
	defer ht.Free()
	require.NoError(t, ht.Insert([]byte("a"), payloadOf(1)))

	regions, err := ht.ExportRegions()
	require.NoError(t, err)

	var view BytesMultiMap
	require.NoError(t, view.AttachRegions(regions))
	require.Panics(t, func() {
		_ = view.Insert([]byte("b"), payloadOf(2))
	})
}

func TestBytesMarshalRoundTrip(t *testing.T) {
	var ht BytesMultiMap
	require.NoError(t, ht.Init(nil, 0, 0, 8))
	defer ht.Free()

	for i := uint64(0); i < 2000; i++ {
		require.NoError(t, ht.Insert([]byte(fmt.Sprintf("key-%d", i%200)), payloadOf(i)))
	}

	data, err := ht.MarshalBinary()
	require.NoError(t, err)

	var ht2 BytesMultiMap
	require.NoError(t, ht2.UnmarshalBinary(data, nil))
	defer ht2.Free()

	require.Equal(t, ht.Cardinality(), ht2.Cardinality())
	require.Equal(t, ht.RowCount(), ht2.RowCount())
	for i := uint64(0); i < 200; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		require.Equal(t, collect(ht.Find(key)), collect(ht2.Find(key)))
	}
}
