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

	"github.com/stretchr/testify/require"
)

func TestBytesHashDeterministic(t *testing.T) {
	// states must be stable across runs and processes; region attach
	// depends on it
	for _, key := range [][]byte{nil, {}, []byte("a"), []byte("hello, world"), make([]byte, 100)} {
		s1 := BytesGenHashState(key)
		s2 := BytesGenHashState(append([]byte{}, key...))
		require.Equal(t, s1, s2)
	}
}

func TestBytesHashSpread(t *testing.T) {
	seen := make(map[[3]uint64]struct{})
	for i := 0; i < 10000; i++ {
		seen[BytesGenHashState([]byte(fmt.Sprintf("key-%d", i)))] = struct{}{}
	}
	require.Equal(t, 10000, len(seen))
}

func TestInt64HashSpread(t *testing.T) {
	seen := make(map[uint64]struct{})
	for i := uint64(0); i < 10000; i++ {
		seen[Int64Hash(i)] = struct{}{}
	}
	require.Equal(t, 10000, len(seen))
}

func TestInt64BatchHashMatchesScalar(t *testing.T) {
	keys := []uint64{0, 1, 42, 1 << 40, ^uint64(0)}
	hashes := make([]uint64, len(keys))
	Int64BatchHash(keys, hashes)
	for i, k := range keys {
		require.Equal(t, Int64Hash(k), hashes[i])
	}
}
