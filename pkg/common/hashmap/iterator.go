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
	"github.com/matrixorigin/hashrelation/pkg/common/moerr"
	"github.com/matrixorigin/hashrelation/pkg/container/hashtable"
	"github.com/matrixorigin/hashrelation/pkg/container/vector"
)

// ProbeIterator resolves probe keys in vectorized groups. Each iterator
// owns its encode and hash scratch, so one frozen relation can serve
// many iterators concurrently.
type ProbeIterator struct {
	rel     *HashRelation
	encoder KeyEncoder

	buckets [UnitLimit]hashtable.Bucket
	states  [UnitLimit][3]uint64
	keys    [UnitLimit][]byte
	intKeys [UnitLimit]uint64
	hashes  [UnitLimit]uint64
	zs      [UnitLimit]int64
	nulls   [UnitLimit]bool
}

// NewProbeIterator freezes the relation and returns an iterator over it.
func (r *HashRelation) NewProbeIterator() *ProbeIterator {
	r.ensureMap()
	r.phase.Store(phaseProbing)
	return &ProbeIterator{rel: r}
}

// Probe resolves rows [start, start+count) of the probe-side key
// vectors. It returns one bucket per row, empty on a miss, plus a
// parallel flag slice marking rows whose key is null. Both returned
// slices alias iterator scratch and are valid until the next Probe.
// count beyond UnitLimit is an input error.
func (itr *ProbeIterator) Probe(keyVecs []*vector.Vector, start, count int) ([]hashtable.Bucket, []bool, error) {
	if count > UnitLimit {
		return nil, nil, moerr.NewInvalidInputNoCtx("probe group of %d rows exceeds %d", count, UnitLimit)
	}
	if len(keyVecs) != len(itr.rel.keyTypes) {
		return nil, nil, moerr.NewInvalidInputNoCtx("%d key columns, want %d", len(keyVecs), len(itr.rel.keyTypes))
	}
	routeNulls := itr.rel.routeNulls()
	for i := 0; i < count; i++ {
		itr.nulls[i] = routeNulls && rowIsNull(keyVecs, uint64(start+i))
		if itr.nulls[i] {
			itr.zs[i] = 0
		} else {
			itr.zs[i] = 1
		}
	}
	if itr.rel.isIntKey {
		fixedKeysAt(keyVecs[0], itr.rel.keySize, start, count, itr.intKeys[:count])
		itr.rel.intMap.FindBatch(itr.hashes[:count], itr.intKeys[:count], itr.buckets[:count], itr.zs[:count])
	} else {
		itr.encoder.EncodeRows(keyVecs, start, count, itr.keys[:count])
		itr.rel.bytesMap.FindBatch(itr.states[:count], itr.keys[:count], itr.buckets[:count], itr.zs[:count])
	}
	return itr.buckets[:count], itr.nulls[:count], nil
}
