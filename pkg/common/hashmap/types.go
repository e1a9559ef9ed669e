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
	"unsafe"

	"github.com/matrixorigin/hashrelation/pkg/container/hashtable"
	"github.com/matrixorigin/hashrelation/pkg/container/vector"
)

const (
	// UnitLimit is the number of rows one vectorized insert or probe
	// pass handles at a time.
	UnitLimit = 256

	// HashNewKey is the sentinel GetNull returns when no null key was
	// ever appended: a value no real bucket can produce, so callers
	// can fold the null side channel into key-match arithmetic.
	HashNewKey = -1

	// DefaultMaxBytes caps the key/payload region of one relation.
	DefaultMaxBytes = 256 << 20
)

// RowLocation identifies one row across every batch appended to a
// relation. Stored verbatim as the map's 8-byte payload record.
type RowLocation struct {
	BatchID uint32
	Offset  uint32
}

const rowLocationSize = uint64(unsafe.Sizeof(RowLocation{}))

func (l *RowLocation) encode() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(l)), rowLocationSize)
}

func decodeRowLocation(data []byte) RowLocation {
	return *(*RowLocation)(unsafe.Pointer(unsafe.SliceData(data)))
}

// Less orders locators by (batch, offset), the order they were built in.
func (l RowLocation) Less(o RowLocation) bool {
	if l.BatchID != o.BatchID {
		return l.BatchID < o.BatchID
	}
	return l.Offset < o.Offset
}

// Existence is the tri-state result of IfExists.
type Existence int8

const (
	NotFound Existence = iota
	Found
	// NullKey marks a probe row whose key is null; SQL null never
	// matches, but some join variants need it told apart from a miss.
	NullKey
)

func (e Existence) String() string {
	switch e {
	case Found:
		return "found"
	case NullKey:
		return "null"
	default:
		return "not found"
	}
}

// Locations materializes a bucket's payload chain as row locators, in
// insertion order.
func Locations(b hashtable.Bucket) []RowLocation {
	if b.IsEmpty() {
		return nil
	}
	locs := make([]RowLocation, 0, b.Count())
	b.ForEach(func(payload []byte) bool {
		locs = append(locs, decodeRowLocation(payload))
		return true
	})
	return locs
}

func rowIsNull(vecs []*vector.Vector, row uint64) bool {
	for _, vec := range vecs {
		if vec.IsNull(row) {
			return true
		}
	}
	return false
}
