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
	"sync/atomic"
	"unsafe"

	"github.com/matrixorigin/hashrelation/pkg/common/malloc"
	"github.com/matrixorigin/hashrelation/pkg/common/moerr"
	"github.com/matrixorigin/hashrelation/pkg/container/batch"
	"github.com/matrixorigin/hashrelation/pkg/container/hashtable"
	"github.com/matrixorigin/hashrelation/pkg/container/types"
	"github.com/matrixorigin/hashrelation/pkg/container/vector"
	"github.com/matrixorigin/hashrelation/pkg/logutil"
)

const (
	phaseInitial int32 = iota
	phaseBuilding
	phaseProbing
)

// HashRelation is the build-side index of a hash join: each appended
// batch's key column feeds the map, every row stored under its key as
// a RowLocation, with payload columns accumulated in lockstep.
//
// The lifecycle is strict: any number of AppendKeyColumn calls by one
// builder, then probes. The first probe freezes the relation; appending
// afterwards is API misuse and panics. IfExists and ProbeIterator are
// safe for concurrent probers over a frozen relation; Get is not, it
// caches the last matched bucket.
type HashRelation struct {
	keyTypes  []types.Type
	isIntKey  bool
	keySize   int
	intMap    *hashtable.Int64MultiMap
	bytesMap  *hashtable.BytesMultiMap
	encoder   KeyEncoder
	columns   []Column
	phase     atomic.Int32
	batchCnt  uint32
	hasNull   bool
	nullRows  []RowLocation
	lastMatch []RowLocation
	attached  bool

	// per-group insert scratch
	locs     [UnitLimit]RowLocation
	payloads [UnitLimit][]byte
	zs       [UnitLimit]int64
	keys     [UnitLimit][]byte
	states   [UnitLimit][3]uint64
	intKeys  [UnitLimit]uint64
	hashes   [UnitLimit]uint64
}

// NewHashRelation builds an empty relation. The key is the ordered list
// of keyTypes: a single fixed-width type of at most 8 bytes selects the
// integer map, anything else goes through the composite encoder and the
// bytes map. One Column per payloadTypes entry is created up front so
// batch numbering stays aligned with the key index.
func NewHashRelation(keyTypes, payloadTypes []types.Type, allocator malloc.Allocator) (*HashRelation, error) {
	return NewHashRelationSized(keyTypes, payloadTypes, 0, DefaultMaxBytes, allocator)
}

// NewHashRelationSized additionally takes an estimated distinct-key
// count and the bytes-region cap.
func NewHashRelationSized(keyTypes, payloadTypes []types.Type, estimatedKeys, maxBytes uint64, allocator malloc.Allocator) (*HashRelation, error) {
	if len(keyTypes) == 0 {
		return nil, moerr.NewInvalidInputNoCtx("hash relation needs at least one key column")
	}
	r := &HashRelation{
		keyTypes: append([]types.Type{}, keyTypes...),
	}
	r.isIntKey = len(keyTypes) == 1 && keyTypes[0].IsFixedLen() && keyTypes[0].TypeSize() <= 8
	if r.isIntKey {
		r.keySize = keyTypes[0].TypeSize()
		r.intMap = new(hashtable.Int64MultiMap)
		if err := r.intMap.Init(allocator, estimatedKeys, maxBytes, rowLocationSize); err != nil {
			return nil, err
		}
	} else {
		r.bytesMap = new(hashtable.BytesMultiMap)
		if err := r.bytesMap.Init(allocator, estimatedKeys, maxBytes, rowLocationSize); err != nil {
			return nil, err
		}
	}
	for _, typ := range payloadTypes {
		col, err := NewColumn(typ)
		if err != nil {
			r.Free()
			return nil, err
		}
		r.columns = append(r.columns, col)
	}
	return r, nil
}

func (r *HashRelation) ensureMap() {
	if r.intMap == nil && r.bytesMap == nil {
		panic(moerr.NewInvalidStateNoCtx("hash relation has no map handle"))
	}
}

// routeNulls reports whether null keys bypass the map. A single-column
// null key has no in-map representation and goes to the null bucket; a
// composite key encodes per-column nullness into its bytes instead.
func (r *HashRelation) routeNulls() bool {
	return len(r.keyTypes) == 1
}

// AppendKeyColumn indexes one batch. Every non-null key row is inserted
// as (key, RowLocation); null key rows go to the null bucket. Payload
// arrays are appended in the same pass, one per column, and the batch
// counter advances once at the end. A capacity error leaves already
// inserted rows in place; the caller must discard the whole relation.
func (r *HashRelation) AppendKeyColumn(keyVecs []*vector.Vector, payloadVecs []*vector.Vector) error {
	r.ensureMap()
	if r.phase.Load() == phaseProbing {
		panic(moerr.NewInvalidStateNoCtx("append into a frozen hash relation"))
	}
	if r.attached {
		panic(moerr.NewInvalidStateNoCtx("append into an attached hash relation"))
	}
	r.phase.Store(phaseBuilding)
	if len(keyVecs) != len(r.keyTypes) {
		return moerr.NewInvalidInputNoCtx("%d key columns, want %d", len(keyVecs), len(r.keyTypes))
	}
	if len(payloadVecs) != len(r.columns) {
		return moerr.NewInvalidInputNoCtx("%d payload columns, want %d", len(payloadVecs), len(r.columns))
	}
	rows := keyVecs[0].Length()
	for _, vec := range keyVecs {
		if vec.Length() != rows {
			return moerr.NewInvalidInputNoCtx("key columns of unequal length")
		}
	}

	routeNulls := r.routeNulls()
	for start := 0; start < rows; start += UnitLimit {
		n := rows - start
		if n > UnitLimit {
			n = UnitLimit
		}
		for i := 0; i < n; i++ {
			r.locs[i] = RowLocation{BatchID: r.batchCnt, Offset: uint32(start + i)}
			r.payloads[i] = r.locs[i].encode()
			if routeNulls && rowIsNull(keyVecs, uint64(start+i)) {
				r.zs[i] = 0
				r.hasNull = true
				r.nullRows = append(r.nullRows, r.locs[i])
			} else {
				r.zs[i] = 1
			}
		}
		var err error
		if r.isIntKey {
			fixedKeysAt(keyVecs[0], r.keySize, start, n, r.intKeys[:n])
			err = r.intMap.InsertBatch(r.hashes[:n], r.intKeys[:n], r.payloads[:n], r.zs[:n])
		} else {
			r.encoder.EncodeRows(keyVecs, start, n, r.keys[:n])
			err = r.bytesMap.InsertBatch(r.states[:n], r.keys[:n], r.payloads[:n], r.zs[:n])
		}
		if err != nil {
			return err
		}
	}

	for i, col := range r.columns {
		if err := col.AppendArray(payloadVecs[i]); err != nil {
			return err
		}
	}
	r.batchCnt++
	logutil.Debugf("hash relation: appended batch %d (%d rows, %d distinct keys)",
		r.batchCnt-1, rows, r.Cardinality())
	return nil
}

// AppendBatch indexes one batch.Batch, with keyIdx selecting the key
// vectors; the remaining vectors are the payload columns in order.
func (r *HashRelation) AppendBatch(bat *batch.Batch, keyIdx []int) error {
	if err := bat.Sanity(); err != nil {
		return err
	}
	isKey := make(map[int]bool, len(keyIdx))
	keyVecs := make([]*vector.Vector, 0, len(keyIdx))
	for _, idx := range keyIdx {
		if idx < 0 || idx >= len(bat.Vecs) {
			return moerr.NewOutOfRangeNoCtx("key index", "%d not in [0, %d)", idx, len(bat.Vecs))
		}
		isKey[idx] = true
		keyVecs = append(keyVecs, bat.Vecs[idx])
	}
	payloadVecs := make([]*vector.Vector, 0, len(bat.Vecs)-len(keyIdx))
	for i, vec := range bat.Vecs {
		if !isKey[i] {
			payloadVecs = append(payloadVecs, vec)
		}
	}
	return r.AppendKeyColumn(keyVecs, payloadVecs)
}

// find encodes through the caller-supplied scratch; probers that may
// run concurrently must not share one encoder.
func (r *HashRelation) find(enc *KeyEncoder, keyVecs []*vector.Vector, row int) (hashtable.Bucket, Existence) {
	r.ensureMap()
	r.phase.Store(phaseProbing)
	if r.routeNulls() && rowIsNull(keyVecs, uint64(row)) {
		return hashtable.Bucket{}, NullKey
	}
	var b hashtable.Bucket
	if r.isIntKey {
		b = r.intMap.Find(fixedKeyAt(keyVecs[0], r.keySize, row))
	} else {
		b = r.bytesMap.Find(enc.EncodeRow(keyVecs, row))
	}
	if b.IsEmpty() {
		return b, NotFound
	}
	return b, Found
}

// Get probes one row's key and returns its bucket as row locators in
// insertion order. A miss, including a null probe key, is a normal
// (nil, false) outcome. The result is cached for LastMatch.
func (r *HashRelation) Get(keyVecs []*vector.Vector, row int) ([]RowLocation, bool) {
	b, e := r.find(&r.encoder, keyVecs, row)
	if e != Found {
		return nil, false
	}
	r.lastMatch = Locations(b)
	return r.lastMatch, true
}

// LastMatch returns the locators of the most recent successful Get.
func (r *HashRelation) LastMatch() []RowLocation {
	return r.lastMatch
}

// IfExists is the existence-only probe used for semi and anti joins. It
// materializes nothing, never touches the Get cache, and encodes into
// its own scratch, so concurrent callers stay independent.
func (r *HashRelation) IfExists(keyVecs []*vector.Vector, row int) Existence {
	var enc KeyEncoder
	_, e := r.find(&enc, keyVecs, row)
	return e
}

// GetNull distinguishes "null keys exist" from "no null key was ever
// built": 0 when the null bucket is populated, the HashNewKey sentinel
// otherwise.
func (r *HashRelation) GetNull() int {
	if r.hasNull {
		return 0
	}
	return HashNewKey
}

func (r *HashRelation) HasNull() bool {
	return r.hasNull
}

// NullRows returns the null bucket in insertion order.
func (r *HashRelation) NullRows() []RowLocation {
	return r.nullRows
}

// Cardinality is the number of distinct non-null keys.
func (r *HashRelation) Cardinality() uint64 {
	if r.isIntKey {
		return r.intMap.Cardinality()
	}
	return r.bytesMap.Cardinality()
}

// BatchCount is the number of batches appended so far.
func (r *HashRelation) BatchCount() uint32 {
	return r.batchCnt
}

func (r *HashRelation) ColumnCount() int {
	return len(r.columns)
}

func (r *HashRelation) Column(i int) Column {
	return r.columns[i]
}

// AppendPayloadColumn appends one array to payload column idx outside
// the AppendKeyColumn pass, for callers that materialize key and
// payload columns separately. The caller is responsible for keeping
// every column at the same batch count.
func (r *HashRelation) AppendPayloadColumn(idx int, vec *vector.Vector) error {
	if r.phase.Load() == phaseProbing {
		panic(moerr.NewInvalidStateNoCtx("append into a frozen hash relation"))
	}
	if r.attached {
		panic(moerr.NewInvalidStateNoCtx("append into an attached hash relation"))
	}
	if idx < 0 || idx >= len(r.columns) {
		return moerr.NewOutOfRangeNoCtx("payload column", "%d not in [0, %d)", idx, len(r.columns))
	}
	return r.columns[idx].AppendArray(vec)
}

// ExportColumn hands out payload column idx's per-batch arrays.
func (r *HashRelation) ExportColumn(idx int) ([]*vector.Vector, error) {
	if idx < 0 || idx >= len(r.columns) {
		return nil, moerr.NewOutOfRangeNoCtx("payload column", "%d not in [0, %d)", idx, len(r.columns))
	}
	return r.columns[idx].ExportArrays(), nil
}

// GrowAndRehash forces one cell-array doubling, used by growth tests.
func (r *HashRelation) GrowAndRehash() error {
	r.ensureMap()
	if r.isIntKey {
		return r.intMap.GrowAndRehash()
	}
	return r.bytesMap.GrowAndRehash()
}

// UnsafeGetHashTableObject exports the map's three backing regions:
// header, cell array, bytes region. The exporter keeps ownership; the
// regions stay valid only while this relation is alive and unfrozen
// buffers are not mutated.
func (r *HashRelation) UnsafeGetHashTableObject() ([3]hashtable.Region, error) {
	r.ensureMap()
	if r.isIntKey {
		return r.intMap.ExportRegions()
	}
	return r.bytesMap.ExportRegions()
}

// UnsafeSetHashTableObject replaces this relation's map with a borrowed
// view over regions exported elsewhere, typically in another process.
// The relation becomes a frozen probe-only view and never frees the
// regions; whoever exported them must keep them alive.
func (r *HashRelation) UnsafeSetHashTableObject(regions [3]hashtable.Region) error {
	if r.isIntKey {
		m := new(hashtable.Int64MultiMap)
		if err := m.AttachRegions(regions); err != nil {
			return err
		}
		if r.intMap != nil {
			r.intMap.Free()
		}
		r.intMap = m
	} else {
		m := new(hashtable.BytesMultiMap)
		if err := m.AttachRegions(regions); err != nil {
			return err
		}
		if r.bytesMap != nil {
			r.bytesMap.Free()
		}
		r.bytesMap = m
	}
	r.attached = true
	r.phase.Store(phaseProbing)
	return nil
}

// Free releases the owned map regions. Attached views release nothing;
// payload arrays are garbage collected with the relation.
func (r *HashRelation) Free() {
	if r.intMap != nil {
		r.intMap.Free()
		r.intMap = nil
	}
	if r.bytesMap != nil {
		r.bytesMap.Free()
		r.bytesMap = nil
	}
	r.columns = nil
}

// fixedKeyAt widens one fixed-width key value to its zero-extended
// 8-byte bit pattern.
func fixedKeyAt(vec *vector.Vector, size, row int) uint64 {
	data := vec.UnsafeGetRawData()
	var k uint64
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&k)), 8), data[row*size:(row+1)*size])
	return k
}

func fixedKeysAt(vec *vector.Vector, size, start, n int, keys []uint64) {
	for i := 0; i < n; i++ {
		keys[i] = fixedKeyAt(vec, size, start+i)
	}
}
