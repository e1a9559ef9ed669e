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
	"bytes"
	"unsafe"

	"github.com/matrixorigin/hashrelation/pkg/common/malloc"
	"github.com/matrixorigin/hashrelation/pkg/common/moerr"
)

// BytesMultiMapCell indexes one distinct key: its 3x64 hash state and
// the offset of its key record in the bytes region. KeyOff == 0 marks
// an empty cell.
type BytesMultiMapCell struct {
	HashState [3]uint64
	KeyOff    uint64
}

var bytesCellSize = uint64(unsafe.Sizeof(BytesMultiMapCell{}))

// BytesMultiMap is an open-addressed multimap from variable-length keys
// to chains of fixed-size payload records, backed by three raw regions.
// Lookups verify full key bytes after a hash-state match; a hash
// collision alone never aliases two keys.
type BytesMultiMap struct {
	allocator malloc.Allocator

	hdr     *multiMapHeader
	hdrDe   malloc.Deallocator
	cells   []BytesMultiMapCell
	cellsDe malloc.Deallocator
	region  bytesRegion

	borrowed bool
}

func (ht *BytesMultiMap) Init(allocator malloc.Allocator, preAllocCnt, maxBytes, payloadSize uint64) error {
	ht.allocator = defaultAllocator(allocator)
	if maxBytes == 0 {
		maxBytes = kDefaultMaxBytes
	}
	if payloadSize == 0 {
		return moerr.NewInvalidInputNoCtx("payload size must be positive")
	}

	hdrData, hdrDe, err := ht.allocator.Allocate(headerSize)
	if err != nil {
		return err
	}
	ht.hdr = (*multiMapHeader)(unsafe.Pointer(unsafe.SliceData(hdrData)))
	ht.hdrDe = hdrDe

	cellCnt := nextPowerOfTwo(kInitialCellCnt)
	for maxElemCnt(cellCnt) < preAllocCnt {
		cellCnt <<= 1
	}
	ht.hdr.cellCnt = cellCnt
	ht.hdr.cellCntMask = cellCnt - 1
	ht.hdr.maxElemCnt = maxElemCnt(cellCnt)
	ht.hdr.maxBytes = maxBytes
	ht.hdr.payloadSize = payloadSize

	if ht.cells, ht.cellsDe, err = ht.allocateCells(cellCnt); err != nil {
		return err
	}
	return ht.region.init(ht.allocator, ht.hdr)
}

func (ht *BytesMultiMap) allocateCells(cellCnt uint64) ([]BytesMultiMapCell, malloc.Deallocator, error) {
	data, de, err := ht.allocator.Allocate(cellCnt * bytesCellSize)
	if err != nil {
		return nil, nil, err
	}
	cells := unsafe.Slice((*BytesMultiMapCell)(unsafe.Pointer(unsafe.SliceData(data))), cellCnt)
	return cells, de, nil
}

// Insert appends payload under key, multimap semantics: an existing key
// gets one more payload record, never an overwrite.
func (ht *BytesMultiMap) Insert(key []byte, payload []byte) error {
	if ht.borrowed {
		panic(moerr.NewInvalidStateNoCtx("insert into an attached hash table"))
	}
	if err := ht.resizeOnDemand(1); err != nil {
		return err
	}
	state := BytesGenHashState(key)
	cell := ht.findCell(&state, key)
	if cell.KeyOff == 0 {
		keyOff, err := ht.region.appendKey(key, payload)
		if err != nil {
			return err
		}
		cell.HashState = state
		cell.KeyOff = keyOff
		ht.hdr.elemCnt++
		return nil
	}
	return ht.region.appendPayload(cell.KeyOff, payload)
}

// InsertBatch inserts keys[i] -> payloads[i] for every i with zs[i] != 0.
// A zero zs entry marks a row the caller routed elsewhere (null keys).
func (ht *BytesMultiMap) InsertBatch(states [][3]uint64, keys [][]byte, payloads [][]byte, zs []int64) error {
	if ht.borrowed {
		panic(moerr.NewInvalidStateNoCtx("insert into an attached hash table"))
	}
	if err := ht.resizeOnDemand(uint64(len(keys))); err != nil {
		return err
	}
	BytesBatchGenHashStates(keys, states)

	for i := range keys {
		if zs != nil && zs[i] == 0 {
			continue
		}
		cell := ht.findCell(&states[i], keys[i])
		if cell.KeyOff == 0 {
			keyOff, err := ht.region.appendKey(keys[i], payloads[i])
			if err != nil {
				return err
			}
			cell.HashState = states[i]
			cell.KeyOff = keyOff
			ht.hdr.elemCnt++
			continue
		}
		if err := ht.region.appendPayload(cell.KeyOff, payloads[i]); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the bucket of key; the bucket is empty on a miss.
func (ht *BytesMultiMap) Find(key []byte) Bucket {
	state := BytesGenHashState(key)
	cell := ht.findCell(&state, key)
	return Bucket{region: &ht.region, keyOff: cell.KeyOff}
}

func (ht *BytesMultiMap) FindBatch(states [][3]uint64, keys [][]byte, buckets []Bucket, zs []int64) {
	BytesBatchGenHashStates(keys, states)
	for i := range keys {
		if zs != nil && zs[i] == 0 {
			buckets[i] = Bucket{}
			continue
		}
		cell := ht.findCell(&states[i], keys[i])
		buckets[i] = Bucket{region: &ht.region, keyOff: cell.KeyOff}
	}
}

func (ht *BytesMultiMap) findCell(state *[3]uint64, key []byte) *BytesMultiMapCell {
	mask := ht.hdr.cellCntMask
	for idx := state[0] & mask; true; idx = (idx + 1) & mask {
		cell := &ht.cells[idx]
		if cell.KeyOff == 0 {
			return cell
		}
		if cell.HashState == *state && bytes.Equal(ht.region.keyBytes(cell.KeyOff), key) {
			return cell
		}
	}
	return nil
}

func (ht *BytesMultiMap) findEmptyCell(state *[3]uint64) *BytesMultiMapCell {
	mask := ht.hdr.cellCntMask
	for idx := state[0] & mask; true; idx = (idx + 1) & mask {
		cell := &ht.cells[idx]
		if cell.KeyOff == 0 {
			return cell
		}
	}
	return nil
}

func (ht *BytesMultiMap) resizeOnDemand(n uint64) error {
	targetCnt := ht.hdr.elemCnt + n
	if targetCnt <= ht.hdr.maxElemCnt {
		return nil
	}

	newCellCnt := ht.hdr.cellCnt << 1
	for maxElemCnt(newCellCnt) < targetCnt {
		newCellCnt <<= 1
	}
	return ht.growCells(newCellCnt)
}

// GrowAndRehash reallocates a larger cell array and reindexes every key.
// Only the index over the bytes region is rewritten; the region itself,
// and therefore every key record offset, is untouched.
func (ht *BytesMultiMap) GrowAndRehash() error {
	return ht.growCells(ht.hdr.cellCnt << 1)
}

func (ht *BytesMultiMap) growCells(newCellCnt uint64) error {
	oldCells := ht.cells
	oldDe := ht.cellsDe

	newCells, newDe, err := ht.allocateCells(newCellCnt)
	if err != nil {
		return err
	}
	ht.cells = newCells
	ht.cellsDe = newDe
	ht.hdr.cellCnt = newCellCnt
	ht.hdr.cellCntMask = newCellCnt - 1
	ht.hdr.maxElemCnt = maxElemCnt(newCellCnt)

	for i := range oldCells {
		cell := &oldCells[i]
		if cell.KeyOff == 0 {
			continue
		}
		*ht.findEmptyCell(&cell.HashState) = *cell
	}

	if oldDe != nil {
		oldDe.Deallocate()
	}
	return nil
}

// Cardinality is the number of distinct keys.
func (ht *BytesMultiMap) Cardinality() uint64 {
	return ht.hdr.elemCnt
}

// RowCount is the total number of payload records.
func (ht *BytesMultiMap) RowCount() uint64 {
	return ht.hdr.rowCnt
}

func (ht *BytesMultiMap) Size() int64 {
	return int64(headerSize + ht.hdr.cellCnt*bytesCellSize + ht.hdr.bytesCap)
}

// ExportRegions exposes the three backing buffers as raw address/size
// descriptors. The bytes region is reported up to the write cursor.
func (ht *BytesMultiMap) ExportRegions() ([3]Region, error) {
	if ht.hdr == nil {
		return [3]Region{}, moerr.NewInvalidStateNoCtx("export of an uninitialized hash table")
	}
	hdrData := unsafe.Slice((*byte)(unsafe.Pointer(ht.hdr)), headerSize)
	cellData := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(ht.cells))), ht.hdr.cellCnt*bytesCellSize)
	return [3]Region{
		regionOf(hdrData, headerSize),
		regionOf(cellData, ht.hdr.cellCnt*bytesCellSize),
		regionOf(ht.region.data, ht.hdr.cursor),
	}, nil
}

// AttachRegions reconstructs a read-only view over regions exported by
// another map, typically across a process boundary over shared memory.
// The attached map never owns the buffers: the exporter must keep them
// alive and unchanged for as long as this view is used.
func (ht *BytesMultiMap) AttachRegions(regions [3]Region) error {
	if regions[0].Size != headerSize {
		return moerr.NewInvalidInputNoCtx(
			"header region is %d bytes, want %d", regions[0].Size, headerSize)
	}
	ht.hdr = (*multiMapHeader)(unsafe.Pointer(regions[0].Addr))
	if regions[1].Size != ht.hdr.cellCnt*bytesCellSize {
		return moerr.NewInvalidInputNoCtx(
			"cell region is %d bytes, want %d", regions[1].Size, ht.hdr.cellCnt*bytesCellSize)
	}
	ht.cells = unsafe.Slice((*BytesMultiMapCell)(unsafe.Pointer(regions[1].Addr)), ht.hdr.cellCnt)
	ht.region.hdr = ht.hdr
	ht.region.data = unsafe.Slice((*byte)(unsafe.Pointer(regions[2].Addr)), regions[2].Size)
	ht.hdr.cursor = regions[2].Size
	ht.borrowed = true
	return nil
}

// Free releases the owned regions. Attached views release nothing.
func (ht *BytesMultiMap) Free() {
	if !ht.borrowed {
		if ht.hdrDe != nil {
			ht.hdrDe.Deallocate()
		}
		if ht.cellsDe != nil {
			ht.cellsDe.Deallocate()
		}
		ht.region.free()
	}
	ht.hdr, ht.hdrDe, ht.cells, ht.cellsDe = nil, nil, nil, nil
	ht.region.data, ht.region.de = nil, nil
}
