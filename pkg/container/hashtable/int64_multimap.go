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
	"unsafe"

	"github.com/matrixorigin/hashrelation/pkg/common/malloc"
	"github.com/matrixorigin/hashrelation/pkg/common/moerr"
)

// Int64MultiMapCell holds one distinct 8-byte key inline. Occupancy is
// decided by KeyOff, so the zero key needs no special slot.
type Int64MultiMapCell struct {
	Key    uint64
	KeyOff uint64
}

var intCellSize = uint64(unsafe.Sizeof(Int64MultiMapCell{}))

// Int64MultiMap is the fixed-width specialization of BytesMultiMap for
// keys that fit a native 8-byte bit pattern. Keys live in the cells;
// the bytes region holds only key records and payload chains.
type Int64MultiMap struct {
	allocator malloc.Allocator

	hdr     *multiMapHeader
	hdrDe   malloc.Deallocator
	cells   []Int64MultiMapCell
	cellsDe malloc.Deallocator
	region  bytesRegion

	borrowed bool
}

func (ht *Int64MultiMap) Init(allocator malloc.Allocator, preAllocCnt, maxBytes, payloadSize uint64) error {
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
	ht.hdr.keyWidth = 8
	ht.hdr.payloadSize = payloadSize

	if ht.cells, ht.cellsDe, err = ht.allocateCells(cellCnt); err != nil {
		return err
	}
	return ht.region.init(ht.allocator, ht.hdr)
}

func (ht *Int64MultiMap) allocateCells(cellCnt uint64) ([]Int64MultiMapCell, malloc.Deallocator, error) {
	data, de, err := ht.allocator.Allocate(cellCnt * intCellSize)
	if err != nil {
		return nil, nil, err
	}
	cells := unsafe.Slice((*Int64MultiMapCell)(unsafe.Pointer(unsafe.SliceData(data))), cellCnt)
	return cells, de, nil
}

func (ht *Int64MultiMap) Insert(key uint64, payload []byte) error {
	if ht.borrowed {
		panic(moerr.NewInvalidStateNoCtx("insert into an attached hash table"))
	}
	if err := ht.resizeOnDemand(1); err != nil {
		return err
	}
	cell := ht.findCell(Int64Hash(key), key)
	if cell.KeyOff == 0 {
		keyOff, err := ht.region.appendKey(nil, payload)
		if err != nil {
			return err
		}
		cell.Key = key
		cell.KeyOff = keyOff
		ht.hdr.elemCnt++
		return nil
	}
	return ht.region.appendPayload(cell.KeyOff, payload)
}

func (ht *Int64MultiMap) InsertBatch(hashes []uint64, keys []uint64, payloads [][]byte, zs []int64) error {
	if ht.borrowed {
		panic(moerr.NewInvalidStateNoCtx("insert into an attached hash table"))
	}
	if err := ht.resizeOnDemand(uint64(len(keys))); err != nil {
		return err
	}
	Int64BatchHash(keys, hashes)

	for i, key := range keys {
		if zs != nil && zs[i] == 0 {
			continue
		}
		cell := ht.findCell(hashes[i], key)
		if cell.KeyOff == 0 {
			keyOff, err := ht.region.appendKey(nil, payloads[i])
			if err != nil {
				return err
			}
			cell.Key = key
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

func (ht *Int64MultiMap) Find(key uint64) Bucket {
	cell := ht.findCell(Int64Hash(key), key)
	return Bucket{region: &ht.region, keyOff: cell.KeyOff}
}

func (ht *Int64MultiMap) FindBatch(hashes []uint64, keys []uint64, buckets []Bucket, zs []int64) {
	Int64BatchHash(keys, hashes)
	for i, key := range keys {
		if zs != nil && zs[i] == 0 {
			buckets[i] = Bucket{}
			continue
		}
		cell := ht.findCell(hashes[i], key)
		buckets[i] = Bucket{region: &ht.region, keyOff: cell.KeyOff}
	}
}

func (ht *Int64MultiMap) findCell(hash uint64, key uint64) *Int64MultiMapCell {
	mask := ht.hdr.cellCntMask
	for idx := hash & mask; true; idx = (idx + 1) & mask {
		cell := &ht.cells[idx]
		if cell.KeyOff == 0 || cell.Key == key {
			return cell
		}
	}
	return nil
}

func (ht *Int64MultiMap) findEmptyCell(hash uint64) *Int64MultiMapCell {
	mask := ht.hdr.cellCntMask
	for idx := hash & mask; true; idx = (idx + 1) & mask {
		cell := &ht.cells[idx]
		if cell.KeyOff == 0 {
			return cell
		}
	}
	return nil
}

func (ht *Int64MultiMap) resizeOnDemand(n uint64) error {
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

// GrowAndRehash doubles the cell array and reindexes every key. The
// bytes region is untouched.
func (ht *Int64MultiMap) GrowAndRehash() error {
	return ht.growCells(ht.hdr.cellCnt << 1)
}

func (ht *Int64MultiMap) growCells(newCellCnt uint64) error {
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
		*ht.findEmptyCell(Int64Hash(cell.Key)) = *cell
	}

	if oldDe != nil {
		oldDe.Deallocate()
	}
	return nil
}

func (ht *Int64MultiMap) Cardinality() uint64 {
	return ht.hdr.elemCnt
}

func (ht *Int64MultiMap) RowCount() uint64 {
	return ht.hdr.rowCnt
}

func (ht *Int64MultiMap) Size() int64 {
	return int64(headerSize + ht.hdr.cellCnt*intCellSize + ht.hdr.bytesCap)
}

func (ht *Int64MultiMap) ExportRegions() ([3]Region, error) {
	if ht.hdr == nil {
		return [3]Region{}, moerr.NewInvalidStateNoCtx("export of an uninitialized hash table")
	}
	hdrData := unsafe.Slice((*byte)(unsafe.Pointer(ht.hdr)), headerSize)
	cellData := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(ht.cells))), ht.hdr.cellCnt*intCellSize)
	return [3]Region{
		regionOf(hdrData, headerSize),
		regionOf(cellData, ht.hdr.cellCnt*intCellSize),
		regionOf(ht.region.data, ht.hdr.cursor),
	}, nil
}

func (ht *Int64MultiMap) AttachRegions(regions [3]Region) error {
	if regions[0].Size != headerSize {
		return moerr.NewInvalidInputNoCtx(
			"header region is %d bytes, want %d", regions[0].Size, headerSize)
	}
	ht.hdr = (*multiMapHeader)(unsafe.Pointer(regions[0].Addr))
	if regions[1].Size != ht.hdr.cellCnt*intCellSize {
		return moerr.NewInvalidInputNoCtx(
			"cell region is %d bytes, want %d", regions[1].Size, ht.hdr.cellCnt*intCellSize)
	}
	ht.cells = unsafe.Slice((*Int64MultiMapCell)(unsafe.Pointer(regions[1].Addr)), ht.hdr.cellCnt)
	ht.region.hdr = ht.hdr
	ht.region.data = unsafe.Slice((*byte)(unsafe.Pointer(regions[2].Addr)), regions[2].Size)
	ht.hdr.cursor = regions[2].Size
	ht.borrowed = true
	return nil
}

func (ht *Int64MultiMap) Free() {
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
