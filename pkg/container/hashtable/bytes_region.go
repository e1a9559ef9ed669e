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

// bytesRegion is the append-only area holding key records and their
// chained payload records. All links are offsets relative to the region
// start, so growth relocates the buffer without rewriting any record
// and an exported region stays valid at a different base address.
type bytesRegion struct {
	allocator malloc.Allocator
	hdr       *multiMapHeader
	data      []byte
	de        malloc.Deallocator
}

func (r *bytesRegion) init(allocator malloc.Allocator, hdr *multiMapHeader) error {
	r.allocator = allocator
	r.hdr = hdr

	capacity := uint64(kInitialBytesCap)
	if capacity > hdr.maxBytes {
		capacity = hdr.maxBytes
	}
	data, de, err := allocator.Allocate(capacity)
	if err != nil {
		return err
	}
	r.data, r.de = data, de
	hdr.bytesCap = capacity
	hdr.cursor = kBytesCursorStart
	return nil
}

// ensure grows the region by doubling until n more bytes fit, clamping
// the last step to maxBytes. Offsets stay valid across the copy; byte
// slices fetched earlier do not.
func (r *bytesRegion) ensure(n uint64) error {
	hdr := r.hdr
	if hdr.cursor+n <= hdr.bytesCap {
		return nil
	}
	if hdr.cursor+n > hdr.maxBytes {
		return moerr.NewCapacityExceededNoCtx(
			"bytes region needs %d bytes, max is %d", hdr.cursor+n, hdr.maxBytes)
	}
	newCap := hdr.bytesCap
	for newCap < hdr.cursor+n {
		newCap <<= 1
	}
	if newCap > hdr.maxBytes {
		newCap = hdr.maxBytes
	}
	data, de, err := r.allocator.Allocate(newCap)
	if err != nil {
		return err
	}
	copy(data, r.data[:hdr.cursor])
	if r.de != nil {
		r.de.Deallocate()
	}
	r.data, r.de = data, de
	hdr.bytesCap = newCap
	return nil
}

func (r *bytesRegion) payloadRecordSize() uint64 {
	return 8 + align8(r.hdr.payloadSize)
}

// appendKey writes a key record followed by its first payload record
// and returns the key record's offset.
func (r *bytesRegion) appendKey(key []byte, payload []byte) (uint64, error) {
	hdr := r.hdr
	keySpace := align8(uint64(len(key)))
	need := keyRecordHeaderSize + keySpace + r.payloadRecordSize()
	if err := r.ensure(need); err != nil {
		return 0, err
	}

	keyOff := hdr.cursor
	payloadOff := keyOff + keyRecordHeaderSize + keySpace

	*(*uint32)(r.at(keyOff)) = 1
	*(*uint32)(r.at(keyOff + 4)) = uint32(len(key))
	*(*uint64)(r.at(keyOff + 8)) = payloadOff
	*(*uint64)(r.at(keyOff + 16)) = payloadOff
	copy(r.data[keyOff+keyRecordHeaderSize:], key)

	r.writePayload(payloadOff, payload)
	hdr.cursor = payloadOff + r.payloadRecordSize()
	hdr.rowCnt++
	return keyOff, nil
}

// appendPayload chains one more payload record under an existing key.
func (r *bytesRegion) appendPayload(keyOff uint64, payload []byte) error {
	hdr := r.hdr
	if err := r.ensure(r.payloadRecordSize()); err != nil {
		return err
	}

	payloadOff := hdr.cursor
	r.writePayload(payloadOff, payload)

	tail := *(*uint64)(r.at(keyOff + 16))
	*(*uint64)(r.at(tail)) = payloadOff
	*(*uint64)(r.at(keyOff + 16)) = payloadOff
	*(*uint32)(r.at(keyOff))++

	hdr.cursor = payloadOff + r.payloadRecordSize()
	hdr.rowCnt++
	return nil
}

func (r *bytesRegion) writePayload(off uint64, payload []byte) {
	*(*uint64)(r.at(off)) = 0
	copy(r.data[off+8:], payload)
}

func (r *bytesRegion) at(off uint64) unsafe.Pointer {
	return unsafe.Pointer(&r.data[off])
}

func (r *bytesRegion) keyBytes(keyOff uint64) []byte {
	keyLen := uint64(*(*uint32)(r.at(keyOff + 4)))
	return r.data[keyOff+keyRecordHeaderSize : keyOff+keyRecordHeaderSize+keyLen]
}

func (r *bytesRegion) count(keyOff uint64) uint32 {
	return *(*uint32)(r.at(keyOff))
}

func (r *bytesRegion) head(keyOff uint64) uint64 {
	return *(*uint64)(r.at(keyOff + 8))
}

func (r *bytesRegion) free() {
	if r.de != nil {
		r.de.Deallocate()
		r.de = nil
	}
	r.data = nil
}

// Bucket is a reference to the payload chain of one distinct key. It
// resolves records through the owning map at call time, so it stays
// valid across region growth; fetched payload slices do not.
type Bucket struct {
	region *bytesRegion
	keyOff uint64
}

func (b Bucket) IsEmpty() bool {
	return b.keyOff == 0
}

func (b Bucket) Count() int {
	if b.keyOff == 0 {
		return 0
	}
	return int(b.region.count(b.keyOff))
}

func (b Bucket) Key() []byte {
	if b.keyOff == 0 {
		return nil
	}
	return b.region.keyBytes(b.keyOff)
}

// ForEach walks the payload records in insertion order. The payload
// slice passed to fn aliases the bytes region; copy it to retain it.
func (b Bucket) ForEach(fn func(payload []byte) bool) {
	if b.keyOff == 0 {
		return
	}
	sz := b.region.hdr.payloadSize
	for off := b.region.head(b.keyOff); off != 0; off = *(*uint64)(b.region.at(off)) {
		if !fn(b.region.data[off+8 : off+8+sz]) {
			return
		}
	}
}
