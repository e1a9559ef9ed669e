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
)

const (
	kInitialCellCnt        = 1 << 10
	kLoadFactorNumerator   = 1
	kLoadFactorDenominator = 2

	kInitialBytesCap = 1 << 16
	// kDefaultMaxBytes matches the build-side budget the relation layer
	// passes when the caller gives no explicit limit.
	kDefaultMaxBytes = 256 << 20

	// The first bytes of the region are reserved so that offset 0 can
	// mean "no record" everywhere.
	kBytesCursorStart = 8
)

// Region describes one raw backing buffer as an address/size pair. The
// triple [header, cell array, bytes region] is enough for another
// process mapping the same memory to reconstruct a read-only view.
type Region struct {
	Addr uintptr
	Size uint64
}

// multiMapHeader is the map metadata block. It lives in raw allocated
// memory so it can be exported as a region of its own.
type multiMapHeader struct {
	cellCnt     uint64
	cellCntMask uint64
	elemCnt     uint64
	maxElemCnt  uint64
	rowCnt      uint64
	cursor      uint64
	bytesCap    uint64
	maxBytes    uint64
	keyWidth    uint64
	payloadSize uint64
}

var headerSize = uint64(unsafe.Sizeof(multiMapHeader{}))

// key record layout inside the bytes region:
//
//	cnt    uint32  payload records chained under this key
//	keyLen uint32
//	head   uint64  offset of the first payload record
//	tail   uint64  offset of the last payload record
//	key    [keyLen]byte, padded to 8
//
// payload record layout:
//
//	next    uint64  offset of the next payload record, 0 = end
//	payload [payloadSize]byte, padded to 8
const keyRecordHeaderSize = 24

func align8(n uint64) uint64 {
	return (n + 7) &^ 7
}

func nextPowerOfTwo(n uint64) uint64 {
	c := uint64(1)
	for c < n {
		c <<= 1
	}
	return c
}

func maxElemCnt(cellCnt uint64) uint64 {
	return cellCnt * kLoadFactorNumerator / kLoadFactorDenominator
}

func regionOf(data []byte, size uint64) Region {
	return Region{
		Addr: uintptr(unsafe.Pointer(unsafe.SliceData(data))),
		Size: size,
	}
}

func defaultAllocator(allocator malloc.Allocator) malloc.Allocator {
	if allocator == nil {
		return malloc.GetDefault()
	}
	return allocator
}
