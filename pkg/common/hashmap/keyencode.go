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
	"github.com/matrixorigin/hashrelation/pkg/container/types"
	"github.com/matrixorigin/hashrelation/pkg/container/vector"
)

// KeyEncoder packs one row of a multi-column key into a single byte
// string. Per column it writes one null-marker byte, then the value:
// fixed-width values contribute their native bytes (zeroed when null),
// variable-length values a u32 length prefix followed by the bytes.
// The length prefix keeps the encoding injective; without it
// ("ab","c") and ("a","bc") would collide.
//
// All rows of one group are encoded into a shared buffer; the returned
// key slices alias that buffer and stay valid until the next Reset.
type KeyEncoder struct {
	buf  []byte
	offs []uint32
}

func (e *KeyEncoder) Reset() {
	e.buf = e.buf[:0]
	e.offs = e.offs[:0]
}

// EncodeRows encodes rows [start, start+count) and fills keys[0:count].
func (e *KeyEncoder) EncodeRows(vecs []*vector.Vector, start, count int, keys [][]byte) {
	e.Reset()
	for i := 0; i < count; i++ {
		e.offs = append(e.offs, uint32(len(e.buf)))
		e.encodeOne(vecs, uint64(start+i))
	}
	e.offs = append(e.offs, uint32(len(e.buf)))
	for i := 0; i < count; i++ {
		keys[i] = e.buf[e.offs[i]:e.offs[i+1]]
	}
}

// EncodeRow encodes a single row, resetting the buffer first.
func (e *KeyEncoder) EncodeRow(vecs []*vector.Vector, row int) []byte {
	e.Reset()
	e.encodeOne(vecs, uint64(row))
	return e.buf
}

func (e *KeyEncoder) encodeOne(vecs []*vector.Vector, row uint64) {
	for _, vec := range vecs {
		typ := vec.GetType()
		if vec.IsNull(row) {
			e.buf = append(e.buf, 1)
			if typ.IsFixedLen() {
				e.buf = appendZeros(e.buf, typ.TypeSize())
			} else {
				e.buf = append(e.buf, 0, 0, 0, 0)
			}
			continue
		}
		e.buf = append(e.buf, 0)
		if typ.IsFixedLen() {
			size := typ.TypeSize()
			data := vec.UnsafeGetRawData()
			e.buf = append(e.buf, data[int(row)*size:int(row+1)*size]...)
			continue
		}
		bs := vec.GetBytes(int64(row))
		l := uint32(len(bs))
		e.buf = append(e.buf, types.EncodeUint32(&l)...)
		e.buf = append(e.buf, bs...)
	}
}

func appendZeros(buf []byte, n int) []byte {
	for i := 0; i < n; i++ {
		buf = append(buf, 0)
	}
	return buf
}
