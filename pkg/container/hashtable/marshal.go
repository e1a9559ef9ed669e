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
	"io"

	"github.com/matrixorigin/hashrelation/pkg/common/malloc"
	"github.com/matrixorigin/hashrelation/pkg/common/moerr"
	"github.com/matrixorigin/hashrelation/pkg/container/types"
)

// The snapshot format is position independent: record links inside the
// bytes region are offsets, so dumping the region verbatim is enough.

func (ht *BytesMultiMap) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	writeHeader(&buf, ht.hdr)

	for i := range ht.cells {
		cell := &ht.cells[i]
		if cell.KeyOff == 0 {
			continue
		}
		buf.Write(types.EncodeUint64(&cell.HashState[0]))
		buf.Write(types.EncodeUint64(&cell.HashState[1]))
		buf.Write(types.EncodeUint64(&cell.HashState[2]))
		buf.Write(types.EncodeUint64(&cell.KeyOff))
	}

	buf.Write(ht.region.data[:ht.hdr.cursor])
	return buf.Bytes(), nil
}

func (ht *BytesMultiMap) UnmarshalBinary(data []byte, allocator malloc.Allocator) error {
	r := bytes.NewBuffer(data)
	hdr, err := readHeader(r)
	if err != nil {
		return err
	}

	if err := ht.Init(allocator, hdr.elemCnt, hdr.maxBytes, hdr.payloadSize); err != nil {
		return err
	}
	if err := ht.region.ensure(hdr.cursor - ht.hdr.cursor); err != nil {
		return err
	}

	for i := uint64(0); i < hdr.elemCnt; i++ {
		var cell BytesMultiMapCell
		cell.HashState[0] = types.DecodeUint64(r.Next(8))
		cell.HashState[1] = types.DecodeUint64(r.Next(8))
		cell.HashState[2] = types.DecodeUint64(r.Next(8))
		cell.KeyOff = types.DecodeUint64(r.Next(8))
		*ht.findEmptyCell(&cell.HashState) = cell
	}

	if _, err := io.ReadFull(r, ht.region.data[:hdr.cursor]); err != nil {
		return moerr.NewUnexpectedEOFNoCtx("hash table bytes region")
	}
	ht.hdr.elemCnt = hdr.elemCnt
	ht.hdr.rowCnt = hdr.rowCnt
	ht.hdr.cursor = hdr.cursor
	return nil
}

func (ht *Int64MultiMap) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	writeHeader(&buf, ht.hdr)

	for i := range ht.cells {
		cell := &ht.cells[i]
		if cell.KeyOff == 0 {
			continue
		}
		buf.Write(types.EncodeUint64(&cell.Key))
		buf.Write(types.EncodeUint64(&cell.KeyOff))
	}

	buf.Write(ht.region.data[:ht.hdr.cursor])
	return buf.Bytes(), nil
}

func (ht *Int64MultiMap) UnmarshalBinary(data []byte, allocator malloc.Allocator) error {
	r := bytes.NewBuffer(data)
	hdr, err := readHeader(r)
	if err != nil {
		return err
	}

	if err := ht.Init(allocator, hdr.elemCnt, hdr.maxBytes, hdr.payloadSize); err != nil {
		return err
	}
	if err := ht.region.ensure(hdr.cursor - ht.hdr.cursor); err != nil {
		return err
	}

	for i := uint64(0); i < hdr.elemCnt; i++ {
		var cell Int64MultiMapCell
		cell.Key = types.DecodeUint64(r.Next(8))
		cell.KeyOff = types.DecodeUint64(r.Next(8))
		*ht.findEmptyCell(Int64Hash(cell.Key)) = cell
	}

	if _, err := io.ReadFull(r, ht.region.data[:hdr.cursor]); err != nil {
		return moerr.NewUnexpectedEOFNoCtx("hash table bytes region")
	}
	ht.hdr.elemCnt = hdr.elemCnt
	ht.hdr.rowCnt = hdr.rowCnt
	ht.hdr.cursor = hdr.cursor
	return nil
}

func writeHeader(buf *bytes.Buffer, hdr *multiMapHeader) {
	buf.Write(types.EncodeUint64(&hdr.elemCnt))
	buf.Write(types.EncodeUint64(&hdr.rowCnt))
	buf.Write(types.EncodeUint64(&hdr.cursor))
	buf.Write(types.EncodeUint64(&hdr.maxBytes))
	buf.Write(types.EncodeUint64(&hdr.keyWidth))
	buf.Write(types.EncodeUint64(&hdr.payloadSize))
}

func readHeader(r *bytes.Buffer) (multiMapHeader, error) {
	var hdr multiMapHeader
	var buf [8]byte
	for _, dst := range []*uint64{
		&hdr.elemCnt, &hdr.rowCnt, &hdr.cursor,
		&hdr.maxBytes, &hdr.keyWidth, &hdr.payloadSize,
	} {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return hdr, moerr.NewUnexpectedEOFNoCtx("hash table header")
		}
		*dst = types.DecodeUint64(buf[:])
	}
	return hdr, nil
}
