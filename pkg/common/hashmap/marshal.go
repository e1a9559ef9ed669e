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
	"bytes"

	"github.com/matrixorigin/hashrelation/pkg/common/malloc"
	"github.com/matrixorigin/hashrelation/pkg/common/moerr"
	"github.com/matrixorigin/hashrelation/pkg/container/hashtable"
	"github.com/matrixorigin/hashrelation/pkg/container/types"
	"github.com/matrixorigin/hashrelation/pkg/container/vector"
)

// MarshalBinary snapshots a built relation: key types, null bucket, the
// map, and every payload array. The snapshot is self-describing; a
// fresh frozen relation is reconstructed by UnmarshalHashRelation.
func (r *HashRelation) MarshalBinary() ([]byte, error) {
	r.ensureMap()
	if r.attached {
		return nil, moerr.NewInvalidStateNoCtx("marshal of an attached hash relation")
	}
	var buf bytes.Buffer

	keyCnt := uint32(len(r.keyTypes))
	buf.Write(types.EncodeUint32(&keyCnt))
	for i := range r.keyTypes {
		buf.Write(types.EncodeType(&r.keyTypes[i]))
	}

	buf.Write(types.EncodeUint32(&r.batchCnt))
	if r.hasNull {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	nullCnt := uint64(len(r.nullRows))
	buf.Write(types.EncodeUint64(&nullCnt))
	buf.Write(types.EncodeSlice(r.nullRows))

	var mapData []byte
	var err error
	if r.isIntKey {
		mapData, err = r.intMap.MarshalBinary()
	} else {
		mapData, err = r.bytesMap.MarshalBinary()
	}
	if err != nil {
		return nil, err
	}
	mapLen := uint64(len(mapData))
	buf.Write(types.EncodeUint64(&mapLen))
	buf.Write(mapData)

	colCnt := uint32(len(r.columns))
	buf.Write(types.EncodeUint32(&colCnt))
	for _, col := range r.columns {
		typ := col.Typ()
		buf.Write(types.EncodeType(&typ))
		arrays := col.ExportArrays()
		arrCnt := uint32(len(arrays))
		buf.Write(types.EncodeUint32(&arrCnt))
		for _, arr := range arrays {
			data, err := arr.MarshalBinary()
			if err != nil {
				return nil, err
			}
			l := uint64(len(data))
			buf.Write(types.EncodeUint64(&l))
			buf.Write(data)
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalHashRelation reconstructs a frozen relation from a snapshot.
func UnmarshalHashRelation(data []byte, allocator malloc.Allocator) (*HashRelation, error) {
	rd := snapshotReader{data: data}

	keyCnt, err := rd.uint32()
	if err != nil {
		return nil, err
	}
	keyTypes := make([]types.Type, keyCnt)
	for i := range keyTypes {
		tb, err := rd.take(types.TSize)
		if err != nil {
			return nil, err
		}
		keyTypes[i] = types.DecodeType(tb)
	}
	if len(keyTypes) == 0 {
		return nil, moerr.NewInvalidInputNoCtx("snapshot has no key types")
	}

	r := &HashRelation{keyTypes: keyTypes}
	r.isIntKey = len(keyTypes) == 1 && keyTypes[0].IsFixedLen() && keyTypes[0].TypeSize() <= 8
	if r.isIntKey {
		r.keySize = keyTypes[0].TypeSize()
	}
	r.phase.Store(phaseProbing)

	if r.batchCnt, err = rd.uint32(); err != nil {
		return nil, err
	}
	hasNull, err := rd.take(1)
	if err != nil {
		return nil, err
	}
	r.hasNull = hasNull[0] != 0
	nullCnt, err := rd.uint64()
	if err != nil {
		return nil, err
	}
	nullData, err := rd.take(int(nullCnt) * int(rowLocationSize))
	if err != nil {
		return nil, err
	}
	if nullCnt > 0 {
		r.nullRows = append([]RowLocation{}, types.DecodeSlice[RowLocation](nullData)...)
	}

	mapLen, err := rd.uint64()
	if err != nil {
		return nil, err
	}
	mapData, err := rd.take(int(mapLen))
	if err != nil {
		return nil, err
	}
	if r.isIntKey {
		r.intMap = new(hashtable.Int64MultiMap)
		err = r.intMap.UnmarshalBinary(mapData, allocator)
	} else {
		r.bytesMap = new(hashtable.BytesMultiMap)
		err = r.bytesMap.UnmarshalBinary(mapData, allocator)
	}
	if err != nil {
		return nil, err
	}

	colCnt, err := rd.uint32()
	if err != nil {
		r.Free()
		return nil, err
	}
	for i := uint32(0); i < colCnt; i++ {
		tb, err := rd.take(types.TSize)
		if err != nil {
			r.Free()
			return nil, err
		}
		col, err := NewColumn(types.DecodeType(tb))
		if err != nil {
			r.Free()
			return nil, err
		}
		arrCnt, err := rd.uint32()
		if err != nil {
			r.Free()
			return nil, err
		}
		for j := uint32(0); j < arrCnt; j++ {
			l, err := rd.uint64()
			if err != nil {
				r.Free()
				return nil, err
			}
			vecData, err := rd.take(int(l))
			if err != nil {
				r.Free()
				return nil, err
			}
			vec := new(vector.Vector)
			if err := vec.UnmarshalBinary(vecData); err != nil {
				r.Free()
				return nil, err
			}
			if err := col.AppendArray(vec); err != nil {
				r.Free()
				return nil, err
			}
		}
		r.columns = append(r.columns, col)
	}
	return r, nil
}

type snapshotReader struct {
	data []byte
}

func (rd *snapshotReader) take(n int) ([]byte, error) {
	if n < 0 || n > len(rd.data) {
		return nil, moerr.NewUnexpectedEOFNoCtx("hash relation snapshot")
	}
	b := rd.data[:n]
	rd.data = rd.data[n:]
	return b, nil
}

func (rd *snapshotReader) uint32() (uint32, error) {
	b, err := rd.take(4)
	if err != nil {
		return 0, err
	}
	return types.DecodeUint32(b), nil
}

func (rd *snapshotReader) uint64() (uint64, error) {
	b, err := rd.take(8)
	if err != nil {
		return 0, err
	}
	return types.DecodeUint64(b), nil
}
