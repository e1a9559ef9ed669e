// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vector

import (
	"bytes"

	"github.com/matrixorigin/hashrelation/pkg/common/moerr"
	"github.com/matrixorigin/hashrelation/pkg/container/nulls"
	"github.com/matrixorigin/hashrelation/pkg/container/types"
)

// Vector represents a column of one batch. Fixed-width values live in a
// contiguous data buffer; string-like values live in a types.Bytes.
type Vector struct {
	typ types.Type
	nsp *nulls.Nulls

	// data of fixed length elements
	data []byte
	// col for string-like elements
	col *types.Bytes

	length int
}

func New(typ types.Type) *Vector {
	vec := &Vector{
		typ: typ,
		nsp: &nulls.Nulls{},
	}
	if typ.IsString() {
		vec.col = &types.Bytes{}
	}
	return vec
}

func (v *Vector) Length() int {
	return v.length
}

func (v *Vector) GetType() *types.Type {
	return &v.typ
}

func (v *Vector) GetNulls() *nulls.Nulls {
	return v.nsp
}

func (v *Vector) SetNulls(nsp *nulls.Nulls) {
	v.nsp = nsp
}

func (v *Vector) IsNull(row uint64) bool {
	return nulls.Contains(v.nsp, row)
}

// UnsafeGetRawData exposes the fixed-width data buffer. Callers must not
// hold the slice across appends.
func (v *Vector) UnsafeGetRawData() []byte {
	return v.data[:v.length*v.typ.TypeSize()]
}

func (v *Vector) Col() *types.Bytes {
	return v.col
}

func (v *Vector) GetBytes(i int64) []byte {
	return v.col.Get(i)
}

func (v *Vector) GetString(i int64) string {
	return v.col.GetString(i)
}

// GetFixedAt reads one fixed-width value. No bounds check, probe hot path.
func GetFixedAt[T types.FixedSizeT](v *Vector, idx int) T {
	return types.DecodeSlice[T](v.data)[idx]
}

// GetFixedVectorValues casts the whole data buffer to a typed slice.
func GetFixedVectorValues[T types.FixedSizeT](v *Vector) []T {
	return types.DecodeSlice[T](v.data)
}

func Append[T types.FixedSizeT](v *Vector, val T, isNull bool) error {
	if v.typ.IsString() {
		return moerr.NewInternalErrorNoCtxf("append fixed value to %s vector", v.typ)
	}
	if isNull {
		nulls.Add(v.nsp, uint64(v.length))
		var zero T
		val = zero
	}
	v.data = append(v.data, types.EncodeFixed(val)...)
	v.length++
	return nil
}

func AppendBytes(v *Vector, val []byte, isNull bool) error {
	if !v.typ.IsString() {
		return moerr.NewInternalErrorNoCtxf("append bytes to %s vector", v.typ)
	}
	if isNull {
		nulls.Add(v.nsp, uint64(v.length))
		val = nil
	}
	v.col.Append(val)
	v.length++
	return nil
}

func AppendList[T types.FixedSizeT](v *Vector, vals []T, isNulls []bool) error {
	for i, val := range vals {
		if err := Append(v, val, isNulls != nil && isNulls[i]); err != nil {
			return err
		}
	}
	return nil
}

func AppendBytesList(v *Vector, vals [][]byte, isNulls []bool) error {
	for i, val := range vals {
		if err := AppendBytes(v, val, isNulls != nil && isNulls[i]); err != nil {
			return err
		}
	}
	return nil
}

func AppendStringList(v *Vector, vals []string, isNulls []bool) error {
	for i, val := range vals {
		if err := AppendBytes(v, []byte(val), isNulls != nil && isNulls[i]); err != nil {
			return err
		}
	}
	return nil
}

func (v *Vector) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	buf.Write(types.EncodeType(&v.typ))
	length := uint32(v.length)
	buf.Write(types.EncodeUint32(&length))

	nb, err := v.nsp.Show()
	if err != nil {
		return nil, err
	}
	nbLen := uint32(len(nb))
	buf.Write(types.EncodeUint32(&nbLen))
	buf.Write(nb)

	if v.typ.IsString() {
		dataLen := uint32(len(v.col.Data))
		buf.Write(types.EncodeUint32(&dataLen))
		buf.Write(v.col.Data)
		buf.Write(types.EncodeSlice(v.col.Offsets))
		buf.Write(types.EncodeSlice(v.col.Lengths))
	} else {
		dataLen := uint32(len(v.data))
		buf.Write(types.EncodeUint32(&dataLen))
		buf.Write(v.data)
	}

	return buf.Bytes(), nil
}

func (v *Vector) UnmarshalBinary(data []byte) error {
	if len(data) < types.TSize+8 {
		return moerr.NewUnexpectedEOFNoCtx("vector header")
	}
	v.typ = types.DecodeType(data)
	data = data[types.TSize:]
	v.length = int(types.DecodeUint32(data))
	data = data[4:]

	nbLen := types.DecodeUint32(data)
	data = data[4:]
	v.nsp = &nulls.Nulls{}
	if nbLen > 0 {
		if err := v.nsp.Read(data[:nbLen]); err != nil {
			return err
		}
		data = data[nbLen:]
	}

	dataLen := types.DecodeUint32(data)
	data = data[4:]
	if v.typ.IsString() {
		v.col = &types.Bytes{}
		v.col.Data = append([]byte{}, data[:dataLen]...)
		data = data[dataLen:]
		v.col.Offsets = append([]uint32{}, types.DecodeSlice[uint32](data[:v.length*4])...)
		data = data[v.length*4:]
		v.col.Lengths = append([]uint32{}, types.DecodeSlice[uint32](data[:v.length*4])...)
	} else {
		v.data = append([]byte{}, data[:dataLen]...)
	}
	return nil
}
