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
	"github.com/matrixorigin/hashrelation/pkg/common/moerr"
	"github.com/matrixorigin/hashrelation/pkg/container/types"
	"github.com/matrixorigin/hashrelation/pkg/container/vector"
)

// Column accumulates one payload column's arrays across batches and
// answers point queries by (batch, row). Value access lives on the
// concrete specializations since the result type differs per kind.
type Column interface {
	Typ() types.Type
	AppendArray(vec *vector.Vector) error
	IsNull(batchID, row uint32) bool
	ExportArrays() []*vector.Vector
}

// NewColumn picks the specialization for typ. Unsupported type tags
// fail with a not-supported error.
func NewColumn(typ types.Type) (Column, error) {
	switch typ.Oid {
	case types.T_bool:
		return newFixedColumn[bool](typ), nil
	case types.T_int8:
		return newFixedColumn[int8](typ), nil
	case types.T_int16:
		return newFixedColumn[int16](typ), nil
	case types.T_int32:
		return newFixedColumn[int32](typ), nil
	case types.T_int64:
		return newFixedColumn[int64](typ), nil
	case types.T_uint8:
		return newFixedColumn[uint8](typ), nil
	case types.T_uint16:
		return newFixedColumn[uint16](typ), nil
	case types.T_uint32:
		return newFixedColumn[uint32](typ), nil
	case types.T_uint64:
		return newFixedColumn[uint64](typ), nil
	case types.T_float32:
		return newFixedColumn[float32](typ), nil
	case types.T_float64:
		return newFixedColumn[float64](typ), nil
	case types.T_date:
		return newFixedColumn[types.Date](typ), nil
	case types.T_datetime:
		return newFixedColumn[types.Datetime](typ), nil
	case types.T_timestamp:
		return newFixedColumn[types.Timestamp](typ), nil
	case types.T_char, types.T_varchar, types.T_blob:
		return &BytesColumn{typ: typ}, nil
	}
	return nil, moerr.NewNotSupportedNoCtx("hash relation column of type %s", typ.Oid)
}

// FixedColumn stores fixed-width values of one numeric-like type.
type FixedColumn[T types.FixedSizeT] struct {
	typ    types.Type
	arrays []*vector.Vector
}

func newFixedColumn[T types.FixedSizeT](typ types.Type) *FixedColumn[T] {
	return &FixedColumn[T]{typ: typ}
}

func (c *FixedColumn[T]) Typ() types.Type {
	return c.typ
}

func (c *FixedColumn[T]) AppendArray(vec *vector.Vector) error {
	if vec.GetType().Oid != c.typ.Oid {
		return moerr.NewInvalidInputNoCtx(
			"append %s array to %s column", vec.GetType().Oid, c.typ.Oid)
	}
	c.arrays = append(c.arrays, vec)
	return nil
}

func (c *FixedColumn[T]) IsNull(batchID, row uint32) bool {
	return c.arrays[batchID].IsNull(uint64(row))
}

// GetValue is the unchecked hot-path read: the caller guarantees the
// position was appended. See GetValueChecked for the validating form.
func (c *FixedColumn[T]) GetValue(batchID, row uint32) T {
	return vector.GetFixedAt[T](c.arrays[batchID], int(row))
}

func (c *FixedColumn[T]) GetValueChecked(batchID, row uint32) (T, error) {
	var zero T
	if int(batchID) >= len(c.arrays) {
		return zero, moerr.NewOutOfRangeNoCtx("batch", "%d not in [0, %d)", batchID, len(c.arrays))
	}
	if int(row) >= c.arrays[batchID].Length() {
		return zero, moerr.NewOutOfRangeNoCtx("row", "%d not in [0, %d)", row, c.arrays[batchID].Length())
	}
	return c.GetValue(batchID, row), nil
}

func (c *FixedColumn[T]) ExportArrays() []*vector.Vector {
	return c.arrays
}

// BytesColumn stores variable-length string or blob values.
type BytesColumn struct {
	typ    types.Type
	arrays []*vector.Vector
}

func (c *BytesColumn) Typ() types.Type {
	return c.typ
}

func (c *BytesColumn) AppendArray(vec *vector.Vector) error {
	if vec.GetType().Oid != c.typ.Oid {
		return moerr.NewInvalidInputNoCtx(
			"append %s array to %s column", vec.GetType().Oid, c.typ.Oid)
	}
	c.arrays = append(c.arrays, vec)
	return nil
}

func (c *BytesColumn) IsNull(batchID, row uint32) bool {
	return c.arrays[batchID].IsNull(uint64(row))
}

func (c *BytesColumn) GetBytes(batchID, row uint32) []byte {
	return c.arrays[batchID].GetBytes(int64(row))
}

func (c *BytesColumn) GetBytesChecked(batchID, row uint32) ([]byte, error) {
	if int(batchID) >= len(c.arrays) {
		return nil, moerr.NewOutOfRangeNoCtx("batch", "%d not in [0, %d)", batchID, len(c.arrays))
	}
	if int(row) >= c.arrays[batchID].Length() {
		return nil, moerr.NewOutOfRangeNoCtx("row", "%d not in [0, %d)", row, c.arrays[batchID].Length())
	}
	return c.GetBytes(batchID, row), nil
}

func (c *BytesColumn) ExportArrays() []*vector.Vector {
	return c.arrays
}
