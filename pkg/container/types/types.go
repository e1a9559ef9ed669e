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

package types

import (
	"golang.org/x/exp/constraints"
)

type T uint8

const (
	// T_any is the unknown type.
	T_any T = iota

	// numeric family
	T_bool
	T_int8
	T_int16
	T_int32
	T_int64
	T_uint8
	T_uint16
	T_uint32
	T_uint64
	T_float32
	T_float64
	T_date
	T_datetime
	T_timestamp

	// string family
	T_char
	T_varchar
	T_blob
)

type Date int32
type Datetime int64
type Timestamp int64

// FixedSizeT covers every type whose column representation is a fixed
// number of bytes per row.
type FixedSizeT interface {
	constraints.Integer | constraints.Float | bool |
		Date | Datetime | Timestamp
}

// Type describes the runtime type of one column.
type Type struct {
	Oid   T
	Size  int32
	Width int32
	Scale int32
}

func New(oid T, width, scale int32) Type {
	return Type{
		Oid:   oid,
		Size:  int32(oid.FixedLength()),
		Width: width,
		Scale: scale,
	}
}

// TypeSize returns the per-row byte width of fixed types, and -1 for
// string-like types.
func (t Type) TypeSize() int {
	return t.Oid.FixedLength()
}

func (t Type) IsString() bool {
	return t.Oid == T_char || t.Oid == T_varchar || t.Oid == T_blob
}

func (t Type) IsFixedLen() bool {
	return t.Oid.FixedLength() > 0
}

func (t T) FixedLength() int {
	switch t {
	case T_bool, T_int8, T_uint8:
		return 1
	case T_int16, T_uint16:
		return 2
	case T_int32, T_uint32, T_float32, T_date:
		return 4
	case T_int64, T_uint64, T_float64, T_datetime, T_timestamp:
		return 8
	}
	return -1
}

func (t T) String() string {
	switch t {
	case T_any:
		return "ANY"
	case T_bool:
		return "BOOL"
	case T_int8:
		return "TINYINT"
	case T_int16:
		return "SMALLINT"
	case T_int32:
		return "INT"
	case T_int64:
		return "BIGINT"
	case T_uint8:
		return "TINYINT UNSIGNED"
	case T_uint16:
		return "SMALLINT UNSIGNED"
	case T_uint32:
		return "INT UNSIGNED"
	case T_uint64:
		return "BIGINT UNSIGNED"
	case T_float32:
		return "FLOAT"
	case T_float64:
		return "DOUBLE"
	case T_date:
		return "DATE"
	case T_datetime:
		return "DATETIME"
	case T_timestamp:
		return "TIMESTAMP"
	case T_char:
		return "CHAR"
	case T_varchar:
		return "VARCHAR"
	case T_blob:
		return "BLOB"
	}
	return "unknown type"
}

func (t Type) String() string {
	return t.Oid.String()
}
