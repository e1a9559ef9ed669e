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

// Bytes is the column representation of string-like types: one shared
// data buffer plus per-row offset and length.
type Bytes struct {
	Data    []byte
	Offsets []uint32
	Lengths []uint32
}

func (bs *Bytes) Get(i int64) []byte {
	return bs.Data[bs.Offsets[i] : bs.Offsets[i]+bs.Lengths[i]]
}

func (bs *Bytes) GetString(i int64) string {
	return string(bs.Get(i))
}

func (bs *Bytes) Len() int {
	return len(bs.Offsets)
}

func (bs *Bytes) Append(vs ...[]byte) {
	o := uint32(len(bs.Data))
	for _, v := range vs {
		bs.Data = append(bs.Data, v...)
		bs.Offsets = append(bs.Offsets, o)
		bs.Lengths = append(bs.Lengths, uint32(len(v)))
		o += uint32(len(v))
	}
}

func (bs *Bytes) Reset() {
	bs.Data = bs.Data[:0]
	bs.Offsets = bs.Offsets[:0]
	bs.Lengths = bs.Lengths[:0]
}
