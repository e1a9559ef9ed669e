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
	"testing"

	"github.com/matrixorigin/hashrelation/pkg/container/types"
	"github.com/matrixorigin/hashrelation/pkg/container/vector"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBuildProbeLifecycle(t *testing.T) {
	Convey("a relation built from two batches", t, func() {
		r, err := NewHashRelation([]types.Type{int64Type}, nil, nil)
		So(err, ShouldBeNil)
		defer r.Free()

		b0 := vector.New(int64Type)
		So(vector.AppendList(b0, []int64{5, 3, 0}, []bool{false, false, true}), ShouldBeNil)
		b1 := vector.New(int64Type)
		So(vector.AppendList(b1, []int64{3, 7}, nil), ShouldBeNil)

		So(r.AppendKeyColumn([]*vector.Vector{b0}, nil), ShouldBeNil)
		So(r.AppendKeyColumn([]*vector.Vector{b1}, nil), ShouldBeNil)

		probe := vector.New(int64Type)
		So(vector.AppendList(probe, []int64{3, 9}, nil), ShouldBeNil)
		probeVecs := []*vector.Vector{probe}

		Convey("probes resolve duplicated keys in build order", func() {
			locs, ok := r.Get(probeVecs, 0)
			So(ok, ShouldBeTrue)
			So(locs, ShouldResemble, []RowLocation{{0, 1}, {1, 0}})
		})

		Convey("a miss is an outcome, not an error", func() {
			_, ok := r.Get(probeVecs, 1)
			So(ok, ShouldBeFalse)
			So(r.IfExists(probeVecs, 1), ShouldEqual, NotFound)
		})

		Convey("the null row reached the side bucket", func() {
			So(r.GetNull(), ShouldEqual, 0)
			So(r.NullRows(), ShouldResemble, []RowLocation{{0, 2}})
		})

		Convey("probing freezes the relation", func() {
			_, _ = r.Get(probeVecs, 0)
			So(func() {
				_ = r.AppendKeyColumn([]*vector.Vector{b1}, nil)
			}, ShouldPanic)
		})
	})
}
