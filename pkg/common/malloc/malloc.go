// Copyright 2022 Matrix Origin
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

package malloc

import (
	"sync"
	"sync/atomic"

	"github.com/matrixorigin/hashrelation/pkg/common/moerr"
)

// Allocator hands out raw backing buffers for off-map structures. The
// returned Deallocator must be called exactly once, and only by the
// owner of the buffer.
type Allocator interface {
	Allocate(size uint64) ([]byte, Deallocator, error)
}

type Deallocator interface {
	Deallocate()
}

type goAllocator struct {
	numAlloc atomic.Int64
	numFree  atomic.Int64
}

type goDeallocator struct {
	allocator *goAllocator
	buf       []byte
	freed     atomic.Bool
}

// NewGoAllocator returns an allocator backed by the Go heap. Buffers are
// zeroed and pinned by the deallocator reference until freed.
func NewGoAllocator() Allocator {
	return &goAllocator{}
}

func (a *goAllocator) Allocate(size uint64) ([]byte, Deallocator, error) {
	if size == 0 {
		return nil, nil, moerr.NewInvalidInputNoCtx("allocate 0 bytes")
	}
	buf := make([]byte, size)
	a.numAlloc.Add(1)
	return buf, &goDeallocator{allocator: a, buf: buf}, nil
}

func (d *goDeallocator) Deallocate() {
	if d.freed.Swap(true) {
		panic("double free")
	}
	d.allocator.numFree.Add(1)
	d.buf = nil
}

// InuseCount reports live allocations, used by tests to check ownership
// hand-off behavior.
func InuseCount(a Allocator) int64 {
	if ga, ok := a.(*goAllocator); ok {
		return ga.numAlloc.Load() - ga.numFree.Load()
	}
	return -1
}

var (
	defaultAllocator     Allocator
	defaultAllocatorOnce sync.Once
)

func GetDefault() Allocator {
	defaultAllocatorOnce.Do(func() {
		defaultAllocator = NewGoAllocator()
	})
	return defaultAllocator
}
