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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateAndFree(t *testing.T) {
	a := NewGoAllocator()
	buf, de, err := a.Allocate(1024)
	require.NoError(t, err)
	require.Len(t, buf, 1024)
	require.Equal(t, int64(1), InuseCount(a))
	de.Deallocate()
	require.Equal(t, int64(0), InuseCount(a))
}

func TestDoubleFreePanics(t *testing.T) {
	a := NewGoAllocator()
	_, de, err := a.Allocate(16)
	require.NoError(t, err)
	de.Deallocate()
	require.Panics(t, func() { de.Deallocate() })
}

func TestAllocateZero(t *testing.T) {
	a := NewGoAllocator()
	_, _, err := a.Allocate(0)
	require.Error(t, err)
}

func TestDefaultIsSingleton(t *testing.T) {
	require.Same(t, GetDefault(), GetDefault())
}
