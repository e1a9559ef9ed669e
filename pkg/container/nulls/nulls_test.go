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

package nulls

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddContains(t *testing.T) {
	nsp := New()
	require.False(t, Any(nsp))

	Add(nsp, 0, 3, 100)
	require.True(t, Any(nsp))
	require.True(t, Contains(nsp, 3))
	require.False(t, Contains(nsp, 4))
	require.Equal(t, 3, Length(nsp))

	Del(nsp, 3)
	require.False(t, Contains(nsp, 3))
	require.Equal(t, []uint64{0, 100}, nsp.ToArray())
}

func TestShowRead(t *testing.T) {
	nsp := Build(1, 5, 9)
	data, err := nsp.Show()
	require.NoError(t, err)

	var nsp2 Nulls
	require.NoError(t, nsp2.Read(data))
	require.Equal(t, nsp.ToArray(), nsp2.ToArray())
}

func TestNilReceivers(t *testing.T) {
	var nsp *Nulls
	require.False(t, Any(nsp))
	require.False(t, Contains(nsp, 0))
	require.Equal(t, 0, Length(nsp))
}
