// Copyright 2019 Intel Corporation. All Rights Reserved.
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

package bitmap

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestSetClearTest(t *testing.T) {
	b := New(70)
	require.False(t, b.Test(0))
	b.Set(0)
	b.Set(63)
	b.Set(64)
	b.Set(69)
	require.True(t, b.Test(0))
	require.True(t, b.Test(63))
	require.True(t, b.Test(64))
	require.True(t, b.Test(69))
	require.Equal(t, 4, b.Popcount())

	b.Clear(64)
	require.False(t, b.Test(64))
	require.Equal(t, 3, b.Popcount())
}

func TestOutOfRangeIsNoop(t *testing.T) {
	b := New(8)
	b.Set(100)
	require.Equal(t, 0, b.Popcount())
	require.False(t, b.Test(-1))
}

func TestSetRangeClearRange(t *testing.T) {
	b := New(16)
	b.SetRange(4, 12)
	require.Equal(t, 8, b.Popcount())
	require.Equal(t, 4, b.First())
	require.Equal(t, 11, b.Last())

	b.ClearRange(6, 10)
	require.Equal(t, 4, b.Popcount())
	require.Equal(t, "4-5,10-11", b.String())
}

func TestFirstLastEmpty(t *testing.T) {
	b := New(10)
	require.Equal(t, -1, b.First())
	require.Equal(t, -1, b.Last())
}

func TestAndOrNot(t *testing.T) {
	a := FromBits(8, 0, 1, 2, 3)
	b := FromBits(8, 2, 3, 4, 5)

	and := a.Clone()
	and.And(b)
	require.Equal(t, "2-3", and.String())

	or := a.Clone()
	or.Or(b)
	require.Equal(t, "0-5", or.String())

	not := a.Clone()
	not.Not()
	require.Equal(t, "4-7", not.String())
}

func TestAndNot(t *testing.T) {
	a := FromBits(8, 0, 1, 2, 3)
	b := FromBits(8, 2, 3)

	a.AndNot(b)
	require.Equal(t, "0-1", a.String())
}

func TestIsSupersetOverlaps(t *testing.T) {
	a := FromBits(8, 0, 1, 2, 3)
	sub := FromBits(8, 1, 2)
	disjoint := FromBits(8, 4, 5)

	require.True(t, a.IsSuperset(sub))
	require.False(t, sub.IsSuperset(a))
	require.True(t, a.Overlaps(sub))
	require.False(t, a.Overlaps(disjoint))
}

func TestCloneCopyFromIndependence(t *testing.T) {
	a := FromBits(8, 0, 1)
	c := a.Clone()
	c.Set(5)
	require.False(t, a.Test(5))

	dst := New(8)
	dst.CopyFrom(a)
	require.Equal(t, a.String(), dst.String())
	dst.Set(7)
	require.False(t, a.Test(7))
}

func TestMembersAndString(t *testing.T) {
	b := FromBits(12, 0, 1, 2, 5, 7, 8, 9)
	require.Equal(t, []int{0, 1, 2, 5, 7, 8, 9}, b.Members())
	require.Equal(t, "0-2,5,7-9", b.String())
}

func TestEqual(t *testing.T) {
	a := FromBits(8, 1, 2)
	b := FromBits(8, 1, 2)
	c := FromBits(8, 1, 3)
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

// TestMembersMatchAcrossConstructionPaths checks that two bitmaps built
// through different sequences of Set/Or end up with identical membership,
// using cmp.Equal the way the teacher's cache tests compare derived key
// slices rather than individual field assertions.
func TestMembersMatchAcrossConstructionPaths(t *testing.T) {
	viaFromBits := FromBits(10, 1, 3, 4, 7)

	viaOr := New(10)
	a := FromBits(10, 1, 3)
	b := FromBits(10, 4, 7)
	viaOr.Or(a)
	viaOr.Or(b)

	if !cmp.Equal(viaFromBits.Members(), viaOr.Members()) {
		t.Errorf("member sets diverged: %s", cmp.Diff(viaFromBits.Members(), viaOr.Members()))
	}
}

func TestNotRespectsLenBeyondLastWord(t *testing.T) {
	b := New(3)
	b.Not()
	require.Equal(t, 3, b.Popcount())
	require.Equal(t, "0-2", b.String())
}
