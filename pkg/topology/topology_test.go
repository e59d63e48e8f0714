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

package topology

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func threeNodes() []*Node {
	return []*Node{
		{Name: "linux01", Geometry: NodeGeometry{Sockets: 1, CoresPerSocket: 2, ThreadsPerCore: 1, CoremapOffset: 0}},
		{Name: "linux02", Geometry: NodeGeometry{Sockets: 1, CoresPerSocket: 2, ThreadsPerCore: 1, CoremapOffset: 2}},
		{Name: "linux04", Geometry: NodeGeometry{Sockets: 2, CoresPerSocket: 2, ThreadsPerCore: 1, CoremapOffset: 4}},
	}
}

func TestNewGeometryIndex(t *testing.T) {
	gi, err := NewGeometryIndex(threeNodes())
	require.NoError(t, err)
	require.Equal(t, 3, gi.NumNodes())
	require.Equal(t, 8, gi.TotalCores())

	begin, end := gi.CoreRange(2)
	require.Equal(t, 4, begin)
	require.Equal(t, 8, end)
	require.Equal(t, 1, gi.NodeOfCore(2))
	require.Equal(t, 2, gi.NodeOfCore(4))
	require.Equal(t, -1, gi.NodeOfCore(8))
}

func TestNewGeometryIndexRejectsOffsetGap(t *testing.T) {
	nodes := threeNodes()
	nodes[2].Geometry.CoremapOffset = 5 // should be 4
	_, err := NewGeometryIndex(nodes)
	require.Error(t, err)
}

func TestSocketOf(t *testing.T) {
	g := NodeGeometry{Sockets: 2, CoresPerSocket: 4, ThreadsPerCore: 1, CoremapOffset: 10}
	require.Equal(t, 0, g.SocketOf(10))
	require.Equal(t, 0, g.SocketOf(13))
	require.Equal(t, 1, g.SocketOf(14))
	require.Equal(t, 1, g.SocketOf(17))
}

func TestPartitionTableByName(t *testing.T) {
	pt := &PartitionTable{Partitions: []*Partition{
		{Name: "batch", Priority: 1},
		{Name: "debug", Priority: 10},
	}}
	require.Equal(t, 10, pt.ByName("debug").Priority)
	require.Nil(t, pt.ByName("missing"))
}

func TestSwitchTableLeaves(t *testing.T) {
	st := &SwitchTable{Switches: []*Switch{
		{Name: "root", Level: 1},
		{Name: "A", Level: 0},
		{Name: "B", Level: 0},
	}}
	leaves := st.Leaves()
	require.Len(t, leaves, 2)
	require.Equal(t, "A", leaves[0].Name)
	require.Equal(t, "B", leaves[1].Name)
}
