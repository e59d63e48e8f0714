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

// Package topology holds the node, partition, and switch data model the
// selection core is handed at call time. None of it is discovered from
// sysfs here -- a node's socket/core/thread shape and a cluster's switch
// tree arrive as caller-supplied records (a controller or test fixture
// builds them); the core only indexes and walks them.
package topology

import (
	"github.com/pkg/errors"

	"github.com/intel/cons-tres-core/pkg/bitmap"
)

// NodeGeometry describes one node's socket/core/thread shape and its slot
// in the global core bitmap. Invariant (enforced by NewGeometryIndex):
// CoremapOffset(n+1) - CoremapOffset(n) == Sockets*CoresPerSocket for node n.
type NodeGeometry struct {
	Sockets        int
	CoresPerSocket int
	ThreadsPerCore int
	// CoremapOffset is the index of this node's first core in the global
	// core bitmap; cores [CoremapOffset, CoremapOffset+Sockets*CoresPerSocket)
	// belong to this node.
	CoremapOffset int
}

// Cores returns the node's total core count (sockets * cores-per-socket).
func (g NodeGeometry) Cores() int {
	return g.Sockets * g.CoresPerSocket
}

// CPUs returns the node's total logical CPU count (cores * threads-per-core).
func (g NodeGeometry) CPUs() int {
	return g.Cores() * g.ThreadsPerCore
}

// CoreRange returns the half-open [begin, end) range of global core indices
// belonging to this node.
func (g NodeGeometry) CoreRange() (begin, end int) {
	return g.CoremapOffset, g.CoremapOffset + g.Cores()
}

// SocketOf returns the socket index owning global core index core.
func (g NodeGeometry) SocketOf(core int) int {
	return (core - g.CoremapOffset) / g.CoresPerSocket
}

// Node is an immutable-during-selection node record.
type Node struct {
	Name         string
	Geometry     NodeGeometry
	RealMemoryMB int64
	GRES         string // opaque descriptor handed to the gres collaborator
	Excluded     bool   // not read by any selection code; a node in the candidate bitmap is considered either way
}

// TotalCPUs returns the node's advertised logical CPU count.
func (n *Node) TotalCPUs() int {
	return n.Geometry.CPUs()
}

// NodeState is the mutable admission state of a node, owned by the caller
// and consulted (never mutated) by the node-state filter.
type NodeState int

const (
	// StateAvailable means the node accepts jobs from any partition.
	StateAvailable NodeState = iota
	// StateOneRow means the node is committed to a single sharing row.
	StateOneRow
	// StateReserved means the node is exclusively held by one job.
	StateReserved
	// StateCompleting means a previous job on this node is still tearing down.
	StateCompleting
)

func (s NodeState) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateOneRow:
		return "one-row"
	case StateReserved:
		return "reserved"
	case StateCompleting:
		return "completing"
	default:
		return "unknown"
	}
}

// NodeUsage is the mutable, caller-owned usage record paired 1:1 with a Node.
type NodeUsage struct {
	AllocMemoryMB int64
	RunningGRES   string
	State         NodeState
}

// Partition is one scheduling partition: a priority and an ordered list of
// sharing rows. Rows are ordered from most to least preferred placement.
type Partition struct {
	Name     string
	Priority int
	LLN      bool // cmd/coreselectd uses the LLN chooser for this partition's jobs unless the job names a chooser
	Rows     []Row
}

// Row is one sharing stripe's core usage, a bitmap over the global core
// space. Rows belonging to the same partition never overlap on a core.
type Row struct {
	CoreUsage *bitmap.Bitmap
}

// PartitionTable is the ordered set of partitions visible to a selection
// call. Order is part of the contract: it determines iteration order for
// the equal/higher/lower priority comparisons in the priority-layered driver.
type PartitionTable struct {
	Partitions []*Partition
}

// ByName looks up a partition by name, or returns nil.
func (t *PartitionTable) ByName(name string) *Partition {
	for _, p := range t.Partitions {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Switch is one node of the topology switch tree. Leaves have Level 0 and
// directly enumerate compute nodes; internal switches aggregate children.
type Switch struct {
	Name      string
	Level     int
	LinkSpeed int
	Nodes     *bitmap.Bitmap // transitively covered leaf nodes
}

// SwitchTable is the ordered topology tree handed in by the topology
// collaborator. Order is part of the determinism contract.
type SwitchTable struct {
	Switches []*Switch
}

// Leaves returns the level-0 switches, in table order.
func (t *SwitchTable) Leaves() []*Switch {
	var leaves []*Switch
	for _, sw := range t.Switches {
		if sw.Level == 0 {
			leaves = append(leaves, sw)
		}
	}
	return leaves
}

// GeometryIndex maps a node's position in the candidate/global node bitmap
// to its NodeGeometry, and validates the coremap-offset invariant once at
// construction so every later bulk bitmap operation can assume it holds.
type GeometryIndex struct {
	nodes []*Node
}

// NewGeometryIndex builds a GeometryIndex over nodes, in global node-index
// order (node i owns bit i of every node bitmap passed to the core).
func NewGeometryIndex(nodes []*Node) (*GeometryIndex, error) {
	offset := 0
	for i, n := range nodes {
		if n.Geometry.CoremapOffset != offset {
			return nil, errors.Errorf(
				"node %d (%s): coremap offset %d does not follow previous node's range (expected %d)",
				i, n.Name, n.Geometry.CoremapOffset, offset)
		}
		offset += n.Geometry.Cores()
	}
	return &GeometryIndex{nodes: nodes}, nil
}

// NumNodes returns the number of indexed nodes.
func (gi *GeometryIndex) NumNodes() int {
	return len(gi.nodes)
}

// TotalCores returns the size of the global core bitmap this index implies.
func (gi *GeometryIndex) TotalCores() int {
	if len(gi.nodes) == 0 {
		return 0
	}
	last := gi.nodes[len(gi.nodes)-1]
	return last.Geometry.CoremapOffset + last.Geometry.Cores()
}

// Node returns the Node at global node index i.
func (gi *GeometryIndex) Node(i int) *Node {
	return gi.nodes[i]
}

// CoreRange returns the global core range owned by node index i.
func (gi *GeometryIndex) CoreRange(i int) (begin, end int) {
	return gi.nodes[i].Geometry.CoreRange()
}

// NodeOfCore returns the global node index owning global core index core,
// or -1 if core is out of range.
func (gi *GeometryIndex) NodeOfCore(core int) int {
	for i, n := range gi.nodes {
		begin, end := n.Geometry.CoreRange()
		if core >= begin && core < end {
			return i
		}
	}
	return -1
}
